package layout

import (
	"math"

	"github.com/skein-labs/skein/backend/pkg/common"

	"gonum.org/v1/gonum/spatial/r2"
)

// Mode selects the overall arrangement of the simulation.
type Mode int

const (
	// ModeNetwork is the free force-directed layout.
	ModeNetwork Mode = iota
	// ModeTimeline arranges dated nodes along a horizontal axis by year.
	ModeTimeline
)

// ParseMode maps a string onto a Mode; anything unrecognized is Network.
func ParseMode(s string) Mode {
	if s == "timeline" {
		return ModeTimeline
	}
	return ModeNetwork
}

func (m Mode) String() string {
	if m == ModeTimeline {
		return "timeline"
	}
	return "network"
}

// params are the force coefficients in effect for a mode/compact pair.
type params struct {
	linkDistance      float64
	linkStrength      float64
	repulsion         float64
	centerStrength    float64
	collidePad        float64
	timelineSpacing   float64
	timelineRowOffset float64
	timelineStrength  float64
}

// Engine is an owned, continuously steppable force simulation. It must
// be kept warm across graph mutations: Reconcile carries each surviving
// node's motion state into its replacement so nodes never jump.
//
// Engine is not safe for concurrent use; the owning session serializes
// access.
type Engine struct {
	mode     Mode
	compact  bool
	textOnly bool

	nodes []*common.Node
	links []common.Link
	byID  map[int64]*common.Node
	// ends resolves link endpoints to node objects. Links always store
	// endpoint ids; resolution happens only here, rebuilt every
	// reconciliation pass.
	ends [][2]*common.Node

	slots map[int64]r2.Vec

	p             params
	alpha         float64
	alphaMin      float64
	alphaDecay    float64
	velocityDecay float64
}

// NewEngine creates an engine in network mode with nothing to simulate.
func NewEngine() *Engine {
	e := &Engine{
		byID:          make(map[int64]*common.Node),
		alphaMin:      0.001,
		alphaDecay:    0.0228,
		velocityDecay: 0.6,
	}
	e.applyParams()
	return e
}

// Mode returns the current layout mode.
func (e *Engine) Mode() Mode { return e.mode }

// Compact returns the compact-packing flag.
func (e *Engine) Compact() bool { return e.compact }

// Configure switches mode and compact packing, recomputes all forces
// and re-heats the simulation.
func (e *Engine) Configure(mode Mode, compact bool) {
	e.mode = mode
	e.compact = compact
	e.applyParams()
	e.computeSlots()
	e.alpha = 1
}

// SetTextOnly switches the collision sizing between full cards and
// text-only boxes.
func (e *Engine) SetTextOnly(textOnly bool) {
	e.textOnly = textOnly
}

func (e *Engine) applyParams() {
	p := params{
		linkDistance:      120,
		linkStrength:      0.4,
		repulsion:         900,
		centerStrength:    0.03,
		collidePad:        6,
		timelineSpacing:   180,
		timelineRowOffset: 70,
		timelineStrength:  0.35,
	}
	if e.compact {
		p.linkDistance = 70
		p.repulsion = 350
		p.timelineSpacing = 110
	}
	if e.mode == ModeTimeline {
		// The year ordering must dominate, so spreading forces are
		// weakened rather than removed.
		p.centerStrength = 0.005
		p.repulsion *= 0.25
	}
	e.p = p
}

// Reconcile swaps in replacement node/link arrays. Every node that
// existed in the previous array by id has its position, velocity and
// pin state copied into its replacement before the simulation sees the
// new arrays; losing that state is what makes graphs visibly jump.
//
// A change in node or link count triggers a high-energy re-settle;
// content-only changes re-settle gently.
func (e *Engine) Reconcile(nodes []*common.Node, links []common.Link) {
	for _, n := range nodes {
		if prev, ok := e.byID[n.ID]; ok && prev != n {
			n.Layout = prev.Layout
		}
	}

	structural := len(nodes) != len(e.nodes) || len(links) != len(e.links)

	e.nodes = nodes
	e.links = links
	e.byID = make(map[int64]*common.Node, len(nodes))
	for _, n := range nodes {
		e.byID[n.ID] = n
	}
	e.ends = e.ends[:0]
	for _, l := range links {
		src, tgt := e.byID[l.Source], e.byID[l.Target]
		if src == nil || tgt == nil {
			continue
		}
		e.ends = append(e.ends, [2]*common.Node{src, tgt})
	}
	e.computeSlots()

	if structural {
		e.alpha = 1
	} else if e.alpha < 0.3 {
		e.alpha = 0.3
	}
}

// Settled reports whether the simulation has cooled below its minimum
// energy.
func (e *Engine) Settled() bool {
	return e.alpha < e.alphaMin
}

// Tick advances the simulation one step. It returns false once settled.
func (e *Engine) Tick() bool {
	if e.Settled() {
		return false
	}
	e.alpha += (0 - e.alpha) * e.alphaDecay

	e.applyLinkForce()
	e.applyManyBodyForce()
	e.applyCenterForce()
	if e.mode == ModeTimeline {
		e.applyTimelineForce()
	}
	e.applyCollideForce()

	for _, n := range e.nodes {
		if n.Layout.Pinned != nil {
			n.Layout.Pos = *n.Layout.Pinned
			n.Layout.Vel = r2.Vec{}
			continue
		}
		n.Layout.Vel = r2.Scale(e.velocityDecay, n.Layout.Vel)
		n.Layout.Pos = r2.Add(n.Layout.Pos, n.Layout.Vel)
	}
	return true
}

// Step runs up to n ticks, stopping early once settled, and reports the
// number of ticks executed.
func (e *Engine) Step(n int) int {
	ran := 0
	for i := 0; i < n; i++ {
		if !e.Tick() {
			break
		}
		ran++
	}
	return ran
}

// collideRadius sizes a node by its visual category: a bare point, a
// text box, or a full card with image. Sized generously so labels do
// not overlap.
func (e *Engine) collideRadius(n *common.Node) float64 {
	r := 10.0
	switch {
	case n.ImageURL != "" && !e.textOnly:
		r = 48
	case n.Summary != "" || n.Description != "":
		r = 26
	}
	if e.compact {
		r *= 0.6
	}
	return r + e.p.collidePad
}

func dist(a, b r2.Vec) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
