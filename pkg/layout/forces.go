package layout

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// applyLinkForce pulls linked nodes toward the configured link distance.
func (e *Engine) applyLinkForce() {
	for _, pair := range e.ends {
		src, tgt := pair[0], pair[1]
		delta := r2.Sub(
			r2.Add(tgt.Layout.Pos, tgt.Layout.Vel),
			r2.Add(src.Layout.Pos, src.Layout.Vel),
		)
		d := math.Hypot(delta.X, delta.Y)
		if d == 0 {
			// Coincident endpoints get a tiny deterministic separation.
			delta = r2.Vec{X: 0.5, Y: 0.5}
			d = math.Hypot(delta.X, delta.Y)
		}
		f := (d - e.p.linkDistance) / d * e.p.linkStrength * e.alpha
		push := r2.Scale(f*0.5, delta)
		tgt.Layout.Vel = r2.Sub(tgt.Layout.Vel, push)
		src.Layout.Vel = r2.Add(src.Layout.Vel, push)
	}
}

// applyManyBodyForce repels every node pair with an inverse-square
// falloff. Interactive graphs stay small enough that the quadratic pass
// beats the bookkeeping cost of a quadtree.
func (e *Engine) applyManyBodyForce() {
	for i := 0; i < len(e.nodes); i++ {
		a := e.nodes[i]
		for j := i + 1; j < len(e.nodes); j++ {
			b := e.nodes[j]
			delta := r2.Sub(b.Layout.Pos, a.Layout.Pos)
			d2 := delta.X*delta.X + delta.Y*delta.Y
			if d2 < 1 {
				d2 = 1
			}
			f := e.p.repulsion * e.alpha / d2
			d := math.Sqrt(d2)
			push := r2.Scale(f/d, delta)
			b.Layout.Vel = r2.Add(b.Layout.Vel, push)
			a.Layout.Vel = r2.Sub(a.Layout.Vel, push)
		}
	}
}

// applyCenterForce nudges everything weakly toward the origin. In
// timeline mode only nodes without a slot feel it at full strength, so
// undated nodes stay loosely centered while dated ones obey their slot.
func (e *Engine) applyCenterForce() {
	for _, n := range e.nodes {
		if e.mode == ModeTimeline {
			if _, slotted := e.slots[n.ID]; slotted {
				continue
			}
		}
		n.Layout.Vel = r2.Sub(n.Layout.Vel, r2.Scale(e.p.centerStrength*e.alpha, n.Layout.Pos))
	}
}

// applyTimelineForce drives slotted nodes toward their fixed horizontal
// slot; its strength dwarfs the weakened spreading forces so the year
// ordering dominates.
func (e *Engine) applyTimelineForce() {
	for _, n := range e.nodes {
		target, ok := e.slots[n.ID]
		if !ok {
			continue
		}
		delta := r2.Sub(target, n.Layout.Pos)
		n.Layout.Vel = r2.Add(n.Layout.Vel, r2.Scale(e.p.timelineStrength*e.alpha, delta))
	}
}

// applyCollideForce pushes overlapping nodes apart based on their visual
// category radius. Always active in every mode.
func (e *Engine) applyCollideForce() {
	for i := 0; i < len(e.nodes); i++ {
		a := e.nodes[i]
		ra := e.collideRadius(a)
		for j := i + 1; j < len(e.nodes); j++ {
			b := e.nodes[j]
			rb := e.collideRadius(b)
			minDist := ra + rb
			delta := r2.Sub(b.Layout.Pos, a.Layout.Pos)
			d := math.Hypot(delta.X, delta.Y)
			if d >= minDist {
				continue
			}
			if d == 0 {
				delta = r2.Vec{X: 1, Y: 0}
				d = 1
			}
			overlap := (minDist - d) / d * 0.5
			push := r2.Scale(overlap, delta)
			b.Layout.Vel = r2.Add(b.Layout.Vel, push)
			a.Layout.Vel = r2.Sub(a.Layout.Vel, push)
		}
	}
}
