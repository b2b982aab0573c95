package layout

import (
	"sort"

	"github.com/skein-labs/skein/backend/pkg/common"

	"gonum.org/v1/gonum/spatial/r2"
)

// computeSlots assigns each dated node a fixed horizontal slot. Nodes
// are ordered by (year, id), spaced uniformly, with an alternating
// vertical offset per slot to reduce label overlap. Nodes without a
// year get no slot and are handled by the centering force instead.
func (e *Engine) computeSlots() {
	if e.mode != ModeTimeline {
		e.slots = nil
		return
	}

	dated := make([]*common.Node, 0, len(e.nodes))
	for _, n := range e.nodes {
		if n.Year != nil {
			dated = append(dated, n)
		}
	}
	sort.Slice(dated, func(i, j int) bool {
		yi, yj := *dated[i].Year, *dated[j].Year
		if yi != yj {
			return yi < yj
		}
		return dated[i].ID < dated[j].ID
	})

	e.slots = make(map[int64]r2.Vec, len(dated))
	width := float64(len(dated)-1) * e.p.timelineSpacing
	for i, n := range dated {
		y := e.p.timelineRowOffset
		if i%2 == 1 {
			y = -y
		}
		e.slots[n.ID] = r2.Vec{
			X: float64(i)*e.p.timelineSpacing - width/2,
			Y: y,
		}
	}
}

// SlotOrder returns the ids of dated nodes in their timeline order.
// Useful for rendering the axis; empty outside timeline mode.
func (e *Engine) SlotOrder() []int64 {
	if e.mode != ModeTimeline {
		return nil
	}
	type slotted struct {
		id int64
		x  float64
	}
	out := make([]slotted, 0, len(e.slots))
	for id, v := range e.slots {
		out = append(out, slotted{id: id, x: v.X})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].x < out[j].x })
	ids := make([]int64, len(out))
	for i, s := range out {
		ids[i] = s.id
	}
	return ids
}
