package common

import "gonum.org/v1/gonum/spatial/r2"

// LayoutState is the mutable physics state the layout engine owns for a
// node. It is carried across node-set replacements by id so the
// simulation never loses motion state.
type LayoutState struct {
	Pos r2.Vec `json:"pos"`
	Vel r2.Vec `json:"vel"`
	// Pinned fixes the node at a position; a nil pin leaves it free.
	Pinned *r2.Vec `json:"pinned,omitempty"`
}

// Pin fixes the node at p.
func (s *LayoutState) Pin(p r2.Vec) {
	pin := p
	s.Pinned = &pin
	s.Pos = p
	s.Vel = r2.Vec{}
}

// Unpin releases a pinned node back to the simulation.
func (s *LayoutState) Unpin() {
	s.Pinned = nil
}
