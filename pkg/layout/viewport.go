package layout

// Viewport is the visible region in simulation coordinates.
type Viewport struct {
	MinX float64 `json:"minX"`
	MinY float64 `json:"minY"`
	MaxX float64 `json:"maxX"`
	MaxY float64 `json:"maxY"`
}

// VisibleWithin reports which nodes currently sit inside the viewport,
// expanded by margin on every side. Called when an interaction settles
// to drive opportunistic enrichment.
func (e *Engine) VisibleWithin(v Viewport, margin float64) []int64 {
	var out []int64
	for _, n := range e.nodes {
		p := n.Layout.Pos
		if p.X >= v.MinX-margin && p.X <= v.MaxX+margin &&
			p.Y >= v.MinY-margin && p.Y <= v.MaxY+margin {
			out = append(out, n.ID)
		}
	}
	return out
}
