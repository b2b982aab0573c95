package graph

import (
	"math/rand"

	"github.com/skein-labs/skein/backend/pkg/common"

	"gonum.org/v1/gonum/spatial/r2"
)

// jitterRadius spreads newly created nodes around their expansion source
// so the simulation can untangle them instead of stacking them.
const jitterRadius = 40.0

// Incoming is a canonical node together with the label of the edge that
// connects it to the expansion source.
type Incoming struct {
	Node  common.Node
	Label string
}

// Merge folds a set of canonical nodes into the graph as neighbors of
// sourceID. For nodes already present by id, authoritative fields
// (title, type, description, year) are overwritten from the incoming
// record while locally-known optional fields survive when the incoming
// record leaves them unset. New nodes are placed with a position
// jittered near the expanding node.
//
// A link between sourceID and each incoming node is added unless its
// derived id already exists. Merging the same canonical set twice yields
// the same node/link contents, modulo placement jitter for new nodes.
func (g *Graph) Merge(incoming []Incoming, sourceID int64) {
	origin := r2.Vec{}
	if src := g.byID[sourceID]; src != nil {
		origin = src.Layout.Pos
	}

	for i := range incoming {
		in := incoming[i].Node
		if in.ID == sourceID {
			continue
		}
		existing := g.byID[in.ID]
		if existing == nil {
			n := in
			n.Layout.Pos = r2.Vec{
				X: origin.X + (rand.Float64()*2-1)*jitterRadius,
				Y: origin.Y + (rand.Float64()*2-1)*jitterRadius,
			}
			n.Layout.Vel = r2.Vec{}
			g.AddNode(&n)
		} else {
			existing.Title = in.Title
			existing.Type = in.Type
			existing.Description = in.Description
			if in.Year != nil {
				existing.Year = in.Year
			}
			if in.ExternalRef != "" {
				existing.ExternalRef = in.ExternalRef
			}
			if in.ImageURL != "" {
				existing.ImageURL = in.ImageURL
			}
			if in.Summary != "" {
				existing.Summary = in.Summary
			}
		}
		g.AddLink(sourceID, in.ID, incoming[i].Label)
	}
}
