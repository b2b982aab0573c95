package graph

import (
	"slices"

	"github.com/skein-labs/skein/backend/pkg/common"
)

// Graph is the in-memory set of nodes and links currently materialized
// for display. It owns the transient display copy of each entity; the
// canonical store never sees loading flags or layout state.
//
// Graph is not safe for concurrent use. The session owning it serializes
// all mutation.
type Graph struct {
	nodes []*common.Node
	links []common.Link

	byID    map[int64]*common.Node
	linkIDs map[string]struct{}

	// nextTempID hands out placeholder ids when the canonical store is
	// unavailable. Temp ids are negative and never collide with
	// committed ids.
	nextTempID int64
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		byID:       make(map[int64]*common.Node),
		linkIDs:    make(map[string]struct{}),
		nextTempID: common.PendingID,
	}
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id int64) *common.Node {
	return g.byID[id]
}

// Nodes returns the node slice in insertion order. Callers must not
// reorder it; node pointers may be mutated under the owning session.
func (g *Graph) Nodes() []*common.Node {
	return g.nodes
}

// Links returns the link slice in insertion order.
func (g *Graph) Links() []common.Link {
	return g.links
}

// Len returns the node count.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// AllocTempID hands out the next placeholder id for a node that has not
// been committed to the canonical store.
func (g *Graph) AllocTempID() int64 {
	id := g.nextTempID
	g.nextTempID--
	return id
}

// AddNode inserts a node. Inserting an id that is already present is a
// no-op returning the existing node.
func (g *Graph) AddNode(n *common.Node) *common.Node {
	if existing, ok := g.byID[n.ID]; ok {
		return existing
	}
	g.nodes = append(g.nodes, n)
	g.byID[n.ID] = n
	return n
}

// AddLink inserts a link if its derived id is not already present.
// Links whose endpoints are missing from the graph are rejected.
func (g *Graph) AddLink(source, target int64, label string) bool {
	if source == target {
		return false
	}
	if g.byID[source] == nil || g.byID[target] == nil {
		return false
	}
	l := common.NewLink(source, target, label)
	if _, ok := g.linkIDs[l.ID]; ok {
		return false
	}
	g.links = append(g.links, l)
	g.linkIDs[l.ID] = struct{}{}
	return true
}

// NeighborIDs returns the ids of nodes directly linked to id.
func (g *Graph) NeighborIDs(id int64) []int64 {
	var out []int64
	for _, l := range g.links {
		switch id {
		case l.Source:
			out = append(out, l.Target)
		case l.Target:
			out = append(out, l.Source)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// NeighborTitles returns the titles of nodes directly linked to id, in
// id order.
func (g *Graph) NeighborTitles(id int64) []string {
	ids := g.NeighborIDs(id)
	out := make([]string, 0, len(ids))
	for _, nid := range ids {
		if n := g.byID[nid]; n != nil {
			out = append(out, n.Title)
		}
	}
	return out
}

// Degree returns the number of links incident to id.
func (g *Graph) Degree(id int64) int {
	d := 0
	for _, l := range g.links {
		if l.Source == id || l.Target == id {
			d++
		}
	}
	return d
}

// RemoveNodes drops the given ids and every link touching them.
func (g *Graph) RemoveNodes(ids []int64) {
	drop := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	g.retain(func(n *common.Node) bool {
		_, gone := drop[n.ID]
		return !gone
	})
}

// Clear removes everything.
func (g *Graph) Clear() {
	g.nodes = nil
	g.links = nil
	g.byID = make(map[int64]*common.Node)
	g.linkIDs = make(map[string]struct{})
}

// Replace swaps in a whole new node/link set, deduplicating links by id
// and dropping links with missing endpoints.
func (g *Graph) Replace(nodes []*common.Node, links []common.Link) {
	g.Clear()
	for _, n := range nodes {
		g.AddNode(n)
	}
	for _, l := range links {
		g.AddLink(l.Source, l.Target, l.Label)
	}
}

// retain keeps only nodes passing the predicate and links whose both
// endpoints survive.
func (g *Graph) retain(keep func(*common.Node) bool) {
	kept := g.nodes[:0]
	byID := make(map[int64]*common.Node, len(g.nodes))
	for _, n := range g.nodes {
		if keep(n) {
			kept = append(kept, n)
			byID[n.ID] = n
		}
	}
	g.nodes = kept
	g.byID = byID

	links := g.links[:0]
	linkIDs := make(map[string]struct{}, len(g.links))
	for _, l := range g.links {
		if byID[l.Source] == nil || byID[l.Target] == nil {
			continue
		}
		links = append(links, l)
		linkIDs[l.ID] = struct{}{}
	}
	g.links = links
	g.linkIDs = linkIDs
}
