package graph

import (
	"slices"

	"github.com/skein-labs/skein/backend/pkg/common"
)

// Prune removes every node of degree <= 1 except keepID, then drops the
// links whose endpoints no longer exist.
func (g *Graph) Prune(keepID int64) {
	degree := make(map[int64]int, len(g.nodes))
	for _, l := range g.links {
		degree[l.Source]++
		degree[l.Target]++
	}
	g.retain(func(n *common.Node) bool {
		return n.ID == keepID || degree[n.ID] > 1
	})
}

// DeleteOutcome is a pure preview of removing a node: the surviving
// node/link sets and everything that would be dropped. It can be shown
// for confirmation before being applied.
type DeleteOutcome struct {
	RootID     int64
	KeptNodes  []*common.Node
	KeptLinks  []common.Link
	DroppedIDs []int64
}

// ComputeDeleteOutcome removes rootID and its incident links, computes
// the connected components of the remainder, and keeps the component
// with the most nodes (first-found wins on ties). Everything else, plus
// the root itself, is dropped. The graph is not modified.
func (g *Graph) ComputeDeleteOutcome(rootID int64) DeleteOutcome {
	adj := make(map[int64][]int64, len(g.nodes))
	var remainingLinks []common.Link
	for _, l := range g.links {
		if l.Source == rootID || l.Target == rootID {
			continue
		}
		adj[l.Source] = append(adj[l.Source], l.Target)
		adj[l.Target] = append(adj[l.Target], l.Source)
		remainingLinks = append(remainingLinks, l)
	}

	visited := make(map[int64]bool, len(g.nodes))
	var best []int64
	for _, n := range g.nodes {
		if n.ID == rootID || visited[n.ID] {
			continue
		}
		component := bfs(n.ID, adj, visited)
		if len(component) > len(best) {
			best = component
		}
	}

	kept := make(map[int64]bool, len(best))
	for _, id := range best {
		kept[id] = true
	}

	outcome := DeleteOutcome{RootID: rootID}
	for _, n := range g.nodes {
		if kept[n.ID] {
			outcome.KeptNodes = append(outcome.KeptNodes, n)
		} else {
			outcome.DroppedIDs = append(outcome.DroppedIDs, n.ID)
		}
	}
	for _, l := range remainingLinks {
		if kept[l.Source] && kept[l.Target] {
			outcome.KeptLinks = append(outcome.KeptLinks, l)
		}
	}
	slices.Sort(outcome.DroppedIDs)
	return outcome
}

// ApplyDeleteOutcome commits a previously computed outcome.
func (g *Graph) ApplyDeleteOutcome(outcome DeleteOutcome) {
	g.Replace(outcome.KeptNodes, outcome.KeptLinks)
}

// bfs walks one connected component, marking nodes visited as it goes.
func bfs(start int64, adj map[int64][]int64, visited map[int64]bool) []int64 {
	visited[start] = true
	component := []int64{start}
	queue := []int64{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adj[cur] {
			if visited[next] {
				continue
			}
			visited[next] = true
			component = append(component, next)
			queue = append(queue, next)
		}
	}
	return component
}
