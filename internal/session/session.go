// Package session holds the per-user exploration state: one graph, one
// layout engine and one expansion pipeline per session. All mutation
// of a session's graph and layout goes through its mutex; network work
// runs outside it.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/skein-labs/skein/backend/pkg/common"
	"github.com/skein-labs/skein/backend/pkg/document"
	"github.com/skein-labs/skein/backend/pkg/expand"
	"github.com/skein-labs/skein/backend/pkg/graph"
	"github.com/skein-labs/skein/backend/pkg/layout"
	"github.com/skein-labs/skein/backend/pkg/provider"

	"gonum.org/v1/gonum/spatial/r2"
)

// settleSteps is how many simulation ticks run server-side after a
// structural change before positions are reported.
const settleSteps = 300

// Session is one exploration surface.
type Session struct {
	ID string

	mu       sync.Mutex
	graph    *graph.Graph
	engine   *layout.Engine
	expander *expand.Expander
	enricher *expand.Enricher

	textOnly   bool
	lastActive time.Time
}

// Params configures a new session.
type Params struct {
	ID      string
	Cache   expand.CacheStore
	Gateway provider.Gateway
}

// New creates an empty session.
func New(params Params) *Session {
	s := &Session{
		ID:         params.ID,
		graph:      graph.New(),
		engine:     layout.NewEngine(),
		lastActive: time.Now(),
	}
	s.expander = expand.New(expand.Params{
		Mutex:   &s.mu,
		Graph:   s.graph,
		Cache:   params.Cache,
		Gateway: params.Gateway,
	})
	s.enricher = expand.NewEnricher(expand.EnricherParams{
		Mutex:   &s.mu,
		Graph:   s.graph,
		Engine:  s.engine,
		Gateway: params.Gateway,
	})
	return s
}

// Snapshot is the wire form of the session state.
type Snapshot struct {
	SessionID string         `json:"sessionId"`
	Nodes     []common.Node  `json:"nodes"`
	Links     []common.Link  `json:"links"`
	Mode      string         `json:"mode"`
	Compact   bool           `json:"compact"`
	TextOnly  bool           `json:"textOnly"`
	Settled   bool           `json:"settled"`
}

// Touch records activity for idle cleanup.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// IdleSince reports the last activity time.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Start seeds the session with a root entity and runs its initial
// expansion.
func (s *Session) Start(ctx context.Context, title string) (*expand.Result, error) {
	root, err := s.expander.Seed(ctx, title)
	if err != nil {
		return nil, err
	}
	res, err := s.expander.ExpandInitial(ctx, root.ID)
	if err != nil {
		return nil, fmt.Errorf("initial expansion: %w", err)
	}
	s.reconcile()
	return res, nil
}

// Expand expands one node and settles the layout.
func (s *Session) Expand(ctx context.Context, nodeID int64) (*expand.Result, error) {
	res, err := s.expander.Expand(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	s.reconcile()
	return res, nil
}

// ExpandMore re-expands an already expanded node for additional
// neighbors.
func (s *Session) ExpandMore(ctx context.Context, nodeID int64) (*expand.Result, error) {
	res, err := s.expander.ExpandMore(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	s.reconcile()
	return res, nil
}

// ExpandPath expands a chain of titles hop by hop.
func (s *Session) ExpandPath(ctx context.Context, titles []string) ([]int64, error) {
	hops, err := s.expander.ExpandPath(ctx, titles)
	if err != nil {
		return hops, err
	}
	s.reconcile()
	return hops, nil
}

// Prune removes loose ends, keeping the given node regardless of its
// degree.
func (s *Session) Prune(keepID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := s.graph.Len()
	s.graph.Prune(keepID)
	s.reconcileLocked()
	return before - s.graph.Len()
}

// DeletePreview reports what removing a node would do to the graph
// without touching it.
func (s *Session) DeletePreview(rootID int64) (graph.DeleteOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.graph.Node(rootID) == nil {
		return graph.DeleteOutcome{}, fmt.Errorf("node %d not in graph", rootID)
	}
	return s.graph.ComputeDeleteOutcome(rootID), nil
}

// DeleteApply removes a node and every component disconnected by its
// removal.
func (s *Session) DeleteApply(rootID int64) (graph.DeleteOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.graph.Node(rootID) == nil {
		return graph.DeleteOutcome{}, fmt.Errorf("node %d not in graph", rootID)
	}
	outcome := s.graph.ComputeDeleteOutcome(rootID)
	s.graph.ApplyDeleteOutcome(outcome)
	s.reconcileLocked()
	return outcome, nil
}

// SetLayout switches layout mode and density.
func (s *Session) SetLayout(mode layout.Mode, compact bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.Configure(mode, compact)
	s.engine.Step(settleSteps)
}

// SetTextOnly toggles image loading for the whole session.
func (s *Session) SetTextOnly(on bool) {
	s.mu.Lock()
	s.textOnly = on
	s.engine.SetTextOnly(on)
	s.mu.Unlock()
	s.enricher.SetTextOnly(on)
}

// ReportViewport triggers enrichment for the visible region.
func (s *Session) ReportViewport(ctx context.Context, v layout.Viewport, margin float64) int {
	return s.enricher.EnrichViewport(ctx, v, margin)
}

// Reselect re-runs enrichment for one node on explicit user focus.
func (s *Session) Reselect(ctx context.Context, nodeID int64) {
	s.enricher.Recheck(ctx, nodeID)
}

// Pin fixes a node at a position; Unpin releases it.
func (s *Session) Pin(nodeID int64, x, y float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	node := s.graph.Node(nodeID)
	if node == nil {
		return fmt.Errorf("node %d not in graph", nodeID)
	}
	node.Layout.Pin(r2.Vec{X: x, Y: y})
	return nil
}

func (s *Session) Unpin(nodeID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	node := s.graph.Node(nodeID)
	if node == nil {
		return fmt.Errorf("node %d not in graph", nodeID)
	}
	node.Layout.Unpin()
	return nil
}

// Export captures the session as a portable document.
func (s *Session) Export() *document.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return document.Encode(s.graph, s.engine.Mode(), s.engine.Compact(), s.textOnly)
}

// Import replaces the session content with a document.
func (s *Session) Import(doc *document.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc.Apply(s.graph)
	s.textOnly = doc.TextOnly
	s.engine.SetTextOnly(doc.TextOnly)
	s.engine.Configure(layout.ParseMode(doc.Mode), doc.Compact)
	s.reconcileLocked()
	s.enricher.SetTextOnly(doc.TextOnly)
}

// Snapshot returns the current graph and layout state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	nodes := s.graph.Nodes()
	out := Snapshot{
		SessionID: s.ID,
		Nodes:     make([]common.Node, 0, len(nodes)),
		Links:     s.graph.Links(),
		Mode:      s.engine.Mode().String(),
		Compact:   s.engine.Compact(),
		TextOnly:  s.textOnly,
		Settled:   s.engine.Settled(),
	}
	for _, n := range nodes {
		out.Nodes = append(out.Nodes, *n)
	}
	return out
}

// FrontierNode is an unexpanded neighbor eligible for cache prefetch.
type FrontierNode struct {
	ID    int64
	Title string
	Type  common.NodeType
}

// Frontier lists the unexpanded, canonically-identified neighbors of a
// node, plus the node's own title for use as prefetch context.
func (s *Session) Frontier(nodeID int64) ([]FrontierNode, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node := s.graph.Node(nodeID)
	if node == nil {
		return nil, ""
	}
	var out []FrontierNode
	for _, id := range s.graph.NeighborIDs(nodeID) {
		n := s.graph.Node(id)
		if n == nil || n.Expanded || n.Loading || n.ID <= 0 {
			continue
		}
		out = append(out, FrontierNode{ID: n.ID, Title: n.Title, Type: n.Type})
	}
	return out, node.Title
}

func (s *Session) reconcile() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconcileLocked()
}

func (s *Session) reconcileLocked() {
	s.engine.Reconcile(s.graph.Nodes(), s.graph.Links())
	s.engine.Step(settleSteps)
}
