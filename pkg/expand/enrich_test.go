package expand

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/skein-labs/skein/backend/pkg/common"
	"github.com/skein-labs/skein/backend/pkg/graph"
	"github.com/skein-labs/skein/backend/pkg/layout"
	"github.com/skein-labs/skein/backend/pkg/provider"

	"golang.org/x/time/rate"
)

// enrichGateway answers summary lookups from a fixed table.
type enrichGateway struct {
	mu      sync.Mutex
	results map[string]*provider.Enrichment
	errs    map[string]error
	calls   map[string]int
}

func (f *enrichGateway) Classify(ctx context.Context, title string) (common.NodeType, error) {
	return common.NodeThing, nil
}

func (f *enrichGateway) FetchNeighbors(ctx context.Context, req provider.NeighborRequest) ([]common.Candidate, error) {
	return nil, nil
}

func (f *enrichGateway) FetchSummaryAndImage(ctx context.Context, title, contextHint string) (*provider.Enrichment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[title]++
	if err := f.errs[title]; err != nil {
		return nil, err
	}
	if res := f.results[title]; res != nil {
		return res, nil
	}
	return &provider.Enrichment{}, nil
}

func (f *enrichGateway) callCount(title string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[title]
}

func newTestEnricher(gw provider.Gateway) (*Enricher, *graph.Graph, *layout.Engine) {
	var mu sync.Mutex
	g := graph.New()
	engine := layout.NewEngine()
	e := NewEnricher(EnricherParams{
		Mutex:   &mu,
		Graph:   g,
		Engine:  engine,
		Gateway: gw,
		Rate:    rate.Inf,
	})
	return e, g, engine
}

func wideViewport() layout.Viewport {
	return layout.Viewport{MinX: -1000, MinY: -1000, MaxX: 1000, MaxY: 1000}
}

func TestEnrichViewportMarksCheckedRegardless(t *testing.T) {
	gw := &enrichGateway{
		results: map[string]*provider.Enrichment{
			"Vienna": {Summary: "Capital of Austria.", ImageURL: "https://img.example/vienna.jpg"},
		},
		errs: map[string]error{
			"Graz": errors.New("lookup failed"),
		},
	}
	e, g, engine := newTestEnricher(gw)
	g.AddNode(&common.Node{ID: 1, Title: "Vienna"})
	g.AddNode(&common.Node{ID: 2, Title: "Graz"})
	g.AddNode(&common.Node{ID: 3, Title: "Linz"}) // empty lookup
	engine.Reconcile(g.Nodes(), g.Links())

	checked := e.EnrichViewport(context.Background(), wideViewport(), 0)
	if checked != 3 {
		t.Fatalf("checked = %d, want 3", checked)
	}

	for _, id := range []int64{1, 2, 3} {
		if !g.Node(id).ImageChecked {
			t.Fatalf("node %d not marked checked", id)
		}
	}
	if g.Node(1).ImageURL != "https://img.example/vienna.jpg" {
		t.Fatalf("vienna image = %q", g.Node(1).ImageURL)
	}
	if g.Node(2).ImageURL != "" || g.Node(3).ImageURL != "" {
		t.Fatal("failed/empty lookups must not set images")
	}
}

func TestEnrichViewportChecksOnlyOnce(t *testing.T) {
	gw := &enrichGateway{}
	e, g, engine := newTestEnricher(gw)
	g.AddNode(&common.Node{ID: 1, Title: "Vienna"})
	engine.Reconcile(g.Nodes(), g.Links())

	e.EnrichViewport(context.Background(), wideViewport(), 0)
	checked := e.EnrichViewport(context.Background(), wideViewport(), 0)
	if checked != 0 {
		t.Fatalf("second pass checked %d nodes, want 0", checked)
	}
	if gw.callCount("Vienna") != 1 {
		t.Fatalf("calls = %d, want 1", gw.callCount("Vienna"))
	}
}

func TestEnrichViewportSkipsOffscreenNodes(t *testing.T) {
	gw := &enrichGateway{}
	e, g, engine := newTestEnricher(gw)
	onscreen := &common.Node{ID: 1, Title: "Vienna"}
	offscreen := &common.Node{ID: 2, Title: "Graz"}
	offscreen.Layout.Pos.X = 5000
	g.AddNode(onscreen)
	g.AddNode(offscreen)
	engine.Reconcile(g.Nodes(), g.Links())

	e.EnrichViewport(context.Background(), layout.Viewport{MinX: -100, MinY: -100, MaxX: 100, MaxY: 100}, 50)
	if !g.Node(1).ImageChecked {
		t.Fatal("onscreen node not checked")
	}
	if g.Node(2).ImageChecked {
		t.Fatal("offscreen node should not be checked")
	}
}

func TestEnrichViewportTextOnlyIsNoop(t *testing.T) {
	gw := &enrichGateway{}
	e, g, engine := newTestEnricher(gw)
	g.AddNode(&common.Node{ID: 1, Title: "Vienna"})
	engine.Reconcile(g.Nodes(), g.Links())

	e.SetTextOnly(true)
	if checked := e.EnrichViewport(context.Background(), wideViewport(), 0); checked != 0 {
		t.Fatalf("text-only pass checked %d nodes", checked)
	}
	if g.Node(1).ImageChecked {
		t.Fatal("text-only mode must leave nodes unchecked")
	}

	e.SetTextOnly(false)
	e.EnrichViewport(context.Background(), wideViewport(), 0)
	if !g.Node(1).ImageChecked {
		t.Fatal("node should be checked after toggle off")
	}
}

func TestRecheckOverridesCheckedFlag(t *testing.T) {
	gw := &enrichGateway{
		results: map[string]*provider.Enrichment{
			"Vienna": {Summary: "Updated summary.", ImageURL: "https://img.example/new.jpg"},
		},
	}
	e, g, engine := newTestEnricher(gw)
	node := &common.Node{ID: 1, Title: "Vienna", Summary: "Old summary.", ImageChecked: true}
	g.AddNode(node)
	engine.Reconcile(g.Nodes(), g.Links())

	e.Recheck(context.Background(), 1)
	if node.Summary != "Updated summary." {
		t.Fatalf("summary = %q", node.Summary)
	}
	if node.ImageURL != "https://img.example/new.jpg" {
		t.Fatalf("image = %q", node.ImageURL)
	}
}
