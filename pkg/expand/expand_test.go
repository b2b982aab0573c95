package expand

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/skein-labs/skein/backend/pkg/cache"
	"github.com/skein-labs/skein/backend/pkg/common"
	"github.com/skein-labs/skein/backend/pkg/graph"
	"github.com/skein-labs/skein/backend/pkg/provider"
)

// memCache is an in-memory cache store keyed by source id and context
// fingerprint, close enough to the real store for pipeline tests.
type memCache struct {
	mu         sync.Mutex
	nextID     int64
	nodeIDs    map[string]int64
	expansions map[string][]cache.Node

	lookups int
	writes  int
	failAll bool
}

func newMemCache() *memCache {
	return &memCache{
		nextID:     100,
		nodeIDs:    make(map[string]int64),
		expansions: make(map[string][]cache.Node),
	}
}

func (m *memCache) key(sourceID int64, contextIDs []int64) string {
	return fmt.Sprintf("%d:%s", sourceID, common.ContextFingerprint(contextIDs))
}

func (m *memCache) UpsertNode(ctx context.Context, node cache.Node) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return 0, errors.New("cache unavailable")
	}
	key := fmt.Sprintf("%s|%v|%s", node.Title, node.Type, node.ExternalRef)
	if id, ok := m.nodeIDs[key]; ok {
		return id, nil
	}
	m.nextID++
	m.nodeIDs[key] = m.nextID
	return m.nextID, nil
}

func (m *memCache) LookupExpansion(ctx context.Context, sourceID int64, contextIDs []int64) (*cache.LookupResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if m.failAll {
		return nil, errors.New("cache unavailable")
	}
	if nodes, ok := m.expansions[m.key(sourceID, contextIDs)]; ok {
		return &cache.LookupResult{Hit: true, Exact: true, Nodes: nodes}, nil
	}
	return &cache.LookupResult{}, nil
}

func (m *memCache) WriteExpansion(ctx context.Context, sourceID int64, contextIDs []int64, nodes []cache.Node) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if m.failAll {
		return nil, errors.New("cache unavailable")
	}
	ids := make([]int64, len(nodes))
	stored := make([]cache.Node, len(nodes))
	for i, n := range nodes {
		key := fmt.Sprintf("%s|%v|%s", n.Title, n.Type, n.ExternalRef)
		id, ok := m.nodeIDs[key]
		if !ok {
			m.nextID++
			id = m.nextID
			m.nodeIDs[key] = id
		}
		ids[i] = id
		stored[i] = n
		stored[i].ID = id
	}
	m.expansions[m.key(sourceID, contextIDs)] = stored
	return ids, nil
}

// fakeGateway serves canned candidates and counts calls.
type fakeGateway struct {
	mu            sync.Mutex
	classifyType  common.NodeType
	candidates    []common.Candidate
	neighborErr   error
	neighborCalls int
	summaryCalls  int
}

func (f *fakeGateway) Classify(ctx context.Context, title string) (common.NodeType, error) {
	return f.classifyType, nil
}

func (f *fakeGateway) FetchNeighbors(ctx context.Context, req provider.NeighborRequest) ([]common.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.neighborCalls++
	if f.neighborErr != nil {
		return nil, f.neighborErr
	}
	return f.candidates, nil
}

func (f *fakeGateway) FetchSummaryAndImage(ctx context.Context, title, contextHint string) (*provider.Enrichment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaryCalls++
	return &provider.Enrichment{Summary: "about " + title}, nil
}

func year(y int) *int { return &y }

func personCandidates() []common.Candidate {
	return []common.Candidate{
		{Title: "Ludwig van Beethoven", Type: common.NodePerson, Description: "Composer", Year: year(1770), Role: "composer"},
		{Title: "Antonio Salieri", Type: common.NodePerson, Description: "Composer and rival", Role: "rival"},
		{Title: "Joseph Haydn", Type: common.NodePerson, Description: "Mentor figure", Year: year(1732), Role: "mentor"},
	}
}

func newTestExpander(c CacheStore, g provider.Gateway) (*Expander, *graph.Graph, *sync.Mutex) {
	var mu sync.Mutex
	gr := graph.New()
	e := New(Params{Mutex: &mu, Graph: gr, Cache: c, Gateway: g})
	return e, gr, &mu
}

func seedRoot(g *graph.Graph, id int64, title string, t common.NodeType) {
	g.AddNode(&common.Node{ID: id, Title: title, Type: t})
}

func TestExpandThingProducesPeople(t *testing.T) {
	gw := &fakeGateway{candidates: personCandidates()}
	store := newMemCache()
	e, g, _ := newTestExpander(store, gw)
	seedRoot(g, 1, "The Magic Flute", common.NodeThing)

	res, err := e.Expand(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Added != 3 {
		t.Fatalf("added = %d, want 3", res.Added)
	}
	if g.Len() != 4 {
		t.Fatalf("graph size = %d, want 4", g.Len())
	}
	root := g.Node(1)
	if !root.Expanded || root.Loading {
		t.Fatalf("root state after expand: expanded=%v loading=%v", root.Expanded, root.Loading)
	}
	if len(g.Links()) != 3 {
		t.Fatalf("links = %d, want 3", len(g.Links()))
	}
	for _, n := range g.Nodes() {
		if n.ID <= 0 {
			t.Fatalf("node %q kept non-canonical id %d", n.Title, n.ID)
		}
	}
	if gw.summaryCalls != 3 {
		t.Fatalf("summary calls = %d, want 3", gw.summaryCalls)
	}
}

func TestExpandIsSingleRoundTrip(t *testing.T) {
	gw := &fakeGateway{candidates: personCandidates()}
	e, g, _ := newTestExpander(newMemCache(), gw)
	seedRoot(g, 1, "The Magic Flute", common.NodeThing)

	if _, err := e.Expand(context.Background(), 1); err != nil {
		t.Fatalf("first expand: %v", err)
	}
	res, err := e.Expand(context.Background(), 1)
	if err != nil {
		t.Fatalf("second expand: %v", err)
	}
	if !res.Skipped {
		t.Fatal("second expand of same node should be skipped")
	}
	if gw.neighborCalls != 1 {
		t.Fatalf("neighbor calls = %d, want 1", gw.neighborCalls)
	}
}

func TestExpandMoreBypassesExpandedGuard(t *testing.T) {
	gw := &fakeGateway{candidates: personCandidates()}
	e, g, mu := newTestExpander(newMemCache(), gw)
	seedRoot(g, 1, "The Magic Flute", common.NodeThing)

	if _, err := e.Expand(context.Background(), 1); err != nil {
		t.Fatalf("first expand: %v", err)
	}

	gw.mu.Lock()
	gw.candidates = []common.Candidate{
		{Title: "Emanuel Schikaneder", Type: common.NodePerson, Description: "Librettist", Role: "librettist"},
	}
	gw.mu.Unlock()

	res, err := e.ExpandMore(context.Background(), 1)
	if err != nil {
		t.Fatalf("expand more: %v", err)
	}
	if res.Skipped {
		t.Fatal("expand more should not skip an expanded node")
	}
	if res.FromCache {
		t.Fatal("expand more should not be served from cache")
	}
	if res.Added != 1 {
		t.Fatalf("added = %d, want 1", res.Added)
	}
	if g.Len() != 5 {
		t.Fatalf("graph size = %d, want 5", g.Len())
	}
	if gw.neighborCalls != 2 {
		t.Fatalf("neighbor calls = %d, want 2", gw.neighborCalls)
	}

	mu.Lock()
	defer mu.Unlock()
	root := g.Node(1)
	if !root.Expanded || root.Loading {
		t.Fatalf("root state after expand more: expanded=%v loading=%v", root.Expanded, root.Loading)
	}
}

func TestExpandLoadingGuard(t *testing.T) {
	gw := &fakeGateway{candidates: personCandidates()}
	e, g, mu := newTestExpander(newMemCache(), gw)
	seedRoot(g, 1, "The Magic Flute", common.NodeThing)

	mu.Lock()
	g.Node(1).Loading = true
	mu.Unlock()

	res, err := e.Expand(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Skipped {
		t.Fatal("expansion in flight should skip")
	}
	if gw.neighborCalls != 0 {
		t.Fatalf("neighbor calls = %d, want 0", gw.neighborCalls)
	}
}

func TestSecondSessionHitsCache(t *testing.T) {
	store := newMemCache()
	gw := &fakeGateway{candidates: personCandidates()}

	e1, g1, _ := newTestExpander(store, gw)
	seedRoot(g1, 1, "The Magic Flute", common.NodeThing)
	if _, err := e1.Expand(context.Background(), 1); err != nil {
		t.Fatalf("first session expand: %v", err)
	}

	// Same source, same (empty) context in a fresh session.
	e2, g2, _ := newTestExpander(store, gw)
	seedRoot(g2, 1, "The Magic Flute", common.NodeThing)
	res, err := e2.Expand(context.Background(), 1)
	if err != nil {
		t.Fatalf("second session expand: %v", err)
	}
	if !res.FromCache || !res.Exact {
		t.Fatalf("expected exact cache hit, got %+v", res)
	}
	if gw.neighborCalls != 1 {
		t.Fatalf("neighbor calls = %d, want 1 (second expansion served from cache)", gw.neighborCalls)
	}
	if g2.Len() != g1.Len() {
		t.Fatalf("cache replay produced %d nodes, original %d", g2.Len(), g1.Len())
	}
}

func TestExpandEmptyInitialIsHardFailure(t *testing.T) {
	gw := &fakeGateway{}
	e, g, _ := newTestExpander(newMemCache(), gw)
	seedRoot(g, 1, "Unheard Of", common.NodeThing)

	_, err := e.ExpandInitial(context.Background(), 1)
	if !errors.Is(err, common.ErrNoResults) {
		t.Fatalf("expected ErrNoResults, got %v", err)
	}
	if g.Len() != 0 {
		t.Fatalf("graph should be reset after failed initial expansion, has %d nodes", g.Len())
	}
}

func TestExpandSingleNodeGraphIsNotInitial(t *testing.T) {
	gw := &fakeGateway{}
	e, g, _ := newTestExpander(newMemCache(), gw)
	seedRoot(g, 7, "Imported Root", common.NodeThing)

	res, err := e.Expand(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Terminal {
		t.Fatal("empty regular expansion should be terminal, not a hard failure")
	}
	if g.Len() != 1 {
		t.Fatalf("graph should keep its node, has %d", g.Len())
	}
	node := g.Node(7)
	if !node.Expanded || node.Loading {
		t.Fatalf("node state: expanded=%v loading=%v", node.Expanded, node.Loading)
	}
}

func TestExpandEmptyLaterIsTerminal(t *testing.T) {
	gw := &fakeGateway{}
	e, g, _ := newTestExpander(newMemCache(), gw)
	seedRoot(g, 1, "Root", common.NodeThing)
	seedRoot(g, 2, "Leaf", common.NodePerson)
	g.AddLink(1, 2, "")

	res, err := e.Expand(context.Background(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Terminal {
		t.Fatal("empty non-initial expansion should be terminal")
	}
	leaf := g.Node(2)
	if !leaf.Expanded || leaf.Loading {
		t.Fatalf("leaf state: expanded=%v loading=%v", leaf.Expanded, leaf.Loading)
	}
	if g.Len() != 2 {
		t.Fatalf("graph size changed: %d", g.Len())
	}
}

func TestExpandProviderErrorClearsLoading(t *testing.T) {
	gw := &fakeGateway{neighborErr: errors.New("model offline")}
	e, g, _ := newTestExpander(newMemCache(), gw)
	seedRoot(g, 1, "Root", common.NodeThing)

	if _, err := e.Expand(context.Background(), 1); err == nil {
		t.Fatal("expected error")
	}
	root := g.Node(1)
	if root.Loading {
		t.Fatal("loading flag must be cleared after failure")
	}
	if root.Expanded {
		t.Fatal("failed expansion must not mark the node expanded")
	}
}

func TestExpandCacheFailureFallsBackToTempIDs(t *testing.T) {
	store := newMemCache()
	store.failAll = true
	gw := &fakeGateway{candidates: personCandidates()}
	e, g, _ := newTestExpander(store, gw)
	seedRoot(g, 1, "The Magic Flute", common.NodeThing)

	res, err := e.Expand(context.Background(), 1)
	if err != nil {
		t.Fatalf("cache failure must not fail the expansion: %v", err)
	}
	if res.Added != 3 {
		t.Fatalf("added = %d, want 3", res.Added)
	}
	temp := 0
	for _, n := range g.Nodes() {
		if n.ID < 0 {
			temp++
		}
	}
	if temp != 3 {
		t.Fatalf("expected 3 temporary ids, got %d", temp)
	}
}

func TestExpandStaleResultDiscarded(t *testing.T) {
	gw := &fakeGateway{candidates: personCandidates()}
	e, g, mu := newTestExpander(nil, gw)
	seedRoot(g, 1, "Root", common.NodeThing)
	seedRoot(g, 2, "Doomed", common.NodePerson)
	g.AddLink(1, 2, "")

	// Simulate the node disappearing while the provider call runs by
	// removing it between snapshot and commit.
	mu.Lock()
	node := g.Node(2)
	node.Loading = true
	mu.Unlock()

	g.RemoveNodes([]int64{2})
	res, err := e.Expand(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Skipped {
		t.Fatal("root expansion should proceed")
	}
	if g.Node(2) != nil {
		t.Fatal("removed node resurfaced")
	}
}

func TestSeedUsesCanonicalID(t *testing.T) {
	store := newMemCache()
	gw := &fakeGateway{classifyType: common.NodePerson}
	e, g, _ := newTestExpander(store, gw)

	node, err := e.Seed(context.Background(), "Wolfgang Amadeus Mozart")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if node.ID <= 0 {
		t.Fatalf("seed id = %d, want canonical positive id", node.ID)
	}
	if node.Type != common.NodePerson {
		t.Fatalf("type = %v, want person", node.Type)
	}
	if g.Len() != 1 {
		t.Fatalf("graph size = %d, want 1", g.Len())
	}

	again, err := e.Seed(context.Background(), "Wolfgang Amadeus Mozart")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.ID != node.ID {
		t.Fatalf("re-seed changed id: %d vs %d", again.ID, node.ID)
	}
}

func TestSeedWithoutCacheUsesTempID(t *testing.T) {
	gw := &fakeGateway{classifyType: common.NodeThing}
	e, _, _ := newTestExpander(nil, gw)

	node, err := e.Seed(context.Background(), "Requiem")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if node.ID >= 0 {
		t.Fatalf("expected temporary negative id, got %d", node.ID)
	}
}

func TestExpandPathOrderedHops(t *testing.T) {
	store := newMemCache()
	gw := &fakeGateway{classifyType: common.NodePerson, candidates: personCandidates()}
	e, g, _ := newTestExpander(store, gw)

	hops, err := e.ExpandPath(context.Background(), []string{"Mozart", "Beethoven", "Haydn"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hops) != 3 {
		t.Fatalf("hops = %d, want 3", len(hops))
	}
	for i := 1; i < len(hops); i++ {
		found := false
		for _, l := range g.Links() {
			if (l.Source == hops[i-1] && l.Target == hops[i]) || (l.Source == hops[i] && l.Target == hops[i-1]) {
				found = true
			}
		}
		if !found {
			t.Fatalf("hop %d not linked to hop %d", i-1, i)
		}
	}
}

func TestExpandPathTooShort(t *testing.T) {
	e, _, _ := newTestExpander(nil, &fakeGateway{})
	if _, err := e.ExpandPath(context.Background(), []string{"Mozart"}); err == nil {
		t.Fatal("expected error for single-title path")
	}
}
