package queue

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"testing"

	"github.com/skein-labs/skein/backend/pkg/cache"
	"github.com/skein-labs/skein/backend/pkg/common"
	"github.com/skein-labs/skein/backend/pkg/provider"
)

type recordingStore struct {
	mu      sync.Mutex
	lookups int
	writes  int
	stored  map[string][]cache.Node
}

func (r *recordingStore) key(sourceID int64, contextIDs []int64) string {
	return common.ContextFingerprint(contextIDs) + "@" + strconv.FormatInt(sourceID, 10)
}

func (r *recordingStore) UpsertNode(ctx context.Context, node cache.Node) (int64, error) {
	return 1, nil
}

func (r *recordingStore) LookupExpansion(ctx context.Context, sourceID int64, contextIDs []int64) (*cache.LookupResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	if nodes, ok := r.stored[r.key(sourceID, contextIDs)]; ok {
		return &cache.LookupResult{Hit: true, Exact: true, Nodes: nodes}, nil
	}
	return &cache.LookupResult{}, nil
}

func (r *recordingStore) WriteExpansion(ctx context.Context, sourceID int64, contextIDs []int64, nodes []cache.Node) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	if r.stored == nil {
		r.stored = map[string][]cache.Node{}
	}
	ids := make([]int64, len(nodes))
	for i := range nodes {
		ids[i] = int64(1000 + i)
		nodes[i].ID = ids[i]
	}
	r.stored[r.key(sourceID, contextIDs)] = nodes
	return ids, nil
}

type prefetchGateway struct {
	calls int
}

func (p *prefetchGateway) Classify(ctx context.Context, title string) (common.NodeType, error) {
	return common.NodeThing, nil
}

func (p *prefetchGateway) FetchNeighbors(ctx context.Context, req provider.NeighborRequest) ([]common.Candidate, error) {
	p.calls++
	return []common.Candidate{
		{Title: "Duke of Wellington", Type: common.NodePerson, Role: "opposing commander"},
	}, nil
}

func (p *prefetchGateway) FetchSummaryAndImage(ctx context.Context, title, contextHint string) (*provider.Enrichment, error) {
	return &provider.Enrichment{}, nil
}

func prefetchBody(t *testing.T, msg PrefetchMsg) string {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}

func TestProcessPrefetchWarmsCache(t *testing.T) {
	store := &recordingStore{}
	gw := &prefetchGateway{}
	body := prefetchBody(t, PrefetchMsg{
		NodeID:        5,
		Title:         "Battle of Waterloo",
		Type:          "thing",
		ContextIDs:    []int64{2},
		ContextTitles: []string{"Napoleon Bonaparte"},
	})

	if err := ProcessPrefetch(context.Background(), store, gw, body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.writes != 1 {
		t.Fatalf("writes = %d, want 1", store.writes)
	}
	if gw.calls != 1 {
		t.Fatalf("provider calls = %d, want 1", gw.calls)
	}

	// Running the same job again is served from the warmed cache.
	if err := ProcessPrefetch(context.Background(), store, gw, body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gw.calls != 1 {
		t.Fatalf("provider calls after warm cache = %d, want 1", gw.calls)
	}
}

func TestProcessPrefetchRejectsMalformedMessage(t *testing.T) {
	if err := ProcessPrefetch(context.Background(), &recordingStore{}, &prefetchGateway{}, "{not json"); err == nil {
		t.Fatal("expected error for malformed body")
	}
	body := prefetchBody(t, PrefetchMsg{NodeID: 0, Title: "x"})
	if err := ProcessPrefetch(context.Background(), &recordingStore{}, &prefetchGateway{}, body); err == nil {
		t.Fatal("expected error for missing node id")
	}
	body = prefetchBody(t, PrefetchMsg{NodeID: 1, Title: "x", ContextIDs: []int64{1, 2}, ContextTitles: []string{"a"}})
	if err := ProcessPrefetch(context.Background(), &recordingStore{}, &prefetchGateway{}, body); err == nil {
		t.Fatal("expected error for mismatched context arrays")
	}
}
