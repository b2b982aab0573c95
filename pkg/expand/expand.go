// Package expand orchestrates incremental graph expansion: cache
// lookup, provider calls, candidate enrichment, cache write-back and
// the final merge into the session graph. All graph mutation happens
// under the session mutex; network calls happen outside it.
package expand

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/skein-labs/skein/backend/pkg/cache"
	"github.com/skein-labs/skein/backend/pkg/common"
	"github.com/skein-labs/skein/backend/pkg/graph"
	"github.com/skein-labs/skein/backend/pkg/logger"
	"github.com/skein-labs/skein/backend/pkg/metrics"
	"github.com/skein-labs/skein/backend/pkg/provider"

	"golang.org/x/sync/errgroup"
)

const defaultEnrichConcurrency = 4

// CacheStore is the slice of the cache client the expander needs.
type CacheStore interface {
	UpsertNode(ctx context.Context, node cache.Node) (int64, error)
	LookupExpansion(ctx context.Context, sourceID int64, contextIDs []int64) (*cache.LookupResult, error)
	WriteExpansion(ctx context.Context, sourceID int64, contextIDs []int64, nodes []cache.Node) ([]int64, error)
}

// Expander drives expansions against one graph. The mutex is shared
// with the owning session so graph mutation stays serialized while
// network work runs unlocked.
type Expander struct {
	mu      *sync.Mutex
	graph   *graph.Graph
	cache   CacheStore // nil means provider-only operation
	gateway provider.Gateway

	enrichConcurrency int
}

// Params configures an Expander.
type Params struct {
	Mutex             *sync.Mutex
	Graph             *graph.Graph
	Cache             CacheStore
	Gateway           provider.Gateway
	EnrichConcurrency int
}

// New creates an Expander.
func New(params Params) *Expander {
	concurrency := params.EnrichConcurrency
	if concurrency <= 0 {
		concurrency = defaultEnrichConcurrency
	}
	return &Expander{
		mu:                params.Mutex,
		graph:             params.Graph,
		cache:             params.Cache,
		gateway:           params.Gateway,
		enrichConcurrency: concurrency,
	}
}

// Result describes one expansion.
type Result struct {
	// Skipped is true when the node was already expanded or an
	// expansion was in flight.
	Skipped bool
	// Added is the number of nodes merged into the graph.
	Added int
	// FromCache is true when the result came from the cache store.
	FromCache bool
	// Exact distinguishes an exact fingerprint hit from a fuzzy one.
	Exact bool
	// Terminal is true when the provider legitimately had nothing to
	// add and the node was marked expanded anyway.
	Terminal bool
}

// Expand expands one node. It is a no-op for nodes already expanded or
// currently loading, so concurrent calls for the same node cost one
// round trip.
func (e *Expander) Expand(ctx context.Context, nodeID int64) (*Result, error) {
	return e.run(ctx, nodeID, false, false)
}

// ExpandInitial expands the root node of a fresh search. Unlike a
// regular expansion, a zero-candidate result is a hard failure that
// resets the graph instead of marking the node terminal.
func (e *Expander) ExpandInitial(ctx context.Context, nodeID int64) (*Result, error) {
	return e.run(ctx, nodeID, false, true)
}

// ExpandMore re-expands an already expanded node. The cache is
// bypassed so the provider sees the grown neighbor context and can
// suggest candidates beyond the cached set.
func (e *Expander) ExpandMore(ctx context.Context, nodeID int64) (*Result, error) {
	return e.run(ctx, nodeID, true, false)
}

func (e *Expander) run(ctx context.Context, nodeID int64, more, initial bool) (*Result, error) {
	start := time.Now()
	defer func() { metrics.ExpansionDuration.Observe(time.Since(start).Seconds()) }()

	e.mu.Lock()
	node := e.graph.Node(nodeID)
	if node == nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("expand: node %d not in graph", nodeID)
	}
	if node.Loading || (node.Expanded && !more) {
		e.mu.Unlock()
		return &Result{Skipped: true}, nil
	}
	node.Loading = true

	req := provider.NeighborRequest{
		Title:         node.Title,
		Type:          node.Type,
		ContextTitles: e.graph.NeighborTitles(nodeID),
		KnownSummary:  node.Summary,
	}
	contextIDs := e.graph.NeighborIDs(nodeID)
	e.mu.Unlock()

	result, err := e.expand(ctx, nodeID, initial, more, req, contextIDs)
	if err != nil {
		e.clearLoading(nodeID)
		return nil, err
	}
	return result, nil
}

func (e *Expander) expand(ctx context.Context, nodeID int64, initial, more bool, req provider.NeighborRequest, contextIDs []int64) (*Result, error) {
	if hit := e.lookupCache(ctx, nodeID, contextIDs, more); hit != nil {
		added, ok := e.mergeCached(nodeID, hit.Nodes)
		if !ok {
			return &Result{Skipped: true}, nil
		}
		return &Result{Added: added, FromCache: true, Exact: hit.Exact}, nil
	}

	candidates, err := e.gateway.FetchNeighbors(ctx, req)
	if err != nil {
		metrics.ProviderCalls.WithLabelValues("neighbors", "error").Inc()
		return nil, fmt.Errorf("expand %q: %w", req.Title, err)
	}
	metrics.ProviderCalls.WithLabelValues("neighbors", "ok").Inc()

	if len(candidates) == 0 {
		if initial {
			e.mu.Lock()
			e.graph.Clear()
			e.mu.Unlock()
			return nil, fmt.Errorf("expand %q: %w", req.Title, common.ErrNoResults)
		}
		e.mu.Lock()
		if node := e.graph.Node(nodeID); node != nil {
			node.Expanded = true
			node.Loading = false
		}
		e.mu.Unlock()
		return &Result{Terminal: true}, nil
	}

	enriched := e.enrichCandidates(ctx, req.Title, candidates)
	ids := e.resolveIDs(ctx, nodeID, contextIDs, enriched)

	added, ok := e.merge(nodeID, enriched, ids)
	if !ok {
		return &Result{Skipped: true}, nil
	}
	return &Result{Added: added}, nil
}

// lookupCache returns a hit or nil. Cache errors degrade to a miss.
// Re-expansions skip the cache outright, a hit would only replay what
// the graph already holds.
func (e *Expander) lookupCache(ctx context.Context, nodeID int64, contextIDs []int64, more bool) *cache.LookupResult {
	if e.cache == nil || nodeID <= 0 || more {
		return nil
	}
	res, err := e.cache.LookupExpansion(ctx, nodeID, contextIDs)
	if err != nil {
		logger.Warn("[Expand] Cache lookup failed, continuing without cache", "node_id", nodeID, "error", err)
		metrics.CacheMisses.Inc()
		return nil
	}
	if !res.Hit {
		metrics.CacheMisses.Inc()
		return nil
	}
	kind := "fuzzy"
	if res.Exact {
		kind = "exact"
	}
	metrics.CacheHits.WithLabelValues(kind).Inc()
	return res
}

// enrichCandidates fetches summaries and images for the candidates
// concurrently. Enrichment failures are soft, the candidate goes in
// bare.
func (e *Expander) enrichCandidates(ctx context.Context, sourceTitle string, candidates []common.Candidate) []cache.Node {
	nodes := make([]cache.Node, len(candidates))
	for i, c := range candidates {
		nodes[i] = cache.Node{
			Title:       c.Title,
			Type:        c.Type,
			Description: c.Description,
			Year:        c.Year,
			Label:       c.Role,
		}
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.enrichConcurrency)
	for i := range nodes {
		group.Go(func() error {
			enrichment, err := e.gateway.FetchSummaryAndImage(groupCtx, nodes[i].Title, sourceTitle)
			if err != nil {
				logger.Debug("[Expand] Candidate enrichment failed", "title", nodes[i].Title, "error", err)
				metrics.ProviderCalls.WithLabelValues("summary", "error").Inc()
				return nil
			}
			metrics.ProviderCalls.WithLabelValues("summary", "ok").Inc()
			nodes[i].Summary = enrichment.Summary
			nodes[i].ImageURL = enrichment.ImageURL
			if nodes[i].ExternalRef == "" {
				nodes[i].ExternalRef = enrichment.ExternalRef
			}
			return nil
		})
	}
	group.Wait()
	return nodes
}

// resolveIDs obtains canonical ids from the cache store, falling back
// to session-local temporary ids when the store is unavailable.
func (e *Expander) resolveIDs(ctx context.Context, nodeID int64, contextIDs []int64, nodes []cache.Node) []int64 {
	if e.cache != nil && nodeID > 0 {
		ids, err := e.cache.WriteExpansion(ctx, nodeID, contextIDs, nodes)
		if err == nil {
			return ids
		}
		logger.Warn("[Expand] Cache write-back failed, assigning temporary ids", "node_id", nodeID, "error", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]int64, len(nodes))
	for i := range nodes {
		ids[i] = e.graph.AllocTempID()
	}
	return ids
}

// mergeCached merges a cache hit into the graph.
func (e *Expander) mergeCached(nodeID int64, nodes []cache.Node) (int, bool) {
	incoming := make([]graph.Incoming, 0, len(nodes))
	for _, n := range nodes {
		incoming = append(incoming, graph.Incoming{
			Node: common.Node{
				ID:          n.ID,
				Title:       n.Title,
				Type:        n.Type,
				Description: n.Description,
				Year:        n.Year,
				ExternalRef: n.ExternalRef,
				ImageURL:    n.ImageURL,
				Summary:     n.Summary,
			},
			Label: n.Label,
		})
	}
	return e.commit(nodeID, incoming)
}

func (e *Expander) merge(nodeID int64, nodes []cache.Node, ids []int64) (int, bool) {
	incoming := make([]graph.Incoming, 0, len(nodes))
	for i, n := range nodes {
		incoming = append(incoming, graph.Incoming{
			Node: common.Node{
				ID:          ids[i],
				Title:       n.Title,
				Type:        n.Type,
				Description: n.Description,
				Year:        n.Year,
				ExternalRef: n.ExternalRef,
				ImageURL:    n.ImageURL,
				Summary:     n.Summary,
			},
			Label: n.Label,
		})
	}
	return e.commit(nodeID, incoming)
}

// commit applies incoming nodes under the lock. A result for a node
// that was removed while the network call ran is discarded whole.
func (e *Expander) commit(nodeID int64, incoming []graph.Incoming) (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	node := e.graph.Node(nodeID)
	if node == nil {
		logger.Debug("[Expand] Discarding stale expansion result", "node_id", nodeID)
		return 0, false
	}

	before := e.graph.Len()
	e.graph.Merge(incoming, nodeID)
	node.Expanded = true
	node.Loading = false
	return e.graph.Len() - before, true
}

func (e *Expander) clearLoading(nodeID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if node := e.graph.Node(nodeID); node != nil {
		node.Loading = false
	}
}

// Seed resolves a title into a root node for a fresh graph: classify,
// register with the cache store, add to the graph.
func (e *Expander) Seed(ctx context.Context, title string) (*common.Node, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("seed: empty title")
	}

	nodeType, err := e.gateway.Classify(ctx, title)
	if err != nil {
		metrics.ProviderCalls.WithLabelValues("classify", "error").Inc()
		return nil, fmt.Errorf("seed %q: %w", title, err)
	}
	metrics.ProviderCalls.WithLabelValues("classify", "ok").Inc()

	var enrichment provider.Enrichment
	if fetched, err := e.gateway.FetchSummaryAndImage(ctx, title, ""); err == nil {
		enrichment = *fetched
	}

	id := common.PendingID
	if e.cache != nil {
		canonical, err := e.cache.UpsertNode(ctx, cache.Node{
			Title:       title,
			Type:        nodeType,
			ExternalRef: enrichment.ExternalRef,
		})
		if err != nil {
			logger.Warn("[Expand] Cache upsert failed, seeding with temporary id", "title", title, "error", err)
		} else {
			id = canonical
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if id == common.PendingID {
		id = e.graph.AllocTempID()
	}
	node := &common.Node{
		ID:          id,
		Title:       title,
		Type:        nodeType,
		Summary:     enrichment.Summary,
		ImageURL:    enrichment.ImageURL,
		ExternalRef: enrichment.ExternalRef,
	}
	if enrichment.ImageURL != "" || enrichment.Summary != "" {
		node.ImageChecked = true
	}
	return e.graph.AddNode(node), nil
}
