package expand

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/skein-labs/skein/backend/pkg/graph"
	"github.com/skein-labs/skein/backend/pkg/layout"
	"github.com/skein-labs/skein/backend/pkg/logger"
	"github.com/skein-labs/skein/backend/pkg/metrics"
	"github.com/skein-labs/skein/backend/pkg/provider"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	defaultEnrichWorkers = 3
	defaultEnrichRate    = rate.Limit(2) // lookups per second
	defaultEnrichBurst   = 2

	// maxEnrichTargets bounds one viewport pass. Panning across a
	// dense graph reports new viewports faster than lookups finish;
	// the rest of the visible set is picked up by the next report.
	maxEnrichTargets = 20
)

// Enricher opportunistically fills in summaries and images for nodes
// the user can currently see. Each node is checked at most once;
// ImageChecked is set whether or not the lookup produced anything, so
// a node with no image is never re-fetched on every pan.
type Enricher struct {
	mu      *sync.Mutex
	graph   *graph.Graph
	engine  *layout.Engine
	gateway provider.Gateway

	limiter  *rate.Limiter
	workers  int
	textOnly atomic.Bool
}

// EnricherParams configures an Enricher.
type EnricherParams struct {
	Mutex   *sync.Mutex
	Graph   *graph.Graph
	Engine  *layout.Engine
	Gateway provider.Gateway
	Rate    rate.Limit
	Burst   int
	Workers int
}

// NewEnricher creates a viewport enrichment scheduler.
func NewEnricher(params EnricherParams) *Enricher {
	limit := params.Rate
	if limit <= 0 {
		limit = defaultEnrichRate
	}
	burst := params.Burst
	if burst <= 0 {
		burst = defaultEnrichBurst
	}
	workers := params.Workers
	if workers <= 0 {
		workers = defaultEnrichWorkers
	}
	return &Enricher{
		mu:      params.Mutex,
		graph:   params.Graph,
		engine:  params.Engine,
		gateway: params.Gateway,
		limiter: rate.NewLimiter(limit, burst),
		workers: workers,
	}
}

// SetTextOnly toggles image loading. While text-only is on, viewport
// enrichment does nothing; nodes stay unchecked so images load once
// the toggle flips back.
func (e *Enricher) SetTextOnly(on bool) {
	e.textOnly.Store(on)
}

type enrichTarget struct {
	id          int64
	title       string
	contextHint string
}

// EnrichViewport checks never-checked nodes inside the viewport
// (expanded by margin), at most maxEnrichTargets per call. Lookups run
// rate-limited on a bounded worker pool; results for nodes removed
// mid-flight are discarded.
func (e *Enricher) EnrichViewport(ctx context.Context, v layout.Viewport, margin float64) int {
	if e.textOnly.Load() {
		return 0
	}

	e.mu.Lock()
	visible := e.engine.VisibleWithin(v, margin)
	targets := make([]enrichTarget, 0, len(visible))
	for _, id := range visible {
		node := e.graph.Node(id)
		if node == nil || node.ImageChecked {
			continue
		}
		targets = append(targets, enrichTarget{
			id:          id,
			title:       node.Title,
			contextHint: node.Description,
		})
		if len(targets) == maxEnrichTargets {
			break
		}
	}
	e.mu.Unlock()

	if len(targets) == 0 {
		return 0
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.workers)
	for _, target := range targets {
		group.Go(func() error {
			if err := e.limiter.Wait(groupCtx); err != nil {
				return nil
			}
			e.check(groupCtx, target, false)
			return nil
		})
	}
	group.Wait()
	return len(targets)
}

// Recheck forces a fresh lookup for one node, used when the user
// explicitly re-selects it.
func (e *Enricher) Recheck(ctx context.Context, nodeID int64) {
	e.mu.Lock()
	node := e.graph.Node(nodeID)
	if node == nil {
		e.mu.Unlock()
		return
	}
	target := enrichTarget{id: nodeID, title: node.Title, contextHint: node.Description}
	e.mu.Unlock()

	e.check(ctx, target, true)
}

func (e *Enricher) check(ctx context.Context, target enrichTarget, force bool) {
	enrichment, err := e.gateway.FetchSummaryAndImage(ctx, target.title, target.contextHint)

	e.mu.Lock()
	defer e.mu.Unlock()
	node := e.graph.Node(target.id)
	if node == nil {
		return
	}
	// Checked either way. A failed or empty lookup should not be
	// retried on the next viewport report.
	node.ImageChecked = true

	if err != nil {
		logger.Debug("[Enrich] Lookup failed", "title", target.title, "error", err)
		metrics.EnrichmentChecks.WithLabelValues("error").Inc()
		return
	}
	if enrichment.ImageURL == "" && enrichment.Summary == "" {
		metrics.EnrichmentChecks.WithLabelValues("empty").Inc()
		return
	}
	metrics.EnrichmentChecks.WithLabelValues("ok").Inc()

	if node.ImageURL == "" || force {
		node.ImageURL = enrichment.ImageURL
	}
	if node.Summary == "" || force {
		node.Summary = enrichment.Summary
	}
	if node.ExternalRef == "" && enrichment.ExternalRef != "" {
		node.ExternalRef = enrichment.ExternalRef
	}
}
