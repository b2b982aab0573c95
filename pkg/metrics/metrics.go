// Package metrics exposes Prometheus instrumentation for the expansion
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts expansion cache hits by kind ("exact" or
	// "fuzzy").
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skein",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Expansion cache hits by match kind.",
	}, []string{"kind"})

	// CacheMisses counts expansion cache misses.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "skein",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Expansion cache misses.",
	})

	// ProviderCalls counts outbound provider calls by operation and
	// outcome.
	ProviderCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skein",
		Subsystem: "provider",
		Name:      "calls_total",
		Help:      "Provider calls by operation and outcome.",
	}, []string{"operation", "outcome"})

	// ExpansionDuration observes end-to-end expansion latency.
	ExpansionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "skein",
		Subsystem: "expand",
		Name:      "duration_seconds",
		Help:      "End-to-end node expansion latency.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	// EnrichmentChecks counts viewport enrichment lookups by outcome.
	EnrichmentChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skein",
		Subsystem: "enrich",
		Name:      "checks_total",
		Help:      "Viewport enrichment checks by outcome.",
	}, []string{"outcome"})
)
