package provider

import (
	"context"

	"github.com/skein-labs/skein/backend/pkg/common"
)

// NeighborRequest frames a single expansion request against the
// enrichment provider. ContextTitles and KnownSummary are optional
// disambiguation context; both are token-budgeted before being sent.
type NeighborRequest struct {
	Title         string
	Type          common.NodeType
	ContextTitles []string
	KnownSummary  string
}

// Enrichment is the summary provider's answer for one title.
type Enrichment struct {
	Summary     string
	ImageURL    string
	ExternalRef string
}

// Gateway is the boundary to the external enrichment and summary/image
// providers. Implementations wrap every call in a per-call timeout and
// are treated as unreliable.
type Gateway interface {
	// Classify assigns a coarse type to a title. Ambiguous titles come
	// back as Thing, never as an error.
	Classify(ctx context.Context, title string) (common.NodeType, error)

	// FetchNeighbors proposes candidate neighbor entities for a title.
	// An empty result with nil error means the provider genuinely found
	// nothing.
	FetchNeighbors(ctx context.Context, req NeighborRequest) ([]common.Candidate, error)

	// FetchSummaryAndImage looks up an enrichment summary and optional
	// image reference for a title.
	FetchSummaryAndImage(ctx context.Context, title, contextHint string) (*Enrichment, error)
}

// Options holds configuration for model completion requests.
type Options struct {
	SystemPrompts []string
	Temperature   float64
}

// Option is a functional option for model completion requests.
type Option func(*Options)

// WithSystemPrompts sets the system prompts prepended to the request.
func WithSystemPrompts(prompts ...string) Option {
	return func(o *Options) {
		o.SystemPrompts = prompts
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

// ModelClient is a text model capable of schema-constrained structured
// output. The openai and ollama subpackages provide implementations;
// the adapter is selected by environment at startup.
type ModelClient interface {
	CompleteWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...Option) error
}

// Embedder produces a vector embedding for a piece of text. Optional:
// stores that receive a nil Embedder skip similarity indexing.
type Embedder interface {
	Embed(ctx context.Context, input string) ([]float32, error)
}

// SummarySource resolves a title to a summary and optional image.
type SummarySource interface {
	Lookup(ctx context.Context, title, contextHint string) (*Enrichment, error)
}
