package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/skein-labs/skein/backend/internal/util"
	"github.com/skein-labs/skein/backend/pkg/common"
	"github.com/skein-labs/skein/backend/pkg/logger"
)

const (
	defaultCallTimeout      = 20 * time.Second
	defaultContextTokens    = 256
	defaultMaxRetries       = 3
	classifyPrompt          = "Classify the entity named below as either \"person\" (a human being) or \"thing\" (an event, work, place, organization or concept). Answer with the classification only."
	neighborsOfPersonPrompt = "List the most notable works, events and things directly associated with the person named below. For each, give a short description, the year it happened or was created if known, and the person's role in it."
	neighborsOfThingPrompt  = "List the most notable people directly associated with the event or thing named below. For each, give a short description, their birth year if widely known, and their role."
)

type classifyResponse struct {
	Type string `json:"type" jsonschema_description:"Either \"person\" or \"thing\""`
}

type neighborCandidate struct {
	Title       string `json:"title" jsonschema_description:"Canonical name of the related entity"`
	Type        string `json:"type" jsonschema_description:"Either \"person\" or \"thing\""`
	Description string `json:"description" jsonschema_description:"One-sentence description of the entity"`
	Year        int    `json:"year" jsonschema_description:"Relevant year, or 0 if unknown"`
	Role        string `json:"role" jsonschema_description:"How this entity relates to the subject"`
}

type neighborsResponse struct {
	Neighbors []neighborCandidate `json:"neighbors" jsonschema_description:"Entities directly associated with the subject"`
}

// ModelGateway implements Gateway on top of a schema-capable text model
// and a summary source. Every external call carries a timeout that
// resolves to ErrTimeout, distinct from a normal empty result. Model
// calls retry transient failures; timeouts and cancellations do not.
type ModelGateway struct {
	model         ModelClient
	summaries     SummarySource
	callTimeout   time.Duration
	contextTokens int
	maxRetries    int
}

// ModelGatewayParams configures a ModelGateway.
type ModelGatewayParams struct {
	Model         ModelClient
	Summaries     SummarySource
	CallTimeout   time.Duration
	ContextTokens int
	MaxRetries    int
}

// NewModelGateway creates a gateway over the given model and summary
// source.
func NewModelGateway(params ModelGatewayParams) *ModelGateway {
	timeout := params.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	tokens := params.ContextTokens
	if tokens <= 0 {
		tokens = defaultContextTokens
	}
	retries := params.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}
	return &ModelGateway{
		model:         params.Model,
		summaries:     params.Summaries,
		callTimeout:   timeout,
		contextTokens: tokens,
		maxRetries:    retries,
	}
}

// Classify assigns a coarse type to a title. Anything the model cannot
// classify confidently is a Thing; only transport failures error.
func (g *ModelGateway) Classify(ctx context.Context, title string) (common.NodeType, error) {
	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	var res classifyResponse
	err := util.RetryErrWithContext(ctx, g.maxRetries, func(ctx context.Context) error {
		return g.model.CompleteWithFormat(
			ctx,
			"classify_entity",
			"Classify an entity as a person or a thing.",
			title,
			&res,
			WithSystemPrompts(classifyPrompt),
		)
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return common.NodeThing, fmt.Errorf("classify %q: %w", title, common.ErrTimeout)
		}
		return common.NodeThing, fmt.Errorf("classify %q: %w", title, err)
	}
	return common.ParseNodeType(res.Type), nil
}

// FetchNeighbors proposes candidate neighbors for a title, carrying the
// node's neighborhood and known summary as token-budgeted context.
func (g *ModelGateway) FetchNeighbors(ctx context.Context, req NeighborRequest) ([]common.Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	system := neighborsOfThingPrompt
	if req.Type == common.NodePerson {
		system = neighborsOfPersonPrompt
	}

	var b strings.Builder
	b.WriteString(req.Title)
	if hint := JoinContextTitles(req.ContextTitles, g.contextTokens); hint != "" {
		fmt.Fprintf(&b, "\n\nAlready-known related entities (for disambiguation, do not repeat): %s", hint)
	}
	if summary := TruncateTokens(req.KnownSummary, g.contextTokens); summary != "" {
		fmt.Fprintf(&b, "\n\nKnown summary of the subject: %s", summary)
	}

	var res neighborsResponse
	err := util.RetryErrWithContext(ctx, g.maxRetries, func(ctx context.Context) error {
		return g.model.CompleteWithFormat(
			ctx,
			"fetch_neighbors",
			"Propose entities directly associated with the subject.",
			b.String(),
			&res,
			WithSystemPrompts(system),
		)
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("fetch neighbors for %q: %w", req.Title, common.ErrTimeout)
		}
		return nil, fmt.Errorf("fetch neighbors for %q: %w", req.Title, err)
	}

	candidates := make([]common.Candidate, 0, len(res.Neighbors))
	for _, n := range res.Neighbors {
		if strings.TrimSpace(n.Title) == "" {
			continue
		}
		c := common.Candidate{
			Title:       strings.TrimSpace(n.Title),
			Type:        common.ParseNodeType(n.Type),
			Description: n.Description,
			Role:        n.Role,
		}
		if n.Year != 0 {
			year := n.Year
			c.Year = &year
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// FetchSummaryAndImage resolves a title through the summary source.
func (g *ModelGateway) FetchSummaryAndImage(ctx context.Context, title, contextHint string) (*Enrichment, error) {
	if g.summaries == nil {
		return &Enrichment{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	enrichment, err := g.summaries.Lookup(ctx, title, contextHint)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("summary lookup for %q: %w", title, common.ErrTimeout)
		}
		return nil, fmt.Errorf("summary lookup for %q: %w", title, err)
	}
	logger.Debug("[Provider] Summary lookup", "title", title, "has_image", enrichment.ImageURL != "")
	return enrichment, nil
}
