package provider

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/skein-labs/skein/backend/pkg/common"
)

// fakeModel returns a canned JSON payload for every completion,
// optionally failing the first few calls.
type fakeModel struct {
	payload  string
	err      error
	failures int
	calls    int
	prompts  []string
}

func (f *fakeModel) CompleteWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...Option) error {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return f.err
	}
	if f.failures > 0 {
		f.failures--
		return errors.New("transient failure")
	}
	return json.Unmarshal([]byte(f.payload), out)
}

func TestClassifyPerson(t *testing.T) {
	g := NewModelGateway(ModelGatewayParams{Model: &fakeModel{payload: `{"type":"person"}`}})
	got, err := g.Classify(context.Background(), "Ada Lovelace")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != common.NodePerson {
		t.Fatalf("got %v, want person", got)
	}
}

func TestClassifyAmbiguousDefaultsToThing(t *testing.T) {
	g := NewModelGateway(ModelGatewayParams{Model: &fakeModel{payload: `{"type":"unsure"}`}})
	got, err := g.Classify(context.Background(), "Waterloo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != common.NodeThing {
		t.Fatalf("ambiguous classification should default to thing, got %v", got)
	}
}

func TestFetchNeighborsParsesCandidates(t *testing.T) {
	model := &fakeModel{payload: `{"neighbors":[
		{"title":"Battle of Waterloo","type":"thing","description":"Final defeat","year":1815,"role":"commander"},
		{"title":"  ","type":"thing","description":"blank title dropped","year":0,"role":""},
		{"title":"Joséphine de Beauharnais","type":"person","description":"First wife","year":0,"role":"spouse"}
	]}`}
	g := NewModelGateway(ModelGatewayParams{Model: model})

	got, err := g.FetchNeighbors(context.Background(), NeighborRequest{
		Title: "Napoleon Bonaparte",
		Type:  common.NodePerson,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].Year == nil || *got[0].Year != 1815 {
		t.Fatalf("year not carried: %+v", got[0].Year)
	}
	if got[1].Year != nil {
		t.Fatal("year 0 should map to unknown")
	}
	if got[1].Type != common.NodePerson {
		t.Fatalf("type not parsed: %v", got[1].Type)
	}
}

func TestClassifyRetriesTransientFailure(t *testing.T) {
	model := &fakeModel{payload: `{"type":"person"}`, failures: 2}
	g := NewModelGateway(ModelGatewayParams{Model: model})

	got, err := g.Classify(context.Background(), "Ada Lovelace")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != common.NodePerson {
		t.Fatalf("got %v, want person", got)
	}
	if model.calls != 3 {
		t.Fatalf("model calls = %d, want 3", model.calls)
	}
}

func TestFetchNeighborsExhaustsRetries(t *testing.T) {
	model := &fakeModel{err: errors.New("model down")}
	g := NewModelGateway(ModelGatewayParams{Model: model, MaxRetries: 2})

	_, err := g.FetchNeighbors(context.Background(), NeighborRequest{Title: "x"})
	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if model.calls != 2 {
		t.Fatalf("model calls = %d, want 2", model.calls)
	}
}

func TestFetchNeighborsTimeout(t *testing.T) {
	model := &fakeModel{err: context.DeadlineExceeded}
	g := NewModelGateway(ModelGatewayParams{Model: model})
	_, err := g.FetchNeighbors(context.Background(), NeighborRequest{Title: "x"})
	if !errors.Is(err, common.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if model.calls != 1 {
		t.Fatalf("timeouts should not be retried, model calls = %d", model.calls)
	}
}

func TestFetchNeighborsCarriesContext(t *testing.T) {
	model := &fakeModel{payload: `{"neighbors":[]}`}
	g := NewModelGateway(ModelGatewayParams{Model: model})

	_, err := g.FetchNeighbors(context.Background(), NeighborRequest{
		Title:         "Waterloo",
		Type:          common.NodeThing,
		ContextTitles: []string{"Napoleon Bonaparte", "Wellington"},
		KnownSummary:  "An 1815 battle.",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(model.prompts) != 1 {
		t.Fatalf("expected 1 call, got %d", len(model.prompts))
	}
	prompt := model.prompts[0]
	for _, want := range []string{"Waterloo", "Napoleon Bonaparte", "An 1815 battle."} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q: %s", want, prompt)
		}
	}
}
