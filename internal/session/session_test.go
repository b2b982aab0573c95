package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/skein-labs/skein/backend/pkg/common"
	"github.com/skein-labs/skein/backend/pkg/document"
	"github.com/skein-labs/skein/backend/pkg/layout"
	"github.com/skein-labs/skein/backend/pkg/provider"
)

type stubGateway struct {
	candidates []common.Candidate
}

func (s *stubGateway) Classify(ctx context.Context, title string) (common.NodeType, error) {
	return common.NodePerson, nil
}

func (s *stubGateway) FetchNeighbors(ctx context.Context, req provider.NeighborRequest) ([]common.Candidate, error) {
	return s.candidates, nil
}

func (s *stubGateway) FetchSummaryAndImage(ctx context.Context, title, contextHint string) (*provider.Enrichment, error) {
	return &provider.Enrichment{Summary: "about " + title}, nil
}

func stubCandidates() []common.Candidate {
	y := 1787
	return []common.Candidate{
		{Title: "Don Giovanni", Type: common.NodeThing, Description: "Opera", Year: &y, Role: "composed"},
		{Title: "Constanze Mozart", Type: common.NodePerson, Description: "Spouse", Role: "married"},
	}
}

func newTestSession(gw provider.Gateway) *Session {
	return New(Params{ID: "test", Cache: nil, Gateway: gw})
}

func TestStartSeedsAndExpands(t *testing.T) {
	s := newTestSession(&stubGateway{candidates: stubCandidates()})

	if _, err := s.Start(context.Background(), "Wolfgang Amadeus Mozart"); err != nil {
		t.Fatalf("start: %v", err)
	}

	snap := s.Snapshot()
	if len(snap.Nodes) != 3 {
		t.Fatalf("nodes = %d, want 3", len(snap.Nodes))
	}
	if len(snap.Links) != 2 {
		t.Fatalf("links = %d, want 2", len(snap.Links))
	}

	// The layout ran; satellite nodes should have moved off origin.
	moved := 0
	for _, n := range snap.Nodes {
		if n.Layout.Pos.X != 0 || n.Layout.Pos.Y != 0 {
			moved++
		}
	}
	if moved == 0 {
		t.Fatal("no node moved during layout settling")
	}
}

func TestDeleteApplyKeepsLargestComponent(t *testing.T) {
	s := newTestSession(&stubGateway{candidates: stubCandidates()})
	if _, err := s.Start(context.Background(), "Mozart"); err != nil {
		t.Fatalf("start: %v", err)
	}

	snap := s.Snapshot()
	var rootID int64
	for _, n := range snap.Nodes {
		if n.Title == "Mozart" {
			rootID = n.ID
		}
	}

	preview, err := s.DeletePreview(rootID)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if got := s.Snapshot(); len(got.Nodes) != len(snap.Nodes) {
		t.Fatal("preview must not mutate the graph")
	}

	outcome, err := s.DeleteApply(rootID)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(outcome.DroppedIDs) != len(preview.DroppedIDs) {
		t.Fatalf("apply dropped %d, preview said %d", len(outcome.DroppedIDs), len(preview.DroppedIDs))
	}
	if got := s.Snapshot(); len(got.Nodes) >= len(snap.Nodes) {
		t.Fatalf("apply did not shrink the graph: %d nodes", len(got.Nodes))
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	s := newTestSession(&stubGateway{candidates: stubCandidates()})
	if _, err := s.Start(context.Background(), "Mozart"); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.SetLayout(layout.ModeTimeline, true)

	data, err := json.Marshal(s.Export())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	doc, err := document.Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	restored := newTestSession(&stubGateway{})
	restored.Import(doc)
	snap := restored.Snapshot()
	if len(snap.Nodes) != 3 {
		t.Fatalf("restored nodes = %d, want 3", len(snap.Nodes))
	}
	if snap.Mode != "timeline" || !snap.Compact {
		t.Fatalf("layout settings lost: %+v", snap)
	}
}

func TestManagerSweep(t *testing.T) {
	m := NewManager(nil, &stubGateway{})
	fresh, err := m.Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	stale, err := m.Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	stale.mu.Lock()
	stale.lastActive = time.Now().Add(-2 * time.Hour)
	stale.mu.Unlock()

	if removed := m.Sweep(time.Hour); removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, ok := m.Get(fresh.ID); !ok {
		t.Fatal("fresh session swept")
	}
	if _, ok := m.Get(stale.ID); ok {
		t.Fatal("stale session survived")
	}
}
