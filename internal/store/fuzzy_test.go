package store

import "testing"

func TestBestFuzzyMatchPicksHighestScore(t *testing.T) {
	rows := []ExpansionRow{
		{ID: 1, ContextIDs: []int64{1, 2, 3, 4}},      // 0.4, below threshold
		{ID: 2, ContextIDs: []int64{1, 2, 9}},         // 1.0
		{ID: 3, ContextIDs: []int64{1, 2, 9, 10, 11}}, // 0.6
	}
	match, ok := BestFuzzyMatch(rows, []int64{1, 2, 9}, 0.5)
	if !ok {
		t.Fatal("expected a match")
	}
	if match.ID != 2 {
		t.Fatalf("match id = %d, want 2", match.ID)
	}
}

func TestBestFuzzyMatchRespectsThreshold(t *testing.T) {
	rows := []ExpansionRow{
		{ID: 1, ContextIDs: []int64{1, 2, 3, 4, 5, 6}},
	}
	if _, ok := BestFuzzyMatch(rows, []int64{1, 7, 8}, 0.5); ok {
		t.Fatal("similarity below threshold must not match")
	}
	if _, ok := BestFuzzyMatch(rows, []int64{1, 7, 8}, 0.1); !ok {
		t.Fatal("lowered threshold should match")
	}
}

func TestBestFuzzyMatchTieKeepsFirst(t *testing.T) {
	rows := []ExpansionRow{
		{ID: 10, ContextIDs: []int64{1, 2}},
		{ID: 20, ContextIDs: []int64{2, 1}}, // identical context, later row
	}
	match, ok := BestFuzzyMatch(rows, []int64{1, 2}, 0.5)
	if !ok {
		t.Fatal("expected a match")
	}
	if match.ID != 10 {
		t.Fatalf("tie must keep the first row, got %d", match.ID)
	}
}

func TestBestFuzzyMatchEmptyContexts(t *testing.T) {
	rows := []ExpansionRow{{ID: 1, ContextIDs: nil}}
	match, ok := BestFuzzyMatch(rows, nil, 0.5)
	if !ok || match.ID != 1 {
		t.Fatalf("two empty contexts are identical, got ok=%v id=%d", ok, match.ID)
	}
}
