package graph

import (
	"testing"

	"github.com/skein-labs/skein/backend/pkg/common"
)

func testNode(id int64, title string) *common.Node {
	return &common.Node{ID: id, Title: title, Type: common.NodeThing}
}

func TestMergeCreatesNodesAndLinks(t *testing.T) {
	g := New()
	g.AddNode(testNode(1, "Waterloo"))

	incoming := []Incoming{
		{Node: common.Node{ID: 2, Title: "Napoleon", Type: common.NodePerson}},
		{Node: common.Node{ID: 3, Title: "Wellington", Type: common.NodePerson}},
		{Node: common.Node{ID: 4, Title: "Blücher", Type: common.NodePerson}},
	}
	g.Merge(incoming, 1)

	if g.Len() != 4 {
		t.Fatalf("expected 4 nodes, got %d", g.Len())
	}
	if len(g.Links()) != 3 {
		t.Fatalf("expected 3 links, got %d", len(g.Links()))
	}
	for _, id := range []int64{2, 3, 4} {
		n := g.Node(id)
		if n == nil {
			t.Fatalf("node %d missing after merge", id)
		}
		if n.Expanded {
			t.Fatalf("node %d should not be expanded", id)
		}
	}
}

func TestMergeIdempotent(t *testing.T) {
	g := New()
	g.AddNode(testNode(1, "Waterloo"))

	incoming := []Incoming{
		{Node: common.Node{ID: 2, Title: "Napoleon", Type: common.NodePerson}},
		{Node: common.Node{ID: 3, Title: "Wellington", Type: common.NodePerson}},
	}
	g.Merge(incoming, 1)
	g.Merge(incoming, 1)

	if g.Len() != 3 {
		t.Fatalf("expected 3 nodes after double merge, got %d", g.Len())
	}
	if len(g.Links()) != 2 {
		t.Fatalf("expected 2 links after double merge, got %d", len(g.Links()))
	}
}

func TestMergeKeepsLocalOptionalFields(t *testing.T) {
	g := New()
	g.AddNode(testNode(1, "Waterloo"))
	known := &common.Node{
		ID:       2,
		Title:    "Old Title",
		Type:     common.NodePerson,
		ImageURL: "https://example.org/napoleon.jpg",
		Summary:  "A summary already fetched",
	}
	g.AddNode(known)

	g.Merge([]Incoming{
		{Node: common.Node{ID: 2, Title: "Napoleon Bonaparte", Type: common.NodePerson, Description: "Emperor of the French"}},
	}, 1)

	n := g.Node(2)
	if n.Title != "Napoleon Bonaparte" {
		t.Fatalf("authoritative title not overwritten: %q", n.Title)
	}
	if n.Description != "Emperor of the French" {
		t.Fatalf("authoritative description not overwritten: %q", n.Description)
	}
	if n.ImageURL != "https://example.org/napoleon.jpg" {
		t.Fatalf("locally-known image overwritten: %q", n.ImageURL)
	}
	if n.Summary != "A summary already fetched" {
		t.Fatalf("locally-known summary overwritten: %q", n.Summary)
	}
}

func TestMergeReversedDiscoveryOrderDedupsLink(t *testing.T) {
	g := New()
	g.AddNode(testNode(1, "a"))
	g.AddNode(testNode(2, "b"))

	g.Merge([]Incoming{{Node: common.Node{ID: 2, Title: "b"}}}, 1)
	g.Merge([]Incoming{{Node: common.Node{ID: 1, Title: "a"}}}, 2)

	if len(g.Links()) != 1 {
		t.Fatalf("expected 1 link regardless of discovery order, got %d", len(g.Links()))
	}
}

func TestMergePlacesNewNodesNearSource(t *testing.T) {
	g := New()
	src := testNode(1, "src")
	src.Layout.Pos.X = 500
	src.Layout.Pos.Y = -200
	g.AddNode(src)

	g.Merge([]Incoming{{Node: common.Node{ID: 2, Title: "n"}}}, 1)

	n := g.Node(2)
	dx := n.Layout.Pos.X - 500
	dy := n.Layout.Pos.Y + 200
	if dx < -jitterRadius || dx > jitterRadius || dy < -jitterRadius || dy > jitterRadius {
		t.Fatalf("new node placed too far from source: (%v, %v)", n.Layout.Pos.X, n.Layout.Pos.Y)
	}
}
