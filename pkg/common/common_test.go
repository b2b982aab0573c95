package common

import "testing"

func TestLinkIDUnordered(t *testing.T) {
	tests := []struct {
		name string
		a, b int64
		want string
	}{
		{name: "ordered pair", a: 1, b: 2, want: "1-2"},
		{name: "reversed pair", a: 2, b: 1, want: "1-2"},
		{name: "large ids", a: 900, b: 17, want: "17-900"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LinkID(tt.a, tt.b); got != tt.want {
				t.Fatalf("LinkID(%d, %d) = %q, want %q", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestLinkIDSymmetry(t *testing.T) {
	ids := []int64{1, 2, 3, 42, 1000}
	for _, a := range ids {
		for _, b := range ids {
			if a == b {
				continue
			}
			if LinkID(a, b) != LinkID(b, a) {
				t.Fatalf("LinkID(%d, %d) != LinkID(%d, %d)", a, b, b, a)
			}
		}
	}
}

func TestParseNodeType(t *testing.T) {
	if ParseNodeType("Person") != NodePerson {
		t.Fatal("expected person")
	}
	if ParseNodeType("event") != NodeThing {
		t.Fatal("expected thing for unrecognized classification")
	}
	if ParseNodeType("") != NodeThing {
		t.Fatal("expected thing for empty classification")
	}
}
