package common

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PendingID marks a node that was created locally and has not yet been
// committed to the canonical store. Committed ids are always positive.
const PendingID int64 = -1

// NodeType is the coarse classification assigned to a node by the
// enrichment provider. There are exactly two kinds: people, and
// everything else (events, works, places, concepts).
type NodeType int

const (
	NodeThing NodeType = iota
	NodePerson
)

// ParseNodeType maps a provider classification string onto a NodeType.
// Anything the provider could not classify confidently comes back as a
// Thing rather than an error.
func ParseNodeType(s string) NodeType {
	if strings.EqualFold(strings.TrimSpace(s), "person") {
		return NodePerson
	}
	return NodeThing
}

func (t NodeType) String() string {
	if t == NodePerson {
		return "person"
	}
	return "thing"
}

// MarshalJSON encodes the type as its string form.
func (t NodeType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes the string form; unknown strings become Thing.
func (t *NodeType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = ParseNodeType(s)
	return nil
}

// Node is a single entity in the display graph. The canonical store owns
// identity assignment; everything else on the struct is transient display
// state that the store never sees.
type Node struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Type        NodeType `json:"type"`
	Description string   `json:"description,omitempty"`
	Year        *int     `json:"year,omitempty"`
	ExternalRef string   `json:"externalRef,omitempty"`
	ImageURL    string   `json:"imageUrl,omitempty"`
	Summary     string   `json:"summary,omitempty"`

	Expanded bool `json:"expanded"`
	Loading  bool `json:"-"`
	// ImageChecked distinguishes "no image exists" from "never tried".
	ImageChecked bool `json:"imageChecked"`

	Layout LayoutState `json:"layout"`
}

// Link is an undirected relationship between two nodes. Its ID is derived
// from the unordered endpoint pair so the same relationship can never be
// represented twice regardless of discovery order.
type Link struct {
	ID     string `json:"id"`
	Source int64  `json:"sourceId"`
	Target int64  `json:"targetId"`
	Label  string `json:"label,omitempty"`
}

// NewLink builds a link with its derived id.
func NewLink(source, target int64, label string) Link {
	return Link{
		ID:     LinkID(source, target),
		Source: source,
		Target: target,
		Label:  label,
	}
}

// LinkID derives a deterministic link id from the unordered endpoint pair,
// so LinkID(a, b) == LinkID(b, a) for all a != b.
func LinkID(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d-%d", a, b)
}

// Candidate is a neighbor entity proposed by the enrichment provider
// before it has been assigned a canonical identity.
type Candidate struct {
	Title       string   `json:"title"`
	Type        NodeType `json:"type"`
	Description string   `json:"description,omitempty"`
	Year        *int     `json:"year,omitempty"`
	Role        string   `json:"role,omitempty"`
	ExternalRef string   `json:"externalRef,omitempty"`
	Summary     string   `json:"summary,omitempty"`
	ImageURL    string   `json:"imageUrl,omitempty"`
}
