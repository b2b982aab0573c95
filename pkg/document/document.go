// Package document encodes and decodes graph session documents for
// export and import.
package document

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/skein-labs/skein/backend/pkg/common"
	"github.com/skein-labs/skein/backend/pkg/graph"
	"github.com/skein-labs/skein/backend/pkg/layout"
)

// Version is the current document format version.
const Version = 2

// Document is the serialized form of one session graph.
type Document struct {
	Version  int           `json:"version"`
	SavedAt  time.Time     `json:"savedAt"`
	Mode     string        `json:"mode"`
	Compact  bool          `json:"compact"`
	TextOnly bool          `json:"textOnly"`
	Nodes    []common.Node `json:"nodes"`
	Links    []common.Link `json:"links"`
}

// Encode captures the given graph state into a document.
func Encode(g *graph.Graph, mode layout.Mode, compact, textOnly bool) *Document {
	nodes := g.Nodes()
	doc := &Document{
		Version:  Version,
		SavedAt:  time.Now().UTC(),
		Mode:     mode.String(),
		Compact:  compact,
		TextOnly: textOnly,
		Nodes:    make([]common.Node, 0, len(nodes)),
		Links:    g.Links(),
	}
	for _, n := range nodes {
		node := *n
		// In-flight state does not survive a round trip.
		node.Loading = false
		doc.Nodes = append(doc.Nodes, node)
	}
	return doc
}

// rawDocument mirrors Document with untyped node ids so legacy
// documents can be detected before they corrupt a graph.
type rawDocument struct {
	Version int `json:"version"`
	Nodes   []struct {
		ID json.RawMessage `json:"id"`
	} `json:"nodes"`
}

// Decode parses a document. Documents from the pre-numeric era carried
// string node ids; those are rejected with ErrLegacyDocument rather
// than imported half-broken.
func Decode(data []byte) (*Document, error) {
	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	for _, n := range raw.Nodes {
		var id int64
		if err := json.Unmarshal(n.ID, &id); err != nil {
			return nil, fmt.Errorf("decode document: node id %s: %w", n.ID, common.ErrLegacyDocument)
		}
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if len(doc.Nodes) == 0 {
		return nil, fmt.Errorf("decode document: no nodes")
	}
	return &doc, nil
}

// Apply replaces the graph content with the document's. Link endpoints
// that reference unknown nodes are dropped rather than rejected, a
// hand-edited file should degrade, not brick the import.
func (d *Document) Apply(g *graph.Graph) {
	nodes := make([]*common.Node, 0, len(d.Nodes))
	known := make(map[int64]bool, len(d.Nodes))
	for i := range d.Nodes {
		n := d.Nodes[i]
		n.Loading = false
		if !known[n.ID] {
			known[n.ID] = true
			nodes = append(nodes, &n)
		}
	}

	links := make([]common.Link, 0, len(d.Links))
	for _, l := range d.Links {
		if known[l.Source] && known[l.Target] && l.Source != l.Target {
			links = append(links, common.NewLink(l.Source, l.Target, l.Label))
		}
	}
	g.Replace(nodes, links)
}
