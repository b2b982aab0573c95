package expand

import (
	"context"
	"fmt"
	"strings"

	"github.com/skein-labs/skein/backend/pkg/logger"
)

// ExpandPath stitches a chain of titles into the graph. Hops are
// resolved and expanded strictly in order: hop i is fully settled,
// including its expansion, before hop i+1 is touched, so later hops
// can attach to nodes the earlier expansions produced. Returns the
// resolved node id per hop.
func (e *Expander) ExpandPath(ctx context.Context, titles []string) ([]int64, error) {
	if len(titles) < 2 {
		return nil, fmt.Errorf("expand path: need at least 2 titles, got %d", len(titles))
	}

	hops := make([]int64, 0, len(titles))
	var prevID int64

	for i, title := range titles {
		id, ok := e.findByTitle(title)
		if !ok {
			node, err := e.Seed(ctx, title)
			if err != nil {
				return hops, fmt.Errorf("expand path hop %d: %w", i, err)
			}
			id = node.ID
		}

		if i > 0 {
			e.mu.Lock()
			e.graph.AddLink(prevID, id, "")
			e.mu.Unlock()
		}

		if _, err := e.Expand(ctx, id); err != nil {
			logger.Warn("[Expand] Path hop expansion failed, keeping chain", "hop", i, "title", title, "error", err)
		}

		hops = append(hops, id)
		prevID = id
	}
	return hops, nil
}

// findByTitle returns the id of a graph node with the given title,
// matched case-insensitively.
func (e *Expander) findByTitle(title string) (int64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, n := range e.graph.Nodes() {
		if strings.EqualFold(n.Title, strings.TrimSpace(title)) {
			return n.ID, true
		}
	}
	return 0, false
}
