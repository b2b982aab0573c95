package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/skein-labs/skein/backend/pkg/common"
	"github.com/skein-labs/skein/backend/pkg/expand"
	"github.com/skein-labs/skein/backend/pkg/graph"
	"github.com/skein-labs/skein/backend/pkg/logger"
	"github.com/skein-labs/skein/backend/pkg/provider"

	"github.com/rabbitmq/amqp091-go"
)

// PrefetchMsg asks the worker to warm the cache for one node under a
// known context. Ids are canonical store ids; context arrays are
// parallel.
type PrefetchMsg struct {
	NodeID        int64    `json:"nodeId"`
	Title         string   `json:"title"`
	Type          string   `json:"type"`
	ContextIDs    []int64  `json:"contextIds"`
	ContextTitles []string `json:"contextTitles"`
}

// PublishPrefetch queues one warm-up job.
func PublishPrefetch(ch *amqp091.Channel, msg PrefetchMsg) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal prefetch message: %w", err)
	}
	return PublishFIFO(ch, PrefetchQueue, data)
}

// ProcessPrefetch runs one warm-up job: a throwaway graph holding just
// the target node and its context, expanded through the normal
// pipeline against the cache store. A cache hit makes this nearly
// free; a miss pays the provider once so a live session does not have
// to.
func ProcessPrefetch(ctx context.Context, cacheStore expand.CacheStore, gateway provider.Gateway, body string) error {
	var msg PrefetchMsg
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return fmt.Errorf("unmarshal prefetch message: %w", err)
	}
	if msg.NodeID <= 0 || msg.Title == "" {
		return fmt.Errorf("invalid prefetch message: id=%d title=%q", msg.NodeID, msg.Title)
	}
	if len(msg.ContextIDs) != len(msg.ContextTitles) {
		return fmt.Errorf("invalid prefetch message: %d context ids, %d titles", len(msg.ContextIDs), len(msg.ContextTitles))
	}

	var mu sync.Mutex
	g := graph.New()
	g.AddNode(&common.Node{
		ID:    msg.NodeID,
		Title: msg.Title,
		Type:  common.ParseNodeType(msg.Type),
	})
	for i, id := range msg.ContextIDs {
		if id == msg.NodeID {
			continue
		}
		g.AddNode(&common.Node{ID: id, Title: msg.ContextTitles[i]})
		g.AddLink(msg.NodeID, id, "")
	}

	expander := expand.New(expand.Params{
		Mutex:   &mu,
		Graph:   g,
		Cache:   cacheStore,
		Gateway: gateway,
	})

	res, err := expander.Expand(ctx, msg.NodeID)
	if err != nil {
		// Nothing known about the entity is a final answer, not a
		// reason to retry.
		if errors.Is(err, common.ErrNoResults) {
			logger.Info("[Queue] Prefetch found no results", "title", msg.Title)
			return nil
		}
		return fmt.Errorf("prefetch %q: %w", msg.Title, err)
	}
	logger.Info("[Queue] Prefetch complete",
		"title", msg.Title,
		"added", res.Added,
		"from_cache", res.FromCache,
		"terminal", res.Terminal,
	)
	return nil
}
