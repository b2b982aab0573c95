package routes

import (
	"errors"
	"net/http"

	"github.com/skein-labs/skein/backend/internal/queue"
	"github.com/skein-labs/skein/backend/internal/server/middleware"
	"github.com/skein-labs/skein/backend/internal/session"
	"github.com/skein-labs/skein/backend/pkg/common"
	"github.com/skein-labs/skein/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ExpandNodeHandler expands one node of a session. Setting `more`
// re-expands an already expanded node past its cached neighbor set.
// On success the new frontier is queued for cache prefetch so likely
// follow-up expansions are already warm.
func ExpandNodeHandler(c echo.Context) error {
	type expandBody struct {
		NodeID int64 `json:"nodeId" validate:"required"`
		More   bool  `json:"more"`
	}

	data := new(expandBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "Invalid request body"})
	}

	s, ok := sessionFromPath(c)
	if !ok {
		return nil
	}

	expandFn := s.Expand
	if data.More {
		expandFn = s.ExpandMore
	}

	res, err := expandFn(c.Request().Context(), data.NodeID)
	if err != nil {
		if errors.Is(err, common.ErrNoResults) {
			return c.JSON(http.StatusNotFound, errorResponse{Message: "Nothing known about this entity"})
		}
		if errors.Is(err, common.ErrTimeout) {
			return c.JSON(http.StatusGatewayTimeout, errorResponse{Message: "Provider timed out"})
		}
		logger.Error("[Routes] Expansion failed", "session", s.ID, "node_id", data.NodeID, "err", err)
		return c.JSON(http.StatusBadGateway, errorResponse{Message: "Expansion failed"})
	}

	if res.Added > 0 {
		publishFrontier(c, s, data.NodeID)
	}

	return c.JSON(http.StatusOK, s.Snapshot())
}

// publishFrontier queues prefetch jobs for the unexpanded neighbors of
// a freshly expanded node. Best effort, a dead queue never fails the
// request.
func publishFrontier(c echo.Context, s *session.Session, nodeID int64) {
	app := c.(*middleware.AppContext).App
	if app.Queue == nil || nodeID <= 0 {
		return
	}

	frontier, sourceTitle := s.Frontier(nodeID)
	for _, fn := range frontier {
		msg := queue.PrefetchMsg{
			NodeID:        fn.ID,
			Title:         fn.Title,
			Type:          fn.Type.String(),
			ContextIDs:    []int64{nodeID},
			ContextTitles: []string{sourceTitle},
		}
		if err := queue.PublishPrefetch(app.Queue, msg); err != nil {
			logger.Warn("[Routes] Prefetch publish failed", "title", fn.Title, "err", err)
			return
		}
	}
	if len(frontier) > 0 {
		logger.Debug("[Routes] Queued frontier prefetch", "session", s.ID, "count", len(frontier))
	}
}
