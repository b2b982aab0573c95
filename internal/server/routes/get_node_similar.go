package routes

import (
	"net/http"
	"strconv"

	"github.com/skein-labs/skein/backend/internal/server/middleware"
	"github.com/skein-labs/skein/backend/pkg/cache"
	"github.com/skein-labs/skein/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

// SimilarNodesHandler suggests known entities for a partial title.
// With an embedder configured it searches by embedding distance,
// otherwise it falls back to a title prefix match.
func SimilarNodesHandler(c echo.Context) error {
	type similarNodesResponse struct {
		Nodes []cache.Node `json:"nodes"`
	}

	title := c.QueryParam("title")
	if title == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "Missing title parameter"})
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	var (
		nodes []cache.Node
		err   error
	)
	if app.Embedder != nil {
		embedding, embedErr := app.Embedder.Embed(ctx, title)
		if embedErr == nil {
			nodes, err = app.Store.SimilarByEmbedding(ctx, embedding, limit)
		} else {
			logger.Debug("[Routes] Query embedding failed, falling back to title match", "err", embedErr)
			nodes, err = app.Store.SimilarByTitle(ctx, title, limit)
		}
	} else {
		nodes, err = app.Store.SimilarByTitle(ctx, title, limit)
	}
	if err != nil {
		logger.Error("[Routes] Similarity search failed", "title", title, "err", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Message: "Internal server error"})
	}

	if nodes == nil {
		nodes = []cache.Node{}
	}
	return c.JSON(http.StatusOK, similarNodesResponse{Nodes: nodes})
}
