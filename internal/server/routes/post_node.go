package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/skein-labs/skein/backend/internal/server/middleware"
	"github.com/skein-labs/skein/backend/pkg/cache"
	"github.com/skein-labs/skein/backend/pkg/common"
	"github.com/skein-labs/skein/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

// CreateNodeHandler upserts a node into the cache store and returns
// its canonical id. Upserting the same (title, type, externalRef)
// always yields the same id.
func CreateNodeHandler(c echo.Context) error {
	type createNodeBody struct {
		Title       string `json:"title" validate:"required"`
		Type        string `json:"type" validate:"required,oneof=person thing"`
		Description string `json:"description"`
		Year        *int   `json:"year"`
		ExternalRef string `json:"externalRef"`
		ImageURL    string `json:"imageUrl"`
		Summary     string `json:"summary"`
	}

	type createNodeResponse struct {
		ID int64 `json:"id"`
	}

	data := new(createNodeBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "Invalid request body"})
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	id, err := app.Store.UpsertNode(ctx, cache.Node{
		Title:       data.Title,
		Type:        common.ParseNodeType(data.Type),
		Description: data.Description,
		Year:        data.Year,
		ExternalRef: data.ExternalRef,
		ImageURL:    data.ImageURL,
		Summary:     data.Summary,
	})
	if err != nil {
		logger.Error("[Routes] Node upsert failed", "title", data.Title, "err", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Message: "Internal server error"})
	}

	// Title embeddings power similarity search and are filled in off
	// the request path.
	if app.Embedder != nil {
		go func(id int64, title string) {
			embedCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			embedding, err := app.Embedder.Embed(embedCtx, title)
			if err != nil {
				logger.Debug("[Routes] Title embedding failed", "title", title, "err", err)
				return
			}
			if err := app.Store.SetEmbedding(embedCtx, id, embedding); err != nil {
				logger.Debug("[Routes] Storing embedding failed", "id", id, "err", err)
			}
		}(id, data.Title)
	}

	return c.JSON(http.StatusOK, createNodeResponse{ID: id})
}
