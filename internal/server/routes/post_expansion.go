package routes

import (
	"net/http"

	"github.com/skein-labs/skein/backend/internal/server/middleware"
	"github.com/skein-labs/skein/backend/pkg/cache"
	"github.com/skein-labs/skein/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

// WriteExpansionHandler records an expansion result in the store. The
// whole batch commits or none of it does.
func WriteExpansionHandler(c echo.Context) error {
	type writeExpansionBody struct {
		SourceID   int64        `json:"sourceId" validate:"required,gt=0"`
		ContextIDs []int64      `json:"contextIds"`
		Nodes      []cache.Node `json:"nodes" validate:"required,min=1,dive"`
	}

	type writeExpansionResponse struct {
		OK  bool    `json:"ok"`
		IDs []int64 `json:"ids"`
	}

	data := new(writeExpansionBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "Invalid request body"})
	}
	for _, n := range data.Nodes {
		if n.Title == "" {
			return c.JSON(http.StatusBadRequest, errorResponse{Message: "Invalid request body"})
		}
	}

	app := c.(*middleware.AppContext).App
	ids, err := app.Store.WriteExpansion(c.Request().Context(), data.SourceID, data.ContextIDs, data.Nodes)
	if err != nil {
		logger.Error("[Routes] Expansion write failed", "source_id", data.SourceID, "err", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Message: "Internal server error"})
	}

	return c.JSON(http.StatusOK, writeExpansionResponse{OK: true, IDs: ids})
}
