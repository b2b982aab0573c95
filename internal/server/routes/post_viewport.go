package routes

import (
	"net/http"

	"github.com/skein-labs/skein/backend/pkg/layout"

	"github.com/labstack/echo/v4"
)

// ViewportHandler reports the visible region after an interaction
// settles. Unchecked visible nodes get queued for summary and image
// enrichment.
func ViewportHandler(c echo.Context) error {
	type viewportBody struct {
		MinX   float64 `json:"minX"`
		MinY   float64 `json:"minY"`
		MaxX   float64 `json:"maxX"`
		MaxY   float64 `json:"maxY"`
		Margin float64 `json:"margin"`
	}

	type viewportResponse struct {
		Checked int `json:"checked"`
	}

	data := new(viewportBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "Invalid request body"})
	}
	if data.MaxX < data.MinX || data.MaxY < data.MinY {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "Invalid viewport"})
	}

	s, ok := sessionFromPath(c)
	if !ok {
		return nil
	}

	checked := s.ReportViewport(c.Request().Context(), layout.Viewport{
		MinX: data.MinX,
		MinY: data.MinY,
		MaxX: data.MaxX,
		MaxY: data.MaxY,
	}, data.Margin)

	return c.JSON(http.StatusOK, viewportResponse{Checked: checked})
}
