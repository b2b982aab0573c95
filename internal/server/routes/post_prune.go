package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// PruneHandler removes loose ends from the session graph, keeping the
// given node regardless of its degree.
func PruneHandler(c echo.Context) error {
	type pruneBody struct {
		KeepID int64 `json:"keepId" validate:"required"`
	}

	data := new(pruneBody)
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

	s.Prune(data.KeepID)
	return c.JSON(http.StatusOK, s.Snapshot())
}
