package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// SelectNodeHandler handles explicit node re-selection: the one case
// where an already-checked node gets a fresh summary and image lookup.
func SelectNodeHandler(c echo.Context) error {
	type selectBody struct {
		NodeID int64 `json:"nodeId" validate:"required"`
	}

	data := new(selectBody)
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

	s.Reselect(c.Request().Context(), data.NodeID)
	return c.JSON(http.StatusOK, s.Snapshot())
}
