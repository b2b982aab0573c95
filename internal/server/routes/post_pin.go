package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// PinNodeHandler fixes a node at a position so the simulation flows
// around it.
func PinNodeHandler(c echo.Context) error {
	type pinBody struct {
		NodeID int64    `json:"nodeId" validate:"required"`
		X      *float64 `json:"x" validate:"required"`
		Y      *float64 `json:"y" validate:"required"`
	}

	data := new(pinBody)
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

	if err := s.Pin(data.NodeID, *data.X, *data.Y); err != nil {
		return c.JSON(http.StatusNotFound, errorResponse{Message: "Node not found"})
	}
	return c.NoContent(http.StatusNoContent)
}

// UnpinNodeHandler releases a pinned node back to the simulation.
func UnpinNodeHandler(c echo.Context) error {
	type unpinBody struct {
		NodeID int64 `json:"nodeId" validate:"required"`
	}

	data := new(unpinBody)
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

	if err := s.Unpin(data.NodeID); err != nil {
		return c.JSON(http.StatusNotFound, errorResponse{Message: "Node not found"})
	}
	return c.NoContent(http.StatusNoContent)
}
