package routes

import (
	"net/http"

	"github.com/skein-labs/skein/backend/pkg/layout"

	"github.com/labstack/echo/v4"
)

// UpdateLayoutHandler switches layout mode, density and the text-only
// toggle for a session.
func UpdateLayoutHandler(c echo.Context) error {
	type updateLayoutBody struct {
		Mode     string `json:"mode" validate:"omitempty,oneof=network timeline"`
		Compact  *bool  `json:"compact"`
		TextOnly *bool  `json:"textOnly"`
	}

	data := new(updateLayoutBody)
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

	snap := s.Snapshot()
	mode := layout.ParseMode(snap.Mode)
	if data.Mode != "" {
		mode = layout.ParseMode(data.Mode)
	}
	compact := snap.Compact
	if data.Compact != nil {
		compact = *data.Compact
	}
	s.SetLayout(mode, compact)

	if data.TextOnly != nil {
		s.SetTextOnly(*data.TextOnly)
	}

	return c.JSON(http.StatusOK, s.Snapshot())
}
