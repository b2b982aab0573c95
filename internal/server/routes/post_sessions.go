package routes

import (
	"errors"
	"net/http"

	"github.com/skein-labs/skein/backend/internal/server/middleware"
	"github.com/skein-labs/skein/backend/pkg/common"
	"github.com/skein-labs/skein/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

// CreateSessionHandler opens a session, optionally seeded with a root
// entity that is classified and expanded before the first response.
func CreateSessionHandler(c echo.Context) error {
	type createSessionBody struct {
		Title string `json:"title"`
	}

	data := new(createSessionBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "Invalid request body"})
	}

	app := c.(*middleware.AppContext).App
	s, err := app.Sessions.Create()
	if err != nil {
		logger.Error("[Routes] Session creation failed", "err", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Message: "Internal server error"})
	}

	if data.Title != "" {
		if _, err := s.Start(c.Request().Context(), data.Title); err != nil {
			app.Sessions.Delete(s.ID)
			if errors.Is(err, common.ErrNoResults) {
				return c.JSON(http.StatusNotFound, errorResponse{Message: "Nothing known about this entity"})
			}
			if errors.Is(err, common.ErrTimeout) {
				return c.JSON(http.StatusGatewayTimeout, errorResponse{Message: "Provider timed out"})
			}
			logger.Error("[Routes] Initial expansion failed", "title", data.Title, "err", err)
			return c.JSON(http.StatusBadGateway, errorResponse{Message: "Initial expansion failed"})
		}
	}

	return c.JSON(http.StatusOK, s.Snapshot())
}
