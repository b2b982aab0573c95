package routes

import (
	"net/http"

	"github.com/skein-labs/skein/backend/internal/server/middleware"
	"github.com/skein-labs/skein/backend/internal/session"

	"github.com/labstack/echo/v4"
)

type errorResponse struct {
	Message string `json:"message"`
}

// sessionFromPath resolves the :id path parameter to a live session and
// marks it active. The bool reports whether the handler should
// continue; if false the response has already been written.
func sessionFromPath(c echo.Context) (*session.Session, bool) {
	app := c.(*middleware.AppContext).App
	s, ok := app.Sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Message: "Session not found"})
		return nil, false
	}
	s.Touch()
	return s, true
}
