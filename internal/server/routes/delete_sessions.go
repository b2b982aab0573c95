package routes

import (
	"net/http"

	"github.com/skein-labs/skein/backend/internal/server/middleware"

	"github.com/labstack/echo/v4"
)

// DeleteSessionHandler drops a session and all its in-memory state.
func DeleteSessionHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	app.Sessions.Delete(c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}
