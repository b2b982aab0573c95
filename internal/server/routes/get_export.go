package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ExportSessionHandler returns the session as a portable document.
func ExportSessionHandler(c echo.Context) error {
	s, ok := sessionFromPath(c)
	if !ok {
		return nil
	}
	return c.JSON(http.StatusOK, s.Export())
}
