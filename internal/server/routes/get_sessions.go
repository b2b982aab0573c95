package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// GetSessionHandler returns the current graph and layout state.
func GetSessionHandler(c echo.Context) error {
	s, ok := sessionFromPath(c)
	if !ok {
		return nil
	}
	return c.JSON(http.StatusOK, s.Snapshot())
}
