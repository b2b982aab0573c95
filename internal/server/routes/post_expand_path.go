package routes

import (
	"net/http"

	"github.com/skein-labs/skein/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ExpandPathHandler stitches a chain of titles into the session graph,
// resolving and expanding each hop in order.
func ExpandPathHandler(c echo.Context) error {
	type expandPathBody struct {
		Titles []string `json:"titles" validate:"required,min=2,dive,required"`
	}

	type expandPathResponse struct {
		Hops []int64 `json:"hops"`
	}

	data := new(expandPathBody)
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

	hops, err := s.ExpandPath(c.Request().Context(), data.Titles)
	if err != nil {
		logger.Error("[Routes] Path expansion failed", "session", s.ID, "err", err)
		return c.JSON(http.StatusBadGateway, errorResponse{Message: "Path expansion failed"})
	}

	return c.JSON(http.StatusOK, expandPathResponse{Hops: hops})
}
