package routes

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/skein-labs/skein/backend/internal/server/middleware"
	"github.com/skein-labs/skein/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

// LookupExpansionHandler serves cached expansions. The context query
// parameter carries the neighbor ids of the source as a comma list;
// the store matches it exactly by fingerprint or fuzzily by Jaccard
// similarity.
func LookupExpansionHandler(c echo.Context) error {
	sourceID, err := strconv.ParseInt(c.QueryParam("sourceId"), 10, 64)
	if err != nil || sourceID <= 0 {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "Invalid sourceId parameter"})
	}

	contextIDs, err := parseIDList(c.QueryParam("context"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "Invalid context parameter"})
	}

	app := c.(*middleware.AppContext).App
	result, err := app.Store.LookupExpansion(c.Request().Context(), sourceID, contextIDs)
	if err != nil {
		logger.Error("[Routes] Expansion lookup failed", "source_id", sourceID, "err", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Message: "Internal server error"})
	}
	return c.JSON(http.StatusOK, result)
}

func parseIDList(s string) ([]int64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
