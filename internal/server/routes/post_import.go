package routes

import (
	"errors"
	"io"
	"net/http"

	"github.com/skein-labs/skein/backend/pkg/common"
	"github.com/skein-labs/skein/backend/pkg/document"
	"github.com/skein-labs/skein/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ImportSessionHandler replaces the session content with an uploaded
// document. Documents with legacy string node ids are rejected.
func ImportSessionHandler(c echo.Context) error {
	s, ok := sessionFromPath(c)
	if !ok {
		return nil
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "Invalid request body"})
	}

	doc, err := document.Decode(body)
	if err != nil {
		if errors.Is(err, common.ErrLegacyDocument) {
			return c.JSON(http.StatusUnprocessableEntity, errorResponse{Message: "Document uses a legacy format and cannot be imported"})
		}
		logger.Debug("[Routes] Document decode failed", "err", err)
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "Invalid document"})
	}

	s.Import(doc)
	return c.JSON(http.StatusOK, s.Snapshot())
}
