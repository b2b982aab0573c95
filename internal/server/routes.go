package server

import (
	"net/http"

	"github.com/skein-labs/skein/backend/internal/server/middleware"
	"github.com/skein-labs/skein/backend/internal/server/routes"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Cache store surface, consumed by sessions and by the prefetch
	// worker of other deployments.
	e.POST("/node", routes.CreateNodeHandler)
	e.GET("/node/similar", routes.SimilarNodesHandler)
	e.GET("/expansion", routes.LookupExpansionHandler)
	e.POST("/expansion", routes.WriteExpansionHandler)

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Session routes
	apiRoutes.POST("/sessions", routes.CreateSessionHandler)
	apiRoutes.GET("/sessions/:id", routes.GetSessionHandler)
	apiRoutes.DELETE("/sessions/:id", routes.DeleteSessionHandler)

	// Graph operations
	apiRoutes.POST("/sessions/:id/expand", routes.ExpandNodeHandler)
	apiRoutes.POST("/sessions/:id/expand-path", routes.ExpandPathHandler)
	apiRoutes.POST("/sessions/:id/prune", routes.PruneHandler)
	apiRoutes.GET("/sessions/:id/nodes/:node_id/delete-preview", routes.DeletePreviewHandler)
	apiRoutes.DELETE("/sessions/:id/nodes/:node_id", routes.DeleteNodeHandler)

	// Layout and enrichment
	apiRoutes.PATCH("/sessions/:id/layout", routes.UpdateLayoutHandler)
	apiRoutes.POST("/sessions/:id/viewport", routes.ViewportHandler)
	apiRoutes.POST("/sessions/:id/select", routes.SelectNodeHandler)
	apiRoutes.POST("/sessions/:id/pin", routes.PinNodeHandler)
	apiRoutes.POST("/sessions/:id/unpin", routes.UnpinNodeHandler)

	// Documents
	apiRoutes.GET("/sessions/:id/export", routes.ExportSessionHandler)
	apiRoutes.POST("/sessions/:id/import", routes.ImportSessionHandler)
}
