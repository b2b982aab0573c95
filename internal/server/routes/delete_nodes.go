package routes

import (
	"net/http"
	"strconv"

	"github.com/skein-labs/skein/backend/pkg/graph"

	"github.com/labstack/echo/v4"
)

type deleteOutcomeResponse struct {
	RootID     int64   `json:"rootId"`
	KeptNodes  int     `json:"keptNodes"`
	KeptLinks  int     `json:"keptLinks"`
	DroppedIDs []int64 `json:"droppedIds"`
}

func toDeleteOutcomeResponse(outcome graph.DeleteOutcome) deleteOutcomeResponse {
	dropped := outcome.DroppedIDs
	if dropped == nil {
		dropped = []int64{}
	}
	return deleteOutcomeResponse{
		RootID:     outcome.RootID,
		KeptNodes:  len(outcome.KeptNodes),
		KeptLinks:  len(outcome.KeptLinks),
		DroppedIDs: dropped,
	}
}

// DeletePreviewHandler reports what deleting a node would remove,
// without changing anything. Disconnected components other than the
// largest go with the node.
func DeletePreviewHandler(c echo.Context) error {
	nodeID, err := strconv.ParseInt(c.Param("node_id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "Invalid node id"})
	}

	s, ok := sessionFromPath(c)
	if !ok {
		return nil
	}

	outcome, err := s.DeletePreview(nodeID)
	if err != nil {
		return c.JSON(http.StatusNotFound, errorResponse{Message: "Node not found"})
	}
	return c.JSON(http.StatusOK, toDeleteOutcomeResponse(outcome))
}

// DeleteNodeHandler removes a node and every component its removal
// disconnects.
func DeleteNodeHandler(c echo.Context) error {
	nodeID, err := strconv.ParseInt(c.Param("node_id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "Invalid node id"})
	}

	s, ok := sessionFromPath(c)
	if !ok {
		return nil
	}

	outcome, err := s.DeleteApply(nodeID)
	if err != nil {
		return c.JSON(http.StatusNotFound, errorResponse{Message: "Node not found"})
	}
	return c.JSON(http.StatusOK, toDeleteOutcomeResponse(outcome))
}
