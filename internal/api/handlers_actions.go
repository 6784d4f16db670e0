// handlers_actions.go - Operator action and notification handlers
package api

import (
	"net/http"
	"strings"

	"github.com/floorwatch/backend/internal/gateway"
	"github.com/labstack/echo/v4"
)

// ActionHandlerImpl implements the ActionHandler interface
type ActionHandlerImpl struct {
	gateway *gateway.Gateway
	feed    *gateway.Feed
}

// NewActionHandler creates a new action handler
func NewActionHandler(gw *gateway.Gateway, feed *gateway.Feed) ActionHandler {
	return &ActionHandlerImpl{gateway: gw, feed: feed}
}

// HandleReassignLiveRun changes what a machine is running. A finished
// submission answers 200 whether the backend accepted it or not; the
// outcome is in the body and in the notification feed.
func (h *ActionHandlerImpl) HandleReassignLiveRun(c echo.Context) error {
	number := c.Param("machineNumber")
	if number == "" {
		return NewValidationError("machineNumber")
	}

	var req gateway.Reassignment
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid reassignment body", err)
	}
	if req.Component == "" && req.Mould == "" && req.Color == "" {
		return NewValidationError("component")
	}

	res := h.gateway.ReassignLiveRun(c.Request().Context(), number, req)
	if res.Skipped {
		return NewConflictError("a reassignment for this machine is already in progress")
	}
	return c.JSON(http.StatusOK, res)
}

// HandleAppendNote adds an operator note to a machine.
func (h *ActionHandlerImpl) HandleAppendNote(c echo.Context) error {
	uid := c.Param("machineUid")
	if uid == "" {
		return NewValidationError("machineUid")
	}

	var req gateway.NoteRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid note body", err)
	}
	if strings.TrimSpace(req.Note) == "" {
		return NewValidationError("note")
	}

	res := h.gateway.AppendNote(c.Request().Context(), uid, req)
	if res.Skipped {
		return NewConflictError("a note for this machine is already being saved")
	}
	return c.JSON(http.StatusOK, res)
}

// HandleGetActionStatus reports whether a submit control is busy.
func (h *ActionHandlerImpl) HandleGetActionStatus(c echo.Context) error {
	key := c.Param("key")
	if key == "" {
		return NewValidationError("key")
	}
	return c.JSON(http.StatusOK, h.gateway.ActionStatus(key))
}

// HandleGetNotifications returns the recent notifications, newest last.
func (h *ActionHandlerImpl) HandleGetNotifications(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"notifications": h.feed.Recent(),
	})
}
