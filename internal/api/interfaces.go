// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"github.com/labstack/echo/v4"
)

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// LiveRunHandler serves the projected live-run view and its statistics
type LiveRunHandler interface {
	HandleGetLiveRun(c echo.Context) error
	HandleGetLiveRunMsgpack(c echo.Context) error
	HandleUpdateFilter(c echo.Context) error
	HandleGetSummary(c echo.Context) error
	HandleGetMachineStats(c echo.Context) error
}

// ActionHandler submits operator actions and reports their state
type ActionHandler interface {
	HandleReassignLiveRun(c echo.Context) error
	HandleAppendNote(c echo.Context) error
	HandleGetActionStatus(c echo.Context) error
	HandleGetNotifications(c echo.Context) error
}

// LookupHandler serves reference lists from the factory API
type LookupHandler interface {
	HandleGetLookup(c echo.Context) error
}

// LiveSocketHandler pushes view updates over WebSocket
type LiveSocketHandler interface {
	HandleLiveSocket(c echo.Context) error
	ClientCount() int
}
