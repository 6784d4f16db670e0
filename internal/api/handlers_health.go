// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/floorwatch/backend/internal/store"
	"github.com/labstack/echo/v4"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version string
	store   *store.Store
	phase   func() string
}

// NewHealthHandler creates a new health handler. phase may be nil when no
// live stream is attached.
func NewHealthHandler(version string, st *store.Store, phase func() string) HealthHandler {
	return &HealthHandlerImpl{
		version: version,
		store:   st,
		phase:   phase,
	}
}

// HandleHealth returns server health status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	body := map[string]interface{}{
		"status":  "ok",
		"version": h.version,
	}
	if h.store != nil {
		body["socketStatus"] = h.store.SocketStatus()
		body["isLoading"] = h.store.IsLoading()
	}
	if h.phase != nil {
		body["stream"] = h.phase()
	}
	return c.JSON(http.StatusOK, body)
}
