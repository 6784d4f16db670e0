// handlers_lookup.go - Reference data proxied from the factory API
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/floorwatch/backend/internal/backend"
	"github.com/labstack/echo/v4"
)

// Lookups is the reference data the factory API exposes.
// *backend.Client satisfies it.
type Lookups interface {
	Users(ctx context.Context) (json.RawMessage, error)
	Components(ctx context.Context) (json.RawMessage, error)
	Moulds(ctx context.Context) (json.RawMessage, error)
	Machines(ctx context.Context) (json.RawMessage, error)
	Reports(ctx context.Context) (json.RawMessage, error)
	Factories(ctx context.Context) (json.RawMessage, error)
}

// LookupHandlerImpl implements the LookupHandler interface
type LookupHandlerImpl struct {
	sources map[string]func(context.Context) (json.RawMessage, error)
}

// NewLookupHandler creates a new lookup handler
func NewLookupHandler(l Lookups) LookupHandler {
	return &LookupHandlerImpl{sources: map[string]func(context.Context) (json.RawMessage, error){
		"users":      l.Users,
		"components": l.Components,
		"moulds":     l.Moulds,
		"machines":   l.Machines,
		"reports":    l.Reports,
		"factories":  l.Factories,
	}}
}

// HandleGetLookup returns the data array of one lookup list, as the
// reassignment dialog needs components and moulds to choose from.
func (h *LookupHandlerImpl) HandleGetLookup(c echo.Context) error {
	kind := c.Param("kind")
	fetch, ok := h.sources[kind]
	if !ok {
		return NewNotFoundError("lookup", kind)
	}

	data, err := fetch(c.Request().Context())
	if err != nil {
		var se *backend.StatusError
		if errors.As(err, &se) {
			return &APIError{
				Status:  http.StatusBadGateway,
				Code:    "UPSTREAM_ERROR",
				Message: se.Message,
				Details: se.Error(),
			}
		}
		return NewServiceUnavailableError("factory API unreachable")
	}
	if len(data) == 0 || string(data) == "null" {
		data = json.RawMessage("[]")
	}
	return c.JSONBlob(http.StatusOK, data)
}
