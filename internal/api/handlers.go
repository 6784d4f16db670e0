package api

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/floorwatch/backend/internal/models"
	"github.com/floorwatch/backend/internal/stats"
	"github.com/floorwatch/backend/internal/store"
	"github.com/floorwatch/backend/internal/view"
	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	maxItemsPerPage = 200
	maxCurrentPage  = 1_000_000
)

// LiveRunResponse is the payload of GET /api/live-run and of "page"
// WebSocket messages.
type LiveRunResponse struct {
	Page         view.Page          `json:"page"`
	Filter       models.FilterState `json:"filter"`
	SocketStatus string             `json:"socketStatus"`
	IsLoading    bool               `json:"isLoading"`
	Version      uint64             `json:"version"`
	FileURL      string             `json:"fileUrl,omitempty"`
}

// SummaryResponse is the payload of GET /api/live-run/summary.
type SummaryResponse struct {
	Summary    stats.FleetSummary `json:"summary"`
	Highlights *models.Highlights `json:"highlights,omitempty"`
}

// FilterUpdate is a partial filter change. Absent fields are untouched.
type FilterUpdate struct {
	SearchQuery  *string `json:"searchQuery"`
	StatusFilter *string `json:"statusFilter"`
	CurrentPage  *int    `json:"currentPage"`
	ItemsPerPage *int    `json:"itemsPerPage"`
}

// LiveRunHandlerImpl implements the LiveRunHandler interface
type LiveRunHandlerImpl struct {
	store     *store.Store
	projector *view.Projector
	rules     stats.Rules
	fileURL   string
}

// NewLiveRunHandler creates a new live-run handler
func NewLiveRunHandler(st *store.Store, projector *view.Projector, rules stats.Rules, fileURL string) *LiveRunHandlerImpl {
	return &LiveRunHandlerImpl{
		store:     st,
		projector: projector,
		rules:     rules,
		fileURL:   fileURL,
	}
}

// Current builds the live-run payload from the store.
func (h *LiveRunHandlerImpl) Current() LiveRunResponse {
	return LiveRunResponse{
		Page:         h.projector.Current(),
		Filter:       h.store.Filter(),
		SocketStatus: h.store.SocketStatus(),
		IsLoading:    h.store.IsLoading(),
		Version:      h.store.Version(),
		FileURL:      h.fileURL,
	}
}

// HandleGetLiveRun returns the current projected page.
func (h *LiveRunHandlerImpl) HandleGetLiveRun(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Current())
}

// HandleGetLiveRunMsgpack returns the current page encoded as msgpack.
func (h *LiveRunHandlerImpl) HandleGetLiveRunMsgpack(c echo.Context) error {
	data, err := encodeMsgpack(h.Current())
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleUpdateFilter applies a partial filter update. Changing the search
// text or status filter sends the view back to page 1.
func (h *LiveRunHandlerImpl) HandleUpdateFilter(c echo.Context) error {
	var req FilterUpdate
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid filter body", err)
	}
	if req.CurrentPage != nil && (*req.CurrentPage < 1 || *req.CurrentPage > maxCurrentPage) {
		return NewValidationError("currentPage")
	}
	if req.ItemsPerPage != nil && (*req.ItemsPerPage < 1 || *req.ItemsPerPage > maxItemsPerPage) {
		return NewValidationError("itemsPerPage")
	}

	current := h.store.Filter()
	reset := false
	if req.SearchQuery != nil && *req.SearchQuery != current.SearchQuery {
		h.store.SetSearchQuery(*req.SearchQuery)
		reset = true
	}
	if req.StatusFilter != nil {
		status := strings.TrimSpace(*req.StatusFilter)
		if status == "" {
			status = models.StatusFilterAll
		}
		if status != current.StatusFilter {
			h.store.SetStatusFilter(status)
			reset = true
		}
	}
	if req.ItemsPerPage != nil {
		h.store.SetItemsPerPage(*req.ItemsPerPage)
	}

	switch {
	case req.CurrentPage != nil:
		h.store.SetCurrentPage(*req.CurrentPage)
	case reset:
		h.store.SetCurrentPage(1)
	}

	return c.JSON(http.StatusOK, h.Current())
}

// HandleGetSummary returns fleet counts and the last highlights aggregate.
func (h *LiveRunHandlerImpl) HandleGetSummary(c echo.Context) error {
	st := h.store.State()
	return c.JSON(http.StatusOK, SummaryResponse{
		Summary:    stats.Summarize(st.MachineData),
		Highlights: st.Highlights,
	})
}

// HandleGetMachineStats returns derived card statistics for one machine.
func (h *LiveRunHandlerImpl) HandleGetMachineStats(c echo.Context) error {
	number := c.Param("machineNumber")
	if number == "" {
		return NewValidationError("machineNumber")
	}

	for _, rec := range h.store.MachineData() {
		if rec.Machine.MachineNumber == number {
			return c.JSON(http.StatusOK, stats.Derive(rec, h.rules))
		}
	}
	if h.store.IsLoading() {
		return NewServiceUnavailableError("live data not received yet")
	}
	return NewNotFoundError("machine", number)
}

// encodeMsgpack reuses the json tags so both encodings share field names.
func encodeMsgpack(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
