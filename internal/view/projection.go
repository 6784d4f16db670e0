// Package view derives the page of machine records to show from a
// snapshot and the operator's filter state.
package view

import (
	"strings"
	"sync"

	"github.com/floorwatch/backend/internal/models"
)

// Page is one projected page of the live-run view.
type Page struct {
	Records       []models.MachineRecord `json:"records"`
	FilteredCount int                    `json:"filteredCount"`
	TotalPages    int                    `json:"totalPages"`
	CurrentPage   int                    `json:"currentPage"`
	ItemsPerPage  int                    `json:"itemsPerPage"`
	HasPrevious   bool                   `json:"hasPrevious"`
	HasNext       bool                   `json:"hasNext"`
	// OutOfRange is set when the stored page lies beyond the filtered
	// result, e.g. after a narrower filter. Records is then empty.
	OutOfRange bool `json:"outOfRange"`
}

// Matches reports whether rec passes the search text and status filter.
// Search is a case-insensitive substring of the machine name or the
// component name; status "all" matches everything.
func Matches(rec models.MachineRecord, query, status string) bool {
	if query != "" {
		q := strings.ToLower(query)
		if !strings.Contains(strings.ToLower(rec.Machine.Name), q) &&
			!strings.Contains(strings.ToLower(rec.Component.Name), q) {
			return false
		}
	}
	if status == "" || strings.EqualFold(status, models.StatusFilterAll) {
		return true
	}
	return strings.EqualFold(string(rec.Status), status)
}

// Filter returns the records matching query and status, in snapshot order.
func Filter(records []models.MachineRecord, query, status string) []models.MachineRecord {
	out := make([]models.MachineRecord, 0, len(records))
	for _, rec := range records {
		if Matches(rec, query, status) {
			out = append(out, rec)
		}
	}
	return out
}

// TotalPages is ceil(count / perPage); zero records give zero pages.
func TotalPages(count, perPage int) int {
	if perPage < 1 || count <= 0 {
		return 0
	}
	pages := count / perPage
	if count%perPage != 0 {
		pages++
	}
	return pages
}

// Slice returns records[(page-1)*perPage : page*perPage], clipped to the
// available records. A page beyond the end yields an empty slice; the
// bound is checked before multiplying so any page number is safe.
func Slice(records []models.MachineRecord, page, perPage int) []models.MachineRecord {
	if page < 1 || perPage < 1 || len(records) == 0 {
		return []models.MachineRecord{}
	}
	if page-1 > (len(records)-1)/perPage {
		return []models.MachineRecord{}
	}
	start := (page - 1) * perPage
	end := start + min(perPage, len(records)-start)
	return records[start:end]
}

// Project filters and paginates records according to f. The stored page
// is reported as given; navigation bounds are expressed through
// HasPrevious and HasNext.
func Project(records []models.MachineRecord, f models.FilterState) Page {
	perPage := f.ItemsPerPage
	if perPage < 1 {
		perPage = models.DefaultItemsPerPage
	}
	page := max(f.CurrentPage, 1)

	filtered := Filter(records, f.SearchQuery, f.StatusFilter)
	total := TotalPages(len(filtered), perPage)

	return Page{
		Records:       Slice(filtered, page, perPage),
		FilteredCount: len(filtered),
		TotalPages:    total,
		CurrentPage:   page,
		ItemsPerPage:  perPage,
		HasPrevious:   page > 1,
		HasNext:       page < total,
		OutOfRange:    page > total && len(filtered) > 0,
	}
}

// Source is what a Projector reads from; *store.Store satisfies it.
type Source interface {
	MachineData() models.Snapshot
	Filter() models.FilterState
	Version() uint64
}

type memoKey struct {
	version uint64
	filter  models.FilterState
}

// Projector memoizes the last projection of a Source. It recomputes when
// the snapshot or any filter input changed since the previous call.
type Projector struct {
	src Source

	mu    sync.Mutex
	key   memoKey
	page  Page
	valid bool
}

// NewProjector returns a projector over src.
func NewProjector(src Source) *Projector {
	return &Projector{src: src}
}

// Current returns the projection for the source's present state.
func (p *Projector) Current() Page {
	key := memoKey{version: p.src.Version(), filter: p.src.Filter()}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.valid && p.key == key {
		return p.page
	}

	p.page = Project(p.src.MachineData(), key.filter)
	p.key = key
	p.valid = true
	return p.page
}
