package models

// StatusFilterAll disables status filtering.
const StatusFilterAll = "all"

// DefaultItemsPerPage is the page size used by the live-run view.
const DefaultItemsPerPage = 16

// FilterState holds the operator's view settings. It is mutated only by
// explicit UI actions, never by the telemetry stream.
type FilterState struct {
	SearchQuery  string `json:"searchQuery"`
	StatusFilter string `json:"statusFilter"`
	CurrentPage  int    `json:"currentPage"`  // 1-based, not clamped to the page count
	ItemsPerPage int    `json:"itemsPerPage"`
}

// DefaultFilter returns the filter state of a freshly opened view.
func DefaultFilter() FilterState {
	return FilterState{
		StatusFilter: StatusFilterAll,
		CurrentPage:  1,
		ItemsPerPage: DefaultItemsPerPage,
	}
}
