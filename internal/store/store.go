// Package store holds the live-run view state: the latest snapshot, the
// operator's filter settings and the connection indicators.
package store

import (
	"slices"
	"sync"

	"github.com/floorwatch/backend/internal/models"
)

// State is a consistent copy of everything the store holds.
type State struct {
	MachineData  models.Snapshot    `json:"machineData"`
	Filter       models.FilterState `json:"filter"`
	SocketStatus string             `json:"socketStatus"`
	IsLoading    bool               `json:"isLoading"`
	Highlights   *models.Highlights `json:"highlights,omitempty"`
	Version      uint64             `json:"version"`
}

// Store is the single owner of live-run state. Every setter replaces
// exactly one field under the lock; concurrent writers resolve as last
// write wins. Create one per view and pass it explicitly.
type Store struct {
	mu sync.RWMutex

	machineData  models.Snapshot
	filter       models.FilterState
	socketStatus string
	isLoading    bool
	highlights   *models.Highlights

	// version increases whenever machine data or filter state changes.
	version uint64
	lastSeq uint64

	subs   map[int]chan struct{}
	nextID int
}

// New returns an empty store in the loading state.
func New() *Store {
	return &Store{
		machineData: models.Snapshot{},
		filter:      models.DefaultFilter(),
		isLoading:   true,
		subs:        make(map[int]chan struct{}),
	}
}

// SetMachineData replaces the snapshot wholesale.
func (s *Store) SetMachineData(records models.Snapshot) {
	s.mu.Lock()
	s.machineData = cloneSnapshot(records)
	s.version++
	s.mu.Unlock()
	s.notify()
}

// ApplySnapshot replaces the snapshot if seq is newer than the last
// applied sequence, and clears the loading flag. It reports whether the
// snapshot was applied; stale deliveries are dropped so the view never
// jumps backward.
func (s *Store) ApplySnapshot(seq uint64, records models.Snapshot) bool {
	s.mu.Lock()
	if seq <= s.lastSeq {
		s.mu.Unlock()
		return false
	}
	s.lastSeq = seq
	s.machineData = cloneSnapshot(records)
	s.isLoading = false
	s.version++
	s.mu.Unlock()
	s.notify()
	return true
}

// SetSearchQuery replaces the search text. The current page is left as is.
func (s *Store) SetSearchQuery(q string) {
	s.mu.Lock()
	s.filter.SearchQuery = q
	s.version++
	s.mu.Unlock()
	s.notify()
}

// SetStatusFilter replaces the status filter. The current page is left as is.
func (s *Store) SetStatusFilter(status string) {
	s.mu.Lock()
	s.filter.StatusFilter = status
	s.version++
	s.mu.Unlock()
	s.notify()
}

// SetCurrentPage replaces the 1-based page number. Values below 1 are ignored.
func (s *Store) SetCurrentPage(page int) {
	if page < 1 {
		return
	}
	s.mu.Lock()
	s.filter.CurrentPage = page
	s.version++
	s.mu.Unlock()
	s.notify()
}

// SetItemsPerPage replaces the page size. Values below 1 are ignored.
func (s *Store) SetItemsPerPage(n int) {
	if n < 1 {
		return
	}
	s.mu.Lock()
	s.filter.ItemsPerPage = n
	s.version++
	s.mu.Unlock()
	s.notify()
}

// SetSocketStatus replaces the human-readable connection status.
func (s *Store) SetSocketStatus(status string) {
	s.mu.Lock()
	s.socketStatus = status
	s.mu.Unlock()
	s.notify()
}

// SetIsLoading replaces the loading flag.
func (s *Store) SetIsLoading(loading bool) {
	s.mu.Lock()
	s.isLoading = loading
	s.mu.Unlock()
	s.notify()
}

// SetHighlights replaces the factory-wide aggregate.
func (s *Store) SetHighlights(h models.Highlights) {
	s.mu.Lock()
	s.highlights = &h
	s.mu.Unlock()
	s.notify()
}

// MachineData returns a copy of the current snapshot.
func (s *Store) MachineData() models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSnapshot(s.machineData)
}

// Filter returns the current filter state.
func (s *Store) Filter() models.FilterState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

// SocketStatus returns the connection status text.
func (s *Store) SocketStatus() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.socketStatus
}

// IsLoading reports whether no snapshot has arrived since the view opened.
func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isLoading
}

// Version returns the projection-relevant change counter.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// State returns a consistent copy of all fields.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := State{
		MachineData:  cloneSnapshot(s.machineData),
		Filter:       s.filter,
		SocketStatus: s.socketStatus,
		IsLoading:    s.isLoading,
		Version:      s.version,
	}
	if s.highlights != nil {
		h := *s.highlights
		st.Highlights = &h
	}
	return st
}

// Subscribe returns a channel that receives a signal after any change.
// Signals coalesce: a slow reader sees one pending signal, not a backlog.
// The returned func unsubscribes and closes the channel.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *Store) notify() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Records are treated as immutable once stored, so a shallow copy of the
// slice is enough to keep callers from replacing entries in place.
func cloneSnapshot(records models.Snapshot) models.Snapshot {
	if records == nil {
		return models.Snapshot{}
	}
	return slices.Clone(records)
}
