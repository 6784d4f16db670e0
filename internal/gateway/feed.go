package gateway

import (
	"sync"
	"time"

	"github.com/floorwatch/backend/internal/models"
	"github.com/google/uuid"
)

// Icons attached to notifications.
const (
	IconSuccess = "check-circle"
	IconFailure = "alert-triangle"
)

const defaultFeedCapacity = 50

// Notifier receives one notification per finished submission.
type Notifier interface {
	Notify(n models.Notification)
}

// Feed keeps the most recent notifications and fans them out to
// subscribers. Slow subscribers miss notifications rather than block.
type Feed struct {
	mu      sync.Mutex
	ring    []models.Notification
	next    int
	full    bool
	subs    map[int]chan models.Notification
	nextSub int
	now     func() time.Time
}

// NewFeed keeps up to capacity notifications; capacity <= 0 uses 50.
func NewFeed(capacity int) *Feed {
	if capacity <= 0 {
		capacity = defaultFeedCapacity
	}
	return &Feed{
		ring: make([]models.Notification, capacity),
		subs: make(map[int]chan models.Notification),
		now:  time.Now,
	}
}

// Notify stores n, filling in ID and CreatedAt when empty, and
// broadcasts it.
func (f *Feed) Notify(n models.Notification) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}

	f.mu.Lock()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = f.now()
	}
	f.ring[f.next] = n
	f.next = (f.next + 1) % len(f.ring)
	if f.next == 0 {
		f.full = true
	}
	for _, ch := range f.subs {
		select {
		case ch <- n:
		default:
		}
	}
	f.mu.Unlock()
}

// Recent returns stored notifications, oldest first.
func (f *Feed) Recent() []models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.full {
		return append([]models.Notification(nil), f.ring[:f.next]...)
	}
	out := make([]models.Notification, 0, len(f.ring))
	out = append(out, f.ring[f.next:]...)
	return append(out, f.ring[:f.next]...)
}

// Subscribe returns a channel of new notifications and a cancel func that
// closes it.
func (f *Feed) Subscribe() (<-chan models.Notification, func()) {
	ch := make(chan models.Notification, 16)

	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = ch
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
			close(ch)
		})
	}
}
