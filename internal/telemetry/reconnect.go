package telemetry

import "time"

// ReconnectPolicy decides whether, and after how long, a dropped session
// is dialed again. attempt counts consecutive failures starting at 0.
type ReconnectPolicy interface {
	Next(attempt int) (time.Duration, bool)
}

// NoReconnect never redials.
type NoReconnect struct{}

func (NoReconnect) Next(int) (time.Duration, bool) { return 0, false }

// Backoff doubles the delay from Initial up to Max, giving up after
// MaxAttempts consecutive failures. MaxAttempts <= 0 retries forever.
type Backoff struct {
	Initial     time.Duration
	Max         time.Duration
	MaxAttempts int
}

// DefaultBackoff mirrors the stock Socket.IO client: 1s doubling to 15s.
func DefaultBackoff() Backoff {
	return Backoff{Initial: time.Second, Max: 15 * time.Second, MaxAttempts: 20}
}

func (b Backoff) Next(attempt int) (time.Duration, bool) {
	if b.MaxAttempts > 0 && attempt >= b.MaxAttempts {
		return 0, false
	}
	d := b.Initial
	for range attempt {
		d *= 2
		if d >= b.Max {
			return b.Max, true
		}
	}
	return min(d, b.Max), true
}
