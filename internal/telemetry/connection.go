package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/floorwatch/backend/internal/models"
	"github.com/google/uuid"
)

// Sink receives everything a Connection learns. *store.Store satisfies it.
type Sink interface {
	ApplySnapshot(seq uint64, records models.Snapshot) bool
	SetHighlights(h models.Highlights)
	SetSocketStatus(status string)
	SetIsLoading(loading bool)
}

// Options tune a Connection.
type Options struct {
	// Reconnect decides whether dropped sessions are redialed.
	// Nil means NoReconnect.
	Reconnect ReconnectPolicy
	// OnTransition is called after every phase change, outside any lock.
	OnTransition func(from, to Phase)
	Logger       *slog.Logger
}

// Connection owns one push-stream subscription for one view.
//
// Disconnects and stream errors only change the status text; the last
// snapshot stays in the sink so the view keeps showing last-known data.
type Connection struct {
	id        string
	transport Transport
	sink      Sink
	reconnect ReconnectPolicy
	onChange  func(from, to Phase)
	log       *slog.Logger

	mu     sync.Mutex
	phase  Phase
	stream Stream
	cancel context.CancelFunc
	done   chan struct{}

	seq       atomic.Uint64
	closeOnce sync.Once
}

// New prepares a connection; nothing is dialed until Open.
func New(t Transport, sink Sink, opts Options) *Connection {
	id := uuid.New().String()
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	reconnect := opts.Reconnect
	if reconnect == nil {
		reconnect = NoReconnect{}
	}
	return &Connection{
		id:        id,
		transport: t,
		sink:      sink,
		reconnect: reconnect,
		onChange:  opts.OnTransition,
		log:       log.With("component", "telemetry", "conn", id[:8], "transport", t.Name()),
		phase:     PhaseDisconnected,
	}
}

// ID identifies the connection in logs.
func (c *Connection) ID() string { return c.id }

// Phase returns the current lifecycle phase.
func (c *Connection) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Open starts the connection in the background. Dial failures are
// reported through the sink's status text, never returned. Calling Open
// on an open or closed connection does nothing.
func (c *Connection) Open(ctx context.Context) {
	c.mu.Lock()
	if c.done != nil || c.phase == PhaseClosed {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.mu.Unlock()

	go c.run(ctx)
}

// Close tears the connection down. The first call closes the underlying
// stream exactly once and reports the disconnect if a session was live;
// later calls do nothing.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		from := c.phase
		c.phase = PhaseClosed
		cancel, stream, done := c.cancel, c.stream, c.done
		c.stream = nil
		c.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if stream != nil {
			if err := stream.Close(); err != nil {
				c.log.Debug("closing stream", "err", err)
			}
		}
		if done != nil {
			<-done
		}

		if from == PhaseConnected {
			c.sink.SetSocketStatus(StatusDisconnected)
			c.sink.SetIsLoading(false)
		}
		if c.onChange != nil {
			c.onChange(from, PhaseClosed)
		}
		c.log.Info("live stream closed", "from", from.String())
	})
	return nil
}

func (c *Connection) run(ctx context.Context) {
	defer close(c.done)

	attempt := 0
	for {
		if !c.transition(PhaseConnecting) {
			return
		}

		stream, err := c.transport.Dial(ctx)
		switch {
		case ctx.Err() != nil:
			if stream != nil {
				stream.Close()
			}
			return
		case err != nil:
			c.log.Warn("live stream dial failed", "attempt", attempt+1, "err", err)
			if !c.transition(PhaseDisconnected) {
				return
			}
			c.handle(Event{Name: EventDisconnect})
		default:
			attempt = 0
			if !c.attach(stream) {
				stream.Close()
				return
			}
			c.handle(Event{Name: EventConnect})

			err = c.pump(ctx, stream)
			c.detach(stream)
			stream.Close()
			if ctx.Err() != nil {
				return
			}

			if errors.Is(err, ErrServerDisconnect) {
				c.log.Info("live stream disconnected by server")
				if !c.transition(PhaseDisconnected) {
					return
				}
				c.handle(Event{Name: EventDisconnect})
			} else {
				c.log.Warn("live stream failed", "err", err)
				if !c.transition(PhaseErrored) {
					return
				}
				c.handle(Event{Name: EventError})
			}
		}

		delay, ok := c.reconnect.Next(attempt)
		if !ok {
			c.log.Info("live stream not reconnecting", "attempts", attempt+1)
			return
		}
		attempt++
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (c *Connection) pump(ctx context.Context, stream Stream) error {
	for {
		ev, err := stream.Recv()
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.handle(ev)
	}
}

func (c *Connection) handle(ev Event) {
	switch ev.Name {
	case EventConnect:
		c.sink.SetSocketStatus(StatusConnected)

	case EventLiveRun:
		records, skipped, err := models.DecodeSnapshot(ev.Data)
		if err != nil {
			c.log.Warn("dropping malformed live-run payload", "err", err)
			return
		}
		if skipped > 0 {
			c.log.Debug("skipped malformed machine records", "skipped", skipped, "kept", len(records))
		}
		if !c.sink.ApplySnapshot(c.seq.Add(1), records) {
			c.log.Debug("stale live-run snapshot dropped")
		}

	case EventHighlights:
		h, err := models.DecodeHighlights(ev.Data, time.Now())
		if err != nil {
			c.log.Warn("dropping malformed highlights payload", "err", err)
			return
		}
		c.sink.SetHighlights(h)

	case EventDisconnect:
		c.sink.SetSocketStatus(StatusDisconnected)
		c.sink.SetIsLoading(false)

	case EventError:
		c.sink.SetSocketStatus(StatusEnded)
		c.sink.SetIsLoading(false)

	default:
		c.log.Debug("ignoring unsubscribed event", "event", ev.Name)
	}
}

// transition moves to next and reports whether the connection is still
// usable. It fails once the connection has been closed.
func (c *Connection) transition(next Phase) bool {
	c.mu.Lock()
	from := c.phase
	if !from.CanTransition(next) {
		c.mu.Unlock()
		if from != PhaseClosed {
			c.log.Error("invalid phase transition", "from", from.String(), "to", next.String())
		}
		return false
	}
	c.phase = next
	c.mu.Unlock()

	if c.onChange != nil {
		c.onChange(from, next)
	}
	return true
}

func (c *Connection) attach(stream Stream) bool {
	if !c.transition(PhaseConnected) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == PhaseClosed {
		return false
	}
	c.stream = stream
	return true
}

func (c *Connection) detach(stream Stream) {
	c.mu.Lock()
	if c.stream == stream {
		c.stream = nil
	}
	c.mu.Unlock()
}
