// Package telemetry receives the live-run push stream and feeds it into
// the snapshot store.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
)

// Event names published by the live-run server.
const (
	EventConnect    = "connect"
	EventDisconnect = "disconnect"
	EventError      = "error"
	EventLiveRun    = "live-run"
	EventHighlights = "highlights"
)

// Status texts shown to the operator.
const (
	StatusConnected    = "Connected to live stream"
	StatusDisconnected = "Live stream disconnected"
	StatusEnded        = "Live stream ended"
)

// ErrServerDisconnect is returned by Stream.Recv when the server ended the
// session cleanly. Any other Recv error is treated as a stream failure.
var ErrServerDisconnect = errors.New("telemetry: server disconnected")

// Event is one named message from the push stream.
type Event struct {
	Name string
	Data json.RawMessage
}

// Transport opens push-stream sessions.
type Transport interface {
	// Dial connects and completes any protocol handshake.
	Dial(ctx context.Context) (Stream, error)
	// Name identifies the transport in logs.
	Name() string
}

// Stream is one open push-stream session. Recv blocks until the next
// event. Close must be safe to call more than once and must unblock a
// pending Recv.
type Stream interface {
	Recv() (Event, error)
	Close() error
}
