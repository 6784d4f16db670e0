package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePacket(t *testing.T) {
	tests := []struct {
		name      string
		frame     string
		engine    byte
		socket    byte
		namespace string
		ackID     int
		data      string
		wantErr   bool
	}{
		{name: "open", frame: `0{"sid":"abc"}`, engine: engineOpen, ackID: -1, data: `{"sid":"abc"}`},
		{name: "ping", frame: "2", engine: enginePing, ackID: -1},
		{name: "connect ack", frame: `40{"sid":"x"}`, engine: engineMessage, socket: socketConnect, ackID: -1, data: `{"sid":"x"}`},
		{name: "event", frame: `42["live-run",{"data":[]}]`, engine: engineMessage, socket: socketEvent, ackID: -1, data: `["live-run",{"data":[]}]`},
		{name: "namespace and ack", frame: `42/floor,12["x"]`, engine: engineMessage, socket: socketEvent, namespace: "/floor", ackID: 12, data: `["x"]`},
		{name: "namespace only", frame: `41/floor`, engine: engineMessage, socket: socketDisconnect, namespace: "/floor", ackID: -1},
		{name: "empty", frame: "", wantErr: true},
		{name: "unknown engine", frame: "9", wantErr: true},
		{name: "bare message", frame: "4", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := decodePacket([]byte(tt.frame))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.engine, p.engine)
			assert.Equal(t, tt.socket, p.socket)
			assert.Equal(t, tt.namespace, p.namespace)
			assert.Equal(t, tt.ackID, p.ackID)
			assert.Equal(t, tt.data, string(p.data))
		})
	}
}

func TestDecodeEvent(t *testing.T) {
	ev, err := decodeEvent([]byte(`["live-run",{"data":[{"status":"Active"}]}]`))
	require.NoError(t, err)
	assert.Equal(t, EventLiveRun, ev.Name)
	assert.JSONEq(t, `{"data":[{"status":"Active"}]}`, string(ev.Data))

	ev, err = decodeEvent([]byte(`["highlights"]`))
	require.NoError(t, err)
	assert.Equal(t, EventHighlights, ev.Name)
	assert.Nil(t, ev.Data)

	_, err = decodeEvent([]byte(`[]`))
	assert.Error(t, err)
	_, err = decodeEvent([]byte(`[42]`))
	assert.Error(t, err)
}

func TestEncodeEvent(t *testing.T) {
	frame, err := encodeEvent("live-run", map[string]any{"data": []any{}})
	require.NoError(t, err)
	assert.Equal(t, `42["live-run",{"data":[]}]`, string(frame))

	p, err := decodePacket(frame)
	require.NoError(t, err)
	ev, err := decodeEvent(p.data)
	require.NoError(t, err)
	assert.Equal(t, "live-run", ev.Name)
}

func TestPhaseTransitions(t *testing.T) {
	assert.True(t, PhaseDisconnected.CanTransition(PhaseConnecting))
	assert.True(t, PhaseConnecting.CanTransition(PhaseConnected))
	assert.True(t, PhaseConnecting.CanTransition(PhaseDisconnected))
	assert.True(t, PhaseConnected.CanTransition(PhaseErrored))
	assert.True(t, PhaseErrored.CanTransition(PhaseConnecting))
	assert.True(t, PhaseConnected.CanTransition(PhaseClosed))

	assert.False(t, PhaseDisconnected.CanTransition(PhaseConnected))
	assert.False(t, PhaseConnected.CanTransition(PhaseConnecting))
	assert.False(t, PhaseClosed.CanTransition(PhaseConnecting))
	assert.False(t, PhaseClosed.CanTransition(PhaseClosed))

	assert.Equal(t, "connected", PhaseConnected.String())
}

func TestBackoff(t *testing.T) {
	b := Backoff{Initial: time.Second, Max: 5 * time.Second, MaxAttempts: 4}

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second}
	for attempt, w := range want {
		d, ok := b.Next(attempt)
		require.True(t, ok)
		assert.Equal(t, w, d)
	}
	_, ok := b.Next(4)
	assert.False(t, ok)

	_, ok = NoReconnect{}.Next(0)
	assert.False(t, ok)
}
