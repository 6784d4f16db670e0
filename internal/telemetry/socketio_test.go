package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSocketIO is a minimal Engine.IO v4 server. After the handshake it
// writes frames in order and records what the client sends back.
type fakeSocketIO struct {
	t          *testing.T
	connectAck string
	frames     []string

	token    chan string
	received chan string
}

func newFakeSocketIO(t *testing.T, frames ...string) *fakeSocketIO {
	return &fakeSocketIO{
		t:          t,
		connectAck: `40{"sid":"ns-1"}`,
		frames:     frames,
		token:      make(chan string, 1),
		received:   make(chan string, 32),
	}
}

func (f *fakeSocketIO) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("EIO") != "4" || r.URL.Query().Get("transport") != "websocket" {
		http.Error(w, "bad query", http.StatusBadRequest)
		return
	}
	f.token <- r.Header.Get("token")

	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	write := func(frame string) bool {
		return conn.WriteMessage(websocket.TextMessage, []byte(frame)) == nil
	}
	if !write(`0{"sid":"eng-1","upgrades":[],"pingInterval":25000,"pingTimeout":20000,"maxPayload":1000000}`) {
		return
	}
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return
	}
	f.received <- string(msg)
	if !write(f.connectAck) {
		return
	}
	for _, frame := range f.frames {
		if !write(frame) {
			return
		}
	}
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		f.received <- string(msg)
	}
}

func (f *fakeSocketIO) next(t *testing.T) string {
	t.Helper()
	select {
	case msg := <-f.received:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("client sent nothing")
		return ""
	}
}

func TestSocketIOTransport_Endpoint(t *testing.T) {
	tests := []struct {
		url     string
		path    string
		want    string
		wantErr bool
	}{
		{url: "http://stream.local:3000", want: "ws://stream.local:3000/socket.io/?EIO=4&transport=websocket"},
		{url: "https://stream.local/", want: "wss://stream.local/socket.io/?EIO=4&transport=websocket"},
		{url: "wss://stream.local/base", path: "/live/", want: "wss://stream.local/base/live/?EIO=4&transport=websocket"},
		{url: "ftp://stream.local", wantErr: true},
		{url: "://bad", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			tr := &SocketIOTransport{URL: tt.url, Path: tt.path}
			got, err := tr.Endpoint()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSocketIOTransport_DialAndRecv(t *testing.T) {
	fake := newFakeSocketIO(t,
		"2",
		`42["live-run",{"data":[{"machine":{"machineNumber":"M1"},"status":"Active"}]}]`,
		`42["garbage`,
		`42["highlights",{"data":{"running":3}}]`,
		"41",
	)
	srv := httptest.NewServer(fake)
	defer srv.Close()

	tr := &SocketIOTransport{URL: srv.URL, Token: "secret", Credentials: true, HandshakeTimeout: 2 * time.Second}
	stream, err := tr.Dial(context.Background())
	require.NoError(t, err)
	defer stream.Close()

	assert.Equal(t, "secret", <-fake.token)
	assert.Equal(t, "40", fake.next(t))

	ev, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, EventLiveRun, ev.Name)
	assert.Contains(t, string(ev.Data), `"M1"`)
	assert.Equal(t, "3", fake.next(t), "ping must be answered with pong")

	ev, err = stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, EventHighlights, ev.Name)

	_, err = stream.Recv()
	assert.ErrorIs(t, err, ErrServerDisconnect)
}

func TestSocketIOTransport_TokenOnlyWithCredentials(t *testing.T) {
	fake := newFakeSocketIO(t)
	srv := httptest.NewServer(fake)
	defer srv.Close()

	tr := &SocketIOTransport{URL: srv.URL, Token: "secret"}
	stream, err := tr.Dial(context.Background())
	require.NoError(t, err)
	defer stream.Close()

	assert.Equal(t, "", <-fake.token)
}

func TestSocketIOTransport_NamespaceRefused(t *testing.T) {
	fake := newFakeSocketIO(t)
	fake.connectAck = `44{"message":"not authorized"}`
	srv := httptest.NewServer(fake)
	defer srv.Close()

	tr := &SocketIOTransport{URL: srv.URL, HandshakeTimeout: 2 * time.Second}
	_, err := tr.Dial(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not authorized")
}

func TestSocketIOTransport_DialRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	tr := &SocketIOTransport{URL: url, HandshakeTimeout: time.Second}
	_, err := tr.Dial(context.Background())
	assert.Error(t, err)
}

func TestSocketIOTransport_CloseSendsDisconnect(t *testing.T) {
	fake := newFakeSocketIO(t)
	srv := httptest.NewServer(fake)
	defer srv.Close()

	tr := &SocketIOTransport{URL: srv.URL}
	stream, err := tr.Dial(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "40", fake.next(t))

	require.NoError(t, stream.Close())
	assert.NoError(t, stream.Close())
	assert.Equal(t, "41", fake.next(t))
}

func TestConnection_OverSocketIO(t *testing.T) {
	fake := newFakeSocketIO(t,
		`42["live-run",{"data":[{"machine":{"machineNumber":"M1"}},{"machine":{"machineNumber":"M2"}}]}]`,
		"41",
	)
	srv := httptest.NewServer(fake)
	defer srv.Close()

	sink := &recordingSink{}
	c := New(&SocketIOTransport{URL: strings.Replace(srv.URL, "http", "ws", 1)}, sink, Options{Logger: quietLogger})
	defer c.Close()

	c.Open(context.Background())
	waitStatus(t, sink, StatusDisconnected)

	snaps := sink.Snapshots()
	require.Len(t, snaps, 1)
	assert.Len(t, snaps[0], 2)
	assert.Equal(t, []string{StatusConnected, StatusDisconnected}, sink.Statuses())
}
