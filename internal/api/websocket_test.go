package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/floorwatch/backend/internal/models"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialLive(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	conn, _, err := dialLiveWithOrigin(t, env, "")
	require.NoError(t, err)
	return conn
}

func dialLiveWithOrigin(t *testing.T, env *testEnv, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	srv := httptest.NewServer(env.e)
	t.Cleanup(srv.Close)

	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/live"
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if conn != nil {
		t.Cleanup(func() { conn.Close() })
	}
	return conn, resp, err
}

// readUntil returns the first message of the wanted type that satisfies ok.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string, ok func(WSMessage) bool) WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var msg WSMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == msgType && (ok == nil || ok(msg)) {
			return msg
		}
	}
}

func pageOf(t *testing.T, msg WSMessage) LiveRunResponse {
	t.Helper()
	var out LiveRunResponse
	require.NoError(t, json.Unmarshal(msg.Payload, &out))
	return out
}

func TestLiveSocket_PushesPages(t *testing.T) {
	env := newTestEnv(t)
	conn := dialLive(t, env)

	hello := readUntil(t, conn, MsgTypeConnected, nil)
	assert.NotEmpty(t, hello.ID)

	first := pageOf(t, readUntil(t, conn, MsgTypePage, nil))
	assert.True(t, first.IsLoading)
	assert.Equal(t, 0, first.Page.FilteredCount)

	require.Eventually(t, func() bool { return env.h.Socket.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	env.store.ApplySnapshot(1, fleet(5, 2))
	msg := readUntil(t, conn, MsgTypePage, func(m WSMessage) bool {
		return pageOf(t, m).Page.FilteredCount == 5
	})
	page := pageOf(t, msg)
	assert.False(t, page.IsLoading)
	assert.Len(t, page.Page.Records, 5)

	env.store.SetStatusFilter("active")
	readUntil(t, conn, MsgTypePage, func(m WSMessage) bool {
		return pageOf(t, m).Page.FilteredCount == 2
	})
}

func TestLiveSocket_Notifications(t *testing.T) {
	env := newTestEnv(t)
	conn := dialLive(t, env)
	readUntil(t, conn, MsgTypePage, nil)

	env.feed.Notify(models.Notification{Kind: models.NotificationSuccess, Message: "Note Saved"})

	msg := readUntil(t, conn, MsgTypeNotification, nil)
	var n models.Notification
	require.NoError(t, json.Unmarshal(msg.Payload, &n))
	assert.Equal(t, "Note Saved", n.Message)
	assert.Equal(t, n.ID, msg.ID)
}

func TestLiveSocket_PingAndUnknown(t *testing.T) {
	env := newTestEnv(t)
	conn := dialLive(t, env)
	readUntil(t, conn, MsgTypePage, nil)

	require.NoError(t, conn.WriteJSON(WSMessage{Type: MsgTypePing, ID: "p1"}))
	pong := readUntil(t, conn, MsgTypePong, nil)
	assert.Equal(t, "p1", pong.ID)

	require.NoError(t, conn.WriteJSON(WSMessage{Type: "upload:init"}))
	errMsg := readUntil(t, conn, MsgTypeError, nil)
	assert.Contains(t, string(errMsg.Payload), "INVALID_TYPE")
}

func TestLiveSocket_ClientCountDropsOnClose(t *testing.T) {
	env := newTestEnv(t)
	conn := dialLive(t, env)
	readUntil(t, conn, MsgTypePage, nil)
	require.Eventually(t, func() bool { return env.h.Socket.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return env.h.Socket.ClientCount() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestLiveSocket_OriginCheck(t *testing.T) {
	env := newTestEnvWith(t, func(d *Dependencies) {
		d.AllowOrigins = []string{"http://floor.local"}
	})

	_, resp, err := dialLiveWithOrigin(t, env, "http://evil.example")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := dialLiveWithOrigin(t, env, "http://floor.local")
	require.NoError(t, err)
	readUntil(t, conn, MsgTypeConnected, nil)

	// Non-browser clients send no Origin header.
	conn, _, err = dialLiveWithOrigin(t, env, "")
	require.NoError(t, err)
	readUntil(t, conn, MsgTypeConnected, nil)
}

func TestLiveSocket_SurvivesHugeStoredPage(t *testing.T) {
	env := newTestEnv(t)
	env.store.ApplySnapshot(1, fleet(20, 0))
	conn := dialLive(t, env)
	readUntil(t, conn, MsgTypePage, nil)

	env.store.SetCurrentPage(1 << 62)
	msg := readUntil(t, conn, MsgTypePage, func(m WSMessage) bool {
		return pageOf(t, m).Filter.CurrentPage == 1<<62
	})
	page := pageOf(t, msg)
	assert.Empty(t, page.Page.Records)
	assert.True(t, page.Page.OutOfRange)

	// The server is still serving after the push.
	rec := env.do(t, http.MethodGet, "/api/live-run", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
