package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/floorwatch/backend/internal/gateway"
	"github.com/floorwatch/backend/internal/models"
	"github.com/floorwatch/backend/internal/store"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// WebSocket message types for the live protocol
const (
	// Client -> Server messages
	MsgTypePing = "ping"

	// Server -> Client messages
	MsgTypeConnected    = "connected"
	MsgTypePage         = "page"
	MsgTypeNotification = "notification"
	MsgTypeError        = "error"
	MsgTypePong         = "pong"
)

const (
	wsSendBuffer   = 8
	wsWriteTimeout = 10 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingPeriod   = wsPongWait * 9 / 10
)

// WSMessage is the envelope of every WebSocket frame.
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// WSErrorResponse is the payload of an error message
type WSErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// LiveSocketHandlerImpl pushes a fresh page whenever the store changes and
// every new notification, to each connected client.
type LiveSocketHandlerImpl struct {
	liveRun  *LiveRunHandlerImpl
	store    *store.Store
	feed     *gateway.Feed
	upgrader websocket.Upgrader
	log      *slog.Logger

	clientsMu sync.RWMutex
	clients   map[string]struct{}
}

// NewLiveSocketHandler creates a new WebSocket handler. maxMessageKB
// bounds inbound frames; allowOrigins lists the browser origins that may
// upgrade, with "*" or an empty list allowing any.
func NewLiveSocketHandler(liveRun *LiveRunHandlerImpl, st *store.Store, feed *gateway.Feed, allowOrigins []string, maxMessageKB int, log *slog.Logger) *LiveSocketHandlerImpl {
	if log == nil {
		log = slog.Default()
	}
	if maxMessageKB <= 0 {
		maxMessageKB = 64
	}
	return &LiveSocketHandlerImpl{
		liveRun: liveRun,
		store:   st,
		feed:    feed,
		upgrader: websocket.Upgrader{
			CheckOrigin:     originChecker(allowOrigins),
			ReadBufferSize:  maxMessageKB * 1024,
			WriteBufferSize: 64 * 1024,
		},
		log:     log.With("component", "websocket"),
		clients: make(map[string]struct{}),
	}
}

// ClientCount returns the number of connected clients.
func (h *LiveSocketHandlerImpl) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// HandleLiveSocket upgrades the connection and streams updates until the
// client goes away.
func (h *LiveSocketHandlerImpl) HandleLiveSocket(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()
	ws.SetReadLimit(int64(h.upgrader.ReadBufferSize))

	clientID := uuid.New().String()
	log := h.log.With("client", clientID[:8])

	h.clientsMu.Lock()
	h.clients[clientID] = struct{}{}
	h.clientsMu.Unlock()
	defer func() {
		h.clientsMu.Lock()
		delete(h.clients, clientID)
		h.clientsMu.Unlock()
	}()

	log.Info("client connected")

	storeCh, unsubStore := h.store.Subscribe()
	defer unsubStore()
	notifCh, unsubFeed := h.feed.Subscribe()
	defer unsubFeed()

	send := make(chan WSMessage, wsSendBuffer)
	done := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(ws, clientID, send, storeCh, notifCh, done, log)
	}()

	ws.SetReadDeadline(time.Now().Add(wsPongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("connection error", "err", err)
			}
			break
		}
		ws.SetReadDeadline(time.Now().Add(wsPongWait))

		var reply WSMessage
		switch msg.Type {
		case MsgTypePing:
			reply = WSMessage{Type: MsgTypePong, ID: msg.ID, Timestamp: time.Now().UnixMilli()}
		default:
			reply = errorMessage("Unknown message type: "+msg.Type, "INVALID_TYPE")
		}
		select {
		case send <- reply:
		case <-writerDone:
		}
	}

	close(done)
	<-writerDone
	log.Info("client disconnected")
	return nil
}

// writeLoop is the only goroutine writing to ws.
func (h *LiveSocketHandlerImpl) writeLoop(ws *websocket.Conn, clientID string, send <-chan WSMessage,
	storeCh <-chan struct{}, notifCh <-chan models.Notification, done <-chan struct{}, log *slog.Logger) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	write := func(msg WSMessage) bool {
		ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := ws.WriteJSON(msg); err != nil {
			log.Debug("write failed", "err", err)
			ws.Close()
			return false
		}
		return true
	}

	if !write(WSMessage{Type: MsgTypeConnected, ID: clientID, Timestamp: time.Now().UnixMilli()}) {
		return
	}
	if !write(h.pageMessage()) {
		return
	}

	for {
		select {
		case <-done:
			return
		case msg := <-send:
			if !write(msg) {
				return
			}
		case _, ok := <-storeCh:
			if !ok {
				return
			}
			if !write(h.pageMessage()) {
				return
			}
		case n, ok := <-notifCh:
			if !ok {
				return
			}
			if !write(WSMessage{Type: MsgTypeNotification, ID: n.ID, Payload: mustJSON(n), Timestamp: time.Now().UnixMilli()}) {
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				ws.Close()
				return
			}
		}
	}
}

// originChecker accepts requests without an Origin header (non-browser
// clients) and browser requests from a listed origin.
func originChecker(allowOrigins []string) func(r *http.Request) bool {
	if len(allowOrigins) == 0 || slices.Contains(allowOrigins, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, allowed := range allowOrigins {
			if strings.EqualFold(allowed, origin) {
				return true
			}
		}
		return false
	}
}

func (h *LiveSocketHandlerImpl) pageMessage() WSMessage {
	return WSMessage{
		Type:      MsgTypePage,
		Payload:   mustJSON(h.liveRun.Current()),
		Timestamp: time.Now().UnixMilli(),
	}
}

func errorMessage(message, code string) WSMessage {
	return WSMessage{
		Type:      MsgTypeError,
		Timestamp: time.Now().UnixMilli(),
		Payload:   mustJSON(WSErrorResponse{Message: message, Code: code}),
	}
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
