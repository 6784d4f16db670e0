package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultSocketIOPath     = "/socket.io/"
	defaultHandshakeTimeout = 10 * time.Second
	defaultPingInterval     = 25 * time.Second
	defaultPingTimeout      = 20 * time.Second
)

// SocketIOTransport speaks Socket.IO v4 (Engine.IO v4) over a single
// WebSocket, without HTTP long-polling.
type SocketIOTransport struct {
	// URL is the stream base URL, http(s) or ws(s).
	URL string
	// Path defaults to /socket.io/.
	Path string
	// Token is sent as the token header when Credentials is set.
	Token       string
	Credentials bool

	HandshakeTimeout time.Duration
	Dialer           *websocket.Dialer
}

func (t *SocketIOTransport) Name() string { return "socketio" }

// Endpoint returns the WebSocket URL dialed by the transport.
func (t *SocketIOTransport) Endpoint() (string, error) {
	u, err := url.Parse(t.URL)
	if err != nil {
		return "", fmt.Errorf("parsing stream URL: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported stream URL scheme %q", u.Scheme)
	}

	path := t.Path
	if path == "" {
		path = defaultSocketIOPath
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + path

	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Dial opens the WebSocket and completes the engine and namespace
// handshakes.
func (t *SocketIOTransport) Dial(ctx context.Context) (Stream, error) {
	endpoint, err := t.Endpoint()
	if err != nil {
		return nil, err
	}

	timeout := t.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}
	dialer := t.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: timeout,
			ReadBufferSize:   64 * 1024,
			WriteBufferSize:  16 * 1024,
		}
	}

	header := http.Header{}
	if t.Credentials && t.Token != "" {
		header.Set("token", t.Token)
	}

	conn, _, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", endpoint, err)
	}

	s := &socketIOStream{conn: conn, interval: defaultPingInterval, timeout: defaultPingTimeout}
	if err := s.handshake(time.Now().Add(timeout)); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

type socketIOStream struct {
	conn     *websocket.Conn
	interval time.Duration
	timeout  time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (s *socketIOStream) handshake(deadline time.Time) error {
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return err
	}

	p, err := s.readPacket()
	if err != nil {
		return fmt.Errorf("reading open packet: %w", err)
	}
	if p.engine != engineOpen {
		return fmt.Errorf("expected open packet, got type %q", p.engine)
	}
	var info openInfo
	if err := json.Unmarshal(p.data, &info); err != nil {
		return fmt.Errorf("decoding open packet: %w", err)
	}
	if info.PingInterval > 0 {
		s.interval = time.Duration(info.PingInterval) * time.Millisecond
	}
	if info.PingTimeout > 0 {
		s.timeout = time.Duration(info.PingTimeout) * time.Millisecond
	}

	if err := s.write([]byte{engineMessage, socketConnect}); err != nil {
		return fmt.Errorf("sending namespace connect: %w", err)
	}

	for {
		p, err := s.readPacket()
		if err != nil {
			return fmt.Errorf("awaiting namespace connect: %w", err)
		}
		switch {
		case p.engine == enginePing:
			if err := s.write([]byte{enginePong}); err != nil {
				return err
			}
		case p.engine == engineMessage && p.socket == socketConnect:
			return nil
		case p.engine == engineMessage && p.socket == socketConnectError:
			return fmt.Errorf("namespace connect refused: %s", p.data)
		case p.engine == engineClose:
			return ErrServerDisconnect
		}
	}
}

// Recv answers pings itself and returns the next event.
func (s *socketIOStream) Recv() (Event, error) {
	for {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.interval + s.timeout)); err != nil {
			return Event{}, err
		}
		p, err := s.readPacket()
		if err != nil {
			return Event{}, err
		}

		switch p.engine {
		case enginePing:
			if err := s.write([]byte{enginePong}); err != nil {
				return Event{}, fmt.Errorf("sending pong: %w", err)
			}
		case engineClose:
			return Event{}, ErrServerDisconnect
		case engineMessage:
			switch p.socket {
			case socketEvent:
				ev, err := decodeEvent(p.data)
				if err != nil {
					// A single bad frame does not end the session.
					continue
				}
				return ev, nil
			case socketDisconnect:
				return Event{}, ErrServerDisconnect
			case socketConnectError:
				return Event{}, fmt.Errorf("server rejected namespace: %s", p.data)
			}
		}
	}
}

func (s *socketIOStream) readPacket() (packet, error) {
	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return packet{}, ErrServerDisconnect
			}
			return packet{}, err
		}
		if kind != websocket.TextMessage {
			continue
		}
		p, err := decodePacket(data)
		if err != nil {
			continue
		}
		return p, nil
	}
}

func (s *socketIOStream) write(frame []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

// Close sends a namespace disconnect and closes the socket once.
func (s *socketIOStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		_ = s.write([]byte{engineMessage, socketDisconnect})

		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.writeMu.Unlock()

		err = s.conn.Close()
	})
	return err
}
