package telemetry

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

const mqttEventBuffer = 16

// MQTTTransport receives the live-run feed from a broker instead of the
// Socket.IO server. The server publishes each event on
// <TopicPrefix>/<event name>; the message body is the event payload.
type MQTTTransport struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte

	ConnectTimeout time.Duration
}

func (t *MQTTTransport) Name() string { return "mqtt" }

// Topics returns the subscription filters for the subscribed events.
func (t *MQTTTransport) Topics() map[string]byte {
	prefix := strings.TrimSuffix(t.TopicPrefix, "/")
	return map[string]byte{
		prefix + "/" + EventLiveRun:    t.QoS,
		prefix + "/" + EventHighlights: t.QoS,
	}
}

// TopicToEvent extracts the event name from "<prefix>/<event>".
func TopicToEvent(prefix, topic string) (string, bool) {
	prefix = strings.TrimSuffix(prefix, "/") + "/"
	if !strings.HasPrefix(topic, prefix) {
		return "", false
	}
	name := strings.TrimPrefix(topic, prefix)
	if name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}

// Dial connects to the broker and subscribes. Reconnection is left to the
// Connection's policy, so the client's own auto-reconnect is off.
func (t *MQTTTransport) Dial(ctx context.Context) (Stream, error) {
	timeout := t.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}

	s := newMQTTStream(t.TopicPrefix)

	opts := pahomqtt.NewClientOptions().
		AddBroker(t.Broker).
		SetClientID(t.ClientID).
		SetAutoReconnect(false).
		SetConnectTimeout(timeout).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			s.fail(fmt.Errorf("%w: %v", ErrServerDisconnect, err))
		})
	if t.Username != "" {
		opts.SetUsername(t.Username).SetPassword(t.Password)
	}

	client := pahomqtt.NewClient(opts)
	if err := waitToken(ctx, client.Connect(), timeout); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", t.Broker, err)
	}
	s.client = client

	handler := func(_ pahomqtt.Client, msg pahomqtt.Message) {
		s.deliver(msg.Topic(), msg.Payload())
	}
	if err := waitToken(ctx, client.SubscribeMultiple(t.Topics(), handler), timeout); err != nil {
		client.Disconnect(250)
		return nil, fmt.Errorf("mqtt subscribe: %w", err)
	}
	return s, nil
}

func waitToken(ctx context.Context, token pahomqtt.Token, timeout time.Duration) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(timeout):
		return fmt.Errorf("timed out after %s", timeout)
	}
}

type mqttStream struct {
	prefix string
	client pahomqtt.Client

	events chan Event
	closed chan struct{}

	errOnce   sync.Once
	err       error
	failed    chan struct{}
	closeOnce sync.Once
}

func newMQTTStream(prefix string) *mqttStream {
	return &mqttStream{
		prefix: prefix,
		events: make(chan Event, mqttEventBuffer),
		closed: make(chan struct{}),
		failed: make(chan struct{}),
	}
}

// deliver is the broker message callback.
func (s *mqttStream) deliver(topic string, payload []byte) {
	name, ok := TopicToEvent(s.prefix, topic)
	if !ok {
		return
	}
	data := make([]byte, len(payload))
	copy(data, payload)

	select {
	case s.events <- Event{Name: name, Data: data}:
	case <-s.closed:
	case <-s.failed:
	}
}

func (s *mqttStream) fail(err error) {
	s.errOnce.Do(func() {
		s.err = err
		close(s.failed)
	})
}

func (s *mqttStream) Recv() (Event, error) {
	select {
	case ev := <-s.events:
		return ev, nil
	case <-s.failed:
		return Event{}, s.err
	case <-s.closed:
		return Event{}, ErrServerDisconnect
	}
}

func (s *mqttStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		if s.client != nil {
			s.client.Disconnect(250)
		}
	})
	return nil
}
