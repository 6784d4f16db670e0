package telemetry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicToEvent(t *testing.T) {
	tests := []struct {
		prefix string
		topic  string
		want   string
		ok     bool
	}{
		{"factory/live", "factory/live/live-run", "live-run", true},
		{"factory/live/", "factory/live/highlights", "highlights", true},
		{"factory/live", "factory/other/live-run", "", false},
		{"factory/live", "factory/live/", "", false},
		{"factory/live", "factory/live/a/b", "", false},
	}
	for _, tt := range tests {
		got, ok := TopicToEvent(tt.prefix, tt.topic)
		assert.Equal(t, tt.ok, ok, tt.topic)
		assert.Equal(t, tt.want, got, tt.topic)
	}
}

func TestMQTTTransport_Topics(t *testing.T) {
	tr := &MQTTTransport{TopicPrefix: "factory/live/", QoS: 1}
	assert.Equal(t, map[string]byte{
		"factory/live/live-run":   1,
		"factory/live/highlights": 1,
	}, tr.Topics())
	assert.Equal(t, "mqtt", tr.Name())
}

func TestMQTTStream_DeliverAndRecv(t *testing.T) {
	s := newMQTTStream("factory/live")

	payload := []byte(`{"data":[]}`)
	s.deliver("factory/live/live-run", payload)
	s.deliver("elsewhere/live-run", []byte(`{}`))
	payload[0] = 'X'

	ev, err := s.Recv()
	require.NoError(t, err)
	assert.Equal(t, EventLiveRun, ev.Name)
	assert.Equal(t, `{"data":[]}`, string(ev.Data), "payload must be copied")
}

func TestMQTTStream_FailAndClose(t *testing.T) {
	s := newMQTTStream("p")
	lost := errors.New("broker gone")
	s.fail(lost)
	s.fail(errors.New("second"))

	_, err := s.Recv()
	assert.ErrorIs(t, err, lost)

	// Delivery after failure must not block.
	s.deliver("p/live-run", []byte(`{}`))

	c := newMQTTStream("p")
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	_, err = c.Recv()
	assert.ErrorIs(t, err, ErrServerDisconnect)
}
