package main

import (
	"fmt"
	"os"

	"github.com/floorwatch/backend/internal/config"
	"github.com/floorwatch/backend/internal/telemetry"
)

// buildTransport maps the Telemetry config section to a transport.
func buildTransport(cfg *config.AppConfig) (telemetry.Transport, error) {
	t := cfg.Telemetry
	switch t.Transport {
	case config.TransportSocketIO:
		return &telemetry.SocketIOTransport{
			URL:              t.StreamURL,
			Token:            cfg.Backend.Token,
			Credentials:      t.Credentials,
			HandshakeTimeout: cfg.HandshakeTimeout(),
		}, nil
	case config.TransportMQTT:
		clientID := t.MQTT.ClientID
		if host, err := os.Hostname(); err == nil && clientID != "" {
			clientID = fmt.Sprintf("%s-%s", clientID, host)
		}
		return &telemetry.MQTTTransport{
			Broker:         t.MQTT.Broker,
			ClientID:       clientID,
			Username:       t.MQTT.Username,
			Password:       t.MQTT.Password,
			TopicPrefix:    t.MQTT.TopicPrefix,
			QoS:            byte(t.MQTT.QoS),
			ConnectTimeout: cfg.HandshakeTimeout(),
		}, nil
	default:
		return nil, fmt.Errorf("unknown telemetry transport %q", t.Transport)
	}
}

// reconnectPolicy follows the stock Socket.IO client backoff, bounded by
// MaxReconnectAttempts.
func reconnectPolicy(cfg *config.AppConfig) telemetry.ReconnectPolicy {
	if !cfg.Telemetry.Reconnect {
		return telemetry.NoReconnect{}
	}
	b := telemetry.DefaultBackoff()
	b.MaxAttempts = cfg.Telemetry.MaxReconnectAttempts
	return b
}

