package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Engine.IO v4 packet types.
const (
	engineOpen    byte = '0'
	engineClose   byte = '1'
	enginePing    byte = '2'
	enginePong    byte = '3'
	engineMessage byte = '4'
	engineUpgrade byte = '5'
	engineNoop    byte = '6'
)

// Socket.IO v5 packet types, carried inside engine message packets.
const (
	socketConnect      byte = '0'
	socketDisconnect   byte = '1'
	socketEvent        byte = '2'
	socketAck          byte = '3'
	socketConnectError byte = '4'
)

var errEmptyPacket = errors.New("empty packet")

// packet is one decoded text frame.
type packet struct {
	engine    byte
	socket    byte // set only for engine message packets
	namespace string
	ackID     int // -1 when absent
	data      []byte
}

// decodePacket splits a text frame such as `42["live-run",{...}]` or
// `42/admin,7["x"]` into its parts.
func decodePacket(frame []byte) (packet, error) {
	if len(frame) == 0 {
		return packet{}, errEmptyPacket
	}
	p := packet{engine: frame[0], ackID: -1}
	if p.engine < engineOpen || p.engine > engineNoop {
		return packet{}, fmt.Errorf("unknown engine packet type %q", p.engine)
	}
	rest := frame[1:]
	if p.engine != engineMessage {
		p.data = rest
		return p, nil
	}

	if len(rest) == 0 {
		return packet{}, errors.New("message packet without socket type")
	}
	p.socket = rest[0]
	if p.socket < socketConnect || p.socket > '6' {
		return packet{}, fmt.Errorf("unknown socket packet type %q", p.socket)
	}
	rest = rest[1:]

	if len(rest) > 0 && rest[0] == '/' {
		end := bytes.IndexByte(rest, ',')
		if end < 0 {
			p.namespace = string(rest)
			return p, nil
		}
		p.namespace = string(rest[:end])
		rest = rest[end+1:]
	}

	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	if digits > 0 {
		id, err := strconv.Atoi(string(rest[:digits]))
		if err != nil {
			return packet{}, fmt.Errorf("bad ack id: %w", err)
		}
		p.ackID = id
		rest = rest[digits:]
	}
	p.data = rest
	return p, nil
}

// decodeEvent reads the ["name", payload] array of an event packet.
func decodeEvent(data []byte) (Event, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return Event{}, fmt.Errorf("decoding event array: %w", err)
	}
	if len(parts) == 0 {
		return Event{}, errors.New("event array is empty")
	}
	var ev Event
	if err := json.Unmarshal(parts[0], &ev.Name); err != nil {
		return Event{}, fmt.Errorf("decoding event name: %w", err)
	}
	if len(parts) > 1 {
		ev.Data = parts[1]
	}
	return ev, nil
}

// encodeEvent builds a `42["name",payload]` frame for the default namespace.
func encodeEvent(name string, payload any) ([]byte, error) {
	body, err := json.Marshal([]any{name, payload})
	if err != nil {
		return nil, err
	}
	return append([]byte{engineMessage, socketEvent}, body...), nil
}

// openInfo is the engine handshake sent by the server in the open packet.
type openInfo struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"` // ms
	PingTimeout  int    `json:"pingTimeout"`  // ms
}
