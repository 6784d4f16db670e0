package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Snapshot is the complete set of machine records held at one instant.
// It is always replaced wholesale, never merged.
type Snapshot []MachineRecord

// ErrNoSnapshotData is returned for a live-run payload whose data field is
// absent or null. An empty array is a valid, empty snapshot.
var ErrNoSnapshotData = errors.New("live-run payload has no data array")

// DecodeSnapshot decodes a live-run payload of the form {"data": [...]}.
// Entries that are not JSON objects are skipped and counted; the rest of
// the snapshot is kept.
func DecodeSnapshot(payload []byte) (Snapshot, int, error) {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, 0, fmt.Errorf("decoding live-run payload: %w", err)
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return nil, 0, ErrNoSnapshotData
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(envelope.Data, &entries); err != nil {
		return nil, 0, fmt.Errorf("decoding live-run data: %w", err)
	}

	records := make(Snapshot, 0, len(entries))
	skipped := 0
	for _, raw := range entries {
		var rec MachineRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}

// Highlights is the factory-wide aggregate pushed on the highlights event.
// The core stores it without interpreting it.
type Highlights struct {
	Data       json.RawMessage    `json:"data,omitempty"`
	Counts     map[string]float64 `json:"counts,omitempty"` // numeric top-level fields of Data
	ReceivedAt time.Time          `json:"receivedAt"`
}

// DecodeHighlights decodes a highlights payload of the form {"data": {...}}.
func DecodeHighlights(payload []byte, now time.Time) (Highlights, error) {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return Highlights{}, fmt.Errorf("decoding highlights payload: %w", err)
	}

	h := Highlights{Data: envelope.Data, ReceivedAt: now}
	var fields map[string]json.RawMessage
	if json.Unmarshal(envelope.Data, &fields) == nil {
		h.Counts = make(map[string]float64, len(fields))
		for k, raw := range fields {
			var d Decimal
			_ = d.UnmarshalJSON(raw)
			v, err := strconv.ParseFloat(string(d), 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			h.Counts[k] = v
		}
	}
	return h, nil
}
