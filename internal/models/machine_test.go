package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecimal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want float64
	}{
		{"string", `"12.5"`, 12.5},
		{"number", `7`, 7},
		{"padded string", `" 3.25 "`, 3.25},
		{"empty string", `""`, 0},
		{"null", `null`, 0},
		{"garbage", `"fast"`, 0},
		{"object", `{"x":1}`, 0},
		{"nan", `"NaN"`, 0},
		{"inf", `"+Inf"`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Decimal
			require.NoError(t, json.Unmarshal([]byte(tt.in), &d))
			assert.Equal(t, tt.want, d.Float())
		})
	}
}

func TestTimestamp(t *testing.T) {
	var ts Timestamp
	require.NoError(t, json.Unmarshal([]byte(`"2025-03-01T10:00:00Z"`), &ts))
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), ts.Time.UTC())

	require.NoError(t, json.Unmarshal([]byte(`1700000000`), &ts))
	assert.Equal(t, int64(1700000000), ts.Time.Unix())

	require.NoError(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
	assert.True(t, ts.IsZero())

	out, err := json.Marshal(NewTimestamp(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.Equal(t, `"2025-03-01T10:00:00Z"`, string(out))
}

func TestMachineRecordTolerantDecode(t *testing.T) {
	payload := `{
		"machine": {"_id": "m-1", "machineNumber": "M01", "name": "Press 1"},
		"status": "Active",
		"cycleTime": "12.4",
		"currentProduction": 120,
		"targetProduction": "100",
		"insertHistory": "not-a-list",
		"component": {"name": "Cap", "targetCycleTime": "12"},
		"mould": 42,
		"notes": [{"type": "info", "note": "ok", "creationDate": "2025-01-01T00:00:00Z"}]
	}`

	var rec MachineRecord
	require.NoError(t, json.Unmarshal([]byte(payload), &rec))

	assert.Equal(t, "M01", rec.Machine.MachineNumber)
	assert.Equal(t, StatusActive, rec.Status)
	assert.Equal(t, SignalUnknown, rec.SignalQuality)
	assert.Equal(t, 12.4, rec.CycleTime.Float())
	assert.Equal(t, 120.0, rec.CurrentProduction.Float())
	assert.Empty(t, rec.InsertHistory)
	assert.Equal(t, "Cap", rec.Component.Name)
	assert.Equal(t, Mould{}, rec.Mould)
	require.Len(t, rec.Notes, 1)
	assert.Equal(t, "ok", rec.Notes[0].Note)
}

func TestDecodeSnapshot(t *testing.T) {
	t.Run("skips non-object entries", func(t *testing.T) {
		records, skipped, err := DecodeSnapshot([]byte(`{"data":[{"status":"Idle"},"junk",17,{"status":"Active"}]}`))
		require.NoError(t, err)
		assert.Equal(t, 2, skipped)
		require.Len(t, records, 2)
		assert.Equal(t, StatusIdle, records[0].Status)
		assert.Equal(t, StatusActive, records[1].Status)
	})

	t.Run("empty data", func(t *testing.T) {
		records, skipped, err := DecodeSnapshot([]byte(`{"data":[]}`))
		require.NoError(t, err)
		assert.Zero(t, skipped)
		assert.Empty(t, records)
	})

	t.Run("not an envelope", func(t *testing.T) {
		_, _, err := DecodeSnapshot([]byte(`[1,2,3]`))
		assert.Error(t, err)
	})

	t.Run("missing or null data", func(t *testing.T) {
		for _, payload := range []string{`{}`, `{"data":null}`, `{"message":"ok"}`} {
			records, _, err := DecodeSnapshot([]byte(payload))
			assert.ErrorIs(t, err, ErrNoSnapshotData, payload)
			assert.Nil(t, records, payload)
		}
	})

	t.Run("data not an array", func(t *testing.T) {
		_, _, err := DecodeSnapshot([]byte(`{"data":{"status":"Idle"}}`))
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrNoSnapshotData)
	})
}

func TestDecodeHighlights(t *testing.T) {
	now := time.Now()
	h, err := DecodeHighlights([]byte(`{"data":{"activeMachines":5,"totalProduction":"1200","factory":"North"}}`), now)
	require.NoError(t, err)
	assert.Equal(t, 5.0, h.Counts["activeMachines"])
	assert.Equal(t, 1200.0, h.Counts["totalProduction"])
	_, hasFactory := h.Counts["factory"]
	assert.False(t, hasFactory)

	h, err = DecodeHighlights([]byte(`{"data":{"a":"NaN","b":"+Inf","c":"-Inf","d":1e999,"e":"2"}}`), now)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"e": 2}, h.Counts)
	_, err = json.Marshal(h)
	assert.NoError(t, err)
	assert.Equal(t, now, h.ReceivedAt)
}
