package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Decimal is a numeric wire value. The server sends most counters and
// all cycle times as base-10 strings, sometimes as bare numbers; both are
// kept verbatim and parsed on demand.
type Decimal string

// UnmarshalJSON accepts a JSON string, number or null. Any other token
// leaves the value empty instead of failing the enclosing record.
func (d *Decimal) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0, bytes.Equal(b, []byte("null")):
		*d = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*d = ""
			return nil
		}
		*d = Decimal(strings.TrimSpace(s))
	case b[0] == '-' || (b[0] >= '0' && b[0] <= '9'):
		*d = Decimal(b)
	default:
		*d = ""
	}
	return nil
}

// Float parses the value; see ParseDecimal.
func (d Decimal) Float() float64 {
	return ParseDecimal(string(d))
}

// ParseDecimal parses s as a base-10 float. Empty, malformed, NaN and
// infinite inputs all yield 0 so they never reach a rendered percentage.
func ParseDecimal(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Timestamp is an instant reported by the telemetry server. It accepts
// RFC3339 strings and Unix seconds (string or number); anything else
// decodes to the zero time.
type Timestamp struct {
	Time time.Time
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// IsZero reports whether no usable instant was received.
func (t Timestamp) IsZero() bool {
	return t.Time.IsZero()
}

// MarshalText renders RFC3339 with nanoseconds, or an empty string.
func (t Timestamp) MarshalText() ([]byte, error) {
	if t.Time.IsZero() {
		return []byte{}, nil
	}
	return []byte(t.Time.UTC().Format(time.RFC3339Nano)), nil
}

// UnmarshalJSON never fails; see Timestamp.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	t.Time = time.Time{}
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	raw := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return nil
		}
	}
	if parsed, ok := parseTime(strings.TrimSpace(raw)); ok {
		t.Time = parsed
	}
	return nil
}

// parseTime supports RFC3339 string or Unix timestamp (seconds).
func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0), true
	}
	return time.Time{}, false
}
