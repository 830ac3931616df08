package models

import (
	"bytes"
	"math"
	"strconv"
	"strings"
	"time"
)

// Number is a numeric field as the dashboard API reports it: a JSON number,
// a numeric string, null, or absent entirely. Malformed input decodes to the
// unset state instead of failing the surrounding payload.
type Number struct {
	value float64
	set   bool
}

// Num builds a set Number. Mostly useful in tests and fixtures.
func Num(v float64) Number {
	return Number{value: v, set: true}
}

// Float returns the numeric value, or 0 when the field was missing or
// malformed.
func (n Number) Float() float64 {
	return n.value
}

// Value returns the numeric value and whether it was actually present.
func (n Number) Value() (float64, bool) {
	return n.value, n.set
}

// IsSet reports whether the field carried a usable numeric value.
func (n Number) IsSet() bool {
	return n.set
}

// Int returns the value truncated to an int, 0 when unset.
func (n Number) Int() int {
	return int(n.value)
}

func (n *Number) UnmarshalJSON(data []byte) error {
	*n = parseNumber(data)
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.set {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(n.value, 'f', -1, 64)), nil
}

func parseNumber(data []byte) Number {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Number{}
	}
	if data[0] == '"' {
		var err error
		data, err = unquote(data)
		if err != nil {
			return Number{}
		}
	}
	s := strings.TrimSpace(string(data))
	if s == "" {
		return Number{}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Number{}
	}
	// ParseFloat accepts "NaN" and "Inf" strings; neither is a usable value.
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Number{}
	}
	return Number{value: v, set: true}
}

func unquote(data []byte) ([]byte, error) {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

// Timestamp decodes the two timestamp encodings the backend emits:
// milliseconds since the epoch (number or numeric string) and RFC3339 text.
// Malformed input decodes to the zero time.
type Timestamp struct {
	time.Time
}

// TS wraps a time.Time in a Timestamp.
func TS(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	if data[0] == '"' {
		unquoted, err := unquote(data)
		if err != nil {
			t.Time = time.Time{}
			return nil
		}
		s := strings.TrimSpace(string(unquoted))
		if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
			t.Time = parsed
			return nil
		}
		if parsed, err := time.Parse(time.RFC3339, s); err == nil {
			t.Time = parsed
			return nil
		}
		data = unquoted
	}
	if ms, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64); err == nil {
		t.Time = time.UnixMilli(ms)
		return nil
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64); err == nil {
		t.Time = time.UnixMilli(int64(f))
		return nil
	}
	t.Time = time.Time{}
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.Time.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(t.Time.Format(time.RFC3339Nano))), nil
}
