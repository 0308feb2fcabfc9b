package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the canonical text form of warehouse timestamps.
const TimestampLayout = "2006-01-02 15:04:05.000"

// EpochDefault is substituted for missing or unparseable timestamps.
const EpochDefault = "1970-01-01 00:00:00.000"

var epoch = time.Unix(0, 0).UTC()

var timestampLayouts = []string{
	TimestampLayout,
	"2006-01-02 15:04:05.000000",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2.1.2006 15:04",
	"2.1.2006",
}

// Timestamp is a naive wall-clock timestamp with millisecond precision. The
// zero value renders as EpochDefault.
type Timestamp struct {
	t time.Time
}

// NewTimestamp keeps the wall clock of t and drops its location.
func NewTimestamp(t time.Time) Timestamp {
	if t.IsZero() {
		return Timestamp{}
	}
	wall := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	return Timestamp{t: wall.Truncate(time.Millisecond)}
}

// ParseTimestamp accepts the layouts seen in warehouse extracts and grid
// payloads. Blank input yields the epoch default without error.
func ParseTimestamp(raw string) (Timestamp, error) {
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(raw) {
	case "", "nan", "nat", "none", "null":
		return Timestamp{}, nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return NewTimestamp(parsed), nil
		}
	}
	return Timestamp{}, fmt.Errorf("unrecognised timestamp %q", raw)
}

// Time returns the wall-clock time, the Unix epoch for the zero value.
func (ts Timestamp) Time() time.Time {
	if ts.t.IsZero() {
		return epoch
	}
	return ts.t
}

// IsSentinel reports whether the timestamp is empty or the epoch default.
func (ts Timestamp) IsSentinel() bool {
	return ts.t.IsZero() || ts.t.Equal(epoch)
}

// Equal compares two timestamps treating every sentinel as equal.
func (ts Timestamp) Equal(other Timestamp) bool {
	if ts.IsSentinel() || other.IsSentinel() {
		return ts.IsSentinel() == other.IsSentinel()
	}
	return ts.t.Equal(other.t)
}

func (ts Timestamp) String() string {
	return ts.Time().Format(TimestampLayout)
}

// MarshalJSON renders the canonical text form.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(ts.String())
}

// UnmarshalJSON accepts strings in any supported layout, null, or epoch millis.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*ts = CoerceTimestamp(raw)
	return nil
}

// Scan implements sql.Scanner.
func (ts *Timestamp) Scan(src interface{}) error {
	*ts = CoerceTimestamp(src)
	return nil
}

// Value implements driver.Valuer.
func (ts Timestamp) Value() (driver.Value, error) {
	return ts.Time(), nil
}

// CoerceTimestamp converts any supported representation, falling back to the
// epoch default.
func CoerceTimestamp(raw interface{}) Timestamp {
	switch v := raw.(type) {
	case nil:
		return Timestamp{}
	case Timestamp:
		return v
	case *Timestamp:
		if v == nil {
			return Timestamp{}
		}
		return *v
	case time.Time:
		return NewTimestamp(v)
	case []byte:
		return CoerceTimestamp(string(v))
	case string:
		parsed, err := ParseTimestamp(v)
		if err != nil {
			return Timestamp{}
		}
		return parsed
	case float64:
		return NewTimestamp(time.UnixMilli(int64(v)).UTC())
	case int64:
		return NewTimestamp(time.UnixMilli(v).UTC())
	case int:
		return NewTimestamp(time.UnixMilli(int64(v)).UTC())
	default:
		return Timestamp{}
	}
}
