package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestampLayouts(t *testing.T) {
	cases := map[string]string{
		"2024-03-01 10:11:12.345":     "2024-03-01 10:11:12.345",
		"2024-03-01 10:11:12":         "2024-03-01 10:11:12.000",
		"2024-03-01T10:11:12Z":        "2024-03-01 10:11:12.000",
		"2024-03-01":                  "2024-03-01 00:00:00.000",
		"1.3.2024 10:11":              "2024-03-01 10:11:00.000",
		"2024-03-01 10:11:12.3456789": "2024-03-01 10:11:12.345",
	}
	for raw, want := range cases {
		ts, err := ParseTimestamp(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, ts.String(), raw)
	}
}

func TestParseTimestampBlankIsSentinel(t *testing.T) {
	for _, raw := range []string{"", "  ", "NaT", "nan", "None"} {
		ts, err := ParseTimestamp(raw)
		require.NoError(t, err)
		assert.True(t, ts.IsSentinel())
		assert.Equal(t, EpochDefault, ts.String())
	}

	_, err := ParseTimestamp("yesterday")
	assert.Error(t, err)
	assert.Equal(t, EpochDefault, CoerceTimestamp("yesterday").String())
}

func TestTimestampEqualTreatsSentinelsAlike(t *testing.T) {
	epochTS := CoerceTimestamp(EpochDefault)
	assert.True(t, epochTS.IsSentinel())
	assert.True(t, Timestamp{}.Equal(epochTS))

	a := NewTimestamp(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))
	b := CoerceTimestamp("2024-05-01 08:00:00.000")
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(Timestamp{}))
}

func TestTimestampJSON(t *testing.T) {
	ts := NewTimestamp(time.Date(2023, 12, 31, 23, 59, 59, 999_000_000, time.FixedZone("CET", 3600)))
	data, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, `"2023-12-31 23:59:59.999"`, string(data))

	var back Timestamp
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, ts.Equal(back))

	require.NoError(t, json.Unmarshal([]byte("null"), &back))
	assert.True(t, back.IsSentinel())

	require.NoError(t, json.Unmarshal([]byte("0"), &back))
	assert.True(t, back.IsSentinel())
}
