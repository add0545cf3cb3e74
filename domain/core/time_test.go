package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Time
	}{
		{"microseconds", "2017-01-21 22:11:48.556739", time.Date(2017, 1, 21, 22, 11, 48, 556739000, time.UTC)},
		{"space separated with offset", "2017-01-21 22:11:48.556739+00:00", time.Date(2017, 1, 21, 22, 11, 48, 556739000, time.UTC)},
		{"space separated with non-utc offset", "2017-01-21 22:11:48+02:00", time.Date(2017, 1, 21, 20, 11, 48, 0, time.UTC)},
		{"iso T separator", "2017-01-21T22:11:48", time.Date(2017, 1, 21, 22, 11, 48, 0, time.UTC)},
		{"rfc3339", "2017-01-21T22:11:48Z", time.Date(2017, 1, 21, 22, 11, 48, 0, time.UTC)},
		{"date only", "2023-01-01", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"padded", "  2023-01-01 08:30  ", time.Date(2023, 1, 1, 8, 30, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.input)
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(got), "expected %v, got %v", tt.expected, got)
		})
	}
}

func TestParseTimestamp_Invalid(t *testing.T) {
	for _, input := range []string{"", "yesterday", "2023-13-45"} {
		_, err := ParseTimestamp(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestSnapshotStamp(t *testing.T) {
	ts := time.Date(2024, 3, 9, 7, 5, 1, 0, time.UTC)
	assert.Equal(t, "20240309_070501", SnapshotStamp(ts))
}

func TestHashRecords(t *testing.T) {
	a := HashRecords([]string{"x"}, [][]string{{"a,b"}})
	b := HashRecords([]string{"x"}, [][]string{{"a", "b"}})
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, HashRecords([]string{"x"}, [][]string{{"a,b"}}))
	assert.Len(t, a.Short(), 12)
}
