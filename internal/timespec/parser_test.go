package timespec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAt(t *testing.T) {
	now := time.Date(2025, 10, 29, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		spec     string
		expected time.Time
	}{
		{"duration", "1h30m", now.Add(-90 * time.Minute)},
		{"days", "7d", now.AddDate(0, 0, -7)},
		{"date", "2025-10-01", time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)},
		{"rfc3339", "2025-10-29T13:00:00Z", time.Date(2025, 10, 29, 13, 0, 0, 0, time.UTC)},
		{"surrounding space", " 2h ", now.Add(-2 * time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAt(tt.spec, now)
			require.NoError(t, err)
			assert.Equal(t, tt.expected.UnixMilli(), got)
		})
	}

	for _, bad := range []string{"", "yesterday", "-1h", "xd", "-3d"} {
		_, err := ParseAt(bad, now)
		assert.Error(t, err, "spec %q", bad)
	}
}

func TestParseRangeAt(t *testing.T) {
	now := time.Date(2025, 10, 29, 12, 0, 0, 0, time.UTC)

	since, until, err := ParseRangeAt("2d", "1d", now)
	require.NoError(t, err)
	assert.Less(t, since, until)

	since, until, err = ParseRangeAt("", "", now)
	require.NoError(t, err)
	assert.Zero(t, since)
	assert.Zero(t, until)

	_, _, err = ParseRangeAt("1d", "2d", now)
	assert.ErrorContains(t, err, "--since must be before --until")

	_, _, err = ParseRangeAt("soon", "", now)
	assert.ErrorContains(t, err, "invalid --since")
}
