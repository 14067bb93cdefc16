package timeutil

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatUptime(t *testing.T) {
	tests := map[string]string{
		"15s":       "15s",
		"2m3.7s":    "2m 3s",
		"1h0m5s":    "1h 0m 5s",
		"72h30m15s": "3d 0h 30m 15s",
		"garbage":   "garbage",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatUptime(in), in)
	}
}

func TestFormatTime(t *testing.T) {
	ts := time.Now().Add(-3 * time.Minute).UTC().Format(time.RFC3339)
	got := FormatTime(ts)
	assert.True(t, strings.HasSuffix(got, "(3 minutes ago)"), got)

	assert.Equal(t, "not-a-time", FormatTime("not-a-time"))
	assert.Equal(t, "-", FormatTime("0001-01-01T00:00:00Z"))
}
