package commands

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTimestamp(t *testing.T) {
	text := "[2026-03-01 10:30:45] [INFO] Loader ready max_concurrent=4"
	got := extractTimestamp(text)
	want := time.Date(2026, 3, 1, 10, 30, 45, 0, time.Local)
	assert.True(t, want.Equal(got), got)

	jsonLine := `{"time":"2026-03-01T10:30:45.123Z","level":"WARN","msg":"Persist dropped"}`
	got = extractTimestamp(jsonLine)
	assert.True(t, time.Date(2026, 3, 1, 10, 30, 45, 123e6, time.UTC).Equal(got), got)

	assert.True(t, extractTimestamp("panic: runtime error").IsZero())
}

func TestExtractLevel(t *testing.T) {
	assert.Equal(t, "INFO", extractLevel("[2026-03-01 10:30:45] [INFO] Loader ready"))
	assert.Equal(t, "WARN", extractLevel(`{"time":"2026-03-01T10:30:45Z","level":"WARN","msg":"x"}`))
	assert.Equal(t, "", extractLevel("goroutine 1 [running]:"))
}

func TestParseLogFilter(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	f, err := parseLogFilter("30m", "warn", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-30*time.Minute), f.since)
	assert.Equal(t, 2, f.minLevel)

	f, err = parseLogFilter("2026-03-01T11:00:00Z", "", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC), f.since.UTC())

	_, err = parseLogFilter("yesterday", "", now)
	assert.Error(t, err)
	_, err = parseLogFilter("", "loud", now)
	assert.Error(t, err)
}

func TestTailLines(t *testing.T) {
	log := strings.Join([]string{
		`{"time":"2026-03-01T10:00:00Z","level":"DEBUG","msg":"one"}`,
		`{"time":"2026-03-01T10:01:00Z","level":"INFO","msg":"two"}`,
		`{"time":"2026-03-01T10:02:00Z","level":"ERROR","msg":"three"}`,
		`{"time":"2026-03-01T10:03:00Z","level":"INFO","msg":"four"}`,
		"stack trace line without a timestamp",
	}, "\n")

	t.Run("LastN", func(t *testing.T) {
		lines, err := tailLines(strings.NewReader(log), 2, logFilter{})
		require.NoError(t, err)
		require.Len(t, lines, 2)
		assert.Contains(t, lines[0], "four")
		assert.Equal(t, "stack trace line without a timestamp", lines[1])
	})

	t.Run("Since", func(t *testing.T) {
		f := logFilter{since: time.Date(2026, 3, 1, 10, 1, 30, 0, time.UTC)}
		lines, err := tailLines(strings.NewReader(log), 10, f)
		require.NoError(t, err)
		require.Len(t, lines, 3)
		assert.Contains(t, lines[0], "three")
	})

	t.Run("Level", func(t *testing.T) {
		lines, err := tailLines(strings.NewReader(log), 10, logFilter{minLevel: levelRank("info")})
		require.NoError(t, err)
		assert.Len(t, lines, 4)
		assert.NotContains(t, strings.Join(lines, "\n"), `"one"`)
	})

	t.Run("Zero", func(t *testing.T) {
		lines, err := tailLines(strings.NewReader(log), 0, logFilter{})
		require.NoError(t, err)
		assert.Empty(t, lines)
	})
}
