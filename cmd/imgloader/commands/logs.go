package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

var (
	logsFollow bool
	logsLines  int
	logsSince  string
	logsLevel  string
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Tail server logs",
	Long: `Display and optionally follow the server log file named by
logging.output in the config. Both the text and JSON log formats are
understood by --since and --level.

Examples:
  # Show the last 100 lines
  imgloader logs

  # Follow, starting from the last 20 lines
  imgloader logs -f -n 20

  # Only warnings and errors from the last hour
  imgloader logs --since 1h --level warn`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 100, "Number of lines to show")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since an RFC3339 time or a duration ago (e.g. 30m)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Minimum level to show (debug|info|warn|error)")
}

// logFilter selects log lines by time and level.
type logFilter struct {
	since    time.Time
	minLevel int
}

func (f logFilter) match(line string) bool {
	if !f.since.IsZero() {
		if t := extractTimestamp(line); !t.IsZero() && t.Before(f.since) {
			return false
		}
	}
	if f.minLevel > 0 {
		if lvl := levelRank(extractLevel(line)); lvl >= 0 && lvl < f.minLevel {
			return false
		}
	}
	return true
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logFile := cfg.Logging.Output
	if logFile == "stdout" || logFile == "stderr" {
		return fmt.Errorf("server is configured to log to %s, not a file\nSet 'logging.output' to a file path to use this command", logFile)
	}
	if _, err := os.Stat(logFile); os.IsNotExist(err) {
		return fmt.Errorf("log file not found: %s\nThe server may not have started yet or is logging elsewhere", logFile)
	}

	filter, err := parseLogFilter(logsSince, logsLevel, time.Now())
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if err := showLogs(w, logFile, logsLines, filter); err != nil {
		return err
	}
	if !logsFollow {
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Following %s (Ctrl+C to stop)...\n", logFile)
	return followLogs(ctx, w, logFile, filter)
}

func parseLogFilter(since, level string, now time.Time) (logFilter, error) {
	var f logFilter
	if since != "" {
		if d, err := time.ParseDuration(since); err == nil {
			f.since = now.Add(-d)
		} else if t, err := time.Parse(time.RFC3339, since); err == nil {
			f.since = t
		} else {
			return f, fmt.Errorf("invalid --since %q (use RFC3339 or a duration like 30m)", since)
		}
	}
	if level != "" {
		f.minLevel = levelRank(level)
		if f.minLevel < 0 {
			return f, fmt.Errorf("invalid --level %q (use debug, info, warn or error)", level)
		}
	}
	return f, nil
}

// showLogs writes the last n matching lines of logFile.
func showLogs(w io.Writer, logFile string, n int, filter logFilter) error {
	file, err := os.Open(logFile)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	lines, err := tailLines(file, n, filter)
	if err != nil {
		return fmt.Errorf("error reading log file: %w", err)
	}
	for _, line := range lines {
		_, _ = fmt.Fprintln(w, line)
	}
	return nil
}

// tailLines returns the last n lines of r that pass filter, keeping at most
// n lines in memory.
func tailLines(r io.Reader, n int, filter logFilter) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	ring := make([]string, 0, n)
	next := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !filter.match(line) {
			continue
		}
		if len(ring) < n {
			ring = append(ring, line)
			continue
		}
		ring[next] = line
		next = (next + 1) % n
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return append(ring[next:], ring[:next]...), nil
}

// followLogs prints lines appended to logFile until ctx is done. A truncated
// file is read again from the start.
func followLogs(ctx context.Context, w io.Writer, logFile string, filter logFilter) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(logFile); err != nil {
		return fmt.Errorf("failed to watch log file: %w", err)
	}

	file, err := os.Open(logFile)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	offset, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("failed to seek to end of log file: %w", err)
	}
	reader := bufio.NewReader(file)
	var partial string

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) {
				continue
			}

			if info, err := file.Stat(); err == nil && info.Size() < offset {
				if offset, err = file.Seek(0, io.SeekStart); err != nil {
					return fmt.Errorf("failed to rewind log file: %w", err)
				}
				reader.Reset(file)
				partial = ""
			}

			for {
				chunk, err := reader.ReadString('\n')
				offset += int64(len(chunk))
				if err != nil {
					partial += chunk
					break
				}
				line := strings.TrimRight(partial+chunk, "\r\n")
				partial = ""
				if filter.match(line) {
					_, _ = fmt.Fprintln(w, line)
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

const textTimeLayout = "2006-01-02 15:04:05"

// extractTimestamp reads the time of a text ("[2006-01-02 15:04:05] ...") or
// JSON ({"time":"..."}) log line. It returns the zero time when neither
// form is found.
func extractTimestamp(line string) time.Time {
	if len(line) > len(textTimeLayout)+1 && line[0] == '[' && line[len(textTimeLayout)+1] == ']' {
		if t, err := time.ParseInLocation(textTimeLayout, line[1:len(textTimeLayout)+1], time.Local); err == nil {
			return t
		}
	}

	if rec, ok := jsonRecord(line); ok && rec.Time != "" {
		if t, err := time.Parse(time.RFC3339Nano, rec.Time); err == nil {
			return t
		}
	}
	return time.Time{}
}

// extractLevel reads the level of a text or JSON log line, or "" if absent.
func extractLevel(line string) string {
	if rec, ok := jsonRecord(line); ok {
		return rec.Level
	}
	// "[time] [LEVEL] msg"
	rest := line
	if i := strings.Index(rest, "] ["); i >= 0 {
		rest = rest[i+3:]
		if j := strings.IndexByte(rest, ']'); j >= 0 {
			return rest[:j]
		}
	}
	return ""
}

type jsonLogRecord struct {
	Time  string `json:"time"`
	Level string `json:"level"`
}

func jsonRecord(line string) (jsonLogRecord, bool) {
	var rec jsonLogRecord
	if !strings.HasPrefix(line, "{") {
		return rec, false
	}
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		return rec, false
	}
	return rec, true
}

// levelRank orders level names; unknown names rank -1.
func levelRank(level string) int {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return 0
	case "INFO":
		return 1
	case "WARN", "WARNING":
		return 2
	case "ERROR":
		return 3
	}
	return -1
}
