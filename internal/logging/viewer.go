package logging

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"
)

// maxLineSize bounds a single log line read by the viewer.
const maxLineSize = 1024 * 1024

// LogEntry is one parsed JSON log line.
type LogEntry struct {
	Time    time.Time
	Level   string
	Msg     string
	Attrs   map[string]any
	Raw     string
	IsValid bool
}

// ViewerConfig configures the log viewer.
type ViewerConfig struct {
	Level     string         // minimum level to show
	Pattern   *regexp.Regexp // only lines matching Pattern
	RequestID string         // only entries carrying this request_id
	NoColor   bool
}

// Viewer reads, filters, and prints docsearch log files.
type Viewer struct {
	config ViewerConfig
	out    io.Writer
}

// NewViewer creates a log viewer writing to out.
func NewViewer(cfg ViewerConfig, out io.Writer) *Viewer {
	return &Viewer{config: cfg, out: out}
}

// Tail returns the matching entries among the last n lines of path.
func (v *Viewer) Tail(path string, n int) ([]LogEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if n <= 0 {
		return nil, nil
	}

	// Ring of the last n lines.
	ring := make([]string, 0, n)
	next := 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		if len(ring) < n {
			ring = append(ring, scanner.Text())
			continue
		}
		ring[next] = scanner.Text()
		next = (next + 1) % n
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	lines := make([]string, 0, len(ring))
	lines = append(lines, ring[next:]...)
	lines = append(lines, ring[:next]...)

	var entries []LogEntry
	for _, line := range lines {
		entry := parseLine(line)
		if v.matches(entry) {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// Follow sends entries appended to path after the call until ctx is done.
func (v *Viewer) Follow(ctx context.Context, path string, entries chan<- LogEntry) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}

	reader := bufio.NewReader(file)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	var partial string
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		for {
			chunk, err := reader.ReadString('\n')
			if err != nil {
				// Incomplete line; finish it on a later tick.
				partial += chunk
				break
			}
			line := strings.TrimSuffix(partial+chunk, "\n")
			partial = ""
			if line == "" {
				continue
			}

			entry := parseLine(line)
			if !v.matches(entry) {
				continue
			}
			select {
			case entries <- entry:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// Print writes entries to the viewer output.
func (v *Viewer) Print(entries []LogEntry) {
	for _, entry := range entries {
		_, _ = fmt.Fprintln(v.out, v.FormatEntry(entry))
	}
}

// FormatEntry renders "15:04:05.000 LEVEL msg k=v ..." with attributes in key order.
// Unparseable lines are returned raw.
func (v *Viewer) FormatEntry(entry LogEntry) string {
	if !entry.IsValid {
		return entry.Raw
	}

	keys := make([]string, 0, len(entry.Attrs))
	for k := range entry.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(entry.Time.Format("15:04:05.000"))
	b.WriteByte(' ')
	b.WriteString(v.formatLevel(entry.Level))
	b.WriteByte(' ')
	b.WriteString(entry.Msg)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry.Attrs[k])
	}
	return b.String()
}

func parseLine(line string) LogEntry {
	entry := LogEntry{Raw: line}

	var data map[string]any
	if err := json.Unmarshal([]byte(line), &data); err != nil {
		return entry
	}
	entry.IsValid = true

	if t, ok := data["time"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			entry.Time = parsed
		}
	}
	entry.Level, _ = data["level"].(string)
	entry.Msg, _ = data["msg"].(string)

	entry.Attrs = make(map[string]any, len(data))
	for k, val := range data {
		switch k {
		case "time", "level", "msg":
		default:
			entry.Attrs[k] = val
		}
	}
	return entry
}

func (v *Viewer) matches(entry LogEntry) bool {
	if v.config.Level != "" && entry.IsValid {
		if LevelFromString(entry.Level) < LevelFromString(v.config.Level) {
			return false
		}
	}
	if v.config.Pattern != nil && !v.config.Pattern.MatchString(entry.Raw) {
		return false
	}
	if v.config.RequestID != "" {
		id, _ := entry.Attrs["request_id"].(string)
		if id != v.config.RequestID {
			return false
		}
	}
	return true
}

func (v *Viewer) formatLevel(level string) string {
	label := strings.ToUpper(level)
	if len(label) > 5 {
		label = label[:5]
	}
	label = fmt.Sprintf("%-5s", label)

	if v.config.NoColor {
		return label
	}

	switch strings.ToLower(level) {
	case "debug":
		return "\033[90m" + label + "\033[0m"
	case "info":
		return "\033[32m" + label + "\033[0m"
	case "warn", "warning":
		return "\033[33m" + label + "\033[0m"
	case "error":
		return "\033[31m" + label + "\033[0m"
	default:
		return label
	}
}
