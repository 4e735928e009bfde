package logtail

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Read returns at most maxLines from the end of the file at path. A missing
// file yields no lines.
func Read(path string, maxLines int) ([]string, error) {
	if maxLines <= 0 {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	ring := make([]string, maxLines)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	count := 0
	idx := 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	lines := make([]string, count)
	if count == maxLines {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%maxLines]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}

var textLevel = regexp.MustCompile(`\blevel=(DEBUG|INFO|WARN|ERROR)\b`)

// LineLevel extracts the slog level of a text or JSON log line. Lines
// without one report false.
func LineLevel(line string) (slog.Level, bool) {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "{") {
		var rec struct {
			Level string `json:"level"`
		}
		if err := json.Unmarshal([]byte(trimmed), &rec); err != nil || rec.Level == "" {
			return 0, false
		}
		return parseLevel(rec.Level)
	}
	m := textLevel.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	return parseLevel(m[1])
}

func parseLevel(name string) (slog.Level, bool) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, false
	}
	return level, true
}

// Filter keeps lines at or above minLevel. Lines with no recognizable
// level are kept, since they continue the record before them.
func Filter(lines []string, minLevel slog.Level) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if level, ok := LineLevel(line); ok && level < minLevel {
			continue
		}
		out = append(out, line)
	}
	return out
}

var levelStyles = map[slog.Level]lipgloss.Style{
	slog.LevelDebug: lipgloss.NewStyle().Foreground(lipgloss.Color("#63cdcf")),
	slog.LevelInfo:  lipgloss.NewStyle().Foreground(lipgloss.Color("#81b29a")),
	slog.LevelWarn:  lipgloss.NewStyle().Foreground(lipgloss.Color("#dbc074")).Bold(true),
	slog.LevelError: lipgloss.NewStyle().Foreground(lipgloss.Color("#c94f6d")).Bold(true),
}

// ColorizeLine colors a line by its level. Lipgloss drops the colors when
// the output is not a terminal, so the result is safe to pipe.
func ColorizeLine(line string) string {
	level, ok := LineLevel(line)
	if !ok {
		return line
	}
	style, ok := levelStyles[level]
	if !ok {
		return line
	}
	return style.Render(line)
}

// ColorizeLines applies ColorizeLine to each line.
func ColorizeLines(lines []string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = ColorizeLine(line)
	}
	return out
}
