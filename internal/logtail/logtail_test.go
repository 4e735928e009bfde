package logtail

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestRead(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "climdo.log")

	var content strings.Builder
	var expectedAll []string
	for i := 1; i <= 10; i++ {
		line := fmt.Sprintf("Line %d", i)
		content.WriteString(line + "\n")
		expectedAll = append(expectedAll, line)
	}
	if err := os.WriteFile(logPath, []byte(content.String()), 0o644); err != nil {
		t.Fatalf("failed to create test log file: %v", err)
	}

	tests := []struct {
		name     string
		maxLines int
		expected []string
	}{
		{name: "zero reads nothing", maxLines: 0, expected: nil},
		{name: "negative reads nothing", maxLines: -1, expected: nil},
		{name: "read partial (5)", maxLines: 5, expected: expectedAll[5:]},
		{name: "read exactly all (10)", maxLines: 10, expected: expectedAll},
		{name: "read more than exists (20)", maxLines: 20, expected: expectedAll},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Read(logPath, tt.maxLines)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Read() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRead_MissingFile(t *testing.T) {
	lines, err := Read(filepath.Join(t.TempDir(), "nope.log"), 10)
	if err != nil || lines != nil {
		t.Fatalf("Read(missing) = %v, %v; want nil, nil", lines, err)
	}
}

func TestLineLevel(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		level slog.Level
		ok    bool
	}{
		{"text warn", `time=2026-10-14T10:00:00Z level=WARN msg="poll failed" failures=2`, slog.LevelWarn, true},
		{"text debug", `time=2026-10-14T10:00:00Z level=DEBUG source=client.go:10 msg=request`, slog.LevelDebug, true},
		{"json error", `{"time":"2026-10-14T10:00:00Z","level":"ERROR","msg":"boom"}`, slog.LevelError, true},
		{"json without level", `{"msg":"hi"}`, 0, false},
		{"broken json", `{"level":`, 0, false},
		{"plain text", "panic: something", 0, false},
		{"level inside a value", `msg="sublevel=WARN"`, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, ok := LineLevel(tt.line)
			if ok != tt.ok || (ok && level != tt.level) {
				t.Fatalf("LineLevel() = %v, %v; want %v, %v", level, ok, tt.level, tt.ok)
			}
		})
	}
}

func TestFilter(t *testing.T) {
	lines := []string{
		"time=t1 level=DEBUG msg=a",
		"time=t2 level=INFO msg=b",
		"goroutine 1 [running]:",
		"time=t3 level=WARN msg=c",
		`{"level":"ERROR","msg":"d"}`,
	}
	got := Filter(lines, slog.LevelWarn)
	want := []string{lines[2], lines[3], lines[4]}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Filter() = %v, want %v", got, want)
	}
}

func TestColorizeLines_KeepsText(t *testing.T) {
	lines := []string{"time=t1 level=ERROR msg=boom", "no level here"}
	out := ColorizeLines(lines)
	if len(out) != 2 {
		t.Fatalf("ColorizeLines() returned %d lines", len(out))
	}
	for i := range lines {
		if !strings.Contains(out[i], lines[i]) {
			t.Errorf("ColorizeLines()[%d] = %q lost the text %q", i, out[i], lines[i])
		}
	}
	if out[1] != lines[1] {
		t.Errorf("unleveled line was restyled: %q", out[1])
	}
}
