// Package logtail reads the tail of the climdo log file for `climdo logs`.
//
// # Reading
//
// Read returns the last N lines using a ring buffer of N entries, so memory
// stays O(N) regardless of file size. A missing log file is not an error;
// it yields no lines.
//
// # Levels
//
// LineLevel understands both slog output formats the client can be
// configured with:
//
//	time=2026-10-14T10:00:00Z level=WARN msg="poll failed" failures=2
//	{"time":"2026-10-14T10:00:00Z","level":"WARN","msg":"poll failed"}
//
// Filter drops records below a minimum level and keeps unrecognized lines.
//
// # Colorization
//
// ColorizeLine colors a record by level with lipgloss. When stdout is not a
// terminal lipgloss renders plain text.
package logtail
