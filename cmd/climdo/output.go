package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/five82/climdo/internal/api"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#719cd6"))
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#dbc074"))
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
)

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// parseIDs converts ID arguments, rejecting anything that is not a
// positive integer.
func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimPrefix(arg, "#"), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseDue validates a --due value. Empty clears nothing and returns "".
func parseDue(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	if _, err := time.Parse(time.DateOnly, value); err != nil {
		return "", fmt.Errorf("invalid due date %q: use YYYY-MM-DD", value)
	}
	return value, nil
}

// renderTable draws rows under headers with the list table style.
func renderTable(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#39506d"))).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return cellStyle
		})
	return t.String()
}

func writeSection(w io.Writer, title string, headers []string, rows [][]string) {
	fmt.Fprintln(w, sectionStyle.Render(title))
	fmt.Fprintln(w, renderTable(headers, rows))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatDue(t api.Task) string {
	due := t.ParsedDueAt()
	if due.IsZero() {
		return "-"
	}
	return due.Local().Format("Mon 2 Jan 2006")
}

func statusMark(t api.Task) string {
	if t.IsCompleted {
		return "done"
	}
	return "open"
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return fmt.Sprintf("%d %s", n, many)
}
