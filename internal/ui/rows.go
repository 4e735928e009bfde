package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/five82/climdo/internal/agenda"
	"github.com/five82/climdo/internal/api"
)

type rowKind int

const (
	rowHeading rowKind = iota
	rowTask
	rowGroup
	rowEmpty
)

// row is one line of the list pane.
type row struct {
	kind     rowKind
	title    string // heading or empty-state text
	task     api.Task
	group    api.Group
	daysLeft int // trash rows only
	trashed  bool
}

func (r row) selectable() bool {
	return r.kind == rowTask || r.kind == rowGroup
}

// key identifies the entity under a row so selection survives rebuilds.
func (r row) key() string {
	switch r.kind {
	case rowTask:
		return fmt.Sprintf("t%d", r.task.ID)
	case rowGroup:
		return fmt.Sprintf("g%d", r.group.ID)
	}
	return ""
}

func headingRow(title string) row { return row{kind: rowHeading, title: title} }

func taskRows(tasks []api.Task) []row {
	out := make([]row, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, row{kind: rowTask, task: t})
	}
	return out
}

func sectionRows(sections []agenda.Section) []row {
	var out []row
	for _, s := range sections {
		out = append(out, headingRow(s.Title))
		out = append(out, taskRows(s.Tasks)...)
	}
	return out
}

// buildRows lays out the list for a view.
func buildRows(view agenda.View, tasks []api.Task, groups []api.Group, now time.Time) []row {
	var rows []row
	switch view {
	case agenda.ViewToday:
		if due := agenda.Today(tasks, now); len(due) > 0 {
			rows = append(rows, headingRow("Due today"))
			rows = append(rows, taskRows(due)...)
		}
		if done := agenda.CompletedToday(tasks, now); len(done) > 0 {
			rows = append(rows, headingRow("Done today"))
			rows = append(rows, taskRows(done)...)
		}
	case agenda.ViewUpcoming:
		rows = sectionRows(agenda.Upcoming(tasks, now).Sections())
	case agenda.ViewCompleted:
		rows = sectionRows(agenda.CompletedByPeriod(tasks, now).Sections())
	case agenda.ViewGroups:
		rows = groupRows(tasks, groups)
	case agenda.ViewTrash:
		rows = trashRows(tasks, groups, now)
	}
	if len(rows) == 0 {
		rows = append(rows, row{kind: rowEmpty, title: emptyText(view)})
	}
	return rows
}

func groupRows(tasks []api.Task, groups []api.Group) []row {
	active := make([]api.Group, 0, len(groups))
	for _, g := range groups {
		if !g.IsDeleted {
			active = append(active, g)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return strings.ToLower(active[i].Name) < strings.ToLower(active[j].Name)
	})

	var rows []row
	for _, g := range active {
		rows = append(rows, row{kind: rowGroup, group: g})
		rows = append(rows, taskRows(agenda.ByGroup(tasks, g.ID))...)
	}

	var ungrouped []api.Task
	for _, t := range agenda.Active(tasks) {
		if t.GroupID == nil {
			ungrouped = append(ungrouped, t)
		}
	}
	if len(ungrouped) > 0 {
		rows = append(rows, headingRow("No group"))
		rows = append(rows, taskRows(ungrouped)...)
	}
	return rows
}

func trashRows(tasks []api.Task, groups []api.Group, now time.Time) []row {
	buckets := agenda.Trash(tasks, now)
	var rows []row
	add := func(title string, entries []agenda.TrashEntry) {
		if len(entries) == 0 {
			return
		}
		rows = append(rows, headingRow(title))
		for _, e := range entries {
			rows = append(rows, row{kind: rowTask, task: e.Task, daysLeft: e.DaysLeft, trashed: true})
		}
	}
	add("Purged within a week", buckets.Critical)
	add("Purged within two weeks", buckets.Warning)
	add("Purged later", buckets.Safe)

	var trashed []row
	for _, g := range groups {
		if g.IsDeleted {
			trashed = append(trashed, row{
				kind:     rowGroup,
				group:    g,
				daysLeft: agenda.DaysLeft(g.ParsedDeletedAt(), now),
				trashed:  true,
			})
		}
	}
	if len(trashed) > 0 {
		sort.SliceStable(trashed, func(i, j int) bool { return trashed[i].daysLeft < trashed[j].daysLeft })
		rows = append(rows, headingRow("Groups"))
		rows = append(rows, trashed...)
	}
	return rows
}

func emptyText(view agenda.View) string {
	switch view {
	case agenda.ViewToday:
		return "Nothing due today. Press a to add a task."
	case agenda.ViewUpcoming:
		return "No upcoming tasks."
	case agenda.ViewCompleted:
		return "No completed tasks yet."
	case agenda.ViewGroups:
		return "No groups. Press A to create one."
	case agenda.ViewTrash:
		return "Trash is empty."
	}
	return ""
}

// firstSelectable returns the index of the first selectable row at or after
// from, scanning in direction step. It returns -1 when there is none.
func firstSelectable(rows []row, from, step int) int {
	for i := from; i >= 0 && i < len(rows); i += step {
		if rows[i].selectable() {
			return i
		}
	}
	return -1
}
