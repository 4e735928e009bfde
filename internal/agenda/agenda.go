// Package agenda derives the dashboard views (today, upcoming, completed,
// trash) from a task listing. Every function is pure; callers pass the
// clock.
package agenda

import (
	"sort"
	"time"

	"github.com/five82/climdo/internal/api"
)

// RetentionDays is how long the backend keeps a trashed task.
const RetentionDays = 30

// View names a dashboard listing.
type View string

const (
	ViewToday     View = "today"
	ViewUpcoming  View = "upcoming"
	ViewCompleted View = "completed"
	ViewGroups    View = "groups"
	ViewTrash     View = "trash"
	ViewAll       View = "all"
)

// Views lists the dashboard tabs in display order.
var Views = []View{ViewToday, ViewUpcoming, ViewCompleted, ViewGroups, ViewTrash}

// ParseView maps a name to a View. Unknown names report false.
func ParseView(name string) (View, bool) {
	switch v := View(name); v {
	case ViewToday, ViewUpcoming, ViewCompleted, ViewGroups, ViewTrash, ViewAll:
		return v, true
	}
	return "", false
}

// Section is a titled run of tasks inside a view.
type Section struct {
	Title string
	Tasks []api.Task
}

// Active returns the tasks not in the trash.
func Active(tasks []api.Task) []api.Task {
	out := make([]api.Task, 0, len(tasks))
	for _, t := range tasks {
		if !t.IsDeleted {
			out = append(out, t)
		}
	}
	return out
}

// ByGroup returns the active tasks assigned to groupID.
func ByGroup(tasks []api.Task, groupID int64) []api.Task {
	var out []api.Task
	for _, t := range tasks {
		if !t.IsDeleted && t.InGroup(groupID) {
			out = append(out, t)
		}
	}
	return out
}

// Today returns the open tasks due by the end of today, overdue ones
// included, plus undated tasks created today. Earliest due first.
func Today(tasks []api.Task, now time.Time) []api.Task {
	start := startOfDay(now)
	end := start.AddDate(0, 0, 1)
	var out []api.Task
	for _, t := range tasks {
		if t.IsDeleted || t.IsCompleted {
			continue
		}
		due := localTime(t.ParsedDueAt(), now)
		if !due.IsZero() {
			if due.Before(end) {
				out = append(out, t)
			}
			continue
		}
		if created := localTime(t.ParsedCreatedAt(), now); !created.Before(start) && created.Before(end) {
			out = append(out, t)
		}
	}
	sortByDue(out)
	return out
}

// CompletedToday returns the tasks completed since midnight.
func CompletedToday(tasks []api.Task, now time.Time) []api.Task {
	start := startOfDay(now)
	var out []api.Task
	for _, t := range tasks {
		if t.IsDeleted || !t.IsCompleted {
			continue
		}
		if done := localTime(t.ParsedCompletedAt(), now); !done.Before(start) {
			out = append(out, t)
		}
	}
	return out
}

// UpcomingBuckets splits future tasks by week.
type UpcomingBuckets struct {
	ThisWeek []api.Task
	NextWeek []api.Task
	Later    []api.Task
}

// Sections returns the non-empty buckets.
func (b UpcomingBuckets) Sections() []Section {
	return nonEmpty(
		Section{Title: "This week", Tasks: b.ThisWeek},
		Section{Title: "Next week", Tasks: b.NextWeek},
		Section{Title: "Later", Tasks: b.Later},
	)
}

// Upcoming returns open tasks due after now. This week runs through 23:59:59
// of the coming Sunday-based week end (today + 7 - weekday, Sunday = 0); next
// week is the seven days after that.
func Upcoming(tasks []api.Task, now time.Time) UpcomingBuckets {
	endOfThisWeek := startOfDay(now).AddDate(0, 0, 8-int(now.Weekday())).Add(-time.Nanosecond)
	endOfNextWeek := endOfThisWeek.AddDate(0, 0, 7)

	var upcoming []api.Task
	for _, t := range tasks {
		if t.IsDeleted || t.IsCompleted {
			continue
		}
		if due := t.ParsedDueAt(); !due.IsZero() && due.After(now) {
			upcoming = append(upcoming, t)
		}
	}
	sortByDue(upcoming)

	var b UpcomingBuckets
	for _, t := range upcoming {
		due := t.ParsedDueAt()
		switch {
		case !due.After(endOfThisWeek):
			b.ThisWeek = append(b.ThisWeek, t)
		case !due.After(endOfNextWeek):
			b.NextWeek = append(b.NextWeek, t)
		default:
			b.Later = append(b.Later, t)
		}
	}
	return b
}

// Completed returns completed, non-deleted tasks, most recently completed
// first.
func Completed(tasks []api.Task) []api.Task {
	var out []api.Task
	for _, t := range tasks {
		if t.IsCompleted && !t.IsDeleted {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ParsedCompletedAt().After(out[j].ParsedCompletedAt())
	})
	return out
}

// CompletedPeriods groups completed tasks by when they were finished.
type CompletedPeriods struct {
	Today     []api.Task
	ThisWeek  []api.Task
	ThisMonth []api.Task
	Older     []api.Task
}

// Sections returns the non-empty periods.
func (p CompletedPeriods) Sections() []Section {
	return nonEmpty(
		Section{Title: "Today", Tasks: p.Today},
		Section{Title: "Past 7 days", Tasks: p.ThisWeek},
		Section{Title: "Past 30 days", Tasks: p.ThisMonth},
		Section{Title: "Older", Tasks: p.Older},
	)
}

// CompletedByPeriod buckets Completed(tasks) into today, the previous 7 days,
// the previous 30 days and older. Tasks without a completion time count as
// older.
func CompletedByPeriod(tasks []api.Task, now time.Time) CompletedPeriods {
	today := startOfDay(now)
	week := today.AddDate(0, 0, -7)
	month := today.AddDate(0, 0, -30)

	var p CompletedPeriods
	for _, t := range Completed(tasks) {
		done := t.ParsedCompletedAt()
		switch {
		case done.IsZero() || done.Before(month):
			p.Older = append(p.Older, t)
		case !done.Before(today):
			p.Today = append(p.Today, t)
		case !done.Before(week):
			p.ThisWeek = append(p.ThisWeek, t)
		default:
			p.ThisMonth = append(p.ThisMonth, t)
		}
	}
	return p
}

// TrashEntry is a trashed task with its remaining retention.
type TrashEntry struct {
	Task     api.Task
	DaysLeft int
}

// TrashBuckets groups trashed tasks by urgency.
type TrashBuckets struct {
	Critical []TrashEntry // 7 days or fewer
	Warning  []TrashEntry // 8 to 14 days
	Safe     []TrashEntry // more than 14 days
}

// All returns every entry, most urgent first.
func (b TrashBuckets) All() []TrashEntry {
	out := make([]TrashEntry, 0, len(b.Critical)+len(b.Warning)+len(b.Safe))
	out = append(out, b.Critical...)
	out = append(out, b.Warning...)
	return append(out, b.Safe...)
}

// DaysLeft returns the whole days before a task deleted at deletedAt is
// purged. An unknown deletion time yields the full retention window.
func DaysLeft(deletedAt, now time.Time) int {
	if deletedAt.IsZero() {
		return RetentionDays
	}
	elapsed := int(now.Sub(deletedAt) / (24 * time.Hour))
	return max(0, RetentionDays-elapsed)
}

// Trash returns the soft-deleted tasks bucketed by days left, soonest purge
// first within each bucket.
func Trash(tasks []api.Task, now time.Time) TrashBuckets {
	var entries []TrashEntry
	for _, t := range tasks {
		if t.IsDeleted {
			entries = append(entries, TrashEntry{Task: t, DaysLeft: DaysLeft(t.ParsedDeletedAt(), now)})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].DaysLeft < entries[j].DaysLeft })

	var b TrashBuckets
	for _, e := range entries {
		switch {
		case e.DaysLeft <= 7:
			b.Critical = append(b.Critical, e)
		case e.DaysLeft <= 14:
			b.Warning = append(b.Warning, e)
		default:
			b.Safe = append(b.Safe, e)
		}
	}
	return b
}

func sortByDue(tasks []api.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		di, dj := tasks[i].ParsedDueAt(), tasks[j].ParsedDueAt()
		if di.IsZero() != dj.IsZero() {
			return !di.IsZero()
		}
		return di.Before(dj)
	})
}

func startOfDay(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

func localTime(t, now time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.In(now.Location())
}

func nonEmpty(sections ...Section) []Section {
	out := sections[:0]
	for _, s := range sections {
		if len(s.Tasks) > 0 {
			out = append(out, s)
		}
	}
	return out
}
