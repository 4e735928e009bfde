// Package ui provides the climdo terminal dashboard.
//
// # Architecture Overview
//
// The dashboard is a Bubble Tea program over the task and group stores. The
// stores are the source of truth; the Model re-reads their snapshots on a
// one-second tick and after every action, then lays the tasks out with the
// agenda package. The background poller in package app keeps the stores
// themselves in sync with the server.
//
// # Package Structure
//
//   - app.go: Model, Update loop, key handling and store actions
//   - rows.go: list layout per view (headings, task and group rows)
//   - render.go: header, tabs, list, notice bar and footer
//   - modal.go: add-task/add-group forms and the purge confirmation
//   - keys.go, help.go: key bindings and the help overlay
//   - theme.go, style_helpers.go: color themes and background helpers
//
// # Views
//
//   - Today: open tasks due today or overdue, plus what was finished today
//   - Upcoming: this week, next week, later
//   - Completed: today, past 7 days, past 30 days, older
//   - Groups: each group with its tasks, then ungrouped tasks
//   - Trash: deleted tasks and groups by days left before purge
//
// # Actions and Errors
//
// Store operations run as tea.Cmds. Each command's result carries the
// command itself, so when a store reports an error the notice bar offers R
// to re-run exactly that operation; esc dismisses it. A session that can no
// longer be refreshed replaces the screen with a log-in-again notice.
//
// # Key Bindings
//
//   - tab/shift+tab, 1-5: switch views
//   - j/k, g/G: move the selection
//   - space: toggle complete
//   - a/A: add task/group
//   - d: move to trash; r: restore; X: delete forever
//   - R: retry the failed action or refresh
//   - T: cycle theme (saved to prefs)
//   - ?: help; q or ctrl+c: quit
package ui
