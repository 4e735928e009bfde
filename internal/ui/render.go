package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/climdo/internal/agenda"
	"github.com/five82/climdo/internal/api"
)

// Fixed chrome: header, tab bar and footer lines.
const chromeLines = 3

var viewTitles = map[agenda.View]string{
	agenda.ViewToday:     "Today",
	agenda.ViewUpcoming:  "Upcoming",
	agenda.ViewCompleted: "Completed",
	agenda.ViewGroups:    "Groups",
	agenda.ViewTrash:     "Trash",
}

func (r row) label() string {
	if r.kind == rowGroup {
		return r.group.Name
	}
	if r.kind == rowTask {
		return r.task.Text
	}
	return r.title
}

// listHeight is the number of lines left for the list pane.
func (m Model) listHeight() int {
	h := m.height - chromeLines
	if m.notice() != nil {
		h--
	}
	return max(h, 1)
}

func (m *Model) layoutList() {
	m.list.Width = m.width
	m.list.Height = m.listHeight()
	m.scrollToSelection()
}

// scrollToSelection keeps the selected row inside the viewport.
func (m *Model) scrollToSelection() {
	if m.list.Height <= 0 {
		return
	}
	switch {
	case m.selected < m.list.YOffset:
		m.list.SetYOffset(m.selected)
	case m.selected >= m.list.YOffset+m.list.Height:
		m.list.SetYOffset(m.selected - m.list.Height + 1)
	}
}

func (m Model) renderMain() string {
	m.layoutList()
	m.list.SetContent(m.renderRows())
	m.scrollToSelection()

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n")
	if n := m.renderNotice(); n != "" {
		b.WriteString(n)
		b.WriteString("\n")
	}
	b.WriteString(m.list.View())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderHeader() string {
	styles := m.theme.Styles()
	bg := NewBgStyle(m.theme.Surface)

	left := bg.Render("climdo", styles.AccentText.Bold(true))
	open := len(agenda.Today(m.taskSnap.Items, m.now()))
	left += bg.Spaces(2) + bg.Render(fmt.Sprintf("%d due today", open), styles.MutedText)

	var status string
	switch {
	case m.busy > 0 || m.taskSnap.Loading || m.groupSnap.Loading:
		status = bg.Render("syncing", styles.WarningText)
	case m.taskSnap.IsOffline() || m.groupSnap.IsOffline():
		status = bg.Render("offline", styles.DangerText)
	case !m.taskSnap.LastUpdated.IsZero():
		age := humanizeDuration(m.now().Sub(m.taskSnap.LastUpdated))
		status = bg.Render("updated "+age+" ago", styles.FaintText)
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(status)
	return bg.FillLine(left+bg.Spaces(max(gap, 1))+status, m.width)
}

func (m Model) renderTabs() string {
	styles := m.theme.Styles()
	parts := make([]string, 0, len(agenda.Views))
	for i, v := range agenda.Views {
		label := fmt.Sprintf("%d %s", i+1, viewTitles[v])
		if v == m.currentView {
			parts = append(parts, styles.ActiveTab.Render(label))
		} else {
			parts = append(parts, styles.Tab.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m Model) renderNotice() string {
	err := m.notice()
	if err == nil {
		return ""
	}
	styles := m.theme.Styles()
	hint := "esc dismiss"
	if err.Retryable() {
		hint = "R retry · " + hint
	}
	text := fmt.Sprintf("✗ %s: %s", err.Title, err.Description)
	return styles.DangerText.Render(truncate(text, m.width-len(hint)-3)) + "  " + styles.FaintText.Render(hint)
}

func (m Model) renderFooter() string {
	styles := m.theme.Styles()
	bg := NewBgStyle(m.theme.Surface)

	if m.flash != "" {
		return bg.FillLine(bg.Render("✓ "+m.flash, styles.SuccessText), m.width)
	}
	parts := make([]string, 0, len(m.keys.ShortHelp()))
	for _, binding := range m.keys.ShortHelp() {
		parts = append(parts, helpEntry(binding))
	}
	return bg.FillLine(bg.Render(strings.Join(parts, "  "), styles.MutedText), m.width)
}

func helpEntry(b key.Binding) string {
	h := b.Help()
	return h.Key + " " + strings.ToLower(h.Desc)
}

func (m Model) renderRows() string {
	groupNames := make(map[int64]string, len(m.groupSnap.Items))
	for _, g := range m.groupSnap.Items {
		groupNames[g.ID] = g.Name
	}

	lines := make([]string, len(m.rows))
	for i, r := range m.rows {
		lines[i] = m.renderRow(r, i == m.selected, groupNames)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderRow(r row, selected bool, groupNames map[int64]string) string {
	styles := m.theme.Styles()
	switch r.kind {
	case rowHeading:
		return styles.Heading.Render(r.title)
	case rowEmpty:
		return styles.FaintText.Render("  " + r.title)
	}

	var mark, badge string
	switch {
	case r.kind == rowGroup:
		mark = "▸"
		badge = m.groupBadge(r)
	case r.trashed:
		mark = "·"
		badge = m.trashBadge(r.daysLeft)
	case r.task.IsCompleted:
		mark = "✓"
		badge = m.dueBadge(r.task)
	default:
		mark = "○"
		badge = m.dueBadge(r.task)
	}

	if r.kind == rowTask && r.task.GroupID != nil && m.currentView != agenda.ViewGroups {
		if name := groupNames[*r.task.GroupID]; name != "" {
			badge += " " + styles.FaintText.Render("#"+name)
		}
	}

	room := m.width - lipgloss.Width(badge) - 6
	text := padRight(truncate(r.label(), room), max(room, 0))
	line := fmt.Sprintf("  %s %s %s", mark, text, badge)
	if selected {
		return styles.Selected.Width(m.width).Render(line)
	}
	if r.kind == rowTask && r.task.IsCompleted {
		return styles.MutedText.Render(line)
	}
	return styles.Text.Render(line)
}

func (m Model) dueBadge(t api.Task) string {
	styles := m.theme.Styles()
	now := m.now()
	if t.IsCompleted {
		if done := t.ParsedCompletedAt(); !done.IsZero() {
			return styles.BadgeStyle("done").Render("done " + relativeDay(done, now))
		}
		return styles.BadgeStyle("done").Render("done")
	}
	due := t.ParsedDueAt()
	if due.IsZero() {
		return ""
	}
	label := relativeDay(due, now)
	switch {
	case due.Before(now) && label != "today":
		return styles.BadgeStyle("overdue").Render("overdue " + label)
	case label == "today":
		return styles.BadgeStyle("today").Render("today")
	default:
		return styles.BadgeStyle("due").Render(label)
	}
}

func (m Model) trashBadge(daysLeft int) string {
	styles := m.theme.Styles()
	name := "safe"
	switch {
	case daysLeft <= 7:
		name = "critical"
	case daysLeft <= 14:
		name = "warning"
	}
	return styles.BadgeStyle(name).Render(fmt.Sprintf("%dd left", daysLeft))
}

func (m Model) groupBadge(r row) string {
	if r.trashed {
		return m.trashBadge(r.daysLeft)
	}
	n := len(agenda.ByGroup(m.taskSnap.Items, r.group.ID))
	label := fmt.Sprintf("%d tasks", n)
	if n == 1 {
		label = "1 task"
	}
	return m.theme.Styles().BadgeStyle("group").Render(label)
}

func (m Model) renderExpired() string {
	styles := m.theme.Styles()
	body := styles.DangerText.Render("Session Expired") + "\n\n" +
		styles.Text.Render("Your session has expired. Please log in again.") + "\n\n" +
		styles.MutedText.Render("Run `climdo login`, then start the dashboard again.") + "\n\n" +
		styles.FaintText.Render("q quit")
	return placeModal(m.theme, m.width, m.height, body)
}
