package ui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/climdo/internal/api"
)

// Modal is the interface for modal dialogs.
// The Update method returns the updated modal, a command, and a bool indicating if the modal should close.
type Modal interface {
	Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool)
	View(theme Theme, width, height int) string
}

// Messages emitted by modals when submitted.
type (
	submitTaskMsg  api.TaskDraft
	submitGroupMsg api.GroupDraft
	confirmMsg     struct{ action tea.Cmd }
)

// formModal is a titled stack of text inputs.
type formModal struct {
	title  string
	inputs []textinput.Model
	labels []string
	focus  int
	err    string
	submit func(values []string) (tea.Msg, string)
}

func newInput(placeholder string, limit int) textinput.Model {
	in := textinput.New()
	in.Placeholder = placeholder
	in.CharLimit = limit
	in.Width = 40
	return in
}

// newTaskModal asks for the text and an optional due date of a new task.
// groupID, when set, files the task under that group.
func newTaskModal(groupID *int64, defaultDue string) *formModal {
	text := newInput("What needs doing?", 500)
	due := newInput("YYYY-MM-DD (optional)", 10)
	due.SetValue(defaultDue)
	text.Focus()

	return &formModal{
		title:  "New task",
		inputs: []textinput.Model{text, due},
		labels: []string{"Task", "Due"},
		submit: func(values []string) (tea.Msg, string) {
			body := strings.TrimSpace(values[0])
			if body == "" {
				return nil, "Task text is required"
			}
			dueAt := strings.TrimSpace(values[1])
			if dueAt != "" {
				if _, err := time.Parse(time.DateOnly, dueAt); err != nil {
					return nil, "Due date must look like 2006-01-02"
				}
			}
			return submitTaskMsg(api.TaskDraft{Text: body, DueAt: dueAt, GroupID: groupID}), ""
		},
	}
}

// newGroupModal asks for the name and description of a new group.
func newGroupModal() *formModal {
	name := newInput("Group name", 100)
	desc := newInput("Description (optional)", 300)
	name.Focus()

	return &formModal{
		title:  "New group",
		inputs: []textinput.Model{name, desc},
		labels: []string{"Name", "About"},
		submit: func(values []string) (tea.Msg, string) {
			n := strings.TrimSpace(values[0])
			if n == "" {
				return nil, "Group name is required"
			}
			return submitGroupMsg(api.GroupDraft{Name: n, Description: strings.TrimSpace(values[1])}), ""
		},
	}
}

func (f *formModal) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, keys.Escape):
			return f, nil, true
		case key.Matches(msg, keys.NextField):
			f.inputs[f.focus].Blur()
			f.focus = (f.focus + 1) % len(f.inputs)
			return f, f.inputs[f.focus].Focus(), false
		case key.Matches(msg, keys.Confirm):
			values := make([]string, len(f.inputs))
			for i, in := range f.inputs {
				values[i] = in.Value()
			}
			out, problem := f.submit(values)
			if problem != "" {
				f.err = problem
				return f, nil, false
			}
			return f, func() tea.Msg { return out }, true
		}
	}

	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return f, cmd, false
}

func (f *formModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render(f.title))
	b.WriteString("\n\n")
	label := lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Warning)).Width(7)
	for i, in := range f.inputs {
		b.WriteString(label.Render(f.labels[i]))
		b.WriteString(in.View())
		b.WriteString("\n")
	}
	if f.err != "" {
		b.WriteString("\n")
		b.WriteString(styles.DangerText.Render(f.err))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render("enter save · tab next field · esc cancel"))
	return placeModal(theme, width, height, b.String())
}

// confirmModal asks a yes/no question before running action.
type confirmModal struct {
	question string
	action   tea.Cmd
}

func (c *confirmModal) Update(msg tea.Msg, _ keyMap) (Modal, tea.Cmd, bool) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return c, nil, false
	}
	switch km.String() {
	case "y", "Y", "enter":
		action := c.action
		return c, func() tea.Msg { return confirmMsg{action: action} }, true
	case "n", "esc", "q":
		return c, nil, true
	}
	return c, nil, false
}

func (c *confirmModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	body := styles.WarningText.Bold(true).Render(c.question) + "\n\n" +
		styles.FaintText.Render("y confirm · n cancel")
	return placeModal(theme, width, height, body)
}

func placeModal(theme Theme, width, height int, content string) string {
	modal := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(theme.BorderFocus)).
		Background(lipgloss.Color(theme.FocusBg)).
		Padding(1, 2).
		Width(56)
	return lipgloss.Place(
		width,
		height,
		lipgloss.Center,
		lipgloss.Center,
		modal.Render(content),
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(theme.Background)),
	)
}
