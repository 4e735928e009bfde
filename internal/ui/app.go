package ui

import (
	"context"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/climdo/internal/agenda"
	"github.com/five82/climdo/internal/api"
	"github.com/five82/climdo/internal/observability"
	"github.com/five82/climdo/internal/prefs"
	"github.com/five82/climdo/internal/state"
)

// Options configures the UI.
type Options struct {
	Context        context.Context
	Tasks          *state.TaskStore
	Groups         *state.GroupStore
	SessionExpired func() bool
	ThemeName      string
	DefaultView    string
	PrefsPath      string
	Logger         *slog.Logger
	RefreshEvery   time.Duration    // how often store snapshots are re-read; default 1s
	Now            func() time.Time // clock for the agenda views; default time.Now
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx            context.Context
	tasks          *state.TaskStore
	groups         *state.GroupStore
	sessionExpired func() bool
	prefsPath      string
	logger         *slog.Logger
	refreshEvery   time.Duration
	now            func() time.Time
	keys           keyMap

	// UI state
	theme       Theme
	currentView agenda.View
	defaultView agenda.View
	width       int
	height      int
	ready       bool

	// Data state
	taskSnap  state.Snapshot[api.Task]
	groupSnap state.Snapshot[api.Group]
	rows      []row
	selected  int
	list      viewport.Model

	// Action state
	busy    int     // store operations in flight
	flash   string  // last success message
	failed  tea.Cmd // operation re-run by retry
	expired bool

	showHelp bool
	modal    Modal
}

// New creates a new Bubble Tea model and takes a first snapshot of the
// stores.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	refreshEvery := opts.RefreshEvery
	if refreshEvery <= 0 {
		refreshEvery = time.Second
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	logger := opts.Logger
	if logger == nil {
		logger = observability.Discard()
	}

	expired := opts.SessionExpired
	if expired == nil {
		expired = func() bool { return false }
	}

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	view, ok := agenda.ParseView(opts.DefaultView)
	if !ok || view == agenda.ViewAll {
		view = agenda.ViewToday
	}

	m := Model{
		ctx:            ctx,
		tasks:          opts.Tasks,
		groups:         opts.Groups,
		sessionExpired: expired,
		prefsPath:      prefsPath,
		logger:         logger,
		refreshEvery:   refreshEvery,
		now:            now,
		keys:           DefaultKeyMap(),
		theme:          GetTheme(opts.ThemeName),
		currentView:    view,
		defaultView:    view,
		list:           viewport.New(0, 0),
	}
	m.syncSnapshots()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tea.EnterAltScreen, tickCmd(m.refreshEvery))
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layoutList()
		return m, nil

	case tickMsg:
		m.syncSnapshots()
		return m, tickCmd(m.refreshEvery)

	case actionDoneMsg:
		return m.handleActionDone(msg), nil

	case confirmMsg:
		cmd := m.start(msg.action)
		return m, cmd

	case submitTaskMsg:
		draft, tasks := api.TaskDraft(msg), m.tasks
		cmd := m.start(m.action("Task added", func(ctx context.Context) error {
			_, err := tasks.Create(ctx, draft)
			return err
		}))
		return m, cmd

	case submitGroupMsg:
		draft, groups := api.GroupDraft(msg), m.groups
		cmd := m.start(m.action("Group created", func(ctx context.Context) error {
			_, err := groups.Create(ctx, draft)
			return err
		}))
		return m, cmd
	}

	if m.modal != nil {
		return m.updateModal(msg)
	}
	if msg, ok := msg.(tea.KeyMsg); ok {
		return m.handleKey(msg)
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.expired {
		return m.renderExpired()
	}
	if m.showHelp {
		return m.renderHelp()
	}
	if m.modal != nil {
		return m.modal.View(m.theme, m.width, m.height)
	}
	return m.renderMain()
}

func (m Model) updateModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	modal, cmd, closed := m.modal.Update(msg, m.keys)
	if closed {
		m.modal = nil
	} else {
		m.modal = modal
	}
	return m, cmd
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}

	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}
	if m.expired {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
	case key.Matches(msg, m.keys.CycleTheme):
		m.cycleTheme()
	case key.Matches(msg, m.keys.Tab):
		m.switchView(1)
	case key.Matches(msg, m.keys.ShiftTab):
		m.switchView(-1)
	case key.Matches(msg, m.keys.ViewToday):
		m.setView(agenda.ViewToday)
	case key.Matches(msg, m.keys.ViewUpcoming):
		m.setView(agenda.ViewUpcoming)
	case key.Matches(msg, m.keys.ViewCompleted):
		m.setView(agenda.ViewCompleted)
	case key.Matches(msg, m.keys.ViewGroups):
		m.setView(agenda.ViewGroups)
	case key.Matches(msg, m.keys.ViewTrash):
		m.setView(agenda.ViewTrash)
	case key.Matches(msg, m.keys.Escape):
		m.dismissNotice()
	case key.Matches(msg, m.keys.Refresh):
		cmd := m.start(m.retryOrRefresh())
		return m, cmd
	case key.Matches(msg, m.keys.Up):
		m.moveSelection(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveSelection(1)
	case key.Matches(msg, m.keys.Top):
		m.selectIndex(firstSelectable(m.rows, 0, 1))
	case key.Matches(msg, m.keys.Bottom):
		m.selectIndex(firstSelectable(m.rows, len(m.rows)-1, -1))
	case key.Matches(msg, m.keys.AddTask):
		m.modal = newTaskModal(m.selectedGroupID(), m.defaultDue())
	case key.Matches(msg, m.keys.AddGroup):
		m.modal = newGroupModal()
	default:
		cmd := m.start(m.rowAction(msg))
		return m, cmd
	}
	return m, nil
}

// rowAction maps a key to an operation on the selected row.
func (m *Model) rowAction(msg tea.KeyMsg) tea.Cmd {
	r, ok := m.selectedRow()
	if !ok {
		return nil
	}
	switch {
	case key.Matches(msg, m.keys.Toggle):
		if r.kind != rowTask || r.trashed {
			return nil
		}
		tasks, id := m.tasks, r.task.ID
		label := "Task completed"
		if r.task.IsCompleted {
			label = "Task reopened"
		}
		return m.action(label, func(ctx context.Context) error {
			_, err := tasks.Toggle(ctx, id)
			return err
		})

	case key.Matches(msg, m.keys.Delete):
		if r.trashed {
			return nil
		}
		return m.trashAction(r)

	case key.Matches(msg, m.keys.Restore):
		if !r.trashed {
			return nil
		}
		return m.restoreAction(r)

	case key.Matches(msg, m.keys.Purge):
		if !r.trashed {
			return nil
		}
		m.modal = &confirmModal{
			question: "Delete \"" + truncate(r.label(), 30) + "\" forever?",
			action:   m.purgeAction(r),
		}
	}
	return nil
}

// trashAction soft-deletes the row's entity. The store drops deleted
// entities, so the listing is refetched to populate the trash.
func (m Model) trashAction(r row) tea.Cmd {
	tasks, groups := m.tasks, m.groups
	if r.kind == rowGroup {
		id := r.group.ID
		return m.action("Group moved to trash", func(ctx context.Context) error {
			if err := groups.Delete(ctx, id); err != nil {
				return err
			}
			return refetch(ctx, groups, tasks)
		})
	}
	id := r.task.ID
	return m.action("Task moved to trash", func(ctx context.Context) error {
		if err := tasks.Delete(ctx, id); err != nil {
			return err
		}
		return tasks.Fetch(ctx)
	})
}

func (m Model) restoreAction(r row) tea.Cmd {
	tasks, groups := m.tasks, m.groups
	if r.kind == rowGroup {
		id := r.group.ID
		return m.action("Group restored", func(ctx context.Context) error {
			if _, err := groups.Restore(ctx, id); err != nil {
				return err
			}
			return tasks.Fetch(ctx)
		})
	}
	id := r.task.ID
	return m.action("Task restored", func(ctx context.Context) error {
		_, err := tasks.Restore(ctx, id)
		return err
	})
}

func (m Model) purgeAction(r row) tea.Cmd {
	tasks, groups := m.tasks, m.groups
	if r.kind == rowGroup {
		id := r.group.ID
		return m.action("Group deleted forever", func(ctx context.Context) error {
			return groups.PermanentDelete(ctx, id)
		})
	}
	id := r.task.ID
	return m.action("Task deleted forever", func(ctx context.Context) error {
		return tasks.PermanentDelete(ctx, id)
	})
}

// retryOrRefresh re-runs the last failed operation, or refetches both
// stores when nothing failed.
func (m *Model) retryOrRefresh() tea.Cmd {
	if m.failed != nil {
		cmd := m.failed
		m.dismissNotice()
		return cmd
	}
	m.dismissNotice()
	tasks, groups := m.tasks, m.groups
	return m.action("Refreshed", func(ctx context.Context) error {
		return refetch(ctx, tasks, groups)
	})
}

func (m *Model) dismissNotice() {
	m.failed = nil
	if m.tasks != nil {
		m.tasks.ClearError()
	}
	if m.groups != nil {
		m.groups.ClearError()
	}
	m.syncSnapshots()
}

// action wraps a store operation in a command whose result message carries
// the command itself, so a failure can be retried verbatim.
func (m Model) action(label string, run func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	var cmd tea.Cmd
	cmd = func() tea.Msg {
		return actionDoneMsg{label: label, err: run(ctx), retry: cmd}
	}
	return cmd
}

// start marks an action in flight.
func (m *Model) start(cmd tea.Cmd) tea.Cmd {
	if cmd == nil {
		return nil
	}
	m.busy++
	m.flash = ""
	return cmd
}

func (m Model) handleActionDone(msg actionDoneMsg) Model {
	if m.busy > 0 {
		m.busy--
	}
	if msg.err != nil {
		m.failed = msg.retry
		m.flash = ""
		m.logger.Warn("dashboard action failed", "action", msg.label, "error", msg.err)
	} else {
		m.failed = nil
		m.flash = msg.label
	}
	m.syncSnapshots()
	return m
}

func (m *Model) cycleTheme() {
	m.theme = GetTheme(NextTheme(m.theme.Name))
	if m.prefsPath == "" {
		return
	}
	saved := prefs.Prefs{Theme: m.theme.Name, DefaultView: string(m.defaultView)}
	if err := prefs.Save(m.prefsPath, saved); err != nil {
		m.logger.Warn("save prefs", "error", err)
	}
}

func (m *Model) switchView(step int) {
	idx := 0
	for i, v := range agenda.Views {
		if v == m.currentView {
			idx = i
			break
		}
	}
	n := len(agenda.Views)
	m.setView(agenda.Views[((idx+step)%n+n)%n])
}

func (m *Model) setView(view agenda.View) {
	if view == m.currentView {
		return
	}
	m.currentView = view
	m.selected = 0
	m.list.SetYOffset(0)
	m.rebuildRows("")
}

// syncSnapshots re-reads both stores and rebuilds the list, keeping the
// selection on the same entity when it is still listed.
func (m *Model) syncSnapshots() {
	if m.tasks != nil {
		m.taskSnap = m.tasks.Snapshot()
	}
	if m.groups != nil {
		m.groupSnap = m.groups.Snapshot()
	}
	if m.sessionExpired() {
		m.expired = true
	}
	keep := ""
	if r, ok := m.selectedRow(); ok {
		keep = r.key()
	}
	m.rebuildRows(keep)
}

func (m *Model) rebuildRows(keep string) {
	m.rows = buildRows(m.currentView, m.taskSnap.Items, m.groupSnap.Items, m.now())
	if keep != "" {
		for i, r := range m.rows {
			if r.key() == keep {
				m.selectIndex(i)
				return
			}
		}
	}
	if m.selected >= len(m.rows) {
		m.selected = len(m.rows) - 1
	}
	idx := firstSelectable(m.rows, max(m.selected, 0), 1)
	if idx < 0 {
		idx = firstSelectable(m.rows, max(m.selected, 0), -1)
	}
	m.selectIndex(idx)
}

func (m *Model) moveSelection(step int) {
	if idx := firstSelectable(m.rows, m.selected+step, step); idx >= 0 {
		m.selectIndex(idx)
	}
}

func (m *Model) selectIndex(idx int) {
	if idx < 0 {
		m.selected = 0
		return
	}
	m.selected = idx
	m.scrollToSelection()
}

func (m Model) selectedRow() (row, bool) {
	if m.selected < 0 || m.selected >= len(m.rows) {
		return row{}, false
	}
	r := m.rows[m.selected]
	return r, r.selectable()
}

// selectedGroupID is the group a new task is filed under: the selected
// group, or the group of the selected task, in the Groups view.
func (m Model) selectedGroupID() *int64 {
	if m.currentView != agenda.ViewGroups {
		return nil
	}
	r, ok := m.selectedRow()
	if !ok {
		return nil
	}
	if r.kind == rowGroup {
		id := r.group.ID
		return &id
	}
	if r.task.GroupID != nil {
		id := *r.task.GroupID
		return &id
	}
	return nil
}

// defaultDue pre-fills today's date when adding from the Today view so the
// new task lands in the list being looked at.
func (m Model) defaultDue() string {
	if m.currentView == agenda.ViewToday {
		return m.now().Format(time.DateOnly)
	}
	return ""
}

// notice returns the error to show, preferring the task store's.
func (m Model) notice() *api.Error {
	if m.taskSnap.LastError != nil {
		return m.taskSnap.LastError
	}
	return m.groupSnap.LastError
}

type fetcher interface {
	Fetch(ctx context.Context) error
}

// refetch fetches every store, stopping at the first failure.
func refetch(ctx context.Context, stores ...fetcher) error {
	for _, s := range stores {
		if err := s.Fetch(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Messages

type tickMsg time.Time

type actionDoneMsg struct {
	label string
	err   error
	retry tea.Cmd
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Run starts the Bubble Tea program and blocks until the user quits.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
