// Package tui renders the calendar and task panes on top of the view
// controller and drives every remote call through bubbletea commands.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"caltodo/app"
	"caltodo/model"
	"caltodo/session"
	"caltodo/store"
)

type focusPane int

const (
	focusCalendar focusPane = iota
	focusTasks
)

func (f focusPane) String() string {
	if f == focusTasks {
		return "tasks"
	}
	return "calendar"
}

type uiMode int

const (
	modeSignIn uiMode = iota
	modeSignUp
	modeNormal
	modeAddTask
	modeEditTask
	modeConfirmDelete
)

type authField int

const (
	fieldEmail authField = iota
	fieldPassword
	fieldConfirm
)

// Messages produced by commands. Every remote call resolves into one
// of these on the event loop; nothing mutates the model from a
// goroutine.
type (
	signedInMsg struct {
		user model.User
		err  error
	}
	signedUpMsg struct {
		user model.User
		err  error
	}
	signedOutMsg struct{ err error }
	sessionMsg struct{ err error }
	refreshMsg  struct{ err error }
	mutationMsg struct {
		verb string
		err  error
	}
	changeMsg    struct{}
	authEventMsg struct{ event session.Event }
	clipboardMsg struct {
		count int
		err   error
	}
)

type Model struct {
	ctrl    *app.Controller
	gateway *session.Gateway

	mode    uiMode
	focus   focusPane
	pending int

	email    textinput.Model
	password textinput.Model
	confirm  textinput.Model
	field    authField

	input       textinput.Model
	inputDate   string
	inputPrio   model.Priority
	editID      string
	confirmID   string
	confirmText string

	dayCursor   time.Time
	taskCursor  int
	modalCursor int

	spin    spinner.Model
	changes chan struct{}
	events  chan session.Event
	unwatch func()

	status    string
	statusErr bool

	width  int
	height int
}

// NewModel wires the presentation layer to the controller and the
// session gateway. Stored preferences seed the theme, filter and
// visible month before the first frame.
func NewModel(ctrl *app.Controller, gateway *session.Gateway, prefs store.Preferences) *Model {
	email := textinput.New()
	email.Placeholder = "email"
	email.CharLimit = 254
	email.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.EchoMode = textinput.EchoPassword
	password.CharLimit = 128

	confirm := textinput.New()
	confirm.Placeholder = "confirm password"
	confirm.EchoMode = textinput.EchoPassword
	confirm.CharLimit = 128

	input := textinput.New()
	input.Placeholder = "task"
	input.CharLimit = 500

	ctrl.SetDark(prefs.Theme == store.ThemeDark)
	if prefs.Filter.Valid() {
		_ = ctrl.SetFilter(prefs.Filter)
	}
	if month, err := time.Parse("2006-01", prefs.VisibleMonth); err == nil {
		ctrl.SetVisibleMonth(month)
	}

	m := &Model{
		ctrl:      ctrl,
		gateway:   gateway,
		mode:      modeSignIn,
		email:     email,
		password:  password,
		confirm:   confirm,
		input:     input,
		inputPrio: model.PriorityMedium,
		dayCursor: time.Now(),
		spin:      spinner.New(spinner.WithSpinner(spinner.Dot)),
		changes:   make(chan struct{}, 1),
		events:    make(chan session.Event, 4),
		status:    "Sign in to load your calendar",
	}
	m.unwatch = gateway.Watch(func(ev session.Event, _ model.User) {
		select {
		case m.events <- ev:
		default:
		}
	})
	return m
}

// Preferences snapshots the persistable view state for saving on exit.
func (m *Model) Preferences() store.Preferences {
	theme := store.ThemeLight
	if m.ctrl.Dark() {
		theme = store.ThemeDark
	}
	return store.Preferences{
		Theme:        theme,
		Filter:       m.ctrl.Filter(),
		VisibleMonth: m.ctrl.VisibleMonth().Format("2006-01"),
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForAuthEvent())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		if m.pending == 0 {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case signedInMsg:
		return m.onSignedIn(msg)
	case signedUpMsg:
		return m.onSignedUp(msg)
	case signedOutMsg:
		m.pending--
		// Local state is already cleared; the watch event moves the
		// view back to sign-in.
		if msg.err != nil {
			m.setStatus("Signed out locally; backend sign-out failed: "+msg.err.Error(), true)
		}
		return m, nil
	case sessionMsg:
		return m.onSessionReady(msg)
	case refreshMsg:
		m.pending--
		if msg.err != nil {
			m.setStatus("Refresh failed: "+msg.err.Error(), true)
		}
		m.clampCursors()
		return m, nil
	case mutationMsg:
		m.pending--
		if msg.err != nil {
			m.setStatus("Could not "+msg.verb+": "+msg.err.Error(), true)
		} else {
			m.setStatus(strings.ToUpper(msg.verb[:1])+msg.verb[1:]+" saved", false)
		}
		m.clampCursors()
		return m, nil
	case changeMsg:
		// Another device touched the table; refetch and keep listening.
		return m, tea.Batch(m.refreshCmd(), m.waitForChange())
	case authEventMsg:
		return m.onAuthEvent(msg)
	case clipboardMsg:
		if msg.err != nil {
			m.setStatus("Clipboard copy failed: "+msg.err.Error(), true)
		} else {
			m.setStatus(fmt.Sprintf("Copied %d task(s) to the clipboard", msg.count), false)
		}
		return m, nil

	case tea.KeyMsg:
		return m.onKey(msg)
	}
	return m, nil
}

func (m *Model) onKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.teardown()
		return m, tea.Quit
	}
	switch m.mode {
	case modeSignIn, modeSignUp:
		return m.updateAuthMode(msg)
	case modeAddTask, modeEditTask:
		return m.updateInputMode(msg)
	case modeConfirmDelete:
		return m.updateConfirmMode(msg)
	default:
		return m.updateNormalMode(msg)
	}
}

func (m *Model) updateAuthMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab", "down":
		m.cycleAuthField(1)
		return m, nil
	case "shift+tab", "up":
		m.cycleAuthField(-1)
		return m, nil
	case "enter":
		return m.submitAuth()
	case "ctrl+s":
		if m.mode == modeSignIn {
			m.mode = modeSignUp
			m.setStatus("Create an account", false)
		} else {
			m.mode = modeSignIn
			m.setStatus("Sign in to load your calendar", false)
		}
		m.confirm.SetValue("")
		m.field = fieldEmail
		m.focusAuthField()
		return m, nil
	case "esc":
		m.teardown()
		return m, tea.Quit
	}

	var cmd tea.Cmd
	switch m.field {
	case fieldEmail:
		m.email, cmd = m.email.Update(msg)
	case fieldPassword:
		m.password, cmd = m.password.Update(msg)
	case fieldConfirm:
		m.confirm, cmd = m.confirm.Update(msg)
	}
	return m, cmd
}

func (m *Model) cycleAuthField(delta int) {
	fields := 2
	if m.mode == modeSignUp {
		fields = 3
	}
	m.field = authField((int(m.field) + delta + fields) % fields)
	m.focusAuthField()
}

func (m *Model) focusAuthField() {
	m.email.Blur()
	m.password.Blur()
	m.confirm.Blur()
	switch m.field {
	case fieldEmail:
		m.email.Focus()
	case fieldPassword:
		m.password.Focus()
	case fieldConfirm:
		m.confirm.Focus()
	}
}

func (m *Model) submitAuth() (tea.Model, tea.Cmd) {
	email := strings.TrimSpace(m.email.Value())
	password := m.password.Value()

	// Local validation gives instant feedback; the gateway repeats it
	// before any remote call.
	if err := session.ValidateCredentials(email, password); err != nil {
		m.setStatus(err.Error(), true)
		return m, nil
	}
	if m.mode == modeSignUp && password != m.confirm.Value() {
		m.setStatus(session.ErrPasswordMismatch.Error(), true)
		return m, nil
	}

	m.pending++
	if m.mode == modeSignUp {
		confirm := m.confirm.Value()
		m.setStatus("Creating account...", false)
		return m, tea.Batch(m.spin.Tick, func() tea.Msg {
			u, err := m.gateway.SignUp(context.Background(), email, password, confirm)
			return signedUpMsg{user: u, err: err}
		})
	}
	m.setStatus("Signing in...", false)
	return m, tea.Batch(m.spin.Tick, func() tea.Msg {
		u, err := m.gateway.SignIn(context.Background(), email, password)
		return signedInMsg{user: u, err: err}
	})
}

func (m *Model) onSignedIn(msg signedInMsg) (tea.Model, tea.Cmd) {
	m.pending--
	if msg.err != nil {
		m.setStatus(msg.err.Error(), true)
		return m, nil
	}

	m.pending++
	userID := msg.user.ID
	return m, tea.Batch(m.spin.Tick, func() tea.Msg {
		if err := m.ctrl.Initialize(context.Background(), userID); err != nil {
			return sessionMsg{err: err}
		}
		err := m.ctrl.Subscribe(context.Background(), func() {
			select {
			case m.changes <- struct{}{}:
			default:
			}
		})
		return sessionMsg{err: err}
	})
}

func (m *Model) onSignedUp(msg signedUpMsg) (tea.Model, tea.Cmd) {
	m.pending--
	if msg.err != nil {
		m.setStatus(msg.err.Error(), true)
		return m, nil
	}
	// No session yet; the account needs its confirmation email.
	m.mode = modeSignIn
	m.field = fieldEmail
	m.focusAuthField()
	m.confirm.SetValue("")
	m.setStatus("Account created. Confirm your email, then sign in.", false)
	return m, nil
}

func (m *Model) onSessionReady(msg sessionMsg) (tea.Model, tea.Cmd) {
	m.pending--
	if msg.err != nil {
		m.setStatus("Could not load tasks: "+msg.err.Error(), true)
		return m, nil
	}
	m.mode = modeNormal
	m.focus = focusCalendar
	m.dayCursor = time.Now()
	m.password.SetValue("")
	m.confirm.SetValue("")
	if u, ok := m.gateway.User(); ok {
		m.setStatus("Signed in as "+u.Email, false)
	}
	return m, m.waitForChange()
}

func (m *Model) onAuthEvent(msg authEventMsg) (tea.Model, tea.Cmd) {
	if msg.event == session.EventSignedOut {
		m.ctrl.Teardown()
		m.mode = modeSignIn
		m.field = fieldEmail
		m.focusAuthField()
		m.setStatus("Signed out", false)
	}
	return m, m.waitForAuthEvent()
}

func (m *Model) updateNormalMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.ctrl.ModalOpen() {
		return m.updateModalKeys(msg)
	}

	switch msg.String() {
	case "q":
		m.teardown()
		return m, tea.Quit
	case "tab":
		if m.focus == focusCalendar {
			m.focus = focusTasks
		} else {
			m.focus = focusCalendar
		}
		m.setStatus("Focus on "+m.focus.String(), false)
	case "left", "h":
		if m.focus == focusCalendar {
			m.moveDayCursor(-1)
		}
	case "right", "l":
		if m.focus == focusCalendar {
			m.moveDayCursor(1)
		}
	case "up", "k":
		if m.focus == focusCalendar {
			m.moveDayCursor(-7)
		} else {
			m.moveTaskCursor(-1)
		}
	case "down", "j":
		if m.focus == focusCalendar {
			m.moveDayCursor(7)
		} else {
			m.moveTaskCursor(1)
		}
	case "n", "pgdown":
		m.ctrl.NextMonth()
		m.snapCursorToMonth()
	case "p", "pgup":
		m.ctrl.PrevMonth()
		m.snapCursorToMonth()
	case "g":
		m.ctrl.SetVisibleMonth(time.Now())
		m.dayCursor = time.Now()
	case "enter":
		if m.focus == focusCalendar {
			date := model.FormatDate(m.dayCursor)
			if err := m.ctrl.OpenModal(date); err == nil {
				m.modalCursor = 0
			}
		}
	case "a":
		m.startAdd(model.FormatDate(m.dayCursor))
	case "e":
		if m.focus == focusTasks {
			m.startEdit(false)
		}
	case "x", " ":
		if m.focus == focusTasks {
			return m, m.toggleSelected(false)
		}
	case "d":
		if m.focus == focusTasks {
			m.startDeleteConfirm(false)
		}
	case "f":
		m.cycleFilter()
	case "t":
		if m.ctrl.ToggleDark() {
			m.setStatus("Dark theme", false)
		} else {
			m.setStatus("Light theme", false)
		}
	case "y":
		return m, m.copyDay(model.FormatDate(m.dayCursor))
	case "r":
		return m, m.refreshCmd()
	case "L":
		m.pending++
		return m, tea.Batch(m.spin.Tick, func() tea.Msg {
			return signedOutMsg{err: m.gateway.SignOut(context.Background())}
		})
	}
	return m, nil
}

func (m *Model) updateModalKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q", "enter":
		m.ctrl.CloseModal()
	case "up", "k":
		m.modalCursor--
		m.clampCursors()
	case "down", "j":
		m.modalCursor++
		m.clampCursors()
	case "a":
		if date, ok := m.ctrl.SelectedDate(); ok {
			m.startAdd(date)
		}
	case "e":
		m.startEdit(true)
	case "x", " ":
		return m, m.toggleSelected(true)
	case "d":
		m.startDeleteConfirm(true)
	case "y":
		if date, ok := m.ctrl.SelectedDate(); ok {
			return m, m.copyDay(date)
		}
	}
	return m, nil
}

func (m *Model) updateInputMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeNormal
		m.input.Blur()
		m.setStatus("Cancelled", false)
		return m, nil
	case "ctrl+p":
		m.inputPrio = nextPriority(m.inputPrio)
		return m, nil
	case "enter":
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			m.setStatus(app.ErrInvalidTask.Error(), true)
			return m, nil
		}
		editing := m.mode == modeEditTask
		m.mode = modeNormal
		m.input.Blur()
		m.pending++
		if editing {
			id := m.editID
			return m, tea.Batch(m.spin.Tick, func() tea.Msg {
				_, err := m.ctrl.Edit(context.Background(), id, text)
				return mutationMsg{verb: "edit", err: err}
			})
		}
		date := m.inputDate
		prio := m.inputPrio
		return m, tea.Batch(m.spin.Tick, func() tea.Msg {
			_, err := m.ctrl.Add(context.Background(), text, prio, date)
			return mutationMsg{verb: "add", err: err}
		})
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) updateConfirmMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		id := m.confirmID
		m.mode = modeNormal
		m.pending++
		return m, tea.Batch(m.spin.Tick, func() tea.Msg {
			return mutationMsg{verb: "delete", err: m.ctrl.Delete(context.Background(), id)}
		})
	case "n", "N", "esc":
		m.mode = modeNormal
		m.setStatus("Kept", false)
	}
	return m, nil
}

func (m *Model) startAdd(date string) {
	m.mode = modeAddTask
	m.inputDate = date
	m.inputPrio = model.PriorityMedium
	m.input.SetValue("")
	m.input.Focus()
	m.setStatus("New task for "+date+" (Ctrl+P cycles priority)", false)
}

func (m *Model) startEdit(fromModal bool) {
	task, ok := m.selectedTask(fromModal)
	if !ok {
		return
	}
	m.mode = modeEditTask
	m.editID = task.ID
	m.input.SetValue(task.Text)
	m.input.Focus()
}

func (m *Model) startDeleteConfirm(fromModal bool) {
	task, ok := m.selectedTask(fromModal)
	if !ok {
		return
	}
	m.mode = modeConfirmDelete
	m.confirmID = task.ID
	m.confirmText = task.Text
}

func (m *Model) toggleSelected(fromModal bool) tea.Cmd {
	task, ok := m.selectedTask(fromModal)
	if !ok {
		return nil
	}
	m.pending++
	return tea.Batch(m.spin.Tick, func() tea.Msg {
		_, err := m.ctrl.Toggle(context.Background(), task.ID)
		return mutationMsg{verb: "update", err: err}
	})
}

func (m *Model) selectedTask(fromModal bool) (model.Task, bool) {
	if fromModal {
		date, ok := m.ctrl.SelectedDate()
		if !ok {
			return model.Task{}, false
		}
		tasks := m.ctrl.TasksOn(date)
		if m.modalCursor < 0 || m.modalCursor >= len(tasks) {
			return model.Task{}, false
		}
		return tasks[m.modalCursor], true
	}
	tasks := m.ctrl.FilteredTasks()
	if m.taskCursor < 0 || m.taskCursor >= len(tasks) {
		return model.Task{}, false
	}
	return tasks[m.taskCursor], true
}

func (m *Model) cycleFilter() {
	order := []model.Filter{
		model.FilterAll, model.FilterActive, model.FilterCompleted,
		model.FilterHigh, model.FilterMedium, model.FilterLow,
	}
	current := m.ctrl.Filter()
	for i, f := range order {
		if f == current {
			next := order[(i+1)%len(order)]
			_ = m.ctrl.SetFilter(next)
			m.taskCursor = 0
			m.setStatus("Filter: "+string(next), false)
			return
		}
	}
	_ = m.ctrl.SetFilter(model.FilterAll)
}

func (m *Model) moveDayCursor(days int) {
	m.dayCursor = m.dayCursor.AddDate(0, 0, days)
	visible := m.ctrl.VisibleMonth()
	if m.dayCursor.Month() != visible.Month() || m.dayCursor.Year() != visible.Year() {
		m.ctrl.SetVisibleMonth(m.dayCursor)
	}
}

func (m *Model) moveTaskCursor(delta int) {
	m.taskCursor += delta
	m.clampCursors()
}

// snapCursorToMonth keeps the day cursor inside the visible month
// after month navigation, preserving the day-of-month when it exists.
func (m *Model) snapCursorToMonth() {
	visible := m.ctrl.VisibleMonth()
	day := m.dayCursor.Day()
	last := visible.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	m.dayCursor = time.Date(visible.Year(), visible.Month(), day, 0, 0, 0, 0, time.Local)
}

func (m *Model) clampCursors() {
	if n := len(m.ctrl.FilteredTasks()); m.taskCursor >= n {
		m.taskCursor = n - 1
	}
	if m.taskCursor < 0 {
		m.taskCursor = 0
	}
	if date, ok := m.ctrl.SelectedDate(); ok {
		if n := len(m.ctrl.TasksOn(date)); m.modalCursor >= n {
			m.modalCursor = n - 1
		}
	}
	if m.modalCursor < 0 {
		m.modalCursor = 0
	}
}

func (m *Model) copyDay(date string) tea.Cmd {
	tasks := m.ctrl.TasksOn(date)
	if len(tasks) == 0 {
		m.setStatus("Nothing to copy on "+date, false)
		return nil
	}
	text := formatDayExport(date, tasks)
	count := len(tasks)
	return func() tea.Msg {
		return clipboardMsg{count: count, err: clipboard.WriteAll(text)}
	}
}

func (m *Model) refreshCmd() tea.Cmd {
	m.pending++
	return tea.Batch(m.spin.Tick, func() tea.Msg {
		return refreshMsg{err: m.ctrl.Refresh(context.Background())}
	})
}

func (m *Model) waitForChange() tea.Cmd {
	return func() tea.Msg {
		<-m.changes
		return changeMsg{}
	}
}

func (m *Model) waitForAuthEvent() tea.Cmd {
	return func() tea.Msg {
		return authEventMsg{event: <-m.events}
	}
}

func (m *Model) teardown() {
	m.ctrl.Teardown()
	if m.unwatch != nil {
		m.unwatch()
		m.unwatch = nil
	}
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
}

func nextPriority(p model.Priority) model.Priority {
	switch p {
	case model.PriorityLow:
		return model.PriorityMedium
	case model.PriorityMedium:
		return model.PriorityHigh
	default:
		return model.PriorityLow
	}
}

func formatDayExport(date string, tasks []model.Task) string {
	var b strings.Builder
	b.WriteString(date + "\n")
	for _, t := range tasks {
		mark := "[ ]"
		if t.Completed {
			mark = "[x]"
		}
		fmt.Fprintf(&b, "%s %s (%s)\n", mark, t.Text, t.Priority)
	}
	return b.String()
}
