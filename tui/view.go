package tui

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"caltodo/calendar"
	"caltodo/model"
)

// theme bundles the styles for one of the two color schemes. Both are
// built per frame so a toggle takes effect immediately.
type theme struct {
	title    lipgloss.Style
	dim      lipgloss.Style
	frame    lipgloss.Style
	selected lipgloss.Style
	today    lipgloss.Style
	outMonth lipgloss.Style
	badge    lipgloss.Style
	done     lipgloss.Style
	statusOK lipgloss.Style
	statusNG lipgloss.Style
	prompt   lipgloss.Style
}

func newTheme(dark bool) theme {
	if dark {
		return theme{
			title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")),
			dim:      lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
			frame:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")),
			selected: lipgloss.NewStyle().Reverse(true),
			today:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
			outMonth: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
			badge:    lipgloss.NewStyle().Foreground(lipgloss.Color("215")),
			done:     lipgloss.NewStyle().Strikethrough(true).Foreground(lipgloss.Color("243")),
			statusOK: lipgloss.NewStyle().Foreground(lipgloss.Color("78")),
			statusNG: lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
			prompt:   lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		}
	}
	return theme{
		title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("55")),
		dim:      lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		frame:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("61")),
		selected: lipgloss.NewStyle().Reverse(true),
		today:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("161")),
		outMonth: lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		badge:    lipgloss.NewStyle().Foreground(lipgloss.Color("130")),
		done:     lipgloss.NewStyle().Strikethrough(true).Foreground(lipgloss.Color("246")),
		statusOK: lipgloss.NewStyle().Foreground(lipgloss.Color("28")),
		statusNG: lipgloss.NewStyle().Foreground(lipgloss.Color("124")),
		prompt:   lipgloss.NewStyle().Foreground(lipgloss.Color("94")),
	}
}

func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "loading..."
	}
	th := newTheme(m.ctrl.Dark())
	if m.mode == modeSignIn || m.mode == modeSignUp {
		return m.viewAuth(th)
	}
	return m.viewCalendar(th)
}

func (m *Model) viewAuth(th theme) string {
	title := "Sign in"
	action := "Ctrl+S switch to sign-up"
	if m.mode == modeSignUp {
		title = "Create account"
		action = "Ctrl+S switch to sign-in"
	}

	rows := []string{
		th.title.Render("caltodo"),
		"",
		th.dim.Render(title),
		m.email.View(),
		m.password.View(),
	}
	if m.mode == modeSignUp {
		rows = append(rows, m.confirm.View())
	}
	rows = append(rows, "", th.dim.Render("Enter submits • Tab moves • "+action+" • Esc quits"))

	form := th.frame.Padding(1, 2).Render(strings.Join(rows, "\n"))
	body := lipgloss.Place(m.viewportWidth(), m.height-2, lipgloss.Center, lipgloss.Center, form)
	return body + "\n" + m.renderFooter(th)
}

func (m *Model) viewCalendar(th theme) string {
	viewW := m.viewportWidth()
	const paneGap = 1
	leftW, rightW := paneWidths(viewW-2, paneGap)

	panelH := m.height - 5
	if panelH < 10 {
		panelH = 10
	}

	visible := m.ctrl.VisibleMonth()
	header := lipgloss.JoinHorizontal(lipgloss.Left,
		th.title.Render("caltodo"),
		th.dim.Render("  "+visible.Format("January 2006")+" • filter: "+string(m.ctrl.Filter())+" • focus: "+m.focus.String()),
	)

	grid := m.renderGridPanel(th, leftW)
	tasks := m.renderTasksPanel(th, rightW, panelH)
	split := lipgloss.JoinHorizontal(lipgloss.Top, grid, strings.Repeat(" ", paneGap), tasks)

	body := th.frame.Width(viewW - 2).Height(panelH).Render(split)
	if m.ctrl.ModalOpen() {
		body = lipgloss.Place(viewW, panelH+2, lipgloss.Center, lipgloss.Center, m.renderDayModal(th))
	}

	parts := []string{header, body, m.renderFooter(th)}
	if prompt := m.renderPrompt(th, viewW); prompt != "" {
		parts = append(parts, prompt)
	}
	return strings.Join(parts, "\n")
}

func (m *Model) renderGridPanel(th theme, width int) string {
	cursor := model.FormatDate(m.dayCursor)
	lines := renderGrid(m.ctrl.Grid(), cursor, m.focus == focusCalendar, th)
	head := th.dim.Render("Su Mo Tu We Th Fr Sa")
	return lipgloss.NewStyle().Width(width).Render(head + "\n" + strings.Join(lines, "\n"))
}

// renderGrid lays the 42 cells out as 6 rows of 7. Each cell is a
// two-digit day plus a marker column: "." when the day carries tasks,
// a space otherwise.
func renderGrid(cells []calendar.Cell, cursorDate string, focused bool, th theme) []string {
	lines := make([]string, 0, 6)
	for row := 0; row < len(cells)/7; row++ {
		var b strings.Builder
		for col := 0; col < 7; col++ {
			cell := cells[row*7+col]
			day := fmt.Sprintf("%2d", cell.Date.Day())
			marker := " "
			if cell.TaskCount > 0 {
				marker = "."
			}

			style := lipgloss.NewStyle()
			switch {
			case !cell.InMonth:
				style = th.outMonth
			case cell.Today:
				style = th.today
			}
			text := style.Render(day) + th.badge.Render(marker)
			if focused && model.FormatDate(cell.Date) == cursorDate {
				text = th.selected.Render(day + marker)
			}
			b.WriteString(text)
		}
		lines = append(lines, b.String())
	}
	return lines
}

func (m *Model) renderTasksPanel(th theme, width, height int) string {
	tasks := m.ctrl.FilteredTasks()
	title := fmt.Sprintf("Tasks (%d)", len(tasks))
	rows := []string{th.title.Render(title)}

	if len(tasks) == 0 {
		rows = append(rows, th.dim.Render("No tasks match the filter. Press 'a' to add one."))
	}
	maxRows := height - 2
	if maxRows < 3 {
		maxRows = 3
	}
	for i, t := range tasks {
		if i >= maxRows {
			rows = append(rows, th.dim.Render(fmt.Sprintf("… %d more", len(tasks)-maxRows)))
			break
		}
		line := formatTaskLine(t, width-4)
		switch {
		case m.focus == focusTasks && i == m.taskCursor:
			line = th.selected.Render(line)
		case t.Completed:
			line = th.done.Render(line)
		}
		rows = append(rows, line)
	}
	return lipgloss.NewStyle().Width(width).Render(strings.Join(rows, "\n"))
}

func (m *Model) renderDayModal(th theme) string {
	date, _ := m.ctrl.SelectedDate()
	tasks := m.ctrl.TasksOn(date)

	rows := []string{th.title.Render(date), ""}
	if len(tasks) == 0 {
		rows = append(rows, th.dim.Render("Nothing planned. Press 'a' to add a task."))
	}
	for i, t := range tasks {
		line := formatTaskLine(t, 48)
		switch {
		case i == m.modalCursor:
			line = th.selected.Render(line)
		case t.Completed:
			line = th.done.Render(line)
		}
		rows = append(rows, line)
	}
	rows = append(rows, "", th.dim.Render("x done • e edit • d delete • a add • y copy • Esc close"))
	return th.frame.Padding(1, 2).Render(strings.Join(rows, "\n"))
}

func (m *Model) renderPrompt(th theme, width int) string {
	switch m.mode {
	case modeAddTask:
		label := fmt.Sprintf("New task %s [%s]: ", m.inputDate, m.inputPrio)
		return th.prompt.Width(width).Render(label + m.input.View())
	case modeEditTask:
		return th.prompt.Width(width).Render("Edit task: " + m.input.View())
	case modeConfirmDelete:
		return th.prompt.Width(width).Render(fmt.Sprintf("Delete %q? [y/N]", truncateRunes(m.confirmText, 40)))
	}
	return ""
}

func (m *Model) renderFooter(th theme) string {
	left := m.status
	if left == "" {
		left = "Ready"
	}
	style := th.statusOK
	if m.statusErr {
		style = th.statusNG
	}
	if m.pending > 0 {
		left = m.spin.View() + " " + left
	}

	right := "a add • f filter • t theme • n/p month • y copy • L sign out • q quit"
	if m.mode == modeSignIn || m.mode == modeSignUp {
		right = ""
	}

	width := m.viewportWidth()
	leftW := utf8.RuneCountInString(left)
	rightW := utf8.RuneCountInString(right)
	if leftW+rightW+1 > width {
		max := width - rightW - 1
		if max < 8 {
			max = 8
			right = ""
		}
		left = truncateRunes(left, max)
		leftW = utf8.RuneCountInString(left)
	}
	padding := width - leftW - utf8.RuneCountInString(right)
	if padding < 1 {
		padding = 1
	}
	return style.Render(left) + strings.Repeat(" ", padding) + th.dim.Render(right)
}

func (m *Model) viewportWidth() int {
	// One column stays free to avoid wrap on terminals that clip the
	// last cell.
	if m.width > 1 {
		return m.width - 1
	}
	return 1
}

// paneWidths splits the inner width between the fixed-ish calendar
// grid and the task list, keeping both usable on narrow terminals.
func paneWidths(total, gap int) (int, int) {
	if gap < 0 {
		gap = 0
	}
	const gridW = 23 // 7 cells of 3 columns plus slack
	if total <= 0 {
		return gridW, 30
	}
	left := gridW
	right := total - left - gap
	if right < 20 {
		right = 20
		left = total - right - gap
		if left < 12 {
			left = 12
		}
	}
	return left, right
}

func formatTaskLine(t model.Task, max int) string {
	line := fmt.Sprintf("%s %s %s", checkbox(t.Completed), priorityGlyph(t.Priority), t.Text)
	return truncateRunes(line, max)
}

func checkbox(done bool) string {
	if done {
		return "[x]"
	}
	return "[ ]"
}

func priorityGlyph(p model.Priority) string {
	switch p {
	case model.PriorityHigh:
		return "!!"
	case model.PriorityMedium:
		return "! "
	default:
		return "  "
	}
}

func truncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	if max == 1 {
		return "…"
	}
	return string(runes[:max-1]) + "…"
}
