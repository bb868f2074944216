package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/roster/internal/logtail"
)

const logBufferLimit = 2000

var logLevels = []string{"", "INFO", "WARN", "ERROR"}

// logState holds the console log view state.
type logState struct {
	lines    []logtail.Line
	follow   bool
	minLevel string
	err      error
}

type logLinesMsg struct {
	lines []logtail.Line
	err   error
}

// refreshLogs reads the tail of the console log file.
func (m Model) refreshLogs() tea.Cmd {
	path, level := m.logPath, m.logState.minLevel
	if path == "" {
		return nil
	}
	return func() tea.Msg {
		lines, err := logtail.Tail(path, logBufferLimit, level)
		return logLinesMsg{lines: lines, err: err}
	}
}

func (m *Model) handleLogLines(msg logLinesMsg) {
	m.logState.err = msg.err
	if msg.err == nil {
		m.logState.lines = msg.lines
	}
	m.updateLogViewport()
}

// updateLogViewport sizes the viewport and refreshes its content.
func (m *Model) updateLogViewport() {
	w, h := max(10, m.width-4), max(3, m.height-7)
	if m.logViewport.Width == 0 {
		m.logViewport = viewport.New(w, h)
	}
	m.logViewport.Width = w
	m.logViewport.Height = h
	m.logViewport.Style = lipgloss.NewStyle().Background(lipgloss.Color(m.theme.FocusBg))
	m.logViewport.SetContent(m.renderLogContent())
	if m.logState.follow {
		m.logViewport.GotoBottom()
	}
}

// handleLogsKey processes keyboard input for the log view.
func (m Model) handleLogsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.ToggleFollow):
		m.logState.follow = !m.logState.follow
		if m.logState.follow {
			m.logViewport.GotoBottom()
		}
		return m, nil
	case key.Matches(msg, m.keys.CycleLevel):
		m.logState.minLevel = nextLevel(m.logState.minLevel)
		return m, m.refreshLogs()
	case key.Matches(msg, m.keys.Top):
		m.logState.follow = false
		m.logViewport.GotoTop()
		return m, nil
	case key.Matches(msg, m.keys.Bottom):
		m.logViewport.GotoBottom()
		return m, nil
	}

	// Any manual scroll pauses following.
	var cmd tea.Cmd
	before := m.logViewport.YOffset
	m.logViewport, cmd = m.logViewport.Update(msg)
	if m.logViewport.YOffset < before {
		m.logState.follow = false
	}
	return m, cmd
}

func nextLevel(current string) string {
	for i, l := range logLevels {
		if l == current {
			return logLevels[(i+1)%len(logLevels)]
		}
	}
	return logLevels[0]
}

// renderLogs renders the log view.
func (m Model) renderLogs() string {
	styles := m.theme.Styles()
	bg := NewBgStyle(m.theme.FocusBg)

	title := "Console Log"
	if m.logState.minLevel != "" {
		title += " (" + m.logState.minLevel + "+)"
	}
	box := m.renderBox(title, m.logViewport.View(), m.width, m.height-5, true)

	follow := "off"
	if m.logState.follow {
		follow = "on"
	}
	status := fmt.Sprintf("%d lines auto-tail %s", len(m.logState.lines), follow)
	if m.logState.err != nil {
		return box + "\n" + bg.Render("read log: "+m.logState.err.Error(), styles.DangerText)
	}
	return box + "\n" + bg.Render(status, styles.FaintText) + bg.Space() +
		bg.Render(shortPath(m.logPath, 50), styles.AccentText)
}

// renderLogContent renders the colorized log lines.
func (m *Model) renderLogContent() string {
	bg := NewBgStyle(m.theme.FocusBg)
	styles := m.theme.Styles()
	width := m.logViewport.Width

	if len(m.logState.lines) == 0 {
		return bg.FillLine(bg.Render("No log entries", styles.MutedText), width)
	}

	var b strings.Builder
	for i, line := range m.logState.lines {
		b.WriteString(bg.FillLine(m.colorizeLine(line, styles, bg), width))
		if i < len(m.logState.lines)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// colorizeLine styles the timestamp, level and message of one line.
func (m *Model) colorizeLine(line logtail.Line, styles Styles, bg BgStyle) string {
	if line.Level == "" {
		return bg.Render(line.Raw, styles.Text)
	}
	levelStyle := styles.InfoText
	switch line.Level {
	case "DEBUG":
		levelStyle = styles.FaintText
	case "WARN":
		levelStyle = styles.WarningText
	case "ERROR":
		levelStyle = styles.DangerText
	}
	return bg.Render(line.Time.Local().Format("15:04:05"), styles.FaintText) + bg.Space() +
		bg.Render(padRight(line.Level, 5), levelStyle) + bg.Space() +
		bg.Render(line.Message, styles.Text)
}
