package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/roster/internal/api"
)

// renderHeader renders the status bar: user, dashboard counters and the
// connection state.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	if !m.snapshot.HasStats {
		return m.renderConnectingHeader(styles, bg)
	}

	return lipgloss.NewStyle().
		Background(lipgloss.Color(m.theme.Surface)).
		Foreground(lipgloss.Color(m.theme.Text)).
		Width(m.width).
		Render(m.buildStatusContent(styles, bg))
}

// renderConnectingHeader shows the connecting or error state before the
// first successful poll.
func (m Model) renderConnectingHeader(styles Styles, bg BgStyle) string {
	sep := bg.Spaces(2)

	if m.snapshot.LastError != nil {
		last := "soon"
		if !m.snapshot.LastUpdated.IsZero() {
			last = m.snapshot.LastUpdated.Format("15:04:05")
		}
		parts := []string{
			bg.Render("roster", styles.Logo),
			bg.Render("API "+classifyConnectionError(m.snapshot.LastError), styles.DangerText.Bold(true)),
			bg.Render("Retrying...", styles.WarningText.Bold(true)),
			bg.Render(last, styles.MutedText),
		}
		if m.logPath != "" {
			parts = append(parts,
				bg.Render("logs", styles.FaintText)+bg.Space()+
					bg.Render(shortPath(m.logPath, 50), styles.MutedText))
		}
		return styles.Header.Width(m.width).Render(bg.Join(parts, sep))
	}

	return styles.Header.Width(m.width).Render(
		bg.Render("roster", styles.Logo) + sep +
			bg.Render("Connecting to API...", styles.WarningText.Bold(true)),
	)
}

// buildStatusContent builds the status bar content string.
func (m Model) buildStatusContent(styles Styles, bg BgStyle) string {
	compact := m.width < 100
	sep := bg.Spaces(2)
	stats := m.snapshot.Stats

	parts := []string{bg.Render("roster", styles.Logo)}

	if m.snapshot.IsOffline() {
		parts = append(parts, bg.Render("● OFFLINE", styles.DangerText))
	} else {
		parts = append(parts, bg.Render("● ONLINE", styles.SuccessText))
	}

	if m.user.Username != "" {
		role := m.user.Role
		if role == "" {
			role = api.RoleAdmin
		}
		parts = append(parts,
			bg.Render(m.user.Username, styles.Text)+bg.Space()+
				styles.StatusStyle(role).Render(titleCase(role)))
	}

	counter := func(label string, n int) string {
		return bg.Render(label+":", styles.MutedText) + bg.Space() + bg.Render(fmt.Sprintf("%d", n), styles.Text)
	}
	parts = append(parts,
		counter("Classes", stats.TotalClasses),
		counter("Students", stats.TotalStudents),
	)
	if !compact {
		parts = append(parts,
			counter("Teachers", stats.TotalTeachers),
			counter("Subjects", stats.TotalSubjects),
			counter("Quizzes", stats.ActiveQuizzes),
		)
	}
	parts = append(parts,
		bg.Render("Attendance:", styles.MutedText)+bg.Space()+
			bg.Render(fmt.Sprintf("%.1f%%", stats.AttendanceRate), attendanceStyle(styles, stats.AttendanceRate)))

	if n := m.snapshot.Pending; n > 0 {
		parts = append(parts, bg.Render(fmt.Sprintf("%d saving", n), styles.WarningText))
	}

	if m.snapshot.LastError != nil {
		parts = append(parts, bg.Render(classifyConnectionError(m.snapshot.LastError), styles.DangerText))
	} else if !m.snapshot.LastUpdated.IsZero() && !compact {
		age := humanizeDuration(time.Since(m.snapshot.LastUpdated))
		parts = append(parts, bg.Render(ternary(age == "now", "updated now", "updated "+age+" ago"), styles.FaintText))
	}

	return bg.Join(parts, sep)
}

func attendanceStyle(styles Styles, rate float64) lipgloss.Style {
	switch {
	case rate >= 90:
		return styles.SuccessText
	case rate >= 75:
		return styles.WarningText
	default:
		return styles.DangerText
	}
}

// classifyConnectionError shortens an API error for the header.
func classifyConnectionError(err error) string {
	switch api.KindOf(err) {
	case api.KindTransport:
		return "unreachable"
	case api.KindAuth, api.KindNoToken:
		return "sign-in required"
	case api.KindServer:
		return "server error"
	case api.KindDecode:
		return "bad response"
	default:
		return truncate(err.Error(), 40)
	}
}

// renderCommandBar renders the key hints for the current view.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	type cmd struct{ key, desc string }
	var commands []cmd

	switch m.currentView {
	case ViewLogs:
		followLabel := "Pause"
		if !m.logState.follow {
			followLabel = "Follow"
		}
		commands = []cmd{
			{"Space", followLabel},
			{"f", "Level " + ternary(m.logState.minLevel == "", "all", m.logState.minLevel)},
			{"j/k", "Scroll"},
			{"c", "Classes"},
			{"?", "More"},
		}
	case ViewClasses:
		commands = []cmd{
			{"enter", "Materials"},
			{"j/k", "Navigate"},
			{"r", "Refetch"},
			{"d", "Delete"},
			{"s/u/l", "Subjects/Users/Logs"},
			{"?", "More"},
		}
	case ViewSubjects:
		commands = []cmd{
			{"n", "New"},
			{"j/k", "Navigate"},
			{"r", "Refetch"},
			{"d", "Delete"},
			{"c", "Classes"},
			{"?", "More"},
		}
	default:
		commands = []cmd{
			{"j/k", "Navigate"},
			{"r", "Refetch"},
			{"d", "Delete"},
			{"c", "Classes"},
			{"?", "More"},
		}
	}

	colon := bg.Sep(":")
	sep := bg.Spaces(2)

	segments := make([]string, 0, len(commands)+1)
	for _, c := range commands {
		segments = append(segments,
			bg.Render(c.key, styles.AccentText)+colon+bg.Render(c.desc, styles.MutedText))
	}
	segments = append(segments,
		bg.Render("T", styles.AccentText)+colon+bg.Render(m.theme.Name, styles.FaintText))

	return styles.Header.Width(m.width).Render(strings.Join(segments, sep))
}

// renderStatusLine renders the prompt, the delete confirmation or the last
// mutation outcome.
func (m Model) renderStatusLine() string {
	styles := m.theme.Styles()
	switch {
	case m.prompting:
		return styles.AccentText.Render("new subject: ") + m.prompt.View()
	case m.status == "":
		return ""
	case m.statusErr:
		return styles.DangerText.Render(truncate(m.status, max(10, m.width)))
	case m.confirmDelete:
		return styles.WarningText.Render(truncate(m.status, max(10, m.width)))
	default:
		return styles.MutedText.Render(truncate(m.status, max(10, m.width)))
	}
}

// renderBox draws content inside a titled rounded border.
func (m Model) renderBox(title, content string, width, height int, focused bool) string {
	border := m.theme.Border
	if focused {
		border = m.theme.BorderFocus
	}
	styles := m.theme.Styles()
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(border)).
		Width(max(0, width-2)).
		Height(max(0, height-2))
	return styles.AccentText.Bold(true).Render(" "+title) + "\n" + box.Render(content)
}
