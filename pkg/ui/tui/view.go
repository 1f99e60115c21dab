package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// View renders the entire TUI
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	stats := m.GetStats()
	half := (m.width - 4) / 2

	left := lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatsPanel(stats, half),
		m.renderCurrentPanel(stats, half),
		m.renderRecentPanel(half),
	)
	right := lipgloss.JoinVertical(lipgloss.Left,
		m.renderCatalogPanel(stats, half),
		m.renderLogsPanel(half),
	)

	sections := []string{
		m.renderLogo(),
		lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right),
	}
	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("Press ? for help • q to stop the run"))
	}

	return baseStyle.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

func (m *Model) renderLogo() string {
	logo := `
┳┓┏┓┏┓┓┏┏┓┳┓┓┏┏┓┏┓┏┳┓
┃┃┃┃┃ ┣┫┣┫┣┫┃┃┣ ┗┓ ┃
┻┛┗┛┗┛┛┗┛┗┛┗┗┛┗┛┗┛ ┻ `
	return logoStyle.Width(m.width).Render(logo + "\n" + m.label)
}

func (m *Model) renderStatsPanel(s Stats, width int) string {
	title := titleStyle.Render(" RUN STATS ")

	lines := []string{
		statLine("Session Time:", formatDuration(s.Elapsed)),
		statLine("Downloaded:", fmt.Sprintf("%d files", s.Completed)),
		statLine("Kept original name:", fmt.Sprintf("%d", s.KeptNames)),
		statLine("Skipped:", fmt.Sprintf("%d", s.Skipped)),
		statLine("Processed:", fmt.Sprintf("%d", s.Processed)),
		statLine("ETA:", formatDuration(s.ETA())),
	}
	if s.Finished {
		style := successStyle
		if s.Err != nil {
			style = errorStyle
		}
		lines = append(lines, style.Render("■ "+string(s.DoneReason)))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, lines...)),
	)
}

func (m *Model) renderCurrentPanel(s Stats, width int) string {
	title := titleStyle.Render(" CURRENT ENTRY ")

	var content string
	if s.Current == nil {
		content = lipgloss.NewStyle().Foreground(dimWhite).Render("Idle")
	} else {
		waited := time.Since(s.Current.StartTime)
		content = fmt.Sprintf("%s %s %s",
			m.spinner.View(),
			queueItemActiveStyle.Render(truncate(s.Current.Label(), width-20)),
			lipgloss.NewStyle().Foreground(dimWhite).Render(formatDuration(waited)),
		)
	}

	return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
}

func (m *Model) renderRecentPanel(width int) string {
	title := titleStyle.Render(" RECENT ")

	recent := m.GetRecentEntries(6)
	if len(recent) == 0 {
		content := lipgloss.NewStyle().Foreground(dimWhite).Render("Nothing yet")
		return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
	}

	var items []string
	for _, item := range recent {
		switch item.Status {
		case EntryCompleted:
			items = append(items, queueItemCompletedStyle.Render("✓ "+truncate(item.File, width-10)))
		case EntryKeptName:
			items = append(items, warningStyle.Render("✓ "+truncate(item.Label(), width-10)))
		case EntrySkipped:
			items = append(items, errorStyle.Render("✗ "+truncate(item.Label()+" • "+item.Reason, width-10)))
		}
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, items...)),
	)
}

func (m *Model) renderCatalogPanel(s Stats, width int) string {
	title := titleStyle.Render(" CATALOG ")

	more := "yes"
	if !s.MoreAvailable {
		more = "no"
	}

	content := []string{
		statLine("Position:", fmt.Sprintf("%d/%d", s.Cursor, s.Known)),
		m.progress.ViewAs(s.Ratio()),
		statLine("Expansions:", fmt.Sprintf("%d", s.Expansions)),
		statLine("More results:", more),
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(content, "\n")),
	)
}

func (m *Model) renderLogsPanel(width int) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	title := titleStyle.Render(" LOG ")

	start := len(m.logMessages) - 10
	if start < 0 {
		start = 0
	}

	var logs []string
	for _, log := range m.logMessages[start:] {
		timestamp := logTimestampStyle.Render(log.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(log.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", log.Level))
		message := logMessageStyle.Render(truncate(log.Message, width-25))
		logs = append(logs, fmt.Sprintf("%s %s %s", timestamp, level, message))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = lipgloss.NewStyle().Foreground(dimWhite).Render("No logs yet...")
	}

	logsHeight := m.height - 30
	if logsHeight < 5 {
		logsHeight = 5
	}

	return panelStyle.Width(width).Height(logsHeight).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

func (m *Model) renderHelp() string {
	help := `
  Keys:
    q/Q      - Stop the run and quit
    ctrl+l   - Clear the log
    ?        - Toggle this help

  Entries:
    ` + successStyle.Render("✓") + `        - Downloaded and renamed
    ` + warningStyle.Render("✓") + `        - Downloaded, kept its original name
    ` + errorStyle.Render("✗") + `        - Skipped
`
	return panelStyle.Width(m.width).Render(help)
}

func statLine(label, value string) string {
	return fmt.Sprintf("%s %s", statsLabelStyle.Render(label), statsValueStyle.Render(value))
}

// truncate shortens s to max runes
func truncate(s string, max int) string {
	r := []rune(s)
	if max <= 3 || len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

// formatDuration formats a duration as mm:ss or hh:mm:ss
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "00:00"
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
