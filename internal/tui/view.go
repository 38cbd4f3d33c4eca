package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFF7DB")).
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			Margin(0, 1)

	alertStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF5F87"))

	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// View renders the dashboard.
func (m *Model) View() string {
	header := fmt.Sprintf("Live IDS - %s", m.source)
	if m.stopped {
		header += " [stopped]"
	}
	title := titleStyle.Render(header)

	c := m.counters
	uptime := "-"
	if !c.StartTime.IsZero() {
		uptime = time.Since(c.StartTime).Truncate(time.Second).String()
	}
	counters := fmt.Sprintf("Packets:   %d\nNormal:    %d\nMalicious: %s\nSkipped:   %d\nErrors:    %d",
		c.PacketCount, c.NormalCount(),
		alertStyle.Render(fmt.Sprint(c.MaliciousCount)),
		c.SkippedCount, c.ErrorCount)
	countersBox := infoStyle.Render(counters)

	session := fmt.Sprintf("Session: %s\nUptime:  %s\nAlerts:  %d", shortID(c.SessionID), uptime, m.alerts)
	if n := m.dropped.Load(); n > 0 {
		session += fmt.Sprintf("\nDropped: %d", n)
	}
	sessionBox := infoStyle.Render(session)

	recent := infoStyle.Render("Recent verdicts\n" + m.table.View())

	row := lipgloss.JoinHorizontal(lipgloss.Top, countersBox, sessionBox)
	body := lipgloss.JoinVertical(lipgloss.Left, title, row, recent)

	if m.lastErr != "" {
		body += "\n" + alertStyle.Render(m.lastErr)
	}
	return body + "\n" + mutedStyle.Render("Press q to quit.")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return "-"
	}
	return id
}
