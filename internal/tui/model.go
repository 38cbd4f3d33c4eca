// Package tui renders a live terminal dashboard of detection counters and
// recent verdicts.
package tui

import (
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/events"
	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/models"
)

const (
	refreshInterval = 250 * time.Millisecond
	recentLimit     = 12
	inboxSize       = 1024
)

// StatsFunc returns the current detection counters.
type StatsFunc func() models.DetectionStats

// TickMsg triggers a counter refresh.
type TickMsg time.Time

// EventMsg carries one bus event into the update loop.
type EventMsg struct{ Event *events.Event }

// Model is the dashboard state.
type Model struct {
	source string
	stats  StatsFunc
	inbox  chan *events.Event

	counters models.DetectionStats
	recent   []*models.Verdict
	alerts   int
	dropped  atomic.Int64
	stopped  bool
	lastErr  string
	table    table.Model
}

// New creates a dashboard for the given capture source. Feed it events with
// Handle.
func New(source string, stats StatsFunc) *Model {
	columns := []table.Column{
		{Title: "#", Width: 8},
		{Title: "Verdict", Width: 10},
		{Title: "Proto", Width: 6},
		{Title: "Source", Width: 22},
		{Title: "Destination", Width: 22},
		{Title: "Features", Width: 16},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(false),
		table.WithHeight(recentLimit),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return &Model{
		source: source,
		stats:  stats,
		inbox:  make(chan *events.Event, inboxSize),
		table:  t,
	}
}

// Handle queues an event for the dashboard. It has the events.EventHandler
// signature and never blocks; events beyond the inbox capacity are counted
// and dropped.
func (m *Model) Handle(event *events.Event) {
	select {
	case m.inbox <- event:
	default:
		m.dropped.Add(1)
	}
}

// Init starts the refresh ticker and the event listener.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), m.waitForEvent())
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m *Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		return EventMsg{Event: <-m.inbox}
	}
}
