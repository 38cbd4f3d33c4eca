package tui

import (
	"fmt"
	"net"
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/events"
	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/models"
)

// Update applies one message to the dashboard.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case TickMsg:
		if m.stats != nil {
			m.counters = m.stats()
		}
		return m, tickCmd()

	case EventMsg:
		m.apply(msg.Event)
		return m, m.waitForEvent()
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// EventTypes are the bus events the dashboard renders.
var EventTypes = []events.EventType{
	events.EventVerdict,
	events.EventAlert,
	events.EventCaptureStopped,
	events.EventSystemError,
}

func (m *Model) apply(e *events.Event) {
	if e == nil {
		return
	}
	switch e.Type {
	case events.EventVerdict, events.EventAlert:
		v, ok := e.Data.(*models.Verdict)
		if !ok {
			return
		}
		if v.Malicious {
			m.alerts++
		}
		m.push(v)
	case events.EventCaptureStopped:
		m.stopped = true
		if s, ok := e.Data.(models.DetectionStats); ok {
			m.counters = s
		}
	case events.EventSystemError:
		if d, ok := e.Data.(map[string]string); ok {
			m.lastErr = d["context"] + ": " + d["error"]
		}
	}
}

func (m *Model) push(v *models.Verdict) {
	m.recent = append([]*models.Verdict{v}, m.recent...)
	if len(m.recent) > recentLimit {
		m.recent = m.recent[:recentLimit]
	}

	rows := make([]table.Row, len(m.recent))
	for i, r := range m.recent {
		verdict := "normal"
		if r.Malicious {
			verdict = "MALICIOUS"
		}
		rows[i] = table.Row{
			strconv.FormatUint(r.Sequence, 10),
			verdict,
			r.Transport,
			endpoint(r.SrcIP, r.SrcPort),
			endpoint(r.DstIP, r.DstPort),
			fmt.Sprint(r.Features),
		}
	}
	m.table.SetRows(rows)
}

func endpoint(ip net.IP, port uint16) string {
	if ip == nil {
		return "-"
	}
	if port == 0 {
		return ip.String()
	}
	return net.JoinHostPort(ip.String(), strconv.Itoa(int(port)))
}
