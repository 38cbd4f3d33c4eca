package tui

import (
	"net"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/events"
	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/models"
)

func verdictEvent(seq uint64, malicious bool) EventMsg {
	typ := events.EventVerdict
	if malicious {
		typ = events.EventAlert
	}
	return EventMsg{Event: &events.Event{Type: typ, Data: &models.Verdict{
		Sequence:  seq,
		Malicious: malicious,
		Transport: "TCP",
		SrcIP:     net.IPv4(10, 0, 0, 1),
		SrcPort:   4000,
		DstIP:     net.IPv4(10, 0, 0, 2),
		DstPort:   80,
		Features:  [3]uint32{1, 128, 64},
	}}}
}

func TestModel_TickRefreshesCounters(t *testing.T) {
	stats := func() models.DetectionStats {
		return models.DetectionStats{SessionID: "0123456789abcdef", PacketCount: 7, MaliciousCount: 2, StartTime: time.Now()}
	}
	m := New("eth0", stats)

	_, cmd := m.Update(TickMsg(time.Now()))
	if cmd == nil {
		t.Error("tick should schedule the next tick")
	}

	view := m.View()
	for _, want := range []string{"eth0", "Packets:   7", "Normal:    5", "01234567"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestModel_RecentVerdicts(t *testing.T) {
	m := New("eth0", nil)

	for i := 1; i <= recentLimit+3; i++ {
		m.Update(verdictEvent(uint64(i), i%5 == 0))
	}

	if len(m.recent) != recentLimit {
		t.Fatalf("expected %d recent verdicts, got %d", recentLimit, len(m.recent))
	}
	if m.recent[0].Sequence != recentLimit+3 {
		t.Errorf("newest verdict should come first, got #%d", m.recent[0].Sequence)
	}
	if m.alerts != 3 {
		t.Errorf("expected 3 alerts, got %d", m.alerts)
	}

	rows := m.table.Rows()
	if rows[0][1] != "MALICIOUS" || rows[0][3] != "10.0.0.1:4000" {
		t.Errorf("unexpected first row %v", rows[0])
	}
}

func TestModel_CaptureStopped(t *testing.T) {
	m := New("trace.pcap", nil)
	m.Update(EventMsg{Event: &events.Event{
		Type: events.EventCaptureStopped,
		Data: models.DetectionStats{PacketCount: 4, MaliciousCount: 1},
	}})

	if !m.stopped || m.counters.PacketCount != 4 {
		t.Errorf("stop event not applied: stopped=%v counters=%+v", m.stopped, m.counters)
	}
	if !strings.Contains(m.View(), "[stopped]") {
		t.Error("view should mark the session stopped")
	}
}

func TestModel_HandleFeedsUpdateLoop(t *testing.T) {
	m := New("eth0", nil)
	m.Handle(&events.Event{Type: events.EventSystemError, Data: map[string]string{"error": "boom", "context": "capture"}})

	msg := m.waitForEvent()()
	m.Update(msg)
	if m.lastErr != "capture: boom" {
		t.Errorf("unexpected error line %q", m.lastErr)
	}
}

func TestModel_HandleDropsWhenFull(t *testing.T) {
	m := New("eth0", nil)
	for i := 0; i < inboxSize+5; i++ {
		m.Handle(&events.Event{Type: events.EventVerdict})
	}
	if got := m.dropped.Load(); got != 5 {
		t.Errorf("expected 5 dropped events, got %d", got)
	}
}

func TestModel_Quit(t *testing.T) {
	m := New("eth0", nil)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}

func TestModel_SubscribedToBus(t *testing.T) {
	m := New("eth0", nil)
	bus := events.NewEventBus(&events.EventBusConfig{EnableBatching: false})
	for _, typ := range EventTypes {
		bus.Subscribe(typ, m.Handle)
	}

	bus.Report(&models.Verdict{Sequence: 1, Malicious: true, Transport: "UDP"})
	bus.EmitDetectionStats(models.DetectionStats{PacketCount: 1})

	if got := len(m.inbox); got != 1 {
		t.Fatalf("expected only the alert in the inbox, got %d events", got)
	}
	m.Update(m.waitForEvent()())
	if m.alerts != 1 || len(m.recent) != 1 {
		t.Errorf("expected one alert rendered, got alerts=%d recent=%d", m.alerts, len(m.recent))
	}

	for _, typ := range EventTypes {
		bus.Unsubscribe(typ)
	}
	bus.Report(&models.Verdict{Sequence: 2})
	if got := len(m.inbox); got != 0 {
		t.Errorf("unsubscribed dashboard still received %d events", got)
	}
}
