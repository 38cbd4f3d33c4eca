package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/models"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestJSONOutputWithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := Init(&Config{Level: LevelDebug, Output: &buf, Format: "json"})

	l.WithComponent("detector").Info("classified",
		Counters(models.DetectionStats{PacketCount: 3, MaliciousCount: 1}))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid json log line %q: %v", buf.String(), err)
	}
	if entry["component"] != "detector" {
		t.Errorf("expected component detector, got %v", entry["component"])
	}
	counters, ok := entry["counters"].(map[string]any)
	if !ok {
		t.Fatalf("expected counters group, got %v", entry["counters"])
	}
	if counters["normal"] != float64(2) {
		t.Errorf("expected normal=2, got %v", counters["normal"])
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	l := Init(&Config{Level: LevelInfo, Output: &buf})

	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug line should be filtered, got %q", buf.String())
	}

	l.SetLevel(LevelDebug)
	if l.GetLevel() != LevelDebug {
		t.Errorf("expected debug level, got %v", l.GetLevel())
	}
	l.Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("expected debug line after SetLevel, got %q", buf.String())
	}
}

func TestTimer(t *testing.T) {
	var buf bytes.Buffer
	l := Init(&Config{Level: LevelDebug, Output: &buf, Format: "json"})

	done := Timer(l, "loaded", "path", "model.json")
	done()

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid json log line %q: %v", buf.String(), err)
	}
	if entry["msg"] != "loaded" || entry["path"] != "model.json" {
		t.Errorf("unexpected entry %v", entry)
	}
	if _, ok := entry["duration"]; !ok {
		t.Error("expected a duration attribute")
	}
}
