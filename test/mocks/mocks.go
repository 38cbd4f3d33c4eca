// Package mocks provides mock implementations for testing the detector and
// its capture and reporting collaborators.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/gopacket/gopacket/layers"

	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/capture"
	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/ml"
	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/models"
	"github.com/tush8979/Adaptive-Intrusion-Detection-System/test/fixtures"
)

// =============================================================================
// Mock Capture Engine
// =============================================================================

// MockCaptureEngine implements capture.Engine by replaying fixture frames
// from a single goroutine, like the real engines.
type MockCaptureEngine struct {
	mu           sync.Mutex
	running      bool
	frames       []fixtures.Frame
	frameIndex   int
	handler      capture.PacketHandler
	stats        *models.CaptureStats
	errorOnStart error
	delay        time.Duration
	done         chan struct{}
}

// NewMockCaptureEngine creates a new mock capture engine
func NewMockCaptureEngine(frames ...fixtures.Frame) *MockCaptureEngine {
	return &MockCaptureEngine{
		frames: frames,
		stats:  &models.CaptureStats{Interface: "mock0"},
		done:   make(chan struct{}),
	}
}

// SetErrorOnStart sets an error to return on Start
func (m *MockCaptureEngine) SetErrorOnStart(err error) {
	m.errorOnStart = err
}

// SetDelay sets the delay between packets
func (m *MockCaptureEngine) SetDelay(d time.Duration) {
	m.delay = d
}

// Start implements capture.Engine
func (m *MockCaptureEngine) Start(ctx context.Context) error {
	if m.errorOnStart != nil {
		return m.errorOnStart
	}

	m.mu.Lock()
	m.running = true
	m.stats.StartTime = time.Now()
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			m.mu.Lock()
			if !m.running || m.frameIndex >= len(m.frames) {
				m.mu.Unlock()
				return
			}
			frame := m.frames[m.frameIndex]
			m.frameIndex++
			handler := m.handler
			m.mu.Unlock()

			if handler != nil {
				handler(frame.Data, capture.ParsePacketInfo(frame.Packet(), "mock0"))
			}

			if m.delay > 0 {
				time.Sleep(m.delay)
			}
		}
	}()

	return nil
}

// Stop implements capture.Engine
func (m *MockCaptureEngine) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	return nil
}

// Stats implements capture.Engine
func (m *MockCaptureEngine) Stats() *models.CaptureStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := *m.stats
	stats.LastUpdate = time.Now()
	stats.PacketsReceived = uint64(m.frameIndex)
	return &stats
}

// SetHandler implements capture.Engine
func (m *MockCaptureEngine) SetHandler(handler capture.PacketHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = handler
}

// LinkType implements capture.Engine
func (m *MockCaptureEngine) LinkType() layers.LinkType {
	return layers.LinkTypeEthernet
}

// Done implements capture.Engine
func (m *MockCaptureEngine) Done() <-chan struct{} {
	return m.done
}

var _ capture.Engine = (*MockCaptureEngine)(nil)

// =============================================================================
// Mock Classifier
// =============================================================================

// StaticClassifier labels feature vectors with a fixed rule and records
// every vector it sees.
type StaticClassifier struct {
	mu      sync.Mutex
	rule    func(ml.FeatureVector) ml.Label
	err     error
	seen    []ml.FeatureVector
	onCall  func()
	Latency time.Duration
}

// NewStaticClassifier returns a classifier that applies rule.
func NewStaticClassifier(rule func(ml.FeatureVector) ml.Label) *StaticClassifier {
	return &StaticClassifier{rule: rule}
}

// AlwaysLabel returns a classifier that always returns label.
func AlwaysLabel(label ml.Label) *StaticClassifier {
	return NewStaticClassifier(func(ml.FeatureVector) ml.Label { return label })
}

// SetError makes every call fail with err.
func (c *StaticClassifier) SetError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// OnCall registers a hook run at the start of every Classify call.
func (c *StaticClassifier) OnCall(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onCall = fn
}

// Classify implements detector.Classifier
func (c *StaticClassifier) Classify(ctx context.Context, fv ml.FeatureVector) (ml.Label, error) {
	c.mu.Lock()
	hook := c.onCall
	c.seen = append(c.seen, fv)
	err := c.err
	c.mu.Unlock()

	if hook != nil {
		hook()
	}
	if c.Latency > 0 {
		time.Sleep(c.Latency)
	}
	if err != nil {
		return ml.LabelNormal, err
	}
	return c.rule(fv), nil
}

// Seen returns the vectors classified so far.
func (c *StaticClassifier) Seen() []ml.FeatureVector {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ml.FeatureVector(nil), c.seen...)
}

// =============================================================================
// Mock Reporter
// =============================================================================

// RecordingReporter keeps a copy of every verdict it receives.
type RecordingReporter struct {
	mu       sync.Mutex
	verdicts []models.Verdict
}

// NewRecordingReporter creates a new recording reporter
func NewRecordingReporter() *RecordingReporter {
	return &RecordingReporter{}
}

// Report implements detector.Reporter
func (r *RecordingReporter) Report(v *models.Verdict) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *v
	cp.Raw = append([]byte(nil), v.Raw...)
	r.verdicts = append(r.verdicts, cp)
}

// Verdicts returns the recorded verdicts.
func (r *RecordingReporter) Verdicts() []models.Verdict {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Verdict(nil), r.verdicts...)
}

// Count returns the number of recorded verdicts.
func (r *RecordingReporter) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.verdicts)
}
