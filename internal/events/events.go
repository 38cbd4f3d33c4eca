// Package events distributes detector events to live consumers such as the
// websocket stream and the terminal dashboard.
package events

import (
	"encoding/json"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/models"
)

// EventType defines the type of event.
type EventType string

const (
	// Capture events
	EventCaptureStarted EventType = "capture:started"
	EventCaptureStopped EventType = "capture:stopped"
	EventCaptureStats   EventType = "capture:stats"

	// Detection events
	EventVerdict EventType = "verdict"
	EventAlert   EventType = "alert"
	EventStats   EventType = "detection:stats"

	// System events
	EventSystemError EventType = "system:error"
)

// Event represents an event sent to consumers.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp int64     `json:"timestamp"` // Nanosecond precision
	Data      any       `json:"data"`
}

// JSON returns the JSON representation of an event.
func (e *Event) JSON() ([]byte, error) {
	return json.Marshal(e)
}

// EventHandler is a function that handles events. Handlers may be called
// from the batch timer goroutine and must be safe for concurrent use.
type EventHandler func(event *Event)

// EventBus manages event distribution and batching.
type EventBus struct {
	handlers      map[EventType][]EventHandler
	globalHandler EventHandler
	mu            sync.RWMutex

	// Batching configuration
	batchInterval time.Duration
	batchSize     int
	batchEnabled  bool

	// Batch state
	batchMu      sync.Mutex
	currentBatch []*Event
	batchTimer   *time.Timer

	// Statistics
	eventsEmitted atomic.Uint64
	eventsBatched atomic.Uint64
	batchesSent   atomic.Uint64
}

// EventBusConfig holds configuration for the event bus.
type EventBusConfig struct {
	// BatchInterval is the maximum time to wait before sending a batch.
	// Default: 100ms
	BatchInterval time.Duration

	// BatchSize is the maximum number of events per batch.
	// Default: 256
	BatchSize int

	// EnableBatching enables event batching.
	// Default: true
	EnableBatching bool
}

// DefaultEventBusConfig returns a sensible default configuration.
func DefaultEventBusConfig() *EventBusConfig {
	return &EventBusConfig{
		BatchInterval:  100 * time.Millisecond,
		BatchSize:      256,
		EnableBatching: true,
	}
}

// NewEventBus creates a new event bus.
func NewEventBus(cfg *EventBusConfig) *EventBus {
	if cfg == nil {
		cfg = DefaultEventBusConfig()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}

	return &EventBus{
		handlers:      make(map[EventType][]EventHandler),
		batchInterval: cfg.BatchInterval,
		batchSize:     cfg.BatchSize,
		batchEnabled:  cfg.EnableBatching,
		currentBatch:  make([]*Event, 0, cfg.BatchSize),
	}
}

// SetGlobalHandler sets a handler that receives all events.
func (eb *EventBus) SetGlobalHandler(handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.globalHandler = handler
}

// Subscribe adds a handler for a specific event type.
func (eb *EventBus) Subscribe(eventType EventType, handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.handlers[eventType] = append(eb.handlers[eventType], handler)
}

// Unsubscribe removes all handlers for a specific event type.
func (eb *EventBus) Unsubscribe(eventType EventType) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	delete(eb.handlers, eventType)
}

func newEvent(eventType EventType, data any) *Event {
	return &Event{
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		Data:      data,
	}
}

// Emit emits an event to all registered handlers.
func (eb *EventBus) Emit(eventType EventType, data any) {
	event := newEvent(eventType, data)
	if eb.batchEnabled {
		eb.addToBatch(event)
	} else {
		eb.dispatchEvent(event)
	}
}

// EmitImmediate emits an event immediately, bypassing batching. Pending
// batched events are flushed first so consumers see events in order.
func (eb *EventBus) EmitImmediate(eventType EventType, data any) {
	event := newEvent(eventType, data)

	eb.batchMu.Lock()
	defer eb.batchMu.Unlock()
	eb.flushBatchLocked()
	eb.dispatchEvent(event)
}

// addToBatch adds an event to the current batch.
func (eb *EventBus) addToBatch(event *Event) {
	eb.batchMu.Lock()
	defer eb.batchMu.Unlock()

	eb.currentBatch = append(eb.currentBatch, event)
	eb.eventsBatched.Add(1)

	// Start timer if this is the first event in the batch
	if len(eb.currentBatch) == 1 {
		eb.batchTimer = time.AfterFunc(eb.batchInterval, eb.flushBatch)
	}

	if len(eb.currentBatch) >= eb.batchSize {
		eb.flushBatchLocked()
	}
}

func (eb *EventBus) flushBatch() {
	eb.batchMu.Lock()
	defer eb.batchMu.Unlock()
	eb.flushBatchLocked()
}

// flushBatchLocked flushes the batch (must be called with batchMu held).
func (eb *EventBus) flushBatchLocked() {
	if len(eb.currentBatch) == 0 {
		return
	}

	if eb.batchTimer != nil {
		eb.batchTimer.Stop()
		eb.batchTimer = nil
	}

	for _, event := range eb.currentBatch {
		eb.dispatchEvent(event)
	}

	eb.batchesSent.Add(1)
	clear(eb.currentBatch)
	eb.currentBatch = eb.currentBatch[:0]
}

// dispatchEvent dispatches an event to handlers.
func (eb *EventBus) dispatchEvent(event *Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	eb.eventsEmitted.Add(1)

	if eb.globalHandler != nil {
		eb.globalHandler(event)
	}
	for _, handler := range eb.handlers[event.Type] {
		handler(event)
	}
}

// Flush forces a flush of any pending batched events.
func (eb *EventBus) Flush() {
	eb.flushBatch()
}

// Stats returns event bus statistics.
func (eb *EventBus) Stats() (emitted, batched, batches uint64) {
	return eb.eventsEmitted.Load(), eb.eventsBatched.Load(), eb.batchesSent.Load()
}

// Helper functions for common event types

// Report publishes a verdict. Malicious verdicts are published immediately
// as alerts; normal ones are batched.
func (eb *EventBus) Report(v *models.Verdict) {
	// Published verdicts outlive the call; nothing may alias the capture
	// buffer, which is reused after Report returns.
	cp := *v
	cp.Raw = nil
	cp.Info = nil
	cp.SrcIP = slices.Clone(v.SrcIP)
	cp.DstIP = slices.Clone(v.DstIP)
	if cp.Malicious {
		eb.EmitImmediate(EventAlert, &cp)
	} else {
		eb.Emit(EventVerdict, &cp)
	}
}

// EmitCaptureStarted announces a capture session.
func (eb *EventBus) EmitCaptureStarted(sessionID, source, mode string) {
	eb.EmitImmediate(EventCaptureStarted, map[string]string{
		"session_id": sessionID,
		"source":     source,
		"mode":       mode,
	})
}

// EmitCaptureStopped announces the end of a capture session with its totals.
func (eb *EventBus) EmitCaptureStopped(stats models.DetectionStats) {
	eb.EmitImmediate(EventCaptureStopped, stats)
}

// EmitCaptureStats emits capture statistics.
func (eb *EventBus) EmitCaptureStats(stats *models.CaptureStats) {
	eb.Emit(EventCaptureStats, stats)
}

// EmitDetectionStats emits the running counters.
func (eb *EventBus) EmitDetectionStats(stats models.DetectionStats) {
	eb.Emit(EventStats, stats)
}

// EmitError emits a system error event.
func (eb *EventBus) EmitError(err error, context string) {
	eb.EmitImmediate(EventSystemError, map[string]string{
		"error":   err.Error(),
		"context": context,
	})
}

// BatchedEvents represents a batch of events for efficient transmission.
type BatchedEvents struct {
	Events    []*Event `json:"events"`
	Count     int      `json:"count"`
	Timestamp int64    `json:"timestamp"`
}

// NewBatchedEvents creates a new batched events container.
func NewBatchedEvents(events []*Event) *BatchedEvents {
	return &BatchedEvents{
		Events:    events,
		Count:     len(events),
		Timestamp: time.Now().UnixNano(),
	}
}

// JSON returns the JSON representation of batched events.
func (be *BatchedEvents) JSON() ([]byte, error) {
	return json.Marshal(be)
}
