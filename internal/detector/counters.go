package detector

import (
	"sync/atomic"
	"time"

	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/models"
)

// Counters holds the running totals of one capture session. The dispatcher
// is the only writer; values are atomics so other goroutines can read them.
type Counters struct {
	sessionID string
	start     time.Time

	packets   atomic.Uint64 // IPv4 packets dispatched, including failed classifications
	malicious atomic.Uint64
	skipped   atomic.Uint64 // frames without an IPv4 header
	errors    atomic.Uint64
}

// NewCounters creates zeroed counters for a session.
func NewCounters(sessionID string) *Counters {
	return &Counters{sessionID: sessionID, start: time.Now()}
}

// PacketCount returns the number of IPv4 packets dispatched.
func (c *Counters) PacketCount() uint64 { return c.packets.Load() }

// MaliciousCount returns the number of packets labelled malicious.
func (c *Counters) MaliciousCount() uint64 { return c.malicious.Load() }

// Snapshot returns a point-in-time copy. Malicious is read before packets so
// that a snapshot taken mid-dispatch never shows more malicious packets than
// packets.
func (c *Counters) Snapshot() models.DetectionStats {
	errs := c.errors.Load()
	malicious := c.malicious.Load()
	return models.DetectionStats{
		SessionID:      c.sessionID,
		PacketCount:    c.packets.Load(),
		MaliciousCount: malicious,
		SkippedCount:   c.skipped.Load(),
		ErrorCount:     errs,
		StartTime:      c.start,
	}
}
