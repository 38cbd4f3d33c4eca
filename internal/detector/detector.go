// Package detector runs the per-packet dispatch loop: it extracts features
// from every IPv4 packet the capture layer delivers, classifies them, keeps
// the running counters and hands each verdict to the configured reporters.
package detector

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/logging"
	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/metrics"
	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/ml"
	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/models"
)

// Classifier labels a feature vector. *ml.Pipeline implements it.
type Classifier interface {
	Classify(ctx context.Context, fv ml.FeatureVector) (ml.Label, error)
}

// Reporter receives every verdict, in packet order, on the capture
// goroutine. v and v.Raw are only valid during the call.
type Reporter interface {
	Report(v *models.Verdict)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(v *models.Verdict)

// Report implements Reporter.
func (f ReporterFunc) Report(v *models.Verdict) { f(v) }

// Option configures a Detector.
type Option func(*Detector)

// WithContext sets the context passed to the classifier.
func WithContext(ctx context.Context) Option {
	return func(d *Detector) { d.ctx = ctx }
}

// WithSessionID overrides the generated session ID.
func WithSessionID(id string) Option {
	return func(d *Detector) { d.counters.sessionID = id }
}

// WithReporters appends reporters.
func WithReporters(rs ...Reporter) Option {
	return func(d *Detector) { d.reporters = append(d.reporters, rs...) }
}

// WithLogger overrides the component logger.
func WithLogger(l *logging.Logger) Option {
	return func(d *Detector) { d.log = l }
}

// Detector is the capture callback. HandlePacket must not be called
// concurrently; every capture engine honours that, and a concurrent call
// panics.
type Detector struct {
	classifier Classifier
	counters   *Counters
	reporters  []Reporter
	ctx        context.Context
	log        *logging.Logger

	busy atomic.Bool
}

// New creates a detector with a fresh session.
func New(classifier Classifier, opts ...Option) *Detector {
	d := &Detector{
		classifier: classifier,
		counters:   NewCounters(uuid.NewString()),
		ctx:        context.Background(),
		log:        logging.DetectorLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SessionID identifies this capture session on every verdict.
func (d *Detector) SessionID() string {
	return d.counters.sessionID
}

// Counters returns the running counters. Snapshots may be taken from any
// goroutine.
func (d *Detector) Counters() *Counters {
	return d.counters
}

// HandlePacket classifies one captured packet. It has the
// capture.PacketHandler signature.
//
// Packets without an IPv4 header are skipped: they are not counted and no
// verdict is reported. A classification error counts the packet as seen but
// reports nothing.
func (d *Detector) HandlePacket(data []byte, info *models.PacketInfo) {
	if !d.busy.CompareAndSwap(false, true) {
		panic("detector: HandlePacket called concurrently; packets must be delivered from a single goroutine")
	}
	defer d.busy.Store(false)

	if info == nil || !info.HasIPv4 {
		d.counters.skipped.Add(1)
		metrics.PacketsSkipped.Inc()
		return
	}

	start := time.Now()
	fv := ml.ExtractFeatures(info)
	label, err := d.classifier.Classify(d.ctx, fv)
	latency := time.Since(start)

	seq := d.counters.packets.Add(1)
	if err != nil {
		d.counters.errors.Add(1)
		metrics.ClassificationErrors.Inc()
		d.log.Error("classification failed",
			logging.Packet(info),
			"features", fv.Array(),
			logging.Err(err),
		)
		return
	}

	malicious := label == ml.LabelMalicious
	if malicious {
		d.counters.malicious.Add(1)
	}
	metrics.ObserveVerdict(malicious, latency)

	if len(d.reporters) == 0 {
		return
	}

	v := &models.Verdict{
		SessionID:     d.counters.sessionID,
		Sequence:      seq,
		Timestamp:     info.Timestamp(),
		TimestampNano: info.TimestampNano,
		SrcIP:         info.SrcIP,
		DstIP:         info.DstIP,
		SrcPort:       info.SrcPort,
		DstPort:       info.DstPort,
		Transport:     info.TransportName(),
		Features:      fv.Array(),
		Label:         int(label),
		Malicious:     malicious,
		Raw:           data,
		Info:          info,
	}
	if info.TimestampNano == 0 {
		v.Timestamp = start
		v.TimestampNano = start.UnixNano()
	}

	for _, r := range d.reporters {
		r.Report(v)
	}
}

// Summary logs the session totals.
func (d *Detector) Summary() models.DetectionStats {
	s := d.counters.Snapshot()
	d.log.Info("session summary",
		"session_id", s.SessionID,
		logging.Counters(s),
		logging.Duration("elapsed", time.Since(s.StartTime)),
	)
	return s
}
