// Package metrics provides Prometheus metrics export for the intrusion detector.
// Exposes capture statistics, classification outcomes and artifact identity.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ids"

// =============================================================================
// Capture Metrics
// =============================================================================

var (
	// PacketsReceived counts frames delivered by the capture layer.
	PacketsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "capture_packets_received_total",
		Help:      "Total number of frames delivered by the capture layer.",
	})

	// BytesReceived counts captured bytes.
	BytesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "capture_bytes_received_total",
		Help:      "Total number of captured bytes.",
	})

	// PacketsDropped counts frames dropped by the kernel or capture library.
	PacketsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "capture_packets_dropped_total",
		Help:      "Total number of frames dropped before delivery.",
	})

	// CaptureUptime reports seconds since capture start.
	CaptureUptime = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "capture_uptime_seconds",
		Help:      "Seconds since the capture session started.",
	})
)

// =============================================================================
// Detection Metrics
// =============================================================================

var (
	// PacketsClassified counts classified packets by verdict ("normal" or "malicious").
	PacketsClassified = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "packets_classified_total",
		Help:      "Total number of IP packets classified, by verdict.",
	}, []string{"verdict"})

	// PacketsSkipped counts frames without an IPv4 header.
	PacketsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "packets_skipped_total",
		Help:      "Total number of frames skipped because they carry no IPv4 header.",
	})

	// ClassificationErrors counts inference failures.
	ClassificationErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "classification_errors_total",
		Help:      "Total number of packets whose classification failed.",
	})

	// ClassificationLatency observes per-packet pipeline latency.
	ClassificationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "classification_latency_seconds",
		Help:      "Latency of feature extraction plus classification per packet.",
		Buckets:   []float64{.000001, .000005, .00001, .00005, .0001, .0005, .001, .005, .01},
	})

	// ArtifactInfo is set to 1 for the loaded artifact.
	ArtifactInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "artifact_info",
		Help:      "Identity of the loaded classifier artifact.",
	}, []string{"scaler", "model", "fingerprint"})

	// StreamClients reports connected websocket clients.
	StreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "stream_clients",
		Help:      "Number of connected websocket stream clients.",
	})
)

// Verdict label values.
const (
	VerdictNormal    = "normal"
	VerdictMalicious = "malicious"
)

// ObserveVerdict records one classified packet.
func ObserveVerdict(malicious bool, latency time.Duration) {
	if malicious {
		PacketsClassified.WithLabelValues(VerdictMalicious).Inc()
	} else {
		PacketsClassified.WithLabelValues(VerdictNormal).Inc()
	}
	ClassificationLatency.Observe(latency.Seconds())
}

// SetArtifact records the identity of the loaded artifact.
func SetArtifact(scalerKind, modelKind, fingerprint string) {
	ArtifactInfo.Reset()
	ArtifactInfo.WithLabelValues(scalerKind, modelKind, fingerprint).Set(1)
}

// =============================================================================
// HTTP Handler
// =============================================================================

// Handler returns an HTTP handler for the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Server is a Prometheus metrics HTTP server.
type Server struct {
	server *http.Server
	addr   string
}

// NewServer creates a new metrics server.
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		addr: addr,
	}
}

// Start starts the metrics server. It blocks until the server stops and
// returns nil after a clean shutdown.
func (s *Server) Start() error {
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully stops the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}
