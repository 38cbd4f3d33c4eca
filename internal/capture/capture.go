// Package capture delivers captured frames, one at a time, to a packet
// handler. It supports libpcap live capture, AF_PACKET with TPACKET_V3 on
// Linux, and offline replay of pcap/pcapng files.
//
// Every engine calls its handler from a single goroutine, so handlers never
// run concurrently.
package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopacket/gopacket/layers"

	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/logging"
	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/metrics"
	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/models"
)

// CaptureMode defines the packet capture method.
type CaptureMode int

const (
	// ModePCAP captures live through libpcap.
	ModePCAP CaptureMode = iota
	// ModeAFPacket uses AF_PACKET with TPACKET_V3 (Linux only).
	ModeAFPacket
	// ModeFile replays a pcap or pcapng file.
	ModeFile
)

// String returns the configuration name of the mode.
func (m CaptureMode) String() string {
	switch m {
	case ModePCAP:
		return "pcap"
	case ModeAFPacket:
		return "afpacket"
	case ModeFile:
		return "file"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses a configuration mode name.
func ParseMode(s string) (CaptureMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pcap", "live", "":
		return ModePCAP, nil
	case "afpacket", "af_packet":
		return ModeAFPacket, nil
	case "file", "offline":
		return ModeFile, nil
	default:
		return 0, fmt.Errorf("capture: unknown mode %q", s)
	}
}

// Config holds the configuration for the capture engine.
type Config struct {
	// Interface is the network interface to capture from.
	Interface string

	// Mode specifies the capture method.
	Mode CaptureMode

	// PcapFile is the path to a capture file (only used in ModeFile).
	PcapFile string

	// SnapLen is the maximum bytes to capture per packet.
	SnapLen int

	// Promiscuous enables promiscuous mode on the interface.
	Promiscuous bool

	// BPFFilter is an optional BPF filter expression for live modes.
	BPFFilter string

	// Timeout is the libpcap read timeout and the AF_PACKET poll timeout.
	Timeout time.Duration

	// RingBufferSize is the AF_PACKET ring size in bytes.
	RingBufferSize int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(iface string) *Config {
	return &Config{
		Interface:      iface,
		Mode:           ModePCAP,
		SnapLen:        65535,
		Promiscuous:    true,
		Timeout:        500 * time.Millisecond,
		RingBufferSize: 16 * 1024 * 1024,
	}
}

// PacketHandler is a function that processes captured packets. data is only
// valid for the duration of the call.
type PacketHandler func(data []byte, info *models.PacketInfo)

// Engine is the interface for all capture engines.
type Engine interface {
	// Start begins packet capture. It returns once the source is open.
	Start(ctx context.Context) error

	// Stop halts packet capture.
	Stop() error

	// Stats returns current capture statistics.
	Stats() *models.CaptureStats

	// SetHandler sets the packet handler callback.
	SetHandler(handler PacketHandler)

	// LinkType returns the link type of delivered frames. It is only
	// meaningful after Start.
	LinkType() layers.LinkType

	// Done returns a channel that is closed when capture ends on its own
	// (end of file, or a fatal read error).
	Done() <-chan struct{}
}

// CaptureEngine selects an engine for the configured mode and feeds the
// capture metrics.
type CaptureEngine struct {
	config *Config
	log    *logging.Logger
	mu     sync.RWMutex

	// The handler has its own lock so that Stop can wait for the read
	// loop while holding mu.
	handler   PacketHandler
	handlerMu sync.RWMutex

	running   bool
	startTime time.Time
	dropped   uint64
	engine    Engine
	// active mirrors engine for lock-free reads from the handler.
	active atomic.Value
}

// New creates a new CaptureEngine with the given configuration.
func New(cfg *Config) (*CaptureEngine, error) {
	if cfg == nil {
		return nil, errors.New("capture: config cannot be nil")
	}

	switch cfg.Mode {
	case ModePCAP, ModeAFPacket:
		if cfg.Interface == "" {
			return nil, errors.New("capture: interface is required for live capture")
		}
	case ModeFile:
		if cfg.PcapFile == "" {
			return nil, errors.New("capture: pcap file path is required for file mode")
		}
		if cfg.BPFFilter != "" {
			return nil, errors.New("capture: BPF filters are not supported in file mode")
		}
	default:
		return nil, fmt.Errorf("capture: unknown mode %d", cfg.Mode)
	}

	return &CaptureEngine{
		config: cfg,
		log:    logging.CaptureLogger(),
	}, nil
}

// Start begins packet capture.
func (ce *CaptureEngine) Start(ctx context.Context) error {
	ce.mu.Lock()
	defer ce.mu.Unlock()

	if ce.running {
		return errors.New("capture: engine already running")
	}

	var (
		engine Engine
		err    error
	)
	switch ce.config.Mode {
	case ModePCAP:
		engine, err = NewPCAPEngine(ce.config)
	case ModeAFPacket:
		engine, err = NewAFPacketEngine(ce.config)
	case ModeFile:
		engine, err = NewFileEngine(ce.config)
	}
	if err != nil {
		return fmt.Errorf("capture: failed to create %s engine: %w", ce.config.Mode, err)
	}

	engine.SetHandler(ce.processPacket)
	ce.active.Store(engineBox{engine})
	ce.startTime = time.Now()
	if err := engine.Start(ctx); err != nil {
		return err
	}

	ce.engine = engine
	ce.running = true

	ce.log.Info("capture started",
		"mode", ce.config.Mode.String(),
		"source", ce.source(),
		"filter", ce.config.BPFFilter,
		"link_type", engine.LinkType().String(),
	)
	return nil
}

// Stop halts packet capture.
func (ce *CaptureEngine) Stop() error {
	ce.mu.Lock()
	defer ce.mu.Unlock()

	if !ce.running {
		return errors.New("capture: engine not running")
	}
	ce.running = false

	err := ce.engine.Stop()
	stats := ce.engine.Stats()
	ce.log.Info("capture stopped",
		"packets", stats.PacketsReceived,
		"bytes", stats.BytesReceived,
		"dropped", stats.PacketsDropped,
	)
	return err
}

// Stats returns current capture statistics and refreshes the capture gauges.
func (ce *CaptureEngine) Stats() *models.CaptureStats {
	ce.mu.Lock()
	defer ce.mu.Unlock()

	if ce.engine == nil {
		return &models.CaptureStats{
			Interface:     ce.source(),
			CaptureFilter: ce.config.BPFFilter,
			LastUpdate:    time.Now(),
		}
	}

	stats := ce.engine.Stats()
	if stats.PacketsDropped > ce.dropped {
		metrics.PacketsDropped.Add(float64(stats.PacketsDropped - ce.dropped))
		ce.dropped = stats.PacketsDropped
	}
	if elapsed := time.Since(ce.startTime).Seconds(); elapsed > 0 {
		metrics.CaptureUptime.Set(elapsed)
	}
	return stats
}

// SetHandler sets the packet handler callback.
func (ce *CaptureEngine) SetHandler(handler PacketHandler) {
	ce.handlerMu.Lock()
	defer ce.handlerMu.Unlock()
	ce.handler = handler
}

// IsRunning returns whether the capture engine is currently running.
func (ce *CaptureEngine) IsRunning() bool {
	ce.mu.RLock()
	defer ce.mu.RUnlock()
	return ce.running
}

// LinkType returns the link type of the running engine. It is safe to call
// from the packet handler.
func (ce *CaptureEngine) LinkType() layers.LinkType {
	box, ok := ce.active.Load().(engineBox)
	if !ok {
		return layers.LinkTypeEthernet
	}
	return box.Engine.LinkType()
}

// engineBox gives atomic.Value a single concrete type to store.
type engineBox struct{ Engine }

// Done returns a channel that is closed when capture is complete.
func (ce *CaptureEngine) Done() <-chan struct{} {
	ce.mu.RLock()
	defer ce.mu.RUnlock()

	if ce.engine != nil {
		return ce.engine.Done()
	}
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (ce *CaptureEngine) source() string {
	if ce.config.Mode == ModeFile {
		return ce.config.PcapFile
	}
	return ce.config.Interface
}

// processPacket counts the frame and forwards it to the handler.
func (ce *CaptureEngine) processPacket(data []byte, info *models.PacketInfo) {
	metrics.PacketsReceived.Inc()
	metrics.BytesReceived.Add(float64(len(data)))

	ce.handlerMu.RLock()
	handler := ce.handler
	ce.handlerMu.RUnlock()

	if handler != nil {
		handler(data, info)
	}
}

var _ Engine = (*CaptureEngine)(nil)
