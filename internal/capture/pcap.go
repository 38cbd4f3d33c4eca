package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcap"

	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/logging"
	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/models"
)

// PCAPEngine captures live traffic through libpcap.
type PCAPEngine struct {
	config  *Config
	handler PacketHandler
	stats   *pcapStats
	mu      sync.RWMutex
	log     *logging.Logger

	handle   *pcap.Handle
	linkType layers.LinkType
	running  int32
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	done     chan struct{}
}

// pcapStats holds capture counters updated by the read loop.
type pcapStats struct {
	PacketsRead uint64
	BytesRead   uint64
	StartTime   time.Time
}

// NewPCAPEngine creates a new libpcap capture engine.
func NewPCAPEngine(cfg *Config) (*PCAPEngine, error) {
	if cfg == nil {
		return nil, errors.New("capture: config cannot be nil")
	}
	if cfg.Interface == "" {
		return nil, errors.New("capture: interface is required")
	}

	return &PCAPEngine{
		config: cfg,
		stats:  &pcapStats{},
		log:    logging.CaptureLogger(),
		done:   make(chan struct{}),
	}, nil
}

// Start opens the interface and begins reading packets.
func (e *PCAPEngine) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&e.running, 0, 1) {
		return errors.New("capture: engine already running")
	}

	snapLen := e.config.SnapLen
	if snapLen <= 0 {
		snapLen = 65535
	}
	timeout := e.config.Timeout
	if timeout <= 0 {
		timeout = pcap.BlockForever
	}

	handle, err := pcap.OpenLive(e.config.Interface, int32(snapLen), e.config.Promiscuous, timeout)
	if err != nil {
		atomic.StoreInt32(&e.running, 0)
		return fmt.Errorf("capture: failed to open %s: %w", e.config.Interface, err)
	}

	if e.config.BPFFilter != "" {
		if err := handle.SetBPFFilter(e.config.BPFFilter); err != nil {
			handle.Close()
			atomic.StoreInt32(&e.running, 0)
			return fmt.Errorf("capture: failed to set BPF filter: %w", err)
		}
	}

	e.handle = handle
	e.linkType = handle.LinkType()
	e.stats.StartTime = time.Now()

	ctx, e.cancel = context.WithCancel(ctx)
	e.wg.Add(1)
	go e.readLoop(ctx)

	return nil
}

// Stop halts capture and waits for the read loop to exit.
func (e *PCAPEngine) Stop() error {
	if !atomic.CompareAndSwapInt32(&e.running, 1, 0) {
		return errors.New("capture: engine not running")
	}

	e.cancel()
	e.wg.Wait()
	e.handle.Close()
	return nil
}

// Stats returns current capture statistics, including libpcap drop counts.
func (e *PCAPEngine) Stats() *models.CaptureStats {
	received := atomic.LoadUint64(&e.stats.PacketsRead)
	bytes := atomic.LoadUint64(&e.stats.BytesRead)

	var dropped uint64
	if atomic.LoadInt32(&e.running) == 1 {
		if s, err := e.handle.Stats(); err == nil {
			dropped = uint64(s.PacketsDropped + s.PacketsIfDropped)
		}
	}

	stats := &models.CaptureStats{
		PacketsReceived: received,
		PacketsDropped:  dropped,
		BytesReceived:   bytes,
		StartTime:       e.stats.StartTime,
		LastUpdate:      time.Now(),
		Interface:       e.config.Interface,
		PromiscuousMode: e.config.Promiscuous,
		CaptureFilter:   e.config.BPFFilter,
	}
	if elapsed := time.Since(e.stats.StartTime).Seconds(); elapsed > 0 && !e.stats.StartTime.IsZero() {
		stats.PacketsPerSecond = float64(received) / elapsed
		stats.BytesPerSecond = float64(bytes) / elapsed
	}
	return stats
}

// SetHandler sets the packet handler callback.
func (e *PCAPEngine) SetHandler(handler PacketHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handler = handler
}

// LinkType returns the interface link type.
func (e *PCAPEngine) LinkType() layers.LinkType {
	return e.linkType
}

// Done returns a channel that is closed if the read loop fails.
func (e *PCAPEngine) Done() <-chan struct{} {
	return e.done
}

// readLoop reads packets until the context is cancelled. Read timeouts only
// give it a chance to observe cancellation.
func (e *PCAPEngine) readLoop(ctx context.Context) {
	defer e.wg.Done()
	defer close(e.done)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		data, ci, err := e.handle.ZeroCopyReadPacketData()
		switch {
		case err == nil:
		case errors.Is(err, pcap.NextErrorTimeoutExpired):
			continue
		default:
			if ctx.Err() == nil {
				e.log.Error("read failed, stopping capture", logging.Err(err))
			}
			return
		}

		e.processPacket(data, ci)
	}
}

func (e *PCAPEngine) processPacket(data []byte, ci gopacket.CaptureInfo) {
	if len(data) == 0 {
		return
	}

	atomic.AddUint64(&e.stats.PacketsRead, 1)
	atomic.AddUint64(&e.stats.BytesRead, uint64(len(data)))

	e.mu.RLock()
	handler := e.handler
	e.mu.RUnlock()

	if handler == nil {
		return
	}

	packet := decodeFrame(data, ci, e.linkType)
	handler(data, ParsePacketInfo(packet, e.config.Interface))
}

var _ Engine = (*PCAPEngine)(nil)
