//go:build linux

package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopacket/gopacket/afpacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcap"
	"golang.org/x/net/bpf"

	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/logging"
	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/models"
)

// AFPacketEngine implements packet capture using AF_PACKET with TPACKET_V3.
type AFPacketEngine struct {
	config  *Config
	handler PacketHandler
	stats   *afpacketStats
	mu      sync.RWMutex
	log     *logging.Logger

	tpacket *afpacket.TPacket

	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}
}

// afpacketStats holds atomic counters for capture statistics.
type afpacketStats struct {
	packetsReceived uint64
	bytesReceived   uint64
	startTime       time.Time
}

// NewAFPacketEngine creates a new AF_PACKET capture engine.
func NewAFPacketEngine(cfg *Config) (*AFPacketEngine, error) {
	if cfg == nil {
		return nil, errors.New("afpacket: config cannot be nil")
	}
	if cfg.Interface == "" {
		return nil, errors.New("afpacket: interface is required")
	}

	return &AFPacketEngine{
		config: cfg,
		stats:  &afpacketStats{},
		log:    logging.CaptureLogger(),
		done:   make(chan struct{}),
	}, nil
}

// Start begins AF_PACKET packet capture.
func (e *AFPacketEngine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.tpacket != nil {
		return errors.New("afpacket: engine already running")
	}

	bufferSize := e.config.RingBufferSize
	if bufferSize <= 0 {
		bufferSize = 16 * 1024 * 1024
	}
	snapLen := e.config.SnapLen
	if snapLen <= 0 {
		snapLen = 65535
	}
	frameSize, blockSize, numBlocks, err := ringSizes(bufferSize, snapLen)
	if err != nil {
		return fmt.Errorf("afpacket: %w", err)
	}
	pollTimeout := e.config.Timeout
	if pollTimeout <= 0 {
		pollTimeout = 100 * time.Millisecond
	}

	tpacket, err := afpacket.NewTPacket(
		afpacket.OptInterface(e.config.Interface),
		afpacket.OptFrameSize(frameSize),
		afpacket.OptBlockSize(blockSize),
		afpacket.OptNumBlocks(numBlocks),
		afpacket.OptBlockTimeout(100*time.Millisecond),
		afpacket.OptPollTimeout(pollTimeout),
		afpacket.TPacketVersion3,
	)
	if err != nil {
		return fmt.Errorf("afpacket: failed to create TPacket: %w", err)
	}

	if e.config.BPFFilter != "" {
		if err := setBPF(tpacket, e.config.BPFFilter, snapLen); err != nil {
			tpacket.Close()
			return fmt.Errorf("afpacket: failed to set BPF filter: %w", err)
		}
	}
	if e.config.Promiscuous {
		e.log.Debug("afpacket leaves promiscuous mode to the interface configuration",
			"interface", e.config.Interface)
	}

	e.tpacket = tpacket
	e.stats.startTime = time.Now()

	ctx, e.cancel = context.WithCancel(ctx)
	e.wg.Add(1)
	go e.captureLoop(ctx)

	return nil
}

// ringSizes derives TPACKET_V3 geometry. Frames are a multiple of 16 bytes
// and blocks a multiple of the page size holding whole frames.
func ringSizes(bufferSize, snapLen int) (frameSize, blockSize, numBlocks int, err error) {
	const pageSize = 4096

	frameSize = (snapLen + 15) &^ 15
	blockSize = pageSize
	for blockSize < frameSize {
		blockSize <<= 1
	}
	// A few frames per block keep the block timeout meaningful.
	for blockSize < frameSize*4 && blockSize < bufferSize {
		blockSize <<= 1
	}
	numBlocks = bufferSize / blockSize
	if numBlocks < 1 {
		return 0, 0, 0, fmt.Errorf("ring buffer of %d bytes cannot hold a %d byte frame", bufferSize, frameSize)
	}
	return frameSize, blockSize, numBlocks, nil
}

// setBPF compiles filter with libpcap and attaches it to the socket.
func setBPF(tp *afpacket.TPacket, filter string, snapLen int) error {
	insns, err := pcap.CompileBPFFilter(layers.LinkTypeEthernet, snapLen, filter)
	if err != nil {
		return err
	}
	raw := make([]bpf.RawInstruction, len(insns))
	for i, ins := range insns {
		raw[i] = bpf.RawInstruction{Op: ins.Code, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	return tp.SetBPF(raw)
}

// Stop halts AF_PACKET packet capture.
func (e *AFPacketEngine) Stop() error {
	e.mu.Lock()
	if e.tpacket == nil {
		e.mu.Unlock()
		return errors.New("afpacket: engine not running")
	}
	e.cancel()
	e.mu.Unlock()

	// The capture loop takes the read lock for every packet.
	e.wg.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.tpacket.Close()
	e.tpacket = nil
	return nil
}

// Stats returns current capture statistics.
func (e *AFPacketEngine) Stats() *models.CaptureStats {
	received := atomic.LoadUint64(&e.stats.packetsReceived)
	bytes := atomic.LoadUint64(&e.stats.bytesReceived)

	var dropped uint64
	e.mu.RLock()
	if e.tpacket != nil {
		if _, kernelStats, err := e.tpacket.SocketStats(); err == nil {
			dropped = uint64(kernelStats.Drops())
		}
	}
	e.mu.RUnlock()

	stats := &models.CaptureStats{
		PacketsReceived: received,
		PacketsDropped:  dropped,
		BytesReceived:   bytes,
		StartTime:       e.stats.startTime,
		LastUpdate:      time.Now(),
		Interface:       e.config.Interface,
		PromiscuousMode: e.config.Promiscuous,
		CaptureFilter:   e.config.BPFFilter,
	}
	if elapsed := time.Since(e.stats.startTime).Seconds(); elapsed > 0 && !e.stats.startTime.IsZero() {
		stats.PacketsPerSecond = float64(received) / elapsed
		stats.BytesPerSecond = float64(bytes) / elapsed
	}
	return stats
}

// SetHandler sets the packet handler callback.
func (e *AFPacketEngine) SetHandler(handler PacketHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handler = handler
}

// LinkType returns Ethernet; AF_PACKET delivers link-layer frames.
func (e *AFPacketEngine) LinkType() layers.LinkType {
	return layers.LinkTypeEthernet
}

// Done returns a channel that is closed if the capture loop fails.
func (e *AFPacketEngine) Done() <-chan struct{} {
	return e.done
}

// captureLoop is the main packet capture loop.
func (e *AFPacketEngine) captureLoop(ctx context.Context) {
	defer e.wg.Done()
	defer close(e.done)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		data, ci, err := e.tpacket.ZeroCopyReadPacketData()
		switch {
		case err == nil:
		case errors.Is(err, afpacket.ErrTimeout), errors.Is(err, afpacket.ErrPoll):
			continue
		default:
			if ctx.Err() == nil {
				e.log.Error("read failed, stopping capture", logging.Err(err))
			}
			return
		}

		atomic.AddUint64(&e.stats.packetsReceived, 1)
		atomic.AddUint64(&e.stats.bytesReceived, uint64(len(data)))

		e.mu.RLock()
		handler := e.handler
		e.mu.RUnlock()

		if handler == nil {
			continue
		}

		packet := decodeFrame(data, ci, layers.LinkTypeEthernet)
		handler(data, ParsePacketInfo(packet, e.config.Interface))
	}
}

var _ Engine = (*AFPacketEngine)(nil)
