package capture

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcapgo"

	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/logging"
	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/models"
)

// pcapngMagic is the section header block type that starts every pcapng file.
const pcapngMagic = 0x0A0D0D0A

// packetReader is satisfied by both pcapgo readers.
type packetReader interface {
	gopacket.ZeroCopyPacketDataSource
	LinkType() layers.LinkType
}

// FileEngine replays a pcap or pcapng file without libpcap.
type FileEngine struct {
	config  *Config
	handler PacketHandler
	stats   *fileStats
	mu      sync.RWMutex
	log     *logging.Logger

	file     *os.File
	reader   packetReader
	linkType layers.LinkType
	running  int32
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	done     chan struct{}
}

// fileStats holds replay statistics.
type fileStats struct {
	PacketsRead uint64
	BytesRead   uint64
	ReadErrors  uint64
	StartTime   time.Time
}

// NewFileEngine creates a new capture file reader.
func NewFileEngine(cfg *Config) (*FileEngine, error) {
	if cfg == nil {
		return nil, errors.New("capture: config cannot be nil")
	}
	if cfg.PcapFile == "" {
		return nil, errors.New("capture: pcap file path is required")
	}

	return &FileEngine{
		config: cfg,
		stats:  &fileStats{},
		log:    logging.CaptureLogger(),
		done:   make(chan struct{}),
	}, nil
}

// Start opens the file and begins replaying packets.
func (e *FileEngine) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&e.running, 0, 1) {
		return errors.New("capture: engine already running")
	}

	f, err := os.Open(e.config.PcapFile)
	if err != nil {
		atomic.StoreInt32(&e.running, 0)
		return fmt.Errorf("capture: failed to open capture file: %w", err)
	}

	reader, err := openReader(f)
	if err != nil {
		f.Close()
		atomic.StoreInt32(&e.running, 0)
		return fmt.Errorf("capture: %s: %w", e.config.PcapFile, err)
	}

	e.file = f
	e.reader = reader
	e.linkType = reader.LinkType()
	e.stats.StartTime = time.Now()

	ctx, e.cancel = context.WithCancel(ctx)
	e.wg.Add(1)
	go e.readLoop(ctx)

	return nil
}

// openReader picks the pcap or pcapng reader from the file magic.
func openReader(r io.Reader) (packetReader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("failed to read file header: %w", err)
	}

	if binary.LittleEndian.Uint32(magic) == pcapngMagic {
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, fmt.Errorf("invalid pcapng file: %w", err)
		}
		return ng, nil
	}

	pr, err := pcapgo.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("invalid pcap file: %w", err)
	}
	return pr, nil
}

// Stop halts replay and waits for the read loop to exit.
func (e *FileEngine) Stop() error {
	if atomic.LoadInt32(&e.running) == 0 && e.file == nil {
		return errors.New("capture: engine not running")
	}
	atomic.StoreInt32(&e.running, 0)

	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()

	if e.file != nil {
		e.file.Close()
		e.file = nil
	}
	return nil
}

// Stats returns current replay statistics.
func (e *FileEngine) Stats() *models.CaptureStats {
	return &models.CaptureStats{
		PacketsReceived: atomic.LoadUint64(&e.stats.PacketsRead),
		BytesReceived:   atomic.LoadUint64(&e.stats.BytesRead),
		PacketsDropped:  0, // No drops in offline mode
		StartTime:       e.stats.StartTime,
		LastUpdate:      time.Now(),
		Interface:       e.config.PcapFile,
	}
}

// SetHandler sets the packet handler callback.
func (e *FileEngine) SetHandler(handler PacketHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handler = handler
}

// LinkType returns the link type recorded in the file header.
func (e *FileEngine) LinkType() layers.LinkType {
	return e.linkType
}

// Done returns a channel that is closed when the whole file has been replayed.
func (e *FileEngine) Done() <-chan struct{} {
	return e.done
}

// readLoop replays packets until end of file or cancellation. A truncated
// final record ends the replay like end of file does.
func (e *FileEngine) readLoop(ctx context.Context) {
	defer e.wg.Done()
	defer close(e.done)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		data, ci, err := e.reader.ZeroCopyReadPacketData()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				atomic.AddUint64(&e.stats.ReadErrors, 1)
				e.log.Warn("capture file ended early", "file", e.config.PcapFile, logging.Err(err))
			}
			e.log.Debug("capture file replayed",
				"file", e.config.PcapFile,
				"packets", atomic.LoadUint64(&e.stats.PacketsRead))
			return
		}

		e.processPacket(data, ci)
	}
}

func (e *FileEngine) processPacket(data []byte, ci gopacket.CaptureInfo) {
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
	handler(data, ParsePacketInfo(packet, e.config.PcapFile))
}

var _ Engine = (*FileEngine)(nil)
