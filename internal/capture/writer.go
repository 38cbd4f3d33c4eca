package capture

import (
	"bufio"
	"fmt"
	"os"
	"sync"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcapgo"

	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/logging"
	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/models"
)

// PcapWriter saves the frames of malicious verdicts to a pcap file. The file
// header is written with the first packet, once the link type is known.
type PcapWriter struct {
	path     string
	snapLen  uint32
	linkType func() layers.LinkType

	mu      sync.Mutex
	file    *os.File
	buf     *bufio.Writer
	w       *pcapgo.Writer
	written uint64
	log     *logging.Logger
}

// NewPcapWriter creates path and returns a writer for it. linkType is
// consulted once, when the first packet arrives.
func NewPcapWriter(path string, snapLen int, linkType func() layers.LinkType) (*PcapWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("capture: create %s: %w", path, err)
	}
	if snapLen <= 0 {
		snapLen = 65535
	}
	if linkType == nil {
		linkType = func() layers.LinkType { return layers.LinkTypeEthernet }
	}

	return &PcapWriter{
		path:     path,
		snapLen:  uint32(snapLen),
		linkType: linkType,
		file:     f,
		buf:      bufio.NewWriter(f),
		log:      logging.CaptureLogger(),
	}, nil
}

// Report writes the raw frame of a malicious verdict. Normal verdicts and
// verdicts without a frame are ignored.
func (pw *PcapWriter) Report(v *models.Verdict) {
	if !v.Malicious || len(v.Raw) == 0 {
		return
	}
	if err := pw.WritePacket(v); err != nil {
		pw.log.Warn("failed to save packet", "file", pw.path, logging.Err(err))
	}
}

// WritePacket appends v's frame to the file.
func (pw *PcapWriter) WritePacket(v *models.Verdict) error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if pw.file == nil {
		return fmt.Errorf("capture: %s is closed", pw.path)
	}

	if pw.w == nil {
		pw.w = pcapgo.NewWriterNanos(pw.buf)
		if err := pw.w.WriteFileHeader(pw.snapLen, pw.linkType()); err != nil {
			return err
		}
	}

	length := len(v.Raw)
	if v.Info != nil && int(v.Info.Length) > length {
		length = int(v.Info.Length)
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     v.Timestamp,
		CaptureLength: len(v.Raw),
		Length:        length,
	}
	if err := pw.w.WritePacket(ci, v.Raw); err != nil {
		return err
	}
	pw.written++
	return nil
}

// Written returns the number of packets saved so far.
func (pw *PcapWriter) Written() uint64 {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	return pw.written
}

// Close flushes and closes the file. A file that never received a packet
// still gets a valid header.
func (pw *PcapWriter) Close() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if pw.file == nil {
		return nil
	}
	if pw.w == nil {
		pw.w = pcapgo.NewWriterNanos(pw.buf)
		if err := pw.w.WriteFileHeader(pw.snapLen, pw.linkType()); err != nil {
			pw.file.Close()
			pw.file = nil
			return err
		}
	}

	err := pw.buf.Flush()
	if cerr := pw.file.Close(); err == nil {
		err = cerr
	}
	pw.file = nil

	pw.log.Info("saved malicious packets", "file", pw.path, "packets", pw.written)
	return err
}
