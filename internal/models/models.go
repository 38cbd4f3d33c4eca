// Package models defines the core data structures shared by the capture layer,
// the classifier pipeline and the reporting sinks.
// All packet timestamps use nanosecond precision.
package models

import (
	"net"
	"time"
)

// IP protocol numbers carried in PacketInfo.Protocol.
const (
	IPProtoICMP uint8 = 1
	IPProtoTCP  uint8 = 6
	IPProtoUDP  uint8 = 17
)

// PacketInfo is the capture layer's view of one received frame.
//
// HasTCP, HasUDP, HasIPv4, CaptureLength and IPTotalLength are the fields the
// feature extractor consumes. Everything else is informational and only used
// when reporting a verdict.
type PacketInfo struct {
	TimestampNano int64  `json:"timestamp_nano"` // Nanosecond precision
	Length        uint32 `json:"length"`         // Original length on the wire
	CaptureLength uint32 `json:"capture_length"` // Bytes actually delivered
	Interface     string `json:"interface"`

	SrcMAC    string `json:"src_mac,omitempty"`
	DstMAC    string `json:"dst_mac,omitempty"`
	EtherType uint16 `json:"ether_type,omitempty"`

	// HasIPv4 reports an IPv4 header anywhere in the frame. IPTotalLength is
	// that header's declared total-length field and is zero otherwise.
	HasIPv4       bool   `json:"has_ipv4"`
	IPTotalLength uint16 `json:"ip_total_length,omitempty"`

	SrcIP    net.IP `json:"src_ip,omitempty"`
	DstIP    net.IP `json:"dst_ip,omitempty"`
	Protocol uint8  `json:"protocol,omitempty"`

	HasTCP   bool   `json:"has_tcp"`
	HasUDP   bool   `json:"has_udp"`
	SrcPort  uint16 `json:"src_port,omitempty"`
	DstPort  uint16 `json:"dst_port,omitempty"`
	TCPFlags uint8  `json:"tcp_flags,omitempty"`
}

// Timestamp returns the capture time as a time.Time.
func (p *PacketInfo) Timestamp() time.Time {
	return time.Unix(0, p.TimestampNano)
}

// TransportName returns "TCP", "UDP" or "OTHER" using the same precedence as
// the feature extractor.
func (p *PacketInfo) TransportName() string {
	switch {
	case p.HasTCP:
		return "TCP"
	case p.HasUDP:
		return "UDP"
	default:
		return "OTHER"
	}
}

// Verdict is the outcome of classifying one IP-bearing packet.
type Verdict struct {
	SessionID     string    `json:"session_id"`
	Sequence      uint64    `json:"sequence"` // 1-based index among classified packets
	Timestamp     time.Time `json:"timestamp"`
	TimestampNano int64     `json:"timestamp_nano"`

	SrcIP     net.IP `json:"src_ip,omitempty"`
	DstIP     net.IP `json:"dst_ip,omitempty"`
	SrcPort   uint16 `json:"src_port,omitempty"`
	DstPort   uint16 `json:"dst_port,omitempty"`
	Transport string `json:"transport"`

	// Features holds protocol, packet_size, response_size in schema order.
	Features [3]uint32 `json:"features"`

	Label     int  `json:"label"` // 0 normal, 1 malicious
	Malicious bool `json:"malicious"`

	// Raw is the captured frame. It is only valid for the duration of the
	// Report call and is never serialized.
	Raw  []byte      `json:"-"`
	Info *PacketInfo `json:"-"`
}

// CaptureStats holds real-time capture statistics.
type CaptureStats struct {
	PacketsReceived  uint64    `json:"packets_received"`
	PacketsDropped   uint64    `json:"packets_dropped"`
	BytesReceived    uint64    `json:"bytes_received"`
	PacketsPerSecond float64   `json:"packets_per_second"`
	BytesPerSecond   float64   `json:"bytes_per_second"`
	StartTime        time.Time `json:"start_time"`
	LastUpdate       time.Time `json:"last_update"`
	Interface        string    `json:"interface"`
	PromiscuousMode  bool      `json:"promiscuous_mode"`
	CaptureFilter    string    `json:"capture_filter,omitempty"`
}

// DetectionStats is a point-in-time view of the running counters.
type DetectionStats struct {
	SessionID      string    `json:"session_id"`
	PacketCount    uint64    `json:"packet_count"`
	MaliciousCount uint64    `json:"malicious_count"`
	SkippedCount   uint64    `json:"skipped_count"`
	ErrorCount     uint64    `json:"error_count"`
	StartTime      time.Time `json:"start_time"`
}

// NormalCount returns the number of packets classified as normal.
func (s DetectionStats) NormalCount() uint64 {
	return s.PacketCount - s.MaliciousCount - s.ErrorCount
}
