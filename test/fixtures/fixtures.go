// Package fixtures provides test frames, capture files and classifier
// artifacts for the detector tests.
package fixtures

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcapgo"
)

// Addresses used by generated frames.
var (
	ClientMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	ServerMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
)

// =============================================================================
// Packet Fixtures
// =============================================================================

// PacketFixture generates serialized Ethernet frames.
type PacketFixture struct {
	baseTime time.Time
	counter  int
}

// NewPacketFixture creates a new packet fixture generator
func NewPacketFixture() *PacketFixture {
	return &PacketFixture{
		baseTime: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// Frame is a serialized frame with its capture time.
type Frame struct {
	Data      []byte
	Timestamp time.Time
}

// CaptureInfo returns capture metadata for the frame.
func (f Frame) CaptureInfo() gopacket.CaptureInfo {
	return gopacket.CaptureInfo{
		Timestamp:     f.Timestamp,
		CaptureLength: len(f.Data),
		Length:        len(f.Data),
	}
}

// Packet decodes the frame as Ethernet, carrying its capture metadata.
func (f Frame) Packet() gopacket.Packet {
	p := gopacket.NewPacket(f.Data, layers.LayerTypeEthernet, gopacket.Default)
	p.Metadata().CaptureInfo = f.CaptureInfo()
	return p
}

func (pf *PacketFixture) next(ls ...gopacket.SerializableLayer) Frame {
	pf.counter++
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, ls...); err != nil {
		panic(fmt.Sprintf("fixtures: serialize: %v", err))
	}
	return Frame{
		Data:      append([]byte(nil), buf.Bytes()...),
		Timestamp: pf.baseTime.Add(time.Duration(pf.counter) * time.Millisecond),
	}
}

func ethernet(t layers.EthernetType) *layers.Ethernet {
	return &layers.Ethernet{SrcMAC: ClientMAC, DstMAC: ServerMAC, EthernetType: t}
}

func ipv4(src, dst string, proto layers.IPProtocol) *layers.IPv4 {
	return &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: proto,
		SrcIP:    net.ParseIP(src).To4(),
		DstIP:    net.ParseIP(dst).To4(),
	}
}

// TCPFrame generates an Ethernet/IPv4/TCP frame.
func (pf *PacketFixture) TCPFrame(srcIP, dstIP string, srcPort, dstPort uint16, payload []byte) Frame {
	ip := ipv4(srcIP, dstIP, layers.IPProtocolTCP)
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(srcPort),
		DstPort: layers.TCPPort(dstPort),
		Seq:     1000,
		ACK:     true,
		PSH:     len(payload) > 0,
		Window:  65535,
	}
	tcp.SetNetworkLayerForChecksum(ip)
	return pf.next(ethernet(layers.EthernetTypeIPv4), ip, tcp, gopacket.Payload(payload))
}

// UDPFrame generates an Ethernet/IPv4/UDP frame.
func (pf *PacketFixture) UDPFrame(srcIP, dstIP string, srcPort, dstPort uint16, payload []byte) Frame {
	ip := ipv4(srcIP, dstIP, layers.IPProtocolUDP)
	udp := &layers.UDP{SrcPort: layers.UDPPort(srcPort), DstPort: layers.UDPPort(dstPort)}
	udp.SetNetworkLayerForChecksum(ip)
	return pf.next(ethernet(layers.EthernetTypeIPv4), ip, udp, gopacket.Payload(payload))
}

// ICMPFrame generates an Ethernet/IPv4/ICMP echo request.
func (pf *PacketFixture) ICMPFrame(srcIP, dstIP string) Frame {
	ip := ipv4(srcIP, dstIP, layers.IPProtocolICMPv4)
	icmp := &layers.ICMPv4{
		TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0),
		Id:       1,
		Seq:      1,
	}
	return pf.next(ethernet(layers.EthernetTypeIPv4), ip, icmp, gopacket.Payload([]byte("ping")))
}

// ARPFrame generates a frame without any IP header.
func (pf *PacketFixture) ARPFrame() Frame {
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   ClientMAC,
		SourceProtAddress: net.ParseIP("192.168.1.10").To4(),
		DstHwAddress:      make([]byte, 6),
		DstProtAddress:    net.ParseIP("192.168.1.1").To4(),
	}
	return pf.next(ethernet(layers.EthernetTypeARP), arp)
}

// IPv6UDPFrame generates a UDP frame over IPv6, which has no IPv4 header.
func (pf *PacketFixture) IPv6UDPFrame() Frame {
	ip := &layers.IPv6{
		Version:    6,
		HopLimit:   64,
		NextHeader: layers.IPProtocolUDP,
		SrcIP:      net.ParseIP("fd00::1"),
		DstIP:      net.ParseIP("fd00::2"),
	}
	udp := &layers.UDP{SrcPort: 5353, DstPort: 5353}
	udp.SetNetworkLayerForChecksum(ip)
	return pf.next(ethernet(layers.EthernetTypeIPv6), ip, udp, gopacket.Payload([]byte("mdns")))
}

// TCPFrameSized generates a TCP frame of exactly frameLen bytes whose IPv4
// header declares ipTotalLength. The bytes past the declared length act as
// link-layer padding.
func (pf *PacketFixture) TCPFrameSized(frameLen int, ipTotalLength uint16) Frame {
	const headers = 14 + 20 + 20
	if frameLen < headers {
		panic("fixtures: frame too short for Ethernet/IPv4/TCP")
	}
	f := pf.TCPFrame("10.0.0.5", "10.0.0.9", 40000, 80, make([]byte, frameLen-headers))
	SetIPv4TotalLength(f.Data, ipTotalLength)
	return f
}

// SetIPv4TotalLength rewrites the total-length field of an Ethernet/IPv4
// frame. The header checksum is left stale.
func SetIPv4TotalLength(frame []byte, n uint16) {
	binary.BigEndian.PutUint16(frame[14+2:], n)
}

// RandomPayload returns n random bytes.
func RandomPayload(n int) []byte {
	b := make([]byte, n)
	rand.Read(b)
	return b
}

// =============================================================================
// Capture Files
// =============================================================================

// WritePcap writes frames to a new pcap file at path.
func WritePcap(path string, frames ...Frame) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65535, layers.LinkTypeEthernet); err != nil {
		return err
	}
	for _, fr := range frames {
		if err := w.WritePacket(fr.CaptureInfo(), fr.Data); err != nil {
			return err
		}
	}
	return nil
}

// WritePcapNg writes frames to a new pcapng file at path.
func WritePcapNg(path string, frames ...Frame) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := pcapgo.NewNgWriter(f, layers.LinkTypeEthernet)
	if err != nil {
		return err
	}
	for _, fr := range frames {
		if err := w.WritePacket(fr.CaptureInfo(), fr.Data); err != nil {
			return err
		}
	}
	return w.Flush()
}

// =============================================================================
// Classifier Artifacts
// =============================================================================

// SizeThreshold is the packet size above which the artifact written by
// WriteArtifact labels a packet malicious.
const SizeThreshold = 512

// WriteArtifact writes a scaler/model pair to dir that labels a packet
// malicious exactly when packet_size > SizeThreshold.
func WriteArtifact(dir string) (scalerPath, modelPath string, err error) {
	scaler := map[string]any{
		"kind":          "standard",
		"feature_names": []string{"protocol", "packet_size", "response_size"},
		"mean":          []float64{1, SizeThreshold, 500},
		"scale":         []float64{1, 256, 256},
	}
	model := map[string]any{
		"kind":          "logistic_regression",
		"feature_names": []string{"protocol", "packet_size", "response_size"},
		"classes":       []int{0, 1},
		"coef":          [][]float64{{0, 4, 0}},
		"intercept":     []float64{0},
	}

	scalerPath = filepath.Join(dir, "live_scaler.json")
	modelPath = filepath.Join(dir, "live_ids_model.json")
	if err := writeJSON(scalerPath, scaler); err != nil {
		return "", "", err
	}
	if err := writeJSON(modelPath, model); err != nil {
		return "", "", err
	}
	return scalerPath, modelPath, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// =============================================================================
// Dataset Fixtures
// =============================================================================

// DatasetCSV returns header-less rows in the layout the report tool reads:
// protocol code in the second column, label in the second-to-last.
func DatasetCSV() string {
	return "" +
		"0,tcp,http,SF,215,45076,normal,21\n" +
		"0,udp,private,SF,105,146,normal,18\n" +
		"0,tcp,private,S0,0,0,neptune,19\n" +
		"0,icmp,ecr_i,SF,1032,0,smurf,16\n" +
		"0,tcp,http,SF,162,4528,normal,21\n" +
		"0,tcp,private,REJ,0,0,neptune,20\n"
}
