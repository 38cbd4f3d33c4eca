package capture

import (
	"slices"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"

	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/models"
)

// decodeOptions are shared by every engine. Handlers consume packets
// synchronously, so the frame buffer does not need to be copied. Anything
// kept in PacketInfo must not alias it.
var decodeOptions = gopacket.DecodeOptions{Lazy: true, NoCopy: true}

// ParsePacketInfo extracts the packet metadata the detector consumes.
//
// Layers are looked up anywhere in the decoded stack, so tunnelled or
// VLAN-tagged frames still expose their IPv4, TCP and UDP headers. Layers
// that fail to decode are treated as absent.
func ParsePacketInfo(packet gopacket.Packet, iface string) *models.PacketInfo {
	data := packet.Data()
	md := packet.Metadata()

	info := &models.PacketInfo{
		TimestampNano: md.Timestamp.UnixNano(),
		Length:        uint32(md.Length),
		CaptureLength: uint32(md.CaptureLength),
		Interface:     iface,
	}
	// Frames built in memory carry no capture metadata.
	if info.CaptureLength == 0 {
		info.CaptureLength = uint32(len(data))
	}
	if info.Length == 0 {
		info.Length = info.CaptureLength
	}
	if md.Timestamp.IsZero() {
		info.TimestampNano = 0
	}

	if l := packet.Layer(layers.LayerTypeEthernet); l != nil {
		eth := l.(*layers.Ethernet)
		info.SrcMAC = eth.SrcMAC.String()
		info.DstMAC = eth.DstMAC.String()
		info.EtherType = uint16(eth.EthernetType)
	}

	if l := packet.Layer(layers.LayerTypeIPv4); l != nil {
		ip4 := l.(*layers.IPv4)
		info.HasIPv4 = true
		info.IPTotalLength = ip4.Length
		info.SrcIP = slices.Clone(ip4.SrcIP)
		info.DstIP = slices.Clone(ip4.DstIP)
		info.Protocol = uint8(ip4.Protocol)
	} else if l := packet.Layer(layers.LayerTypeIPv6); l != nil {
		// Addresses only; IPv6 frames are not classified.
		ip6 := l.(*layers.IPv6)
		info.SrcIP = slices.Clone(ip6.SrcIP)
		info.DstIP = slices.Clone(ip6.DstIP)
		info.Protocol = uint8(ip6.NextHeader)
	}

	if l := packet.Layer(layers.LayerTypeTCP); l != nil {
		tcp := l.(*layers.TCP)
		info.HasTCP = true
		info.SrcPort = uint16(tcp.SrcPort)
		info.DstPort = uint16(tcp.DstPort)
		info.TCPFlags = tcpFlags(tcp)
	}

	if l := packet.Layer(layers.LayerTypeUDP); l != nil {
		udp := l.(*layers.UDP)
		info.HasUDP = true
		if !info.HasTCP {
			info.SrcPort = uint16(udp.SrcPort)
			info.DstPort = uint16(udp.DstPort)
		}
	}

	return info
}

// tcpFlags packs the flags the way they appear on the wire:
// FIN=0x01, SYN=0x02, RST=0x04, PSH=0x08, ACK=0x10, URG=0x20.
func tcpFlags(tcp *layers.TCP) uint8 {
	var flags uint8
	if tcp.FIN {
		flags |= 0x01
	}
	if tcp.SYN {
		flags |= 0x02
	}
	if tcp.RST {
		flags |= 0x04
	}
	if tcp.PSH {
		flags |= 0x08
	}
	if tcp.ACK {
		flags |= 0x10
	}
	if tcp.URG {
		flags |= 0x20
	}
	return flags
}

// decodeFrame decodes raw frame data and attaches its capture info.
func decodeFrame(data []byte, ci gopacket.CaptureInfo, linkType layers.LinkType) gopacket.Packet {
	packet := gopacket.NewPacket(data, linkType, decodeOptions)
	md := packet.Metadata()
	md.CaptureInfo = ci
	return packet
}
