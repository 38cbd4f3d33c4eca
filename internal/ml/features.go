// Package ml turns captured packets into feature vectors and classifies them
// with a pre-fitted (scaler, model) artifact.
package ml

import (
	"slices"

	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/models"
)

// Protocol codes used by the protocol feature.
const (
	ProtocolOther uint8 = 0
	ProtocolTCP   uint8 = 1
	ProtocolUDP   uint8 = 2
)

// NumFeatures is the width of every FeatureVector.
const NumFeatures = 3

// featureNames is the training-time schema, in order.
var featureNames = [NumFeatures]string{"protocol", "packet_size", "response_size"}

// FeatureSchema returns the ordered feature names the extractor produces.
// Artifacts must declare exactly this schema.
func FeatureSchema() []string {
	return slices.Clone(featureNames[:])
}

// FeatureVector is the fixed three-field summary of one packet.
type FeatureVector struct {
	Protocol     uint8  // 1 TCP, 2 UDP, 0 otherwise
	PacketSize   uint32 // Captured frame length in bytes
	ResponseSize uint32 // IPv4 total-length field, 0 without IPv4
}

// ToSlice returns the vector as model input in schema order.
func (f FeatureVector) ToSlice() []float64 {
	return []float64{
		float64(f.Protocol),
		float64(f.PacketSize),
		float64(f.ResponseSize),
	}
}

// Array returns the vector as integers in schema order.
func (f FeatureVector) Array() [NumFeatures]uint32 {
	return [NumFeatures]uint32{uint32(f.Protocol), f.PacketSize, f.ResponseSize}
}

// ExtractFeatures maps a captured packet to its feature vector.
//
// TCP takes precedence over UDP. Missing headers never fail extraction: the
// dependent feature is simply zero. A nil packet yields the zero vector.
func ExtractFeatures(info *models.PacketInfo) FeatureVector {
	if info == nil {
		return FeatureVector{}
	}

	var fv FeatureVector
	switch {
	case info.HasTCP:
		fv.Protocol = ProtocolTCP
	case info.HasUDP:
		fv.Protocol = ProtocolUDP
	default:
		fv.Protocol = ProtocolOther
	}

	fv.PacketSize = info.CaptureLength
	if info.HasIPv4 {
		fv.ResponseSize = uint32(info.IPTotalLength)
	}
	return fv
}
