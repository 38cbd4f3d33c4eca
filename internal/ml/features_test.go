package ml

import (
	"slices"
	"testing"

	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/models"
)

func TestExtractFeatures_Protocol(t *testing.T) {
	tests := []struct {
		name   string
		tcp    bool
		udp    bool
		expect uint8
	}{
		{"tcp", true, false, ProtocolTCP},
		{"udp", false, true, ProtocolUDP},
		{"tcp wins over udp", true, true, ProtocolTCP},
		{"neither", false, false, ProtocolOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := &models.PacketInfo{HasIPv4: true, HasTCP: tt.tcp, HasUDP: tt.udp, CaptureLength: 60}
			fv := ExtractFeatures(info)
			if fv.Protocol != tt.expect {
				t.Errorf("Expected protocol %d, got %d", tt.expect, fv.Protocol)
			}
		})
	}
}

func TestExtractFeatures_ResponseSize(t *testing.T) {
	info := &models.PacketInfo{
		HasIPv4:       true,
		HasTCP:        true,
		CaptureLength: 128,
		IPTotalLength: 64,
	}

	fv := ExtractFeatures(info)
	if fv != (FeatureVector{Protocol: 1, PacketSize: 128, ResponseSize: 64}) {
		t.Errorf("Expected (1, 128, 64), got %v", fv.Array())
	}

	// Without an IP header the declared length is ignored.
	info.HasIPv4 = false
	fv = ExtractFeatures(info)
	if fv.ResponseSize != 0 {
		t.Errorf("Expected response_size 0 without IPv4, got %d", fv.ResponseSize)
	}
	if fv.PacketSize != 128 {
		t.Errorf("Expected packet_size 128, got %d", fv.PacketSize)
	}
}

func TestExtractFeatures_Nil(t *testing.T) {
	if fv := ExtractFeatures(nil); fv != (FeatureVector{}) {
		t.Errorf("Expected zero vector, got %v", fv.Array())
	}
}

func TestFeatureVector_ToSlice(t *testing.T) {
	fv := FeatureVector{Protocol: 2, PacketSize: 90, ResponseSize: 76}
	got := fv.ToSlice()
	want := []float64{2, 90, 76}
	if !slices.Equal(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestFeatureSchema(t *testing.T) {
	schema := FeatureSchema()
	if len(schema) != NumFeatures {
		t.Fatalf("Expected %d names, got %d", NumFeatures, len(schema))
	}
	want := []string{"protocol", "packet_size", "response_size"}
	if !slices.Equal(schema, want) {
		t.Errorf("Expected %v, got %v", want, schema)
	}
}

func TestFeatureSchema_ReturnsCopy(t *testing.T) {
	FeatureSchema()[0] = "tampered"
	if got := FeatureSchema()[0]; got != "protocol" {
		t.Errorf("Writing to a returned schema changed it to %q", got)
	}
}
