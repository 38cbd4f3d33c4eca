// Package benchmark measures the per-packet cost of the detection path.
package benchmark

import (
	"context"
	"crypto/rand"
	"strconv"
	"testing"

	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/capture"
	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/detector"
	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/events"
	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/logging"
	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/ml"
	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/models"
	"github.com/tush8979/Adaptive-Intrusion-Detection-System/test/fixtures"
)

var frameSizes = []int{64, 128, 512, 1024, 1500, 9000}

// =============================================================================
// Decode and Feature Benchmarks
// =============================================================================

// BenchmarkParsePacketInfo measures lazy decoding of one frame
func BenchmarkParsePacketInfo(b *testing.B) {
	for _, size := range frameSizes {
		b.Run(formatSize(size), func(b *testing.B) {
			frame := fixtures.NewPacketFixture().TCPFrameSized(size, uint16(size-14))

			b.SetBytes(int64(size))
			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_ = capture.ParsePacketInfo(frame.Packet(), "bench0")
			}
		})
	}
}

// BenchmarkExtractFeatures measures feature extraction alone
func BenchmarkExtractFeatures(b *testing.B) {
	info := &models.PacketInfo{HasIPv4: true, HasTCP: true, CaptureLength: 1500, IPTotalLength: 1486}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = ml.ExtractFeatures(info)
	}
}

// =============================================================================
// Classification Benchmarks
// =============================================================================

func loadPipeline(b *testing.B) *ml.Pipeline {
	b.Helper()
	scalerPath, modelPath, err := fixtures.WriteArtifact(b.TempDir())
	if err != nil {
		b.Fatal(err)
	}
	artifact, err := ml.LoadArtifact(ml.ArtifactConfig{ScalerPath: scalerPath, ModelPath: modelPath})
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { artifact.Close() })

	p, err := ml.NewPipeline(artifact)
	if err != nil {
		b.Fatal(err)
	}
	return p
}

// BenchmarkPipelineClassify measures scaling plus prediction
func BenchmarkPipelineClassify(b *testing.B) {
	p := loadPipeline(b)
	fv := ml.FeatureVector{Protocol: 1, PacketSize: 1500, ResponseSize: 1486}
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := p.Classify(ctx, fv); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkHandlePacket measures the full dispatch path with no reporters
func BenchmarkHandlePacket(b *testing.B) {
	p := loadPipeline(b)

	for _, size := range frameSizes {
		b.Run(formatSize(size), func(b *testing.B) {
			frame := fixtures.NewPacketFixture().TCPFrameSized(size, uint16(size-14))
			info := capture.ParsePacketInfo(frame.Packet(), "bench0")
			d := detector.New(p, detector.WithLogger(logging.Discard()))

			b.SetBytes(int64(size))
			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				d.HandlePacket(frame.Data, info)
			}
		})
	}
}

// BenchmarkHandlePacketWithBus adds event publication to the dispatch path
func BenchmarkHandlePacketWithBus(b *testing.B) {
	p := loadPipeline(b)
	bus := events.NewEventBus(events.DefaultEventBusConfig())
	bus.SetGlobalHandler(func(*events.Event) {})
	defer bus.Flush()

	frame := fixtures.NewPacketFixture().TCPFrameSized(1500, 1486)
	info := capture.ParsePacketInfo(frame.Packet(), "bench0")
	d := detector.New(p, detector.WithReporters(bus), detector.WithLogger(logging.Discard()))

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		d.HandlePacket(frame.Data, info)
	}
}

// =============================================================================
// Artifact Benchmarks
// =============================================================================

// BenchmarkFingerprint measures BLAKE3 fingerprinting of artifact bytes
func BenchmarkFingerprint(b *testing.B) {
	sizes := []int{1024, 65536, 1048576}

	for _, size := range sizes {
		b.Run(formatSize(size), func(b *testing.B) {
			data := make([]byte, size)
			rand.Read(data)

			b.SetBytes(int64(size))
			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_ = ml.Fingerprint(data[:size/2], data[size/2:])
			}
		})
	}
}

// =============================================================================
// Helpers
// =============================================================================

func formatSize(size int) string {
	if size >= 1024*1024 {
		return strconv.Itoa(size/(1024*1024)) + "MB"
	}
	if size >= 1024 {
		return strconv.Itoa(size/1024) + "KB"
	}
	return strconv.Itoa(size) + "B"
}
