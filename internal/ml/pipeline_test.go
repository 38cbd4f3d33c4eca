package ml

import (
	"context"
	"errors"
	"testing"
)

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()

	a, err := LoadArtifact(testArtifactConfig("standard_scaler.json", "logistic_model.json"))
	if err != nil {
		t.Fatalf("LoadArtifact failed: %v", err)
	}
	p, err := NewPipeline(a)
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	return p
}

func TestPipeline_Classify(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	// The test model flags packets larger than the fitted mean of 512 bytes.
	tests := []struct {
		name   string
		fv     FeatureVector
		expect Label
	}{
		{"small tcp", FeatureVector{Protocol: 1, PacketSize: 128, ResponseSize: 64}, LabelNormal},
		{"large tcp", FeatureVector{Protocol: 1, PacketSize: 1500, ResponseSize: 1486}, LabelMalicious},
		{"mean size", FeatureVector{Protocol: 2, PacketSize: 512, ResponseSize: 498}, LabelNormal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label, err := p.Classify(ctx, tt.fv)
			if err != nil {
				t.Fatalf("Classify failed: %v", err)
			}
			if label != tt.expect {
				t.Errorf("Expected %s, got %s", tt.expect, label)
			}
		})
	}

	if calls, avg := p.Latency(); calls != 3 || avg < 0 {
		t.Errorf("Unexpected latency calls=%d avg=%v", calls, avg)
	}
}

func TestPipeline_Deterministic(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()
	fv := FeatureVector{Protocol: 1, PacketSize: 700, ResponseSize: 686}

	first, err := p.Classify(ctx, fv)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 100; i++ {
		label, err := p.Classify(ctx, fv)
		if err != nil {
			t.Fatal(err)
		}
		if label != first {
			t.Fatalf("iteration %d: expected %s, got %s", i, first, label)
		}
	}
}

type failingModel struct{}

func (failingModel) Predict(context.Context, []float64) (Label, error) {
	return LabelMalicious, errors.New("backend unavailable")
}
func (failingModel) NumFeatures() int { return NumFeatures }
func (failingModel) Kind() string     { return "failing" }

func TestPipeline_ModelError(t *testing.T) {
	p, err := NewPipeline(&Artifact{
		Scaler: &StandardScaler{n: NumFeatures},
		Model:  failingModel{},
	})
	if err != nil {
		t.Fatal(err)
	}

	label, err := p.Classify(context.Background(), FeatureVector{Protocol: 1})
	if err == nil {
		t.Fatal("Expected error")
	}
	if label != LabelNormal {
		t.Errorf("Expected normal label on error, got %s", label)
	}
	if calls, _ := p.Latency(); calls != 1 {
		t.Errorf("Expected failed call to be timed, got %d calls", calls)
	}
}

func TestNewPipeline_NilArtifact(t *testing.T) {
	if _, err := NewPipeline(nil); err == nil {
		t.Error("Expected error for nil artifact")
	}
	if _, err := NewPipeline(&Artifact{Scaler: &StandardScaler{}}); err == nil {
		t.Error("Expected error for artifact without model")
	}
}
