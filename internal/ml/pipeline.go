package ml

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// Pipeline scales a feature vector and classifies it with a loaded artifact.
//
// A Pipeline holds no per-packet state: the same vector always yields the
// same label. It is safe for concurrent use.
type Pipeline struct {
	artifact *Artifact

	// Outcomes are counted by the detector; only timing is kept here.
	calls   atomic.Int64
	elapsed atomic.Int64 // nanoseconds
}

// NewPipeline creates a pipeline over a loaded artifact.
func NewPipeline(a *Artifact) (*Pipeline, error) {
	if a == nil || a.Scaler == nil || a.Model == nil {
		return nil, errors.New("ml: pipeline needs a loaded artifact")
	}
	return &Pipeline{artifact: a}, nil
}

// Artifact returns the artifact the pipeline classifies with.
func (p *Pipeline) Artifact() *Artifact {
	return p.artifact
}

// Classify returns the label for fv.
func (p *Pipeline) Classify(ctx context.Context, fv FeatureVector) (Label, error) {
	start := time.Now()

	scaled := p.artifact.Scaler.Transform(fv.ToSlice())
	label, err := p.artifact.Model.Predict(ctx, scaled)

	p.elapsed.Add(int64(time.Since(start)))
	p.calls.Add(1)
	if err != nil {
		return LabelNormal, fmt.Errorf("ml: classify %v: %w", fv.Array(), err)
	}
	return label, nil
}

// Latency returns the number of Classify calls and their mean duration.
func (p *Pipeline) Latency() (calls int64, avg time.Duration) {
	calls = p.calls.Load()
	if calls > 0 {
		avg = time.Duration(p.elapsed.Load() / calls)
	}
	return calls, avg
}
