package ml

import (
	"encoding/json"
	"fmt"
)

// Scaler is a pre-fitted normalization transform.
type Scaler interface {
	// Transform returns a new slice; x is not modified.
	Transform(x []float64) []float64
	NumFeatures() int
	Kind() string
}

// StandardScaler computes (x - mean) / scale per feature.
// A nil Mean skips centering and a nil Scale skips scaling.
type StandardScaler struct {
	Mean  []float64
	Scale []float64
	n     int
}

// Transform implements Scaler.
func (s *StandardScaler) Transform(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		if s.Mean != nil {
			v -= s.Mean[i]
		}
		if s.Scale != nil && s.Scale[i] != 0 {
			v /= s.Scale[i]
		}
		out[i] = v
	}
	return out
}

// NumFeatures implements Scaler.
func (s *StandardScaler) NumFeatures() int { return s.n }

// Kind implements Scaler.
func (s *StandardScaler) Kind() string { return "standard" }

// MinMaxScaler computes x*scale + min per feature, optionally clipped to
// the fitted feature range.
type MinMaxScaler struct {
	Min          []float64
	Scale        []float64
	Clip         bool
	FeatureRange [2]float64
}

// Transform implements Scaler.
func (s *MinMaxScaler) Transform(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		v = v*s.Scale[i] + s.Min[i]
		if s.Clip {
			v = min(max(v, s.FeatureRange[0]), s.FeatureRange[1])
		}
		out[i] = v
	}
	return out
}

// NumFeatures implements Scaler.
func (s *MinMaxScaler) NumFeatures() int { return len(s.Scale) }

// Kind implements Scaler.
func (s *MinMaxScaler) Kind() string { return "minmax" }

// scalerDoc is the on-disk scaler artifact.
type scalerDoc struct {
	Kind         string     `json:"kind"`
	FeatureNames []string   `json:"feature_names"`
	Mean         []float64  `json:"mean"`
	Scale        []float64  `json:"scale"`
	Min          []float64  `json:"min"`
	Clip         bool       `json:"clip"`
	FeatureRange [2]float64 `json:"feature_range"`
}

// decodeScaler parses a scaler artifact and returns it with its declared
// feature names.
func decodeScaler(data []byte) (Scaler, []string, error) {
	var doc scalerDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("decode scaler: %w", err)
	}

	n := len(doc.FeatureNames)
	checkLen := func(name string, v []float64, required bool) error {
		if v == nil && !required {
			return nil
		}
		if len(v) != n {
			return fmt.Errorf("scaler %s has %d values for %d features", name, len(v), n)
		}
		return nil
	}

	switch doc.Kind {
	case "standard", "standard_scaler", "StandardScaler":
		if n == 0 {
			n = max(len(doc.Mean), len(doc.Scale))
		}
		if err := checkLen("mean", doc.Mean, false); err != nil {
			return nil, nil, err
		}
		if err := checkLen("scale", doc.Scale, false); err != nil {
			return nil, nil, err
		}
		return &StandardScaler{Mean: doc.Mean, Scale: doc.Scale, n: n}, doc.FeatureNames, nil

	case "minmax", "min_max", "MinMaxScaler":
		if n == 0 {
			n = len(doc.Scale)
		}
		if err := checkLen("min", doc.Min, true); err != nil {
			return nil, nil, err
		}
		if err := checkLen("scale", doc.Scale, true); err != nil {
			return nil, nil, err
		}
		if doc.Clip && doc.FeatureRange[0] > doc.FeatureRange[1] {
			return nil, nil, fmt.Errorf("scaler feature_range %v is inverted", doc.FeatureRange)
		}
		return &MinMaxScaler{
			Min:          doc.Min,
			Scale:        doc.Scale,
			Clip:         doc.Clip,
			FeatureRange: doc.FeatureRange,
		}, doc.FeatureNames, nil

	default:
		return nil, nil, fmt.Errorf("unknown scaler kind %q", doc.Kind)
	}
}
