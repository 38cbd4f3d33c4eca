package ml

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/logging"
)

var (
	// ErrArtifactLoad is wrapped by every LoadError.
	ErrArtifactLoad = errors.New("ml: artifact load failed")

	// ErrSchemaMismatch is matched by every SchemaMismatchError.
	ErrSchemaMismatch = errors.New("ml: feature schema mismatch")
)

// LoadError reports a missing, unreadable or corrupt artifact file.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("ml: load artifact %s: %v", e.Path, e.Err)
}

// Unwrap exposes both ErrArtifactLoad and the underlying cause.
func (e *LoadError) Unwrap() []error {
	return []error{ErrArtifactLoad, e.Err}
}

// SchemaMismatchError reports an artifact fitted on a different feature
// schema than the extractor produces.
type SchemaMismatchError struct {
	Component string // "scaler" or "model"
	Path      string
	Expected  []string
	Got       []string
	Reason    string
}

func (e *SchemaMismatchError) Error() string {
	msg := fmt.Sprintf("ml: %s %s: feature schema mismatch: %s", e.Component, e.Path, e.Reason)
	if e.Got != nil {
		msg += fmt.Sprintf(" (expected %v, got %v)", e.Expected, e.Got)
	}
	return msg
}

// Is makes errors.Is(err, ErrSchemaMismatch) succeed.
func (e *SchemaMismatchError) Is(target error) bool {
	return target == ErrSchemaMismatch
}

// ArtifactConfig locates the artifact on disk.
type ArtifactConfig struct {
	ScalerPath string
	ModelPath  string
	// Fingerprint optionally pins the BLAKE3 fingerprint of the pair.
	Fingerprint string
	// ONNX configures the runtime for models ending in ".onnx".
	ONNX *ONNXConfig
}

// Artifact is the immutable (scaler, model) pair shared by every
// classification. It is safe for concurrent reads.
type Artifact struct {
	Scaler       Scaler
	Model        Model
	FeatureNames []string
	Fingerprint  string
	ScalerPath   string
	ModelPath    string
}

// LoadArtifact reads, verifies and schema-checks the artifact pair.
//
// File and format problems return a *LoadError; a feature schema that
// disagrees with FeatureSchema returns a *SchemaMismatchError. Either is fatal
// to the caller.
func LoadArtifact(cfg ArtifactConfig) (*Artifact, error) {
	log := logging.MLLogger()

	scalerBytes, err := os.ReadFile(cfg.ScalerPath)
	if err != nil {
		return nil, &LoadError{Path: cfg.ScalerPath, Err: err}
	}
	modelBytes, err := os.ReadFile(cfg.ModelPath)
	if err != nil {
		return nil, &LoadError{Path: cfg.ModelPath, Err: err}
	}

	fp := Fingerprint(scalerBytes, modelBytes)
	if err := verifyFingerprint(cfg.Fingerprint, fp); err != nil {
		return nil, &LoadError{Path: cfg.ModelPath, Err: err}
	}

	scaler, scalerNames, err := decodeScaler(scalerBytes)
	if err != nil {
		return nil, &LoadError{Path: cfg.ScalerPath, Err: err}
	}
	if err := checkSchema("scaler", cfg.ScalerPath, scalerNames, scaler.NumFeatures(), true); err != nil {
		return nil, err
	}

	var (
		model      Model
		modelNames []string
	)
	if isONNXPath(cfg.ModelPath) {
		model, err = NewONNXModel(cfg.ModelPath, cfg.ONNX)
	} else {
		model, modelNames, err = decodeModel(modelBytes)
	}
	if err != nil {
		return nil, &LoadError{Path: cfg.ModelPath, Err: err}
	}
	if err := checkSchema("model", cfg.ModelPath, modelNames, model.NumFeatures(), false); err != nil {
		if c, ok := model.(interface{ Close() error }); ok {
			c.Close()
		}
		return nil, err
	}

	a := &Artifact{
		Scaler:       scaler,
		Model:        model,
		FeatureNames: slices.Clone(FeatureSchema()),
		Fingerprint:  fp,
		ScalerPath:   cfg.ScalerPath,
		ModelPath:    cfg.ModelPath,
	}

	log.Info("artifact loaded",
		"scaler", scaler.Kind(),
		"model", model.Kind(),
		"features", strings.Join(a.FeatureNames, ","),
		"fingerprint", ShortFingerprint(fp),
	)
	return a, nil
}

// checkSchema compares declared names and width with FeatureSchema. The
// scaler must declare its names; the model may omit them when its width is
// all it records.
func checkSchema(component, path string, names []string, width int, namesRequired bool) error {
	want := FeatureSchema()

	if len(names) == 0 {
		if namesRequired {
			return &SchemaMismatchError{
				Component: component,
				Path:      path,
				Expected:  want,
				Reason:    "artifact does not declare its feature names",
			}
		}
	} else if !slices.Equal(names, want) {
		reason := "feature names differ"
		if len(names) == len(want) && sameSet(names, want) {
			reason = "feature order differs"
		}
		return &SchemaMismatchError{
			Component: component,
			Path:      path,
			Expected:  want,
			Got:       slices.Clone(names),
			Reason:    reason,
		}
	}

	if width != len(want) {
		return &SchemaMismatchError{
			Component: component,
			Path:      path,
			Expected:  want,
			Reason:    fmt.Sprintf("expects %d features, extractor produces %d", width, len(want)),
		}
	}
	return nil
}

func sameSet(a, b []string) bool {
	x, y := slices.Clone(a), slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}

func isONNXPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".onnx")
}

// Close releases runtime resources held by the model, if any.
func (a *Artifact) Close() error {
	if c, ok := a.Model.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
