package ml

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testArtifactConfig(scaler, model string) ArtifactConfig {
	return ArtifactConfig{
		ScalerPath: filepath.Join("testdata", scaler),
		ModelPath:  filepath.Join("testdata", model),
	}
}

func TestLoadArtifact(t *testing.T) {
	a, err := LoadArtifact(testArtifactConfig("standard_scaler.json", "logistic_model.json"))
	if err != nil {
		t.Fatalf("LoadArtifact failed: %v", err)
	}
	defer a.Close()

	if a.Scaler.Kind() != "standard" {
		t.Errorf("Expected standard scaler, got %s", a.Scaler.Kind())
	}
	if a.Model.Kind() != "logistic_regression" {
		t.Errorf("Expected logistic_regression, got %s", a.Model.Kind())
	}
	if len(a.Fingerprint) != 64 {
		t.Errorf("Expected 64 hex digit fingerprint, got %q", a.Fingerprint)
	}
	if strings.Join(a.FeatureNames, ",") != "protocol,packet_size,response_size" {
		t.Errorf("Unexpected feature names %v", a.FeatureNames)
	}
}

func TestLoadArtifact_TreeWithoutNames(t *testing.T) {
	a, err := LoadArtifact(testArtifactConfig("minmax_scaler.json", "tree_model.json"))
	if err != nil {
		t.Fatalf("LoadArtifact failed: %v", err)
	}
	if a.Model.NumFeatures() != NumFeatures {
		t.Errorf("Expected %d features, got %d", NumFeatures, a.Model.NumFeatures())
	}
}

func TestLoadArtifact_TreeWidthFromNames(t *testing.T) {
	// The tree never splits on response_size and records no n_features.
	a, err := LoadArtifact(testArtifactConfig("standard_scaler.json", "named_tree_model.json"))
	if err != nil {
		t.Fatalf("LoadArtifact failed: %v", err)
	}
	defer a.Close()
	if a.Model.NumFeatures() != NumFeatures {
		t.Errorf("Expected %d features, got %d", NumFeatures, a.Model.NumFeatures())
	}
}

func TestIsONNXPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"model.onnx", true},
		{"/var/lib/ids/MODEL.ONNX", true},
		{"model.json", false},
		{"model.onnx.json", false},
		{"onnx", false},
	}
	for _, tt := range tests {
		if got := isONNXPath(tt.path); got != tt.want {
			t.Errorf("isONNXPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestLoadArtifact_ONNXWithoutRuntime(t *testing.T) {
	model := filepath.Join(t.TempDir(), "model.onnx")
	if err := os.WriteFile(model, []byte("not a model"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadArtifact(ArtifactConfig{
		ScalerPath: filepath.Join("testdata", "standard_scaler.json"),
		ModelPath:  model,
		ONNX:       &ONNXConfig{SharedLibraryPath: filepath.Join(t.TempDir(), "libonnxruntime.so")},
	})
	if err == nil {
		t.Fatal("Expected error without an ONNX runtime library")
	}

	var le *LoadError
	if !errors.As(err, &le) || le.Path != model {
		t.Errorf("Expected LoadError for %s, got %v", model, err)
	}
	if !errors.Is(err, ErrArtifactLoad) {
		t.Errorf("Expected ErrArtifactLoad, got %v", err)
	}
}

func TestLoadArtifact_Missing(t *testing.T) {
	_, err := LoadArtifact(testArtifactConfig("standard_scaler.json", "no_such_model.json"))
	if err == nil {
		t.Fatal("Expected error for missing model")
	}
	if !errors.Is(err, ErrArtifactLoad) {
		t.Errorf("Expected ErrArtifactLoad, got %v", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Expected the cause to be fs.ErrNotExist, got %v", err)
	}

	var le *LoadError
	if !errors.As(err, &le) || !strings.HasSuffix(le.Path, "no_such_model.json") {
		t.Errorf("Expected LoadError for the model path, got %v", err)
	}
}

func TestLoadArtifact_Corrupt(t *testing.T) {
	_, err := LoadArtifact(testArtifactConfig("corrupt_scaler.json", "logistic_model.json"))
	if !errors.Is(err, ErrArtifactLoad) {
		t.Fatalf("Expected ErrArtifactLoad, got %v", err)
	}
	if errors.Is(err, ErrSchemaMismatch) {
		t.Error("A corrupt file is not a schema mismatch")
	}
}

func TestLoadArtifact_SchemaMismatch(t *testing.T) {
	tests := []struct {
		name   string
		scaler string
		model  string
		reason string
	}{
		{"scaler without names", "unnamed_scaler.json", "logistic_model.json", "does not declare"},
		{"reordered scaler", "reordered_scaler.json", "logistic_model.json", "order differs"},
		{"narrow model", "standard_scaler.json", "two_feature_model.json", "expects 2 features"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadArtifact(testArtifactConfig(tt.scaler, tt.model))
			if err == nil {
				t.Fatal("Expected schema mismatch")
			}
			if !errors.Is(err, ErrSchemaMismatch) {
				t.Errorf("Expected ErrSchemaMismatch, got %v", err)
			}
			if errors.Is(err, ErrArtifactLoad) {
				t.Error("Schema mismatch should not match ErrArtifactLoad")
			}

			var sme *SchemaMismatchError
			if !errors.As(err, &sme) {
				t.Fatalf("Expected *SchemaMismatchError, got %T", err)
			}
			if !strings.Contains(sme.Reason, tt.reason) {
				t.Errorf("Expected reason containing %q, got %q", tt.reason, sme.Reason)
			}
		})
	}
}

func TestLoadArtifact_Fingerprint(t *testing.T) {
	cfg := testArtifactConfig("standard_scaler.json", "logistic_model.json")

	fp, err := FingerprintFiles(cfg.ScalerPath, cfg.ModelPath)
	if err != nil {
		t.Fatal(err)
	}

	cfg.Fingerprint = strings.ToUpper(fp)
	if _, err := LoadArtifact(cfg); err != nil {
		t.Errorf("Expected pinned fingerprint to load, got %v", err)
	}

	cfg.Fingerprint = strings.Repeat("0", 64)
	_, err = LoadArtifact(cfg)
	if !errors.Is(err, ErrFingerprintMismatch) {
		t.Errorf("Expected ErrFingerprintMismatch, got %v", err)
	}
	if !errors.Is(err, ErrArtifactLoad) {
		t.Errorf("Expected fingerprint mismatch to be a load error, got %v", err)
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]byte("ab"), []byte("c"))
	b := Fingerprint([]byte("a"), []byte("bc"))
	if a == b {
		t.Error("Moving bytes between parts should change the fingerprint")
	}
	if Fingerprint([]byte("ab"), []byte("c")) != a {
		t.Error("Fingerprint is not deterministic")
	}
	if got := ShortFingerprint(a); len(got) != 12 || !strings.HasPrefix(a, got) {
		t.Errorf("Unexpected short fingerprint %q", got)
	}
}

func TestFingerprint_ChangesWithContent(t *testing.T) {
	dir := t.TempDir()
	scaler := filepath.Join(dir, "scaler.json")
	model := filepath.Join(dir, "model.json")

	src, err := os.ReadFile("testdata/standard_scaler.json")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(scaler, src, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(model, []byte(`{"kind":"logistic_regression","coef":[0,1,0]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	before, err := FingerprintFiles(scaler, model)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(model, []byte(`{"kind":"logistic_regression","coef":[0,2,0]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	after, err := FingerprintFiles(scaler, model)
	if err != nil {
		t.Fatal(err)
	}
	if before == after {
		t.Error("Expected fingerprint to change with model content")
	}
}
