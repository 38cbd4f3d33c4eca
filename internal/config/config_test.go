package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Capture.Mode != ModePCAP {
		t.Errorf("expected mode pcap, got %s", cfg.Capture.Mode)
	}
	if cfg.Capture.SnapLen != 65535 {
		t.Errorf("expected snaplen 65535, got %d", cfg.Capture.SnapLen)
	}
	if filepath.Base(cfg.Model.ScalerPath) != DefaultScalerFile {
		t.Errorf("unexpected scaler path %s", cfg.Model.ScalerPath)
	}
	if filepath.Base(cfg.Model.ModelPath) != DefaultModelFile {
		t.Errorf("unexpected model path %s", cfg.Model.ModelPath)
	}
}

func TestLoadYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ids.yaml")
	yamlDoc := `capture:
  mode: file
  pcap_file: /tmp/trace.pcap
  timeout: 2s
model:
  model_path: /opt/ids/model.onnx
log:
  format: json
stream:
  listen: ":8081"
`
	if err := os.WriteFile(path, []byte(yamlDoc), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("IDS_LOG_LEVEL", "debug")
	t.Setenv("IDS_SNAPLEN", "1500")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Capture.Mode != ModeFile || cfg.Capture.PcapFile != "/tmp/trace.pcap" {
		t.Errorf("capture section not applied: %+v", cfg.Capture)
	}
	if cfg.Capture.Timeout != 2*time.Second {
		t.Errorf("expected timeout 2s, got %v", cfg.Capture.Timeout)
	}
	if cfg.Model.ModelPath != "/opt/ids/model.onnx" {
		t.Errorf("expected model path override, got %s", cfg.Model.ModelPath)
	}
	// Fields absent from the file keep their defaults.
	if filepath.Base(cfg.Model.ScalerPath) != DefaultScalerFile {
		t.Errorf("expected default scaler path, got %s", cfg.Model.ScalerPath)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("unexpected log config %+v", cfg.Log)
	}
	if cfg.Capture.SnapLen != 1500 {
		t.Errorf("expected env snaplen 1500, got %d", cfg.Capture.SnapLen)
	}
	if cfg.Stream.Listen != ":8081" {
		t.Errorf("expected stream listen :8081, got %q", cfg.Stream.Listen)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("capture: [unclosed"), 0o644)
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed yaml")
	}

	t.Setenv("IDS_SNAPLEN", "lots")
	if _, err := Load(""); err == nil {
		t.Error("expected error for non-numeric IDS_SNAPLEN")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"live without interface", func(c *Config) {}, "interface is required"},
		{"live ok", func(c *Config) { c.Capture.Interface = "eth0" }, ""},
		{"afpacket ok", func(c *Config) {
			c.Capture.Mode = ModeAFPacket
			c.Capture.Interface = "eth0"
		}, ""},
		{"file without path", func(c *Config) { c.Capture.Mode = ModeFile }, "pcap_file is required"},
		{"file with filter", func(c *Config) {
			c.Capture.Mode = ModeFile
			c.Capture.PcapFile = "x.pcap"
			c.Capture.BPFFilter = "tcp"
		}, "bpf_filter is not supported"},
		{"unknown mode", func(c *Config) { c.Capture.Mode = "xdp" }, "unknown mode"},
		{"bad snaplen", func(c *Config) {
			c.Capture.Interface = "eth0"
			c.Capture.SnapLen = 0
		}, "snaplen"},
		{"bad log format", func(c *Config) {
			c.Capture.Interface = "eth0"
			c.Log.Format = "xml"
		}, "unknown format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	if got := Resolve("/data", "out.pcap"); got != filepath.Join("/data", "out.pcap") {
		t.Errorf("unexpected %s", got)
	}
	if got := Resolve("/data", "/abs/out.pcap"); got != "/abs/out.pcap" {
		t.Errorf("absolute path should be kept, got %s", got)
	}
	if got := Resolve("/data", ""); got != "" {
		t.Errorf("empty path should stay empty, got %s", got)
	}
}

func TestExampleYAMLParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "example.yaml")
	os.WriteFile(path, []byte(ExampleYAML), 0o644)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("example config does not load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("example config does not validate: %v", err)
	}
}
