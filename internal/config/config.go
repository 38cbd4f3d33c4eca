package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Capture modes understood by the capture package.
const (
	ModePCAP     = "pcap"
	ModeAFPacket = "afpacket"
	ModeFile     = "file"
)

// Default artifact file names, relative to PathConfig.ModelDir.
const (
	DefaultScalerFile = "live_scaler.json"
	DefaultModelFile  = "live_ids_model.json"
)

// Config is the complete runtime configuration of live-ids.
type Config struct {
	Capture CaptureConfig `yaml:"capture"`
	Model   ModelConfig   `yaml:"model"`
	Log     LogConfig     `yaml:"log"`
	Metrics ListenConfig  `yaml:"metrics"`
	Stream  ListenConfig  `yaml:"stream"`
	Output  OutputConfig  `yaml:"output"`
}

// CaptureConfig selects where packets come from.
type CaptureConfig struct {
	// Mode is one of "pcap" (libpcap live), "afpacket" (Linux ring) or "file".
	Mode        string        `yaml:"mode"`
	Interface   string        `yaml:"interface"`
	PcapFile    string        `yaml:"pcap_file"`
	SnapLen     int           `yaml:"snaplen"`
	Promiscuous bool          `yaml:"promiscuous"`
	BPFFilter   string        `yaml:"bpf_filter"`
	Timeout     time.Duration `yaml:"timeout"`
}

// ModelConfig locates the classifier artifact.
type ModelConfig struct {
	ScalerPath string `yaml:"scaler_path"`
	ModelPath  string `yaml:"model_path"`
	// Fingerprint optionally pins the BLAKE3 hash of the artifact pair.
	Fingerprint string `yaml:"fingerprint"`

	ONNXLibraryPath string `yaml:"onnx_library_path"`
	ONNXInput       string `yaml:"onnx_input"`
	ONNXOutput      string `yaml:"onnx_output"`
	ONNXThreads     int    `yaml:"onnx_threads"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ListenConfig is an optional HTTP listener. An empty address disables it.
type ListenConfig struct {
	Listen string `yaml:"listen"`
}

// OutputConfig controls verdict reporting.
type OutputConfig struct {
	// Quiet suppresses the per-packet console line.
	Quiet bool `yaml:"quiet"`
	// TUI replaces console lines with a terminal dashboard.
	TUI bool `yaml:"tui"`
	// SaveMalicious is a pcap file that receives every malicious packet.
	SaveMalicious string `yaml:"save_malicious"`
}

// Default returns the built-in configuration.
func Default() *Config {
	paths := DefaultPathConfig()
	return &Config{
		Capture: CaptureConfig{
			Mode:        ModePCAP,
			SnapLen:     65535,
			Promiscuous: true,
			Timeout:     500 * time.Millisecond,
		},
		Model: ModelConfig{
			ScalerPath:      filepath.Join(paths.ModelDir, DefaultScalerFile),
			ModelPath:       filepath.Join(paths.ModelDir, DefaultModelFile),
			ONNXLibraryPath: paths.ONNXLibraryPath,
			ONNXInput:       "float_input",
			ONNXOutput:      "probabilities",
			ONNXThreads:     1,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load returns the default configuration overlaid with the YAML file at path
// (if path is non-empty) and then with IDS_* environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays IDS_* environment variables.
func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	setString("IDS_CAPTURE_MODE", &c.Capture.Mode)
	setString("IDS_INTERFACE", &c.Capture.Interface)
	setString("IDS_PCAP_FILE", &c.Capture.PcapFile)
	setString("IDS_BPF_FILTER", &c.Capture.BPFFilter)
	setString("IDS_SCALER_PATH", &c.Model.ScalerPath)
	setString("IDS_MODEL_PATH", &c.Model.ModelPath)
	setString("IDS_ARTIFACT_FINGERPRINT", &c.Model.Fingerprint)
	setString("IDS_LOG_LEVEL", &c.Log.Level)
	setString("IDS_LOG_FORMAT", &c.Log.Format)
	setString("IDS_METRICS_LISTEN", &c.Metrics.Listen)
	setString("IDS_STREAM_LISTEN", &c.Stream.Listen)
	setString("IDS_SAVE_MALICIOUS", &c.Output.SaveMalicious)

	if v, ok := os.LookupEnv("IDS_SNAPLEN"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: IDS_SNAPLEN: %w", err)
		}
		c.Capture.SnapLen = n
	}
	if v, ok := os.LookupEnv("IDS_QUIET"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: IDS_QUIET: %w", err)
		}
		c.Output.Quiet = b
	}
	return nil
}

// Validate reports configuration combinations that cannot run.
func (c *Config) Validate() error {
	var errs []error

	switch c.Capture.Mode {
	case ModePCAP, ModeAFPacket:
		if c.Capture.Interface == "" {
			errs = append(errs, fmt.Errorf("capture: interface is required for %s mode", c.Capture.Mode))
		}
	case ModeFile:
		if c.Capture.PcapFile == "" {
			errs = append(errs, errors.New("capture: pcap_file is required for file mode"))
		}
		if c.Capture.BPFFilter != "" {
			errs = append(errs, errors.New("capture: bpf_filter is not supported in file mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("capture: unknown mode %q", c.Capture.Mode))
	}

	if c.Capture.SnapLen <= 0 {
		errs = append(errs, fmt.Errorf("capture: snaplen must be positive, got %d", c.Capture.SnapLen))
	}
	if c.Model.ScalerPath == "" || c.Model.ModelPath == "" {
		errs = append(errs, errors.New("model: scaler_path and model_path are required"))
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log: unknown format %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// ExampleYAML is a documented configuration file.
const ExampleYAML = `capture:
  mode: pcap          # pcap | afpacket | file
  interface: eth0
  pcap_file: ""
  snaplen: 65535
  promiscuous: true
  bpf_filter: "ip"
  timeout: 500ms
model:
  scaler_path: model/live_scaler.json
  model_path: model/live_ids_model.json
  fingerprint: ""
log:
  level: info
  format: text
metrics:
  listen: ":9090"
stream:
  listen: ":8080"
output:
  quiet: false
  tui: false
  save_malicious: ""
`
