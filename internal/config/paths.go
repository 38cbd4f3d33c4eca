// Package config provides centralized configuration for the intrusion detector.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// PathConfig holds configurable filesystem locations.
// All paths can be overridden via environment variables.
type PathConfig struct {
	// ONNXLibraryPath is the path to the ONNX Runtime shared library
	ONNXLibraryPath string

	// ModelDir is the directory holding the scaler and model artifacts
	ModelDir string

	// CaptureDir is where saved pcap files go when no absolute path is given
	CaptureDir string

	// ReportDir is where dataset exports go when no absolute path is given
	ReportDir string

	// ProfileDir receives CPU and heap profiles
	ProfileDir string
}

// DefaultPathConfig returns the default path configuration.
// Paths are determined by:
// 1. Environment variables (highest priority)
// 2. XDG Base Directory Specification
// 3. Platform-specific defaults
//
// ModelDir defaults to the relative "model" directory so that a checkout with
// model/live_scaler.json and model/live_ids_model.json works without setup.
func DefaultPathConfig() *PathConfig {
	dataDir := getUserDataDir()

	return &PathConfig{
		ONNXLibraryPath: getEnvOrDefault("IDS_ONNX_LIBRARY_PATH", findONNXLibrary()),
		ModelDir:        getEnvOrDefault("IDS_MODEL_DIR", "model"),
		CaptureDir:      getEnvOrDefault("IDS_CAPTURE_DIR", filepath.Join(dataDir, "live-ids", "captures")),
		ReportDir:       getEnvOrDefault("IDS_REPORT_DIR", "."),
		ProfileDir:      getEnvOrDefault("IDS_PROFILE_DIR", filepath.Join(dataDir, "live-ids", "profiles")),
	}
}

// getEnvOrDefault returns the environment variable value or the default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getUserDataDir returns the user data directory following the XDG base directory layout.
func getUserDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return xdgData
	}

	home := os.Getenv("HOME")
	if home == "" {
		home = "/tmp"
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support")
	default: // linux, etc.
		return filepath.Join(home, ".local", "share")
	}
}

// findONNXLibrary searches for the ONNX Runtime library in common locations.
func findONNXLibrary() string {
	searchPaths := []string{
		// User-installed locations
		"/usr/local/lib/libonnxruntime.so",
		"/usr/local/lib64/libonnxruntime.so",
		// System locations
		"/usr/lib/libonnxruntime.so",
		"/usr/lib64/libonnxruntime.so",
		"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
		"/usr/lib/aarch64-linux-gnu/libonnxruntime.so",
		filepath.Join(os.Getenv("HOME"), ".local/lib/libonnxruntime.so"),
		// macOS
		"/usr/local/opt/onnxruntime/lib/libonnxruntime.dylib",
		"/opt/homebrew/lib/libonnxruntime.dylib",
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	// Return default path even if not found (will error when an ONNX model is loaded)
	return "/usr/lib/libonnxruntime.so"
}

// Resolve joins rel onto base unless rel is empty or already absolute.
func Resolve(base, rel string) string {
	if rel == "" || filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(base, rel)
}

// EnsureDir creates dir (and parents) if it does not exist.
func EnsureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// PathEnvVarsDoc documents the environment variables for users.
const PathEnvVarsDoc = `
Environment variables:

  IDS_CONFIG             Path to a YAML configuration file
  IDS_INTERFACE          Capture interface (live modes)
  IDS_CAPTURE_MODE       pcap | afpacket | file
  IDS_PCAP_FILE          pcap/pcapng file to replay (file mode)
  IDS_BPF_FILTER         BPF filter expression (live modes)
  IDS_SCALER_PATH        Scaler artifact (default model/live_scaler.json)
  IDS_MODEL_PATH         Model artifact (default model/live_ids_model.json, .onnx selects ONNX)
  IDS_ARTIFACT_FINGERPRINT  Expected BLAKE3 fingerprint of the artifact pair
  IDS_ONNX_LIBRARY_PATH  Path to the ONNX Runtime shared library (auto-detected)
  IDS_MODEL_DIR          Directory the default artifact paths are resolved against
  IDS_CAPTURE_DIR        Directory for saved malicious packets (relative save paths)
  IDS_REPORT_DIR         Directory for dataset exports (relative output paths)
  IDS_PROFILE_DIR        Directory for CPU and heap profiles
  IDS_LOG_LEVEL          debug | info | warn | error
  IDS_LOG_FORMAT         text | json
  IDS_METRICS_LISTEN     Prometheus listen address, empty to disable
  IDS_STREAM_LISTEN      Websocket stream listen address, empty to disable
`
