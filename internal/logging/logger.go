// Package logging provides structured logging for the intrusion detector.
// It wraps the standard library slog package with project defaults
// and convenience functions.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/models"
)

// Level represents log levels
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Logger is the project's structured logger
type Logger struct {
	*slog.Logger
	level  *slog.LevelVar
	output io.Writer
}

// Config holds logger configuration
type Config struct {
	// Level is the minimum log level
	Level Level

	// Output is the log output destination
	Output io.Writer

	// Format is the log format ("json" or "text")
	Format string

	// AddSource adds source file and line to log entries
	AddSource bool
}

// DefaultConfig returns default logger configuration
func DefaultConfig() *Config {
	return &Config{
		Level:     LevelInfo,
		Output:    os.Stderr,
		Format:    "text",
		AddSource: false,
	}
}

var (
	defaultLogger *Logger
	mu            sync.Mutex
)

// Init initializes the default logger
func Init(cfg *Config) *Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	levelVar := &slog.LevelVar{}
	levelVar.Set(cfg.Level)

	opts := &slog.HandlerOptions{
		Level:     levelVar,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Output, opts)
	}

	l := &Logger{
		Logger: slog.New(handler),
		level:  levelVar,
		output: cfg.Output,
	}

	mu.Lock()
	defaultLogger = l
	mu.Unlock()

	// Set as default slog logger
	slog.SetDefault(l.Logger)
	return l
}

// Default returns the default logger, initializing if necessary
func Default() *Logger {
	mu.Lock()
	l := defaultLogger
	mu.Unlock()
	if l == nil {
		return Init(nil)
	}
	return l
}

// ParseLevel converts a level name ("debug", "info", "warn", "error") to a Level.
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("logging: unknown level %q", name)
	}
}

// SetLevel changes the log level at runtime
func (l *Logger) SetLevel(level Level) {
	l.level.Set(level)
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() Level {
	return l.level.Level()
}

// WithComponent returns a logger with a component field
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("component", name),
		level:  l.level,
		output: l.output,
	}
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *Logger {
	levelVar := &slog.LevelVar{}
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: levelVar})),
		level:  levelVar,
		output: io.Discard,
	}
}

// =============================================================================
// Component Loggers
// =============================================================================

// CaptureLogger returns a logger for the capture engines
func CaptureLogger() *Logger {
	return Default().WithComponent("capture")
}

// MLLogger returns a logger for artifact loading and inference
func MLLogger() *Logger {
	return Default().WithComponent("ml")
}

// DetectorLogger returns a logger for the dispatch loop
func DetectorLogger() *Logger {
	return Default().WithComponent("detector")
}

// StreamLogger returns a logger for the websocket stream
func StreamLogger() *Logger {
	return Default().WithComponent("stream")
}

// DatasetLogger returns a logger for dataset reporting
func DatasetLogger() *Logger {
	return Default().WithComponent("dataset")
}

// =============================================================================
// Structured Field Helpers
// =============================================================================

// Packet returns log attributes for a packet
func Packet(info *models.PacketInfo) slog.Attr {
	if info == nil {
		return slog.Attr{}
	}
	return slog.Group("packet",
		slog.String("src_ip", info.SrcIP.String()),
		slog.String("dst_ip", info.DstIP.String()),
		slog.Int("src_port", int(info.SrcPort)),
		slog.Int("dst_port", int(info.DstPort)),
		slog.String("transport", info.TransportName()),
		slog.Int("length", int(info.CaptureLength)),
	)
}

// Counters returns log attributes for a detection stats snapshot
func Counters(s models.DetectionStats) slog.Attr {
	return slog.Group("counters",
		slog.Uint64("packets", s.PacketCount),
		slog.Uint64("malicious", s.MaliciousCount),
		slog.Uint64("normal", s.NormalCount()),
		slog.Uint64("skipped", s.SkippedCount),
		slog.Uint64("errors", s.ErrorCount),
	)
}

// Err returns a log attribute for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}

// Duration returns a log attribute for a duration
func Duration(name string, d time.Duration) slog.Attr {
	return slog.Duration(name, d)
}

// Count returns a log attribute for a count
func Count(name string, n int64) slog.Attr {
	return slog.Int64(name, n)
}

// Timer returns a function that logs the elapsed time when called
func Timer(l *Logger, msg string, args ...any) func() {
	start := time.Now()
	return func() {
		l.Debug(msg, append(args, "duration", time.Since(start))...)
	}
}
