// Package profiling captures CPU and heap profiles of a detector run and can
// expose the pprof endpoints over HTTP.
package profiling

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"path/filepath"
	"runtime"
	rpprof "runtime/pprof"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/config"
	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/logging"
)

// Config holds profiler configuration.
type Config struct {
	// HTTPAddr serves /debug/pprof when non-empty.
	HTTPAddr string

	// OutputDir receives <name>-cpu-<ts>.pprof and <name>-heap-<ts>.pprof
	// when non-empty.
	OutputDir   string
	ProfileName string

	MemProfileRate int
}

// DefaultConfig returns a configuration that writes file profiles to the
// profile directory and serves nothing over HTTP.
func DefaultConfig() *Config {
	return &Config{
		OutputDir:      config.DefaultPathConfig().ProfileDir,
		ProfileName:    "live-ids",
		MemProfileRate: 512 * 1024,
	}
}

// Profiler manages one profiling session.
type Profiler struct {
	config     *Config
	httpServer *http.Server
	cpuFile    *os.File
	running    atomic.Bool
	mu         sync.Mutex
	log        *logging.Logger
	stamp      string
}

// New creates a Profiler and its output directory.
func New(cfg *Config) (*Profiler, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.ProfileName == "" {
		cfg.ProfileName = "live-ids"
	}
	if cfg.OutputDir != "" {
		if err := config.EnsureDir(cfg.OutputDir); err != nil {
			return nil, fmt.Errorf("profiling: create output directory: %w", err)
		}
	}
	return &Profiler{
		config: cfg,
		log:    logging.Default().WithComponent("profiling"),
	}, nil
}

// Handler returns the pprof routes.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

// Start begins CPU profiling and the HTTP endpoint.
func (p *Profiler) Start() error {
	if !p.running.CompareAndSwap(false, true) {
		return errors.New("profiling: already running")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.stamp = time.Now().Format("20060102-150405")
	if p.config.MemProfileRate > 0 {
		runtime.MemProfileRate = p.config.MemProfileRate
	}

	if p.config.OutputDir != "" {
		f, err := os.Create(p.path("cpu"))
		if err != nil {
			p.running.Store(false)
			return fmt.Errorf("profiling: create cpu profile: %w", err)
		}
		if err := rpprof.StartCPUProfile(f); err != nil {
			f.Close()
			p.running.Store(false)
			return fmt.Errorf("profiling: start cpu profile: %w", err)
		}
		p.cpuFile = f
	}

	if p.config.HTTPAddr != "" {
		srv := &http.Server{
			Addr:              p.config.HTTPAddr,
			Handler:           Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		p.httpServer = srv
		go func() {
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				p.log.Warn("pprof server failed", logging.Err(err))
			}
		}()
		p.log.Info("pprof listening", "addr", p.config.HTTPAddr)
	}
	return nil
}

// Stop ends CPU profiling, writes a heap profile and shuts the endpoint down.
func (p *Profiler) Stop() error {
	if !p.running.CompareAndSwap(true, false) {
		return errors.New("profiling: not running")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.cpuFile != nil {
		rpprof.StopCPUProfile()
		errs = append(errs, p.cpuFile.Close())
		p.cpuFile = nil

		runtime.GC()
		errs = append(errs, writeProfile("heap", p.path("heap")))
		p.log.Info("profiles written", "dir", p.config.OutputDir)
	}

	if p.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errs = append(errs, p.httpServer.Shutdown(ctx))
		p.httpServer = nil
	}
	return errors.Join(errs...)
}

func (p *Profiler) path(kind string) string {
	return filepath.Join(p.config.OutputDir, fmt.Sprintf("%s-%s-%s.pprof", p.config.ProfileName, kind, p.stamp))
}

func writeProfile(name, path string) error {
	prof := rpprof.Lookup(name)
	if prof == nil {
		return fmt.Errorf("profiling: unknown profile %q", name)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("profiling: create %s profile: %w", name, err)
	}
	defer f.Close()
	if err := prof.WriteTo(f, 0); err != nil {
		return fmt.Errorf("profiling: write %s profile: %w", name, err)
	}
	return nil
}
