// Command live-ids classifies captured IPv4 packets as normal or malicious
// with a pre-trained scaler and model.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/capture"
	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/config"
	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/detector"
	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/events"
	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/logging"
	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/metrics"
	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/ml"
	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/models"
	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/profiling"
	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/stream"
	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/tui"
)

const (
	statsInterval   = time.Second
	shutdownTimeout = 5 * time.Second
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  = flag.String("config", os.Getenv("IDS_CONFIG"), "YAML configuration file")
		iface       = flag.String("i", "", "Network interface to monitor")
		mode        = flag.String("mode", "", "Capture mode: pcap, afpacket or file")
		pcapFile    = flag.String("r", "", "Replay packets from a pcap or pcapng file (implies -mode file)")
		filter      = flag.String("f", "", "BPF filter expression (live modes only)")
		snapLen     = flag.Int("snaplen", 0, "Capture snapshot length")
		scalerPath  = flag.String("scaler", "", "Scaler artifact path")
		modelPath   = flag.String("model", "", "Model artifact path (.json or .onnx)")
		pin         = flag.String("pin", "", "Expected artifact fingerprint")
		printFP     = flag.Bool("fingerprint", false, "Print the artifact fingerprint and exit")
		metricsAddr = flag.String("metrics", "", "Prometheus listen address, e.g. :9090")
		streamAddr  = flag.String("stream", "", "Websocket stream listen address, e.g. :8080")
		save        = flag.String("save", "", "Write malicious packets to this pcap file")
		quiet       = flag.Bool("quiet", false, "Suppress per-packet console lines")
		verbose     = flag.Bool("v", false, "Print endpoints and features with each verdict")
		useTUI      = flag.Bool("tui", false, "Show a terminal dashboard instead of console lines")
		logLevel    = flag.String("log-level", "", "Log level: debug, info, warn, error")
		logFormat   = flag.String("log-format", "", "Log format: text or json")
		profile     = flag.Bool("profile", false, "Write CPU and heap profiles to the profile directory")
		pprofAddr   = flag.String("pprof", "", "Serve /debug/pprof on this address")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags]\n", os.Args[0])
		flag.PrintDefaults()
		fmt.Fprint(flag.CommandLine.Output(), config.PathEnvVarsDoc)
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	// Flags given on the command line win over the file and environment.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "i":
			cfg.Capture.Interface = *iface
		case "mode":
			cfg.Capture.Mode = *mode
		case "r":
			cfg.Capture.PcapFile = *pcapFile
			cfg.Capture.Mode = config.ModeFile
		case "f":
			cfg.Capture.BPFFilter = *filter
		case "snaplen":
			cfg.Capture.SnapLen = *snapLen
		case "scaler":
			cfg.Model.ScalerPath = *scalerPath
		case "model":
			cfg.Model.ModelPath = *modelPath
		case "pin":
			cfg.Model.Fingerprint = *pin
		case "metrics":
			cfg.Metrics.Listen = *metricsAddr
		case "stream":
			cfg.Stream.Listen = *streamAddr
		case "save":
			cfg.Output.SaveMalicious = *save
		case "quiet":
			cfg.Output.Quiet = *quiet
		case "tui":
			cfg.Output.TUI = *useTUI
		case "log-level":
			cfg.Log.Level = *logLevel
		case "log-format":
			cfg.Log.Format = *logFormat
		}
	})

	if *printFP {
		fp, err := ml.FingerprintFiles(cfg.Model.ScalerPath, cfg.Model.ModelPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println(fp)
		return 0
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	logCfg := logging.DefaultConfig()
	logCfg.Level = level
	logCfg.Format = cfg.Log.Format
	log := logging.Init(logCfg)
	paths := config.DefaultPathConfig()

	if *profile || *pprofAddr != "" {
		profCfg := profiling.DefaultConfig()
		profCfg.HTTPAddr = *pprofAddr
		if !*profile {
			profCfg.OutputDir = ""
		}
		prof, err := profiling.New(profCfg)
		if err == nil {
			err = prof.Start()
		}
		if err != nil {
			log.Error("failed to start profiling", logging.Err(err))
			return 1
		}
		defer prof.Stop()
	}

	loaded := logging.Timer(log, "model artifact loaded", "scaler", cfg.Model.ScalerPath, "model", cfg.Model.ModelPath)
	artifact, err := ml.LoadArtifact(ml.ArtifactConfig{
		ScalerPath:  cfg.Model.ScalerPath,
		ModelPath:   cfg.Model.ModelPath,
		Fingerprint: cfg.Model.Fingerprint,
		ONNX: &ml.ONNXConfig{
			SharedLibraryPath: cfg.Model.ONNXLibraryPath,
			InputName:         cfg.Model.ONNXInput,
			OutputName:        cfg.Model.ONNXOutput,
			NumThreads:        cfg.Model.ONNXThreads,
		},
	})
	if err != nil {
		log.Error("failed to load model artifact", logging.Err(err))
		return 1
	}
	loaded()
	defer artifact.Close()

	pipeline, err := ml.NewPipeline(artifact)
	if err != nil {
		log.Error("failed to build classifier pipeline", logging.Err(err))
		return 1
	}
	metrics.SetArtifact(artifact.Scaler.Kind(), artifact.Model.Kind(), ml.ShortFingerprint(artifact.Fingerprint))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	captureMode, err := capture.ParseMode(cfg.Capture.Mode)
	if err != nil {
		log.Error("invalid capture mode", logging.Err(err))
		return 2
	}
	capCfg := capture.DefaultConfig(cfg.Capture.Interface)
	capCfg.Mode = captureMode
	capCfg.PcapFile = cfg.Capture.PcapFile
	capCfg.SnapLen = cfg.Capture.SnapLen
	capCfg.Promiscuous = cfg.Capture.Promiscuous
	capCfg.BPFFilter = cfg.Capture.BPFFilter
	if cfg.Capture.Timeout > 0 {
		capCfg.Timeout = cfg.Capture.Timeout
	}

	engine, err := capture.New(capCfg)
	if err != nil {
		log.Error("failed to create capture engine", logging.Err(err))
		return 1
	}

	bus := events.NewEventBus(events.DefaultEventBusConfig())
	reporters := []detector.Reporter{bus}
	if !cfg.Output.Quiet && !cfg.Output.TUI {
		reporters = append(reporters, detector.NewConsoleReporter(os.Stdout, *verbose))
	}

	var (
		writer   *capture.PcapWriter
		savePath string
	)
	if cfg.Output.SaveMalicious != "" {
		savePath = config.Resolve(paths.CaptureDir, cfg.Output.SaveMalicious)
		if err := config.EnsureDir(filepath.Dir(savePath)); err != nil {
			log.Error("failed to create capture directory", logging.Err(err))
			return 1
		}
		writer, err = capture.NewPcapWriter(savePath, cfg.Capture.SnapLen, engine.LinkType)
		if err != nil {
			log.Error("failed to open malicious packet file", logging.Err(err))
			return 1
		}
		reporters = append(reporters, writer)
	}

	det := detector.New(pipeline,
		detector.WithContext(ctx),
		detector.WithReporters(reporters...),
	)
	engine.SetHandler(det.HandlePacket)

	var dash *tui.Model
	if cfg.Output.TUI {
		dash = tui.New(sourceName(capCfg), det.Counters().Snapshot)
		for _, t := range tui.EventTypes {
			bus.Subscribe(t, dash.Handle)
		}
	}

	var streamSrv *stream.Server
	if cfg.Stream.Listen != "" {
		streamSrv = stream.NewServer(cfg.Stream.Listen, det.Counters().Snapshot)
		bus.SetGlobalHandler(streamSrv.Broadcast)
		go func() {
			if err := streamSrv.Start(); err != nil {
				log.Error("stream server failed", logging.Err(err))
			}
		}()
	}

	var metricsSrv *metrics.Server
	if cfg.Metrics.Listen != "" {
		metricsSrv = metrics.NewServer(cfg.Metrics.Listen)
		go func() {
			log.Info("metrics server listening", "addr", metricsSrv.Addr())
			if err := metricsSrv.Start(); err != nil {
				log.Error("metrics server failed", logging.Err(err))
			}
		}()
	}

	if err := engine.Start(ctx); err != nil {
		log.Error("failed to start capture", logging.Err(err))
		bus.EmitError(err, "capture")
		return 1
	}
	bus.EmitCaptureStarted(det.SessionID(), sourceName(capCfg), captureMode.String())

	sess := &session{engine: engine, det: det, bus: bus}
	go publishStats(ctx, bus, engine, det)

	if dash != nil {
		go func() {
			select {
			case <-engine.Done():
				sess.stop()
			case <-ctx.Done():
			}
		}()
		// Info lines would draw over the alternate screen.
		prev := log.GetLevel()
		if prev < logging.LevelWarn {
			log.SetLevel(logging.LevelWarn)
		}
		if _, err := tea.NewProgram(dash, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			log.Error("dashboard failed", logging.Err(err))
		}
		log.SetLevel(prev)
		for _, t := range tui.EventTypes {
			bus.Unsubscribe(t)
		}
		stop()
	} else {
		fmt.Println("Live IDS started... CTRL+C to stop")
		select {
		case <-ctx.Done():
		case <-engine.Done():
		}
	}

	stats := sess.stop()

	emitted, batched, batches := bus.Stats()
	_, avgLatency := pipeline.Latency()
	log.Info("event bus drained",
		logging.Duration("avg_classify_latency", avgLatency),
		logging.Count("events_emitted", int64(emitted)),
		logging.Count("events_batched", int64(batched)),
		logging.Count("event_batches", int64(batches)),
	)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if streamSrv != nil {
		streamSrv.Stop(shutdownCtx)
	}
	if metricsSrv != nil {
		metricsSrv.Stop(shutdownCtx)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			log.Warn("failed to close malicious packet file", logging.Err(err))
		} else {
			log.Info("malicious packets saved", "path", savePath, "packets", writer.Written())
		}
	}

	if !cfg.Output.TUI {
		fmt.Printf("Processed %d packets: %d malicious, %d normal, %d non-IP skipped\n",
			stats.PacketCount, stats.MaliciousCount, stats.NormalCount(), stats.SkippedCount)
	}
	return 0
}

// session stops capture once and publishes the totals.
type session struct {
	engine capture.Engine
	det    *detector.Detector
	bus    *events.EventBus

	once  sync.Once
	stats models.DetectionStats
}

func (s *session) stop() models.DetectionStats {
	s.once.Do(func() {
		s.engine.Stop()
		s.stats = s.det.Summary()
		s.bus.EmitCaptureStopped(s.stats)
		s.bus.Flush()
	})
	return s.stats
}

func publishStats(ctx context.Context, bus *events.EventBus, engine capture.Engine, det *detector.Detector) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-engine.Done():
			return
		case <-ticker.C:
			bus.EmitCaptureStats(engine.Stats())
			bus.EmitDetectionStats(det.Counters().Snapshot())
		}
	}
}

func sourceName(cfg *capture.Config) string {
	if cfg.Mode == capture.ModeFile {
		return cfg.PcapFile
	}
	return cfg.Interface
}
