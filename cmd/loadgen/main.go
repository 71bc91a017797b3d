// Command loadgen is the process entrypoint for the traffic-generation
// harness: it loads a YAML configuration, builds one TCP emission engine per
// configured target, and runs them until shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nishisan-dev/loadgen/internal/blackhole"
	"github.com/nishisan-dev/loadgen/internal/block"
	"github.com/nishisan-dev/loadgen/internal/chunkplan"
	"github.com/nishisan-dev/loadgen/internal/config"
	"github.com/nishisan-dev/loadgen/internal/generator"
	"github.com/nishisan-dev/loadgen/internal/logging"
	"github.com/nishisan-dev/loadgen/internal/payload"
	"github.com/nishisan-dev/loadgen/internal/ratelimiter"
	"github.com/nishisan-dev/loadgen/internal/shutdown"
	"github.com/nishisan-dev/loadgen/internal/soak"
	"github.com/nishisan-dev/loadgen/internal/sysmonitor"
	"github.com/nishisan-dev/loadgen/internal/target"
	"github.com/nishisan-dev/loadgen/internal/telemetry"
)

const maxShutdownDelay = 10 * time.Second

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to the loadgen YAML configuration")
	flag.Parse()

	if configPath == "" {
		fmt.Fprintln(os.Stderr, "loadgen: -config is required")
		os.Exit(2)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loadgen: %v\n", err)
		os.Exit(1)
	}

	// A run identifier shared by every per-target debug log this process
	// writes, so files from the same run sit together on disk.
	runID := time.Now().UTC().Format("20060102T150405.000")

	// Telemetry isn't built yet at this point, so errors surfacing while
	// constructing it are reported through a bare bootstrap logger; the
	// sink-aware logger used for the rest of the run is built inside run()
	// once a telemetry.Sink exists to wire it to.
	bootstrap := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := run(cfg, runID, bootstrap); err != nil {
		bootstrap.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, runID string, bootstrap *slog.Logger) error {
	bc := shutdown.New(context.Background())

	sink, closeSink, err := buildTelemetry(cfg.Telemetry, bc, bootstrap)
	if err != nil {
		return fmt.Errorf("building telemetry: %w", err)
	}
	defer closeSink()

	logger, logCloser := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File, sink)
	defer logCloser.Close()

	if cfg.Telemetry.HTTPListen != "" {
		var prom *telemetry.PrometheusSink
		if p, ok := sink.(telemetry.Multi); ok {
			for _, s := range p {
				if ps, ok := s.(*telemetry.PrometheusSink); ok {
					prom = ps
				}
			}
		}
		srv := &http.Server{Addr: cfg.Telemetry.HTTPListen, Handler: telemetry.NewHTTPHandler(prom)}
		done := bc.Track()
		go func() {
			defer done()
			<-bc.Context().Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		go func() {
			logger.Info("telemetry http listener starting", "addr", cfg.Telemetry.HTTPListen)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("telemetry http listener failed", "error", err)
			}
		}()
	}

	for i := range cfg.Targets {
		if err := startTarget(bc, cfg.Targets[i], cfg.Logging.TargetLogDir, runID, sink, logger); err != nil {
			return fmt.Errorf("starting target %q: %w", cfg.Targets[i].Name, err)
		}
	}

	if cfg.Blackhole != nil {
		ln, err := net.Listen("tcp", cfg.Blackhole.Listen)
		if err != nil {
			return fmt.Errorf("starting blackhole listener: %w", err)
		}
		done := bc.Track()
		go func() {
			defer done()
			if err := blackhole.Run(bc.Context(), ln, sink, logger); err != nil {
				logger.Error("blackhole stopped with error", "error", err)
			}
		}()
	}

	if cfg.Subject != nil {
		sup, err := target.New(cfg.Subject.Command, cfg.Subject.Timeout, logger)
		if err != nil {
			return fmt.Errorf("building subject supervisor: %w", err)
		}
		sup.WithOutput(os.Stdout, os.Stderr)
		done := bc.Track()
		go func() {
			defer done()
			if err := sup.Run(bc.Context()); err != nil {
				logger.Error("subject process failed", "error", err)
				bc.Trigger()
			}
		}()
	}

	monitor := sysmonitor.New(sink, logger, 0)
	monitorDone := bc.Track()
	go func() {
		defer monitorDone()
		monitor.Run(bc.Context())
	}()

	if cfg.Soak != nil {
		// Targets already run continuously once started above; a soak window
		// here just marks an observation period in the logs and metrics
		// stream rather than tearing generators down and rebuilding them,
		// since nothing in the core demands cold-restart semantics between
		// windows.
		scheduler, err := soak.New(cfg.Soak.Schedule, cfg.Soak.Duration, func(ctx context.Context) {
			logger.Info("soak window observing running targets", "duration", cfg.Soak.Duration)
			<-ctx.Done()
		}, logger)
		if err != nil {
			return fmt.Errorf("building soak scheduler: %w", err)
		}
		scheduler.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), maxShutdownDelay)
			defer cancel()
			scheduler.Stop(stopCtx)
		}()
	}

	waitForSignal(logger)
	bc.Trigger()

	if !bc.Wait(maxShutdownDelay) {
		logger.Warn("forcibly tearing down after shutdown delay elapsed", "delay", maxShutdownDelay)
	}
	return nil
}

func waitForSignal(logger *slog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
}

func startTarget(bc *shutdown.Broadcaster, tc config.TargetGenConfig, targetLogDir, runID string, sink telemetry.Sink, logger *slog.Logger) error {
	serializer, err := buildSerializer(tc)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(tc.Seed, tc.Seed^0xabad1dea))
	chunks, err := chunkplan.Plan(rng, tc.MaxCacheSizeRaw, tc.BlockSizesRaw)
	if err != nil {
		return fmt.Errorf("planning chunks: %w", err)
	}

	labels := telemetry.Labels{{Key: "target", Value: tc.Name}}
	cache, err := block.Build(rng, serializer, chunks, labels, sink)
	if err != nil {
		return fmt.Errorf("building block cache: %w", err)
	}

	bucket, err := ratelimiter.New(tc.BytesPerSecondRaw)
	if err != nil {
		return fmt.Errorf("building rate bucket: %w", err)
	}

	// A per-target debug log is opt-in via logging.target_log_dir. It
	// fans out everything this target's engine logs into a dedicated file
	// in addition to the process-wide stream, and is removed automatically
	// if the engine shuts down cleanly — only a run that never reaches a
	// clean shutdown (killed, crashed) leaves its trail behind for
	// postmortem.
	targetLogger, closeTargetLog, logPath, err := logging.NewTargetLogger(logger, targetLogDir, tc.Name, runID)
	if err != nil {
		return fmt.Errorf("building target logger: %w", err)
	}
	targetLogger = targetLogger.With("target", tc.Name)

	engine := generator.New(tc.Addr, bucket, cache, labels, sink, targetLogger)

	done := bc.Track()
	go func() {
		defer done()
		engine.Spin(bc.Context())
		closeTargetLog.Close()
		if logPath != "" {
			logging.RemoveTargetLog(targetLogDir, tc.Name, runID)
		}
	}()

	logger.Info("target started", "name", tc.Name, "addr", tc.Addr, "variant", tc.Variant.Kind, "blocks", cache.Len())
	return nil
}

func buildSerializer(tc config.TargetGenConfig) (payload.Serializer, error) {
	switch tc.Variant.Kind {
	case "syslog5424":
		return payload.Syslog5424{}, nil
	case "fluent":
		return payload.Fluent{}, nil
	case "static":
		return payload.NewStatic(tc.Variant.StaticPath)
	default:
		return nil, fmt.Errorf("unknown variant kind %q", tc.Variant.Kind)
	}
}

func buildTelemetry(cfg config.TelemetryConfig, bc *shutdown.Broadcaster, logger *slog.Logger) (telemetry.Sink, func(), error) {
	var sinks telemetry.Multi

	if cfg.Prometheus != nil && cfg.Prometheus.Enabled {
		sinks = append(sinks, telemetry.NewPrometheusSink())
	}

	var captureSink *telemetry.CaptureSink
	if cfg.Capture != nil {
		var archiver *telemetry.S3Archiver
		if cfg.Capture.S3 != nil {
			a, err := telemetry.NewS3Archiver(context.Background(), telemetry.S3ArchiveConfig{
				Bucket: cfg.Capture.S3.Bucket,
				Prefix: cfg.Capture.S3.Prefix,
				Region: cfg.Capture.S3.Region,
			}, logger)
			if err != nil {
				return nil, nil, fmt.Errorf("building s3 archiver: %w", err)
			}
			archiver = a
		}

		cs, err := telemetry.NewCaptureSink(telemetry.CaptureConfig{
			Dir:           cfg.Capture.Dir,
			Codec:         cfg.Capture.Codec,
			RotateBytes:   cfg.Capture.RotateBytes,
			FlushInterval: cfg.Capture.FlushInterval,
			Archive:       archiver,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("building capture sink: %w", err)
		}
		captureSink = cs
		sinks = append(sinks, cs)

		done := bc.Track()
		go func() {
			defer done()
			cs.Run(bc.Context())
		}()
	}

	closeFn := func() {
		if captureSink != nil {
			captureSink.Close()
		}
	}
	return sinks, closeFn, nil
}
