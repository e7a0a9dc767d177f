// Package main is the entry point for the Aegis intelligence core.
// It runs the simulated detection loop, printing one line per detection to
// stdout and, when enabled, forwarding threats to aegis-core.
// NO business logic belongs here.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/alerting"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/domain/detection"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/engine"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/platform/config"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/platform/logger"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/platform/metrics"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/supervisor"
)

func main() {
	configPath := flag.String("config", "", "Path to aegis.yaml (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "[AEGIS-INTEL] "+err.Error())
		os.Exit(1)
	}

	appLogger := logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format}).With("aegis-intel")
	appLogger.Info("Initializing Aegis intelligence core...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tree := supervisor.NewTree(appLogger.With("supervisor"), supervisor.TreeConfig{})
	sinks := []engine.Sink{engine.NewConsoleSink(os.Stdout)}

	if cfg.Alerting.Enabled {
		client, err := alerting.NewClient(alerting.ClientConfig{
			URL:             cfg.Alerting.URL,
			Headers:         cfg.Alerting.Headers,
			Timeout:         cfg.Alerting.Timeout,
			RatePerSecond:   cfg.Alerting.RatePerSecond,
			Burst:           cfg.Alerting.Burst,
			BreakerFailures: cfg.Alerting.BreakerFailures,
			BreakerTimeout:  cfg.Alerting.BreakerTimeout,
		}, metrics.Get(), appLogger.With("alerting"))
		if err != nil {
			appLogger.Error("Failed to initialize alert client: " + err.Error())
			os.Exit(1)
		}

		alertSink := engine.NewAlertSink(client, engine.AlertSinkConfig{
			Level:   alerting.Level(cfg.Alerting.Level),
			Timeout: 4 * cfg.Alerting.Timeout,
		}, appLogger.With("alert-sink"))
		tree.AddGridService(alertSink)

		sinks = append(sinks, alertSink)
		appLogger.Info("Forwarding threats to " + cfg.Alerting.URL)
	}

	src := engine.NewSource()
	if cfg.Intel.Seed != 0 {
		src = engine.NewSeededSource(cfg.Intel.Seed)
	}

	eng, err := engine.New(engine.Config{
		Interval:        cfg.Intel.Interval,
		FaceThreshold:   cfg.Intel.FaceThreshold,
		ThreatThreshold: cfg.Intel.ThreatThreshold,
		Vectors:         detection.Vectors,
	}, src, appLogger, sinks...)
	if err != nil {
		appLogger.Error("Failed to initialize detection loop: " + err.Error())
		os.Exit(1)
	}

	tree.AddGridService(supervisor.NewLoopService("intel", eng.Run))

	// Blocks until SIGINT/SIGTERM.
	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		appLogger.Error("Supervisor stopped: " + err.Error())
	}
	appLogger.Info("Aegis intelligence core stopped.")
}
