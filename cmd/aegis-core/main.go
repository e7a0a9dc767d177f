// Package main is the entry point for the Aegis core backend.
// It only handles dependency injection and server initialization.
// NO business logic belongs here.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/alerting"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/api"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/domain/detection"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/engine"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/events"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/grid"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/infra/cache"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/infra/storage"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/network"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/platform/config"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/platform/logger"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/platform/metrics"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/platform/optimization"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/supervisor"
)

const gridID = "GRID_1"

func main() {
	configPath := flag.String("config", "", "Path to aegis.yaml (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "[AEGIS-CORE] "+err.Error())
		os.Exit(1)
	}

	appLogger := logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format}).With("aegis-core")
	appLogger.Info("Initializing Aegis core backend...")

	opt, err := optimization.ForProfile(cfg.Core.Profile)
	if err != nil {
		appLogger.Error("Invalid optimization profile: " + err.Error())
		os.Exit(1)
	}
	m := metrics.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appLogger.Info("Initializing SQLite database '" + cfg.Core.DBPath + "'...")
	db, err := storage.InitSQLite(cfg.Core.DBPath, storage.PoolConfig{
		MaxOpenConns: opt.DBMaxOpenConns,
		MaxIdleConns: opt.DBMaxIdleConns,
	})
	if err != nil {
		appLogger.Error("Failed to initialize SQLite: " + err.Error())
		os.Exit(1)
	}
	defer db.Close()
	eventRepo := storage.NewSQLiteEventRepository(db)

	appLogger.Info("Bootstrapping EventLog...")
	eventLog := events.NewEventLog(opt.EventLogCapacity, storage.NewEventPersister(eventRepo, m))

	core := grid.NewCore(grid.Config{
		ResetAfter:        cfg.Core.ResetAfter,
		TelemetryInterval: cfg.Core.TelemetryInterval,
		SimulateThreats:   cfg.Core.SimulateThreats,
	}, eventLog, engine.NewSource(), appLogger.With("grid"))
	core.SetMetrics(m)
	defer core.Close()

	if cfg.Cache.RedisAddr != "" {
		rdb, err := cache.Dial(ctx, cfg.Cache.RedisAddr, opt.RedisPoolSize)
		if err != nil {
			// The mirror is optional; the core keeps serving without it.
			appLogger.Warn("Redis unavailable, threat state mirror disabled: " + err.Error())
		} else {
			defer rdb.Close()
			core.SetMirror(cache.NewThreatStateCache(rdb, gridID, cfg.Cache.TTL))
			appLogger.Info("Mirroring threat state to Redis at " + cfg.Cache.RedisAddr)
		}
	}

	if err := core.Restore(ctx, eventRepo); err != nil {
		appLogger.Warn(err.Error())
	}

	hub := network.NewHub(*opt, appLogger.With("hub"))
	hub.SetMetrics(m)
	replay := network.NewReplayHandler(eventLog, network.NewStoreHistory(eventRepo), appLogger.With("replay"))

	router := api.NewRouter(api.Config{
		CORSOrigins:     cfg.Core.CORSOrigins,
		AlertRatePerMin: cfg.Core.AlertRatePerMin,
	}, api.Deps{
		Core:    core,
		WS:      hub.ServeWS,
		Replay:  replay.HandleReplay,
		Metrics: m,
		Logger:  appLogger.With("api"),
	})

	server := &http.Server{
		Addr:              cfg.Core.Addr,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	tree := supervisor.NewTree(appLogger.With("supervisor"), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Core.ShutdownTimeout,
	})
	tree.AddGridService(supervisor.NewLoopService("telemetry", core.RunTelemetry))
	tree.AddAPIService(supervisor.NewLoopService("hub", hub.Run))
	tree.AddAPIService(supervisor.NewLoopService("event-poller", func(ctx context.Context) error {
		return hub.PollEvents(ctx, eventLog, network.DefaultPollInterval)
	}))

	if cfg.Core.EmbedIntel {
		src := engine.NewSource()
		if cfg.Intel.Seed != 0 {
			src = engine.NewSeededSource(cfg.Intel.Seed)
		}
		eng, err := engine.New(engine.Config{
			Interval:        cfg.Intel.Interval,
			FaceThreshold:   cfg.Intel.FaceThreshold,
			ThreatThreshold: cfg.Intel.ThreatThreshold,
			Vectors:         detection.Vectors,
		}, src, appLogger.With("intel"), engine.NewConsoleSink(os.Stdout), core.DetectionSink(alerting.Level(cfg.Alerting.Level)))
		if err != nil {
			appLogger.Error("Failed to initialize embedded detection loop: " + err.Error())
			os.Exit(1)
		}
		eng.SetMetrics(m)
		tree.AddGridService(supervisor.NewLoopService("intel", eng.Run))
		appLogger.Info("Detection loop embedded in core")
	}

	tree.AddAPIService(supervisor.NewHTTPServerService(server, cfg.Core.ShutdownTimeout))

	appLogger.Info("Aegis core listening on " + cfg.Core.Addr)
	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		appLogger.Error("Supervisor stopped: " + err.Error())
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		appLogger.Warn(fmt.Sprintf("%d services did not stop in time", len(report)))
	}
	appLogger.Info("Aegis core stopped.")
}
