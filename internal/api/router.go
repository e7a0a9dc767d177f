// Package api exposes the Aegis core over HTTP using the chi router.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/alerting"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/grid"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/platform/logger"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/platform/metrics"
)

// Core is the subset of *grid.Core the API drives.
type Core interface {
	RaiseAlert(ctx context.Context, a alerting.Alert) error
	Snapshot() grid.Snapshot
}

// Config controls cross-cutting HTTP behaviour.
type Config struct {
	CORSOrigins     []string
	AlertRatePerMin int
}

// Deps are the handlers and collaborators wired into the router.
type Deps struct {
	Core    Core
	WS      http.HandlerFunc
	Replay  http.HandlerFunc
	Metrics *metrics.Collector
	Logger  *logger.Logger
}

// Router owns the HTTP handlers.
type Router struct {
	cfg  Config
	deps Deps
}

// NewRouter fills defaults for nil collaborators.
func NewRouter(cfg Config, deps Deps) *Router {
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	if cfg.AlertRatePerMin <= 0 {
		cfg.AlertRatePerMin = 120
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Get()
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	return &Router{cfg: cfg, deps: deps}
}

// Handler builds the route tree.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied in order.
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(rt.requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: rt.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         86400,
	}))

	r.Get("/healthz", rt.handleHealth)

	r.With(httprate.LimitByIP(rt.cfg.AlertRatePerMin, time.Minute)).Post("/alert", rt.handleAlert)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", rt.handleState)
		if rt.deps.Replay != nil {
			r.Get("/events", rt.deps.Replay)
		}
	})

	if rt.deps.WS != nil {
		r.Get("/ws", rt.deps.WS)
	}

	r.Handle("/metrics", rt.deps.Metrics.PrometheusHandler())
	r.Get("/metrics/json", rt.deps.Metrics.Handler())

	return r
}

func (rt *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		rt.deps.Logger.Debug(r.Method + " " + r.URL.Path + " " + strconv.Itoa(ww.Status()) + " " + time.Since(start).String())
	})
}
