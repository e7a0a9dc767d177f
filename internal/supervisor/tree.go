// Package supervisor runs the Aegis services under a suture tree.
//
//	aegis (root)
//	├── grid-layer: telemetry loop, detection loop, alert sink
//	└── api-layer:  websocket hub, event poller, HTTP server
//
// aegis-intel only populates the grid layer.
//
// A service that returns an error or panics is restarted with backoff;
// cancelling the root context stops everything.
package supervisor

import (
	"context"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/platform/logger"
)

// TreeConfig holds the restart policy shared by every supervisor.
type TreeConfig struct {
	// FailureThreshold is the number of failures before entering backoff.
	// Default: 5
	FailureThreshold float64

	// FailureDecay is the rate at which failures decay in seconds.
	// Default: 30
	FailureDecay float64

	// FailureBackoff is the duration to wait when threshold is exceeded.
	// Default: 15s
	FailureBackoff time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 10s
	ShutdownTimeout time.Duration
}

func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree is the core's supervisor hierarchy.
type Tree struct {
	root   *suture.Supervisor
	grid   *suture.Supervisor
	api    *suture.Supervisor
	logger *logger.Logger
	config TreeConfig
}

// NewTree builds the hierarchy. Zero config fields take the defaults.
func NewTree(log *logger.Logger, config TreeConfig) *Tree {
	def := DefaultTreeConfig()
	if config.FailureThreshold == 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.FailureDecay == 0 {
		config.FailureDecay = def.FailureDecay
	}
	if config.FailureBackoff == 0 {
		config.FailureBackoff = def.FailureBackoff
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = def.ShutdownTimeout
	}
	if log == nil {
		log = logger.Nop()
	}

	rootSpec := suture.Spec{
		EventHook:        eventHook(log),
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	// Children inherit the EventHook when added to the root.
	childSpec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	root := suture.New("aegis", rootSpec)
	gridLayer := suture.New("grid-layer", childSpec)
	apiLayer := suture.New("api-layer", childSpec)

	root.Add(gridLayer)
	root.Add(apiLayer)

	return &Tree{
		root:   root,
		grid:   gridLayer,
		api:    apiLayer,
		logger: log,
		config: config,
	}
}

func eventHook(log *logger.Logger) suture.EventHook {
	return func(e suture.Event) {
		switch e.Type() {
		case suture.EventTypeBackoff, suture.EventTypeResume:
			log.Warn("supervisor: " + e.String())
		default:
			log.Error("supervisor: " + e.String())
		}
	}
}

func (t *Tree) AddGridService(svc suture.Service) suture.ServiceToken {
	return t.grid.Add(svc)
}

func (t *Tree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// Serve blocks until ctx is cancelled and every service has stopped.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that ignored shutdown.
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
