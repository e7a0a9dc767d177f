package engine

import (
	"context"
	"time"

	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/domain/detection"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/platform/logger"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/platform/metrics"
)

// Iteration is the outcome of one loop pass. Face and Threat are nil when not emitted.
type Iteration struct {
	Number int64                      `json:"number"`
	At     time.Time                  `json:"at"`
	Face   *detection.FaceDetection   `json:"face,omitempty"`
	Threat *detection.ThreatDetection `json:"threat,omitempty"`
}

// Empty reports whether nothing was emitted.
func (it Iteration) Empty() bool {
	return it.Face == nil && it.Threat == nil
}

// Engine runs the detection loop. It is driven by a single goroutine.
type Engine struct {
	cfg     Config
	src     Source
	logger  *logger.Logger
	metrics *metrics.Collector

	// Sub-systems
	faceScanner   *FaceScanner
	threatScanner *ThreatScanner
	sinks         []Sink

	iteration int64
}

// New validates cfg and wires the scanners.
func New(cfg Config, src Source, log *logger.Logger, sinks ...Sink) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		src = NewSource()
	}
	if log == nil {
		log = logger.Nop()
	}
	cfg = cfg.clone()

	return &Engine{
		cfg:           cfg,
		src:           src,
		logger:        log,
		metrics:       metrics.Get(),
		faceScanner:   NewFaceScanner(cfg.FaceThreshold),
		threatScanner: NewThreatScanner(cfg.ThreatThreshold, cfg.Vectors),
		sinks:         sinks,
	}, nil
}

// SetMetrics replaces the global collector.
func (e *Engine) SetMetrics(m *metrics.Collector) {
	e.metrics = m
}

// Config returns a copy of the loop configuration.
func (e *Engine) Config() Config {
	return e.cfg.clone()
}

// Step runs exactly one iteration and dispatches it to every sink.
func (e *Engine) Step(ctx context.Context) Iteration {
	start := time.Now()
	e.iteration++

	it := Iteration{Number: e.iteration, At: start}

	if face, ok := e.faceScanner.Scan(e.src); ok {
		it.Face = &face
		e.metrics.RecordDetection("face")
	}
	if threat, ok := e.threatScanner.Scan(e.src); ok {
		it.Threat = &threat
		e.metrics.RecordDetection("threat")
		e.logger.Event("THREAT_DETECTED", "AEGIS_INTEL", string(threat.Vector))
	}

	for _, s := range e.sinks {
		if err := s.Handle(ctx, it); err != nil {
			e.logger.Errorf("sink %s failed: %v", s.Name(), err)
			e.metrics.RecordSinkError(s.Name())
		}
	}

	e.metrics.RecordIteration(time.Since(start))
	return it
}
