package engine

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/alerting"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/domain/detection"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/platform/logger"
)

// Sink consumes iterations. Handle must not retain it beyond the call.
type Sink interface {
	Name() string
	Handle(ctx context.Context, it Iteration) error
}

// FormatFace renders the console line for a face match.
func FormatFace(f detection.FaceDetection) string {
	return fmt.Sprintf("[AI_SCAN] FACE_MATCH identity=%s confidence=%s", f.Identity, f.Confidence)
}

// FormatThreat renders the console line for a network threat.
func FormatThreat(t detection.ThreatDetection) string {
	return fmt.Sprintf("[AI_WARN] THREAT_DETECTED vector=%s severity=%s", t.Vector, t.Severity)
}

// ConsoleSink writes one line per detection, face before threat.
type ConsoleSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsoleSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{w: w}
}

func (s *ConsoleSink) Name() string { return "console" }

func (s *ConsoleSink) Handle(_ context.Context, it Iteration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if it.Face != nil {
		if _, err := fmt.Fprintln(s.w, FormatFace(*it.Face)); err != nil {
			return err
		}
	}
	if it.Threat != nil {
		if _, err := fmt.Fprintln(s.w, FormatThreat(*it.Threat)); err != nil {
			return err
		}
	}
	return nil
}

// Notifier delivers an alert upstream. *alerting.Client implements it.
type Notifier interface {
	Send(ctx context.Context, a alerting.Alert) error
}

// AlertSinkConfig tunes the alert queue.
type AlertSinkConfig struct {
	Level     alerting.Level
	Source    string
	QueueSize int
	Timeout   time.Duration
}

// AlertSink forwards threats to a Notifier from its own goroutine so the
// loop cadence is never held up by the network. Alerts that do not fit in
// the queue are dropped and counted.
type AlertSink struct {
	notifier Notifier
	cfg      AlertSinkConfig
	queue    chan alerting.Alert
	logger   *logger.Logger

	delivered atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

// NewAlertSink creates the sink. Call Serve to start delivery.
func NewAlertSink(n Notifier, cfg AlertSinkConfig, log *logger.Logger) *AlertSink {
	if cfg.Level == "" {
		cfg.Level = alerting.LevelCritical
	}
	if cfg.Source == "" {
		cfg.Source = "AEGIS_INTEL"
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &AlertSink{
		notifier: n,
		cfg:      cfg,
		queue:    make(chan alerting.Alert, cfg.QueueSize),
		logger:   log,
	}
}

func (s *AlertSink) Name() string { return "alert" }

// Handle enqueues an alert when the iteration carries a threat. It never blocks.
func (s *AlertSink) Handle(_ context.Context, it Iteration) error {
	if it.Threat == nil {
		return nil
	}
	a := alerting.NewThreatAlert(*it.Threat, s.cfg.Level, s.cfg.Source)
	select {
	case s.queue <- a:
		return nil
	default:
		s.dropped.Add(1)
		return fmt.Errorf("alert queue full, dropped %s", it.Threat.Vector)
	}
}

// Serve delivers queued alerts until ctx is cancelled.
func (s *AlertSink) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case a := <-s.queue:
			s.deliver(ctx, a)
		}
	}
}

func (s *AlertSink) deliver(ctx context.Context, a alerting.Alert) {
	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := s.notifier.Send(sendCtx, a); err != nil {
		s.failed.Add(1)
		s.logger.Warn("alert delivery failed: " + err.Error())
		return
	}
	s.delivered.Add(1)
}

// String names the sink in supervisor logs.
func (s *AlertSink) String() string { return "alert-sink" }

// AlertSinkStats is a point-in-time copy of the sink counters.
type AlertSinkStats struct {
	Delivered uint64
	Failed    uint64
	Dropped   uint64
}

func (s *AlertSink) Stats() AlertSinkStats {
	return AlertSinkStats{
		Delivered: s.delivered.Load(),
		Failed:    s.failed.Load(),
		Dropped:   s.dropped.Load(),
	}
}
