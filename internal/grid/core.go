// Package grid holds the Aegis core state machine: the threat level, its
// timed reset, and the simulated tunnel telemetry that feeds the dashboards.
package grid

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/alerting"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/engine"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/events"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/infra/cache"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/infra/storage"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/platform/logger"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/platform/metrics"
)

// Source tags for events produced by the core itself.
const (
	SourceCore  = "AEGIS_CORE"
	SourceIntel = "AEGIS_INTEL"
)

// Simulated gateway threat raised by the telemetry loop.
const (
	GatewayVector = "BRUTE_FORCE_DETECTED"
	GatewayOrigin = "EXTERNAL_GATEWAY_NODE"
)

// Config tunes the core.
type Config struct {
	ResetAfter        time.Duration
	TelemetryInterval time.Duration
	SimulateThreats   bool
}

// DefaultConfig mirrors the backend defaults: 5s reset, 800ms telemetry.
func DefaultConfig() Config {
	return Config{
		ResetAfter:        5 * time.Second,
		TelemetryInterval: 800 * time.Millisecond,
		SimulateThreats:   true,
	}
}

// StateMirror receives every threat state change. *cache.ThreatStateCache implements it.
type StateMirror interface {
	SetState(ctx context.Context, s cache.ThreatState) error
}

// LevelHistory looks up the last persisted level change.
type LevelHistory interface {
	LatestByType(ctx context.Context, eventType string) (*storage.StoredEvent, error)
}

// Snapshot is a point-in-time view of the core.
type Snapshot struct {
	Level      alerting.Level `json:"level"`
	Vector     string         `json:"vector,omitempty"`
	Origin     string         `json:"origin,omitempty"`
	ChangedAt  time.Time      `json:"changed_at"`
	ResetAt    *time.Time     `json:"reset_at,omitempty"`
	Encryption string         `json:"encryption"`
	Tunnels    []Tunnel       `json:"vpns"`
	Throughput string         `json:"throughput"`
	Alerts     int64          `json:"alerts_received"`
}

// Core manages the system state.
type Core struct {
	cfg     Config
	log     *events.EventLog
	src     engine.Source
	mirror  StateMirror
	logger  *logger.Logger
	metrics *metrics.Collector

	// publishMu serialises a state change with its event and mirror
	// write. Taken before mu.
	publishMu sync.Mutex

	mu         sync.Mutex
	level      alerting.Level
	vector     string
	origin     string
	changedAt  time.Time
	resetAt    time.Time
	resetTimer *time.Timer
	generation uint64
	tunnels    []Tunnel
	throughput string
	alerts     int64
}

// NewCore creates a core at LEVEL_1_SAFE. src drives telemetry and is
// owned by the telemetry loop.
func NewCore(cfg Config, log *events.EventLog, src engine.Source, lg *logger.Logger) *Core {
	if cfg.ResetAfter <= 0 {
		cfg.ResetAfter = DefaultConfig().ResetAfter
	}
	if cfg.TelemetryInterval <= 0 {
		cfg.TelemetryInterval = DefaultConfig().TelemetryInterval
	}
	if src == nil {
		src = engine.NewSource()
	}
	if lg == nil {
		lg = logger.Nop()
	}
	c := &Core{
		cfg:       cfg,
		log:       log,
		src:       src,
		logger:    lg,
		metrics:   metrics.Get(),
		level:     alerting.LevelSafe,
		changedAt: time.Now().UTC(),
		tunnels:   DefaultTunnels(),
	}
	c.metrics.SetThreatLevel(c.level.Rank())
	return c
}

// SetMirror attaches a state cache. Call before serving.
func (c *Core) SetMirror(m StateMirror) {
	c.mirror = m
}

// SetMetrics replaces the global collector.
func (c *Core) SetMetrics(m *metrics.Collector) {
	c.metrics = m
	m.SetThreatLevel(c.Level().Rank())
}

// Level returns the current threat level.
func (c *Core) Level() alerting.Level {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.level
}

// Snapshot returns a copy of the current state.
func (c *Core) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Level:      c.level,
		Vector:     c.vector,
		Origin:     c.origin,
		ChangedAt:  c.changedAt,
		Encryption: Encryption,
		Tunnels:    append([]Tunnel(nil), c.tunnels...),
		Throughput: c.throughput,
		Alerts:     c.alerts,
	}
	if c.resetTimer != nil {
		at := c.resetAt
		s.ResetAt = &at
	}
	return s
}

// RaiseAlert applies an inbound alert. A CRITICAL alert schedules a return
// to SAFE after ResetAfter, replacing any pending reset. A SAFE alert
// clears the level at once.
func (c *Core) RaiseAlert(ctx context.Context, a alerting.Alert) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if a.Source == "" {
		a.Source = SourceIntel
	}
	origin := a.Origin
	if origin == "" {
		origin = a.Source
	}

	c.append(events.NewEvent(events.EventTypeAlertReceived, a.Source, a))

	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	c.mu.Lock()
	prev := c.level
	c.alerts++
	c.stopResetLocked()
	c.level = a.Level
	c.vector = a.Vector
	c.origin = origin
	if a.Level == alerting.LevelSafe {
		c.vector, c.origin = "", ""
	}
	c.changedAt = time.Now().UTC()
	if a.Level == alerting.LevelCritical {
		c.scheduleResetLocked(c.cfg.ResetAfter)
	}
	payload := ThreatPayload{Level: string(c.level), Previous: string(prev), Vector: c.vector, Origin: c.origin}
	state := c.stateLocked()
	c.mu.Unlock()

	c.append(events.NewEvent(events.EventTypeThreatLevelChanged, SourceCore, payload))
	c.publish(ctx, state)

	if a.Level == alerting.LevelCritical {
		c.logger.Event("THREAT_LEVEL_CHANGED", a.Source, fmt.Sprintf("%s vector=%s origin=%s", a.Level, a.Vector, origin))
	}
	return nil
}

// Restore reloads the threat level from the last persisted change. A
// CRITICAL level still inside its reset window is restored with the
// remaining time; anything older comes back as SAFE.
func (c *Core) Restore(ctx context.Context, h LevelHistory) error {
	last, err := h.LatestByType(ctx, string(events.EventTypeThreatLevelChanged))
	if err != nil {
		return fmt.Errorf("restore threat level: %w", err)
	}
	if last == nil {
		return nil
	}

	var p ThreatPayload
	if err := decodePayload(last.Payload, &p); err != nil {
		return fmt.Errorf("restore threat level: %w", err)
	}

	remaining := c.cfg.ResetAfter - time.Since(last.Timestamp)
	if alerting.Level(p.Level) != alerting.LevelCritical || remaining <= 0 {
		c.logger.Info("Restored threat level " + string(alerting.LevelSafe))
		return nil
	}

	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	c.mu.Lock()
	c.stopResetLocked()
	c.level = alerting.LevelCritical
	c.vector = p.Vector
	c.origin = p.Origin
	c.changedAt = last.Timestamp
	c.scheduleResetLocked(remaining)
	state := c.stateLocked()
	c.mu.Unlock()

	c.publish(ctx, state)
	c.logger.Warn(fmt.Sprintf("Restored threat level %s, reset in %s", p.Level, remaining.Round(time.Millisecond)))
	return nil
}

// Close cancels any pending reset.
func (c *Core) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopResetLocked()
}

func (c *Core) scheduleResetLocked(after time.Duration) {
	c.generation++
	gen := c.generation
	c.resetAt = time.Now().UTC().Add(after)
	c.resetTimer = time.AfterFunc(after, func() { c.reset(gen) })
}

func (c *Core) stopResetLocked() {
	if c.resetTimer != nil {
		c.resetTimer.Stop()
		c.resetTimer = nil
	}
	c.generation++
}

func (c *Core) reset(gen uint64) {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	c.mu.Lock()
	if gen != c.generation {
		// Superseded by a newer alert.
		c.mu.Unlock()
		return
	}
	prev := c.level
	c.level = alerting.LevelSafe
	c.vector, c.origin = "", ""
	c.changedAt = time.Now().UTC()
	c.resetTimer = nil
	state := c.stateLocked()
	c.mu.Unlock()

	c.append(events.NewEvent(events.EventTypeThreatLevelChanged, SourceCore, ThreatPayload{Level: string(alerting.LevelSafe), Previous: string(prev)}))
	c.publish(context.Background(), state)
	c.logger.Info("Threat level reset to " + string(alerting.LevelSafe))
}

func (c *Core) stateLocked() cache.ThreatState {
	return cache.ThreatState{
		Level:     string(c.level),
		Vector:    c.vector,
		Origin:    c.origin,
		UpdatedAt: c.changedAt.Unix(),
	}
}

func (c *Core) publish(ctx context.Context, s cache.ThreatState) {
	c.metrics.SetThreatLevel(alerting.Level(s.Level).Rank())
	if c.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := c.mirror.SetState(ctx, s); err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Warn("threat state mirror failed: " + err.Error())
	}
}

func (c *Core) append(e events.Event) {
	if err := c.log.Append(e); err != nil {
		c.logger.Errorf("persist %s event: %v", e.Type, err)
	}
}
