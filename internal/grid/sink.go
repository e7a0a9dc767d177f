package grid

import (
	"context"

	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/alerting"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/engine"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/events"
)

// DetectionSink feeds an in-process detection loop into the core: every
// detection becomes an event and every threat raises an alert directly.
type DetectionSink struct {
	core  *Core
	level alerting.Level
}

// DetectionSink returns an engine.Sink bound to c. Threats raise level.
func (c *Core) DetectionSink(level alerting.Level) *DetectionSink {
	if !level.Valid() {
		level = alerting.LevelCritical
	}
	return &DetectionSink{core: c, level: level}
}

func (s *DetectionSink) Name() string { return "grid" }

func (s *DetectionSink) Handle(ctx context.Context, it engine.Iteration) error {
	if it.Face != nil {
		s.core.append(events.NewEvent(events.EventTypeFaceDetected, SourceIntel, it.Face))
	}
	if it.Threat != nil {
		s.core.append(events.NewEvent(events.EventTypeThreatDetected, SourceIntel, it.Threat))
		return s.core.RaiseAlert(ctx, alerting.NewThreatAlert(*it.Threat, s.level, SourceIntel))
	}
	return nil
}
