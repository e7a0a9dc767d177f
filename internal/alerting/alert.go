// Package alerting carries threat alerts from the intel loop to the core backend.
package alerting

import (
	"errors"
	"fmt"
	"time"

	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/domain/detection"
)

// Level is the core's threat level.
type Level string

const (
	LevelSafe     Level = "LEVEL_1_SAFE"
	LevelCritical Level = "LEVEL_4_CRITICAL"
)

// Valid reports whether l is a known level.
func (l Level) Valid() bool {
	return l == LevelSafe || l == LevelCritical
}

// Rank is the numeric part of the level (1 or 4).
func (l Level) Rank() int {
	switch l {
	case LevelSafe:
		return 1
	case LevelCritical:
		return 4
	default:
		return 0
	}
}

// TypeThreat is the only alert type the core accepts.
const TypeThreat = "threat"

var ErrInvalidAlert = errors.New("alerting: invalid alert")

// Alert is the JSON body POSTed to the core's /alert endpoint.
// The minimal accepted form is {"type": "threat", "level": "LEVEL_4_CRITICAL"}.
type Alert struct {
	Type      string    `json:"type"`
	Level     Level     `json:"level"`
	Vector    string    `json:"vector,omitempty"`
	Severity  string    `json:"severity,omitempty"`
	Origin    string    `json:"origin,omitempty"`
	Source    string    `json:"source,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewThreatAlert wraps a simulated threat detection.
func NewThreatAlert(t detection.ThreatDetection, level Level, source string) Alert {
	return Alert{
		Type:      TypeThreat,
		Level:     level,
		Vector:    string(t.Vector),
		Severity:  t.Severity,
		Source:    source,
		Timestamp: time.Now().UTC(),
	}
}

// Validate checks type and level.
func (a Alert) Validate() error {
	if a.Type != TypeThreat {
		return fmt.Errorf("%w: type %q", ErrInvalidAlert, a.Type)
	}
	if !a.Level.Valid() {
		return fmt.Errorf("%w: level %q", ErrInvalidAlert, a.Level)
	}
	return nil
}
