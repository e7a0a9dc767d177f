package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/domain/detection"
)

// Default loop parameters.
const (
	DefaultInterval        = 2 * time.Second
	DefaultFaceThreshold   = 0.8
	DefaultThreatThreshold = 0.95
)

// Config is the immutable loop configuration. The engine copies it on construction.
type Config struct {
	Interval        time.Duration
	FaceThreshold   float64
	ThreatThreshold float64
	Vectors         []detection.Vector
}

// DefaultConfig returns the canonical 2s loop with the 0.8 / 0.95 gates.
func DefaultConfig() Config {
	return Config{
		Interval:        DefaultInterval,
		FaceThreshold:   DefaultFaceThreshold,
		ThreatThreshold: DefaultThreatThreshold,
		Vectors:         append([]detection.Vector(nil), detection.Vectors...),
	}
}

var ErrInvalidConfig = errors.New("engine: invalid config")

// Validate checks interval, thresholds and the vector list.
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %s", ErrInvalidConfig, c.Interval)
	}
	if c.FaceThreshold < 0 || c.FaceThreshold > 1 {
		return fmt.Errorf("%w: face threshold %v outside [0,1]", ErrInvalidConfig, c.FaceThreshold)
	}
	if c.ThreatThreshold < 0 || c.ThreatThreshold > 1 {
		return fmt.Errorf("%w: threat threshold %v outside [0,1]", ErrInvalidConfig, c.ThreatThreshold)
	}
	if len(c.Vectors) == 0 {
		return fmt.Errorf("%w: no threat vectors", ErrInvalidConfig)
	}
	for _, v := range c.Vectors {
		if !v.IsKnown() {
			return fmt.Errorf("%w: unknown threat vector %q", ErrInvalidConfig, v)
		}
	}
	return nil
}

func (c Config) clone() Config {
	c.Vectors = append([]detection.Vector(nil), c.Vectors...)
	return c
}
