package engine

import (
	"context"
	"time"
)

// Run steps immediately and then once per interval. It never returns on its
// own; cancelling ctx is the only way to stop it, and ctx.Err() is returned.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("Detection loop started. Scanning every " + e.cfg.Interval.String())

	e.Step(ctx)

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Detection loop stopped by context.")
			return ctx.Err()
		case <-ticker.C:
			e.Step(ctx)
		}
	}
}
