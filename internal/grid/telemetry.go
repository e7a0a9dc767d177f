package grid

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/alerting"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/events"
)

// RunTelemetry samples the tunnels every TelemetryInterval until ctx is cancelled.
func (c *Core) RunTelemetry(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.TelemetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.SampleTelemetry(ctx)
		}
	}
}

// SampleTelemetry runs one telemetry pass: tunnel stats, an optional DPI
// line and, when enabled, an occasional simulated gateway threat.
func (c *Core) SampleTelemetry(ctx context.Context) {
	c.mu.Lock()
	for i := range c.tunnels {
		c.tunnels[i].Bandwidth = 50.0 + c.src.Float64()*450.0
		c.tunnels[i].Latency = 1.0 + c.src.Float64()*5.0
	}
	c.throughput = fmt.Sprintf("%.2f", 400.0+c.src.Float64()*100.0)
	stats := TelemetryPayload{
		Throughput: c.throughput,
		Encryption: Encryption,
		VPNs:       append([]Tunnel(nil), c.tunnels...),
		Peak:       PeakLabel,
		Avg:        AvgLabel,
	}
	c.mu.Unlock()

	c.append(events.NewEvent(events.EventTypeTunnelStats, SourceCore, stats))

	if c.src.Float64() > 0.6 {
		msg := FormatDPI(c.src.IntN(254), c.src.IntN(0xFFFFFF))
		c.append(events.NewEvent(events.EventTypeDPILog, SourceCore, DPIPayload{Message: msg}))
	}

	if c.src.Float64() > 0.95 && c.cfg.SimulateThreats {
		err := c.RaiseAlert(ctx, alerting.Alert{
			Type:      alerting.TypeThreat,
			Level:     alerting.LevelCritical,
			Vector:    GatewayVector,
			Origin:    GatewayOrigin,
			Source:    SourceCore,
			Timestamp: time.Now().UTC(),
		})
		if err != nil {
			c.logger.Errorf("simulated gateway threat: %v", err)
		}
	}
}

func decodePayload(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("empty payload")
	}
	return json.Unmarshal(raw, v)
}
