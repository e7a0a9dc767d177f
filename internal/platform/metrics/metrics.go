// Package metrics provides observability for the intel loop and the core backend.
package metrics

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Collector gathers performance metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	// Loop metrics
	Iterations       prometheus.Counter
	IterationLatency prometheus.Histogram
	Detections       *prometheus.CounterVec // kind=face|threat
	SinkErrors       *prometheus.CounterVec // sink

	// Alert metrics
	AlertsSent     *prometheus.CounterVec // result=ok|failed|throttled|breaker_open
	AlertsReceived *prometheus.CounterVec // result=accepted|rejected
	ThreatLevel    prometheus.Gauge       // 1 = safe, 4 = critical

	// Event metrics
	EventsWritten     prometheus.Counter
	EventWriteErrors  prometheus.Counter
	EventWriteLatency prometheus.Histogram

	// WebSocket metrics
	WSConnectionsActive prometheus.Gauge
	WSMessages          *prometheus.CounterVec // direction=in|out
	WSErrors            prometheus.Counter

	StartTime time.Time
}

// NewCollector registers a fresh set of metrics on a private registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Collector{
		registry: reg,

		Iterations: f.NewCounter(prometheus.CounterOpts{
			Name: "aegis_loop_iterations_total",
			Help: "Total detection loop iterations",
		}),
		IterationLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "aegis_loop_iteration_seconds",
			Help:    "Time spent producing and dispatching one iteration",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		Detections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_detections_total",
			Help: "Synthetic detections emitted",
		}, []string{"kind"}),
		SinkErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_sink_errors_total",
			Help: "Failed sink deliveries",
		}, []string{"sink"}),

		AlertsSent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_alerts_sent_total",
			Help: "Outbound alert attempts by result",
		}, []string{"result"}),
		AlertsReceived: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_alerts_received_total",
			Help: "Inbound alerts by result",
		}, []string{"result"}),
		ThreatLevel: f.NewGauge(prometheus.GaugeOpts{
			Name: "aegis_threat_level",
			Help: "Current threat level (1 safe, 4 critical)",
		}),

		EventsWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "aegis_events_written_total",
			Help: "Total events written to storage",
		}),
		EventWriteErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "aegis_event_write_errors_total",
			Help: "Total event write errors",
		}),
		EventWriteLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "aegis_event_write_seconds",
			Help:    "Event write latency",
			Buckets: prometheus.DefBuckets,
		}),

		WSConnectionsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "aegis_ws_connections",
			Help: "Active WebSocket connections",
		}),
		WSMessages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_ws_messages_total",
			Help: "Total WebSocket messages",
		}, []string{"direction"}),
		WSErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "aegis_ws_errors_total",
			Help: "Total WebSocket errors",
		}),

		StartTime: time.Now(),
	}
}

// Global collector instance
var collector = NewCollector()

// Get returns the global collector.
func Get() *Collector {
	return collector
}

// Registry exposes the underlying registry for custom handlers.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordIteration records one loop iteration.
func (c *Collector) RecordIteration(latency time.Duration) {
	c.Iterations.Inc()
	c.IterationLatency.Observe(latency.Seconds())
}

// RecordDetection records an emitted detection of the given kind.
func (c *Collector) RecordDetection(kind string) {
	c.Detections.WithLabelValues(kind).Inc()
}

// RecordSinkError records a failed sink delivery.
func (c *Collector) RecordSinkError(sink string) {
	c.SinkErrors.WithLabelValues(sink).Inc()
}

// RecordAlertSent records the outcome of an outbound alert.
func (c *Collector) RecordAlertSent(result string) {
	c.AlertsSent.WithLabelValues(result).Inc()
}

// RecordAlertReceived records the outcome of an inbound alert.
func (c *Collector) RecordAlertReceived(accepted bool) {
	if accepted {
		c.AlertsReceived.WithLabelValues("accepted").Inc()
		return
	}
	c.AlertsReceived.WithLabelValues("rejected").Inc()
}

// SetThreatLevel records the numeric threat level.
func (c *Collector) SetThreatLevel(level int) {
	c.ThreatLevel.Set(float64(level))
}

// RecordEventWrite records an event write to the database.
func (c *Collector) RecordEventWrite(latency time.Duration, err error) {
	c.EventsWritten.Inc()
	c.EventWriteLatency.Observe(latency.Seconds())
	if err != nil {
		c.EventWriteErrors.Inc()
	}
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int64) {
	c.WSConnectionsActive.Add(float64(delta))
}

// RecordWSMessage records WebSocket messages.
func (c *Collector) RecordWSMessage(incoming bool) {
	if incoming {
		c.WSMessages.WithLabelValues("in").Inc()
	} else {
		c.WSMessages.WithLabelValues("out").Inc()
	}
}

// RecordWSError records a WebSocket error.
func (c *Collector) RecordWSError() {
	c.WSErrors.Inc()
}

// Snapshot flattens the registry into a map keyed by metric name and labels.
// Histograms contribute _count and _sum entries.
func (c *Collector) Snapshot() map[string]interface{} {
	out := map[string]interface{}{
		"uptime_seconds": time.Since(c.StartTime).Seconds(),
	}

	families, err := c.registry.Gather()
	if err != nil {
		out["error"] = err.Error()
		return out
	}

	for _, fam := range families {
		for _, m := range fam.GetMetric() {
			key := fam.GetName() + labelSuffix(m.GetLabel())
			switch fam.GetType() {
			case dto.MetricType_COUNTER:
				out[key] = m.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				out[key] = m.GetGauge().GetValue()
			case dto.MetricType_HISTOGRAM:
				out[key+"_count"] = m.GetHistogram().GetSampleCount()
				out[key+"_sum"] = m.GetHistogram().GetSampleSum()
			}
		}
	}
	return out
}

func labelSuffix(pairs []*dto.LabelPair) string {
	if len(pairs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, p.GetName()+"="+p.GetValue())
	}
	sort.Strings(parts)
	return "{" + strings.Join(parts, ",") + "}"
}

// Handler returns an HTTP handler for the JSON metrics endpoint.
func (c *Collector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")

		json.NewEncoder(w).Encode(c.Snapshot())
	}
}

// PrometheusHandler returns metrics in Prometheus format.
func (c *Collector) PrometheusHandler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
