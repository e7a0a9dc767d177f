package alerting

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/platform/logger"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/platform/metrics"
)

// ErrCircuitOpen is returned while the breaker rejects sends.
var ErrCircuitOpen = errors.New("alerting: circuit open")

// StatusError is a non-2xx answer from the alert endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d body=%q", e.Code, e.Body)
}

func (e *StatusError) retryable() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

// ClientConfig controls delivery, throttling and breaker behaviour.
type ClientConfig struct {
	URL             string
	Headers         map[string]string
	Timeout         time.Duration
	RatePerSecond   float64
	Burst           int
	BreakerFailures uint32
	BreakerTimeout  time.Duration
	Backoffs        []time.Duration // waits between attempts; nil = 100ms, 300ms
}

// Client POSTs alerts to the core backend.
type Client struct {
	url      string
	headers  map[string]string
	http     *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[struct{}]
	backoffs []time.Duration
	metrics  *metrics.Collector
	logger   *logger.Logger
}

// NewClient builds a client. A nil collector falls back to metrics.Get().
func NewClient(cfg ClientConfig, m *metrics.Collector, log *logger.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("alert url is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 2
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}
	if cfg.Backoffs == nil {
		cfg.Backoffs = []time.Duration{100 * time.Millisecond, 300 * time.Millisecond}
	}
	if m == nil {
		m = metrics.Get()
	}
	if log == nil {
		log = logger.Nop()
	}

	hdr := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		hdr[k] = v
	}

	c := &Client{
		url:      cfg.URL,
		headers:  hdr,
		http:     &http.Client{Timeout: cfg.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		backoffs: cfg.Backoffs,
		metrics:  m,
		logger:   log,
	}

	failures := cfg.BreakerFailures
	c.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "alert:" + cfg.URL,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// A 4xx means the core rejected the payload, not that it is down.
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return !se.retryable()
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("alert breaker " + name + ": " + from.String() + " -> " + to.String())
		},
	})

	return c, nil
}

// BreakerState reports the breaker state for monitoring.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// Send delivers one alert. It blocks while throttled, honouring ctx.
func (c *Client) Send(ctx context.Context, a Alert) error {
	if err := a.Validate(); err != nil {
		return err
	}

	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		c.metrics.RecordAlertSent("throttled")
		return fmt.Errorf("alert throttled: %w", err)
	}

	_, err = c.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, c.post(ctx, body)
	})
	switch {
	case err == nil:
		c.metrics.RecordAlertSent("ok")
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		c.metrics.RecordAlertSent("breaker_open")
		return fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	default:
		c.metrics.RecordAlertSent("failed")
		return err
	}
}

func (c *Client) post(ctx context.Context, payload []byte) error {
	var lastErr error
	for attempt := 0; attempt < len(c.backoffs)+1; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range c.headers {
			req.Header.Set(k, v)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("post: %w", err)
		} else {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil
			}
			se := &StatusError{Code: resp.StatusCode, Body: truncateBody(b)}
			if !se.retryable() {
				return se
			}
			lastErr = se
		}

		if attempt < len(c.backoffs) {
			timer := time.NewTimer(c.backoffs[attempt])
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}
	}
	return lastErr
}

func truncateBody(b []byte) string {
	const limit = 200
	if len(b) <= limit {
		return string(b)
	}
	return string(b[:limit]) + "..."
}
