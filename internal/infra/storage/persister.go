package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/events"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/platform/metrics"
)

// EventPersister adapts an EventRepository to events.EventPersister.
type EventPersister struct {
	repo    EventRepository
	timeout time.Duration
	metrics *metrics.Collector
}

// NewEventPersister wraps repo. A nil collector falls back to metrics.Get().
func NewEventPersister(repo EventRepository, m *metrics.Collector) *EventPersister {
	if m == nil {
		m = metrics.Get()
	}
	return &EventPersister{repo: repo, timeout: 2 * time.Second, metrics: m}
}

// Append converts and writes one event, timing the write.
func (p *EventPersister) Append(e events.Event) error {
	start := time.Now()
	err := p.append(e)
	p.metrics.RecordEventWrite(time.Since(start), err)
	return err
}

func (p *EventPersister) append(e events.Event) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	return p.repo.Append(ctx, StoredEvent{
		ID:        e.ID,
		Timestamp: e.Timestamp,
		EventType: string(e.Type),
		Source:    e.Source,
		Payload:   payload,
	})
}
