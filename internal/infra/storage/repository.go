// Package storage provides the persistence layer for the Aegis core.
// This package implements the repository pattern so grid logic never sees SQL.
package storage

import (
	"context"
	"time"

	"github.com/goccy/go-json"
)

// StoredEvent mirrors the grid event structure for persistence.
// Payload holds the JSON document as written.
type StoredEvent struct {
	ID        string          `json:"id" db:"id"`
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
	EventType string          `json:"event_type" db:"event_type"`
	Source    string          `json:"source" db:"source"`
	Payload   json.RawMessage `json:"payload" db:"payload"`
}

// EventRepository defines the interface for event persistence.
type EventRepository interface {
	// Append adds a new event to the immutable ledger.
	Append(ctx context.Context, event StoredEvent) error

	// Recent returns up to limit of the newest events, oldest first.
	// An empty eventType matches every type.
	Recent(ctx context.Context, eventType string, limit int) ([]StoredEvent, error)

	// LatestByType returns the newest event of a type, or nil when none exists.
	LatestByType(ctx context.Context, eventType string) (*StoredEvent, error)

	// Count returns the number of stored events.
	Count(ctx context.Context) (int64, error)
}
