// Package events provides the append-only event log shared by the grid.
// Every threat-level change, alert and telemetry sample lands here first;
// the hub, the replay endpoint and the SQLite store all read from it.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of a grid event.
type EventType string

const (
	EventTypeFaceDetected       EventType = "FACE_DETECTED"
	EventTypeThreatDetected     EventType = "THREAT_DETECTED"
	EventTypeThreatLevelChanged EventType = "THREAT_LEVEL_CHANGED"
	EventTypeAlertReceived      EventType = "ALERT_RECEIVED"
	EventTypeTunnelStats        EventType = "TUNNEL_STATS"
	EventTypeDPILog             EventType = "DPI_LOG"
)

// DefaultCapacity bounds the in-memory window when none is given.
const DefaultCapacity = 10000

// Event represents an immutable record of something that happened on the grid.
type Event struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Type      EventType   `json:"type"`
	Source    string      `json:"source"`  // Who produced it
	Payload   interface{} `json:"payload"` // Event-specific data
}

// NewEvent stamps a fresh ID and the current time.
func NewEvent(t EventType, source string, payload interface{}) Event {
	return Event{
		ID:        GenerateEventID(),
		Timestamp: time.Now().UTC(),
		Type:      t,
		Source:    source,
		Payload:   payload,
	}
}

// EventPersister defines how an event is durably stored.
type EventPersister interface {
	Append(event Event) error
}

// EventLog is the in-memory append-only log of grid events.
// Only the newest capacity events are kept in memory. Offsets are absolute,
// so readers holding an offset keep working after old entries are trimmed.
type EventLog struct {
	mu        sync.RWMutex
	events    []Event
	base      int // absolute offset of events[0]
	capacity  int
	persister EventPersister
}

// NewEventLog creates a new event log with an optional persister.
func NewEventLog(capacity int, persister EventPersister) *EventLog {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &EventLog{
		events:    make([]Event, 0, min(capacity, 1024)),
		capacity:  capacity,
		persister: persister,
	}
}

// Append adds a new event to the log. Events are immutable once appended.
// The persister is called synchronously after the in-memory append; its
// error is returned but the event stays in memory.
func (el *EventLog) Append(event Event) error {
	if event.ID == "" {
		event.ID = GenerateEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	el.mu.Lock()
	el.events = append(el.events, event)
	if over := len(el.events) - el.capacity; over > 0 {
		n := copy(el.events, el.events[over:])
		clear(el.events[n:])
		el.events = el.events[:n]
		el.base += over
	}
	el.mu.Unlock()

	if el.persister != nil {
		return el.persister.Append(event)
	}
	return nil
}

// Since returns every retained event at or after offset and the offset to
// pass on the next call. Offsets older than the retained window start at
// the oldest event still held.
func (el *EventLog) Since(offset int) ([]Event, int) {
	el.mu.RLock()
	defer el.mu.RUnlock()

	next := el.base + len(el.events)
	start := offset - el.base
	if start < 0 {
		start = 0
	}
	if start >= len(el.events) {
		return nil, next
	}
	out := make([]Event, len(el.events)-start)
	copy(out, el.events[start:])
	return out, next
}

// Recent returns up to limit of the newest events, oldest first.
// An empty type matches everything.
func (el *EventLog) Recent(limit int, t EventType) []Event {
	el.mu.RLock()
	defer el.mu.RUnlock()

	if limit <= 0 {
		return nil
	}
	var rev []Event
	for i := len(el.events) - 1; i >= 0 && len(rev) < limit; i-- {
		if t == "" || el.events[i].Type == t {
			rev = append(rev, el.events[i])
		}
	}
	out := make([]Event, len(rev))
	for i, e := range rev {
		out[len(rev)-1-i] = e
	}
	return out
}

// Replay returns a copy of the retained history for state reconstruction.
func (el *EventLog) Replay() []Event {
	el.mu.RLock()
	defer el.mu.RUnlock()
	out := make([]Event, len(el.events))
	copy(out, el.events)
	return out
}

// Len returns the absolute number of events ever appended.
func (el *EventLog) Len() int {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return el.base + len(el.events)
}

// GenerateEventID creates a unique event identifier.
func GenerateEventID() string {
	return uuid.NewString()
}
