// Package network - replay.go
// Replay endpoint: JSON export of recent grid events, so a terminal that
// connects late can backfill its panels.
package network

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/events"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/infra/storage"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/platform/logger"
)

const (
	defaultReplayLimit = 100
	maxReplayLimit     = 1000
)

// EventHistory is the durable store consulted for ?source=store.
type EventHistory interface {
	RecentEvents(ctx context.Context, eventType string, limit int) ([]ReplayEvent, error)
}

// ReplayHandler provides the replay API.
type ReplayHandler struct {
	eventLog *events.EventLog
	history  EventHistory
	logger   *logger.Logger
}

// NewReplayHandler creates a new replay handler. history may be nil.
func NewReplayHandler(el *events.EventLog, history EventHistory, log *logger.Logger) *ReplayHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ReplayHandler{
		eventLog: el,
		history:  history,
		logger:   log,
	}
}

// ReplayEvent is an event as served by the replay API.
type ReplayEvent struct {
	ID          string      `json:"id"`
	Timestamp   string      `json:"timestamp"`
	Type        string      `json:"type"`
	MessageType string      `json:"message_type,omitempty"`
	Source      string      `json:"source"`
	Payload     interface{} `json:"payload"`
}

// ReplayResponse is the API response for replay.
type ReplayResponse struct {
	TotalEvents int           `json:"total_events"`
	FilteredBy  string        `json:"filtered_by,omitempty"`
	Origin      string        `json:"origin"`
	GeneratedAt string        `json:"generated_at"`
	Events      []ReplayEvent `json:"events"`
}

// HandleReplay returns recent events.
// GET /api/events?type=DPI_LOG&limit=50&source=store
func (rh *ReplayHandler) HandleReplay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rh.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	eventType := q.Get("type")

	limit := defaultReplayLimit
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			rh.jsonError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxReplayLimit)
	}

	resp := ReplayResponse{
		FilteredBy:  eventType,
		Origin:      "memory",
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Events:      []ReplayEvent{},
	}

	if q.Get("source") == "store" {
		if rh.history == nil {
			rh.jsonError(w, "No event store configured", http.StatusNotFound)
			return
		}
		evts, err := rh.history.RecentEvents(r.Context(), eventType, limit)
		if err != nil {
			rh.logger.Errorf("replay from store: %v", err)
			rh.jsonError(w, "Event store unavailable", http.StatusInternalServerError)
			return
		}
		resp.Origin = "store"
		resp.Events = append(resp.Events, evts...)
	} else {
		for _, e := range rh.eventLog.Recent(limit, events.EventType(eventType)) {
			resp.Events = append(resp.Events, ToReplayEvent(e))
		}
	}
	resp.TotalEvents = len(resp.Events)

	rh.logger.Debug("replay served " + strconv.Itoa(resp.TotalEvents) + " events")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ToReplayEvent converts a log event into its API form.
func ToReplayEvent(e events.Event) ReplayEvent {
	mt, _ := MessageTypeFor(e.Type)
	return ReplayEvent{
		ID:          e.ID,
		Timestamp:   e.Timestamp.UTC().Format(time.RFC3339Nano),
		Type:        string(e.Type),
		MessageType: mt,
		Source:      e.Source,
		Payload:     e.Payload,
	}
}

// jsonError sends an error response.
func (rh *ReplayHandler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// StoreHistory serves replay requests from an EventRepository.
type StoreHistory struct {
	repo storage.EventRepository
}

func NewStoreHistory(repo storage.EventRepository) *StoreHistory {
	return &StoreHistory{repo: repo}
}

func (s *StoreHistory) RecentEvents(ctx context.Context, eventType string, limit int) ([]ReplayEvent, error) {
	stored, err := s.repo.Recent(ctx, eventType, limit)
	if err != nil {
		return nil, err
	}
	out := make([]ReplayEvent, 0, len(stored))
	for _, e := range stored {
		mt, _ := MessageTypeFor(events.EventType(e.EventType))
		out = append(out, ReplayEvent{
			ID:          e.ID,
			Timestamp:   e.Timestamp.UTC().Format(time.RFC3339Nano),
			Type:        e.EventType,
			MessageType: mt,
			Source:      e.Source,
			Payload:     e.Payload,
		})
	}
	return out, nil
}
