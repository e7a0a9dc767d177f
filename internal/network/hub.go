package network

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/events"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/platform/logger"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/platform/metrics"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/platform/optimization"
)

// DefaultPollInterval is how often the poller checks the event log.
const DefaultPollInterval = 200 * time.Millisecond

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.Mutex
	opts       optimization.Config
	upgrader   websocket.Upgrader
	logger     *logger.Logger
	metrics    *metrics.Collector
}

// NewHub initializes a new WebSocket Hub sized by opts.
func NewHub(opts optimization.Config, log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		broadcast:  make(chan []byte, opts.BroadcastChannelBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		opts:       opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Dashboards are served from other origins
			},
		},
		logger:  log,
		metrics: metrics.Get(),
	}
}

// SetMetrics replaces the global collector.
func (h *Hub) SetMetrics(m *metrics.Collector) {
	h.metrics = m
}

// Run starts the Hub's main loop to handle client connections and broadcasts.
// It returns ctx.Err() once ctx is cancelled, closing every client.
func (h *Hub) Run(ctx context.Context) error {
	defer h.stopOnce.Do(func() { close(h.done) })
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				h.dropLocked(client)
			}
			h.mu.Unlock()
			h.logger.Info("WebSocket Hub shutting down.")
			return ctx.Err()
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.metrics.RecordWSConnection(1)
			h.logger.Info("Aegis terminal connected: " + client.conn.RemoteAddr().String())
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				h.dropLocked(client)
				h.logger.Info("Aegis terminal disconnected")
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
					h.metrics.RecordWSMessage(false)
				default:
					// Slow consumer.
					h.dropLocked(client)
					h.metrics.RecordWSError()
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) dropLocked(c *Client) {
	delete(h.clients, c)
	close(c.send)
	h.metrics.RecordWSConnection(-1)
}

// ClientCount returns the number of connected terminals.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast queues a raw message for every client. It blocks until the hub
// accepts it, ctx ends, or the hub stops.
func (h *Hub) Broadcast(ctx context.Context, message []byte) error {
	select {
	case <-h.done:
		return context.Canceled
	default:
	}
	select {
	case h.broadcast <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return context.Canceled
	}
}

// BroadcastEvent serializes an event into a dashboard message and sends it
// to all connected clients. Events without a message type are skipped.
func (h *Hub) BroadcastEvent(ctx context.Context, event events.Event) error {
	payload, ok, err := EncodeEvent(event)
	if err != nil {
		h.logger.Errorf("Failed to serialize %s event for WebSocket broadcast: %v", event.Type, err)
		return nil
	}
	if !ok {
		return nil
	}
	return h.Broadcast(ctx, payload)
}

// PollEvents pushes every new event-log entry to the hub until ctx is
// cancelled. This lets the hub run independently of whoever appends.
func (h *Hub) PollEvents(ctx context.Context, eventLog *events.EventLog, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	pollInterval := time.NewTicker(interval)
	defer pollInterval.Stop()

	// Start from the current tail; history is available through replay.
	offset := eventLog.Len()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-pollInterval.C:
			var newEvents []events.Event
			newEvents, offset = eventLog.Since(offset)
			for _, event := range newEvents {
				if err := h.BroadcastEvent(ctx, event); err != nil {
					return err
				}
			}
		}
	}
}

// ServeWS upgrades the request and attaches a new client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	if h.opts.MaxClients > 0 && h.ClientCount() >= h.opts.MaxClients {
		http.Error(w, "too many terminals", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade websocket connection: " + err.Error())
		h.metrics.RecordWSError()
		return
	}

	client := NewClient(h, conn)
	if !client.Register() {
		conn.Close()
		return
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.WritePump()
	go client.ReadPump()
}
