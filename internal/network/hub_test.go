package network

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/events"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/platform/metrics"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/platform/optimization"
)

func startHub(t *testing.T, opts optimization.Config) (*Hub, *httptest.Server, context.CancelFunc) {
	t.Helper()
	hub := NewHub(opts, nil)
	hub.SetMetrics(metrics.NewCollector())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, srv, cancel
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestMessageTypeMapping(t *testing.T) {
	cases := map[events.EventType]string{
		events.EventTypeTunnelStats:        "stats",
		events.EventTypeDPILog:             "log",
		events.EventTypeThreatLevelChanged: "threat",
		events.EventTypeFaceDetected:       "face",
		events.EventTypeAlertReceived:      "alert",
	}
	for et, want := range cases {
		got, ok := MessageTypeFor(et)
		assert.True(t, ok, et)
		assert.Equal(t, want, got, et)
	}

	_, ok := MessageTypeFor(events.EventTypeThreatDetected)
	assert.False(t, ok)
}

func TestEncodeEvent(t *testing.T) {
	b, ok, err := EncodeEvent(events.NewEvent(events.EventTypeDPILog, "core", map[string]string{"message": "hi"}))
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"type":"log","payload":{"message":"hi"}}`, string(b))

	b, ok, err = EncodeEvent(events.NewEvent(events.EventTypeThreatDetected, "core", nil))
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, b)
}

func TestHubBroadcastsPolledEvents(t *testing.T) {
	hub, srv, _ := startHub(t, *optimization.DefaultConfig())
	el := events.NewEventLog(100, nil)

	// Events already in the log are not re-sent to new terminals.
	require.NoError(t, el.Append(events.NewEvent(events.EventTypeDPILog, "core", map[string]string{"message": "old"})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.PollEvents(ctx, el, 10*time.Millisecond)

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, el.Append(events.NewEvent(events.EventTypeThreatDetected, "intel", nil)))
	require.NoError(t, el.Append(events.NewEvent(events.EventTypeThreatLevelChanged, "core", map[string]string{"level": "LEVEL_4_CRITICAL"})))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type    string            `json:"type"`
		Payload map[string]string `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "threat", msg.Type)
	assert.Equal(t, "LEVEL_4_CRITICAL", msg.Payload["level"])
}

func TestHubOneFramePerMessage(t *testing.T) {
	hub, srv, _ := startHub(t, *optimization.DefaultConfig())
	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	ctx := context.Background()
	require.NoError(t, hub.Broadcast(ctx, []byte(`{"type":"log","payload":1}`)))
	require.NoError(t, hub.Broadcast(ctx, []byte(`{"type":"log","payload":2}`)))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for _, want := range []string{`{"type":"log","payload":1}`, `{"type":"log","payload":2}`} {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, want, string(data))
	}
}

func TestHubUnregistersOnDisconnect(t *testing.T) {
	hub, srv, _ := startHub(t, *optimization.DefaultConfig())
	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestHubRejectsOverCapacity(t *testing.T) {
	opts := *optimization.DefaultConfig()
	opts.MaxClients = 1
	hub, srv, _ := startHub(t, opts)

	dial(t, srv)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHubShutdownClosesClients(t *testing.T) {
	hub, srv, cancel := startHub(t, *optimization.DefaultConfig())
	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	cancel()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	require.Eventually(t, func() bool {
		return errors.Is(hub.Broadcast(context.Background(), []byte("x")), context.Canceled)
	}, time.Second, 5*time.Millisecond)
}
