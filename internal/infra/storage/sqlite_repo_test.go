package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/events"
	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/platform/metrics"
)

func newTestRepo(t *testing.T) *SQLiteEventRepository {
	t.Helper()
	db, err := InitSQLite(filepath.Join(t.TempDir(), "nested", "aegis.db"), PoolConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLiteEventRepository(db)
}

func TestAppendAndRecent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for i, typ := range []string{"DPI_LOG", "TUNNEL_STATS", "DPI_LOG", "DPI_LOG"} {
		require.NoError(t, repo.Append(ctx, StoredEvent{
			ID:        events.GenerateEventID(),
			Timestamp: base.Add(time.Duration(i) * time.Second),
			EventType: typ,
			Source:    "AEGIS_CORE",
			Payload:   json.RawMessage(`{"n":` + string(rune('0'+i)) + `}`),
		}))
	}

	all, err := repo.Recent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.True(t, all[0].Timestamp.Equal(base), "oldest first")
	assert.Equal(t, "TUNNEL_STATS", all[1].EventType)

	dpi, err := repo.Recent(ctx, "DPI_LOG", 2)
	require.NoError(t, err)
	require.Len(t, dpi, 2)
	assert.JSONEq(t, `{"n":2}`, string(dpi[0].Payload))
	assert.JSONEq(t, `{"n":3}`, string(dpi[1].Payload))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
}

func TestLatestByType(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	got, err := repo.LatestByType(ctx, "THREAT_LEVEL_CHANGED")
	require.NoError(t, err)
	assert.Nil(t, got, "empty table yields nil")

	now := time.Now().UTC()
	require.NoError(t, repo.Append(ctx, StoredEvent{ID: "a", Timestamp: now, EventType: "THREAT_LEVEL_CHANGED", Source: "core", Payload: json.RawMessage(`{"to":"LEVEL_4_CRITICAL"}`)}))
	require.NoError(t, repo.Append(ctx, StoredEvent{ID: "b", Timestamp: now.Add(time.Second), EventType: "THREAT_LEVEL_CHANGED", Source: "core", Payload: json.RawMessage(`{"to":"LEVEL_1_SAFE"}`)}))

	got, err = repo.LatestByType(ctx, "THREAT_LEVEL_CHANGED")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "b", got.ID)
	assert.Equal(t, now.Add(time.Second).UnixNano(), got.Timestamp.UnixNano())
}

func TestDuplicateIDRejected(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	e := StoredEvent{ID: "dup", Timestamp: time.Now(), EventType: "DPI_LOG", Source: "core"}

	require.NoError(t, repo.Append(ctx, e))
	assert.Error(t, repo.Append(ctx, e))
}

func TestEventPersisterWritesThroughLog(t *testing.T) {
	repo := newTestRepo(t)
	m := metrics.NewCollector()
	el := events.NewEventLog(10, NewEventPersister(repo, m))

	require.NoError(t, el.Append(events.NewEvent(events.EventTypeAlertReceived, "AEGIS_INTEL", map[string]string{"level": "LEVEL_4_CRITICAL"})))

	stored, err := repo.Recent(context.Background(), string(events.EventTypeAlertReceived), 1)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "AEGIS_INTEL", stored[0].Source)
	assert.JSONEq(t, `{"level":"LEVEL_4_CRITICAL"}`, string(stored[0].Payload))
	assert.Equal(t, float64(1), m.Snapshot()["aegis_events_written_total"])
}

type brokenRepo struct{ EventRepository }

func (brokenRepo) Append(context.Context, StoredEvent) error { return errors.New("locked") }

func TestEventPersisterCountsErrors(t *testing.T) {
	m := metrics.NewCollector()
	p := NewEventPersister(brokenRepo{}, m)

	assert.Error(t, p.Append(events.NewEvent(events.EventTypeDPILog, "core", "x")))
	assert.Equal(t, float64(1), m.Snapshot()["aegis_event_write_errors_total"])
}
