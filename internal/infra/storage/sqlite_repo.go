package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteEventRepository implements EventRepository for SQLite.
// Timestamps are stored as Unix nanoseconds.
type SQLiteEventRepository struct {
	db *sql.DB
}

func NewSQLiteEventRepository(db *sql.DB) *SQLiteEventRepository {
	return &SQLiteEventRepository{db: db}
}

const selectColumns = `SELECT id, timestamp, event_type, source, payload FROM events`

func (r *SQLiteEventRepository) Append(ctx context.Context, event StoredEvent) error {
	payload := string(event.Payload)
	if payload == "" {
		payload = "null"
	}

	query := `INSERT INTO events (id, timestamp, event_type, source, payload) VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		event.ID, event.Timestamp.UnixNano(), event.EventType, event.Source, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (r *SQLiteEventRepository) Recent(ctx context.Context, eventType string, limit int) ([]StoredEvent, error) {
	if limit <= 0 {
		return nil, nil
	}

	var (
		evts []StoredEvent
		err  error
	)
	if eventType == "" {
		evts, err = r.getMany(ctx, selectColumns+` ORDER BY timestamp DESC, rowid DESC LIMIT ?`, limit)
	} else {
		evts, err = r.getMany(ctx, selectColumns+` WHERE event_type = ? ORDER BY timestamp DESC, rowid DESC LIMIT ?`, eventType, limit)
	}
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(evts)-1; i < j; i, j = i+1, j-1 {
		evts[i], evts[j] = evts[j], evts[i]
	}
	return evts, nil
}

func (r *SQLiteEventRepository) LatestByType(ctx context.Context, eventType string) (*StoredEvent, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE event_type = ? ORDER BY timestamp DESC, rowid DESC LIMIT 1`, eventType)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

func (r *SQLiteEventRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(s scanner) (StoredEvent, error) {
	var (
		e       StoredEvent
		ts      int64
		payload string
	)
	if err := s.Scan(&e.ID, &ts, &e.EventType, &e.Source, &payload); err != nil {
		return StoredEvent{}, err
	}
	e.Timestamp = time.Unix(0, ts).UTC()
	e.Payload = []byte(payload)
	return e, nil
}

func (r *SQLiteEventRepository) getMany(ctx context.Context, query string, args ...interface{}) ([]StoredEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []StoredEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
