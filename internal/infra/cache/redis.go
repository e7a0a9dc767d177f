// Package cache provides Redis-based caching for quick threat state reads.
// The cache is a mirror for dashboards and peers, never the source of truth.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// ErrMiss is returned when a key is absent.
var ErrMiss = errors.New("cache: miss")

// RedisClient is an interface for Redis operations.
// This allows for easy mocking in tests.
type RedisClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// ThreatState is the cached threat posture of the grid.
type ThreatState struct {
	Level     string `json:"level"`
	Vector    string `json:"vector,omitempty"`
	Origin    string `json:"origin,omitempty"`
	UpdatedAt int64  `json:"updated_at"` // Unix timestamp
}

// ThreatStateCache stores the current threat state under one key.
type ThreatStateCache struct {
	client     RedisClient
	key        string
	expiration time.Duration
}

// NewThreatStateCache creates a cache for the grid named gridID.
func NewThreatStateCache(client RedisClient, gridID string, expiration time.Duration) *ThreatStateCache {
	if expiration <= 0 {
		expiration = 15 * time.Minute
	}
	return &ThreatStateCache{
		client:     client,
		key:        fmt.Sprintf("aegis:%s:threat_state", gridID),
		expiration: expiration,
	}
}

// SetState caches the current threat state.
func (c *ThreatStateCache) SetState(ctx context.Context, state ThreatState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal threat state: %w", err)
	}
	return c.client.Set(ctx, c.key, data, c.expiration)
}

// GetState retrieves the cached threat state. A missing key yields ErrMiss.
func (c *ThreatStateCache) GetState(ctx context.Context) (*ThreatState, error) {
	data, err := c.client.Get(ctx, c.key)
	if err != nil {
		return nil, err
	}

	var state ThreatState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal threat state: %w", err)
	}
	return &state, nil
}

// Invalidate removes the cached state.
func (c *ThreatStateCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, c.key)
}

// Key exposes the Redis key in use.
func (c *ThreatStateCache) Key() string {
	return c.key
}
