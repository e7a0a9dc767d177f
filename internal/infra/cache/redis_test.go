package cache

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	ttl  map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return "", ErrMiss
	}
	return v, nil
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, exp time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	default:
		return errors.New("unsupported value type")
	}
	f.ttl[key] = exp
	return nil
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func TestThreatStateRoundTrip(t *testing.T) {
	fake := newFakeRedis()
	c := NewThreatStateCache(fake, "grid-1", time.Minute)
	ctx := context.Background()

	want := ThreatState{Level: "LEVEL_4_CRITICAL", Vector: "BRUTE_FORCE_DETECTED", Origin: "EXTERNAL_GATEWAY_NODE", UpdatedAt: 1700000000}
	require.NoError(t, c.SetState(ctx, want))

	got, err := c.GetState(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, *got)
	assert.Equal(t, "aegis:grid-1:threat_state", c.Key())
	assert.Equal(t, time.Minute, fake.ttl[c.Key()])
}

func TestThreatStateMiss(t *testing.T) {
	c := NewThreatStateCache(newFakeRedis(), "grid-1", 0)

	_, err := c.GetState(context.Background())
	assert.ErrorIs(t, err, ErrMiss)
}

func TestInvalidate(t *testing.T) {
	fake := newFakeRedis()
	c := NewThreatStateCache(fake, "g", 0)
	ctx := context.Background()

	require.NoError(t, c.SetState(ctx, ThreatState{Level: "LEVEL_1_SAFE"}))
	require.NoError(t, c.Invalidate(ctx))

	_, err := c.GetState(ctx)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestCorruptEntry(t *testing.T) {
	fake := newFakeRedis()
	c := NewThreatStateCache(fake, "g", 0)
	fake.data[c.Key()] = "{not json"

	_, err := c.GetState(context.Background())
	assert.Error(t, err)
}

func TestDialUnreachable(t *testing.T) {
	// Grab a free port and close it so nothing is listening.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = Dial(ctx, addr, 2)
	assert.Error(t, err)
}

func TestGoRedisClientSatisfiesInterface(t *testing.T) {
	var _ RedisClient = NewGoRedisClient(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}))
}
