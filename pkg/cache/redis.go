package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Get when the key is not cached.
var ErrMiss = errors.New("cache miss")

// Store keeps encoded responses for a limited time.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte, expiration time.Duration) error
}

type localEntry struct {
	expires time.Time
	data    []byte
}

// expired entries are swept once the map reaches this size
const sweepSize = 4096

// Memory is a process local Store.
type Memory struct {
	mu      sync.Mutex
	entries map[string]localEntry
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]localEntry),
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, found := m.entries[key]
	if !found {
		return nil, ErrMiss
	}
	if !entry.expires.After(m.now()) {
		delete(m.entries, key)
		return nil, ErrMiss
	}
	return entry.data, nil
}

func (m *Memory) Set(_ context.Context, key string, data []byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if len(m.entries) >= sweepSize {
		for k, e := range m.entries {
			if !e.expires.After(now) {
				delete(m.entries, k)
			}
		}
	}
	m.entries[key] = localEntry{expires: now.Add(expiration), data: data}
	return nil
}

// Redis is a Store shared between portal instances. Entries read from redis are
// kept locally for at most LocalTTL to save round trips.
type Redis struct {
	Prefix   string
	LocalTTL time.Duration
	client   *redis.Client
	local    *Memory
}

func NewRedis(addr, password string, db int) *Redis {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Redis{
		Prefix:   "discovery:",
		LocalTTL: time.Minute,
		client:   rdb,
		local:    NewMemory(),
	}
}

func (c *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	if data, err := c.local.Get(ctx, key); err == nil {
		return data, nil
	}
	data, err := c.client.Get(ctx, c.Prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	c.local.Set(ctx, key, data, c.LocalTTL)
	return data, nil
}

func (c *Redis) Set(ctx context.Context, key string, data []byte, expiration time.Duration) error {
	c.local.Set(ctx, key, data, min(expiration, c.LocalTTL))
	return c.client.Set(ctx, c.Prefix+key, data, expiration).Err()
}

func (c *Redis) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Redis) Close() error {
	return c.client.Close()
}
