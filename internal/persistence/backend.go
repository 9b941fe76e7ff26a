package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/eptportal/ept-backend/internal/config"
	"github.com/redis/go-redis/v9"
)

// Backend is the durable key-value store behind a Store.
type Backend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// ─── Redis ─────────────────────────────────────────────────────────

// RedisBackend scopes keys to one student's browser tab and expires them
// after ttl, so an abandoned tab's state does not outlive the test day.
type RedisBackend struct {
	rdb       *redis.Client
	studentID string
	tabID     string
	ttl       time.Duration
}

// NewRedisBackend creates a backend for the given student and tab.
func NewRedisBackend(rdb *redis.Client, studentID, tabID string, ttl time.Duration) *RedisBackend {
	return &RedisBackend{rdb: rdb, studentID: studentID, tabID: tabID, ttl: ttl}
}

func (b *RedisBackend) key(k string) string {
	return config.CacheKey.TabStateKey(b.studentID, b.tabID, k)
}

func (b *RedisBackend) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := b.rdb.Get(ctx, b.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

func (b *RedisBackend) Set(ctx context.Context, key, value string) error {
	if err := b.rdb.Set(ctx, b.key(key), value, b.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := b.rdb.Del(ctx, b.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// ─── Memory ────────────────────────────────────────────────────────

// MemoryBackend keeps values in process memory.
type MemoryBackend struct {
	mu     sync.Mutex
	values map[string]string
	writes int
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[string]string)}
}

func (b *MemoryBackend) Get(_ context.Context, key string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.values[key]
	return v, ok, nil
}

func (b *MemoryBackend) Set(_ context.Context, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[key] = value
	b.writes++
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.values, key)
	return nil
}

// Writes returns how many Set calls reached the backend.
func (b *MemoryBackend) Writes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes
}
