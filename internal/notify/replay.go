package notify

import (
	"context"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisReplayProtector implements ReplayProtector using Redis SETNX semantics.
type RedisReplayProtector struct {
	Client *redis.Client
}

// Acquire attempts to claim the delivery key for the provided TTL.
func (r RedisReplayProtector) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if r.Client == nil {
		return true, nil
	}
	return r.Client.SetNX(ctx, key, "1", ttl).Result()
}

// Release removes the replay guard key.
func (r RedisReplayProtector) Release(ctx context.Context, key string) error {
	if r.Client == nil {
		return nil
	}
	return r.Client.Del(ctx, key).Err()
}

// MemoryReplayProtector is the single-process variant used when Redis is absent.
type MemoryReplayProtector struct {
	mu   sync.Mutex
	keys map[string]time.Time
	Now  func() time.Time
}

func (m *MemoryReplayProtector) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *MemoryReplayProtector) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		m.keys = make(map[string]time.Time)
	}
	now := m.now()
	if exp, ok := m.keys[key]; ok && now.Before(exp) {
		return false, nil
	}
	m.keys[key] = now.Add(ttl)
	return true, nil
}

func (m *MemoryReplayProtector) Release(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.keys, key)
	m.mu.Unlock()
	return nil
}
