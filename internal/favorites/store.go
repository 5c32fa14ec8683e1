package favorites

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/digital-store/internal/cache"
)

// Store keeps each session's favourite product ids in insertion order.
type Store interface {
	Add(ctx context.Context, sessionID string, productID int64) (bool, error)
	Remove(ctx context.Context, sessionID string, productID int64) (bool, error)
	List(ctx context.Context, sessionID string) ([]int64, error)
	Contains(ctx context.Context, sessionID string, productID int64) (bool, error)
	Clear(ctx context.Context, sessionID string) error
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu   sync.RWMutex
	favs map[string][]int64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{favs: make(map[string][]int64)}
}

func (m *MemoryStore) Add(_ context.Context, sessionID string, productID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.favs[sessionID] {
		if id == productID {
			return false, nil
		}
	}
	m.favs[sessionID] = append(m.favs[sessionID], productID)
	return true, nil
}

func (m *MemoryStore) Remove(_ context.Context, sessionID string, productID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.favs[sessionID]
	for i, id := range ids {
		if id == productID {
			m.favs[sessionID] = append(ids[:i:i], ids[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) List(_ context.Context, sessionID string) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]int64{}, m.favs[sessionID]...), nil
}

func (m *MemoryStore) Contains(_ context.Context, sessionID string, productID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.favs[sessionID] {
		if id == productID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.favs, sessionID)
	m.mu.Unlock()
	return nil
}

// RedisStore keeps favourites in a sorted set per session. Scores come from a shared
// counter, so ZADD NX preserves the position of an already favourited product.
type RedisStore struct {
	Client *redis.Client
	TTL    time.Duration
}

const sequenceKey = cache.NamespaceFavorites + ":seq"

func (s RedisStore) client() (*redis.Client, error) {
	if s.Client == nil {
		return nil, errors.New("favorites: redis client not configured")
	}
	return s.Client, nil
}

func (s RedisStore) Add(ctx context.Context, sessionID string, productID int64) (bool, error) {
	rdb, err := s.client()
	if err != nil {
		return false, err
	}
	key := cache.SessionFavorites(sessionID)
	member := strconv.FormatInt(productID, 10)
	if _, err := rdb.ZScore(ctx, key, member).Result(); err == nil {
		return false, s.touch(ctx, rdb, key)
	} else if !errors.Is(err, redis.Nil) {
		return false, err
	}
	seq, err := rdb.Incr(ctx, sequenceKey).Result()
	if err != nil {
		return false, fmt.Errorf("favorites sequence: %w", err)
	}
	added, err := rdb.ZAddNX(ctx, key, redis.Z{Score: float64(seq), Member: member}).Result()
	if err != nil {
		return false, err
	}
	return added == 1, s.touch(ctx, rdb, key)
}

func (s RedisStore) touch(ctx context.Context, rdb *redis.Client, key string) error {
	if s.TTL <= 0 {
		return nil
	}
	return rdb.Expire(ctx, key, s.TTL).Err()
}

func (s RedisStore) Remove(ctx context.Context, sessionID string, productID int64) (bool, error) {
	rdb, err := s.client()
	if err != nil {
		return false, err
	}
	removed, err := rdb.ZRem(ctx, cache.SessionFavorites(sessionID), strconv.FormatInt(productID, 10)).Result()
	if err != nil {
		return false, err
	}
	return removed == 1, nil
}

func (s RedisStore) List(ctx context.Context, sessionID string) ([]int64, error) {
	rdb, err := s.client()
	if err != nil {
		return nil, err
	}
	members, err := rdb.ZRange(ctx, cache.SessionFavorites(sessionID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s RedisStore) Contains(ctx context.Context, sessionID string, productID int64) (bool, error) {
	rdb, err := s.client()
	if err != nil {
		return false, err
	}
	_, err = rdb.ZScore(ctx, cache.SessionFavorites(sessionID), strconv.FormatInt(productID, 10)).Result()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, err
	}
}

func (s RedisStore) Clear(ctx context.Context, sessionID string) error {
	rdb, err := s.client()
	if err != nil {
		return err
	}
	return rdb.Del(ctx, cache.SessionFavorites(sessionID)).Err()
}
