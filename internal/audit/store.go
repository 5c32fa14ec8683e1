package audit

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Store keeps the most recent audit entries, newest first.
type Store interface {
	Append(ctx context.Context, e Entry) error
	List(ctx context.Context, offset, limit int) ([]Entry, error)
}

// MemoryStore is a bounded in-process Store.
type MemoryStore struct {
	mu      sync.Mutex
	max     int
	entries []Entry
}

// NewMemoryStore keeps at most max entries.
func NewMemoryStore(max int) *MemoryStore {
	if max <= 0 {
		max = 1000
	}
	return &MemoryStore{max: max}
}

func (m *MemoryStore) Append(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append([]Entry{e}, m.entries...)
	if len(m.entries) > m.max {
		m.entries = m.entries[:m.max]
	}
	return nil
}

func (m *MemoryStore) List(_ context.Context, offset, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if offset >= len(m.entries) {
		return []Entry{}, nil
	}
	end := offset + limit
	if end > len(m.entries) {
		end = len(m.entries)
	}
	return append([]Entry(nil), m.entries[offset:end]...), nil
}

// RedisStore keeps entries in a capped Redis list.
type RedisStore struct {
	Client *redis.Client
	Key    string
	Max    int64
}

func (r RedisStore) key() string {
	if r.Key == "" {
		return "audit:admin"
	}
	return r.Key
}

func (r RedisStore) Append(ctx context.Context, e Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	max := r.Max
	if max <= 0 {
		max = 10000
	}
	pipe := r.Client.TxPipeline()
	pipe.LPush(ctx, r.key(), raw)
	pipe.LTrim(ctx, r.key(), 0, max-1)
	_, err = pipe.Exec(ctx)
	return err
}

func (r RedisStore) List(ctx context.Context, offset, limit int) ([]Entry, error) {
	raws, err := r.Client.LRange(ctx, r.key(), int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(raws))
	for _, raw := range raws {
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
