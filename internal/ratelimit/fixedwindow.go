package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// FixedWindow counts requests per period with ulule/limiter. It is cheaper than
// SlidingWindow at the cost of allowing bursts at window boundaries.
type FixedWindow struct {
	store limiter.Store

	mu       sync.Mutex
	limiters map[limiter.Rate]*limiter.Limiter
}

// NewFixedWindow wraps a limiter store.
func NewFixedWindow(store limiter.Store) *FixedWindow {
	return &FixedWindow{store: store, limiters: make(map[limiter.Rate]*limiter.Limiter)}
}

// NewFixedWindowStore returns a Redis store when a client is given, otherwise an in-process one.
func NewFixedWindowStore(rdb *redis.Client, prefix string) (limiter.Store, error) {
	if prefix == "" {
		prefix = "ratelimit:fixed"
	}
	if rdb == nil {
		return memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: prefix, CleanUpInterval: time.Minute}), nil
	}
	store, err := limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: prefix})
	if err != nil {
		return nil, fmt.Errorf("limiter redis store: %w", err)
	}
	return store, nil
}

// Allow implements Limiter.
func (f *FixedWindow) Allow(ctx context.Context, key string, window time.Duration, max int) (bool, int, time.Time, error) {
	if f == nil || f.store == nil || max <= 0 || window <= 0 {
		return true, max, time.Now().Add(window), nil
	}
	lctx, err := f.limiter(limiter.Rate{Period: window, Limit: int64(max)}).Get(ctx, key)
	if err != nil {
		return false, 0, time.Now().Add(window), err
	}
	return !lctx.Reached, int(lctx.Remaining), time.Unix(lctx.Reset, 0), nil
}

func (f *FixedWindow) limiter(rate limiter.Rate) *limiter.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.limiters[rate]
	if !ok {
		l = limiter.New(f.store, rate)
		f.limiters[rate] = l
	}
	return l
}

// New selects a strategy by name: "sliding", "fixed" or "off".
func New(strategy string, rdb *redis.Client) (Limiter, error) {
	switch strategy {
	case "off":
		return nil, nil
	case "fixed":
		store, err := NewFixedWindowStore(rdb, "")
		if err != nil {
			return nil, err
		}
		return NewFixedWindow(store), nil
	case "sliding", "":
		if rdb == nil {
			store, _ := NewFixedWindowStore(nil, "")
			return NewFixedWindow(store), nil
		}
		return SlidingWindow{Client: rdb, Prefix: "ratelimit:sliding:"}, nil
	default:
		return nil, fmt.Errorf("unknown rate limit strategy %q", strategy)
	}
}
