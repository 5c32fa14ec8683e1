package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCorrupt marks a stored payload that no longer decodes.
	ErrCorrupt = errors.New("cache: corrupt payload")
	// ErrConflict is returned when Update keeps losing the race against other writers.
	ErrConflict = errors.New("cache: concurrent update")
	// ErrDisabled is returned by Update when no Redis client is attached.
	ErrDisabled = errors.New("cache: disabled")
)

const maxUpdateAttempts = 8

// JSON wraps Redis helpers for JSON payloads.
type JSON struct {
	client *redis.Client
	ttl    time.Duration
}

// NewJSON constructs a cache helper. A nil client turns every call into a no-op.
func NewJSON(client *redis.Client, ttl time.Duration) *JSON {
	return &JSON{client: client, ttl: ttl}
}

// Enabled reports whether a Redis client is attached.
func (c *JSON) Enabled() bool {
	return c != nil && c.client != nil
}

// TTL returns the expiry applied by Set.
func (c *JSON) TTL() time.Duration {
	if c == nil {
		return 0
	}
	return c.ttl
}

// Get unmarshals a cached JSON payload into dst. It reports whether the key existed.
func (c *JSON) Get(ctx context.Context, key string, dst any) (bool, error) {
	if !c.Enabled() || key == "" {
		return false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return true, nil
}

// Update reads key into dst, hands it to fn and stores fn's result, all under WATCH so
// a concurrent writer forces a retry instead of being overwritten. fn may run several
// times and must not have side effects; found is false when the key is missing or no
// longer decodes. An error from fn aborts without writing.
func (c *JSON) Update(ctx context.Context, key string, dst any, fn func(found bool) (any, error)) error {
	if !c.Enabled() || key == "" {
		return ErrDisabled
	}
	txf := func(tx *redis.Tx) error {
		found := true
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			found = false
		case err != nil:
			return err
		default:
			if err := json.Unmarshal(data, dst); err != nil {
				found = false
			}
		}
		next, err := fn(found)
		if err != nil {
			return err
		}
		payload, err := json.Marshal(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, c.ttl)
			return nil
		})
		return err
	}
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := c.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("%w: %s", ErrConflict, key)
}

// Set serialises v as JSON and stores it with the configured TTL.
func (c *JSON) Set(ctx context.Context, key string, v any) error {
	if !c.Enabled() || key == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Delete drops a cached key.
func (c *JSON) Delete(ctx context.Context, key string) error {
	if !c.Enabled() || key == "" {
		return nil
	}
	return c.client.Del(ctx, key).Err()
}
