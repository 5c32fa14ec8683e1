package coupon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Catalog is the read/write coupon registry consulted at checkout and managed by the back office.
type Catalog interface {
	Find(ctx context.Context, code string) (Coupon, error)
	List(ctx context.Context) ([]Coupon, error)
	Add(ctx context.Context, c Coupon) (Coupon, error)
	Delete(ctx context.Context, code string) error
}

// MemoryCatalog keeps coupons in process memory.
type MemoryCatalog struct {
	mu      sync.RWMutex
	coupons []Coupon
	nextID  int64
}

// NewMemoryCatalog constructs a catalog seeded with the provided coupons.
func NewMemoryCatalog(seed ...Coupon) *MemoryCatalog {
	m := &MemoryCatalog{nextID: 1}
	for _, c := range seed {
		c = Normalize(c)
		if c.ID >= m.nextID {
			m.nextID = c.ID + 1
		}
		m.coupons = append(m.coupons, c)
	}
	return m
}

// Find looks a coupon up by code, ignoring case and surrounding whitespace.
func (m *MemoryCatalog) Find(_ context.Context, code string) (Coupon, error) {
	code = NormalizeCode(code)
	if code == "" {
		return Coupon{}, ErrNotFound
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.coupons {
		if c.Code == code {
			return c, nil
		}
	}
	return Coupon{}, ErrNotFound
}

// List returns the coupons, newest first.
func (m *MemoryCatalog) List(_ context.Context) ([]Coupon, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Coupon, len(m.coupons))
	copy(out, m.coupons)
	sortNewestFirst(out)
	return out, nil
}

// Add registers a coupon after normalising it.
func (m *MemoryCatalog) Add(_ context.Context, c Coupon) (Coupon, error) {
	c = Normalize(c)
	if c.Code == "" {
		return Coupon{}, fmt.Errorf("code required: %w", ErrInvalid)
	}
	if err := c.Validate(); err != nil {
		return Coupon{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.coupons {
		if existing.Code == c.Code {
			return Coupon{}, ErrDuplicate
		}
	}
	if c.ID <= 0 {
		c.ID = m.nextID
	}
	if c.ID >= m.nextID {
		m.nextID = c.ID + 1
	}
	m.coupons = append(m.coupons, c)
	return c, nil
}

// Delete removes a coupon by code.
func (m *MemoryCatalog) Delete(_ context.Context, code string) error {
	code = NormalizeCode(code)
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.coupons {
		if c.Code == code {
			m.coupons = append(m.coupons[:i], m.coupons[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// RedisCatalog stores coupons as JSON values in a Redis hash keyed by code.
type RedisCatalog struct {
	Client *redis.Client
	Prefix string
}

func (r RedisCatalog) hashKey() string {
	return r.Prefix + "coupons"
}

func (r RedisCatalog) seqKey() string {
	return r.Prefix + "coupons:seq"
}

// Find looks a coupon up by normalised code.
func (r RedisCatalog) Find(ctx context.Context, code string) (Coupon, error) {
	if r.Client == nil {
		return Coupon{}, errors.New("coupon catalog not configured")
	}
	code = NormalizeCode(code)
	if code == "" {
		return Coupon{}, ErrNotFound
	}
	data, err := r.Client.HGet(ctx, r.hashKey(), code).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Coupon{}, ErrNotFound
		}
		return Coupon{}, fmt.Errorf("load coupon: %w", err)
	}
	var c Coupon
	if err := json.Unmarshal(data, &c); err != nil {
		return Coupon{}, fmt.Errorf("decode coupon %s: %w", code, err)
	}
	return c, nil
}

// List returns every stored coupon, newest first.
func (r RedisCatalog) List(ctx context.Context) ([]Coupon, error) {
	if r.Client == nil {
		return nil, errors.New("coupon catalog not configured")
	}
	values, err := r.Client.HGetAll(ctx, r.hashKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	out := make([]Coupon, 0, len(values))
	for code, raw := range values {
		var c Coupon
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return nil, fmt.Errorf("decode coupon %s: %w", code, err)
		}
		out = append(out, c)
	}
	sortNewestFirst(out)
	return out, nil
}

// Add stores a coupon unless the code is already taken.
func (r RedisCatalog) Add(ctx context.Context, c Coupon) (Coupon, error) {
	if r.Client == nil {
		return Coupon{}, errors.New("coupon catalog not configured")
	}
	c = Normalize(c)
	if c.Code == "" {
		return Coupon{}, fmt.Errorf("code required: %w", ErrInvalid)
	}
	if err := c.Validate(); err != nil {
		return Coupon{}, err
	}
	// Duplicates are caught before an id is drawn; a lost race against a concurrent
	// writer retries and can still consume one.
	add := func(tx *redis.Tx) error {
		exists, err := tx.HExists(ctx, r.hashKey(), c.Code).Result()
		if err != nil {
			return fmt.Errorf("check coupon: %w", err)
		}
		if exists {
			return ErrDuplicate
		}
		if c.ID <= 0 {
			id, err := tx.Incr(ctx, r.seqKey()).Result()
			if err != nil {
				return fmt.Errorf("allocate coupon id: %w", err)
			}
			c.ID = id
		}
		data, err := json.Marshal(c)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, r.hashKey(), c.Code, data)
			return nil
		})
		return err
	}
	requested := c.ID
	for attempt := 0; attempt < 3; attempt++ {
		c.ID = requested
		err := r.Client.Watch(ctx, add, r.hashKey())
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return Coupon{}, err
		}
		return c, nil
	}
	return Coupon{}, fmt.Errorf("store coupon %s: %w", c.Code, redis.TxFailedErr)
}

// Delete removes a coupon by code.
func (r RedisCatalog) Delete(ctx context.Context, code string) error {
	if r.Client == nil {
		return errors.New("coupon catalog not configured")
	}
	removed, err := r.Client.HDel(ctx, r.hashKey(), NormalizeCode(code)).Result()
	if err != nil {
		return fmt.Errorf("delete coupon: %w", err)
	}
	if removed == 0 {
		return ErrNotFound
	}
	return nil
}

func sortNewestFirst(coupons []Coupon) {
	sort.SliceStable(coupons, func(i, j int) bool {
		return coupons[i].ID > coupons[j].ID
	})
}
