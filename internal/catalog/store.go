package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Store persists catalog products.
type Store interface {
	List(ctx context.Context) ([]Product, error)
	Get(ctx context.Context, id int64) (Product, error)
	Create(ctx context.Context, p Product) (Product, error)
	Update(ctx context.Context, p Product) (Product, error)
	Delete(ctx context.Context, id int64) error
}

// MemoryStore keeps products in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[int64]Product
	nextID   int64
}

// NewMemoryStore constructs a store seeded with the provided products.
func NewMemoryStore(seed ...Product) *MemoryStore {
	m := &MemoryStore{products: make(map[int64]Product, len(seed)), nextID: 1}
	for _, p := range seed {
		m.products[p.ID] = p
		if p.ID >= m.nextID {
			m.nextID = p.ID + 1
		}
	}
	return m
}

func (m *MemoryStore) List(_ context.Context) ([]Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sortByID(out)
	return out, nil
}

func (m *MemoryStore) Get(_ context.Context, id int64) (Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (m *MemoryStore) Create(_ context.Context, p Product) (Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.nextID
	m.nextID++
	m.products[p.ID] = p
	return p, nil
}

func (m *MemoryStore) Update(_ context.Context, p Product) (Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[p.ID]; !ok {
		return Product{}, ErrNotFound
	}
	m.products[p.ID] = p
	return p, nil
}

func (m *MemoryStore) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return ErrNotFound
	}
	delete(m.products, id)
	return nil
}

// RedisStore keeps products as JSON values in a Redis hash keyed by id.
type RedisStore struct {
	Client *redis.Client
	Prefix string
}

var errStoreNotConfigured = errors.New("product store not configured")

func (r RedisStore) hashKey() string { return r.Prefix + "products" }
func (r RedisStore) seqKey() string  { return r.Prefix + "products:seq" }

func (r RedisStore) List(ctx context.Context) ([]Product, error) {
	if r.Client == nil {
		return nil, errStoreNotConfigured
	}
	values, err := r.Client.HGetAll(ctx, r.hashKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	out := make([]Product, 0, len(values))
	for id, raw := range values {
		var p Product
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("decode product %s: %w", id, err)
		}
		out = append(out, p)
	}
	sortByID(out)
	return out, nil
}

func (r RedisStore) Get(ctx context.Context, id int64) (Product, error) {
	if r.Client == nil {
		return Product{}, errStoreNotConfigured
	}
	data, err := r.Client.HGet(ctx, r.hashKey(), strconv.FormatInt(id, 10)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("load product: %w", err)
	}
	var p Product
	if err := json.Unmarshal(data, &p); err != nil {
		return Product{}, fmt.Errorf("decode product %d: %w", id, err)
	}
	return p, nil
}

func (r RedisStore) Create(ctx context.Context, p Product) (Product, error) {
	if r.Client == nil {
		return Product{}, errStoreNotConfigured
	}
	id, err := r.Client.Incr(ctx, r.seqKey()).Result()
	if err != nil {
		return Product{}, fmt.Errorf("allocate product id: %w", err)
	}
	p.ID = id
	return p, r.put(ctx, p)
}

func (r RedisStore) Update(ctx context.Context, p Product) (Product, error) {
	if r.Client == nil {
		return Product{}, errStoreNotConfigured
	}
	exists, err := r.Client.HExists(ctx, r.hashKey(), strconv.FormatInt(p.ID, 10)).Result()
	if err != nil {
		return Product{}, fmt.Errorf("check product: %w", err)
	}
	if !exists {
		return Product{}, ErrNotFound
	}
	return p, r.put(ctx, p)
}

func (r RedisStore) Delete(ctx context.Context, id int64) error {
	if r.Client == nil {
		return errStoreNotConfigured
	}
	removed, err := r.Client.HDel(ctx, r.hashKey(), strconv.FormatInt(id, 10)).Result()
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if removed == 0 {
		return ErrNotFound
	}
	return nil
}

// Seed writes products with their existing ids and advances the id sequence past them.
func (r RedisStore) Seed(ctx context.Context, products ...Product) error {
	if r.Client == nil {
		return errStoreNotConfigured
	}
	var maxID int64
	for _, p := range products {
		if err := r.put(ctx, p); err != nil {
			return err
		}
		if p.ID > maxID {
			maxID = p.ID
		}
	}
	current, err := r.Client.Get(ctx, r.seqKey()).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("read product sequence: %w", err)
	}
	if maxID > current {
		if err := r.Client.Set(ctx, r.seqKey(), maxID, 0).Err(); err != nil {
			return fmt.Errorf("advance product sequence: %w", err)
		}
	}
	return nil
}

func (r RedisStore) put(ctx context.Context, p Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := r.Client.HSet(ctx, r.hashKey(), strconv.FormatInt(p.ID, 10), data).Err(); err != nil {
		return fmt.Errorf("store product: %w", err)
	}
	return nil
}

func sortByID(products []Product) {
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
}
