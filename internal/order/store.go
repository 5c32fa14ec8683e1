package order

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Store persists orders.
type Store interface {
	Create(ctx context.Context, o Order) (Order, error)
	Get(ctx context.Context, id string) (Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]Order, error)
	List(ctx context.Context, filter ListFilter) ([]Order, int, error)
	UpdateStatus(ctx context.Context, id string, status Status, at time.Time) (Order, error)
}

// MemoryStore keeps orders in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]Order
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]Order)}
}

// Create stores a validated order. The id must be unique.
func (m *MemoryStore) Create(_ context.Context, o Order) (Order, error) {
	if err := o.Validate(); err != nil {
		return Order{}, err
	}
	if o.ID == "" {
		return Order{}, fmt.Errorf("id required: %w", ErrInvalidOrder)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.orders[o.ID]; exists {
		return Order{}, fmt.Errorf("duplicate id %s: %w", o.ID, ErrInvalidOrder)
	}
	o.Items = append([]Item(nil), o.Items...)
	m.orders[o.ID] = o
	return o, nil
}

// Get returns a single order.
func (m *MemoryStore) Get(_ context.Context, id string) (Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

// ListByCustomer returns a customer's orders, newest first.
func (m *MemoryStore) ListByCustomer(_ context.Context, customerID string) ([]Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Order, 0)
	for _, o := range m.orders {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// List returns a page of orders, newest first, and the total matching the filter.
func (m *MemoryStore) List(_ context.Context, filter ListFilter) ([]Order, int, error) {
	filter = filter.normalized()
	m.mu.RLock()
	all := make([]Order, 0, len(m.orders))
	for _, o := range m.orders {
		if filter.Status == "" || o.Status == filter.Status {
			all = append(all, o)
		}
	}
	m.mu.RUnlock()
	sortNewestFirst(all)
	total := len(all)
	start := filter.offset()
	if start >= total {
		return []Order{}, total, nil
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

// UpdateStatus applies a validated status transition.
func (m *MemoryStore) UpdateStatus(_ context.Context, id string, status Status, at time.Time) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	if err := CanTransition(o.Status, status); err != nil {
		return Order{}, err
	}
	o.Status = status
	o.UpdatedAt = at
	m.orders[id] = o
	return o, nil
}

func sortNewestFirst(orders []Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}
