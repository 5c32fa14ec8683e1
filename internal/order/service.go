package order

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/digital-store/internal/events"
	"github.com/noah-isme/digital-store/internal/obs"
)

// Service records confirmed purchases and manages their fulfilment status.
type Service struct {
	store  Store
	events *events.Bus
	now    func() time.Time
}

// NewService wires the order store and optional event bus.
func NewService(store Store, bus *events.Bus) *Service {
	return &Service{store: store, events: bus, now: time.Now}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Place assigns an id and timestamps, then stores the order as pending.
func (s *Service) Place(ctx context.Context, o Order) (Order, error) {
	now := s.now().UTC()
	o.ID = uuid.NewString()
	o.Status = StatusPending
	o.CustomerName = strings.TrimSpace(o.CustomerName)
	o.CustomerEmail = strings.ToLower(strings.TrimSpace(o.CustomerEmail))
	o.CreatedAt = now
	o.UpdatedAt = now
	return s.store.Create(ctx, o)
}

// Get returns a single order.
func (s *Service) Get(ctx context.Context, id string) (Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Order{}, ErrNotFound
	}
	return s.store.Get(ctx, id)
}

// GetForCustomer returns an order only when it belongs to the customer.
func (s *Service) GetForCustomer(ctx context.Context, customerID, id string) (Order, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if o.CustomerID != customerID {
		return Order{}, ErrNotFound
	}
	return o, nil
}

// ListByCustomer returns the order history of a customer, newest first.
func (s *Service) ListByCustomer(ctx context.Context, customerID string) ([]Order, error) {
	return s.store.ListByCustomer(ctx, customerID)
}

// List returns a page of orders for the back office.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Order, int, error) {
	return s.store.List(ctx, filter)
}

// UpdateStatus moves an order to a new status and announces the change.
func (s *Service) UpdateStatus(ctx context.Context, id, status string) (Order, error) {
	target, err := ParseStatus(status)
	if err != nil {
		return Order{}, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return Order{}, ErrNotFound
	}
	updated, err := s.store.UpdateStatus(ctx, id, target, s.now().UTC())
	if err != nil {
		return Order{}, err
	}
	obs.RecordOrderStatus(string(target))
	if s.events != nil {
		if _, err := s.events.Emit(ctx, events.TopicOrderStatusChanged, updated.ID, map[string]any{
			"orderId":       updated.ID,
			"status":        updated.Status,
			"customerId":    updated.CustomerID,
			"customerEmail": updated.CustomerEmail,
		}); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("order_id", updated.ID).Msg("emit order status event failed")
		}
	}
	return updated, nil
}
