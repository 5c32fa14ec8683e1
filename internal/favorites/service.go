package favorites

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/digital-store/internal/catalog"
)

// ErrNoSession is returned when no session id is supplied.
var ErrNoSession = errors.New("favorites session required")

// ProductSource resolves favourite ids into catalog products.
type ProductSource interface {
	GetProduct(ctx context.Context, id int64) (catalog.Product, error)
}

// Service manages a session's favourite products.
type Service struct {
	store    Store
	products ProductSource
}

// NewService wires the favourites store and the product catalog.
func NewService(store Store, products ProductSource) *Service {
	return &Service{store: store, products: products}
}

// Add marks a product as favourite. Adding twice is a no-op; it reports whether the product was new.
func (s *Service) Add(ctx context.Context, sessionID string, productID int64) (bool, error) {
	if strings.TrimSpace(sessionID) == "" {
		return false, ErrNoSession
	}
	if _, err := s.products.GetProduct(ctx, productID); err != nil {
		return false, err
	}
	return s.store.Add(ctx, sessionID, productID)
}

// Remove unmarks a product; it reports whether the product was a favourite.
func (s *Service) Remove(ctx context.Context, sessionID string, productID int64) (bool, error) {
	if strings.TrimSpace(sessionID) == "" {
		return false, ErrNoSession
	}
	return s.store.Remove(ctx, sessionID, productID)
}

// Toggle flips the favourite flag and returns the new value.
func (s *Service) Toggle(ctx context.Context, sessionID string, productID int64) (bool, error) {
	removed, err := s.Remove(ctx, sessionID, productID)
	if err != nil || removed {
		return false, err
	}
	if _, err := s.Add(ctx, sessionID, productID); err != nil {
		return false, err
	}
	return true, nil
}

// Contains reports whether a product is a favourite.
func (s *Service) Contains(ctx context.Context, sessionID string, productID int64) (bool, error) {
	if strings.TrimSpace(sessionID) == "" {
		return false, ErrNoSession
	}
	return s.store.Contains(ctx, sessionID, productID)
}

// List returns the favourite products in the order they were added. Products that
// left the catalog are skipped.
func (s *Service) List(ctx context.Context, sessionID string) ([]catalog.Product, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrNoSession
	}
	ids, err := s.store.List(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	out := make([]catalog.Product, 0, len(ids))
	for _, id := range ids {
		p, err := s.products.GetProduct(ctx, id)
		if errors.Is(err, catalog.ErrNotFound) {
			zerolog.Ctx(ctx).Debug().Int64("product_id", id).Msg("favourite product no longer in catalog")
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Clear removes every favourite of the session.
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrNoSession
	}
	return s.store.Clear(ctx, sessionID)
}
