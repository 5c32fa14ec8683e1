package cart

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/digital-store/internal/pricing"
)

var (
	// ErrInvalidItem is returned when a line item would break pricing invariants.
	ErrInvalidItem = errors.New("invalid cart item")
	// ErrItemNotFound indicates no line item matches the identity key.
	ErrItemNotFound = errors.New("cart item not found")
)

// MaxQuantity caps the units of a single line item.
const MaxQuantity = 99

// LineItem is one product/size/color combination in the cart.
type LineItem struct {
	ProductID         int64           `json:"productId"`
	Name              string          `json:"name"`
	Image             string          `json:"image,omitempty"`
	Size              string          `json:"size"`
	Color             string          `json:"color"`
	UnitPrice         decimal.Decimal `json:"price"`
	OriginalUnitPrice decimal.Decimal `json:"originalPrice"`
	Quantity          int             `json:"quantity"`
}

// Key builds the identity key shared by line items of the same product, size and color.
// Sizes never contain the separator, so the key splits back unambiguously.
func Key(productID int64, size, color string) string {
	return strconv.FormatInt(productID, 10) + "-" + strings.TrimSpace(size) + "-" + strings.TrimSpace(color)
}

// Key returns the item's identity key.
func (it LineItem) Key() string {
	return Key(it.ProductID, it.Size, it.Color)
}

// Subtotal is the line total at the discounted unit price.
func (it LineItem) Subtotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

func (it LineItem) validate() error {
	if it.Quantity < 1 || it.Quantity > MaxQuantity {
		return fmt.Errorf("quantity %d outside 1..%d: %w", it.Quantity, MaxQuantity, ErrInvalidItem)
	}
	if strings.Contains(it.Size, "-") {
		return fmt.Errorf("size %q must not contain '-': %w", it.Size, ErrInvalidItem)
	}
	if it.UnitPrice.IsNegative() || it.OriginalUnitPrice.IsNegative() {
		return fmt.Errorf("negative price: %w", ErrInvalidItem)
	}
	if it.UnitPrice.GreaterThan(it.OriginalUnitPrice) {
		return fmt.Errorf("unit price %s exceeds original %s: %w", it.UnitPrice, it.OriginalUnitPrice, ErrInvalidItem)
	}
	return nil
}

// Store is an ordered collection of line items. Items keep their insertion order and
// no two items share a key. Safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	items []LineItem
}

// NewStore returns a store holding a copy of items, merging duplicates by key.
func NewStore(items ...LineItem) *Store {
	s := &Store{}
	for _, it := range items {
		_ = s.AddItem(it)
	}
	return s
}

// AddItem inserts the item or, when the key already exists, increments its quantity.
func (s *Store) AddItem(item LineItem) error {
	item.Size = strings.TrimSpace(item.Size)
	item.Color = strings.TrimSpace(item.Color)
	if err := item.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := item.Key()
	for i := range s.items {
		if s.items[i].Key() == key {
			if s.items[i].Quantity > MaxQuantity-item.Quantity {
				return fmt.Errorf("quantity would exceed %d: %w", MaxQuantity, ErrInvalidItem)
			}
			s.items[i].Quantity += item.Quantity
			return nil
		}
	}
	s.items = append(s.items, item)
	return nil
}

// UpdateQuantity adjusts an item's quantity by delta. The item is removed once its
// quantity drops to zero or below; raising it past MaxQuantity is rejected.
func (s *Store) UpdateQuantity(key string, delta int) error {
	if delta > MaxQuantity || delta < -MaxQuantity {
		return fmt.Errorf("delta %d outside -%d..%d: %w", delta, MaxQuantity, MaxQuantity, ErrInvalidItem)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].Key() != key {
			continue
		}
		q := s.items[i].Quantity + delta
		if q > MaxQuantity {
			return fmt.Errorf("quantity %d exceeds %d: %w", q, MaxQuantity, ErrInvalidItem)
		}
		if q <= 0 {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
		s.items[i].Quantity = q
		return nil
	}
	return ErrItemNotFound
}

// Deduct removes purchased units from the cart. Lines added or topped up after the
// purchase snapshot was taken keep whatever was not bought.
func (s *Store) Deduct(purchased []LineItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range purchased {
		key := p.Key()
		for i := range s.items {
			if s.items[i].Key() != key {
				continue
			}
			s.items[i].Quantity -= p.Quantity
			if s.items[i].Quantity <= 0 {
				s.items = append(s.items[:i], s.items[i+1:]...)
			}
			break
		}
	}
}

// RemoveItem deletes the item with the given key.
func (s *Store) RemoveItem(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].Key() == key {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return ErrItemNotFound
}

// Clear empties the cart.
func (s *Store) Clear() {
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()
}

// Items returns a copy of the line items in insertion order.
func (s *Store) Items() []LineItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]LineItem, len(s.items))
	copy(out, s.items)
	return out
}

// Len is the number of distinct line items.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Count is the total number of units across every line item.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, it := range s.items {
		n += it.Quantity
	}
	return n
}

// Subtotal is the merchandise value at discounted unit prices.
func (s *Store) Subtotal() decimal.Decimal {
	_, discounted := pricing.Subtotals(PricingItems(s.Items()))
	return discounted
}

// PricingItems converts line items into pricing engine input.
func PricingItems(items []LineItem) []pricing.Item {
	out := make([]pricing.Item, 0, len(items))
	for _, it := range items {
		out = append(out, pricing.Item{
			UnitPrice:         it.UnitPrice,
			OriginalUnitPrice: it.OriginalUnitPrice,
			Quantity:          it.Quantity,
		})
	}
	return out
}
