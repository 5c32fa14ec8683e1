package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/digital-store/internal/pricing"
)

var (
	// ErrNotFound is returned when an order id is unknown.
	ErrNotFound = errors.New("order not found")
	// ErrInvalidStatus is returned for status values outside the known set.
	ErrInvalidStatus = errors.New("invalid order status")
	// ErrInvalidTransition is returned when a status change is not allowed from the current status.
	ErrInvalidTransition = errors.New("order status transition not allowed")
	// ErrInvalidOrder is returned when an order cannot be recorded.
	ErrInvalidOrder = errors.New("invalid order")
)

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// Statuses lists every status in fulfilment order.
func Statuses() []Status {
	return []Status{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled}
}

// ParseStatus validates a status value.
func ParseStatus(value string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(value)))
	if s.rank() < -1 {
		return "", fmt.Errorf("%q: %w", value, ErrInvalidStatus)
	}
	return s, nil
}

// Terminal reports whether no further changes are accepted.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusProcessing:
		return 1
	case StatusShipped:
		return 2
	case StatusDelivered:
		return 3
	case StatusCancelled:
		return -1
	default:
		return -2
	}
}

// CanTransition reports whether an order may move from one status to another.
// Orders only move forward, may be cancelled until delivered, and never leave a
// terminal status.
func CanTransition(from, to Status) error {
	if to.rank() < -1 {
		return fmt.Errorf("%q: %w", to, ErrInvalidStatus)
	}
	if from.Terminal() {
		return fmt.Errorf("order is %s: %w", from, ErrInvalidTransition)
	}
	if to == StatusCancelled {
		return nil
	}
	if to.rank() <= from.rank() {
		return fmt.Errorf("%s to %s: %w", from, to, ErrInvalidTransition)
	}
	return nil
}

// Item is a purchased line item frozen at checkout time.
type Item struct {
	ProductID         int64           `json:"productId"`
	Name              string          `json:"name"`
	Image             string          `json:"image,omitempty"`
	Size              string          `json:"size,omitempty"`
	Color             string          `json:"color,omitempty"`
	UnitPrice         decimal.Decimal `json:"price"`
	OriginalUnitPrice decimal.Decimal `json:"originalPrice"`
	Quantity          int             `json:"quantity"`
}

// Customer identifies who placed the order.
type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name" validate:"required,max=120"`
	Email string `json:"email" validate:"required,email,max=254"`
}

// Order is a confirmed purchase.
type Order struct {
	ID              string                `json:"id"`
	CustomerID      string                `json:"customerId"`
	CustomerName    string                `json:"customerName"`
	CustomerEmail   string                `json:"customerEmail"`
	Items           []Item                `json:"items"`
	Totals          pricing.Summary       `json:"totals"`
	Total           decimal.Decimal       `json:"total"`
	Status          Status                `json:"status"`
	PaymentMethod   pricing.PaymentMethod `json:"paymentMethod"`
	Installments    int                   `json:"installments"`
	CouponCode      string                `json:"couponCode,omitempty"`
	ShippingAddress string                `json:"shippingAddress"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
}

// ItemCount is the number of units purchased.
func (o Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

// Validate checks the fields every store requires.
func (o Order) Validate() error {
	switch {
	case len(o.Items) == 0:
		return fmt.Errorf("no items: %w", ErrInvalidOrder)
	case strings.TrimSpace(o.CustomerID) == "":
		return fmt.Errorf("customer id required: %w", ErrInvalidOrder)
	case o.Total.IsNegative():
		return fmt.Errorf("negative total: %w", ErrInvalidOrder)
	case !o.PaymentMethod.Valid() || o.PaymentMethod == pricing.PaymentNone:
		return fmt.Errorf("payment method %q: %w", o.PaymentMethod, ErrInvalidOrder)
	}
	if o.Installments < 1 || o.Installments > pricing.MaxInstallments {
		return fmt.Errorf("installments %d: %w", o.Installments, ErrInvalidOrder)
	}
	for i, it := range o.Items {
		if it.Quantity < 1 {
			return fmt.Errorf("item %d quantity %d: %w", i, it.Quantity, ErrInvalidOrder)
		}
	}
	return nil
}

// ListFilter narrows the admin order listing.
type ListFilter struct {
	Status Status
	Page   int
	Limit  int
}

func (f ListFilter) normalized() ListFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	return f
}

func (f ListFilter) offset() int {
	return (f.Page - 1) * f.Limit
}
