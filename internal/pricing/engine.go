package pricing

import (
	"errors"
	"fmt"

	"github.com/noah-isme/digital-store/internal/coupon"
)

// ErrInvalidInput is returned when the engine receives a malformed cart or context.
var ErrInvalidInput = errors.New("pricing: invalid input")

// PaymentMethod identifies how the customer intends to pay.
type PaymentMethod string

const (
	PaymentNone   PaymentMethod = ""
	PaymentPix    PaymentMethod = "pix"
	PaymentCard   PaymentMethod = "card"
	PaymentBoleto PaymentMethod = "boleto"
)

// Valid reports whether the method is known. The empty method means "not selected yet".
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentNone, PaymentPix, PaymentCard, PaymentBoleto:
		return true
	default:
		return false
	}
}

// MaxInstallments is the largest interest-free split offered for card payments.
const MaxInstallments = 12

var (
	// DefaultFreeShippingThreshold waives shipping once the original merchandise value reaches it.
	DefaultFreeShippingThreshold = MustParse("500")
	// DefaultPixDiscountRate is the instant-payment incentive applied to the intermediate total.
	DefaultPixDiscountRate = MustParse("0.05")
)

// Item describes a line item used for pricing calculation.
type Item struct {
	UnitPrice         Money
	OriginalUnitPrice Money
	Quantity          int
}

// Discounted reports whether the item already carries its own promotional price.
func (it Item) Discounted() bool {
	return it.UnitPrice.LessThan(it.OriginalUnitPrice)
}

// Input is the checkout context the engine prices. BaseShipping is nil while the
// destination has not been resolved; Coupon is nil when no coupon is applied.
type Input struct {
	Items         []Item
	Coupon        *coupon.Coupon
	BaseShipping  *Money
	PaymentMethod PaymentMethod
}

// Summary aggregates computed pricing components.
type Summary struct {
	OriginalSubtotal        Money         `json:"originalSubtotal"`
	DiscountedSubtotal      Money         `json:"discountedSubtotal"`
	ItemDiscount            Money         `json:"itemDiscount"`
	CouponDiscount          Money         `json:"couponDiscount"`
	FreeShippingByThreshold bool          `json:"freeShippingByThreshold"`
	ShippingResolved        bool          `json:"shippingResolved"`
	BaseShipping            Money         `json:"baseShipping"`
	FinalShipping           Money         `json:"finalShipping"`
	ShippingDiscount        Money         `json:"shippingDiscount"`
	IntermediateTotal       Money         `json:"intermediateTotal"`
	PaymentMethod           PaymentMethod `json:"paymentMethod,omitempty"`
	PaymentDiscount         Money         `json:"paymentDiscount"`
	FinalTotal              Money         `json:"finalTotal"`
}

// TotalDiscount is the merchandise discount shown to the customer: item promotions plus coupon.
func (s Summary) TotalDiscount() Money {
	return s.ItemDiscount.Add(s.CouponDiscount)
}

// Rounded returns a copy with every amount rounded to currency precision for display.
func (s Summary) Rounded() Summary {
	out := s
	out.OriginalSubtotal = Round(s.OriginalSubtotal)
	out.DiscountedSubtotal = Round(s.DiscountedSubtotal)
	out.ItemDiscount = Round(s.ItemDiscount)
	out.CouponDiscount = Round(s.CouponDiscount)
	out.BaseShipping = Round(s.BaseShipping)
	out.FinalShipping = Round(s.FinalShipping)
	out.ShippingDiscount = Round(s.ShippingDiscount)
	out.IntermediateTotal = Round(s.IntermediateTotal)
	out.PaymentDiscount = Round(s.PaymentDiscount)
	out.FinalTotal = Round(s.FinalTotal)
	return out
}

// Installments splits the final total into n interest-free card installments,
// rounded for display.
func (s Summary) Installments(n int) (Money, error) {
	if n < 1 || n > MaxInstallments {
		return zero, fmt.Errorf("installments must be between 1 and %d: %w", MaxInstallments, ErrInvalidInput)
	}
	return Round(s.FinalTotal.Div(MoneyFromInt(n))), nil
}

// Engine computes checkout totals. The zero value is not usable; call NewEngine.
type Engine struct {
	FreeShippingThreshold Money
	PixDiscountRate       Money
}

// Option customises an Engine.
type Option func(*Engine)

// WithFreeShippingThreshold overrides the merchandise value that waives shipping.
func WithFreeShippingThreshold(threshold Money) Option {
	return func(e *Engine) { e.FreeShippingThreshold = threshold }
}

// WithPixDiscountRate overrides the PIX incentive expressed as a fraction.
func WithPixDiscountRate(rate Money) Option {
	return func(e *Engine) { e.PixDiscountRate = rate }
}

// NewEngine constructs an engine with the storefront defaults.
func NewEngine(opts ...Option) Engine {
	e := Engine{
		FreeShippingThreshold: DefaultFreeShippingThreshold,
		PixDiscountRate:       DefaultPixDiscountRate,
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// Compute validates the input and runs every pricing stage in order.
func (e Engine) Compute(in Input) (Summary, error) {
	if err := Validate(in); err != nil {
		return Summary{}, err
	}
	if e.FreeShippingThreshold.IsNegative() || e.PixDiscountRate.IsNegative() || e.PixDiscountRate.GreaterThan(decimalOne) {
		return Summary{}, fmt.Errorf("engine configuration out of range: %w", ErrInvalidInput)
	}
	var s Summary
	for _, stage := range e.Pipeline() {
		s = stage.Apply(in, s)
	}
	return s, nil
}

// Validate rejects malformed line items, coupons and payment methods.
func Validate(in Input) error {
	for i, it := range in.Items {
		if it.Quantity < 1 {
			return fmt.Errorf("item %d: quantity %d must be at least 1: %w", i, it.Quantity, ErrInvalidInput)
		}
		if it.UnitPrice.IsNegative() || it.OriginalUnitPrice.IsNegative() {
			return fmt.Errorf("item %d: negative price: %w", i, ErrInvalidInput)
		}
		if it.UnitPrice.GreaterThan(it.OriginalUnitPrice) {
			return fmt.Errorf("item %d: unit price %s exceeds original %s: %w", i, it.UnitPrice, it.OriginalUnitPrice, ErrInvalidInput)
		}
	}
	if in.Coupon != nil {
		if err := in.Coupon.Validate(); err != nil {
			return fmt.Errorf("coupon %s: %w: %w", in.Coupon.Code, err, ErrInvalidInput)
		}
	}
	if in.BaseShipping != nil && in.BaseShipping.IsNegative() {
		return fmt.Errorf("negative base shipping: %w", ErrInvalidInput)
	}
	if !in.PaymentMethod.Valid() {
		return fmt.Errorf("unknown payment method %q: %w", in.PaymentMethod, ErrInvalidInput)
	}
	return nil
}

