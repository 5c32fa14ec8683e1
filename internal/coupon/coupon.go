package coupon

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a code does not match any coupon in the catalog.
	ErrNotFound = errors.New("coupon not found")
	// ErrDuplicate indicates a coupon with the same code already exists.
	ErrDuplicate = errors.New("coupon code already exists")
	// ErrInvalid is returned when a coupon definition cannot be stored or evaluated.
	ErrInvalid = errors.New("invalid coupon")
)

// Type selects which part of the checkout a coupon discounts.
type Type string

const (
	// TypeProduct discounts the merchandise subtotal.
	TypeProduct Type = "product"
	// TypeShipping discounts or waives shipping.
	TypeShipping Type = "shipping"
)

// Coupon is a discount rule identified by a unique code.
type Coupon struct {
	ID              int64  `json:"id"`
	Code            string `json:"code"`
	Type            Type   `json:"type"`
	DiscountPercent int    `json:"discountPercent"`
	IsFreeShipping  bool   `json:"isFreeShipping"`
	Stackable       bool   `json:"stackable"`
}

// NormalizeCode trims and upper-cases a user supplied code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Kind returns the effective coupon type; legacy records without a type discount products.
func (c Coupon) Kind() Type {
	if c.Type == "" {
		return TypeProduct
	}
	return c.Type
}

// AppliesToProducts reports whether the coupon discounts line items.
func (c Coupon) AppliesToProducts() bool {
	return c.Kind() == TypeProduct
}

// AppliesToShipping reports whether the coupon discounts shipping.
func (c Coupon) AppliesToShipping() bool {
	return c.Kind() == TypeShipping
}

// Validate checks the coupon is internally consistent.
func (c Coupon) Validate() error {
	switch c.Kind() {
	case TypeProduct, TypeShipping:
	default:
		return fmt.Errorf("unknown coupon type %q: %w", c.Type, ErrInvalid)
	}
	if c.DiscountPercent < 0 || c.DiscountPercent > 100 {
		return fmt.Errorf("discount percent %d out of range: %w", c.DiscountPercent, ErrInvalid)
	}
	return nil
}

// Normalize applies the back-office rules used when an administrator registers a coupon:
// the code is normalised, free-shipping coupons are recorded as 100% and product coupons
// never carry the free-shipping flag.
func Normalize(c Coupon) Coupon {
	c.Code = NormalizeCode(c.Code)
	c.Type = c.Kind()
	switch c.Type {
	case TypeShipping:
		if c.IsFreeShipping {
			c.DiscountPercent = 100
		}
	default:
		c.IsFreeShipping = false
	}
	return c
}

// Welcome is the coupon every fresh catalog starts with.
func Welcome() Coupon {
	return Coupon{ID: 1, Code: "BEMVINDO", Type: TypeProduct, DiscountPercent: 10, Stackable: true}
}
