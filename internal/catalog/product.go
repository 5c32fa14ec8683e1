package catalog

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates the requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrInvalidProduct is returned when a product definition is inconsistent.
	ErrInvalidProduct = errors.New("invalid product")
)

// Product is a sellable catalog entry. Price is the current selling price and
// OriginalPrice the list price it is compared against.
type Product struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name" validate:"required,max=200"`
	Category       string          `json:"category" validate:"required,max=100"`
	Price          decimal.Decimal `json:"price"`
	OriginalPrice  decimal.Decimal `json:"originalPrice"`
	Discount       string          `json:"discount"`
	Image          string          `json:"image" validate:"omitempty,url"`
	Images         []string        `json:"images,omitempty" validate:"omitempty,dive,url"`
	Description    string          `json:"description,omitempty"`
	AvailableSizes []string        `json:"availableSizes,omitempty"`
	Stock          *int            `json:"stock,omitempty" validate:"omitempty,gte=0"`
}

// OnSale reports whether the product is priced below its list price.
func (p Product) OnSale() bool {
	return p.Price.LessThan(p.OriginalPrice)
}

// InStock reports whether units are available. Products without stock tracking are always available.
func (p Product) InStock() bool {
	return p.Stock == nil || *p.Stock > 0
}

// SizeAvailable reports whether the size can be ordered. Products without a size grid accept any size.
func (p Product) SizeAvailable(size string) bool {
	if len(p.AvailableSizes) == 0 {
		return true
	}
	return slices.Contains(p.AvailableSizes, strings.TrimSpace(size))
}

// Validate checks pricing consistency.
func (p Product) Validate() error {
	if p.Price.IsNegative() || p.OriginalPrice.IsNegative() {
		return fmt.Errorf("negative price: %w", ErrInvalidProduct)
	}
	if p.Price.GreaterThan(p.OriginalPrice) {
		return fmt.Errorf("price %s exceeds original price %s: %w", p.Price, p.OriginalPrice, ErrInvalidProduct)
	}
	return nil
}

// Normalize fills defaults applied by the back office: a missing original price
// falls back to the selling price and the cover image leads the gallery.
func Normalize(p Product) Product {
	p.Name = strings.TrimSpace(p.Name)
	p.Category = strings.TrimSpace(p.Category)
	if p.OriginalPrice.IsZero() {
		p.OriginalPrice = p.Price
	}
	if p.Image == "" && len(p.Images) > 0 {
		p.Image = p.Images[0]
	}
	sizes := p.AvailableSizes[:0:0]
	for _, s := range p.AvailableSizes {
		if s = strings.TrimSpace(s); s != "" && !slices.Contains(sizes, s) {
			sizes = append(sizes, s)
		}
	}
	p.AvailableSizes = sizes
	return p
}
