package shipping

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Tiers maps a state (UF) to its base shipping price. States without an entry pay Default.
type Tiers struct {
	Regions map[string]decimal.Decimal
	Default decimal.Decimal
}

var (
	southeast = []string{"SP", "RJ", "MG", "ES"}
	south     = []string{"PR", "SC", "RS"}
)

// DefaultTiers returns the three storefront bands: Sudeste 15, Sul 25, everything else 45.
func DefaultTiers() Tiers {
	return NewTiers(decimal.NewFromInt(15), decimal.NewFromInt(25), decimal.NewFromInt(45))
}

// NewTiers builds the regional bands from explicit prices.
func NewTiers(southeastPrice, southPrice, otherPrice decimal.Decimal) Tiers {
	t := Tiers{Regions: make(map[string]decimal.Decimal, len(southeast)+len(south)), Default: otherPrice}
	for _, uf := range southeast {
		t.Regions[uf] = southeastPrice
	}
	for _, uf := range south {
		t.Regions[uf] = southPrice
	}
	return t
}

// BaseFor returns the base price for a state code.
func (t Tiers) BaseFor(uf string) decimal.Decimal {
	if price, ok := t.Regions[strings.ToUpper(strings.TrimSpace(uf))]; ok {
		return price
	}
	return t.Default
}
