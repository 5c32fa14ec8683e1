package shipping

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/digital-store/internal/cache"
	"github.com/noah-isme/digital-store/internal/obs"
)

// Quote is the resolved base shipping value for a destination.
type Quote struct {
	PostalCode string          `json:"postalCode"`
	Address    Address         `json:"address"`
	BaseValue  decimal.Decimal `json:"baseValue"`
}

// Resolver turns postal codes into quotes. Addresses are cached so that tier changes
// apply to cached destinations as well.
type Resolver struct {
	lookup AddressLookup
	tiers  Tiers
	cache  *cache.JSON
}

// NewResolver wires the address lookup, tier table and optional cache.
func NewResolver(lookup AddressLookup, tiers Tiers, addresses *cache.JSON) *Resolver {
	return &Resolver{lookup: lookup, tiers: tiers, cache: addresses}
}

// Tiers returns the active tier table.
func (r *Resolver) Tiers() Tiers {
	return r.tiers
}

// Resolve normalises the postal code, finds its address and prices it by region.
// Errors are ErrInvalidPostalCode, ErrCepNotFound, ErrNetwork or a context error.
func (r *Resolver) Resolve(ctx context.Context, postalCode string) (Quote, error) {
	cep, err := NormalizePostalCode(postalCode)
	if err != nil {
		obs.RecordShippingLookup("input", "invalid")
		return Quote{}, err
	}
	logger := zerolog.Ctx(ctx)

	var addr Address
	hit, err := r.cache.Get(ctx, cache.ShippingQuote(cep), &addr)
	if err != nil {
		logger.Warn().Err(err).Str("postal_code", cep).Msg("shipping cache read failed")
	}
	if hit {
		obs.RecordShippingLookup("cache", "ok")
		return r.quote(cep, addr), nil
	}
	if r.lookup == nil {
		return Quote{}, errors.New("shipping: address lookup not configured")
	}

	start := time.Now()
	addr, err = r.lookup.Lookup(ctx, cep)
	obs.ObserveShippingLatency(time.Since(start))
	if err != nil {
		obs.RecordShippingLookup("upstream", lookupResult(err))
		return Quote{}, err
	}
	obs.RecordShippingLookup("upstream", "ok")
	if err := r.cache.Set(ctx, cache.ShippingQuote(cep), addr); err != nil {
		logger.Warn().Err(err).Str("postal_code", cep).Msg("shipping cache write failed")
	}
	return r.quote(cep, addr), nil
}

func (r *Resolver) quote(cep string, addr Address) Quote {
	addr.PostalCode = cep
	return Quote{PostalCode: cep, Address: addr, BaseValue: r.tiers.BaseFor(addr.State)}
}

func lookupResult(err error) string {
	switch {
	case errors.Is(err, ErrCepNotFound):
		return "not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
