package main

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/digital-store/internal/analytics"
	"github.com/noah-isme/digital-store/internal/audit"
	"github.com/noah-isme/digital-store/internal/cache"
	"github.com/noah-isme/digital-store/internal/cart"
	"github.com/noah-isme/digital-store/internal/catalog"
	"github.com/noah-isme/digital-store/internal/checkout"
	"github.com/noah-isme/digital-store/internal/config"
	"github.com/noah-isme/digital-store/internal/coupon"
	"github.com/noah-isme/digital-store/internal/events"
	"github.com/noah-isme/digital-store/internal/favorites"
	"github.com/noah-isme/digital-store/internal/lock"
	"github.com/noah-isme/digital-store/internal/order"
	"github.com/noah-isme/digital-store/internal/pricing"
	"github.com/noah-isme/digital-store/internal/resilience"
	"github.com/noah-isme/digital-store/internal/shipping"
)

// services bundles the domain services served by the router.
type services struct {
	Catalog   *catalog.Service
	Coupons   coupon.Catalog
	Carts     *cart.Registry
	Shipping  *shipping.Resolver
	Checkout  *checkout.Service
	Orders    *order.Service
	Favorites *favorites.Service
	Events    *events.Bus
	Analytics *analytics.Service
	Audit     *audit.Service
}

// buildServices wires the domain. Redis and Postgres are both optional: without Redis
// every store lives in process memory, without Postgres orders do too.
func buildServices(cfg *config.Config, rdb *redis.Client, pool *pgxpool.Pool, logger zerolog.Logger) (services, error) {
	var eventStore events.EventStore = events.NewMemoryStore(1000)
	if rdb != nil {
		eventStore = events.RedisStreamStore{Client: rdb, Stream: cfg.EventStream, MaxLen: cfg.EventStreamMaxLen}
	}
	bus := &events.Bus{Store: eventStore, Notifiers: []events.Notifier{events.LogNotifier{}}}

	var products catalog.Store = catalog.NewMemoryStore(catalog.InitialProducts()...)
	if rdb != nil {
		products = catalog.RedisStore{Client: rdb}
	}
	catalogSvc, err := catalog.NewService(catalog.ServiceConfig{
		Store: products,
		Cache: cache.NewJSON(rdb, cfg.CatalogCacheTTL),
	})
	if err != nil {
		return services{}, fmt.Errorf("catalog service: %w", err)
	}

	var coupons coupon.Catalog = coupon.NewMemoryCatalog(coupon.Welcome())
	if rdb != nil {
		coupons = coupon.RedisCatalog{Client: rdb}
	}

	var orderStore order.Store = order.NewMemoryStore()
	if pool != nil {
		orderStore = order.PGStore{Pool: pool}
	}
	orders := order.NewService(orderStore, bus)

	breaker := resilience.NewBreaker(5, 0.5, cfg.ViaCEPBreakerOpen).WithTarget("viacep").WithLogger(logger)
	lookup := shipping.NewViaCEPClient(cfg.ViaCEPBaseURL, cfg.ViaCEPTimeout, breaker)
	tiers := shipping.NewTiers(cfg.ShippingTiers.Southeast, cfg.ShippingTiers.South, cfg.ShippingTiers.Other)
	resolver := shipping.NewResolver(lookup, tiers, cache.NewJSON(rdb, cfg.ShippingQuoteTTL))

	carts := cart.NewRegistry(cache.NewJSON(rdb, cfg.CartTTL))

	deps := checkout.Deps{
		Carts:      carts,
		Coupons:    coupons,
		Shipping:   resolver,
		Orders:     orders,
		Events:     bus,
		SessionTTL: cfg.CartTTL,
		Engine: pricing.NewEngine(
			pricing.WithFreeShippingThreshold(cfg.FreeShippingThreshold),
			pricing.WithPixDiscountRate(cfg.PixDiscountRate),
		),
	}
	if rdb != nil {
		deps.Lock = lock.Locker{R: rdb, MaxWait: cfg.CheckoutLockWait}
	}

	var favStore favorites.Store = favorites.NewMemoryStore()
	if rdb != nil {
		favStore = favorites.RedisStore{Client: rdb, TTL: cfg.CartTTL}
	}

	var auditStore audit.Store = audit.NewMemoryStore(int(cfg.AuditMaxEntries))
	if rdb != nil {
		auditStore = audit.RedisStore{Client: rdb, Max: cfg.AuditMaxEntries}
	}

	logger.Debug().Bool("redis", rdb != nil).Bool("postgres", pool != nil).Msg("services wired")

	return services{
		Catalog:   catalogSvc,
		Coupons:   coupons,
		Carts:     carts,
		Shipping:  resolver,
		Checkout:  checkout.NewService(deps),
		Orders:    orders,
		Favorites: favorites.NewService(favStore, catalogSvc),
		Events:    bus,
		Analytics: &analytics.Service{
			Orders:       orderStore,
			Cache:        cache.NewJSON(rdb, cfg.AnalyticsCacheTTL),
			DefaultRange: cfg.AnalyticsDays,
		},
		Audit: &audit.Service{Store: auditStore, Enabled: cfg.AuditEnabled, SamplingRate: cfg.AuditSampling},
	}, nil
}
