package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/digital-store/internal/analytics"
	"github.com/noah-isme/digital-store/internal/audit"
	"github.com/noah-isme/digital-store/internal/cart"
	"github.com/noah-isme/digital-store/internal/catalog"
	"github.com/noah-isme/digital-store/internal/checkout"
	"github.com/noah-isme/digital-store/internal/common"
	"github.com/noah-isme/digital-store/internal/coupon"
	"github.com/noah-isme/digital-store/internal/favorites"
	"github.com/noah-isme/digital-store/internal/health"
	"github.com/noah-isme/digital-store/internal/obs"
	"github.com/noah-isme/digital-store/internal/order"
	"github.com/noah-isme/digital-store/internal/ratelimit"
	"github.com/noah-isme/digital-store/internal/security"
	"github.com/noah-isme/digital-store/internal/shipping"
)

type routerConfig struct {
	Logger          zerolog.Logger
	Metrics         *obs.HTTPMetrics
	Tracing         bool
	Limiter         ratelimit.Limiter
	RateRequests    int
	RateWindow      time.Duration
	Idem            common.Idem
	Health          health.Handler
	Admin           adminGuard
	CORSOrigins     []string
	MaxBodyBytes    int64
	SecurityHeaders bool
	Pprof           bool
}

func newRouter(svc services, rc routerConfig) http.Handler {
	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: svc.Catalog})
	cartHandler := &cart.Handler{Registry: svc.Carts, Products: svc.Catalog}
	checkoutHandler := &checkout.Handler{Svc: svc.Checkout}
	shippingHandler := &shipping.Handler{Resolver: svc.Shipping}
	favoritesHandler := &favorites.Handler{Svc: svc.Favorites}
	orderHandler := &order.Handler{Svc: svc.Orders}
	orderAdmin := &order.AdminHandler{Svc: svc.Orders}
	couponAdmin := &coupon.AdminHandler{Catalog: svc.Coupons, Events: svc.Events}
	reports := &analytics.Handler{Svc: svc.Analytics}
	auditTrail := audit.HTTPRecorder{
		Service: svc.Audit,
		OnError: func(err error) { rc.Logger.Warn().Err(err).Msg("audit record failed") },
	}

	limit := ratelimit.Handler{
		Limiter: rc.Limiter,
		Config:  ratelimit.Config{Key: ratelimit.ByClientIP, Window: rc.RateWindow, Max: rc.RateRequests},
		OnError: func(err error) { rc.Logger.Warn().Err(err).Msg("rate limiter unavailable") },
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(rc.CORSOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", common.SessionHeader, common.IdempotencyHeader, adminTokenHeader},
		ExposedHeaders:   []string{common.SessionHeader, common.ReplayedHeader, "X-Request-ID", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(security.Headers{Enable: rc.SecurityHeaders, EnableHSTS: true}.Middleware)
	if rc.Metrics != nil {
		r.Use(obs.HTTPObs{Metrics: rc.Metrics}.Middleware)
	}

	r.Get("/health/live", rc.Health.Live)
	r.Get("/health/ready", rc.Health.Ready)
	if rc.Metrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}
	if rc.Pprof {
		r.Group(func(d chi.Router) {
			d.Use(rc.Admin.Middleware)
			d.Mount("/debug", middleware.Profiler())
		})
	}

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(common.Session)
		if rc.Tracing {
			v.Use(obs.TracingMiddleware)
		}
		v.Use(obs.RequestLogger{Logger: rc.Logger}.Middleware)
		v.Use(security.BodyLimit{Max: rc.MaxBodyBytes}.Middleware)
		v.Use(limit.Middleware)

		v.Get("/products", catalogHandler.Products)
		v.Get("/products/{id}", catalogHandler.ProductDetail)
		v.Get("/categories", catalogHandler.Categories)

		v.Get("/shipping/tiers", shippingHandler.Tiers)
		v.Get("/shipping/quotes/{cep}", shippingHandler.Quote)

		v.Route("/cart", func(c chi.Router) {
			c.Get("/", cartHandler.Get)
			c.Delete("/", cartHandler.Clear)
			c.Post("/items", cartHandler.AddItem)
			c.Patch("/items/{key}", cartHandler.UpdateItem)
			c.Delete("/items/{key}", cartHandler.RemoveItem)
		})

		v.Route("/checkout", func(c chi.Router) {
			c.Get("/", checkoutHandler.State)
			c.Put("/coupon", checkoutHandler.ApplyCoupon)
			c.Delete("/coupon", checkoutHandler.RemoveCoupon)
			c.Put("/shipping", checkoutHandler.SetPostalCode)
			c.Put("/payment", checkoutHandler.SelectPayment)
			c.Get("/quote", checkoutHandler.Quote)
			c.With(rc.Idem.Middleware).Post("/confirm", checkoutHandler.Confirm)
			c.Delete("/session", checkoutHandler.EndSession)
		})

		v.Get("/orders", orderHandler.Mine)
		v.Get("/orders/{id}", orderHandler.Get)

		v.Route("/favorites", func(f chi.Router) {
			f.Get("/", favoritesHandler.List)
			f.Post("/", favoritesHandler.Add)
			f.Delete("/", favoritesHandler.Clear)
			f.Post("/toggle", favoritesHandler.Toggle)
			f.Get("/{productId}", favoritesHandler.Check)
			f.Delete("/{productId}", favoritesHandler.Remove)
		})

		v.Route("/admin", func(a chi.Router) {
			a.Use(rc.Admin.Middleware)
			a.Use(auditTrail.Middleware(audit.HTTPConfig{}))
			a.Get("/coupons", couponAdmin.List)
			a.Post("/coupons", couponAdmin.Create)
			a.Delete("/coupons/{code}", couponAdmin.Delete)
			a.Post("/products", catalogHandler.Create)
			a.Put("/products/{id}", catalogHandler.Update)
			a.Delete("/products/{id}", catalogHandler.Delete)
			a.Get("/orders", orderAdmin.List)
			a.Patch("/orders/{id}/status", orderAdmin.PatchStatus)
			a.Get("/analytics/sales", reports.Sales)
			a.Get("/analytics/top-products", reports.TopProducts)
			a.Get("/analytics/overview", reports.Overview)
			if svc.Audit != nil {
				a.Get("/audit", audit.Handler{Store: svc.Audit.Store}.List)
			}
		})
	})

	return r
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
