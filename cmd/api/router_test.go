package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/digital-store/internal/common"
	"github.com/noah-isme/digital-store/internal/config"
	"github.com/noah-isme/digital-store/internal/health"
	"github.com/noah-isme/digital-store/internal/ratelimit"
)

func testConfig(viaCEP string) *config.Config {
	return &config.Config{
		FreeShippingThreshold: decimal.NewFromInt(500),
		PixDiscountRate:       decimal.RequireFromString("0.05"),
		ShippingTiers: config.ShippingTiers{
			Southeast: decimal.NewFromInt(15),
			South:     decimal.NewFromInt(25),
			Other:     decimal.NewFromInt(45),
		},
		CartTTL:           time.Hour,
		ShippingQuoteTTL:  time.Hour,
		CatalogCacheTTL:   time.Minute,
		ViaCEPBaseURL:     viaCEP,
		ViaCEPTimeout:     time.Second,
		ViaCEPBreakerOpen: time.Second,
		AuditEnabled:      true,
		AuditMaxEntries:   100,
	}
}

func fakeViaCEP(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/ws/01310100/json/":
			_, _ = w.Write([]byte(`{"cep":"01310-100","logradouro":"Avenida Paulista","bairro":"Bela Vista","localidade":"São Paulo","uf":"SP"}`))
		default:
			_, _ = w.Write([]byte(`{"erro":true}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

type client struct {
	t       *testing.T
	handler http.Handler
	session string
	headers map[string]string
}

func (c client) do(method, path, body string) *httptest.ResponseRecorder {
	c.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.session != "" {
		req.Header.Set(common.SessionHeader, c.session)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	return rec
}

func newTestRouter(t *testing.T, rc routerConfig) http.Handler {
	t.Helper()
	svc, err := buildServices(testConfig(fakeViaCEP(t).URL), nil, nil, zerolog.Nop())
	require.NoError(t, err)
	rc.Logger = zerolog.Nop()
	rc.Health = health.Handler{Probes: health.Dependencies{}.Probes()}
	return newRouter(svc, rc)
}

func TestStorefrontPurchaseFlow(t *testing.T) {
	h := newTestRouter(t, routerConfig{Admin: adminGuard{Token: "secret"}, MaxBodyBytes: 1 << 20})
	shopper := client{t: t, handler: h, session: "shopper-1"}

	rec := shopper.do(http.MethodGet, "/api/v1/products?category=T%C3%AAnis", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "shopper-1", rec.Header().Get(common.SessionHeader))

	require.Equal(t, http.StatusCreated, shopper.do(http.MethodPost, "/api/v1/cart/items", `{"productId":1,"size":"40","quantity":2}`).Code)
	rec = shopper.do(http.MethodPost, "/api/v1/cart/items", `{"productId":1,"size":"47","quantity":1}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "SIZE_UNAVAILABLE")

	require.Equal(t, http.StatusOK, shopper.do(http.MethodPut, "/api/v1/checkout/coupon", `{"code":"bemvindo"}`).Code)
	require.Equal(t, http.StatusOK, shopper.do(http.MethodPut, "/api/v1/checkout/shipping", `{"postalCode":"01310-100"}`).Code)
	require.Equal(t, http.StatusOK, shopper.do(http.MethodPut, "/api/v1/checkout/payment", `{"method":"pix"}`).Code)

	rec = shopper.do(http.MethodGet, "/api/v1/checkout/quote", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"canConfirm":true`)

	rec = shopper.do(http.MethodPost, "/api/v1/checkout/confirm", `{"name":"Maria","email":"maria@example.com","address":"nº 1000"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var placed struct {
		Data struct {
			ID    string          `json:"id"`
			Total decimal.Decimal `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &placed))
	require.True(t, decimal.RequireFromString("185.25").Equal(placed.Data.Total), placed.Data.Total.String())

	rec = shopper.do(http.MethodGet, "/api/v1/cart", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"items":[]`)

	rec = shopper.do(http.MethodGet, "/api/v1/orders/"+placed.Data.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	stranger := client{t: t, handler: h, session: "shopper-2"}
	require.Equal(t, http.StatusNotFound, stranger.do(http.MethodGet, "/api/v1/orders/"+placed.Data.ID, "").Code)

	admin := client{t: t, handler: h, headers: map[string]string{"Authorization": "Bearer secret"}}
	rec = admin.do(http.MethodPatch, "/api/v1/admin/orders/"+placed.Data.ID+"/status", `{"status":"processing"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"processing"`)

	rec = admin.do(http.MethodGet, "/api/v1/admin/analytics/overview?days=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"orders":1`)
	require.Contains(t, rec.Body.String(), `"processing":1`)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	h := newTestRouter(t, routerConfig{Admin: adminGuard{Token: "secret"}})

	anonymous := client{t: t, handler: h}
	require.Equal(t, http.StatusUnauthorized, anonymous.do(http.MethodGet, "/api/v1/admin/coupons", "").Code)

	wrong := client{t: t, handler: h, headers: map[string]string{adminTokenHeader: "guess"}}
	require.Equal(t, http.StatusForbidden, wrong.do(http.MethodGet, "/api/v1/admin/coupons", "").Code)

	admin := client{t: t, handler: h, headers: map[string]string{adminTokenHeader: "secret"}}
	require.Equal(t, http.StatusCreated, admin.do(http.MethodPost, "/api/v1/admin/coupons", `{"code":"FRETE50","type":"shipping","discountPercent":50}`).Code)
	rec := admin.do(http.MethodGet, "/api/v1/admin/coupons", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "FRETE50")

	rec = admin.do(http.MethodGet, "/api/v1/admin/audit", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"resource":"admin.coupons"`)
}

func TestFavoritesRoundTrip(t *testing.T) {
	h := newTestRouter(t, routerConfig{})
	shopper := client{t: t, handler: h, session: "fan-1"}

	require.Equal(t, http.StatusCreated, shopper.do(http.MethodPost, "/api/v1/favorites", `{"productId":2}`).Code)
	rec := shopper.do(http.MethodGet, "/api/v1/favorites/2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"favorite":true`)

	rec = shopper.do(http.MethodPost, "/api/v1/favorites/toggle", `{"productId":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"favorite":false`)
}

func TestRateLimitedRequests(t *testing.T) {
	limiter, err := ratelimit.New("fixed", nil)
	require.NoError(t, err)
	h := newTestRouter(t, routerConfig{Limiter: limiter, RateRequests: 2, RateWindow: time.Minute})
	shopper := client{t: t, handler: h, session: "busy-1"}

	require.Equal(t, http.StatusOK, shopper.do(http.MethodGet, "/api/v1/categories", "").Code)
	require.Equal(t, http.StatusOK, shopper.do(http.MethodGet, "/api/v1/categories", "").Code)
	rec := shopper.do(http.MethodGet, "/api/v1/categories", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Contains(t, rec.Body.String(), "RATE_LIMITED")

	require.Equal(t, http.StatusOK, shopper.do(http.MethodGet, "/health/live", "").Code)
}

func TestReadinessWithoutBackingServices(t *testing.T) {
	h := newTestRouter(t, routerConfig{})
	rec := client{t: t, handler: h}.do(http.MethodGet, "/health/ready", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"redis":"disabled"`)
}

func TestOversizedBodyRejected(t *testing.T) {
	h := newTestRouter(t, routerConfig{MaxBodyBytes: 64})
	body := `{"productId":1,"quantity":1,"color":"` + strings.Repeat("x", 128) + `"}`
	rec := client{t: t, handler: h, session: "big-1"}.do(http.MethodPost, "/api/v1/cart/items", body)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
