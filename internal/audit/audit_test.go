package audit_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/digital-store/internal/audit"
)

func newRouter(svc *audit.Service) http.Handler {
	rec := audit.HTTPRecorder{Service: svc}
	r := chi.NewRouter()
	r.Route("/api/v1/admin", func(a chi.Router) {
		a.Use(rec.Middleware(audit.HTTPConfig{}))
		a.Get("/coupons", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
		a.Delete("/coupons/{code}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
		a.Get("/audit", audit.Handler{Store: svc.Store}.List)
	})
	return r
}

func TestMutatingAdminRequestsAreRecorded(t *testing.T) {
	store := audit.NewMemoryStore(10)
	svc := &audit.Service{Store: store, Enabled: true, Now: func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }}
	h := newRouter(svc)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/v1/admin/coupons", nil),
		httptest.NewRequest(http.MethodDelete, "/api/v1/admin/coupons/BEMVINDO", nil),
	} {
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	entries, err := store.List(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	e := entries[0]
	require.Equal(t, "DELETE /api/v1/admin/coupons/{code}", e.Action)
	require.Equal(t, "admin.coupons.{code}", e.Resource)
	require.Equal(t, "BEMVINDO", e.ResourceID)
	require.Equal(t, http.StatusNoContent, e.Status)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/audit?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "BEMVINDO")
}

func TestDisabledServiceRecordsNothing(t *testing.T) {
	store := audit.NewMemoryStore(10)
	h := newRouter(&audit.Service{Store: store})
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/api/v1/admin/coupons/X", nil))

	entries, err := store.List(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestMemoryStoreIsBounded(t *testing.T) {
	store := audit.NewMemoryStore(2)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Append(context.Background(), audit.Entry{ID: id}))
	}
	entries, err := store.List(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "c", entries[0].ID)
	require.Equal(t, "b", entries[1].ID)
}

func TestRedisStoreTrimsAndPages(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := audit.RedisStore{Client: rdb, Max: 3}
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, store.Append(ctx, audit.Entry{ID: id, Action: "POST /x"}))
	}

	entries, err := store.List(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "d", entries[0].ID)

	page, err := store.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, "c", page[0].ID)
}
