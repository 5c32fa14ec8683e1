package order_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/digital-store/internal/common"
	"github.com/noah-isme/digital-store/internal/events"
	"github.com/noah-isme/digital-store/internal/order"
	"github.com/noah-isme/digital-store/internal/pricing"
)

func draft(customer string) order.Order {
	return order.Order{
		CustomerID:    customer,
		CustomerName:  " Maria Silva ",
		CustomerEmail: "Maria@Example.com ",
		Items: []order.Item{{
			ProductID:         1,
			Name:              "Nike Air Zoom - Performance",
			Size:              "40",
			UnitPrice:         decimal.RequireFromString("299.90"),
			OriginalUnitPrice: decimal.RequireFromString("399.90"),
			Quantity:          2,
		}},
		Total:           decimal.RequireFromString("569.81"),
		PaymentMethod:   pricing.PaymentPix,
		Installments:    1,
		ShippingAddress: "Avenida Paulista, Bela Vista, São Paulo/SP, CEP 01310-100",
	}
}

func newService(t *testing.T) (*order.Service, *events.MemoryStore) {
	t.Helper()
	log := events.NewMemoryStore(0)
	clock := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	svc := order.NewService(order.NewMemoryStore(), &events.Bus{Store: log}).WithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	})
	return svc, log
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to order.Status
		ok       bool
	}{
		{order.StatusPending, order.StatusProcessing, true},
		{order.StatusPending, order.StatusShipped, true},
		{order.StatusProcessing, order.StatusCancelled, true},
		{order.StatusShipped, order.StatusDelivered, true},
		{order.StatusShipped, order.StatusPending, false},
		{order.StatusProcessing, order.StatusProcessing, false},
		{order.StatusDelivered, order.StatusCancelled, false},
		{order.StatusCancelled, order.StatusProcessing, false},
	}
	for _, tc := range cases {
		err := order.CanTransition(tc.from, tc.to)
		if tc.ok {
			require.NoError(t, err, "%s -> %s", tc.from, tc.to)
		} else {
			require.ErrorIs(t, err, order.ErrInvalidTransition, "%s -> %s", tc.from, tc.to)
		}
	}
	require.ErrorIs(t, order.CanTransition(order.StatusPending, "lost"), order.ErrInvalidStatus)
}

func TestParseStatus(t *testing.T) {
	s, err := order.ParseStatus(" Shipped ")
	require.NoError(t, err)
	require.Equal(t, order.StatusShipped, s)
	for _, bad := range []string{"", "paid", "canceled"} {
		_, err := order.ParseStatus(bad)
		require.ErrorIs(t, err, order.ErrInvalidStatus, bad)
	}
}

func TestPlaceAndHistory(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	first, err := svc.Place(ctx, draft("session-a"))
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	require.Equal(t, order.StatusPending, first.Status)
	require.Equal(t, "Maria Silva", first.CustomerName)
	require.Equal(t, "maria@example.com", first.CustomerEmail)
	require.Equal(t, 2, first.ItemCount())

	second, err := svc.Place(ctx, draft("session-a"))
	require.NoError(t, err)
	_, err = svc.Place(ctx, draft("session-b"))
	require.NoError(t, err)

	mine, err := svc.ListByCustomer(ctx, "session-a")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	require.Equal(t, second.ID, mine[0].ID)

	_, err = svc.GetForCustomer(ctx, "session-b", first.ID)
	require.ErrorIs(t, err, order.ErrNotFound)
	_, err = svc.Get(ctx, "not-a-uuid")
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestPlaceRejectsInvalidOrders(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	empty := draft("s")
	empty.Items = nil
	_, err := svc.Place(ctx, empty)
	require.ErrorIs(t, err, order.ErrInvalidOrder)

	noPayment := draft("s")
	noPayment.PaymentMethod = pricing.PaymentNone
	_, err = svc.Place(ctx, noPayment)
	require.ErrorIs(t, err, order.ErrInvalidOrder)

	tooMany := draft("s")
	tooMany.Installments = 13
	_, err = svc.Place(ctx, tooMany)
	require.ErrorIs(t, err, order.ErrInvalidOrder)
}

func TestUpdateStatusEmitsEvent(t *testing.T) {
	svc, log := newService(t)
	ctx := context.Background()
	placed, err := svc.Place(ctx, draft("s"))
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(ctx, placed.ID, "processing")
	require.NoError(t, err)
	require.Equal(t, order.StatusProcessing, updated.Status)
	require.True(t, updated.UpdatedAt.After(placed.UpdatedAt))

	_, err = svc.UpdateStatus(ctx, placed.ID, "delivered")
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, placed.ID, "cancelled")
	require.ErrorIs(t, err, order.ErrInvalidTransition)
	_, err = svc.UpdateStatus(ctx, placed.ID, "returned")
	require.ErrorIs(t, err, order.ErrInvalidStatus)

	evs := log.Events(events.TopicOrderStatusChanged)
	require.Len(t, evs, 2)
	require.Equal(t, placed.ID, evs[0].AggregateID)
}

func TestMemoryStoreListFilter(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	var ids []string
	for i := 0; i < 5; i++ {
		o, err := svc.Place(ctx, draft(fmt.Sprintf("s%d", i)))
		require.NoError(t, err)
		ids = append(ids, o.ID)
	}
	_, err := svc.UpdateStatus(ctx, ids[0], "cancelled")
	require.NoError(t, err)

	page, total, err := svc.List(ctx, order.ListFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Equal(t, 5, total)
	require.Len(t, page, 2)
	require.Equal(t, ids[2], page[0].ID)

	cancelled, total, err := svc.List(ctx, order.ListFilter{Status: order.StatusCancelled})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, ids[0], cancelled[0].ID)

	beyond, _, err := svc.List(ctx, order.ListFilter{Page: 9})
	require.NoError(t, err)
	require.Empty(t, beyond)
}

func withSession(id string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(common.WithSessionID(r.Context(), id)))
	})
}

func TestHandlers(t *testing.T) {
	svc, _ := newService(t)
	placed, err := svc.Place(context.Background(), draft("session-a"))
	require.NoError(t, err)

	r := chi.NewRouter()
	h := &order.Handler{Svc: svc}
	admin := &order.AdminHandler{Svc: svc}
	r.Get("/orders", h.Mine)
	r.Get("/orders/{id}", h.Get)
	r.Get("/admin/orders", admin.List)
	r.Patch("/admin/orders/{id}/status", admin.PatchStatus)

	rec := httptest.NewRecorder()
	withSession("session-a", r).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "1", rec.Header().Get("X-Total-Count"))
	require.Contains(t, rec.Body.String(), placed.ID)

	rec = httptest.NewRecorder()
	withSession("session-b", r).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/"+placed.ID, nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/admin/orders/"+placed.ID+"/status", strings.NewReader(`{"status":"shipped"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"shipped"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/admin/orders/"+placed.ID+"/status", strings.NewReader(`{"status":"pending"}`)))
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/admin/orders/"+placed.ID+"/status", strings.NewReader(`{"status":"lost"}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/orders?status=shipped", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "1", rec.Header().Get("X-Total-Count"))
}
