package obs_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/digital-store/internal/obs"
)

func TestHTTPMetricsLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("store", []float64{10, 1}, registry)
	handler := obs.HTTPObs{Metrics: metrics}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	req = req.WithContext(obs.WithRoutePattern(req.Context(), "/health/ready"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/health/ready", "204")))
	require.NotZero(t, testutil.CollectAndCount(metrics.ReqDur))
	require.NotZero(t, testutil.CollectAndCount(metrics.RespBytes))
	require.Zero(t, testutil.ToFloat64(metrics.InFlight))
}

func TestHTTPMetricsReuseRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := obs.NewHTTPMetrics("store", nil, registry)
	second := obs.NewHTTPMetrics("store", nil, registry)
	require.Same(t, first.ReqTotal, second.ReqTotal)
}

func TestHTTPMetricsUseChiRoutePattern(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("store", nil, registry)

	r := chi.NewRouter()
	r.Use(obs.HTTPObs{Metrics: metrics}.Middleware)
	r.Get("/api/v1/products/{id}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{}"))
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/products/7", nil))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/api/v1/products/{id}", "200")))
}

func TestDomainMetricsRecorders(t *testing.T) {
	obs.MustRegisterDomainMetrics("store_test", prometheus.NewRegistry())

	before := testutil.ToFloat64(obs.CheckoutTotal.WithLabelValues("confirmed"))
	obs.RecordCheckout("confirmed")
	require.Equal(t, before+1, testutil.ToFloat64(obs.CheckoutTotal.WithLabelValues("confirmed")))

	obs.RecordShippingLookup("upstream", "ok")
	obs.ObserveShippingLatency(15 * time.Millisecond)
	obs.RecordShippingStale()
	require.NotZero(t, testutil.ToFloat64(obs.ShippingStaleDiscarded))
}

func TestRequestLoggerAttachesContextLogger(t *testing.T) {
	var buf strings.Builder
	logger := obs.NewLogger("json", "debug").Output(&buf)

	handler := obs.RequestLogger{Logger: logger}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zerolog.Ctx(r.Context()).Info().Msg("inside handler")
		w.WriteHeader(http.StatusAccepted)
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/checkout/confirm", nil))

	require.Equal(t, http.StatusAccepted, rr.Code)
	out := buf.String()
	require.Contains(t, out, "inside handler")
	require.Contains(t, out, `"message":"http_request"`)
	require.Contains(t, out, `"status":202`)
}

func TestStatusRecorderKeepsFirstStatus(t *testing.T) {
	rec := obs.NewStatusRecorder(httptest.NewRecorder())
	_, _ = rec.Write([]byte("hello"))
	rec.WriteHeader(http.StatusTeapot)
	require.Equal(t, http.StatusOK, rec.Status())
	require.EqualValues(t, 5, rec.BytesWritten())
}

func TestRequestLoggerWarnsOnClientErrors(t *testing.T) {
	var buf strings.Builder
	logger := obs.NewLogger("json", "info").Output(&buf)

	handler := obs.RequestLogger{Logger: logger}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/orders/x", nil))

	require.Contains(t, buf.String(), `"level":"warn"`)
	require.Contains(t, buf.String(), `"status":404`)
}
