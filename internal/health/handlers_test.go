package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/digital-store/internal/health"
)

func fixed(name string, err error) health.Probe {
	return health.Probe{Name: name, Check: func(context.Context) error { return err }}
}

func ready(t *testing.T, h health.Handler) (int, map[string]string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	var status map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	return rec.Code, status
}

func TestLive(t *testing.T) {
	rec := httptest.NewRecorder()
	health.Handler{}.Live(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestReadyReportsEveryProbe(t *testing.T) {
	code, status := ready(t, health.Handler{Probes: []health.Probe{fixed("db", nil), fixed("redis", health.ErrDisabled)}})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, map[string]string{"db": "ok", "redis": "disabled"}, status)

	code, status = ready(t, health.Handler{Probes: []health.Probe{fixed("db", errors.New("db down")), fixed("redis", nil)}})
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "db down", status["db"])
}

func TestReadyProbeTimesOut(t *testing.T) {
	slow := health.Probe{Name: "slow", Timeout: 10 * time.Millisecond, Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	code, status := ready(t, health.Handler{Probes: []health.Probe{slow}})
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, context.DeadlineExceeded.Error(), status["slow"])
}

func TestReadyWhileDraining(t *testing.T) {
	t.Cleanup(func() { health.SetReady(true) })
	h := health.Handler{Probes: []health.Probe{fixed("db", nil)}}

	health.SetReady(false)
	code, status := ready(t, h)
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "draining", status["server"])

	health.SetReady(true)
	code, _ = ready(t, h)
	require.Equal(t, http.StatusOK, code)
}

func TestDependencyProbes(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h := health.Handler{Probes: health.Dependencies{Redis: client}.Probes()}
	code, status := ready(t, h)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, map[string]string{"db": "disabled", "redis": "ok"}, status)

	mr.Close()
	code, _ = ready(t, h)
	require.Equal(t, http.StatusServiceUnavailable, code)
}
