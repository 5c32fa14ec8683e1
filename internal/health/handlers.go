package health

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/digital-store/internal/common"
)

// ErrDisabled marks an optional dependency that is not configured. It never fails readiness.
var ErrDisabled = errors.New("disabled")

var draining atomic.Bool

// SetReady flips the readiness flag; the server clears it while draining on shutdown.
func SetReady(v bool) {
	draining.Store(!v)
}

// Probe checks one dependency within Timeout.
type Probe struct {
	Name    string
	Timeout time.Duration
	Check   func(ctx context.Context) error
}

func (p Probe) run(ctx context.Context) string {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := p.Check(ctx)
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrDisabled):
		return ErrDisabled.Error()
	default:
		return err.Error()
	}
}

// Dependencies are the backing services of the API. A nil pool or client reports
// ErrDisabled, matching deployments that run with in-memory stores.
type Dependencies struct {
	DB    *pgxpool.Pool
	Redis *redis.Client
}

// Probes returns the db and redis probes.
func (d Dependencies) Probes() []Probe {
	return []Probe{
		{Name: "db", Timeout: 500 * time.Millisecond, Check: func(ctx context.Context) error {
			if d.DB == nil {
				return ErrDisabled
			}
			return d.DB.Ping(ctx)
		}},
		{Name: "redis", Timeout: 300 * time.Millisecond, Check: func(ctx context.Context) error {
			if d.Redis == nil {
				return ErrDisabled
			}
			return d.Redis.Ping(ctx).Err()
		}},
	}
}

// Handler serves /health/live and /health/ready.
type Handler struct {
	Probes []Probe
}

// Live answers 200 while the process runs.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// Ready runs every probe concurrently and answers 503 if any fails or the server is draining.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	results := make([]string, len(h.Probes))
	var g errgroup.Group
	for i, p := range h.Probes {
		g.Go(func() error {
			results[i] = p.run(r.Context())
			return nil
		})
	}
	_ = g.Wait()

	status := make(map[string]string, len(h.Probes)+1)
	healthy := true
	for i, p := range h.Probes {
		status[p.Name] = results[i]
		if results[i] != "ok" && results[i] != ErrDisabled.Error() {
			healthy = false
		}
	}
	if draining.Load() {
		status["server"] = "draining"
		healthy = false
	}
	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	common.JSON(w, code, status)
}
