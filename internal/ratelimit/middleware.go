package ratelimit

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/noah-isme/digital-store/internal/common"
)

// Limiter decides whether another request identified by key fits in the window.
type Limiter interface {
	Allow(ctx context.Context, key string, window time.Duration, max int) (allowed bool, remaining int, reset time.Time, err error)
}

// Config says how requests are keyed and how many each key gets per window.
type Config struct {
	Key    func(*http.Request) string
	Window time.Duration
	Max    int
}

// Handler is the HTTP face of a Limiter.
type Handler struct {
	Limiter Limiter
	Config  Config
	OnError func(error)
}

// Middleware rejects over-limit requests with 429 RATE_LIMITED. A failing limiter lets
// the request through and reports the error to OnError.
func (h Handler) Middleware(next http.Handler) http.Handler {
	if h.Limiter == nil || h.Config.Key == nil || h.Config.Max <= 0 {
		return next
	}
	limit := strconv.Itoa(h.Config.Max)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, remaining, reset, err := h.Limiter.Allow(r.Context(), h.Config.Key(r), h.Config.Window, h.Config.Max)
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		hdr := w.Header()
		hdr.Set("X-RateLimit-Limit", limit)
		hdr.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		hdr.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
		if allowed {
			next.ServeHTTP(w, r)
			return
		}

		wait := int(math.Ceil(time.Until(reset).Seconds()))
		if wait < 1 {
			wait = 1
		}
		hdr.Set("Retry-After", strconv.Itoa(wait))
		common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded", map[string]any{"retryAfterSeconds": wait})
	})
}

// ByClientIP keys requests by client address. Session ids are minted on demand, so
// they cannot serve as a limit key.
func ByClientIP(r *http.Request) string {
	return "ip:" + common.ClientIP(r)
}
