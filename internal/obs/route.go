package obs

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type routeKey struct{}

// WithRoutePattern pins the route label for handlers served outside a chi router.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	return context.WithValue(ctx, routeKey{}, pattern)
}

// RoutePattern returns the label metrics, spans and logs use for r: a pinned pattern,
// else chi's matched pattern, else fallback. chi only knows the full pattern once
// routing finished, so call it after next.ServeHTTP. Unfinished mount patterns ending
// in "/*" count as unmatched.
func RoutePattern(r *http.Request, fallback string) string {
	if pinned, ok := r.Context().Value(routeKey{}).(string); ok && pinned != "" {
		return pinned
	}
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" && !strings.HasSuffix(pattern, "/*") {
			return pattern
		}
	}
	return fallback
}
