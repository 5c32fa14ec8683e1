package audit

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/digital-store/internal/obs"
)

// HTTPRecorder audits requests after they have been handled.
type HTTPRecorder struct {
	Service *Service
	OnError func(error)
}

// HTTPConfig customises how the entry is produced for a route.
type HTTPConfig struct {
	Action          string
	Resource        string
	ResourceIDParam string
	// ReadsToo also audits GET and HEAD requests.
	ReadsToo bool
}

// Middleware returns a chi-compatible middleware that records entries for mutating requests.
func (r HTTPRecorder) Middleware(cfg HTTPConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if r.Service == nil || !r.Service.Enabled || (!cfg.ReadsToo && isRead(req.Method)) {
				next.ServeHTTP(w, req)
				return
			}

			rec := obs.NewStatusRecorder(w)
			next.ServeHTTP(rec, req)

			resourceID := ""
			if cfg.ResourceIDParam != "" {
				resourceID = chi.URLParam(req, cfg.ResourceIDParam)
			}
			if resourceID == "" {
				resourceID = lastURLParam(req)
			}
			if err := r.Service.Record(req.Context(), req, cfg.Action, cfg.Resource, resourceID, rec.Status(), nil); err != nil && r.OnError != nil {
				r.OnError(err)
			}
		})
	}
}

func isRead(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

func lastURLParam(req *http.Request) string {
	rctx := chi.RouteContext(req.Context())
	if rctx == nil || len(rctx.URLParams.Values) == 0 {
		return ""
	}
	return rctx.URLParams.Values[len(rctx.URLParams.Values)-1]
}
