package analytics

import (
	"net/http"
	"time"

	"github.com/noah-isme/digital-store/internal/common"
)

// Handler exposes back-office sales reports.
type Handler struct {
	Svc *Service
}

// Sales handles GET /api/v1/admin/analytics/sales?from=&to= or ?days=.
func (h *Handler) Sales(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.window(w, r)
	if !ok {
		return
	}
	rows, err := h.Svc.SalesRange(r.Context(), from, to)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_ERROR", err.Error(), nil)
		return
	}
	common.Data(w, http.StatusOK, rows)
}

// TopProducts handles GET /api/v1/admin/analytics/top-products.
func (h *Handler) TopProducts(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.window(w, r)
	if !ok {
		return
	}
	limit := common.AtoiDefault(r.URL.Query().Get("limit"), 10)
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	rows, err := h.Svc.TopProducts(r.Context(), from, to, limit)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_ERROR", err.Error(), nil)
		return
	}
	common.Data(w, http.StatusOK, rows)
}

// Overview handles GET /api/v1/admin/analytics/overview.
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.window(w, r)
	if !ok {
		return
	}
	out, err := h.Svc.Overview(r.Context(), from, to)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_ERROR", err.Error(), nil)
		return
	}
	common.Data(w, http.StatusOK, out)
}

func (h *Handler) window(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_NOT_CONFIGURED", "analytics service not configured", nil)
		return time.Time{}, time.Time{}, false
	}
	query := r.URL.Query()
	fromStr, toStr := query.Get("from"), query.Get("to")
	if fromStr == "" || toStr == "" {
		from, to := h.Svc.DefaultWindow(common.AtoiDefault(query.Get("days"), 0))
		return from, to, true
	}
	from, err := time.Parse(time.RFC3339, fromStr)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid from date", nil)
		return time.Time{}, time.Time{}, false
	}
	to, err := time.Parse(time.RFC3339, toStr)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid to date", nil)
		return time.Time{}, time.Time{}, false
	}
	if !from.Before(to) {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "from must be before to", nil)
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}
