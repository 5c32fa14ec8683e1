package order

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/digital-store/internal/common"
)

// AdminHandler provides administrative order management endpoints.
type AdminHandler struct {
	Svc *Service
}

type patchStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// List handles GET /api/v1/admin/orders?status=&page=&limit=.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := ParseStatus(raw)
		if err != nil {
			writeError(w, err)
			return
		}
		filter.Status = status
	}
	filter.Page, filter.Limit = common.ParsePagination(r, 20)
	orders, total, err := h.Svc.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("X-Total-Count", itoa(total))
	common.Data(w, http.StatusOK, orders)
}

// PatchStatus updates the order status with state-machine validation.
func (h *AdminHandler) PatchStatus(w http.ResponseWriter, r *http.Request) {
	var req patchStatusRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	updated, err := h.Svc.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, updated)
}

func itoa(v int) string {
	return strconv.Itoa(v)
}
