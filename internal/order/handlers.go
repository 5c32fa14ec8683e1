package order

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/digital-store/internal/common"
)

// Handler serves the customer's order history.
type Handler struct {
	Svc *Service
}

// Mine handles GET /api/v1/orders for the calling session.
func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := common.SessionID(r.Context())
	if !ok {
		common.WriteError(w, common.BadRequest("", "session required", nil))
		return
	}
	orders, err := h.Svc.ListByCustomer(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	w.Header().Set("X-Total-Count", itoa(len(orders)))
	common.Data(w, http.StatusOK, common.Paginate(orders, page, perPage))
}

// Get handles GET /api/v1/orders/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := common.SessionID(r.Context())
	if !ok {
		common.WriteError(w, common.BadRequest("", "session required", nil))
		return
	}
	o, err := h.Svc.GetForCustomer(r.Context(), sessionID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, o)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.WriteError(w, common.NotFound("order not found", err))
	case errors.Is(err, ErrInvalidStatus):
		common.WriteError(w, common.BadRequest("status", err.Error(), err))
	case errors.Is(err, ErrInvalidTransition):
		common.WriteError(w, common.Conflict("INVALID_STATE", err.Error(), err))
	case errors.Is(err, ErrInvalidOrder):
		common.WriteError(w, common.Unprocessable("INVALID_ORDER", err.Error(), err))
	default:
		common.WriteError(w, err)
	}
}
