package favorites

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/digital-store/internal/catalog"
	"github.com/noah-isme/digital-store/internal/common"
)

type Handler struct {
	Svc *Service
}

type favoriteRequest struct {
	ProductID int64 `json:"productId" validate:"required,gt=0"`
}

// List handles GET /api/v1/favorites.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	sessionID, _ := common.SessionID(r.Context())
	products, err := h.Svc.List(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, products)
}

// Add handles POST /api/v1/favorites.
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	var req favoriteRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	sessionID, _ := common.SessionID(r.Context())
	added, err := h.Svc.Add(r.Context(), sessionID, req.ProductID)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	common.Data(w, status, map[string]any{"productId": req.ProductID, "favorite": true})
}

// Toggle handles POST /api/v1/favorites/toggle.
func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	var req favoriteRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	sessionID, _ := common.SessionID(r.Context())
	favorite, err := h.Svc.Toggle(r.Context(), sessionID, req.ProductID)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, map[string]any{"productId": req.ProductID, "favorite": favorite})
}

// Check handles GET /api/v1/favorites/{productId}.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseProductID(w, r)
	if !ok {
		return
	}
	sessionID, _ := common.SessionID(r.Context())
	favorite, err := h.Svc.Contains(r.Context(), sessionID, productID)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, map[string]any{"productId": productID, "favorite": favorite})
}

// Remove handles DELETE /api/v1/favorites/{productId}.
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseProductID(w, r)
	if !ok {
		return
	}
	sessionID, _ := common.SessionID(r.Context())
	if _, err := h.Svc.Remove(r.Context(), sessionID, productID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Clear handles DELETE /api/v1/favorites.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	sessionID, _ := common.SessionID(r.Context())
	if err := h.Svc.Clear(r.Context(), sessionID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseProductID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productId"), 10, 64)
	if err != nil || id <= 0 {
		common.WriteError(w, common.BadRequest("productId", "invalid product id", err))
		return 0, false
	}
	return id, true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNoSession):
		common.WriteError(w, common.BadRequest("", "session required", err))
	case errors.Is(err, catalog.ErrNotFound):
		common.WriteError(w, common.NotFound("product not found", err))
	default:
		common.WriteError(w, err)
	}
}
