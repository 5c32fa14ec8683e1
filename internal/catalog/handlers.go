package catalog

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/digital-store/internal/common"
)

// Handler exposes public and admin catalog endpoints.
type Handler struct {
	service *Service
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service}
}

// Products handles GET /api/v1/products with filters, sorting, and pagination.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	params, err := h.service.ParseListParams(r.URL.Query())
	if err != nil {
		h.writeError(w, err)
		return
	}
	result, err := h.service.ListProducts(r.Context(), params)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(result.Total))
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       result.Items,
		"pagination": common.Pagination{Page: result.Page, PerPage: result.Limit, TotalItems: result.Total},
	})
}

// Categories handles GET /api/v1/categories.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	categories, err := h.service.Categories(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, categories)
}

// ProductDetail handles GET /api/v1/products/{id}.
func (h *Handler) ProductDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	p, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, p)
}

// Create handles POST /api/v1/admin/products.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	var p Product
	if err := common.DecodeJSON(r, &p); err != nil {
		h.writeError(w, err)
		return
	}
	created, err := h.service.CreateProduct(r.Context(), p)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, created)
}

// Update handles PUT /api/v1/admin/products/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	var p Product
	if err := common.DecodeJSON(r, &p); err != nil {
		h.writeError(w, err)
		return
	}
	p.ID = id
	updated, err := h.service.UpdateProduct(r.Context(), p)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/v1/admin/products/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return 0, false
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		h.writeError(w, common.BadRequest("id", "invalid product id", err))
		return 0, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case common.IsAppError(err):
		common.WriteError(w, err)
	case errors.Is(err, ErrNotFound):
		common.WriteError(w, common.NotFound("product not found", err))
	case errors.Is(err, ErrInvalidProduct):
		common.WriteError(w, common.BadRequest("", err.Error(), err))
	default:
		common.WriteError(w, err)
	}
}
