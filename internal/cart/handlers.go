package cart

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/digital-store/internal/catalog"
	"github.com/noah-isme/digital-store/internal/common"
)

// ProductSource resolves catalog products so the cart never trusts client prices.
type ProductSource interface {
	GetProduct(ctx context.Context, id int64) (catalog.Product, error)
}

// Handler wires the cart registry to HTTP.
type Handler struct {
	Registry *Registry
	Products ProductSource
}

// ItemView is a line item as rendered to clients.
type ItemView struct {
	ID string `json:"id"`
	LineItem
	Subtotal decimal.Decimal `json:"subtotal"`
}

// View is the cart payload.
type View struct {
	Items    []ItemView      `json:"items"`
	Count    int             `json:"count"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// NewView renders line items.
func NewView(items []LineItem) View {
	v := View{Items: make([]ItemView, 0, len(items)), Subtotal: decimal.Zero}
	for _, it := range items {
		v.Items = append(v.Items, ItemView{ID: it.Key(), LineItem: it, Subtotal: it.Subtotal()})
		v.Count += it.Quantity
		v.Subtotal = v.Subtotal.Add(it.Subtotal())
	}
	return v
}

type addItemRequest struct {
	ProductID int64  `json:"productId" validate:"required,gt=0"`
	Size      string `json:"size" validate:"max=20,excludes=-"`
	Color     string `json:"color" validate:"max=40"`
	Quantity  int    `json:"quantity" validate:"required,gte=1,lte=99"`
}

type updateItemRequest struct {
	Delta int `json:"delta" validate:"required,min=-99,max=99"`
}

// Get handles GET /api/v1/cart.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.session(w, r)
	if !ok {
		return
	}
	items, err := h.Registry.Items(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, NewView(items))
}

// AddItem handles POST /api/v1/cart/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.session(w, r)
	if !ok {
		return
	}
	if h.Products == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "product source not configured", nil)
		return
	}
	var payload addItemRequest
	if err := common.DecodeJSON(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	product, err := h.Products.GetProduct(r.Context(), payload.ProductID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !product.InStock() {
		h.writeError(w, common.Unprocessable("OUT_OF_STOCK", "product is out of stock", nil))
		return
	}
	if !product.SizeAvailable(payload.Size) {
		appErr := common.Unprocessable("SIZE_UNAVAILABLE", "size not available", nil)
		appErr.Details = map[string]any{"availableSizes": product.AvailableSizes}
		h.writeError(w, appErr)
		return
	}
	item := LineItem{
		ProductID:         product.ID,
		Name:              product.Name,
		Image:             product.Image,
		Size:              payload.Size,
		Color:             payload.Color,
		UnitPrice:         product.Price,
		OriginalUnitPrice: product.OriginalPrice,
		Quantity:          payload.Quantity,
	}
	h.mutate(w, r, sessionID, http.StatusCreated, func(s *Store) error { return s.AddItem(item) })
}

// UpdateItem handles PATCH /api/v1/cart/items/{key}.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.session(w, r)
	if !ok {
		return
	}
	var payload updateItemRequest
	if err := common.DecodeJSON(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	key := chi.URLParam(r, "key")
	h.mutate(w, r, sessionID, http.StatusOK, func(s *Store) error { return s.UpdateQuantity(key, payload.Delta) })
}

// RemoveItem handles DELETE /api/v1/cart/items/{key}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.session(w, r)
	if !ok {
		return
	}
	key := chi.URLParam(r, "key")
	h.mutate(w, r, sessionID, http.StatusOK, func(s *Store) error { return s.RemoveItem(key) })
}

// Clear handles DELETE /api/v1/cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.session(w, r)
	if !ok {
		return
	}
	h.mutate(w, r, sessionID, http.StatusOK, func(s *Store) error {
		s.Clear()
		return nil
	})
}

func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, sessionID string, status int, fn func(*Store) error) {
	var items []LineItem
	err := h.Registry.Mutate(r.Context(), sessionID, func(s *Store) error {
		if err := fn(s); err != nil {
			return err
		}
		items = s.Items()
		return nil
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, status, NewView(items))
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.Registry == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart registry not configured", nil)
		return "", false
	}
	id, ok := common.SessionID(r.Context())
	if !ok || strings.TrimSpace(id) == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "session required", nil)
		return "", false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case common.IsAppError(err):
		common.WriteError(w, err)
	case errors.Is(err, ErrInvalidItem):
		common.WriteError(w, common.BadRequest("", err.Error(), err))
	case errors.Is(err, ErrItemNotFound):
		common.WriteError(w, common.NotFound("cart item not found", err))
	case errors.Is(err, catalog.ErrNotFound):
		common.WriteError(w, common.NotFound("product not found", err))
	case errors.Is(err, ErrNoSession):
		common.WriteError(w, common.BadRequest("", "session required", err))
	default:
		common.WriteError(w, err)
	}
}
