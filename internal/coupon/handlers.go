package coupon

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/digital-store/internal/common"
	"github.com/noah-isme/digital-store/internal/events"
)

// AdminHandler manages the coupon catalog from the back office.
type AdminHandler struct {
	Catalog Catalog
	Events  *events.Bus
}

type createRequest struct {
	Code            string `json:"code" validate:"required,max=32"`
	Type            Type   `json:"type" validate:"omitempty,oneof=product shipping"`
	DiscountPercent int    `json:"discountPercent" validate:"gte=0,lte=100"`
	IsFreeShipping  bool   `json:"isFreeShipping"`
	Stackable       bool   `json:"stackable"`
}

// List handles GET /api/v1/admin/coupons.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.Catalog.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, coupons)
}

// Create handles POST /api/v1/admin/coupons.
func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	created, err := h.Catalog.Add(r.Context(), Coupon{
		Code:            req.Code,
		Type:            req.Type,
		DiscountPercent: req.DiscountPercent,
		IsFreeShipping:  req.IsFreeShipping,
		Stackable:       req.Stackable,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	h.emit(r, events.TopicCouponCreated, created)
	common.Data(w, http.StatusCreated, created)
}

// Delete handles DELETE /api/v1/admin/coupons/{code}.
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	code := NormalizeCode(chi.URLParam(r, "code"))
	if err := h.Catalog.Delete(r.Context(), code); err != nil {
		writeError(w, err)
		return
	}
	h.emit(r, events.TopicCouponDeleted, Coupon{Code: code})
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) emit(r *http.Request, topic string, c Coupon) {
	if h.Events == nil {
		return
	}
	ctx := r.Context()
	if _, err := h.Events.Emit(ctx, topic, c.Code, c); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("coupon", c.Code).Msg("emit coupon event failed")
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case common.IsAppError(err):
		common.WriteError(w, err)
	case errors.Is(err, ErrNotFound):
		common.WriteError(w, common.NotFound("coupon not found", err))
	case errors.Is(err, ErrDuplicate):
		common.WriteError(w, common.Conflict("COUPON_EXISTS", "coupon code already exists", err))
	case errors.Is(err, ErrInvalid):
		common.WriteError(w, common.BadRequest("", err.Error(), err))
	default:
		common.WriteError(w, err)
	}
}
