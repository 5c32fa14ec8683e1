package checkout

import (
	"errors"
	"net/http"

	"github.com/noah-isme/digital-store/internal/cart"
	"github.com/noah-isme/digital-store/internal/common"
	"github.com/noah-isme/digital-store/internal/coupon"
	"github.com/noah-isme/digital-store/internal/lock"
	"github.com/noah-isme/digital-store/internal/order"
	"github.com/noah-isme/digital-store/internal/pricing"
	"github.com/noah-isme/digital-store/internal/shipping"
)

// Handler exposes the checkout flow of the calling session.
type Handler struct {
	Svc *Service
}

type couponRequest struct {
	Code string `json:"code" validate:"required,max=40"`
}

type postalCodeRequest struct {
	PostalCode string `json:"postalCode" validate:"max=20"`
}

type paymentRequest struct {
	Method       pricing.PaymentMethod `json:"method" validate:"required,oneof=pix card boleto"`
	Installments int                   `json:"installments" validate:"gte=0,lte=12"`
}

// State handles GET /api/v1/checkout.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.session(w, r)
	if !ok {
		return
	}
	st, err := h.Svc.State(sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, st)
}

// ApplyCoupon handles PUT /api/v1/checkout/coupon.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.session(w, r)
	if !ok {
		return
	}
	var req couponRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	applied, err := h.Svc.ApplyCoupon(r.Context(), sessionID, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, applied)
}

// RemoveCoupon handles DELETE /api/v1/checkout/coupon.
func (h *Handler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := h.Svc.RemoveCoupon(sessionID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetPostalCode handles PUT /api/v1/checkout/shipping. A failed lookup answers with the
// error and leaves the session in the failed state until the postal code is re-entered.
func (h *Handler) SetPostalCode(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.session(w, r)
	if !ok {
		return
	}
	var req postalCodeRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	snap, err := h.Svc.SetPostalCode(r.Context(), sessionID, req.PostalCode)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, snap)
}

// SelectPayment handles PUT /api/v1/checkout/payment.
func (h *Handler) SelectPayment(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.session(w, r)
	if !ok {
		return
	}
	var req paymentRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	st, err := h.Svc.SelectPayment(sessionID, req.Method, req.Installments)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, st)
}

// Quote handles GET /api/v1/checkout/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.session(w, r)
	if !ok {
		return
	}
	q, err := h.Svc.Quote(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, q)
}

// Confirm handles POST /api/v1/checkout/confirm.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.session(w, r)
	if !ok {
		return
	}
	var in ConfirmInput
	if err := common.DecodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	placed, err := h.Svc.Confirm(r.Context(), sessionID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, placed)
}

// EndSession handles DELETE /api/v1/checkout/session.
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.session(w, r)
	if !ok {
		return
	}
	h.Svc.EndSession(sessionID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return "", false
	}
	id, ok := common.SessionID(r.Context())
	if !ok || id == "" {
		common.WriteError(w, common.BadRequest("", "session required", nil))
		return "", false
	}
	return id, true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case common.IsAppError(err):
		common.WriteError(w, err)
	case errors.Is(err, coupon.ErrNotFound):
		common.WriteError(w, common.NewAppError("COUPON_NOT_FOUND", "coupon not found", http.StatusNotFound, err))
	case errors.Is(err, coupon.ErrInvalid):
		common.WriteError(w, common.Unprocessable("COUPON_INVALID", err.Error(), err))
	case errors.Is(err, ErrEmptyCart):
		common.WriteError(w, common.Unprocessable("EMPTY_CART", err.Error(), err))
	case errors.Is(err, ErrShippingUnresolved):
		common.WriteError(w, common.Unprocessable("SHIPPING_UNRESOLVED", err.Error(), err))
	case errors.Is(err, ErrPaymentRequired):
		common.WriteError(w, common.Unprocessable("PAYMENT_REQUIRED", err.Error(), err))
	case errors.Is(err, ErrAddressRequired):
		common.WriteError(w, common.BadRequest("address", err.Error(), err))
	case errors.Is(err, ErrInvalidPayment):
		common.WriteError(w, common.BadRequest("method", err.Error(), err))
	case errors.Is(err, lock.ErrBusy):
		common.WriteError(w, common.Conflict("CHECKOUT_IN_PROGRESS", "another confirmation for this session is in progress", err))
	case errors.Is(err, cart.ErrNoSession):
		common.WriteError(w, common.BadRequest("", "session required", err))
	case errors.Is(err, order.ErrInvalidOrder), errors.Is(err, pricing.ErrInvalidInput):
		common.WriteError(w, common.Unprocessable("INVALID_ORDER", err.Error(), err))
	case errors.Is(err, shipping.ErrCepNotFound), errors.Is(err, shipping.ErrNetwork), errors.Is(err, shipping.ErrInvalidPostalCode):
		common.WriteError(w, shipping.AppError(err))
	default:
		common.WriteError(w, err)
	}
}
