package shipping

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/digital-store/internal/common"
)

// Handler exposes stateless shipping quotes, used on product pages before checkout.
type Handler struct {
	Resolver *Resolver
}

// Quote handles GET /api/v1/shipping/quotes/{cep}.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	quote, err := h.Resolver.Resolve(r.Context(), chi.URLParam(r, "cep"))
	if err != nil {
		common.WriteError(w, AppError(err))
		return
	}
	common.Data(w, http.StatusOK, quote)
}

// Tiers handles GET /api/v1/shipping/tiers.
func (h *Handler) Tiers(w http.ResponseWriter, _ *http.Request) {
	t := h.Resolver.Tiers()
	common.Data(w, http.StatusOK, map[string]any{
		"regions": t.Regions,
		"default": t.Default,
	})
}

// AppError maps lookup failures onto API errors.
func AppError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInvalidPostalCode):
		return common.BadRequest("postalCode", err.Error(), err)
	case errors.Is(err, ErrCepNotFound):
		return common.NewAppError("CEP_NOT_FOUND", "postal code not found", http.StatusNotFound, err)
	case errors.Is(err, ErrNetwork), errors.Is(err, context.DeadlineExceeded):
		return common.NewAppError("SHIPPING_UNAVAILABLE", "shipping lookup unavailable, try again", http.StatusServiceUnavailable, err)
	default:
		return err
	}
}
