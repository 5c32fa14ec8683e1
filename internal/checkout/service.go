package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/digital-store/internal/cart"
	"github.com/noah-isme/digital-store/internal/coupon"
	"github.com/noah-isme/digital-store/internal/events"
	"github.com/noah-isme/digital-store/internal/lock"
	"github.com/noah-isme/digital-store/internal/obs"
	"github.com/noah-isme/digital-store/internal/order"
	"github.com/noah-isme/digital-store/internal/pricing"
	"github.com/noah-isme/digital-store/internal/shipping"
)

var (
	// ErrEmptyCart blocks a purchase without line items.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrShippingUnresolved blocks a purchase until the destination is priced, unless shipping is free by value.
	ErrShippingUnresolved = errors.New("shipping not resolved")
	// ErrPaymentRequired blocks a purchase until a payment method is chosen.
	ErrPaymentRequired = errors.New("payment method required")
	// ErrInvalidPayment is returned for unknown methods or out of range installments.
	ErrInvalidPayment = errors.New("invalid payment selection")
	// ErrAddressRequired is returned when neither a resolved postal code nor a typed address is available.
	ErrAddressRequired = errors.New("shipping address required")
)

// CouponFinder looks coupons up by code.
type CouponFinder interface {
	Find(ctx context.Context, code string) (coupon.Coupon, error)
}

// QuoteResolver prices a destination.
type QuoteResolver interface {
	Resolve(ctx context.Context, postalCode string) (shipping.Quote, error)
}

// OrderSink records confirmed purchases.
type OrderSink interface {
	Place(ctx context.Context, o order.Order) (order.Order, error)
}

// Locker serialises confirmations of one session across API replicas.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Deps collects the collaborators of the checkout service.
type Deps struct {
	Carts    *cart.Registry
	Coupons  CouponFinder
	Shipping QuoteResolver
	Orders   OrderSink
	Events   *events.Bus
	Engine   pricing.Engine
	// Lock is optional; without it only the in-process session lock applies.
	Lock Locker
	// SessionTTL evicts checkout selections left idle this long. Zero keeps them until
	// EndSession.
	SessionTTL time.Duration
}

const maxSweepInterval = time.Minute

// Service runs the checkout flow for every shopper session.
type Service struct {
	deps Deps
	now  func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	swept    time.Time
}

// NewService constructs the service. A zero Engine is replaced by pricing.NewEngine().
func NewService(deps Deps) *Service {
	if deps.Engine == (pricing.Engine{}) {
		deps.Engine = pricing.NewEngine()
	}
	return &Service{deps: deps, now: time.Now, sessions: make(map[string]*Session)}
}

// WithClock overrides the clock used for idle eviction.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// session returns the session's state. Unknown sessions get a throwaway default
// unless create is set, so read-only calls never grow the table.
func (s *Service) session(sessionID string, create bool) (*Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, cart.ErrNoSession
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(now)
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = newSession()
		if !create {
			return sess, nil
		}
		s.sessions[sessionID] = sess
	}
	sess.seen = now
	return sess, nil
}

func (s *Service) sweepLocked(now time.Time) {
	ttl := s.deps.SessionTTL
	if ttl <= 0 || now.Sub(s.swept) < min(ttl, maxSweepInterval) {
		return
	}
	s.swept = now
	for id, sess := range s.sessions {
		if now.Sub(sess.seen) >= ttl {
			delete(s.sessions, id)
		}
	}
}

// Sessions reports how many sessions hold checkout selections.
func (s *Service) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// State returns the session's checkout selections.
func (s *Service) State(sessionID string) (State, error) {
	sess, err := s.session(sessionID, false)
	if err != nil {
		return State{}, err
	}
	return sess.state(), nil
}

// ApplyCoupon replaces the applied coupon. An unknown code leaves the session untouched.
func (s *Service) ApplyCoupon(ctx context.Context, sessionID, code string) (coupon.Coupon, error) {
	sess, err := s.session(sessionID, true)
	if err != nil {
		return coupon.Coupon{}, err
	}
	found, err := s.deps.Coupons.Find(ctx, code)
	if err != nil {
		if errors.Is(err, coupon.ErrNotFound) {
			obs.RecordCouponLookup("not_found")
		} else {
			obs.RecordCouponLookup("error")
		}
		return coupon.Coupon{}, err
	}
	if err := found.Validate(); err != nil {
		obs.RecordCouponLookup("error")
		return coupon.Coupon{}, err
	}
	obs.RecordCouponLookup("applied")
	sess.mu.Lock()
	sess.coupon = &found
	sess.mu.Unlock()
	return found, nil
}

// RemoveCoupon clears the applied coupon.
func (s *Service) RemoveCoupon(sessionID string) error {
	sess, err := s.session(sessionID, false)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	sess.coupon = nil
	sess.mu.Unlock()
	return nil
}

// SetPostalCode records the destination and resolves its shipping quote. Input with
// fewer than eight digits clears the destination without error, mirroring a
// half-typed field. A lookup superseded by a newer call is discarded; the returned
// snapshot then reflects the newer lookup.
func (s *Service) SetPostalCode(ctx context.Context, sessionID, input string) (shipping.Snapshot, error) {
	sess, err := s.session(sessionID, true)
	if err != nil {
		return shipping.Snapshot{}, err
	}
	tracker := sess.shipping
	digits := shipping.DigitsOnly(input)
	if len(digits) != shipping.PostalCodeLength {
		tracker.Reset()
		return tracker.Snapshot(), nil
	}

	ticket, lookupCtx := tracker.Begin(ctx, digits)
	quote, lookupErr := s.deps.Shipping.Resolve(lookupCtx, digits)
	if !tracker.Complete(ticket, quote, lookupErr) {
		zerolog.Ctx(ctx).Debug().Str("postal_code", digits).Msg("discarded superseded shipping lookup")
		return tracker.Snapshot(), nil
	}
	return tracker.Snapshot(), lookupErr
}

// SelectPayment records the payment method. Installments apply to card payments only
// and are forced to 1 otherwise.
func (s *Service) SelectPayment(sessionID string, method pricing.PaymentMethod, installments int) (State, error) {
	sess, err := s.session(sessionID, true)
	if err != nil {
		return State{}, err
	}
	if method == pricing.PaymentNone || !method.Valid() {
		return State{}, fmt.Errorf("method %q: %w", method, ErrInvalidPayment)
	}
	if method != pricing.PaymentCard || installments == 0 {
		installments = 1
	}
	if installments < 1 || installments > pricing.MaxInstallments {
		return State{}, fmt.Errorf("installments must be between 1 and %d: %w", pricing.MaxInstallments, ErrInvalidPayment)
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.payment = method
	sess.installments = installments
	return sess.stateLocked(), nil
}

// Quote is the priced view of a session.
type Quote struct {
	State
	Items            []cart.LineItem `json:"items"`
	Summary          pricing.Summary `json:"summary"`
	InstallmentValue decimal.Decimal `json:"installmentValue"`
	Blockers         []string        `json:"blockers"`
	CanConfirm       bool            `json:"canConfirm"`
}

// Quote prices the current cart against the session's selections.
func (s *Service) Quote(ctx context.Context, sessionID string) (Quote, error) {
	sess, err := s.session(sessionID, false)
	if err != nil {
		return Quote{}, err
	}
	items, err := s.deps.Carts.Items(ctx, sessionID)
	if err != nil {
		return Quote{}, err
	}
	st := sess.state()
	summary, err := s.compute(items, st)
	if err != nil {
		return Quote{}, err
	}
	q := Quote{State: st, Items: items, Summary: summary.Rounded(), Blockers: []string{}}
	q.InstallmentValue, _ = summary.Installments(st.Installments)
	for _, blocker := range blockers(items, summary, st) {
		q.Blockers = append(q.Blockers, blocker.Error())
	}
	q.CanConfirm = len(q.Blockers) == 0
	return q, nil
}

func (s *Service) compute(items []cart.LineItem, st State) (pricing.Summary, error) {
	return s.deps.Engine.Compute(pricing.Input{
		Items:         cart.PricingItems(items),
		Coupon:        st.Coupon,
		BaseShipping:  baseShipping(st.Shipping),
		PaymentMethod: st.Payment,
	})
}

func baseShipping(snap shipping.Snapshot) *decimal.Decimal {
	if snap.State != shipping.StateResolved || snap.Quote == nil {
		return nil
	}
	v := snap.Quote.BaseValue
	return &v
}

func blockers(items []cart.LineItem, summary pricing.Summary, st State) []error {
	var out []error
	if len(items) == 0 {
		out = append(out, ErrEmptyCart)
	}
	if !summary.ShippingResolved && !summary.FreeShippingByThreshold {
		out = append(out, ErrShippingUnresolved)
	}
	if st.Payment == pricing.PaymentNone {
		out = append(out, ErrPaymentRequired)
	}
	return out
}

// ConfirmInput carries the customer details typed at checkout.
type ConfirmInput struct {
	Name    string `json:"name" validate:"required,max=120"`
	Email   string `json:"email" validate:"required,email,max=254"`
	Address string `json:"address" validate:"max=300"`
}

// Confirm places the order for the cart as stored. The purchased units are removed
// from the cart and the session reset only after the order sink accepted the order;
// any failure leaves both untouched.
func (s *Service) Confirm(ctx context.Context, sessionID string, in ConfirmInput) (order.Order, error) {
	sess, err := s.session(sessionID, false)
	if err != nil {
		return order.Order{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	st := sess.stateLocked()

	var placed order.Order
	err = s.withLock(ctx, sessionID, func(ctx context.Context) error {
		items, err := s.deps.Carts.Items(ctx, sessionID)
		if err != nil {
			return err
		}
		summary, err := s.compute(items, st)
		if err != nil {
			return err
		}
		if blocked := blockers(items, summary, st); len(blocked) > 0 {
			return blocked[0]
		}
		address := shippingAddress(st.Shipping, in.Address)
		if address == "" {
			return ErrAddressRequired
		}
		draft := order.Order{
			CustomerID:      sessionID,
			CustomerName:    in.Name,
			CustomerEmail:   in.Email,
			Items:           orderItems(items),
			Totals:          summary.Rounded(),
			Total:           pricing.Round(summary.FinalTotal),
			PaymentMethod:   st.Payment,
			Installments:    st.Installments,
			ShippingAddress: address,
		}
		if st.Coupon != nil {
			draft.CouponCode = st.Coupon.Code
		}
		placed, err = s.deps.Orders.Place(ctx, draft)
		if err != nil {
			return fmt.Errorf("place order: %w", err)
		}
		// The order stands even if the cart cannot be trimmed afterwards.
		if err := s.deps.Carts.Mutate(ctx, sessionID, func(store *cart.Store) error {
			store.Deduct(items)
			return nil
		}); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("order_id", placed.ID).Msg("remove purchased items from cart")
		}
		return nil
	})
	if err != nil {
		obs.RecordCheckout(checkoutResult(err))
		return order.Order{}, err
	}
	sess.resetLocked()
	obs.RecordCheckout("ok")
	s.emitCreated(ctx, placed)
	return placed, nil
}

func (s *Service) withLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	if s.deps.Lock == nil {
		return fn(ctx)
	}
	return s.deps.Lock.WithLock(ctx, "lock:checkout:"+sessionID, 15*time.Second, fn)
}

func (s *Service) emitCreated(ctx context.Context, o order.Order) {
	if s.deps.Events == nil {
		return
	}
	payload := map[string]any{
		"orderId":       o.ID,
		"customerId":    o.CustomerID,
		"customerEmail": o.CustomerEmail,
		"total":         o.Total,
		"paymentMethod": o.PaymentMethod,
		"items":         o.ItemCount(),
	}
	if _, err := s.deps.Events.Emit(ctx, events.TopicOrderCreated, o.ID, payload); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("order_id", o.ID).Msg("emit order created failed")
	}
}

// EndSession drops the session's checkout state and releases its cart from memory.
// The persisted cart snapshot survives so the shopper can resume later.
func (s *Service) EndSession(sessionID string) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if ok {
		sess.shipping.Reset()
	}
	if s.deps.Carts != nil {
		s.deps.Carts.Close(sessionID)
	}
}

func shippingAddress(snap shipping.Snapshot, typed string) string {
	typed = strings.TrimSpace(typed)
	if snap.State != shipping.StateResolved || snap.Quote == nil {
		return typed
	}
	resolved := snap.Quote.Address.String()
	if typed == "" {
		return resolved
	}
	return typed + ", " + resolved
}

func orderItems(items []cart.LineItem) []order.Item {
	out := make([]order.Item, 0, len(items))
	for _, it := range items {
		out = append(out, order.Item{
			ProductID:         it.ProductID,
			Name:              it.Name,
			Image:             it.Image,
			Size:              it.Size,
			Color:             it.Color,
			UnitPrice:         it.UnitPrice,
			OriginalUnitPrice: it.OriginalUnitPrice,
			Quantity:          it.Quantity,
		})
	}
	return out
}

func checkoutResult(err error) string {
	switch {
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrShippingUnresolved):
		return "shipping_unresolved"
	case errors.Is(err, ErrPaymentRequired):
		return "payment_required"
	case errors.Is(err, ErrAddressRequired):
		return "address_required"
	case errors.Is(err, lock.ErrBusy):
		return "busy"
	default:
		return "failed"
	}
}
