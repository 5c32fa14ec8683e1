package checkout

import (
	"sync"
	"time"

	"github.com/noah-isme/digital-store/internal/coupon"
	"github.com/noah-isme/digital-store/internal/pricing"
	"github.com/noah-isme/digital-store/internal/shipping"
)

// Session is the checkout state of one shopper: at most one applied coupon, the
// shipping lookup and the chosen payment method.
type Session struct {
	mu           sync.Mutex
	coupon       *coupon.Coupon
	shipping     *shipping.Tracker
	payment      pricing.PaymentMethod
	installments int

	// seen is guarded by the owning Service's mutex.
	seen time.Time
}

func newSession() *Session {
	return &Session{shipping: shipping.NewTracker(), installments: 1}
}

// State is a copy of the session taken under its lock.
type State struct {
	Coupon       *coupon.Coupon        `json:"coupon,omitempty"`
	Shipping     shipping.Snapshot     `json:"shipping"`
	Payment      pricing.PaymentMethod `json:"paymentMethod,omitempty"`
	Installments int                   `json:"installments"`
}

func (s *Session) state() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	st := State{Shipping: s.shipping.Snapshot(), Payment: s.payment, Installments: s.installments}
	if s.coupon != nil {
		c := *s.coupon
		st.Coupon = &c
	}
	return st
}

func (s *Session) resetLocked() {
	s.coupon = nil
	s.shipping.Reset()
	s.payment = pricing.PaymentNone
	s.installments = 1
}
