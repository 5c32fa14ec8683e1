package shipping

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/digital-store/internal/obs"
)

// State is the lifecycle of a session's shipping lookup.
type State string

const (
	StateIdle     State = "idle"
	StatePending  State = "pending"
	StateResolved State = "resolved"
	StateFailed   State = "failed"
)

// Ticket identifies one lookup. Only the ticket issued by the latest Begin can complete.
type Ticket struct {
	Seq        uint64
	PostalCode string
}

// Snapshot is a point-in-time view of a tracker.
type Snapshot struct {
	State      State  `json:"state"`
	PostalCode string `json:"postalCode,omitempty"`
	Quote      *Quote `json:"quote,omitempty"`
	Error      string `json:"error,omitempty"`
	Err        error  `json:"-"`
}

// Tracker is the per-session shipping state machine. Results are accepted by input
// recency: a completion whose ticket was superseded by Begin or Reset is discarded,
// whatever order the lookups finish in.
type Tracker struct {
	mu     sync.Mutex
	seq    uint64
	state  State
	postal string
	quote  *Quote
	err    error
	cancel context.CancelFunc
}

// NewTracker returns an idle tracker.
func NewTracker() *Tracker {
	return &Tracker{state: StateIdle}
}

// Begin starts a lookup for postalCode. The returned context is cancelled as soon as
// the lookup is superseded, so callers should run the lookup with it.
func (t *Tracker) Begin(parent context.Context, postalCode string) (Ticket, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.supersedeLocked()
	t.state = StatePending
	t.postal = postalCode
	t.cancel = cancel
	return Ticket{Seq: t.seq, PostalCode: postalCode}, ctx
}

// Complete records the outcome of a lookup. It reports false when the ticket is stale,
// in which case the tracker is left untouched.
func (t *Tracker) Complete(ticket Ticket, quote Quote, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ticket.Seq != t.seq || t.state != StatePending {
		obs.RecordShippingStale()
		return false
	}
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	if err != nil {
		t.state = StateFailed
		t.err = err
		t.quote = nil
		return true
	}
	q := quote
	t.state = StateResolved
	t.quote = &q
	t.err = nil
	return true
}

// Reset returns to Idle and invalidates any lookup in flight.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.supersedeLocked()
	t.state = StateIdle
	t.postal = ""
}

func (t *Tracker) supersedeLocked() {
	t.seq++
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.quote = nil
	t.err = nil
}

// Snapshot copies the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := Snapshot{State: t.state, PostalCode: t.postal, Err: t.err}
	if t.quote != nil {
		q := *t.quote
		s.Quote = &q
	}
	if t.err != nil {
		s.Error = t.err.Error()
	}
	return s
}

// BaseShipping returns the resolved base value, or nil while unresolved.
func (t *Tracker) BaseShipping() *decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateResolved || t.quote == nil {
		return nil
	}
	v := t.quote.BaseValue
	return &v
}
