package resilience

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ErrOpenCircuit is returned when the circuit breaker refuses a request.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// State is the breaker position.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	}
	return "unknown"
}

// gauge encodes the state for the breaker_state metric.
func (s State) gauge() float64 {
	switch s {
	case Closed:
		return 0
	case Open:
		return 1
	case HalfOpen:
		return 2
	}
	return -1
}

// Breaker trips when the failure ratio over the most recent calls reaches a threshold.
// Outcomes are kept in a ring of twice the minimum sample size, so old results age out
// as new ones arrive. After the cool-off a single probe is let through; its outcome
// closes or reopens the circuit.
type Breaker struct {
	mu sync.Mutex

	state    State
	ring     []bool
	next     int
	filled   int
	probing  bool
	openedAt time.Time

	minSamples int
	threshold  float64
	coolOff    time.Duration

	target string
	logger zerolog.Logger
	now    func() time.Time
}

// NewBreaker returns a closed breaker. It opens once at least minRequests outcomes are
// recorded and the share of failures among them reaches failureRatio.
func NewBreaker(minRequests int, failureRatio float64, openFor time.Duration) *Breaker {
	if minRequests < 1 {
		minRequests = 1
	}
	if failureRatio <= 0 {
		failureRatio = 0.5
	} else if failureRatio > 1 {
		failureRatio = 1
	}
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	return &Breaker{
		ring:       make([]bool, minRequests*2),
		minSamples: minRequests,
		threshold:  failureRatio,
		coolOff:    openFor,
		logger:     zerolog.Nop(),
		now:        time.Now,
	}
}

// Allow reports whether a call may proceed.
func (b *Breaker) Allow(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if b.now().Sub(b.openedAt) < b.coolOff {
			return false
		}
		b.moveLocked(ctx, HalfOpen)
		b.probing = true
		return true
	case HalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
	return true
}

// Report records a call outcome.
func (b *Breaker) Report(ctx context.Context, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		return
	case HalfOpen:
		b.probing = false
		if success {
			b.moveLocked(ctx, Closed)
		} else {
			b.moveLocked(ctx, Open)
		}
		return
	}

	b.ring[b.next] = !success
	b.next = (b.next + 1) % len(b.ring)
	if b.filled < len(b.ring) {
		b.filled++
	}
	if b.filled < b.minSamples {
		return
	}
	failed := 0
	for i := 0; i < b.filled; i++ {
		if b.ring[i] {
			failed++
		}
	}
	if float64(failed)/float64(b.filled) >= b.threshold {
		b.moveLocked(ctx, Open)
	}
}

// State returns the current position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Target is the dependency label used on metrics and logs.
func (b *Breaker) Target() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.label()
}

// WithTarget names the guarded dependency.
func (b *Breaker) WithTarget(target string) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.target = strings.TrimSpace(target)
	BreakerState.WithLabelValues(b.label()).Set(b.state.gauge())
	return b
}

// WithClock replaces the time source.
func (b *Breaker) WithClock(now func() time.Time) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if now != nil {
		b.now = now
	}
	return b
}

// WithLogger sets the fallback logger for transitions when the context carries none.
func (b *Breaker) WithLogger(logger zerolog.Logger) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = logger
	return b
}

func (b *Breaker) moveLocked(ctx context.Context, to State) {
	from := b.state
	b.state = to
	switch to {
	case Open:
		b.openedAt = b.now()
	case Closed:
		b.openedAt = time.Time{}
		b.next, b.filled = 0, 0
	}

	label := b.label()
	BreakerState.WithLabelValues(label).Set(to.gauge())
	if from == to {
		return
	}
	BreakerTransitions.WithLabelValues(label, from.String(), to.String()).Inc()
	if to == Open {
		BreakerOpenedTotal.WithLabelValues(label).Inc()
	}

	logger := &b.logger
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		logger = l
	}
	evt := logger.Info().Str("target", label).Str("from_state", from.String()).Str("to_state", to.String())
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		evt = evt.Str("trace_id", sc.TraceID().String())
	}
	evt.Msg("breaker_transition")
}

func (b *Breaker) label() string {
	if b.target == "" {
		return "default"
	}
	return b.target
}

// Backoff doubles base for each attempt after the first and spreads the result by
// ±jitterPct.
func Backoff(base time.Duration, attempt int, jitterPct float64) time.Duration {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	if attempt < 1 {
		attempt = 1
	}
	d := base << uint(attempt-1)
	if jitterPct <= 0 {
		return d
	}
	spread := float64(d) * jitterPct
	return d + time.Duration((rand.Float64()*2-1)*spread)
}
