package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/digital-store/internal/cache"
)

// ErrNoSession is returned when an operation is attempted without a session id.
var ErrNoSession = errors.New("cart session required")

const maxSweepInterval = time.Minute

type entry struct {
	mu    sync.Mutex
	store *Store
	seen  time.Time
}

// Registry owns the cart of every session.
//
// With a snapshot cache attached Redis is the only copy: reads go straight to the
// snapshot and mutations rewrite it under WATCH, so replicas sharing Redis never
// overwrite each other. Without one, carts live in process memory and are evicted once
// idle for the cache TTL.
type Registry struct {
	snapshots *cache.JSON
	idle      time.Duration
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
	swept    time.Time
}

// NewRegistry constructs a registry. A snapshot cache without a client keeps carts in
// memory; its TTL still bounds how long an idle cart is kept.
func NewRegistry(snapshots *cache.JSON) *Registry {
	return &Registry{
		snapshots: snapshots,
		idle:      snapshots.TTL(),
		now:       time.Now,
		sessions:  make(map[string]*entry),
	}
}

// WithClock overrides the clock used for idle eviction.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

func (r *Registry) shared() bool {
	return r.snapshots.Enabled()
}

// lookup returns the in-memory entry, creating it only when create is set.
func (r *Registry) lookup(sessionID string, create bool) *entry {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked(now)
	e, ok := r.sessions[sessionID]
	if !ok {
		if !create {
			return nil
		}
		e = &entry{store: NewStore()}
		r.sessions[sessionID] = e
	}
	e.seen = now
	return e
}

func (r *Registry) sweepLocked(now time.Time) {
	if r.idle <= 0 {
		return
	}
	every := min(r.idle, maxSweepInterval)
	if now.Sub(r.swept) < every {
		return
	}
	r.swept = now
	for id, e := range r.sessions {
		if now.Sub(e.seen) >= r.idle {
			delete(r.sessions, id)
		}
	}
}

// Items returns a copy of the session's line items. Reading never allocates a cart.
func (r *Registry) Items(ctx context.Context, sessionID string) ([]LineItem, error) {
	if sessionID == "" {
		return nil, ErrNoSession
	}
	if r.shared() {
		return r.load(ctx, sessionID)
	}
	e := r.lookup(sessionID, false)
	if e == nil {
		return []LineItem{}, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Items(), nil
}

func (r *Registry) load(ctx context.Context, sessionID string) ([]LineItem, error) {
	var items []LineItem
	if _, err := r.snapshots.Get(ctx, cache.SessionCart(sessionID), &items); err != nil {
		if !errors.Is(err, cache.ErrCorrupt) {
			return nil, fmt.Errorf("load cart: %w", err)
		}
		zerolog.Ctx(ctx).Warn().Err(err).Str("session", sessionID).Msg("cart snapshot unreadable, starting empty")
		items = nil
	}
	return NewStore(items...).Items(), nil
}

// Mutate applies fn to the session's cart and persists the result. Mutations of the
// same session are serialised; with Redis attached fn may run more than once when
// another writer gets in first, so it must only touch the store it is given.
func (r *Registry) Mutate(ctx context.Context, sessionID string, fn func(*Store) error) error {
	if sessionID == "" {
		return ErrNoSession
	}
	if r.shared() {
		var items []LineItem
		err := r.snapshots.Update(ctx, cache.SessionCart(sessionID), &items, func(found bool) (any, error) {
			if !found {
				items = nil
			}
			store := NewStore(items...)
			if err := fn(store); err != nil {
				return nil, err
			}
			return store.Items(), nil
		})
		if errors.Is(err, cache.ErrConflict) {
			zerolog.Ctx(ctx).Warn().Err(err).Str("session", sessionID).Msg("cart update contended")
		}
		return err
	}
	e := r.lookup(sessionID, true)
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.store)
}

// Clear empties the session's cart.
func (r *Registry) Clear(ctx context.Context, sessionID string) error {
	return r.Mutate(ctx, sessionID, func(s *Store) error {
		s.Clear()
		return nil
	})
}

// Close releases the session's in-memory cart. A Redis snapshot is left alone and
// survives until its TTL lapses.
func (r *Registry) Close(sessionID string) {
	r.mu.Lock()
	delete(r.sessions, sessionID)
	r.mu.Unlock()
}

// Discard releases the session and deletes its snapshot.
func (r *Registry) Discard(ctx context.Context, sessionID string) error {
	r.Close(sessionID)
	if err := r.snapshots.Delete(ctx, cache.SessionCart(sessionID)); err != nil {
		return fmt.Errorf("delete cart snapshot: %w", err)
	}
	return nil
}

// Len reports how many carts are held in process memory.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
