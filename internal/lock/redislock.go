package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/digital-store/internal/resilience"
)

var (
	// ErrBusy is returned when the lock stays held by someone else for longer than MaxWait.
	ErrBusy = errors.New("lock: held by another owner")
	// ErrLost is the cause attached to the callback context when the lease could not be renewed.
	ErrLost = errors.New("lock: lease lost")
)

// Both scripts act only while KEYS[1] still holds this owner's token.
var (
	releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0`)
	renewScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0`)
)

// Locker serialises work across API replicas with one Redis key per resource.
type Locker struct {
	R *redis.Client
	// RetryBackoff is the first delay between acquire attempts; later ones double with jitter.
	RetryBackoff time.Duration
	// MaxWait bounds how long WithLock waits for a held lock. Zero waits for ctx.
	MaxWait time.Duration
}

// WithLock runs fn while holding key. The lease is ttl long and is renewed every ttl/3
// while fn runs; if a renewal finds the key no longer ours, fn's context is cancelled
// with ErrLost and WithLock returns ErrLost unless fn already failed.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l.R == nil {
		return errors.New("lock: redis client not configured")
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	token := uuid.NewString()
	if err := l.acquire(ctx, key, token, ttl); err != nil {
		return err
	}
	defer l.release(key, token)

	workCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.keepAlive(workCtx, key, token, ttl, stop, cancel)
	}()

	err := fn(workCtx)
	close(stop)
	<-done
	if err == nil && errors.Is(context.Cause(workCtx), ErrLost) {
		return ErrLost
	}
	return err
}

func (l Locker) keepAlive(ctx context.Context, key, token string, ttl time.Duration, stop <-chan struct{}, cancel context.CancelCauseFunc) {
	tick := time.NewTicker(ttl / 3)
	defer tick.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-tick.C:
			n, err := renewScript.Run(ctx, l.R, []string{key}, token, ttl.Milliseconds()).Int()
			if err == nil && n == 0 {
				cancel(ErrLost)
				return
			}
		}
	}
}

func (l Locker) acquire(ctx context.Context, key, token string, ttl time.Duration) error {
	base := l.RetryBackoff
	if base <= 0 {
		base = 25 * time.Millisecond
	}
	var deadline <-chan time.Time
	if l.MaxWait > 0 {
		timer := time.NewTimer(l.MaxWait)
		defer timer.Stop()
		deadline = timer.C
	}
	for attempt := 1; ; attempt++ {
		ok, err := l.R.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		delay := resilience.Backoff(base, min(attempt, 5), 0.2)
		wait := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			wait.Stop()
			return ctx.Err()
		case <-deadline:
			wait.Stop()
			return ErrBusy
		case <-wait.C:
		}
	}
}

// release runs detached from the caller's context so a cancelled request still frees the key.
func (l Locker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = releaseScript.Run(ctx, l.R, []string{key}, token).Err()
}
