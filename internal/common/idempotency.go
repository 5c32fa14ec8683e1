package common

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const (
	// IdempotencyHeader carries the client chosen key.
	IdempotencyHeader = "Idempotency-Key"
	// ReplayedHeader marks a response served from the idempotency store.
	ReplayedHeader = "Idempotent-Replayed"

	idemPending = "pending"
)

// Idem makes write endpoints safe to retry. The first request with a given
// Idempotency-Key runs and its response is stored for TTL; repeats get the stored
// response back. A repeat that arrives while the first is still running gets 409
// IDEMPOTENCY_IN_PROGRESS. Server errors are not stored so the client may retry.
type Idem struct {
	R   *redis.Client
	TTL time.Duration
}

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// idemKey scopes the client key to the session and route.
func idemKey(r *http.Request, header string) string {
	session, _ := SessionID(r.Context())
	sum := sha256.Sum256([]byte(session + "|" + r.Method + "|" + r.URL.Path + "|" + header))
	return "idem:" + hex.EncodeToString(sum[:])
}

type captureWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (c *captureWriter) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *captureWriter) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(IdempotencyHeader)
		if header == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		key := idemKey(r, header)

		claimed, err := i.R.SetNX(ctx, key, idemPending, i.TTL).Result()
		if err != nil {
			JSONError(w, http.StatusInternalServerError, "INTERNAL", "idempotency store error", nil)
			return
		}
		if !claimed {
			i.replay(ctx, w, key)
			return
		}

		rec := &captureWriter{ResponseWriter: w}
		defer func() {
			// detached from the request so a client hang-up still settles the key
			bg := context.Background()
			if rec.status == 0 || rec.status >= http.StatusInternalServerError {
				_ = i.R.Del(bg, key).Err()
				return
			}
			raw, err := json.Marshal(storedResponse{Status: rec.status, ContentType: rec.Header().Get("Content-Type"), Body: rec.body.Bytes()})
			if err != nil {
				_ = i.R.Del(bg, key).Err()
				return
			}
			_ = i.R.Set(bg, key, raw, i.TTL).Err()
		}()
		next.ServeHTTP(rec, r)
	})
}

func (i Idem) replay(ctx context.Context, w http.ResponseWriter, key string) {
	raw, err := i.R.Get(ctx, key).Bytes()
	if err != nil && err != redis.Nil {
		JSONError(w, http.StatusInternalServerError, "INTERNAL", "idempotency store error", nil)
		return
	}
	var stored storedResponse
	if err == redis.Nil || string(raw) == idemPending || json.Unmarshal(raw, &stored) != nil || stored.Status == 0 {
		JSONError(w, http.StatusConflict, "IDEMPOTENCY_IN_PROGRESS", "a request with this idempotency key is still being processed", nil)
		return
	}
	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	}
	w.Header().Set(ReplayedHeader, "true")
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
}
