package common

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// SessionHeader carries the storefront session identifier in both directions.
const SessionHeader = "X-Session-ID"

type ctxKey string

const sessionIDKey ctxKey = "session/id"

// WithSessionID stores the session identifier on the provided context.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionID extracts the session identifier from the context if present.
func SessionID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey).(string)
	return id, ok && id != ""
}

// Session resolves the caller's session from the X-Session-ID header, minting a new
// one when absent or malformed, and echoes it back on the response.
func Session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(SessionHeader))
		if !validSessionID(id) {
			id = uuid.NewString()
		}
		w.Header().Set(SessionHeader, id)
		next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), id)))
	})
}

func validSessionID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
