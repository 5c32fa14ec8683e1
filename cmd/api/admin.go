package main

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/noah-isme/digital-store/internal/common"
)

const adminTokenHeader = "X-Admin-Token"

// adminGuard protects back-office routes with a shared token. An empty token leaves
// the routes open, which config only permits outside production.
type adminGuard struct {
	Token string
}

func (g adminGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.Token == "" {
			next.ServeHTTP(w, r)
			return
		}
		presented := strings.TrimSpace(r.Header.Get(adminTokenHeader))
		if presented == "" {
			if auth := r.Header.Get("Authorization"); len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
				presented = strings.TrimSpace(auth[7:])
			}
		}
		if presented == "" {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "admin token required", nil)
			return
		}
		if subtle.ConstantTimeCompare([]byte(presented), []byte(g.Token)) != 1 {
			common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "invalid admin token", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
