package security

import (
	"net/http"
	"strconv"
)

// Headers sets the browser hardening headers served with every API response.
type Headers struct {
	Enable     bool
	EnableHSTS bool
	HSTSMaxAge int
}

func (h Headers) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.Enable {
			next.ServeHTTP(w, r)
			return
		}
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", "DENY")
		headers.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		headers.Set("Cache-Control", "no-store")
		if h.EnableHSTS && (r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https") {
			maxAge := h.HSTSMaxAge
			if maxAge <= 0 {
				maxAge = 31536000
			}
			headers.Set("Strict-Transport-Security", "max-age="+strconv.Itoa(maxAge)+"; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}
