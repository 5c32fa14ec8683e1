package common

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIP returns the caller address: the left-most valid X-Forwarded-For hop, then
// X-Real-IP, then the connection's remote host. Malformed header values are skipped.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		for _, hop := range strings.Split(fwd, ",") {
			if addr, err := netip.ParseAddr(strings.TrimSpace(hop)); err == nil {
				return addr.String()
			}
		}
	}
	if addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return addr.String()
	}
	remote := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(remote); err == nil {
		return host
	}
	return remote
}
