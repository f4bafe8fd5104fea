package common

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the caller's address without the port. chi's RealIP
// middleware has already folded X-Forwarded-For and X-Real-IP into
// RemoteAddr by the time handlers run; the headers are consulted directly
// only for requests that bypassed it.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	if addr != "" {
		return addr
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	return strings.TrimSpace(r.Header.Get("X-Real-IP"))
}
