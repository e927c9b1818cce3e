package common

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the host part of the request's remote address. Proxy
// headers are not consulted here; middleware.RealIP rewrites RemoteAddr
// upstream when the service sits behind a trusted proxy.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
