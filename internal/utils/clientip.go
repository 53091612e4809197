package utils

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP extracts the client address from the request. X-Forwarded-For is
// honored first (leftmost hop) since the app typically sits behind a single
// reverse proxy; otherwise the transport peer address is used.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return strings.TrimSpace(host)
}
