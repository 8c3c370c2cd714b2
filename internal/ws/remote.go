package ws

import (
	"net"
	"net/http"
	"strings"
)

// remoteIP is the connect rate-limit key. X-Forwarded-For is only honoured
// when the server is known to sit behind a proxy that sets it; otherwise any
// client could pick its own key.
func remoteIP(r *http.Request, trustForwarded bool) string {
	if trustForwarded {
		if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
