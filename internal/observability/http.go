package observability

import (
	"net"
	"net/http"
	"strings"
)

// Headers read from websocket handshakes.
const (
	HeaderDeviceID  = "X-Device-Id"
	HeaderRequestID = "X-Request-Id"
)

// IdentityFromRequest describes who opened a connection for event payloads.
// userID is zero for anonymous connections.
func IdentityFromRequest(r *http.Request, userID int) WSIdentity {
	return WSIdentity{
		UserID:   int64(userID),
		DeviceID: r.Header.Get(HeaderDeviceID),
		IP:       IPFromRequest(r),
	}
}

// RequestIDFromRequest prefers the handshake header and falls back to the
// id assigned by the router.
func RequestIDFromRequest(r *http.Request, assigned string) string {
	if id := r.Header.Get(HeaderRequestID); id != "" {
		return id
	}
	return assigned
}

// IPFromRequest returns the first proxy-reported client address, or the
// peer address.
func IPFromRequest(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-Ip")); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
