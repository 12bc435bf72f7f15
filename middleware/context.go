// Package middleware is the HTTP glue between net/http handlers and the
// engine: request annotation (client IP, user agent) and authorization
// guards built on the session state machine.
package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/dotstore/authcore"
)

// Proxy headers consulted in order before falling back to the socket
// address. The first one present wins.
var ipHeaders = []string{"X-Forwarded-For", "X-Real-Ip", "Cf-Connecting-Ip"}

// Annotate attaches the requester's IP and user agent to the request
// context so the engine can rate limit and audit. Mount it outermost.
func Annotate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := authcore.WithClientIP(r.Context(), ClientIP(r))
		ctx = authcore.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIP resolves the requester's address, preferring proxy headers
// over the socket peer. An unresolvable address yields "unknown" rather
// than an empty string so audit entries stay queryable.
func ClientIP(r *http.Request) string {
	for _, header := range ipHeaders {
		value := r.Header.Get(header)
		if value == "" {
			continue
		}
		// X-Forwarded-For may carry a chain; the client is first.
		if i := strings.IndexByte(value, ','); i >= 0 {
			value = value[:i]
		}
		if value = strings.TrimSpace(value); value != "" {
			return value
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
	if host == "" {
		return "unknown"
	}
	return host
}
