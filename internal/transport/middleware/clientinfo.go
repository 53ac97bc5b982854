package middleware

import (
	"net"
	"net/http"
	"strings"

	internal "github.com/icastillejo/practice-management/internal"
)

// ClientInfo captures the caller's address, user agent and request id into
// the context so audit entries can record where a change came from. Must be
// mounted after RequestID.
func ClientInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meta := internal.RequestMeta{
			IPAddress: clientIP(r),
			UserAgent: r.UserAgent(),
			RequestID: RequestIDFromContext(r.Context()),
		}

		ctx := internal.ContextWithRequestMeta(r.Context(), meta)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientIP prefers proxy headers over the raw socket address. With
// X-Forwarded-For the first entry is the originating client.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
