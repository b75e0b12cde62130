package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// ClientIdentity stores the rate-limit identity of the caller: the host part
// of the remote address, or the first X-Forwarded-For hop when trustProxy is
// set. Clients behind one NAT share an identity, and a forwarded header is
// only as trustworthy as the proxy that sets it.
func ClientIdentity(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), identityContextKey, clientIdentity(r, trustProxy))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClientIdentity returns the identity stored by ClientIdentity, falling
// back to the raw remote address
func GetClientIdentity(r *http.Request) string {
	if id, ok := r.Context().Value(identityContextKey).(string); ok {
		return id
	}
	return clientIdentity(r, false)
}

func clientIdentity(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if hop := strings.TrimSpace(first); hop != "" {
				return hop
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
