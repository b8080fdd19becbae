package httpapi

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type authCtxKey int

const bearerTokenKey authCtxKey = iota

// requireBearer rejects requests without a bearer token using message and
// makes the token available to next through BearerToken. The token is not
// verified here; the backend does that.
func (a *api) requireBearer(message string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerFromHeader(r.Header.Get("Authorization"))
		if token == "" {
			WriteError(w, http.StatusUnauthorized, "unauthorized", message)
			return
		}
		ctx := context.WithValue(r.Context(), bearerTokenKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

func bearerFromHeader(h string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(h), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func BearerToken(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(bearerTokenKey).(string)
	return t, ok && t != ""
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
