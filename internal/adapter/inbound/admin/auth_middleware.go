package admin

import (
	"net"
	"net/http"
	"strings"
)

// isLocalhost checks if the request originates from a loopback address.
// X-Forwarded-For is intentionally NOT trusted (spoofable).
func isLocalhost(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return host == "127.0.0.1" || host == "::1" || host == "localhost"
}

// bearerToken extracts the token from an "Authorization: Bearer <key>" header.
func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, prefix) {
		return strings.TrimPrefix(auth, prefix)
	}
	return ""
}

// authMiddleware enforces access control on the admin API. Localhost requests
// pass without credentials. Remote requests must present a valid API key;
// when no keys are configured, remote access is refused outright.
func (h *APIHandler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isLocalhost(r) {
			next.ServeHTTP(w, r)
			return
		}

		if h.keyring == nil || h.keyring.Empty() {
			h.respondError(w, http.StatusForbidden, "remote access requires configured API keys")
			return
		}

		key := bearerToken(r)
		if key == "" {
			h.respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if _, err := h.keyring.Validate(key); err != nil {
			h.logger.Warn("rejected api key", "remote_addr", r.RemoteAddr)
			h.respondError(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}
