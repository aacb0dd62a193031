package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const defaultAPIKeyHeader = "X-Api-Key"

// RequireAPIKey guards staff endpoints with a shared API key carried in a
// request header. An empty expected key rejects every request, so a
// misconfigured deployment fails closed.
func RequireAPIKey(header, expected string) func(http.Handler) http.Handler {
	header = strings.TrimSpace(header)
	if header == "" {
		header = defaultAPIKeyHeader
	}
	expected = strings.TrimSpace(expected)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := strings.TrimSpace(r.Header.Get(header))
			if expected == "" || provided == "" ||
				subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
				respondAuthError(w, http.StatusUnauthorized, "invalid_api_key", "missing or invalid api key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
