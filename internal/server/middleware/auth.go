package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// apiKeyHeader is vestpool's static-key header for operator tooling that
// does not speak the Bearer scheme.
const apiKeyHeader = "X-Vestpool-Key"

// Auth guards the ledger API with a single operator key, presented either
// as "Authorization: Bearer <key>" or in the X-Vestpool-Key header. An
// empty configured key disables authentication, which is the expected
// setup for local development against the memory stores.
func Auth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if apiKey == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := presentedKey(r)
			if presented == "" {
				writeUnauthorized(w, "missing api key")
				return
			}
			// Constant-time compare; the key gates money movement.
			if subtle.ConstantTimeCompare([]byte(presented), []byte(apiKey)) != 1 {
				writeUnauthorized(w, "invalid api key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func presentedKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if scheme, rest, ok := strings.Cut(auth, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(rest)
		}
	}
	return strings.TrimSpace(r.Header.Get(apiKeyHeader))
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
