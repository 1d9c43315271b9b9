package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielokoye/vestpool/internal/domain"
)

// nonceHeader carries the client-generated one-time value for mutating
// requests.
const nonceHeader = "X-Request-Nonce"

// ReplayGuard returns middleware that rejects mutating requests replaying a
// previously seen X-Request-Nonce header within ttl. Requests without the
// header pass through; clients opt in per request. Nonce store failures fail
// open so a cache outage does not block writes.
func ReplayGuard(nonces domain.NonceStore, ttl time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			nonce := r.Header.Get(nonceHeader)
			if nonce == "" {
				next.ServeHTTP(w, r)
				return
			}

			seen, err := nonces.Seen(r.Context(), nonce, ttl)
			if err != nil {
				logger.WarnContext(r.Context(), "replay guard: nonce check failed",
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			if seen {
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusConflict)
				w.Write([]byte(`{"error":"` + domain.ErrNonceUsed.Error() + `"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
