package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func authedHandler(t *testing.T, apiKey string) http.Handler {
	t.Helper()
	return Auth(apiKey)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestAuth_BearerToken(t *testing.T) {
	h := authedHandler(t, "secret-key")

	req := httptest.NewRequest(http.MethodGet, "/api/pools", nil)
	req.Header.Set("Authorization", "Bearer secret-key")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth_VestpoolKeyHeader(t *testing.T) {
	h := authedHandler(t, "secret-key")

	req := httptest.NewRequest(http.MethodGet, "/api/pools", nil)
	req.Header.Set("X-Vestpool-Key", "secret-key")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth_RejectsMissingAndWrongKey(t *testing.T) {
	h := authedHandler(t, "secret-key")

	req := httptest.NewRequest(http.MethodGet, "/api/pools", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/pools", nil)
	req.Header.Set("X-Vestpool-Key", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"invalid api key"}`, rec.Body.String())
}

func TestAuth_EmptyKeyDisablesAuth(t *testing.T) {
	h := authedHandler(t, "")

	req := httptest.NewRequest(http.MethodGet, "/api/pools", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
