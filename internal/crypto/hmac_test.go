package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeadersAt_Deterministic(t *testing.T) {
	auth := &HMACAuth{Key: "key-1", Secret: "topsecret"}

	h := auth.HeadersAt("POST", "/v1/settlements", `{"index":7}`, 1700000000)

	assert.Equal(t, "key-1", h["X-Escrow-Key"])
	assert.Equal(t, "1700000000", h["X-Escrow-Timestamp"])

	mac := hmac.New(sha256.New, []byte("topsecret"))
	mac.Write([]byte("1700000000POST/v1/settlements" + `{"index":7}`))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	assert.Equal(t, want, h["X-Escrow-Signature"])
}

func TestEncryptDecryptSecret_RoundTrip(t *testing.T) {
	blob, err := EncryptSecret("escrow-shared-secret", "hunter2")
	require.NoError(t, err)

	got, err := DecryptSecret(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "escrow-shared-secret", got)

	_, err = DecryptSecret(blob, "wrong-password")
	assert.Error(t, err)
}

func TestString_Redacts(t *testing.T) {
	auth := &HMACAuth{Key: "key-12345", Secret: "supersecret"}
	s := auth.String()
	assert.NotContains(t, s, "supersecret")
	assert.Contains(t, s, "key-****")
}
