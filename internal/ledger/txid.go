// Package ledger implements deposit verification against the external
// ledger's mirror: canonical transaction-id handling and the polling
// verifier that reconciles a claimed deposit with the mirror record.
package ledger

import (
	"fmt"
	"strconv"
	"strings"
)

// CanonicalTxID normalizes a transaction reference into the mirror's
// canonical "account-seconds-nanos" form. Two external formats are accepted:
//
//	0.0.4618@1700000000.123456789   (SDK format)
//	0.0.4618-1700000000-123456789   (mirror format)
//
// Both resolve to "0.0.4618-1700000000-123456789".
func CanonicalTxID(reference string) (string, error) {
	ref := strings.TrimSpace(reference)
	if ref == "" {
		return "", fmt.Errorf("ledger: empty transaction reference")
	}

	if at := strings.IndexByte(ref, '@'); at >= 0 {
		account := ref[:at]
		rest := ref[at+1:]
		secs, nanos, ok := strings.Cut(rest, ".")
		if !ok {
			return "", fmt.Errorf("ledger: malformed reference %q: missing nanos", reference)
		}
		return joinCanonical(account, secs, nanos, reference)
	}

	// Mirror format: the account itself contains no dashes, so the last two
	// dash-separated fields are seconds and nanos.
	parts := strings.Split(ref, "-")
	if len(parts) < 3 {
		return "", fmt.Errorf("ledger: malformed reference %q", reference)
	}
	account := strings.Join(parts[:len(parts)-2], "-")
	return joinCanonical(account, parts[len(parts)-2], parts[len(parts)-1], reference)
}

func joinCanonical(account, secs, nanos, original string) (string, error) {
	if !validAccount(account) {
		return "", fmt.Errorf("ledger: malformed reference %q: bad account %q", original, account)
	}
	s, err := strconv.ParseInt(secs, 10, 64)
	if err != nil || s < 0 {
		return "", fmt.Errorf("ledger: malformed reference %q: bad seconds %q", original, secs)
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil || n < 0 || n > 999_999_999 {
		return "", fmt.Errorf("ledger: malformed reference %q: bad nanos %q", original, nanos)
	}
	return fmt.Sprintf("%s-%d-%d", account, s, n), nil
}

// validAccount checks the shard.realm.num account form.
func validAccount(account string) bool {
	parts := strings.Split(account, ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
		if _, err := strconv.ParseUint(p, 10, 64); err != nil {
			return false
		}
	}
	return true
}
