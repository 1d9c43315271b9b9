package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalTxID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"sdk format", "0.0.4618@1700000000.123456789", "0.0.4618-1700000000-123456789"},
		{"mirror format", "0.0.4618-1700000000-123456789", "0.0.4618-1700000000-123456789"},
		{"zero nanos sdk", "0.0.7@1700000000.0", "0.0.7-1700000000-0"},
		{"whitespace", "  0.0.4618@1700000000.123456789 ", "0.0.4618-1700000000-123456789"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanonicalTxID(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanonicalTxID_BothFormatsAgree(t *testing.T) {
	a, err := CanonicalTxID("0.0.99@1712345678.42")
	require.NoError(t, err)
	b, err := CanonicalTxID("0.0.99-1712345678-42")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCanonicalTxID_Invalid(t *testing.T) {
	bad := []string{
		"",
		"0.0.4618",
		"0.0.4618@1700000000",
		"abc@123.456",
		"0.0.x-1700000000-5",
		"0.0.5@-17.5",
		"0.0.5@1700000000.9999999999",
	}
	for _, in := range bad {
		_, err := CanonicalTxID(in)
		assert.Error(t, err, "input %q", in)
	}
}
