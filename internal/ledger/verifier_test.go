package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielokoye/vestpool/internal/domain"
)

// stubMirror scripts QueryTransaction responses attempt by attempt.
type stubMirror struct {
	calls     int
	responses []func() (*domain.LedgerTransaction, error)
}

func (m *stubMirror) QueryTransaction(_ context.Context, _ string) (*domain.LedgerTransaction, error) {
	i := m.calls
	m.calls++
	if i >= len(m.responses) {
		i = len(m.responses) - 1
	}
	return m.responses[i]()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func notFound() (*domain.LedgerTransaction, error) {
	return nil, domain.ErrTransactionNotFound
}

func success(legs ...domain.TokenTransfer) func() (*domain.LedgerTransaction, error) {
	return func() (*domain.LedgerTransaction, error) {
		return &domain.LedgerTransaction{
			TransactionID:  "0.0.100-1700000000-1",
			Result:         domain.ResultSuccess,
			ConsensusAt:    time.Unix(1700000010, 0).UTC(),
			TokenTransfers: legs,
		}, nil
	}
}

const (
	investorAcct = "0.0.200"
	escrowAcct   = "0.0.300"
	vusdToken    = "0.0.400"
)

func validLegs() []domain.TokenTransfer {
	return []domain.TokenTransfer{
		{TokenID: vusdToken, Account: investorAcct, Amount: -500_000000},
		{TokenID: vusdToken, Account: escrowAcct, Amount: 500_000000},
	}
}

func TestVerify_EventuallyVisible(t *testing.T) {
	mirror := &stubMirror{responses: []func() (*domain.LedgerTransaction, error){
		notFound,
		notFound,
		success(validLegs()...),
	}}
	v := NewVerifier(mirror, 5, time.Millisecond, testLogger())

	facts, err := v.Verify(context.Background(), "0.0.100@1700000000.1",
		investorAcct, escrowAcct, vusdToken, 500_000000)
	require.NoError(t, err)

	assert.Equal(t, "0.0.100-1700000000-1", facts.TransactionID)
	assert.Equal(t, int64(500_000000), facts.Units)
	assert.Equal(t, 3, mirror.calls)
}

func TestVerify_TransientErrorsSwallowed(t *testing.T) {
	mirror := &stubMirror{responses: []func() (*domain.LedgerTransaction, error){
		func() (*domain.LedgerTransaction, error) { return nil, errors.New("connection reset") },
		success(validLegs()...),
	}}
	v := NewVerifier(mirror, 3, time.Millisecond, testLogger())

	_, err := v.Verify(context.Background(), "0.0.100-1700000000-1",
		investorAcct, escrowAcct, vusdToken, 500_000000)
	require.NoError(t, err)
}

func TestVerify_UnpinnedUnitsReported(t *testing.T) {
	mirror := &stubMirror{responses: []func() (*domain.LedgerTransaction, error){
		success(validLegs()...),
	}}
	v := NewVerifier(mirror, 2, time.Millisecond, testLogger())

	facts, err := v.Verify(context.Background(), "0.0.100-1700000000-1",
		investorAcct, escrowAcct, vusdToken, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(500_000000), facts.Units)
}

func TestVerify_NotFoundAfterRetries(t *testing.T) {
	mirror := &stubMirror{responses: []func() (*domain.LedgerTransaction, error){notFound}}
	v := NewVerifier(mirror, 4, time.Millisecond, testLogger())

	_, err := v.Verify(context.Background(), "0.0.100-1700000000-1",
		investorAcct, escrowAcct, vusdToken, 500_000000)
	require.ErrorIs(t, err, domain.ErrTransactionNotFound)
	assert.Equal(t, 4, mirror.calls)
}

func TestVerify_NotConfirmed(t *testing.T) {
	mirror := &stubMirror{responses: []func() (*domain.LedgerTransaction, error){
		func() (*domain.LedgerTransaction, error) {
			return &domain.LedgerTransaction{Result: "INSUFFICIENT_PAYER_BALANCE"}, nil
		},
	}}
	v := NewVerifier(mirror, 2, time.Millisecond, testLogger())

	_, err := v.Verify(context.Background(), "0.0.100-1700000000-1",
		investorAcct, escrowAcct, vusdToken, 500_000000)
	require.ErrorIs(t, err, domain.ErrNotConfirmed)
}

func TestVerify_AssetMismatch(t *testing.T) {
	otherToken := []domain.TokenTransfer{
		{TokenID: "0.0.999", Account: investorAcct, Amount: -500},
		{TokenID: "0.0.999", Account: escrowAcct, Amount: 500},
	}
	mirror := &stubMirror{responses: []func() (*domain.LedgerTransaction, error){
		success(otherToken...),
	}}
	v := NewVerifier(mirror, 2, time.Millisecond, testLogger())

	_, err := v.Verify(context.Background(), "0.0.100-1700000000-1",
		investorAcct, escrowAcct, vusdToken, 500)
	require.ErrorIs(t, err, domain.ErrAssetMismatch)
}

func TestVerify_TransferMismatch(t *testing.T) {
	tests := []struct {
		name string
		legs []domain.TokenTransfer
	}{
		{"missing credit leg", []domain.TokenTransfer{
			{TokenID: vusdToken, Account: investorAcct, Amount: -500},
			{TokenID: vusdToken, Account: "0.0.777", Amount: 500},
		}},
		{"missing debit leg", []domain.TokenTransfer{
			{TokenID: vusdToken, Account: "0.0.777", Amount: -500},
			{TokenID: vusdToken, Account: escrowAcct, Amount: 500},
		}},
		{"magnitudes disagree", []domain.TokenTransfer{
			{TokenID: vusdToken, Account: investorAcct, Amount: -500},
			{TokenID: vusdToken, Account: escrowAcct, Amount: 400},
			{TokenID: vusdToken, Account: "0.0.777", Amount: 100},
		}},
		{"wrong units", []domain.TokenTransfer{
			{TokenID: vusdToken, Account: investorAcct, Amount: -400},
			{TokenID: vusdToken, Account: escrowAcct, Amount: 400},
		}},
		{"two debits on account", []domain.TokenTransfer{
			{TokenID: vusdToken, Account: investorAcct, Amount: -300},
			{TokenID: vusdToken, Account: investorAcct, Amount: -200},
			{TokenID: vusdToken, Account: escrowAcct, Amount: 500},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mirror := &stubMirror{responses: []func() (*domain.LedgerTransaction, error){
				success(tt.legs...),
			}}
			v := NewVerifier(mirror, 2, time.Millisecond, testLogger())

			_, err := v.Verify(context.Background(), "0.0.100-1700000000-1",
				investorAcct, escrowAcct, vusdToken, 500)
			require.ErrorIs(t, err, domain.ErrTransferMismatch)
		})
	}
}

func TestVerify_ContextCancelled(t *testing.T) {
	mirror := &stubMirror{responses: []func() (*domain.LedgerTransaction, error){notFound}}
	v := NewVerifier(mirror, 10, 50*time.Millisecond, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := v.Verify(ctx, "0.0.100-1700000000-1",
		investorAcct, escrowAcct, vusdToken, 500)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrTransactionNotFound)
}
