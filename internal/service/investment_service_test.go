package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielokoye/vestpool/internal/domain"
	"github.com/danielokoye/vestpool/internal/store/memory"
)

const (
	testInvestorAcct = "0.0.200"
	testEscrowAcct   = "0.0.300"
	testStableToken  = "0.0.400"
	testDecimals     = int32(6)
)

// stubVerifier answers Verify with a scripted result per reference.
type stubVerifier struct {
	mu    sync.Mutex
	facts map[string]domain.TransferFacts
	errs  map[string]error
	calls int
}

func newStubVerifier() *stubVerifier {
	return &stubVerifier{
		facts: make(map[string]domain.TransferFacts),
		errs:  make(map[string]error),
	}
}

func (v *stubVerifier) confirm(ref string, units int64) {
	v.facts[ref] = domain.TransferFacts{
		TransactionID: ref,
		TokenID:       testStableToken,
		DebitAccount:  testInvestorAcct,
		CreditAccount: testEscrowAcct,
		Units:         units,
		ConsensusAt:   time.Now().UTC(),
	}
}

func (v *stubVerifier) Verify(_ context.Context, reference, _, _, _ string, _ int64) (domain.TransferFacts, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	if err, ok := v.errs[reference]; ok {
		return domain.TransferFacts{}, err
	}
	facts, ok := v.facts[reference]
	if !ok {
		return domain.TransferFacts{}, domain.ErrTransactionNotFound
	}
	return facts, nil
}

// stubEscrow records calls and hands out sequential contract indexes.
type stubEscrow struct {
	mu         sync.Mutex
	releases   int
	records    int
	settles    []int64
	releaseErr error
	recordErr  error
	settleErr  error
	nextIndex  int64
}

func (e *stubEscrow) ReleaseFraction(_ context.Context, _, _ string, _ int64) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.releaseErr != nil {
		return "", e.releaseErr
	}
	e.releases++
	return "release-receipt", nil
}

func (e *stubEscrow) RecordInvestment(_ context.Context, _, _ string, _ int64) (string, int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.recordErr != nil {
		return "", 0, e.recordErr
	}
	e.records++
	e.nextIndex++
	return "record-receipt", e.nextIndex, nil
}

func (e *stubEscrow) Settle(_ context.Context, _ string, contractIndex int64, _ int64) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.settleErr != nil {
		return "", e.settleErr
	}
	e.settles = append(e.settles, contractIndex)
	return "settle-receipt", nil
}

func (e *stubEscrow) sideEffects() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.releases + e.records + len(e.settles)
}

type stubAlerter struct {
	mu       sync.Mutex
	messages []string
}

func (a *stubAlerter) NotifyAll(_ context.Context, title, _ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages = append(a.messages, title)
	return nil
}

// failingInsertStore forces Insert to fail while delegating everything else.
type failingInsertStore struct {
	*memory.InvestmentStore
	insertErr error
}

func (s *failingInsertStore) Insert(ctx context.Context, inv domain.Investment) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	return s.InvestmentStore.Insert(ctx, inv)
}

type recorderFixture struct {
	pools       *memory.PoolStore
	investments *memory.InvestmentStore
	verifier    *stubVerifier
	escrow      *stubEscrow
	audit       *memory.AuditStore
	alerts      *stubAlerter
	svc         *InvestmentService
}

func newRecorderFixture(t *testing.T) *recorderFixture {
	t.Helper()
	f := &recorderFixture{
		pools:       memory.NewPoolStore(),
		investments: memory.NewInvestmentStore(),
		verifier:    newStubVerifier(),
		escrow:      &stubEscrow{},
		audit:       memory.NewAuditStore(),
		alerts:      &stubAlerter{},
	}
	f.svc = NewInvestmentService(
		f.pools, f.investments, f.verifier, f.escrow, f.audit,
		nil, f.alerts, testStableToken, testDecimals, testLogger(),
	)
	require.NoError(t, f.pools.Create(context.Background(), testPool(t, "pool-1", "Harvest Q3", "Greenfield Farms", "10000")))
	return f
}

func TestRecordInvestment_Success(t *testing.T) {
	ctx := context.Background()
	f := newRecorderFixture(t)

	ref := "0.0.200-1700000000-000000001"
	f.verifier.confirm(ref, 500_000_000) // 500 vUSD

	inv, err := f.svc.RecordInvestment(ctx, "alice", testInvestorAcct, "pool-1", ref)
	require.NoError(t, err)

	assert.True(t, inv.Principal.Equal(decimal.RequireFromString("500")))
	assert.Equal(t, int64(50), inv.FractionalUnits)
	assert.True(t, inv.YieldRate.Equal(decimal.RequireFromString("0.1")))
	assert.True(t, inv.ExpectedYield.Equal(decimal.RequireFromString("50")))
	assert.Equal(t, ref, inv.DepositReference)
	assert.Equal(t, domain.InvestmentStatusActive, inv.Status)
	require.NotNil(t, inv.ContractIndex)
	assert.Equal(t, 90, int(inv.MaturedAt.Sub(inv.CreatedAt).Hours()/24))

	stored, err := f.investments.GetByDepositReference(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, stored.ID)

	assert.Equal(t, 1, f.escrow.releases)
	assert.Equal(t, 1, f.escrow.records)

	entries, err := f.audit.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.EventInvestmentRecorded, entries[0].Event)
}

func TestRecordInvestment_ReplayReturnsExisting(t *testing.T) {
	ctx := context.Background()
	f := newRecorderFixture(t)

	ref := "0.0.200-1700000000-000000001"
	f.verifier.confirm(ref, 500_000_000)

	first, err := f.svc.RecordInvestment(ctx, "alice", testInvestorAcct, "pool-1", ref)
	require.NoError(t, err)

	replay, err := f.svc.RecordInvestment(ctx, "alice", testInvestorAcct, "pool-1", ref)
	require.ErrorIs(t, err, domain.ErrAlreadyRecorded)
	assert.Equal(t, first.ID, replay.ID)

	// The replay short-circuits before verification or escrow calls.
	assert.Equal(t, 1, f.verifier.calls)
	assert.Equal(t, 2, f.escrow.sideEffects())

	all, err := f.investments.ListByInvestor(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRecordInvestment_ReplayInSDKFormatShortCircuits(t *testing.T) {
	ctx := context.Background()
	f := newRecorderFixture(t)

	// The mirror reports the canonical reference regardless of how the
	// caller spelled it, so the stored reference differs from the input.
	sdkRef := "0.0.200@1700000000.000000001"
	canonical := "0.0.200-1700000000-000000001"
	f.verifier.facts[sdkRef] = domain.TransferFacts{
		TransactionID: canonical,
		TokenID:       testStableToken,
		DebitAccount:  testInvestorAcct,
		CreditAccount: testEscrowAcct,
		Units:         500_000_000,
		ConsensusAt:   time.Now().UTC(),
	}

	first, err := f.svc.RecordInvestment(ctx, "alice", testInvestorAcct, "pool-1", sdkRef)
	require.NoError(t, err)
	assert.Equal(t, canonical, first.DepositReference)

	replay, err := f.svc.RecordInvestment(ctx, "alice", testInvestorAcct, "pool-1", sdkRef)
	require.ErrorIs(t, err, domain.ErrAlreadyRecorded)
	assert.Equal(t, first.ID, replay.ID)

	// The replayed SDK-form reference resolves to the persisted row without
	// touching the verifier or the escrow a second time.
	assert.Equal(t, 1, f.verifier.calls)
	assert.Equal(t, 2, f.escrow.sideEffects())
}

func TestRecordInvestment_UnconfirmedDeposit(t *testing.T) {
	ctx := context.Background()
	f := newRecorderFixture(t)

	ref := "0.0.200-1700000000-000000001"
	f.verifier.errs[ref] = domain.ErrNotConfirmed

	_, err := f.svc.RecordInvestment(ctx, "alice", testInvestorAcct, "pool-1", ref)
	require.ErrorIs(t, err, domain.ErrNotConfirmed)

	assert.Equal(t, 0, f.escrow.sideEffects())
	all, listErr := f.investments.ListByInvestor(ctx, "alice")
	require.NoError(t, listErr)
	assert.Empty(t, all)
}

func TestRecordInvestment_PoolNotTokenized(t *testing.T) {
	ctx := context.Background()
	f := newRecorderFixture(t)

	bare := testPool(t, "pool-raw", "Untokenized", "Apex Logistics", "10000")
	bare.EscrowAccount = ""
	bare.TokenID = ""
	require.NoError(t, f.pools.Create(ctx, bare))

	_, err := f.svc.RecordInvestment(ctx, "alice", testInvestorAcct, "pool-raw", "0.0.200-1700000000-000000001")
	require.ErrorIs(t, err, domain.ErrPoolNotTokenized)
	assert.Equal(t, 0, f.verifier.calls)
}

func TestRecordInvestment_TicketBounds(t *testing.T) {
	ctx := context.Background()
	f := newRecorderFixture(t)

	t.Run("below minimum", func(t *testing.T) {
		ref := "0.0.200-1700000001-000000001"
		f.verifier.confirm(ref, 50_000_000) // 50 vUSD, min ticket is 100

		_, err := f.svc.RecordInvestment(ctx, "alice", testInvestorAcct, "pool-1", ref)
		require.ErrorIs(t, err, domain.ErrBelowMinimum)

		var ticketErr *domain.TicketError
		require.ErrorAs(t, err, &ticketErr)
		assert.True(t, ticketErr.Bound.Equal(decimal.RequireFromString("100")))
	})

	t.Run("above maximum", func(t *testing.T) {
		ref := "0.0.200-1700000002-000000001"
		f.verifier.confirm(ref, 6_000_000_000) // 6000 vUSD, max ticket is 5000

		_, err := f.svc.RecordInvestment(ctx, "alice", testInvestorAcct, "pool-1", ref)
		require.ErrorIs(t, err, domain.ErrAboveMaximum)
	})

	assert.Equal(t, 0, f.escrow.sideEffects())
}

func TestRecordInvestment_NotFractional(t *testing.T) {
	ctx := context.Background()
	f := newRecorderFixture(t)

	ref := "0.0.200-1700000000-000000001"
	f.verifier.confirm(ref, 137_500_000) // 137.5 vUSD against a fraction size of 10

	_, err := f.svc.RecordInvestment(ctx, "alice", testInvestorAcct, "pool-1", ref)
	require.ErrorIs(t, err, domain.ErrNotFractional)

	var fracErr *domain.FractionError
	require.ErrorAs(t, err, &fracErr)
	assert.True(t, fracErr.Amount.Equal(decimal.RequireFromString("137.5")))

	assert.Equal(t, 0, f.escrow.sideEffects())
	all, listErr := f.investments.ListByInvestor(ctx, "alice")
	require.NoError(t, listErr)
	assert.Empty(t, all)
}

func TestRecordInvestment_CapacityExceeded(t *testing.T) {
	ctx := context.Background()
	f := newRecorderFixture(t)

	seedInvestment(t, f.investments, "inv-0", "bob", "pool-1", "9800", "0.0.201-1700000000-000000009")

	ref := "0.0.200-1700000000-000000001"
	f.verifier.confirm(ref, 500_000_000) // would push funded to 10300 over a 10000 target

	_, err := f.svc.RecordInvestment(ctx, "alice", testInvestorAcct, "pool-1", ref)
	require.ErrorIs(t, err, domain.ErrCapacityExceeded)

	var capErr *domain.CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.True(t, capErr.Funded.Equal(decimal.RequireFromString("9800")))

	assert.Equal(t, 0, f.escrow.sideEffects())
}

func TestRecordInvestment_FillsToExactTarget(t *testing.T) {
	ctx := context.Background()
	f := newRecorderFixture(t)

	seedInvestment(t, f.investments, "inv-0", "bob", "pool-1", "9500", "0.0.201-1700000000-000000009")

	ref := "0.0.200-1700000000-000000001"
	f.verifier.confirm(ref, 500_000_000)

	_, err := f.svc.RecordInvestment(ctx, "alice", testInvestorAcct, "pool-1", ref)
	require.NoError(t, err)
}

func TestRecordInvestment_EscrowFailureIsRetryable(t *testing.T) {
	ctx := context.Background()
	f := newRecorderFixture(t)

	ref := "0.0.200-1700000000-000000001"
	f.verifier.confirm(ref, 500_000_000)

	f.escrow.releaseErr = domain.ErrEscrowFailure
	_, err := f.svc.RecordInvestment(ctx, "alice", testInvestorAcct, "pool-1", ref)
	require.ErrorIs(t, err, domain.ErrEscrowFailure)

	all, listErr := f.investments.ListByInvestor(ctx, "alice")
	require.NoError(t, listErr)
	assert.Empty(t, all)

	// Same reference succeeds once the escrow recovers.
	f.escrow.releaseErr = nil
	inv, err := f.svc.RecordInvestment(ctx, "alice", testInvestorAcct, "pool-1", ref)
	require.NoError(t, err)
	assert.True(t, inv.Principal.Equal(decimal.RequireFromString("500")))
}

func TestRecordInvestment_PersistFailureEscalates(t *testing.T) {
	ctx := context.Background()
	f := newRecorderFixture(t)

	failing := &failingInsertStore{
		InvestmentStore: f.investments,
		insertErr:       errors.New("connection reset"),
	}
	svc := NewInvestmentService(
		f.pools, failing, f.verifier, f.escrow, f.audit,
		nil, f.alerts, testStableToken, testDecimals, testLogger(),
	)

	ref := "0.0.200-1700000000-000000001"
	f.verifier.confirm(ref, 500_000_000)

	_, err := svc.RecordInvestment(ctx, "alice", testInvestorAcct, "pool-1", ref)
	require.ErrorIs(t, err, domain.ErrInconsistency)

	// Tokens were released before persistence failed; the operator is told.
	assert.Equal(t, 1, f.escrow.releases)
	require.Len(t, f.alerts.messages, 1)

	entries, listErr := f.audit.List(ctx, domain.ListOpts{})
	require.NoError(t, listErr)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.EventInconsistency, entries[0].Event)
}

func TestRecordInvestment_DistinctReferencesBothRecorded(t *testing.T) {
	ctx := context.Background()
	f := newRecorderFixture(t)

	refA := "0.0.200-1700000000-000000001"
	refB := "0.0.200-1700000050-000000002"
	f.verifier.confirm(refA, 500_000_000)
	f.verifier.confirm(refB, 300_000_000)

	_, err := f.svc.RecordInvestment(ctx, "alice", testInvestorAcct, "pool-1", refA)
	require.NoError(t, err)
	_, err = f.svc.RecordInvestment(ctx, "alice", testInvestorAcct, "pool-1", refB)
	require.NoError(t, err)

	all, err := f.investments.ListByInvestor(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, all, 2)

	funded, err := f.investments.SumPrincipal(ctx, "pool-1")
	require.NoError(t, err)
	assert.True(t, funded.Equal(decimal.RequireFromString("800")))
}
