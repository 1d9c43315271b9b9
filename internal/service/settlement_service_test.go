package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielokoye/vestpool/internal/domain"
	"github.com/danielokoye/vestpool/internal/store/memory"
)

type stubArchiver struct {
	mu   sync.Mutex
	runs [][]SettlementRow
	err  error
}

func (a *stubArchiver) ArchiveSettlementRun(_ context.Context, _ time.Time, rows []SettlementRow) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return "", a.err
	}
	a.runs = append(a.runs, rows)
	return "reports/test.csv", nil
}

type settlementFixture struct {
	investments *memory.InvestmentStore
	escrow      *stubEscrow
	audit       *memory.AuditStore
	archiver    *stubArchiver
	svc         *SettlementService
}

func newSettlementFixture(t *testing.T) *settlementFixture {
	t.Helper()
	f := &settlementFixture{
		investments: memory.NewInvestmentStore(),
		escrow:      &stubEscrow{},
		audit:       memory.NewAuditStore(),
		archiver:    &stubArchiver{},
	}
	f.svc = NewSettlementService(f.investments, f.escrow, f.audit, nil, f.archiver, testDecimals, testLogger())
	return f
}

// maturedInvestment is due for settlement: matured in the past, still active.
func maturedInvestment(t *testing.T, store domain.InvestmentStore, id string, contractIndex *int64) domain.Investment {
	t.Helper()
	inv := agedInvestment(id, "alice", "pool-1", "500", 120)
	inv.DepositReference = id + "-matured-ref"
	inv.ContractIndex = contractIndex
	require.NoError(t, store.Insert(context.Background(), inv))
	return inv
}

func idx(v int64) *int64 { return &v }

func TestSettleMatured_PaysOutAndCompletes(t *testing.T) {
	ctx := context.Background()
	f := newSettlementFixture(t)

	inv := maturedInvestment(t, f.investments, "inv-1", idx(7))

	settled, err := f.svc.SettleMatured(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, settled)
	assert.Equal(t, []int64{7}, f.escrow.settles)

	got, err := f.investments.GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvestmentStatusCompleted, got.Status)
	require.NotNil(t, got.SettlementReference)
	assert.Equal(t, "settle-receipt", *got.SettlementReference)

	entries, err := f.audit.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.EventYieldPaid, entries[0].Event)
	// 500 * 0.1 in smallest units at 6 decimals.
	assert.Equal(t, int64(50_000_000), entries[0].Detail["yield_units"])

	require.Len(t, f.archiver.runs, 1)
	require.Len(t, f.archiver.runs[0], 1)
	assert.Equal(t, inv.ID, f.archiver.runs[0][0].InvestmentID)
}

func TestSettleMatured_NothingDue(t *testing.T) {
	ctx := context.Background()
	f := newSettlementFixture(t)

	// Active but not matured.
	require.NoError(t, f.investments.Insert(ctx, agedInvestment("inv-1", "alice", "pool-1", "500", 10)))

	settled, err := f.svc.SettleMatured(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, settled)
	assert.Equal(t, 0, f.escrow.sideEffects())
	assert.Empty(t, f.archiver.runs)
}

func TestSettleMatured_SecondRunIsNoOp(t *testing.T) {
	ctx := context.Background()
	f := newSettlementFixture(t)

	maturedInvestment(t, f.investments, "inv-1", idx(1))

	settled, err := f.svc.SettleMatured(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, settled)

	settled, err = f.svc.SettleMatured(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, settled)
	assert.Len(t, f.escrow.settles, 1)
}

func TestSettleMatured_MissingContractIndexSkipped(t *testing.T) {
	ctx := context.Background()
	f := newSettlementFixture(t)

	orphan := maturedInvestment(t, f.investments, "inv-orphan", nil)
	maturedInvestment(t, f.investments, "inv-ok", idx(3))

	settled, err := f.svc.SettleMatured(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, settled)
	assert.Equal(t, []int64{3}, f.escrow.settles)

	// The orphan stays active and reappears on the next run.
	got, err := f.investments.GetByID(ctx, orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvestmentStatusActive, got.Status)
}

func TestSettleMatured_EscrowFailureLeavesItemActive(t *testing.T) {
	ctx := context.Background()
	f := newSettlementFixture(t)

	inv := maturedInvestment(t, f.investments, "inv-1", idx(1))
	f.escrow.settleErr = domain.ErrEscrowFailure

	settled, err := f.svc.SettleMatured(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, settled)

	got, err := f.investments.GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvestmentStatusActive, got.Status)

	// Retry succeeds once the escrow recovers.
	f.escrow.settleErr = nil
	settled, err = f.svc.SettleMatured(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, settled)
}

func TestSettleMatured_PartialFailureSettlesTheRest(t *testing.T) {
	ctx := context.Background()
	f := newSettlementFixture(t)

	maturedInvestment(t, f.investments, "inv-1", idx(1))
	maturedInvestment(t, f.investments, "inv-2", nil) // will be skipped
	maturedInvestment(t, f.investments, "inv-3", idx(3))

	settled, err := f.svc.SettleMatured(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, settled)
	assert.ElementsMatch(t, []int64{1, 3}, f.escrow.settles)
}

func TestSettleMatured_ArchiveFailureDoesNotFailRun(t *testing.T) {
	ctx := context.Background()
	f := newSettlementFixture(t)

	maturedInvestment(t, f.investments, "inv-1", idx(1))
	f.archiver.err = errors.New("bucket unavailable")

	settled, err := f.svc.SettleMatured(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, settled)
}

func TestSettleMatured_CancelledContextStopsRun(t *testing.T) {
	f := newSettlementFixture(t)

	maturedInvestment(t, f.investments, "inv-1", idx(1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	settled, err := f.svc.SettleMatured(ctx)
	require.Error(t, err)
	assert.Equal(t, 0, settled)
	assert.Empty(t, f.escrow.settles)
}
