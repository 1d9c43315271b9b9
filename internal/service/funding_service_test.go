package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielokoye/vestpool/internal/domain"
	"github.com/danielokoye/vestpool/internal/store/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPool(t *testing.T, id, name, business string, target string) domain.Pool {
	t.Helper()
	pool, err := domain.NewPool(
		id, name, business,
		domain.AssetDetails{Type: domain.AssetTypeInvoice, InvoiceNumber: "INV-" + id, DebtorName: "Acme"},
		"vUSD",
		decimal.RequireFromString("11000"),
		decimal.RequireFromString("0.1"),
		90,
		decimal.RequireFromString(target),
		decimal.RequireFromString("100"),
		decimal.RequireFromString("5000"),
		decimal.RequireFromString("10"),
		time.Now().UTC().Add(30*24*time.Hour),
	)
	require.NoError(t, err)
	pool.EscrowAccount = "0.0.300"
	pool.TokenID = "0.0.500"
	return pool
}

func seedInvestment(t *testing.T, store domain.InvestmentStore, id, investorID, poolID, principal, ref string) domain.Investment {
	t.Helper()
	now := time.Now().UTC()
	p := decimal.RequireFromString(principal)
	inv := domain.Investment{
		ID:               id,
		InvestorID:       investorID,
		InvestorAccount:  "0.0.200",
		PoolID:           poolID,
		Principal:        p,
		FractionalUnits:  p.Div(decimal.RequireFromString("10")).IntPart(),
		YieldRate:        decimal.RequireFromString("0.1"),
		ExpectedYield:    p.Mul(decimal.RequireFromString("0.1")),
		DepositReference: ref,
		Status:           domain.InvestmentStatusActive,
		CreatedAt:        now,
		MaturedAt:        now.AddDate(0, 0, 90),
	}
	require.NoError(t, store.Insert(context.Background(), inv))
	return inv
}

func TestDeriveFunding(t *testing.T) {
	now := time.Now().UTC()
	pool := domain.Pool{
		TotalTarget: decimal.RequireFromString("10000"),
		ExpiresAt:   now.Add(10 * 24 * time.Hour),
	}

	cases := []struct {
		name       string
		funded     string
		wantPct    int64
		wantStatus domain.FundingStatus
	}{
		{"empty", "0", 0, domain.FundingStatusFunding},
		{"below one percent rounds down", "40", 0, domain.FundingStatusFunding},
		{"one percent", "100", 1, domain.FundingStatusFunded},
		{"partial", "5000", 50, domain.FundingStatusFunded},
		{"just under full rounds to full", "9960", 100, domain.FundingStatusFullyFunded},
		{"exactly full", "10000", 100, domain.FundingStatusFullyFunded},
		{"overshoot capped", "12000", 100, domain.FundingStatusFullyFunded},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := deriveFunding(pool, decimal.RequireFromString(tc.funded), now)
			assert.Equal(t, tc.wantPct, got.Percentage)
			assert.Equal(t, tc.wantStatus, got.Status)
			assert.True(t, got.FundedAmount.Equal(decimal.RequireFromString(tc.funded)))
			assert.Equal(t, 10, got.DaysLeft)
		})
	}
}

func TestDeriveFunding_NoTarget(t *testing.T) {
	got := deriveFunding(domain.Pool{}, decimal.RequireFromString("5000"), time.Now().UTC())
	assert.Equal(t, int64(0), got.Percentage)
	assert.Equal(t, domain.FundingStatusFunding, got.Status)
}

func TestDeriveFunding_MonotoneInFunded(t *testing.T) {
	pool := domain.Pool{TotalTarget: decimal.RequireFromString("10000")}
	now := time.Now().UTC()

	prev := int64(-1)
	for funded := int64(0); funded <= 12000; funded += 250 {
		got := deriveFunding(pool, decimal.NewFromInt(funded), now)
		require.GreaterOrEqual(t, got.Percentage, prev, "funded=%d", funded)
		prev = got.Percentage
	}
}

func TestStatusForPercentage_Exhaustive(t *testing.T) {
	for pct := int64(0); pct <= 110; pct++ {
		got := statusForPercentage(pct)
		switch {
		case pct >= 100:
			assert.Equal(t, domain.FundingStatusFullyFunded, got, "pct=%d", pct)
		case pct >= 1:
			assert.Equal(t, domain.FundingStatusFunded, got, "pct=%d", pct)
		default:
			assert.Equal(t, domain.FundingStatusFunding, got, "pct=%d", pct)
		}
	}
}

func TestDaysLeft(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, daysLeft(time.Time{}, now))
	assert.Equal(t, 0, daysLeft(now.Add(-time.Hour), now))
	assert.Equal(t, 0, daysLeft(now, now))
	assert.Equal(t, 1, daysLeft(now.Add(time.Hour), now))
	assert.Equal(t, 1, daysLeft(now.Add(24*time.Hour), now))
	assert.Equal(t, 2, daysLeft(now.Add(25*time.Hour), now))
}

func TestComputeFunding(t *testing.T) {
	ctx := context.Background()
	pools := memory.NewPoolStore()
	investments := memory.NewInvestmentStore()
	svc := NewFundingService(pools, investments, testLogger())

	pool := testPool(t, "pool-1", "Harvest Q3", "Greenfield Farms", "10000")
	require.NoError(t, pools.Create(ctx, pool))
	seedInvestment(t, investments, "inv-1", "alice", "pool-1", "2500", "0.0.200-1700000000-000000001")
	seedInvestment(t, investments, "inv-2", "bob", "pool-1", "2500", "0.0.201-1700000000-000000002")

	got, err := svc.ComputeFunding(ctx, "pool-1")
	require.NoError(t, err)
	assert.True(t, got.FundedAmount.Equal(decimal.RequireFromString("5000")))
	assert.Equal(t, int64(50), got.Percentage)
	assert.Equal(t, domain.FundingStatusFunded, got.Status)
}

func TestComputeFunding_UnknownPool(t *testing.T) {
	svc := NewFundingService(memory.NewPoolStore(), memory.NewInvestmentStore(), testLogger())

	_, err := svc.ComputeFunding(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrPoolNotFound)
}

func TestListPools_FilterAndPaginate(t *testing.T) {
	ctx := context.Background()
	pools := memory.NewPoolStore()
	investments := memory.NewInvestmentStore()
	svc := NewFundingService(pools, investments, testLogger())

	require.NoError(t, pools.Create(ctx, testPool(t, "pool-a", "Harvest Q3", "Greenfield Farms", "10000")))
	require.NoError(t, pools.Create(ctx, testPool(t, "pool-b", "Invoice Bridge", "Apex Logistics", "10000")))
	require.NoError(t, pools.Create(ctx, testPool(t, "pool-c", "Warehouse Notes", "Greenfield Farms", "10000")))

	// pool-a partially funded, pool-b fully funded, pool-c untouched.
	seedInvestment(t, investments, "inv-1", "alice", "pool-a", "4000", "0.0.200-1700000000-000000001")
	seedInvestment(t, investments, "inv-2", "bob", "pool-b", "10000", "0.0.201-1700000000-000000002")

	t.Run("status filter", func(t *testing.T) {
		got, total, err := svc.ListPools(ctx, domain.PoolFilter{Status: domain.FundingStatusFunded}, domain.ListOpts{})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, 1, total)
		assert.Equal(t, "pool-a", got[0].Pool.ID)
	})

	t.Run("search is case-insensitive over name and business", func(t *testing.T) {
		got, total, err := svc.ListPools(ctx, domain.PoolFilter{Search: "greenfield"}, domain.ListOpts{})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		require.Len(t, got, 2)
	})

	t.Run("pagination after filter", func(t *testing.T) {
		got, total, err := svc.ListPools(ctx, domain.PoolFilter{}, domain.ListOpts{Limit: 2, Offset: 2})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, got, 1)
	})

	t.Run("offset past end", func(t *testing.T) {
		got, total, err := svc.ListPools(ctx, domain.PoolFilter{}, domain.ListOpts{Offset: 10})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.Empty(t, got)
	})
}
