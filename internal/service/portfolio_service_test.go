package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielokoye/vestpool/internal/domain"
	"github.com/danielokoye/vestpool/internal/store/memory"
)

// agedInvestment builds an investment whose clock started daysAgo in the
// past, with the standard 0.1 snapshot rate over 90 days.
func agedInvestment(id, investorID, poolID, principal string, daysAgo int) domain.Investment {
	created := time.Now().UTC().AddDate(0, 0, -daysAgo)
	p := decimal.RequireFromString(principal)
	return domain.Investment{
		ID:               id,
		InvestorID:       investorID,
		InvestorAccount:  testInvestorAcct,
		PoolID:           poolID,
		Principal:        p,
		FractionalUnits:  p.Div(decimal.RequireFromString("10")).IntPart(),
		YieldRate:        decimal.RequireFromString("0.1"),
		ExpectedYield:    p.Mul(decimal.RequireFromString("0.1")),
		DepositReference: id + "-ref",
		Status:           domain.InvestmentStatusActive,
		CreatedAt:        created,
		MaturedAt:        created.AddDate(0, 0, 90),
	}
}

func newPortfolioFixture(t *testing.T) (*PortfolioService, *memory.PoolStore, *memory.InvestmentStore) {
	t.Helper()
	pools := memory.NewPoolStore()
	investments := memory.NewInvestmentStore()
	return NewPortfolioService(pools, investments, testLogger()), pools, investments
}

func TestGetPortfolio_Empty(t *testing.T) {
	svc, _, _ := newPortfolioFixture(t)

	got, err := svc.GetPortfolio(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, got.Pending)
	assert.Empty(t, got.Completed)
	assert.True(t, got.TotalPrincipal.IsZero())
	assert.True(t, got.TotalEarningsToDate.IsZero())
}

func TestGetPortfolio_HalfwayAccrual(t *testing.T) {
	ctx := context.Background()
	svc, pools, investments := newPortfolioFixture(t)

	// Target 10000 against face value 11000: a 500 stake owns 5% of a 1000
	// profit, so the expected yield is 50.
	require.NoError(t, pools.Create(ctx, testPool(t, "pool-1", "Harvest Q3", "Greenfield Farms", "10000")))
	require.NoError(t, investments.Insert(ctx, agedInvestment("inv-1", "alice", "pool-1", "500", 45)))

	got, err := svc.GetPortfolio(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, got.Pending, 1)
	assert.Empty(t, got.Completed)

	g := got.Pending[0]
	assert.Equal(t, "pool-1", g.PoolID)
	assert.Equal(t, domain.InvestmentStatusActive, g.Status)
	assert.True(t, g.ExpectedYield.Equal(decimal.RequireFromString("50")), "expected yield %s", g.ExpectedYield)
	assert.True(t, g.EarningsToDate.Equal(decimal.RequireFromString("25")), "earnings %s", g.EarningsToDate)
	assert.True(t, g.EarningsPct.Equal(decimal.RequireFromString("50")), "earnings pct %s", g.EarningsPct)
	assert.Equal(t, 90, g.DurationDays)

	assert.True(t, got.TotalPrincipal.Equal(decimal.RequireFromString("500")))
	assert.True(t, got.TotalEarningsToDate.Equal(decimal.RequireFromString("25")))
}

func TestGetPortfolio_EarningsNeverExceedExpectedYield(t *testing.T) {
	ctx := context.Background()
	svc, pools, investments := newPortfolioFixture(t)

	require.NoError(t, pools.Create(ctx, testPool(t, "pool-1", "Harvest Q3", "Greenfield Farms", "10000")))
	// Matured 30 days ago but not yet settled: accrual clamps at term.
	require.NoError(t, investments.Insert(ctx, agedInvestment("inv-1", "alice", "pool-1", "500", 120)))

	got, err := svc.GetPortfolio(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, got.Pending, 1)

	g := got.Pending[0]
	assert.True(t, g.EarningsToDate.Equal(g.ExpectedYield), "earnings %s vs yield %s", g.EarningsToDate, g.ExpectedYield)
	assert.True(t, g.EarningsPct.Equal(decimal.RequireFromString("100")))
}

func TestGetPortfolio_SoleInvestorCapturesFullProfit(t *testing.T) {
	ctx := context.Background()
	svc, pools, investments := newPortfolioFixture(t)

	// No funding target configured: the purchase price falls back to the
	// discounted face value, 1000 * (1 - 0.1) = 900. A sole investor who put
	// in the whole 900 owns the entire 100 profit.
	pool, err := domain.NewPool(
		"pool-solo", "Bridge Note", "Apex Logistics",
		domain.AssetDetails{Type: domain.AssetTypeReceivable, ObligorName: "Acme"},
		"vUSD",
		decimal.RequireFromString("1000"),
		decimal.RequireFromString("0.1"),
		90,
		decimal.Zero,
		decimal.Zero,
		decimal.Zero,
		decimal.RequireFromString("10"),
		time.Now().UTC().Add(30*24*time.Hour),
	)
	require.NoError(t, err)
	pool.EscrowAccount = testEscrowAcct
	pool.TokenID = "0.0.500"
	require.NoError(t, pools.Create(ctx, pool))
	require.NoError(t, investments.Insert(ctx, agedInvestment("inv-1", "alice", "pool-solo", "900", 0)))

	got, err := svc.GetPortfolio(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, got.Pending, 1)
	assert.True(t, got.Pending[0].ExpectedYield.Equal(decimal.RequireFromString("100")),
		"expected yield %s", got.Pending[0].ExpectedYield)
}

func TestGetPortfolio_GroupsByPool(t *testing.T) {
	ctx := context.Background()
	svc, pools, investments := newPortfolioFixture(t)

	require.NoError(t, pools.Create(ctx, testPool(t, "pool-1", "Harvest Q3", "Greenfield Farms", "10000")))
	require.NoError(t, investments.Insert(ctx, agedInvestment("inv-1", "alice", "pool-1", "500", 45)))
	require.NoError(t, investments.Insert(ctx, agedInvestment("inv-2", "alice", "pool-1", "300", 10)))

	got, err := svc.GetPortfolio(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, got.Pending, 1)

	g := got.Pending[0]
	assert.True(t, g.Principal.Equal(decimal.RequireFromString("800")))
	assert.Equal(t, int64(80), g.FractionalUnits)
	// Proportional share of the pool profit: 800/10000 of 1000.
	assert.True(t, g.ExpectedYield.Equal(decimal.RequireFromString("80")), "expected yield %s", g.ExpectedYield)
	// The group clock starts at the oldest investment.
	assert.WithinDuration(t, time.Now().UTC().AddDate(0, 0, -45), g.FirstInvestedAt, time.Minute)
	require.NotNil(t, g.MaturesAt)
	assert.WithinDuration(t, time.Now().UTC().AddDate(0, 0, 80), *g.MaturesAt, time.Minute)
}

func TestGetPortfolio_CompletedPartition(t *testing.T) {
	ctx := context.Background()
	svc, pools, investments := newPortfolioFixture(t)

	require.NoError(t, pools.Create(ctx, testPool(t, "pool-1", "Harvest Q3", "Greenfield Farms", "10000")))
	require.NoError(t, pools.Create(ctx, testPool(t, "pool-2", "Invoice Bridge", "Apex Logistics", "10000")))

	done := agedInvestment("inv-1", "alice", "pool-1", "500", 120)
	done.Status = domain.InvestmentStatusCompleted
	require.NoError(t, investments.Insert(ctx, done))
	require.NoError(t, investments.Insert(ctx, agedInvestment("inv-2", "alice", "pool-2", "300", 10)))

	got, err := svc.GetPortfolio(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, got.Pending, 1)
	require.Len(t, got.Completed, 1)

	assert.Equal(t, "pool-2", got.Pending[0].PoolID)
	assert.Equal(t, "pool-1", got.Completed[0].PoolID)
	assert.True(t, got.Completed[0].EarningsToDate.Equal(got.Completed[0].ExpectedYield))

	// Totals cover pending positions only.
	assert.True(t, got.TotalPrincipal.Equal(decimal.RequireFromString("300")))
}

func TestGetPortfolio_MixedStatusGroupStaysPending(t *testing.T) {
	ctx := context.Background()
	svc, pools, investments := newPortfolioFixture(t)

	require.NoError(t, pools.Create(ctx, testPool(t, "pool-1", "Harvest Q3", "Greenfield Farms", "10000")))

	done := agedInvestment("inv-1", "alice", "pool-1", "500", 120)
	done.Status = domain.InvestmentStatusCompleted
	require.NoError(t, investments.Insert(ctx, done))
	require.NoError(t, investments.Insert(ctx, agedInvestment("inv-2", "alice", "pool-1", "300", 10)))

	got, err := svc.GetPortfolio(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, got.Pending, 1)
	assert.Empty(t, got.Completed)
	assert.Equal(t, domain.InvestmentStatusActive, got.Pending[0].Status)
}

func TestGetPortfolio_PoolLookupFailureStillRenders(t *testing.T) {
	ctx := context.Background()
	svc, _, investments := newPortfolioFixture(t)

	// No pool row exists; the group falls back to the snapshot rate,
	// 500 * 0.1/0.9.
	require.NoError(t, investments.Insert(ctx, agedInvestment("inv-1", "alice", "ghost-pool", "500", 0)))

	got, err := svc.GetPortfolio(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, got.Pending, 1)

	g := got.Pending[0]
	assert.Equal(t, "ghost-pool", g.PoolID)
	want := decimal.RequireFromString("500").Mul(decimal.RequireFromString("0.1")).Div(decimal.RequireFromString("0.9"))
	assert.True(t, g.ExpectedYield.Sub(want).Abs().LessThan(decimal.New(1, -6)),
		"expected yield %s", g.ExpectedYield)
}
