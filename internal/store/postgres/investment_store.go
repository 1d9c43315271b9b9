package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/danielokoye/vestpool/internal/domain"
)

// uniqueViolation is the PostgreSQL error code raised when an insert breaks a
// unique constraint. The investments table carries one on deposit_reference;
// hitting it is how a replayed deposit is refused under concurrency.
const uniqueViolation = "23505"

// InvestmentStore implements domain.InvestmentStore using PostgreSQL.
type InvestmentStore struct {
	pool *pgxpool.Pool
}

// NewInvestmentStore creates a new InvestmentStore backed by the given
// connection pool.
func NewInvestmentStore(pool *pgxpool.Pool) *InvestmentStore {
	return &InvestmentStore{pool: pool}
}

const investmentSelectCols = `id, investor_id, investor_account, pool_id,
	principal, fractional_units, yield_rate, expected_yield,
	deposit_reference, settlement_reference, contract_index,
	status, created_at, matured_at`

type investmentScanner interface {
	Scan(dest ...any) error
}

func scanInvestment(row investmentScanner) (domain.Investment, error) {
	var inv domain.Investment
	var principal, yieldRate, expectedYield string
	var status string

	err := row.Scan(
		&inv.ID, &inv.InvestorID, &inv.InvestorAccount, &inv.PoolID,
		&principal, &inv.FractionalUnits, &yieldRate, &expectedYield,
		&inv.DepositReference, &inv.SettlementReference, &inv.ContractIndex,
		&status, &inv.CreatedAt, &inv.MaturedAt,
	)
	if err != nil {
		return domain.Investment{}, err
	}
	inv.Status = domain.InvestmentStatus(status)

	for _, field := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&inv.Principal, principal},
		{&inv.YieldRate, yieldRate},
		{&inv.ExpectedYield, expectedYield},
	} {
		d, err := decimal.NewFromString(field.src)
		if err != nil {
			return domain.Investment{}, fmt.Errorf("parse numeric for investment %s: %w", inv.ID, err)
		}
		*field.dst = d
	}
	return inv, nil
}

// Insert adds a new investment. Returns domain.ErrAlreadyRecorded when the
// deposit reference already exists.
func (s *InvestmentStore) Insert(ctx context.Context, inv domain.Investment) error {
	const query = `
		INSERT INTO investments (
			id, investor_id, investor_account, pool_id,
			principal, fractional_units, yield_rate, expected_yield,
			deposit_reference, settlement_reference, contract_index,
			status, created_at, matured_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11,
			$12, $13, $14, NOW()
		)`

	_, err := s.pool.Exec(ctx, query,
		inv.ID, inv.InvestorID, inv.InvestorAccount, inv.PoolID,
		inv.Principal.String(), inv.FractionalUnits, inv.YieldRate.String(), inv.ExpectedYield.String(),
		inv.DepositReference, inv.SettlementReference, inv.ContractIndex,
		string(inv.Status), inv.CreatedAt, inv.MaturedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrAlreadyRecorded
		}
		return fmt.Errorf("postgres: insert investment %s: %w", inv.ID, err)
	}
	return nil
}

// GetByID retrieves a single investment by its ID.
func (s *InvestmentStore) GetByID(ctx context.Context, id string) (domain.Investment, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+investmentSelectCols+` FROM investments WHERE id = $1`, id)

	inv, err := scanInvestment(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Investment{}, domain.ErrNotFound
		}
		return domain.Investment{}, fmt.Errorf("postgres: get investment %s: %w", id, err)
	}
	return inv, nil
}

// GetByDepositReference returns the investment recorded for a deposit
// reference.
func (s *InvestmentStore) GetByDepositReference(ctx context.Context, ref string) (domain.Investment, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+investmentSelectCols+` FROM investments WHERE deposit_reference = $1`, ref)

	inv, err := scanInvestment(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Investment{}, domain.ErrNotFound
		}
		return domain.Investment{}, fmt.Errorf("postgres: get investment by reference %q: %w", ref, err)
	}
	return inv, nil
}

// ListByInvestor returns all investments for an investor, oldest first.
func (s *InvestmentStore) ListByInvestor(ctx context.Context, investorID string) ([]domain.Investment, error) {
	return s.list(ctx,
		`SELECT `+investmentSelectCols+` FROM investments
		 WHERE investor_id = $1
		 ORDER BY created_at ASC`, investorID)
}

// ListByPool returns all investments in a pool, oldest first.
func (s *InvestmentStore) ListByPool(ctx context.Context, poolID string) ([]domain.Investment, error) {
	return s.list(ctx,
		`SELECT `+investmentSelectCols+` FROM investments
		 WHERE pool_id = $1
		 ORDER BY created_at ASC`, poolID)
}

// ListActiveMatured returns active investments whose maturity is at or
// before asOf, oldest maturity first.
func (s *InvestmentStore) ListActiveMatured(ctx context.Context, asOf time.Time) ([]domain.Investment, error) {
	return s.list(ctx,
		`SELECT `+investmentSelectCols+` FROM investments
		 WHERE status = 'active' AND matured_at <= $1
		 ORDER BY matured_at ASC`, asOf)
}

func (s *InvestmentStore) list(ctx context.Context, query string, args ...any) ([]domain.Investment, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list investments: %w", err)
	}
	defer rows.Close()

	var invs []domain.Investment
	for rows.Next() {
		inv, err := scanInvestment(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan investment: %w", err)
		}
		invs = append(invs, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list investments rows: %w", err)
	}
	return invs, nil
}

// SumPrincipal totals principal over every investment in a pool, regardless
// of status.
func (s *InvestmentStore) SumPrincipal(ctx context.Context, poolID string) (decimal.Decimal, error) {
	var sum string
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(principal), 0) FROM investments WHERE pool_id = $1`,
		poolID,
	).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("postgres: sum principal for pool %s: %w", poolID, err)
	}

	d, err := decimal.NewFromString(sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("postgres: parse principal sum for pool %s: %w", poolID, err)
	}
	return d, nil
}

// SumPrincipalByPool totals principal per pool in one pass.
func (s *InvestmentStore) SumPrincipalByPool(ctx context.Context) (map[string]decimal.Decimal, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT pool_id, COALESCE(SUM(principal), 0) FROM investments GROUP BY pool_id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: sum principal by pool: %w", err)
	}
	defer rows.Close()

	sums := make(map[string]decimal.Decimal)
	for rows.Next() {
		var poolID, sum string
		if err := rows.Scan(&poolID, &sum); err != nil {
			return nil, fmt.Errorf("postgres: scan principal sum: %w", err)
		}
		d, err := decimal.NewFromString(sum)
		if err != nil {
			return nil, fmt.Errorf("postgres: parse principal sum for pool %s: %w", poolID, err)
		}
		sums[poolID] = d
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: sum principal by pool rows: %w", err)
	}
	return sums, nil
}

// MarkCompleted transitions an investment active → completed, recording the
// settlement reference. The status guard in the WHERE clause makes the call
// safe under concurrent settlement runs; the loser sees ErrNotFound.
func (s *InvestmentStore) MarkCompleted(ctx context.Context, id string, settlementRef string) error {
	const query = `
		UPDATE investments SET
			status               = 'completed',
			settlement_reference = $2,
			updated_at           = NOW()
		WHERE id = $1 AND status = 'active'`

	tag, err := s.pool.Exec(ctx, query, id, settlementRef)
	if err != nil {
		return fmt.Errorf("postgres: mark investment %s completed: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Compile-time interface check.
var _ domain.InvestmentStore = (*InvestmentStore)(nil)
