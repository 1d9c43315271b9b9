package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/danielokoye/vestpool/internal/domain"
)

// PoolStore implements domain.PoolStore using PostgreSQL.
type PoolStore struct {
	pool *pgxpool.Pool
}

// NewPoolStore creates a new PoolStore backed by the given connection pool.
func NewPoolStore(pool *pgxpool.Pool) *PoolStore {
	return &PoolStore{pool: pool}
}

const poolSelectCols = `id, name, business_name, asset, currency,
	face_value, yield_rate, duration_days, total_target,
	min_ticket, max_ticket, fraction_size, expires_at,
	escrow_account, token_id, created_at`

// poolScanner matches both pgx.Row and pgx.Rows.
type poolScanner interface {
	Scan(dest ...any) error
}

func scanPool(row poolScanner) (domain.Pool, error) {
	var p domain.Pool
	var assetJSON []byte
	var faceValue, yieldRate, totalTarget, minTicket, maxTicket, fractionSize string

	err := row.Scan(
		&p.ID, &p.Name, &p.BusinessName, &assetJSON, &p.Currency,
		&faceValue, &yieldRate, &p.DurationDays, &totalTarget,
		&minTicket, &maxTicket, &fractionSize, &p.ExpiresAt,
		&p.EscrowAccount, &p.TokenID, &p.CreatedAt,
	)
	if err != nil {
		return domain.Pool{}, err
	}

	if err := json.Unmarshal(assetJSON, &p.Asset); err != nil {
		return domain.Pool{}, fmt.Errorf("unmarshal asset for pool %s: %w", p.ID, err)
	}

	for _, field := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&p.FaceValue, faceValue},
		{&p.YieldRate, yieldRate},
		{&p.TotalTarget, totalTarget},
		{&p.MinTicket, minTicket},
		{&p.MaxTicket, maxTicket},
		{&p.FractionSize, fractionSize},
	} {
		d, err := decimal.NewFromString(field.src)
		if err != nil {
			return domain.Pool{}, fmt.Errorf("parse numeric for pool %s: %w", p.ID, err)
		}
		*field.dst = d
	}
	return p, nil
}

// Create inserts a new pool.
func (s *PoolStore) Create(ctx context.Context, p domain.Pool) error {
	assetJSON, err := json.Marshal(p.Asset)
	if err != nil {
		return fmt.Errorf("postgres: marshal asset for pool %s: %w", p.ID, err)
	}

	const query = `
		INSERT INTO pools (
			id, name, business_name, asset, currency,
			face_value, yield_rate, duration_days, total_target,
			min_ticket, max_ticket, fraction_size, expires_at,
			escrow_account, token_id, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13,
			$14, $15, $16, NOW()
		)`

	_, err = s.pool.Exec(ctx, query,
		p.ID, p.Name, p.BusinessName, assetJSON, p.Currency,
		p.FaceValue.String(), p.YieldRate.String(), p.DurationDays, p.TotalTarget.String(),
		p.MinTicket.String(), p.MaxTicket.String(), p.FractionSize.String(), p.ExpiresAt,
		p.EscrowAccount, p.TokenID, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create pool %s: %w", p.ID, err)
	}
	return nil
}

// Update replaces all mutable fields of a pool.
func (s *PoolStore) Update(ctx context.Context, p domain.Pool) error {
	assetJSON, err := json.Marshal(p.Asset)
	if err != nil {
		return fmt.Errorf("postgres: marshal asset for pool %s: %w", p.ID, err)
	}

	const query = `
		UPDATE pools SET
			name           = $2,
			business_name  = $3,
			asset          = $4,
			currency       = $5,
			face_value     = $6,
			yield_rate     = $7,
			duration_days  = $8,
			total_target   = $9,
			min_ticket     = $10,
			max_ticket     = $11,
			fraction_size  = $12,
			expires_at     = $13,
			escrow_account = $14,
			token_id       = $15,
			updated_at     = NOW()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		p.ID, p.Name, p.BusinessName, assetJSON, p.Currency,
		p.FaceValue.String(), p.YieldRate.String(), p.DurationDays, p.TotalTarget.String(),
		p.MinTicket.String(), p.MaxTicket.String(), p.FractionSize.String(), p.ExpiresAt,
		p.EscrowAccount, p.TokenID,
	)
	if err != nil {
		return fmt.Errorf("postgres: update pool %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPoolNotFound
	}
	return nil
}

// GetByID retrieves a single pool by its ID.
func (s *PoolStore) GetByID(ctx context.Context, id string) (domain.Pool, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+poolSelectCols+` FROM pools WHERE id = $1`, id)

	p, err := scanPool(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Pool{}, domain.ErrPoolNotFound
		}
		return domain.Pool{}, fmt.Errorf("postgres: get pool %s: %w", id, err)
	}
	return p, nil
}

// ListAll returns every pool ordered by creation time, newest first.
func (s *PoolStore) ListAll(ctx context.Context) ([]domain.Pool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+poolSelectCols+` FROM pools ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list pools: %w", err)
	}
	defer rows.Close()

	var pools []domain.Pool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan pool: %w", err)
		}
		pools = append(pools, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list pools rows: %w", err)
	}
	return pools, nil
}

// Compile-time interface check.
var _ domain.PoolStore = (*PoolStore)(nil)
