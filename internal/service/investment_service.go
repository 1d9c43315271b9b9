package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/danielokoye/vestpool/internal/domain"
	"github.com/danielokoye/vestpool/internal/ledger"
)

// DepositVerifier resolves a deposit reference against the external ledger.
// Implemented by ledger.Verifier.
type DepositVerifier interface {
	Verify(ctx context.Context, reference, debitAccount, creditAccount, tokenID string, expectedUnits int64) (domain.TransferFacts, error)
}

// Alerter delivers out-of-band operator alerts. Implemented by
// notify.Notifier.
type Alerter interface {
	NotifyAll(ctx context.Context, title, message string) error
}

// InvestmentService records investor deposits as investments. An investment
// is only ever credited after the deposit has been verified on the ledger,
// and at most once per deposit reference: the storage-layer uniqueness
// constraint on the reference is the sole mechanism preventing
// double-crediting under concurrent retries.
type InvestmentService struct {
	pools       domain.PoolStore
	investments domain.InvestmentStore
	verifier    DepositVerifier
	escrow      domain.Escrow
	audit       domain.AuditStore
	bus         domain.SignalBus
	alerts      Alerter

	stableToken string // vUSD token id on the ledger
	decimals    int32  // smallest-unit decimals of vUSD

	logger *slog.Logger
}

// NewInvestmentService creates an InvestmentService. bus and alerts may be
// nil; event publication and operator alerts are then skipped.
func NewInvestmentService(
	pools domain.PoolStore,
	investments domain.InvestmentStore,
	verifier DepositVerifier,
	escrow domain.Escrow,
	audit domain.AuditStore,
	bus domain.SignalBus,
	alerts Alerter,
	stableToken string,
	decimals int32,
	logger *slog.Logger,
) *InvestmentService {
	return &InvestmentService{
		pools:       pools,
		investments: investments,
		verifier:    verifier,
		escrow:      escrow,
		audit:       audit,
		bus:         bus,
		alerts:      alerts,
		stableToken: stableToken,
		decimals:    decimals,
		logger:      logger.With(slog.String("component", "investment_service")),
	}
}

// RecordInvestment validates a claimed deposit against the ledger, enforces
// the pool's business invariants, releases fractional tokens through the
// escrow, and persists the investment exactly once per deposit reference.
//
// Replays of an already-recorded reference return the existing investment
// together with domain.ErrAlreadyRecorded. Escrow failures are retryable
// with the same reference. A persistence failure after the escrow committed
// returns domain.ErrInconsistency and is escalated for manual
// reconciliation; it must never be silently retried away.
func (s *InvestmentService) RecordInvestment(ctx context.Context, investorID, investorAccount, poolID, depositReference string) (domain.Investment, error) {
	// Replay fast path: the reference may already be recorded from an
	// earlier attempt that failed after persistence. Investments are stored
	// under the canonical reference, so normalize before looking up;
	// otherwise a replay in SDK "@" form would slip past and re-drive the
	// escrow. A malformed reference falls through to verification, which
	// rejects it with a proper error.
	if canonical, err := ledger.CanonicalTxID(depositReference); err == nil {
		if existing, err := s.investments.GetByDepositReference(ctx, canonical); err == nil {
			return existing, domain.ErrAlreadyRecorded
		}
	}

	pool, err := s.pools.GetByID(ctx, poolID)
	if err != nil {
		return domain.Investment{}, fmt.Errorf("investment_service: get pool %q: %w", poolID, err)
	}
	if !pool.Tokenized() {
		return domain.Investment{}, fmt.Errorf("investment_service: pool %q: %w", poolID, domain.ErrPoolNotTokenized)
	}

	// Verify the deposit actually happened: investor debited, pool escrow
	// credited, in the stable unit. The verified magnitude becomes the
	// principal; the caller never states an amount.
	facts, err := s.verifier.Verify(ctx, depositReference, investorAccount, pool.EscrowAccount, s.stableToken, 0)
	if err != nil {
		return domain.Investment{}, fmt.Errorf("investment_service: verify deposit %q: %w", depositReference, err)
	}

	principal := decimal.New(facts.Units, -s.decimals)

	if pool.MinTicket.Sign() > 0 && principal.LessThan(pool.MinTicket) {
		return domain.Investment{}, &domain.TicketError{Amount: principal, Bound: pool.MinTicket, Below: true}
	}
	if pool.MaxTicket.Sign() > 0 && principal.GreaterThan(pool.MaxTicket) {
		return domain.Investment{}, &domain.TicketError{Amount: principal, Bound: pool.MaxTicket}
	}

	if !principal.Mod(pool.FractionSize).IsZero() {
		return domain.Investment{}, &domain.FractionError{Amount: principal, FractionSize: pool.FractionSize}
	}
	fractionalUnits := principal.Div(pool.FractionSize).Floor().IntPart()
	if fractionalUnits <= 0 {
		return domain.Investment{}, fmt.Errorf("investment_service: principal %s over fraction size %s: %w",
			principal, pool.FractionSize, domain.ErrZeroAllocation)
	}

	// Capacity check. Read-then-write without a lock: concurrent deposits
	// near the boundary can overshoot the target slightly. The target is a
	// soft cap; funding is always recomputed from source records.
	if pool.TotalTarget.Sign() > 0 {
		funded, err := s.investments.SumPrincipal(ctx, poolID)
		if err != nil {
			return domain.Investment{}, fmt.Errorf("investment_service: sum principal for %q: %w", poolID, err)
		}
		if funded.Add(principal).GreaterThan(pool.TotalTarget) {
			return domain.Investment{}, &domain.CapacityError{Funded: funded, Amount: principal, Target: pool.TotalTarget}
		}
	}

	// Escrow side effects. Both calls must succeed; each is idempotent on
	// the escrow side, so the caller may retry the whole request with the
	// same deposit reference after a failure here.
	releaseReceipt, err := s.escrow.ReleaseFraction(ctx, investorAccount, pool.TokenID, fractionalUnits)
	if err != nil {
		return domain.Investment{}, fmt.Errorf("investment_service: release fraction: %w", err)
	}
	_, contractIndex, err := s.escrow.RecordInvestment(ctx, investorAccount, pool.EscrowAccount, facts.Units)
	if err != nil {
		return domain.Investment{}, fmt.Errorf("investment_service: record on escrow: %w", err)
	}

	now := time.Now().UTC()
	inv := domain.Investment{
		ID:               uuid.New().String(),
		InvestorID:       investorID,
		InvestorAccount:  investorAccount,
		PoolID:           poolID,
		Principal:        principal,
		FractionalUnits:  fractionalUnits,
		YieldRate:        pool.YieldRate,
		ExpectedYield:    principal.Mul(pool.YieldRate),
		DepositReference: facts.TransactionID,
		ContractIndex:    &contractIndex,
		Status:           domain.InvestmentStatusActive,
		CreatedAt:        now,
		MaturedAt:        now.AddDate(0, 0, pool.DurationDays),
	}

	if err := s.investments.Insert(ctx, inv); err != nil {
		if errors.Is(err, domain.ErrAlreadyRecorded) {
			// A concurrent retry of the same deposit won the race. The
			// escrow bookkeeping is index-idempotent, so nothing was
			// double-credited.
			if existing, getErr := s.investments.GetByDepositReference(ctx, facts.TransactionID); getErr == nil {
				return existing, domain.ErrAlreadyRecorded
			}
			return domain.Investment{}, domain.ErrAlreadyRecorded
		}
		// The escrow released tokens but no internal record exists. This
		// needs an operator: log and alert with everything required to
		// replay the persistence by hand.
		s.escalateInconsistency(ctx, inv, releaseReceipt, err)
		return domain.Investment{}, fmt.Errorf("investment_service: persist investment for deposit %q: %v: %w",
			facts.TransactionID, err, domain.ErrInconsistency)
	}

	detail := map[string]any{
		"investment_id":     inv.ID,
		"investor":          inv.InvestorID,
		"pool":              inv.PoolID,
		"principal":         inv.Principal.String(),
		"fractional_units":  inv.FractionalUnits,
		"yield_rate":        inv.YieldRate.String(),
		"expected_yield":    inv.ExpectedYield.String(),
		"deposit_reference": inv.DepositReference,
		"release_receipt":   releaseReceipt,
		"contract_index":    contractIndex,
		"timestamp":         now.Format(time.RFC3339Nano),
	}
	if auditErr := s.audit.Log(ctx, domain.EventInvestmentRecorded, detail); auditErr != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("investment_id", inv.ID),
			slog.String("error", auditErr.Error()),
		)
	}
	s.publish(ctx, domain.ChannelInvestments, detail)

	s.logger.InfoContext(ctx, "investment recorded",
		slog.String("investment_id", inv.ID),
		slog.String("investor", inv.InvestorID),
		slog.String("pool", inv.PoolID),
		slog.String("principal", inv.Principal.String()),
		slog.Int64("fractional_units", inv.FractionalUnits),
	)

	return inv, nil
}

// escalateInconsistency records and alerts the one failure mode that
// requires out-of-band attention: fractional tokens were released but the
// investment row was not persisted.
func (s *InvestmentService) escalateInconsistency(ctx context.Context, inv domain.Investment, releaseReceipt string, cause error) {
	s.logger.ErrorContext(ctx, "escrow committed but investment not persisted; manual reconciliation required",
		slog.String("investor", inv.InvestorID),
		slog.String("investor_account", inv.InvestorAccount),
		slog.String("pool", inv.PoolID),
		slog.String("principal", inv.Principal.String()),
		slog.Int64("fractional_units", inv.FractionalUnits),
		slog.String("deposit_reference", inv.DepositReference),
		slog.String("release_receipt", releaseReceipt),
		slog.Int64("contract_index", *inv.ContractIndex),
		slog.String("error", cause.Error()),
	)

	if auditErr := s.audit.Log(ctx, domain.EventInconsistency, map[string]any{
		"investor":          inv.InvestorID,
		"pool":              inv.PoolID,
		"principal":         inv.Principal.String(),
		"fractional_units":  inv.FractionalUnits,
		"deposit_reference": inv.DepositReference,
		"release_receipt":   releaseReceipt,
		"contract_index":    *inv.ContractIndex,
		"cause":             cause.Error(),
	}); auditErr != nil {
		s.logger.ErrorContext(ctx, "audit log failed for reconciliation event",
			slog.String("deposit_reference", inv.DepositReference),
			slog.String("error", auditErr.Error()),
		)
	}

	if s.alerts != nil {
		msg := fmt.Sprintf("deposit %s (investor %s, pool %s, principal %s) released on escrow but not persisted: %v",
			inv.DepositReference, inv.InvestorID, inv.PoolID, inv.Principal, cause)
		if alertErr := s.alerts.NotifyAll(ctx, "reconciliation required", msg); alertErr != nil {
			s.logger.ErrorContext(ctx, "operator alert failed",
				slog.String("deposit_reference", inv.DepositReference),
				slog.String("error", alertErr.Error()),
			)
		}
	}
}

func (s *InvestmentService) publish(ctx context.Context, channel string, detail map[string]any) {
	if s.bus == nil {
		return
	}
	payload, _ := json.Marshal(detail)
	if err := s.bus.Publish(ctx, channel, payload); err != nil {
		s.logger.WarnContext(ctx, "publish event failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}
