package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielokoye/vestpool/internal/domain"
)

// SettlementRow describes one settled investment within a run, for the
// archived run report.
type SettlementRow struct {
	InvestmentID  string
	InvestorID    string
	PoolID        string
	ContractIndex int64
	YieldUnits    int64
	Receipt       string
	SettledAt     time.Time
}

// ReportArchiver persists a settlement run report to durable storage.
// Implemented by blob/s3.ReportArchiver. Archival is best-effort; a failure
// never affects the settlements themselves.
type ReportArchiver interface {
	ArchiveSettlementRun(ctx context.Context, runAt time.Time, rows []SettlementRow) (string, error)
}

// SettlementService pays out matured investments. Each investment settles
// independently: one failing payout is logged and skipped so the rest of the
// batch still completes, and the failed item is retried on the next run
// because it stays active.
type SettlementService struct {
	investments domain.InvestmentStore
	escrow      domain.Escrow
	audit       domain.AuditStore
	bus         domain.SignalBus
	archiver    ReportArchiver

	decimals int32

	logger *slog.Logger
}

// NewSettlementService creates a SettlementService. bus and archiver may be
// nil; event publication and report archival are then skipped.
func NewSettlementService(
	investments domain.InvestmentStore,
	escrow domain.Escrow,
	audit domain.AuditStore,
	bus domain.SignalBus,
	archiver ReportArchiver,
	decimals int32,
	logger *slog.Logger,
) *SettlementService {
	return &SettlementService{
		investments: investments,
		escrow:      escrow,
		audit:       audit,
		bus:         bus,
		archiver:    archiver,
		decimals:    decimals,
		logger:      logger.With(slog.String("component", "settlement_service")),
	}
}

// SettleMatured settles every active investment whose maturity has passed and
// returns the number settled. The returned error reports a failure to list
// candidates or a cancelled context; per-item failures only reduce the count.
func (s *SettlementService) SettleMatured(ctx context.Context) (int, error) {
	now := time.Now().UTC()

	due, err := s.investments.ListActiveMatured(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("settlement_service: list matured: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	s.logger.InfoContext(ctx, "settlement run started", slog.Int("due", len(due)))

	settled := 0
	rows := make([]SettlementRow, 0, len(due))
	for _, inv := range due {
		if err := ctx.Err(); err != nil {
			s.archiveRun(ctx, now, rows)
			return settled, fmt.Errorf("settlement_service: run interrupted: %w", err)
		}

		row, ok := s.settleOne(ctx, inv, now)
		if !ok {
			continue
		}
		settled++
		rows = append(rows, row)
	}

	s.archiveRun(ctx, now, rows)

	s.logger.InfoContext(ctx, "settlement run finished",
		slog.Int("due", len(due)),
		slog.Int("settled", settled),
	)
	return settled, nil
}

// settleOne pays out a single investment. It reports false when the item was
// skipped or failed; the investment then stays active for the next run.
func (s *SettlementService) settleOne(ctx context.Context, inv domain.Investment, now time.Time) (SettlementRow, bool) {
	if inv.ContractIndex == nil {
		// Recorded before escrow indexing existed, or the index was lost.
		// There is nothing to address the payout at; needs manual repair.
		s.logger.WarnContext(ctx, "matured investment has no contract index, skipping",
			slog.String("investment", inv.ID),
			slog.String("pool", inv.PoolID),
		)
		return SettlementRow{}, false
	}

	// The payout comes from the yield snapshot taken when the investment was
	// recorded, not from the pool's current configuration.
	yieldUnits := inv.ExpectedYield.Shift(s.decimals).Round(0).IntPart()

	receipt, err := s.escrow.Settle(ctx, inv.InvestorAccount, *inv.ContractIndex, yieldUnits)
	if err != nil {
		s.logger.ErrorContext(ctx, "escrow settle failed",
			slog.String("investment", inv.ID),
			slog.String("pool", inv.PoolID),
			slog.Int64("contract_index", *inv.ContractIndex),
			slog.String("error", err.Error()),
		)
		return SettlementRow{}, false
	}

	if err := s.investments.MarkCompleted(ctx, inv.ID, receipt); err != nil {
		// ErrNotFound here means a concurrent run already completed it; the
		// escrow call is idempotent on its side, so nothing double-paid.
		s.logger.WarnContext(ctx, "mark completed failed after payout",
			slog.String("investment", inv.ID),
			slog.String("receipt", receipt),
			slog.String("error", err.Error()),
		)
		return SettlementRow{}, false
	}

	detail := map[string]any{
		"investment_id":  inv.ID,
		"investor_id":    inv.InvestorID,
		"pool_id":        inv.PoolID,
		"contract_index": *inv.ContractIndex,
		"yield_units":    yieldUnits,
		"receipt":        receipt,
	}
	if auditErr := s.audit.Log(ctx, domain.EventYieldPaid, detail); auditErr != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", domain.EventYieldPaid),
			slog.String("error", auditErr.Error()),
		)
	}
	s.publish(ctx, domain.ChannelSettlements, detail)

	s.logger.InfoContext(ctx, "investment settled",
		slog.String("investment", inv.ID),
		slog.String("pool", inv.PoolID),
		slog.Int64("yield_units", yieldUnits),
	)

	return SettlementRow{
		InvestmentID:  inv.ID,
		InvestorID:    inv.InvestorID,
		PoolID:        inv.PoolID,
		ContractIndex: *inv.ContractIndex,
		YieldUnits:    yieldUnits,
		Receipt:       receipt,
		SettledAt:     now,
	}, true
}

func (s *SettlementService) archiveRun(ctx context.Context, runAt time.Time, rows []SettlementRow) {
	if s.archiver == nil || len(rows) == 0 {
		return
	}
	key, err := s.archiver.ArchiveSettlementRun(ctx, runAt, rows)
	if err != nil {
		s.logger.WarnContext(ctx, "settlement report archive failed",
			slog.Int("rows", len(rows)),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.InfoContext(ctx, "settlement report archived",
		slog.Int("rows", len(rows)),
		slog.String("key", key),
	)
}

func (s *SettlementService) publish(ctx context.Context, channel string, detail map[string]any) {
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
