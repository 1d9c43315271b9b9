package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/danielokoye/vestpool/internal/domain"
)

const settlementLockKey = "settlement:run"

// SettlementRunner drives periodic settlement runs. A distributed lock keeps
// concurrent deployments from running the same batch; the loser of the lock
// race simply waits for its next tick.
type SettlementRunner struct {
	settlements *SettlementService
	locks       domain.LockManager
	interval    time.Duration
	lockTTL     time.Duration
	logger      *slog.Logger
}

// NewSettlementRunner creates a SettlementRunner. locks may be nil for
// single-instance deployments; each tick then runs unconditionally.
func NewSettlementRunner(settlements *SettlementService, locks domain.LockManager, interval time.Duration, logger *slog.Logger) *SettlementRunner {
	if interval <= 0 {
		interval = time.Hour
	}
	return &SettlementRunner{
		settlements: settlements,
		locks:       locks,
		interval:    interval,
		lockTTL:     interval,
		logger:      logger.With(slog.String("component", "settlement_runner")),
	}
}

// Run ticks until ctx is cancelled, settling matured investments on each
// tick. The first run fires immediately.
func (r *SettlementRunner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.InfoContext(ctx, "settlement runner started", slog.Duration("interval", r.interval))

	r.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "settlement runner stopped")
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *SettlementRunner) tick(ctx context.Context) {
	if r.locks != nil {
		unlock, err := r.locks.Acquire(ctx, settlementLockKey, r.lockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				r.logger.InfoContext(ctx, "settlement run held elsewhere, skipping tick")
			} else {
				r.logger.WarnContext(ctx, "settlement lock acquire failed",
					slog.String("error", err.Error()),
				)
			}
			return
		}
		defer unlock()
	}

	settled, err := r.settlements.SettleMatured(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "settlement run failed",
			slog.Int("settled", settled),
			slog.String("error", err.Error()),
		)
	}
}
