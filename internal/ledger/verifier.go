package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielokoye/vestpool/internal/domain"
)

const (
	defaultRetries = 5
	defaultDelay   = 3 * time.Second
)

// Verifier resolves a transaction reference against the ledger mirror and
// extracts the debit/credit legs for an expected account pair and asset.
// It has no side effects and is safe to call repeatedly for the same
// reference.
type Verifier struct {
	mirror  domain.LedgerMirror
	retries int
	delay   time.Duration
	logger  *slog.Logger
}

// NewVerifier creates a Verifier polling the given mirror. retries and delay
// bound how long a not-yet-visible transaction is waited for; zero values
// fall back to 5 attempts at 3s apart.
func NewVerifier(mirror domain.LedgerMirror, retries int, delay time.Duration, logger *slog.Logger) *Verifier {
	if retries <= 0 {
		retries = defaultRetries
	}
	if delay <= 0 {
		delay = defaultDelay
	}
	return &Verifier{
		mirror:  mirror,
		retries: retries,
		delay:   delay,
		logger:  logger.With(slog.String("component", "ledger_verifier")),
	}
}

// Verify canonicalizes reference, polls the mirror until the transaction is
// visible (bounded by the configured retries), and checks that it moved
// exactly expectedUnits of tokenID from debitAccount to creditAccount. When
// expectedUnits is zero or negative the magnitude is not pinned in advance;
// the matched legs still must agree and their magnitude is reported back in
// the returned facts.
//
// Error taxonomy: ErrTransactionNotFound after exhausted retries,
// ErrNotConfirmed for any non-success result, ErrAssetMismatch when no leg
// concerns tokenID, ErrTransferMismatch when the legs or magnitudes differ
// from expectations.
func (v *Verifier) Verify(ctx context.Context, reference, debitAccount, creditAccount, tokenID string, expectedUnits int64) (domain.TransferFacts, error) {
	txID, err := CanonicalTxID(reference)
	if err != nil {
		return domain.TransferFacts{}, err
	}

	tx, err := v.poll(ctx, txID)
	if err != nil {
		return domain.TransferFacts{}, err
	}

	if tx.Result != domain.ResultSuccess {
		return domain.TransferFacts{}, fmt.Errorf("ledger: transaction %s result %q: %w",
			txID, tx.Result, domain.ErrNotConfirmed)
	}

	var legs []domain.TokenTransfer
	for _, t := range tx.TokenTransfers {
		if t.TokenID == tokenID {
			legs = append(legs, t)
		}
	}
	if len(legs) == 0 {
		return domain.TransferFacts{}, fmt.Errorf("ledger: transaction %s has no transfers of token %s: %w",
			txID, tokenID, domain.ErrAssetMismatch)
	}

	var debits, credits []domain.TokenTransfer
	for _, l := range legs {
		switch {
		case l.Account == debitAccount && l.Amount < 0:
			debits = append(debits, l)
		case l.Account == creditAccount && l.Amount > 0:
			credits = append(credits, l)
		}
	}
	if len(debits) != 1 || len(credits) != 1 {
		return domain.TransferFacts{}, fmt.Errorf("ledger: transaction %s: expected one debit on %s and one credit on %s, got %d/%d: %w",
			txID, debitAccount, creditAccount, len(debits), len(credits), domain.ErrTransferMismatch)
	}

	debited := -debits[0].Amount
	credited := credits[0].Amount
	if debited != credited {
		return domain.TransferFacts{}, fmt.Errorf("ledger: transaction %s: debit %d and credit %d disagree: %w",
			txID, debited, credited, domain.ErrTransferMismatch)
	}
	if expectedUnits > 0 && credited != expectedUnits {
		return domain.TransferFacts{}, fmt.Errorf("ledger: transaction %s: moved %d units, expected %d: %w",
			txID, credited, expectedUnits, domain.ErrTransferMismatch)
	}

	return domain.TransferFacts{
		TransactionID: txID,
		TokenID:       tokenID,
		DebitAccount:  debitAccount,
		CreditAccount: creditAccount,
		Units:         credited,
		ConsensusAt:   tx.ConsensusAt,
	}, nil
}

// poll queries the mirror up to retries times. Mirror records are eventually
// consistent, so not-found and transient errors are both swallowed between
// attempts; only the final attempt's absence surfaces as not found.
func (v *Verifier) poll(ctx context.Context, txID string) (*domain.LedgerTransaction, error) {
	for attempt := 1; attempt <= v.retries; attempt++ {
		tx, err := v.mirror.QueryTransaction(ctx, txID)
		if err == nil {
			return tx, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ledger: query %s: %w", txID, ctx.Err())
		}
		if !errors.Is(err, domain.ErrTransactionNotFound) {
			v.logger.WarnContext(ctx, "mirror query failed, retrying",
				slog.String("tx_id", txID),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
		}
		if attempt == v.retries {
			break
		}
		if err := sleep(ctx, v.delay); err != nil {
			return nil, fmt.Errorf("ledger: query %s: %w", txID, err)
		}
	}
	return nil, fmt.Errorf("ledger: transaction %s not visible after %d attempts: %w",
		txID, v.retries, domain.ErrTransactionNotFound)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
