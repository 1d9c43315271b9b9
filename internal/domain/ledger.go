package domain

import (
	"context"
	"time"
)

// Ledger transaction results as reported by the mirror. Anything other than
// ResultSuccess is treated as not confirmed.
const ResultSuccess = "SUCCESS"

// TokenTransfer is one leg of a token movement inside a ledger transaction.
// Amount is signed in the token's smallest unit: negative legs debit the
// account, positive legs credit it.
type TokenTransfer struct {
	TokenID string
	Account string
	Amount  int64
}

// LedgerTransaction is the mirror's view of a previously submitted transfer.
type LedgerTransaction struct {
	TransactionID  string
	Result         string
	ConsensusAt    time.Time
	TokenTransfers []TokenTransfer
}

// LedgerMirror is the eventually-consistent read side of the external ledger.
// QueryTransaction returns ErrTransactionNotFound while the transaction is
// not yet (or never) visible; other errors are transient and safe to retry.
type LedgerMirror interface {
	QueryTransaction(ctx context.Context, txID string) (*LedgerTransaction, error)
}

// TransferFacts is the verified outcome of a deposit: the matched debit and
// credit legs for the expected account pair and asset. It is produced once
// per verification call and discarded.
type TransferFacts struct {
	TransactionID string
	TokenID       string
	DebitAccount  string
	CreditAccount string
	Units         int64 // magnitude moved; debit and credit legs agree
	ConsensusAt   time.Time
}

// Escrow is the external custody capability holding pooled funds. All calls
// are idempotent on the escrow side, keyed by its own contract-index
// bookkeeping, so a failed call may be retried with the same arguments.
type Escrow interface {
	// ReleaseFraction mints/releases fractional tokens to the investor.
	ReleaseFraction(ctx context.Context, investorAccount, tokenID string, units int64) (receipt string, err error)

	// RecordInvestment registers the investment on the escrow ledger and
	// returns the contract index used to address it at settlement.
	RecordInvestment(ctx context.Context, investorAccount, escrowAccount string, principalUnits int64) (receipt string, contractIndex int64, err error)

	// Settle pays out yield for the investment at the given contract index.
	Settle(ctx context.Context, investorAccount string, contractIndex int64, yieldUnits int64) (receipt string, err error)
}
