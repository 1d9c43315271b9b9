package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrPoolNotFound        = errors.New("pool not found")
	ErrPoolNotTokenized    = errors.New("pool has no escrow or fractional token reference")
	ErrTransactionNotFound = errors.New("transaction not found on ledger")
	ErrNotConfirmed        = errors.New("transaction not confirmed")
	ErrAssetMismatch       = errors.New("transfer does not involve expected asset")
	ErrTransferMismatch    = errors.New("transfer legs do not match expectations")
	ErrBelowMinimum        = errors.New("amount below minimum ticket")
	ErrAboveMaximum        = errors.New("amount above maximum ticket")
	ErrNotFractional       = errors.New("amount not a multiple of fraction size")
	ErrZeroAllocation      = errors.New("amount allocates zero fractional units")
	ErrCapacityExceeded    = errors.New("pool funding target exceeded")
	ErrAlreadyRecorded     = errors.New("deposit reference already recorded")
	ErrEscrowFailure       = errors.New("escrow call failed")
	ErrInconsistency       = errors.New("escrow committed but investment not persisted")
	ErrLockHeld            = errors.New("lock already held")
	ErrRateLimited         = errors.New("rate limited")
	ErrNonceUsed           = errors.New("nonce already used or expired")
)

// TicketError reports a min/max ticket violation together with the violated
// bound, so callers can correct the deposit amount and retry. It unwraps to
// ErrBelowMinimum or ErrAboveMaximum.
type TicketError struct {
	Amount decimal.Decimal
	Bound  decimal.Decimal
	Below  bool
}

func (e *TicketError) Error() string {
	if e.Below {
		return fmt.Sprintf("amount %s below minimum ticket %s", e.Amount, e.Bound)
	}
	return fmt.Sprintf("amount %s above maximum ticket %s", e.Amount, e.Bound)
}

func (e *TicketError) Unwrap() error {
	if e.Below {
		return ErrBelowMinimum
	}
	return ErrAboveMaximum
}

// FractionError reports a deposit that is not an integer multiple of the
// pool's fraction size. It unwraps to ErrNotFractional.
type FractionError struct {
	Amount       decimal.Decimal
	FractionSize decimal.Decimal
}

func (e *FractionError) Error() string {
	return fmt.Sprintf("amount %s is not a multiple of fraction size %s", e.Amount, e.FractionSize)
}

func (e *FractionError) Unwrap() error { return ErrNotFractional }

// CapacityError reports an investment that would push a pool past its funding
// target. It unwraps to ErrCapacityExceeded.
type CapacityError struct {
	Funded decimal.Decimal
	Amount decimal.Decimal
	Target decimal.Decimal
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("funded %s plus amount %s exceeds target %s", e.Funded, e.Amount, e.Target)
}

func (e *CapacityError) Unwrap() error { return ErrCapacityExceeded }
