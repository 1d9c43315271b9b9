package domain

import (
	"context"
	"time"
)

// NonceStore holds one-time values with a TTL, backing replay protection on
// mutating API requests. Entries expire on their own.
type NonceStore interface {
	// Seen marks nonce as used for ttl and reports whether it had already
	// been used within a prior call's ttl.
	Seen(ctx context.Context, nonce string, ttl time.Duration) (bool, error)
}

// SignalBus is a lightweight publish/subscribe channel for domain events
// (investment recorded, yield paid). Delivery is best-effort; the audit log
// is the durable record.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// LockManager provides distributed locks. Acquire returns an unlock function
// on success or ErrLockHeld when another holder owns the lock.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// RateLimiter limits request rates per key.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Event channel names published on the SignalBus.
const (
	ChannelInvestments = "investments"
	ChannelSettlements = "settlements"
)

// Audit event names. Payload fields are listed in the audit log contract.
const (
	EventInvestmentRecorded = "INVESTMENT_RECORDED"
	EventYieldPaid          = "YIELD_PAID"
	EventInconsistency      = "RECONCILIATION_REQUIRED"
)

// EventSettlementRun is the operator-notification event for a completed
// settlement pass. It is never written to the audit log; individual payouts
// are audited as EventYieldPaid.
const EventSettlementRun = "SETTLEMENT_RUN"
