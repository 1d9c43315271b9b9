package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielokoye/vestpool/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubSender struct {
	name   string
	err    error
	titles []string
}

func (s *stubSender) Send(_ context.Context, title, _ string) error {
	if s.err != nil {
		return s.err
	}
	s.titles = append(s.titles, title)
	return nil
}

func (s *stubSender) Name() string { return s.name }

func TestNotifier_FiltersByDomainEvent(t *testing.T) {
	ctx := context.Background()
	sender := &stubSender{name: "telegram"}
	n := NewNotifier([]Sender{sender},
		[]string{domain.EventYieldPaid, domain.EventSettlementRun}, testLogger())

	require.NoError(t, n.Notify(ctx, domain.EventYieldPaid, "payout", "paid"))
	require.NoError(t, n.Notify(ctx, domain.EventSettlementRun, "run", "done"))
	require.NoError(t, n.Notify(ctx, domain.EventInvestmentRecorded, "recorded", "skip"))

	assert.Equal(t, []string{"payout", "run"}, sender.titles)
}

func TestNotifier_FilterIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	sender := &stubSender{name: "discord"}

	// Config files spell events in lower case; the recorder emits the
	// upper-case domain constants. Both must hit the same filter entry.
	n := NewNotifier([]Sender{sender}, []string{"yield_paid"}, testLogger())

	require.NoError(t, n.Notify(ctx, domain.EventYieldPaid, "payout", "paid"))
	assert.Equal(t, []string{"payout"}, sender.titles)
}

func TestNotifier_NotifyAllBypassesFilter(t *testing.T) {
	ctx := context.Background()
	sender := &stubSender{name: "telegram"}
	n := NewNotifier([]Sender{sender}, []string{domain.EventYieldPaid}, testLogger())

	require.NoError(t, n.NotifyAll(ctx, "reconciliation required", "pool-1"))
	assert.Equal(t, []string{"reconciliation required"}, sender.titles)
}

func TestNotifier_FanOutContinuesPastFailingSender(t *testing.T) {
	ctx := context.Background()
	broken := &stubSender{name: "telegram", err: errors.New("api down")}
	healthy := &stubSender{name: "discord"}
	n := NewNotifier([]Sender{broken, healthy}, nil, testLogger())

	err := n.Notify(ctx, domain.EventInconsistency, "escalation", "check pool-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram")

	// The healthy channel still got the alert.
	assert.Equal(t, []string{"escalation"}, healthy.titles)
}

func TestNotifier_EmptyAllowListAllowsEverything(t *testing.T) {
	ctx := context.Background()
	sender := &stubSender{name: "discord"}
	n := NewNotifier([]Sender{sender}, nil, testLogger())

	require.NoError(t, n.Notify(ctx, "anything", "title", "body"))
	assert.Equal(t, []string{"title"}, sender.titles)
}
