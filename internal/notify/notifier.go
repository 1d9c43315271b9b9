// Package notify delivers operator alerts for the investment ledger:
// reconciliation escalations from the investment recorder, settlement run
// summaries, and recorded-investment events. Alerts fan out to every
// configured channel (Telegram, Discord); a failing channel never blocks the
// others.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Sender is one delivery channel for operator alerts.
type Sender interface {
	// Send delivers an alert with the given title and body.
	Send(ctx context.Context, title, message string) error
	// Name identifies the channel in logs (e.g. "telegram").
	Name() string
}

// Notifier fans alerts out to its senders. Routine events pass through an
// allow-list keyed by the domain event vocabulary (domain.EventYieldPaid,
// domain.EventSettlementRun, ...); NotifyAll skips the list and is reserved
// for escalations that must always reach an operator, such as
// domain.EventInconsistency paths.
type Notifier struct {
	senders []Sender
	allowed map[string]struct{}
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders. events is
// the allow-list consulted by Notify; names are matched case-insensitively
// against the domain event constants. An empty list allows every event.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]struct{}, len(events))
	for _, e := range events {
		allowed[normalizeEvent(e)] = struct{}{}
	}
	return &Notifier{
		senders: senders,
		allowed: allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// normalizeEvent folds an event name to the canonical uppercase form used by
// the domain event constants, so config files may use either case.
func normalizeEvent(event string) string {
	return strings.ToUpper(strings.TrimSpace(event))
}

// Notify delivers an alert if the event is on the allow-list.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.allowed) > 0 {
		if _, ok := n.allowed[normalizeEvent(event)]; !ok {
			n.logger.DebugContext(ctx, "alert suppressed by event filter",
				slog.String("event", event),
			)
			return nil
		}
	}
	return n.fanOut(ctx, title, message)
}

// NotifyAll delivers an alert to every sender regardless of the event
// filter. Used for reconciliation escalations.
func (n *Notifier) NotifyAll(ctx context.Context, title, message string) error {
	return n.fanOut(ctx, title, message)
}

// fanOut sends to every channel and joins the failures. A sender error is
// logged and does not stop delivery to the remaining channels.
func (n *Notifier) fanOut(ctx context.Context, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "alert delivery failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "alert delivered",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %w", errors.Join(errs...))
	}
	return nil
}
