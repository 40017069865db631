// Package notify delivers operator notifications (settled predictions,
// predictions awaiting resolution) to Telegram and Discord. Delivery is
// best-effort; callers log failures and move on.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Sender is a single delivery channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans a notification out to every configured Sender, optionally
// filtered to a subscribed set of event types.
type Notifier struct {
	senders    []Sender
	subscribed map[string]struct{}
	logger     *slog.Logger
}

// NewNotifier builds a Notifier over the given senders. When events is
// non-empty, Notify forwards only those event types; an empty list
// subscribes to everything.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	n := &Notifier{
		senders: senders,
		logger:  logger.With(slog.String("component", "notifier")),
	}
	if len(events) > 0 {
		n.subscribed = make(map[string]struct{}, len(events))
		for _, e := range events {
			n.subscribed[strings.TrimSpace(e)] = struct{}{}
		}
	}
	return n
}

// Notify delivers to all senders when the event type is subscribed.
// Unsubscribed events are dropped silently.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if n.subscribed != nil {
		if _, ok := n.subscribed[event]; !ok {
			return nil
		}
	}
	return n.dispatch(ctx, title, message)
}

// NotifyAll delivers to all senders regardless of event subscriptions.
func (n *Notifier) NotifyAll(ctx context.Context, title, message string) error {
	return n.dispatch(ctx, title, message)
}

func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.WarnContext(ctx, "notification delivery failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
