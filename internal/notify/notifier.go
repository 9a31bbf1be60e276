// Package notify delivers operational alerts (oracle staleness, archive
// failures) to chat channels. Alerts are fanned out to every configured
// sender and can be filtered by event name.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Event names emitted by the API's background workers.
const (
	EventOracleStale     = "oracle_stale"
	EventOracleRecovered = "oracle_recovered"
	EventArchiveFailed   = "archive_failed"
)

// Severity controls how senders render an alert.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return "info"
	}
}

// Alert is a single notification.
type Alert struct {
	Event    string
	Severity Severity
	Title    string
	Message  string
}

// Sender is implemented by each notification channel.
type Sender interface {
	Send(ctx context.Context, a Alert) error
	Name() string
}

// Notifier dispatches alerts to a set of senders. When an event allow-list is
// configured, alerts for other events are dropped.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. An empty events slice allows every event.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether at least one sender is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.senders) > 0
}

// Notify delivers the alert to every sender. A failing sender does not stop
// delivery to the others; all failures are joined into the returned error.
func (n *Notifier) Notify(ctx context.Context, a Alert) error {
	if !n.Enabled() {
		return nil
	}
	if len(n.events) > 0 && !n.events[a.Event] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", a.Event))
		return nil
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, a); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", a.Event),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "alert sent",
			slog.String("sender", s.Name()),
			slog.String("event", a.Event),
		)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}
