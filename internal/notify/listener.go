package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/protocolsim/idlarena/internal/domain"
)

// Listener consumes simulation signals from the bus and turns them into
// operator notifications. It runs until the context is cancelled or the
// subscription closes.
type Listener struct {
	bus      domain.SignalBus
	notifier *Notifier
	logger   *slog.Logger
}

// NewListener creates a Listener that forwards signals matching the given
// notifier's event filter.
func NewListener(bus domain.SignalBus, notifier *Notifier, logger *slog.Logger) *Listener {
	return &Listener{
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "notify_listener")),
	}
}

// Run subscribes to the given channel pattern and dispatches until the
// context is cancelled. Notification failures are logged and do not stop
// the loop.
func (l *Listener) Run(ctx context.Context, pattern string) error {
	signals, stop, err := l.bus.Subscribe(ctx, pattern)
	if err != nil {
		return fmt.Errorf("notify: subscribe %s: %w", pattern, err)
	}
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig, ok := <-signals:
			if !ok {
				return nil
			}
			title, message := format(sig)
			if err := l.notifier.Notify(ctx, sig.Type, title, message); err != nil {
				l.logger.WarnContext(ctx, "notification failed",
					slog.String("type", sig.Type),
					slog.String("run_id", sig.RunID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// format renders a signal as a short title plus body. Payloads are included
// as compact JSON so the message survives any channel's markdown rules.
func format(sig domain.Signal) (title, message string) {
	switch sig.Type {
	case domain.SignalRoundComplete:
		title = fmt.Sprintf("Round %d complete", sig.Round)
	case domain.SignalMarketResolved:
		title = "Market resolved"
	case domain.SignalRunComplete:
		title = "Run complete"
	case domain.SignalError:
		title = "Run failed"
	default:
		title = sig.Type
	}

	message = fmt.Sprintf("run %s", sig.RunID)
	if sig.Payload != nil {
		if body, err := json.Marshal(sig.Payload); err == nil && len(body) > 0 && string(body) != "null" {
			message += "\n" + string(body)
		}
	}
	return title, message
}
