package ledger

import (
	"context"
	"log/slog"

	"github.com/protocolsim/idlarena/internal/domain"
)

// Simulated is the default submission backend. The arbiter already applied
// the action; there is no external ledger, so Submit only logs.
type Simulated struct {
	logger *slog.Logger
}

// NewSimulated creates the no-op backend.
func NewSimulated(logger *slog.Logger) *Simulated {
	return &Simulated{logger: logger.With(slog.String("component", "ledger"))}
}

// Submit records the approved action at debug level and returns nil.
func (s *Simulated) Submit(ctx context.Context, agent string, act domain.Action) error {
	s.logger.DebugContext(ctx, "action accepted",
		slog.String("agent", agent),
		slog.String("action", string(act.Kind)),
	)
	return nil
}
