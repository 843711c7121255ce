package decision

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/protocolsim/idlarena/internal/domain"
)

// AdapterConfig bounds the external call.
type AdapterConfig struct {
	Timeout     time.Duration // per-attempt deadline
	MaxRetries  int           // attempts after the first
	BaseBackoff time.Duration // doubles per retry
}

// DefaultAdapterConfig matches the standard few-second envelope.
func DefaultAdapterConfig() AdapterConfig {
	return AdapterConfig{
		Timeout:     8 * time.Second,
		MaxRetries:  3,
		BaseBackoff: 500 * time.Millisecond,
	}
}

// Adapter wraps a generation backend into the engine's Decider contract:
// one call per agent per round, bounded timeout, a small retry budget with
// doubling backoff, and a guaranteed WAIT fallback. A single agent's
// backend failure never aborts the round for the others.
type Adapter struct {
	client  Client
	cfg     AdapterConfig
	limiter domain.RateLimiter
	logger  *slog.Logger
}

// NewAdapter wires an adapter; limiter may be nil.
func NewAdapter(client Client, cfg AdapterConfig, limiter domain.RateLimiter, logger *slog.Logger) *Adapter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 500 * time.Millisecond
	}
	return &Adapter{
		client:  client,
		cfg:     cfg,
		limiter: limiter,
		logger:  logger.With(slog.String("component", "decision")),
	}
}

// Decide asks the backend for one action. On transport failure, timeout, or
// a malformed or schema-invalid response it retries with doubling backoff;
// once the budget is exhausted it returns WAIT with the last failure as the
// rationale and coerced=true.
func (a *Adapter) Decide(ctx context.Context, agent *domain.AgentState, sc domain.SimulationContext) (domain.Action, bool) {
	prompt, err := BuildPrompt(agent, sc)
	if err != nil {
		return domain.WaitAction("prompt build failed: " + err.Error()), true
	}

	var lastErr error
	backoff := a.cfg.BaseBackoff
	for attempt := 0; attempt <= a.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return domain.WaitAction("cancelled: " + ctx.Err().Error()), true
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		act, err := a.attempt(ctx, agent.Name, prompt)
		if err == nil {
			return act, false
		}
		lastErr = err
		a.logger.Warn("decision attempt failed",
			slog.String("agent", agent.Name),
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()),
		)
		if ctx.Err() != nil {
			break
		}
	}
	return domain.WaitAction(fmt.Sprintf("decision unavailable: %v", lastErr)), true
}

func (a *Adapter) attempt(ctx context.Context, agent string, prompt Prompt) (domain.Action, error) {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx, "decision:"+a.client.Provider()); err != nil {
			return domain.Action{}, fmt.Errorf("decision: rate limit: %w", err)
		}
	}
	callCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	raw, err := a.client.Generate(callCtx, prompt)
	if err != nil {
		return domain.Action{}, err
	}
	act, err := ParseAction(raw)
	if err != nil {
		return domain.Action{}, err
	}
	a.logger.Debug("decision accepted",
		slog.String("agent", agent),
		slog.String("action", string(act.Kind)),
		slog.String("provider", a.client.Provider()),
	)
	return act, nil
}
