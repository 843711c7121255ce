package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/protocolsim/idlarena/internal/domain"
	"github.com/protocolsim/idlarena/internal/economics"
)

// Decider produces one action for one agent from the shared round context.
// Implementations must never fail the round: on any internal failure they
// return a WAIT action with a diagnostic rationale and coerced=true.
type Decider interface {
	Decide(ctx context.Context, agent *domain.AgentState, sc domain.SimulationContext) (act domain.Action, coerced bool)
}

// Submitter forwards arbiter-approved actions to an external ledger. The
// arbiter stays the source of truth; submission failures are logged, never
// fatal.
type Submitter interface {
	Submit(ctx context.Context, agent string, act domain.Action) error
}

// Recorder receives each completed round and the final result. Persistence
// failures must not lose in-memory results, so implementations log and
// swallow their own errors.
type Recorder interface {
	RecordRound(ctx context.Context, runID string, rr domain.RoundResult)
	RecordFinal(ctx context.Context, result domain.SimulationResult)
}

// OrchestratorConfig sets the shape of a run.
type OrchestratorConfig struct {
	RunID            string
	Seed             int64
	Rounds           int
	ResolveEvery     int           // force-resolve one market every N rounds
	RoundDelay       time.Duration // wall-clock pause between rounds
	AgentDelay       time.Duration // inter-agent throttle on decision calls
	InitialMarkets   int
	MarketHorizon    time.Duration // resolution horizon for seeded markets
	MaxPerturbation  domain.Amount
	ResolutionPolicy ResolutionPolicy
}

// Orchestrator drives the round loop. Agents are processed strictly
// sequentially within a round so market-pool mutations stay linearizable
// without locks; the only suspension point is the decision call.
type Orchestrator struct {
	cfg       OrchestratorConfig
	state     *State
	arbiter   *Arbiter
	settler   *Settler
	decider   Decider
	submitter Submitter
	recorder  Recorder
	stats     map[string]*AgentStats
	pauseReq  atomic.Bool
	logger    *slog.Logger
}

// NewOrchestrator wires a run. submitter and recorder may be nil.
func NewOrchestrator(cfg OrchestratorConfig, st *State, arbiter *Arbiter, settler *Settler, decider Decider, submitter Submitter, recorder Recorder, logger *slog.Logger) *Orchestrator {
	stats := make(map[string]*AgentStats, len(st.Agents()))
	for _, a := range st.Agents() {
		stats[a.Name] = &AgentStats{}
	}
	return &Orchestrator{
		cfg:       cfg,
		state:     st,
		arbiter:   arbiter,
		settler:   settler,
		decider:   decider,
		submitter: submitter,
		recorder:  recorder,
		stats:     stats,
		logger:    logger.With(slog.String("component", "orchestrator"), slog.String("run_id", cfg.RunID)),
	}
}

// Run executes the full simulation and returns the aggregated result. The
// returned result carries every round completed so far even when Run fails,
// so callers can still persist partial output.
func (o *Orchestrator) Run(ctx context.Context) (*domain.SimulationResult, error) {
	result := &domain.SimulationResult{
		RunID:     o.cfg.RunID,
		Seed:      o.cfg.Seed,
		StartedAt: time.Now().UTC(),
	}
	o.logger.Info("simulation starting",
		slog.Int("rounds", o.cfg.Rounds),
		slog.Int("agents", len(o.state.Agents())),
		slog.Int64("seed", o.cfg.Seed),
	)

	for i := 0; i < o.cfg.InitialMarkets; i++ {
		m := o.settler.SeedMarket(o.state, o.cfg.MarketHorizon)
		o.logger.Debug("seeded market", slog.String("market_id", m.ID), slog.String("metric", string(m.Metric)))
	}

	for round := 1; round <= o.cfg.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			o.finalize(result)
			return result, fmt.Errorf("orchestrator: round %d: %w", round, err)
		}
		rr, err := o.runRound(ctx)
		if err != nil {
			o.finalize(result)
			return result, fmt.Errorf("orchestrator: round %d: %w", round, err)
		}
		result.Rounds = append(result.Rounds, rr)
		if o.recorder != nil {
			o.recorder.RecordRound(ctx, o.cfg.RunID, rr)
		}
		if o.cfg.RoundDelay > 0 && round < o.cfg.Rounds {
			select {
			case <-ctx.Done():
			case <-time.After(o.cfg.RoundDelay):
			}
		}
	}

	o.finalize(result)
	if o.recorder != nil {
		o.recorder.RecordFinal(ctx, *result)
	}
	if len(result.Summary) > 0 {
		o.logger.Info("simulation complete",
			slog.String("winner", result.Summary[0].Agent),
			slog.String("winner_pnl", fmt.Sprintf("%d", result.Summary[0].TotalPnL)),
		)
	}
	return result, nil
}

func (o *Orchestrator) finalize(result *domain.SimulationResult) {
	result.FinishedAt = time.Now().UTC()
	result.Summary = BuildSummary(o.state, o.stats)
	result.Totals = *o.state.Totals()
}

// RequestPause toggles the protocol pause flag. The change takes effect at
// the next round boundary; WAIT and ANALYZE remain allowed while paused.
// Safe to call from another goroutine.
func (o *Orchestrator) RequestPause(paused bool) {
	o.pauseReq.Store(paused)
}

// Paused reports the currently requested pause state.
func (o *Orchestrator) Paused() bool {
	return o.pauseReq.Load()
}

// runRound advances the clock, snapshots the world once, and walks agents in
// declaration order. All agents decide against the same snapshot; no agent
// sees another's in-round action before deciding.
func (o *Orchestrator) runRound(ctx context.Context) (domain.RoundResult, error) {
	o.state.AdvanceRound()
	o.state.Totals().Paused = o.pauseReq.Load()
	round := o.state.Round()
	sc := o.state.Snapshot(o.cfg.Rounds)
	rr := domain.RoundResult{Round: round, Timestamp: o.state.Now()}

	for _, agent := range o.state.Agents() {
		started := time.Now()
		act, coerced := o.decider.Decide(ctx, agent, sc)
		latency := time.Since(started)

		err := o.arbiter.Apply(o.state, agent, act)
		if err != nil && !domain.IsValidationError(err) {
			return rr, fmt.Errorf("agent %s action %s: %w", agent.Name, act.Kind, err)
		}

		rec := domain.ActionRecord{
			Agent:     agent.Name,
			Action:    act,
			Success:   err == nil,
			Coerced:   coerced,
			LatencyMS: latency.Milliseconds(),
		}
		if err != nil {
			rec.Error = err.Error()
			o.stats[agent.Name].FailedActions++
			o.logger.Debug("action rejected",
				slog.Int("round", round),
				slog.String("agent", agent.Name),
				slog.String("action", string(act.Kind)),
				slog.String("error", err.Error()),
			)
		} else {
			o.observe(agent.Name, act)
			if o.submitter != nil {
				if subErr := o.submitter.Submit(ctx, agent.Name, act); subErr != nil {
					o.logger.Warn("ledger submission failed",
						slog.String("agent", agent.Name),
						slog.String("error", subErr.Error()),
					)
				}
			}
		}
		rr.Actions = append(rr.Actions, rec)

		if o.cfg.AgentDelay > 0 {
			select {
			case <-ctx.Done():
				return rr, ctx.Err()
			case <-time.After(o.cfg.AgentDelay):
			}
		}
	}

	if err := PerturbPools(o.state, o.cfg.MaxPerturbation); err != nil {
		return rr, err
	}

	if o.cfg.ResolveEvery > 0 && round%o.cfg.ResolveEvery == 0 {
		rec, err := o.settler.ResolveOldest(o.state)
		if err != nil {
			return rr, err
		}
		if rec != nil {
			rr.Resolutions = append(rr.Resolutions, *rec)
			for _, w := range rec.Winners {
				o.stats[w].BetsWon++
			}
			o.logger.Info("market resolved",
				slog.Int("round", round),
				slog.String("market_id", rec.MarketID),
				slog.String("outcome", string(rec.Outcome)),
				slog.Int("winners", rec.WinnersPaid),
				slog.Int("losers", rec.LosersSwept),
			)
			o.settler.SeedMarket(o.state, o.cfg.MarketHorizon)
		}
	}

	if err := o.awardBadges(); err != nil {
		return rr, err
	}

	for _, m := range o.state.UnresolvedMarkets() {
		rr.Markets = append(rr.Markets, *m)
	}
	rr.Leaderboard = o.state.Leaderboard()
	return rr, nil
}

// observe updates per-agent counters after a committed action.
func (o *Orchestrator) observe(name string, act domain.Action) {
	s := o.stats[name]
	switch act.Kind {
	case domain.ActionPlaceBet:
		s.BetsPlaced++
		s.BetAmount += act.Amount
	case domain.ActionClaimWinnings:
		s.BetsWon++
	}
}

// awardBadges promotes agents whose cumulative bet volume crossed a tier
// threshold. A new tier replaces the prior grant in the ve supply.
func (o *Orchestrator) awardBadges() error {
	totals := o.state.Totals()
	for _, agent := range o.state.Agents() {
		tier, grant := economics.BadgeForVolume(agent.BetVolume)
		if tier <= agent.Badge {
			continue
		}
		prior := economics.GrantForBadge(agent.Badge)
		supply, err := economics.Sub(uint64(totals.TotalVeSupply), uint64(prior))
		if err != nil {
			return err
		}
		supply, err = economics.Add(supply, uint64(grant))
		if err != nil {
			return err
		}
		totals.TotalVeSupply = domain.Amount(supply)
		agent.Badge = tier
		o.logger.Info("badge awarded",
			slog.String("agent", agent.Name),
			slog.String("badge", tier.String()),
		)
	}
	return nil
}
