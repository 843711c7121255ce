package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/protocolsim/idlarena/internal/decision"
	"github.com/protocolsim/idlarena/internal/domain"
	"github.com/protocolsim/idlarena/internal/economics"
	"github.com/protocolsim/idlarena/internal/engine"
	"github.com/protocolsim/idlarena/internal/ledger"
	"github.com/protocolsim/idlarena/internal/notify"
	"github.com/protocolsim/idlarena/internal/server"
	"github.com/protocolsim/idlarena/internal/server/handler"
	"github.com/protocolsim/idlarena/internal/server/middleware"
	"github.com/protocolsim/idlarena/internal/server/ws"
)

// runLockKey is the lock guarding against two concurrent simulations writing
// to the same stores.
const runLockKey = "active_run"

// SimMode executes one full simulation run and exits.
func (a *App) SimMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting sim mode")

	simCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(simCtx)
	a.startListener(gctx, g, deps)
	g.Go(func() error {
		// Completion stops the listener too.
		defer cancel()
		_, err := a.runSimulation(gctx, deps, nil)
		return err
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() == nil {
		return nil
	}
	return err
}

// ReplayMode re-executes a recorded run under the same seed and verifies the
// engine reproduces the recorded outcome exactly.
func (a *App) ReplayMode(ctx context.Context, deps *Dependencies) error {
	runID := a.cfg.Simulation.ReplayRunID
	if runID == "" {
		return fmt.Errorf("app: replay mode requires simulation.replay_run_id")
	}
	a.logger.InfoContext(ctx, "starting replay mode", slog.String("run_id", runID))

	rec := newRunRecorder(a.cfg.Simulation.RunsDir, deps, a.logger)
	recorded, err := rec.loadResult(ctx, runID, deps.BlobReader)
	if err != nil {
		return fmt.Errorf("app: load recorded run: %w", err)
	}
	if len(recorded.Rounds) == 0 {
		return fmt.Errorf("app: recorded run %s has no rounds", runID)
	}

	// The simulated clock advances a fixed step per round, so the original
	// start is recoverable from the first round's timestamp.
	step := time.Duration(a.cfg.Simulation.SecondsPerRound) * time.Second
	start := recorded.Rounds[0].Timestamp.Add(-step)

	decider := newReplayDecider(recorded.Rounds)
	orch, err := a.buildOrchestrator(orchestratorParams{
		runID:   recorded.RunID + "-replay",
		seed:    recorded.Seed,
		start:   start,
		rounds:  len(recorded.Rounds),
		decider: decider,
		// Replays are verification only: no recorder, no ledger.
		noDelays: true,
	})
	if err != nil {
		return err
	}

	replayed, err := orch.Run(ctx)
	if err != nil {
		return fmt.Errorf("app: replay run: %w", err)
	}

	if err := compareOutcomes(recorded, *replayed); err != nil {
		return fmt.Errorf("app: replay diverged: %w", err)
	}
	a.logger.InfoContext(ctx, "replay verified",
		slog.String("run_id", runID),
		slog.Int("rounds", len(replayed.Rounds)),
	)
	return nil
}

// ServerMode serves the read API and live feed without driving a simulation.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")
	if deps.Runs == nil || deps.Rounds == nil {
		return fmt.Errorf("app: server mode requires postgres to be enabled")
	}

	g, gctx := errgroup.WithContext(ctx)
	a.startListener(gctx, g, deps)
	a.startHTTPServer(gctx, g, deps, nil)

	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() == nil {
		return nil
	}
	return err
}

// FullMode runs the API server and a simulation side by side. The server
// outlives the run so dashboards can keep reading the finished results.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, gctx := errgroup.WithContext(ctx)
	a.startListener(gctx, g, deps)

	live := &liveRun{}
	a.startHTTPServer(gctx, g, deps, live)

	g.Go(func() error {
		// A failed run is already recorded; keep serving results.
		if _, err := a.runSimulation(gctx, deps, live); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.ErrorContext(gctx, "simulation failed", slog.String("error", err.Error()))
		}
		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() == nil {
		return nil
	}
	return err
}

// ── simulation plumbing ─────────────────────────────────────────────────────

// liveRun exposes the running orchestrator to the status and admin handlers.
// The pointer is set once, before the HTTP server accepts traffic.
type liveRun struct {
	runID string
	orch  *engine.Orchestrator
}

func (l *liveRun) CurrentRunID() string { return l.runID }

func (l *liveRun) Paused() bool {
	if l.orch == nil {
		return false
	}
	return l.orch.Paused()
}

func (l *liveRun) RequestPause(paused bool) {
	if l.orch != nil {
		l.orch.RequestPause(paused)
	}
}

// runSimulation drives one run end to end: lock, run record, orchestrator,
// and final status bookkeeping.
func (a *App) runSimulation(ctx context.Context, deps *Dependencies, live *liveRun) (*domain.SimulationResult, error) {
	runID := uuid.NewString()
	seed := a.cfg.Simulation.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	if deps.LockManager != nil {
		unlock, err := deps.LockManager.Acquire(ctx, runLockKey, a.runLockTTL())
		if err != nil {
			return nil, fmt.Errorf("app: acquire run lock: %w", err)
		}
		defer unlock()
	}

	recorder := newRunRecorder(a.cfg.Simulation.RunsDir, deps, a.logger)
	decider, err := a.buildDecider(seed, deps)
	if err != nil {
		return nil, err
	}
	submitter, err := a.buildSubmitter()
	if err != nil {
		return nil, err
	}

	orch, err := a.buildOrchestrator(orchestratorParams{
		runID:     runID,
		seed:      seed,
		start:     time.Now().UTC().Truncate(time.Second),
		rounds:    a.cfg.Simulation.Rounds,
		decider:   decider,
		submitter: submitter,
		recorder:  recorder,
	})
	if err != nil {
		return nil, err
	}
	if live != nil {
		live.runID = runID
		live.orch = orch
	}

	startedAt := time.Now().UTC()
	if deps.Runs != nil {
		runRec := domain.RunRecord{
			ID:        runID,
			Seed:      seed,
			Rounds:    a.cfg.Simulation.Rounds,
			Agents:    len(a.cfg.Agents),
			Status:    domain.RunStatusRunning,
			StartedAt: startedAt,
		}
		if err := deps.Runs.Create(ctx, runRec); err != nil {
			a.logger.WarnContext(ctx, "run record create failed",
				slog.String("run_id", runID), slog.String("error", err.Error()))
		}
	}

	result, runErr := orch.Run(ctx)
	a.finishRun(ctx, deps, recorder, result, runErr)
	if runErr != nil {
		return result, fmt.Errorf("app: simulation: %w", runErr)
	}
	return result, nil
}

// finishRun updates the persisted run status. Partial results from a failed
// run are already recorded round by round.
func (a *App) finishRun(ctx context.Context, deps *Dependencies, recorder *runRecorder, result *domain.SimulationResult, runErr error) {
	status := domain.RunStatusComplete
	var winner string
	var winnerPnL domain.PnL
	if runErr != nil {
		status = domain.RunStatusFailed
		recorder.RecordError(context.WithoutCancel(ctx), result.RunID, runErr)
	} else if len(result.Summary) > 0 {
		winner = result.Summary[0].Agent
		winnerPnL = result.Summary[0].TotalPnL
	}

	if deps.Runs != nil {
		// Finish even when the context is cancelled; the row should not be
		// left in running state.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := deps.Runs.Finish(fctx, result.RunID, status, winner, winnerPnL, result.FinishedAt); err != nil {
			a.logger.WarnContext(ctx, "run record finish failed",
				slog.String("run_id", result.RunID), slog.String("error", err.Error()))
		}
	}
}

// runLockTTL bounds the run lock by the worst-case wall time of a run.
func (a *App) runLockTTL() time.Duration {
	perRound := a.cfg.Simulation.RoundDelay.Duration +
		time.Duration(len(a.cfg.Agents))*(a.cfg.Simulation.AgentDelay.Duration+30*time.Second)
	ttl := time.Duration(a.cfg.Simulation.Rounds) * perRound
	if ttl < 10*time.Minute {
		ttl = 10 * time.Minute
	}
	return ttl
}

type orchestratorParams struct {
	runID     string
	seed      int64
	start     time.Time
	rounds    int
	decider   engine.Decider
	submitter engine.Submitter
	recorder  engine.Recorder
	noDelays  bool
}

func (a *App) buildOrchestrator(p orchestratorParams) (*engine.Orchestrator, error) {
	sim := a.cfg.Simulation

	specs := make([]engine.AgentSpec, 0, len(a.cfg.Agents))
	for _, ac := range a.cfg.Agents {
		specs = append(specs, engine.AgentSpec{Name: ac.Name, Persona: ac.Persona})
	}

	st := engine.NewState(specs, domain.Amount(sim.StartingBalance), p.seed, p.start, sim.SecondsPerRound)
	arbiter := engine.NewArbiter(economics.BetFeeBps)
	policy := engine.ResolutionPolicy{Bias: sim.ResolutionBias, Floor: sim.ResolutionFloor}
	settler := engine.NewSettler(arbiter, policy)

	cfg := engine.OrchestratorConfig{
		RunID:            p.runID,
		Seed:             p.seed,
		Rounds:           p.rounds,
		ResolveEvery:     sim.ResolveEvery,
		RoundDelay:       sim.RoundDelay.Duration,
		AgentDelay:       sim.AgentDelay.Duration,
		InitialMarkets:   sim.InitialMarkets,
		MarketHorizon:    sim.MarketHorizon.Duration,
		MaxPerturbation:  domain.Amount(sim.MaxPerturbation),
		ResolutionPolicy: policy,
	}
	if p.noDelays {
		cfg.RoundDelay = 0
		cfg.AgentDelay = 0
	}

	return engine.NewOrchestrator(cfg, st, arbiter, settler, p.decider, p.submitter, p.recorder, a.logger), nil
}

func (a *App) buildDecider(seed int64, deps *Dependencies) (engine.Decider, error) {
	dc := a.cfg.Decision
	if strings.EqualFold(dc.Provider, "mock") {
		return decision.NewMockDecider(seed), nil
	}

	client, err := decision.NewClient(decision.ClientConfig{
		Provider:        dc.Provider,
		Model:           dc.Model,
		BaseURL:         dc.BaseURL,
		APIKey:          dc.APIKey,
		Temperature:     dc.Temperature,
		MaxOutputTokens: dc.MaxOutputTokens,
		Timeout:         dc.Timeout.Duration,
	})
	if err != nil {
		return nil, fmt.Errorf("app: decision client: %w", err)
	}

	return decision.NewAdapter(client, decision.AdapterConfig{
		Timeout:     dc.Timeout.Duration,
		MaxRetries:  dc.MaxRetries,
		BaseBackoff: dc.BaseBackoff.Duration,
	}, deps.RateLimiter, a.logger), nil
}

func (a *App) buildSubmitter() (engine.Submitter, error) {
	lc := a.cfg.Ledger
	switch strings.ToLower(lc.Mode) {
	case "", "simulated":
		return ledger.NewSimulated(a.logger), nil
	case "devnet":
		key, err := ledger.LoadKey(ledger.KeyConfig{
			RawSeed:          lc.SeedHex,
			EncryptedKeyPath: lc.EncryptedKeyPath,
			KeyPassword:      lc.KeyPassword,
		})
		if err != nil {
			return nil, fmt.Errorf("app: ledger key: %w", err)
		}
		return ledger.NewDevnet(ledger.DevnetConfig{
			Endpoint: lc.Endpoint,
			Key:      key,
		})
	default:
		return nil, fmt.Errorf("app: unknown ledger mode %q", lc.Mode)
	}
}

// ── shared goroutines ───────────────────────────────────────────────────────

// startListener forwards bus signals to the configured notification channels.
func (a *App) startListener(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.SignalBus == nil || deps.Notifier == nil {
		return
	}
	listener := notify.NewListener(deps.SignalBus, deps.Notifier, a.logger)
	g.Go(func() error {
		err := listener.Run(ctx, domain.RunChannelPattern)
		if errors.Is(err, context.Canceled) {
			return err
		}
		// A broken subscription should not take the whole process down.
		if err != nil {
			a.logger.WarnContext(ctx, "notify listener stopped", slog.String("error", err.Error()))
		}
		return nil
	})
}

// startHTTPServer adds the API server and its shutdown watcher to the group.
// live may be nil when no simulation runs in this process.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, live *liveRun) {
	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.logger, ws.Config{
			Mode:      a.cfg.Mode,
			StartedAt: time.Now().UTC(),
		})
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	var statusRun handler.RunStatus
	var pauser handler.Pauser
	if live != nil {
		statusRun = live
		pauser = live
	}

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(),
		Status: handler.NewStatusHandler(a.cfg.Mode, time.Now().UTC(), statusRun),
		Runs:   handler.NewRunHandler(deps.Runs, deps.Rounds, deps.Leaderboard, a.logger),
		Admin:  handler.NewAdminHandler(pauser, a.logger),
	}

	var rateLimit func(http.Handler) http.Handler
	if deps.RateLimiter != nil {
		rateLimit = middleware.RateLimit(deps.RateLimiter)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, hub, rateLimit, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("server shutdown failed", slog.String("error", err.Error()))
		}
		return ctx.Err()
	})
}

// ── replay verification ─────────────────────────────────────────────────────

// replayDecider feeds the recorded actions back into the engine. Every
// recorded action is re-submitted, including ones the arbiter rejected, so
// the rejection pattern reproduces too.
type replayDecider struct {
	actions map[int]map[string]domain.Action
}

func newReplayDecider(rounds []domain.RoundResult) *replayDecider {
	actions := make(map[int]map[string]domain.Action, len(rounds))
	for _, rr := range rounds {
		byAgent := make(map[string]domain.Action, len(rr.Actions))
		for _, ar := range rr.Actions {
			byAgent[ar.Agent] = ar.Action
		}
		actions[rr.Round] = byAgent
	}
	return &replayDecider{actions: actions}
}

func (d *replayDecider) Decide(_ context.Context, agent *domain.AgentState, sc domain.SimulationContext) (domain.Action, bool) {
	if byAgent, ok := d.actions[sc.Round]; ok {
		if act, ok := byAgent[agent.Name]; ok {
			return act, false
		}
	}
	return domain.WaitAction("no recorded action"), false
}

// compareOutcomes checks that a replay reproduced the recorded run.
func compareOutcomes(recorded, replayed domain.SimulationResult) error {
	if len(recorded.Rounds) != len(replayed.Rounds) {
		return fmt.Errorf("round count %d != recorded %d", len(replayed.Rounds), len(recorded.Rounds))
	}
	if recorded.Totals != replayed.Totals {
		return fmt.Errorf("protocol totals %+v != recorded %+v", replayed.Totals, recorded.Totals)
	}
	if len(recorded.Summary) != len(replayed.Summary) {
		return fmt.Errorf("summary length %d != recorded %d", len(replayed.Summary), len(recorded.Summary))
	}
	for i, want := range recorded.Summary {
		got := replayed.Summary[i]
		if got.Agent != want.Agent || got.TotalPnL != want.TotalPnL || got.FinalBalance != want.FinalBalance {
			return fmt.Errorf("agent %s: got pnl=%d balance=%d, recorded pnl=%d balance=%d",
				want.Agent, got.TotalPnL, got.FinalBalance, want.TotalPnL, want.FinalBalance)
		}
	}
	return nil
}
