package engine

import (
	"context"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/protocolsim/idlarena/internal/domain"
	"github.com/protocolsim/idlarena/internal/economics"
)

// scriptedDecider is a deterministic stand-in for the decision service: it
// stakes early, then bets small fixed amounts with a side derived from the
// round and agent name.
type scriptedDecider struct{}

func (scriptedDecider) Decide(_ context.Context, agent *domain.AgentState, sc domain.SimulationContext) (domain.Action, bool) {
	if sc.Round == 1 {
		return domain.Action{Kind: domain.ActionStake, Amount: 1000, Rationale: "build bonus"}, false
	}
	if len(sc.Markets) == 0 {
		return domain.WaitAction("no open markets"), false
	}
	m := sc.Markets[sc.Round%len(sc.Markets)]
	side := domain.SideYes
	if (sc.Round+len(agent.Name))%2 == 0 {
		side = domain.SideNo
	}
	return domain.Action{
		Kind:      domain.ActionPlaceBet,
		MarketID:  m.ID,
		Amount:    50,
		Side:      side,
		Rationale: "scripted",
	}, false
}

func testOrchestrator(seed int64) *Orchestrator {
	specs := []AgentSpec{{Name: "alice"}, {Name: "bob"}, {Name: "carol"}}
	st := NewState(specs, 10_000, seed, testStart, 600)
	ar := NewArbiter(economics.BetFeeBps)
	settler := NewSettler(ar, DefaultResolutionPolicy())
	cfg := OrchestratorConfig{
		RunID:            "test-run",
		Seed:             seed,
		Rounds:           9,
		ResolveEvery:     3,
		InitialMarkets:   2,
		MarketHorizon:    24 * time.Hour,
		MaxPerturbation:  50,
		ResolutionPolicy: DefaultResolutionPolicy(),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewOrchestrator(cfg, st, ar, settler, scriptedDecider{}, nil, nil, logger)
}

func TestRunProducesAllRounds(t *testing.T) {
	o := testOrchestrator(7)
	result, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Rounds) != 9 {
		t.Fatalf("rounds = %d, want 9", len(result.Rounds))
	}
	for i, rr := range result.Rounds {
		if rr.Round != i+1 {
			t.Errorf("round %d recorded as %d", i+1, rr.Round)
		}
		if len(rr.Actions) != 3 {
			t.Errorf("round %d actions = %d, want 3", rr.Round, len(rr.Actions))
		}
		if len(rr.Leaderboard) != 3 {
			t.Errorf("round %d leaderboard = %d entries, want 3", rr.Round, len(rr.Leaderboard))
		}
	}
	// Rounds 3, 6 and 9 each force one resolution.
	var resolutions int
	for _, rr := range result.Rounds {
		resolutions += len(rr.Resolutions)
	}
	if resolutions != 3 {
		t.Errorf("resolutions = %d, want 3", resolutions)
	}
	if len(result.Summary) != 3 {
		t.Fatalf("summary = %d entries, want 3", len(result.Summary))
	}
	if result.Summary[0].Rank != 1 {
		t.Errorf("summary not rank-ordered: %+v", result.Summary[0])
	}
}

func TestRunIsDeterministicUnderFixedSeed(t *testing.T) {
	first, err := testOrchestrator(99).Run(context.Background())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := testOrchestrator(99).Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if !reflect.DeepEqual(first.Summary, second.Summary) {
		t.Errorf("summaries diverged:\nfirst:  %+v\nsecond: %+v", first.Summary, second.Summary)
	}
	if first.Totals != second.Totals {
		t.Errorf("totals diverged:\nfirst:  %+v\nsecond: %+v", first.Totals, second.Totals)
	}
	for i := range first.Rounds {
		a, b := first.Rounds[i], second.Rounds[i]
		if !reflect.DeepEqual(a.Leaderboard, b.Leaderboard) {
			t.Errorf("round %d leaderboards diverged", a.Round)
		}
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := testOrchestrator(1).Run(ctx)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if result == nil || len(result.Rounds) != 0 {
		t.Errorf("result = %+v", result)
	}
}

func TestLeaderboardTieBreakIsDeclarationOrder(t *testing.T) {
	st := newTestState(t, 10_000, "zed", "amy")
	board := st.Leaderboard()
	if board[0].Agent != "zed" || board[1].Agent != "amy" {
		t.Errorf("tie-break broke declaration order: %+v", board)
	}
}
