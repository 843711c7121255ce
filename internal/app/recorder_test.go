package app

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/protocolsim/idlarena/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testResult(runID string) domain.SimulationResult {
	now := time.Unix(1_700_000_000, 0).UTC()
	return domain.SimulationResult{
		RunID:      runID,
		Seed:       42,
		StartedAt:  now,
		FinishedAt: now.Add(time.Hour),
		Rounds: []domain.RoundResult{
			{Round: 1, Timestamp: now.Add(10 * time.Minute)},
			{Round: 2, Timestamp: now.Add(20 * time.Minute)},
		},
		Summary: []domain.AgentSummary{
			{Rank: 1, Agent: "alice", TotalPnL: 120, FinalBalance: 1200},
			{Rank: 2, Agent: "bob", TotalPnL: -80, FinalBalance: 800},
		},
	}
}

func TestRecorderWritesLocalArtifacts(t *testing.T) {
	dir := t.TempDir()
	rec := newRunRecorder(dir, &Dependencies{}, discardLogger())
	ctx := context.Background()

	result := testResult("run-1")
	for _, rr := range result.Rounds {
		rec.RecordRound(ctx, result.RunID, rr)
	}
	rec.RecordFinal(ctx, result)

	f, err := os.Open(rec.roundsPath("run-1"))
	if err != nil {
		t.Fatalf("open rounds artifact: %v", err)
	}
	defer f.Close()

	var lines int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rr domain.RoundResult
		if err := json.Unmarshal(scanner.Bytes(), &rr); err != nil {
			t.Fatalf("line %d: %v", lines+1, err)
		}
		lines++
	}
	if lines != 2 {
		t.Errorf("rounds artifact has %d lines, want 2", lines)
	}

	loaded, err := rec.loadResult(ctx, "run-1", nil)
	if err != nil {
		t.Fatalf("loadResult: %v", err)
	}
	if loaded.RunID != "run-1" || loaded.Seed != 42 || len(loaded.Rounds) != 2 {
		t.Errorf("loaded = %+v, want recorded result", loaded)
	}
}

func TestLoadResultMissingRun(t *testing.T) {
	rec := newRunRecorder(t.TempDir(), &Dependencies{}, discardLogger())
	if _, err := rec.loadResult(context.Background(), "nope", nil); err == nil {
		t.Fatal("loadResult succeeded for missing run")
	}
}

func TestReplayDeciderReturnsRecordedActions(t *testing.T) {
	rounds := []domain.RoundResult{
		{Round: 1, Actions: []domain.ActionRecord{
			{Agent: "alice", Action: domain.Action{Kind: domain.ActionStake, Amount: 100}},
		}},
	}
	d := newReplayDecider(rounds)

	act, coerced := d.Decide(context.Background(), &domain.AgentState{Name: "alice"}, domain.SimulationContext{Round: 1})
	if coerced || act.Kind != domain.ActionStake || act.Amount != 100 {
		t.Errorf("Decide = %+v coerced=%v, want recorded stake", act, coerced)
	}

	act, _ = d.Decide(context.Background(), &domain.AgentState{Name: "bob"}, domain.SimulationContext{Round: 1})
	if act.Kind != domain.ActionWait {
		t.Errorf("unrecorded agent got %s, want %s", act.Kind, domain.ActionWait)
	}
}

func TestCompareOutcomes(t *testing.T) {
	recorded := testResult("run-1")

	if err := compareOutcomes(recorded, recorded); err != nil {
		t.Errorf("identical results flagged as divergent: %v", err)
	}

	diverged := testResult("run-1")
	diverged.Summary[0].TotalPnL = 121
	if err := compareOutcomes(recorded, diverged); err == nil {
		t.Error("pnl divergence not detected")
	}

	short := testResult("run-1")
	short.Rounds = short.Rounds[:1]
	if err := compareOutcomes(recorded, short); err == nil {
		t.Error("round count divergence not detected")
	}
}
