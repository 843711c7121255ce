package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/protocolsim/idlarena/internal/domain"
	"github.com/protocolsim/idlarena/internal/economics"
)

var testStart = time.Unix(1_700_000_000, 0).UTC()

func newTestState(t *testing.T, balance domain.Amount, names ...string) *State {
	t.Helper()
	specs := make([]AgentSpec, len(names))
	for i, n := range names {
		specs[i] = AgentSpec{Name: n, Persona: "test"}
	}
	return NewState(specs, balance, 42, testStart, 600)
}

func mustApply(t *testing.T, ar *Arbiter, st *State, agent *domain.AgentState, act domain.Action) {
	t.Helper()
	if err := ar.Apply(st, agent, act); err != nil {
		t.Fatalf("apply %s: %v", act.Kind, err)
	}
}

func TestStakeUnstakeConservation(t *testing.T) {
	st := newTestState(t, 10_000, "alice")
	ar := NewArbiter(economics.BetFeeBps)
	a := st.Agent("alice")

	total := func() domain.Amount { return a.LiquidBalance + a.StakedAmount }
	before := total()

	mustApply(t, ar, st, a, domain.Action{Kind: domain.ActionStake, Amount: 4000})
	if total() != before {
		t.Errorf("stake changed liquid+staked: %d -> %d", before, total())
	}
	if a.StakedAmount != 4000 || a.LiquidBalance != 6000 {
		t.Errorf("after stake: liquid=%d staked=%d", a.LiquidBalance, a.StakedAmount)
	}
	if st.Totals().TotalStaked != 4000 {
		t.Errorf("total staked = %d, want 4000", st.Totals().TotalStaked)
	}

	mustApply(t, ar, st, a, domain.Action{Kind: domain.ActionUnstake, Amount: 1500})
	if total() != before {
		t.Errorf("unstake changed liquid+staked: %d -> %d", before, total())
	}
	if st.Totals().TotalStaked != 2500 {
		t.Errorf("total staked = %d, want 2500", st.Totals().TotalStaked)
	}
}

func TestStakeRejectsOverdraft(t *testing.T) {
	st := newTestState(t, 100, "alice")
	ar := NewArbiter(economics.BetFeeBps)
	a := st.Agent("alice")

	err := ar.Apply(st, a, domain.Action{Kind: domain.ActionStake, Amount: 101})
	if !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("err = %v, want ErrInvalidAmount", err)
	}
	if a.LiquidBalance != 100 || a.StakedAmount != 0 {
		t.Errorf("failed stake mutated state: liquid=%d staked=%d", a.LiquidBalance, a.StakedAmount)
	}
}

func TestLockedStakeEnforcement(t *testing.T) {
	st := newTestState(t, 10_000, "alice")
	ar := NewArbiter(economics.BetFeeBps)
	a := st.Agent("alice")

	// Lock 500, then stake 500 more: 1000 staked of which 500 is frozen.
	mustApply(t, ar, st, a, domain.Action{Kind: domain.ActionStake, Amount: 500})
	mustApply(t, ar, st, a, domain.Action{Kind: domain.ActionLockVe, DurationSeconds: economics.MinLockSeconds})
	mustApply(t, ar, st, a, domain.Action{Kind: domain.ActionStake, Amount: 500})

	err := ar.Apply(st, a, domain.Action{Kind: domain.ActionUnstake, Amount: 600})
	if !errors.Is(err, domain.ErrTokensLocked) {
		t.Fatalf("unstake 600: err = %v, want ErrTokensLocked", err)
	}
	mustApply(t, ar, st, a, domain.Action{Kind: domain.ActionUnstake, Amount: 500})
	if a.StakedAmount != 500 {
		t.Errorf("staked = %d, want 500", a.StakedAmount)
	}
}

func TestLockVeDurationBounds(t *testing.T) {
	st := newTestState(t, 10_000, "alice")
	ar := NewArbiter(economics.BetFeeBps)
	a := st.Agent("alice")
	mustApply(t, ar, st, a, domain.Action{Kind: domain.ActionStake, Amount: 1000})

	for _, dur := range []int64{economics.MinLockSeconds - 1, economics.MaxLockSeconds + 1} {
		err := ar.Apply(st, a, domain.Action{Kind: domain.ActionLockVe, DurationSeconds: dur})
		if !errors.Is(err, domain.ErrInvalidLockDuration) {
			t.Errorf("lock %ds: err = %v, want ErrInvalidLockDuration", dur, err)
		}
	}
}

func TestRelockRecomputesVeSupply(t *testing.T) {
	st := newTestState(t, 100_000, "alice")
	ar := NewArbiter(economics.BetFeeBps)
	a := st.Agent("alice")

	mustApply(t, ar, st, a, domain.Action{Kind: domain.ActionStake, Amount: 10_000})
	mustApply(t, ar, st, a, domain.Action{Kind: domain.ActionLockVe, DurationSeconds: economics.MaxLockSeconds})
	first := a.Ve.VeAmount
	if first != 10_000 {
		t.Fatalf("full lock ve = %d, want 10000", first)
	}
	if st.Totals().TotalVeSupply != first {
		t.Fatalf("supply = %d, want %d", st.Totals().TotalVeSupply, first)
	}

	// Re-lock with more stake and a shorter duration: supply follows the
	// recomputed amount, nothing is double counted.
	mustApply(t, ar, st, a, domain.Action{Kind: domain.ActionStake, Amount: 10_000})
	mustApply(t, ar, st, a, domain.Action{Kind: domain.ActionLockVe, DurationSeconds: economics.MaxLockSeconds / 2})
	if a.Ve.VeAmount != 10_000 {
		t.Errorf("relock ve = %d, want 10000", a.Ve.VeAmount)
	}
	if st.Totals().TotalVeSupply != a.Ve.VeAmount {
		t.Errorf("supply = %d, want %d", st.Totals().TotalVeSupply, a.Ve.VeAmount)
	}
}

func TestUnlockVe(t *testing.T) {
	st := newTestState(t, 10_000, "alice")
	ar := NewArbiter(economics.BetFeeBps)
	a := st.Agent("alice")

	mustApply(t, ar, st, a, domain.Action{Kind: domain.ActionStake, Amount: 1000})
	mustApply(t, ar, st, a, domain.Action{Kind: domain.ActionLockVe, DurationSeconds: economics.MinLockSeconds})

	err := ar.Apply(st, a, domain.Action{Kind: domain.ActionUnlockVe})
	if !errors.Is(err, domain.ErrLockNotExpired) {
		t.Fatalf("early unlock: err = %v, want ErrLockNotExpired", err)
	}

	// 600 simulated seconds per round; one week is 1008 rounds.
	for i := 0; i < 1009; i++ {
		st.AdvanceRound()
	}
	mustApply(t, ar, st, a, domain.Action{Kind: domain.ActionUnlockVe})
	if a.Ve != nil {
		t.Error("ve position not cleared after unlock")
	}
	if st.Totals().TotalVeSupply != 0 {
		t.Errorf("supply = %d after unlock, want 0", st.Totals().TotalVeSupply)
	}
	mustApply(t, ar, st, a, domain.Action{Kind: domain.ActionUnstake, Amount: 1000})
}

func TestPlaceBetDebitsPrincipalOnly(t *testing.T) {
	st := newTestState(t, 20_000_000, "alice")
	ar := NewArbiter(economics.BetFeeBps)
	a := st.Agent("alice")

	// 10M staked earns a 10% wager boost.
	mustApply(t, ar, st, a, domain.Action{Kind: domain.ActionStake, Amount: 10_000_000})
	mustApply(t, ar, st, a, domain.Action{
		Kind:             domain.ActionCreateMarket,
		TargetValue:      500_000,
		ResolutionOffset: 86_400,
		Description:      "total staked above 500k",
	})
	m := st.UnresolvedMarkets()[0]

	liquidBefore := a.LiquidBalance
	mustApply(t, ar, st, a, domain.Action{
		Kind: domain.ActionPlaceBet, MarketID: m.ID, Amount: 100, Side: domain.SideYes,
	})

	if a.LiquidBalance != liquidBefore-100 {
		t.Errorf("liquid %d -> %d, want debit of exactly 100", liquidBefore, a.LiquidBalance)
	}
	if m.YesPool != 110 {
		t.Errorf("yes pool = %d, want 110 (principal + 10%% bonus)", m.YesPool)
	}
	if len(a.OpenBets) != 1 || a.OpenBets[0].EffectiveAmount != 110 {
		t.Fatalf("open bets = %+v", a.OpenBets)
	}
}

func TestClaimWinningsWorkedExample(t *testing.T) {
	st := newTestState(t, 20_000_000, "alice", "bob")
	ar := NewArbiter(economics.BetFeeBps)
	a := st.Agent("alice")
	b := st.Agent("bob")

	mustApply(t, ar, st, a, domain.Action{Kind: domain.ActionStake, Amount: 10_000_000})
	mustApply(t, ar, st, b, domain.Action{
		Kind:             domain.ActionCreateMarket,
		TargetValue:      1,
		ResolutionOffset: 86_400,
		Description:      "worked example",
	})
	m := st.UnresolvedMarkets()[0]
	mustApply(t, ar, st, a, domain.Action{
		Kind: domain.ActionPlaceBet, MarketID: m.ID, Amount: 100, Side: domain.SideYes,
	})

	// Exogenous flow brings the pools to the canonical 1000 / 500 split.
	m.YesPool = 1000
	m.NoPool = 500
	m.Resolved = true
	m.Outcome = domain.OutcomeYes

	liquidBefore := a.LiquidBalance
	pnlBefore := a.TotalPnL
	mustApply(t, ar, st, a, domain.Action{Kind: domain.ActionClaimWinnings, BetID: a.OpenBets[0].ID})

	// share = 110*500/1000 = 55, gross = 155, fee = 4, net = 151.
	if got := a.LiquidBalance - liquidBefore; got != 151 {
		t.Errorf("credited %d, want net 151", got)
	}
	if got := a.TotalPnL - pnlBefore; got != 51 {
		t.Errorf("pnl gain = %d, want 51", got)
	}
	if st.Totals().TotalFeesCollected != 4 {
		t.Errorf("fees collected = %d, want 4", st.Totals().TotalFeesCollected)
	}
	// fee split of 4: staker 2, creator 1, treasury 1 (remainder), burn 0.
	if b.LiquidBalance != 20_000_001 {
		t.Errorf("creator balance = %d, want 20000001", b.LiquidBalance)
	}
	if st.Totals().RewardPool != 2 || st.Totals().TreasuryBalance != 1 {
		t.Errorf("reward=%d treasury=%d, want 2/1", st.Totals().RewardPool, st.Totals().TreasuryBalance)
	}
}

func TestClaimTwiceFailsWithBetNotFound(t *testing.T) {
	st := newTestState(t, 10_000, "alice")
	ar := NewArbiter(economics.BetFeeBps)
	a := st.Agent("alice")

	mustApply(t, ar, st, a, domain.Action{
		Kind:             domain.ActionCreateMarket,
		TargetValue:      1,
		ResolutionOffset: 86_400,
		Description:      "double claim",
	})
	m := st.UnresolvedMarkets()[0]
	mustApply(t, ar, st, a, domain.Action{
		Kind: domain.ActionPlaceBet, MarketID: m.ID, Amount: 100, Side: domain.SideNo,
	})
	betID := a.OpenBets[0].ID
	m.Resolved = true
	m.Outcome = domain.OutcomeNo

	mustApply(t, ar, st, a, domain.Action{Kind: domain.ActionClaimWinnings, BetID: betID})
	err := ar.Apply(st, a, domain.Action{Kind: domain.ActionClaimWinnings, BetID: betID})
	if !errors.Is(err, domain.ErrBetNotFound) {
		t.Fatalf("second claim: err = %v, want ErrBetNotFound", err)
	}
}

func TestClaimLosingBetFails(t *testing.T) {
	st := newTestState(t, 10_000, "alice")
	ar := NewArbiter(economics.BetFeeBps)
	a := st.Agent("alice")

	mustApply(t, ar, st, a, domain.Action{
		Kind:             domain.ActionCreateMarket,
		TargetValue:      1,
		ResolutionOffset: 86_400,
		Description:      "losing claim",
	})
	m := st.UnresolvedMarkets()[0]
	mustApply(t, ar, st, a, domain.Action{
		Kind: domain.ActionPlaceBet, MarketID: m.ID, Amount: 100, Side: domain.SideYes,
	})
	m.Resolved = true
	m.Outcome = domain.OutcomeNo

	err := ar.Apply(st, a, domain.Action{Kind: domain.ActionClaimWinnings, BetID: a.OpenBets[0].ID})
	if !errors.Is(err, domain.ErrBetLost) {
		t.Fatalf("err = %v, want ErrBetLost", err)
	}
}

func TestClaimUnresolvedMarketFails(t *testing.T) {
	st := newTestState(t, 10_000, "alice")
	ar := NewArbiter(economics.BetFeeBps)
	a := st.Agent("alice")

	mustApply(t, ar, st, a, domain.Action{
		Kind:             domain.ActionCreateMarket,
		TargetValue:      1,
		ResolutionOffset: 86_400,
		Description:      "early claim",
	})
	m := st.UnresolvedMarkets()[0]
	mustApply(t, ar, st, a, domain.Action{
		Kind: domain.ActionPlaceBet, MarketID: m.ID, Amount: 100, Side: domain.SideYes,
	})

	err := ar.Apply(st, a, domain.Action{Kind: domain.ActionClaimWinnings, BetID: a.OpenBets[0].ID})
	if !errors.Is(err, domain.ErrMarketNotResolved) {
		t.Fatalf("err = %v, want ErrMarketNotResolved", err)
	}
}

func TestBettingClosesBeforeResolution(t *testing.T) {
	st := newTestState(t, 10_000, "alice")
	ar := NewArbiter(economics.BetFeeBps)
	a := st.Agent("alice")

	mustApply(t, ar, st, a, domain.Action{
		Kind:             domain.ActionCreateMarket,
		TargetValue:      1,
		ResolutionOffset: economics.MinResolutionWindow,
		Description:      "closing window",
	})
	m := st.UnresolvedMarkets()[0]

	// Advance to within the 300s close window: 3600s out, 600s per round.
	for i := 0; i < 6; i++ {
		st.AdvanceRound()
	}
	err := ar.Apply(st, a, domain.Action{
		Kind: domain.ActionPlaceBet, MarketID: m.ID, Amount: 100, Side: domain.SideYes,
	})
	if !errors.Is(err, domain.ErrBettingClosed) {
		t.Fatalf("err = %v, want ErrBettingClosed", err)
	}
}

func TestCreateMarketRejectsShortWindow(t *testing.T) {
	st := newTestState(t, 10_000, "alice")
	ar := NewArbiter(economics.BetFeeBps)
	a := st.Agent("alice")

	err := ar.Apply(st, a, domain.Action{
		Kind:             domain.ActionCreateMarket,
		TargetValue:      1,
		ResolutionOffset: economics.MinResolutionWindow - 1,
		Description:      "too soon",
	})
	if !errors.Is(err, domain.ErrInvalidTimestamp) {
		t.Fatalf("err = %v, want ErrInvalidTimestamp", err)
	}
}

func TestPauseBlocksStateChanges(t *testing.T) {
	st := newTestState(t, 10_000, "alice")
	ar := NewArbiter(economics.BetFeeBps)
	a := st.Agent("alice")
	st.Totals().Paused = true

	err := ar.Apply(st, a, domain.Action{Kind: domain.ActionStake, Amount: 100})
	if !errors.Is(err, domain.ErrProtocolPaused) {
		t.Fatalf("err = %v, want ErrProtocolPaused", err)
	}
	if err := ar.Apply(st, a, domain.WaitAction("paused")); err != nil {
		t.Fatalf("WAIT under pause: %v", err)
	}
}

func TestWaitAndAnalyzeAreIdempotent(t *testing.T) {
	st := newTestState(t, 10_000, "alice", "bob")
	ar := NewArbiter(economics.BetFeeBps)
	a := st.Agent("alice")
	mustApply(t, ar, st, a, domain.Action{Kind: domain.ActionStake, Amount: 1000})
	mustApply(t, ar, st, a, domain.Action{
		Kind:             domain.ActionCreateMarket,
		TargetValue:      1,
		ResolutionOffset: 86_400,
		Description:      "noop check",
	})

	snapshot := func() string {
		b, err := json.Marshal(struct {
			Agents  []*domain.AgentState
			Markets []*domain.MarketInfo
			Totals  domain.ProtocolTotals
		}{st.Agents(), st.UnresolvedMarkets(), *st.Totals()})
		if err != nil {
			t.Fatalf("marshal snapshot: %v", err)
		}
		return string(b)
	}

	before := snapshot()
	mustApply(t, ar, st, a, domain.WaitAction("thinking"))
	mustApply(t, ar, st, a, domain.Action{Kind: domain.ActionAnalyze, Rationale: "still thinking"})
	if after := snapshot(); after != before {
		t.Errorf("WAIT/ANALYZE mutated state:\nbefore: %s\nafter:  %s", before, after)
	}
}

func TestBetNoncesSurviveSettlement(t *testing.T) {
	st := newTestState(t, 10_000, "alice")
	ar := NewArbiter(economics.BetFeeBps)
	settler := NewSettler(ar, forceNo)
	a := st.Agent("alice")

	for _, desc := range []string{"first", "second"} {
		mustApply(t, ar, st, a, domain.Action{
			Kind:             domain.ActionCreateMarket,
			TargetValue:      1,
			ResolutionOffset: 86_400,
			Description:      desc,
		})
	}
	first, second := st.UnresolvedMarkets()[0], st.UnresolvedMarkets()[1]

	mustApply(t, ar, st, a, domain.Action{
		Kind: domain.ActionPlaceBet, MarketID: first.ID, Amount: 100, Side: domain.SideYes,
	})
	mustApply(t, ar, st, a, domain.Action{
		Kind: domain.ActionPlaceBet, MarketID: second.ID, Amount: 100, Side: domain.SideYes,
	})

	// Settling the first market sweeps its yes bet and shrinks OpenBets.
	if _, err := settler.Resolve(st, first); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(a.OpenBets) != 1 {
		t.Fatalf("open bets = %d, want 1", len(a.OpenBets))
	}

	mustApply(t, ar, st, a, domain.Action{
		Kind: domain.ActionPlaceBet, MarketID: second.ID, Amount: 100, Side: domain.SideYes,
	})

	seen := make(map[string]bool, len(a.OpenBets))
	for _, b := range a.OpenBets {
		key := fmt.Sprintf("%s/%d", b.MarketID, b.Nonce)
		if seen[key] {
			t.Errorf("duplicate (market, nonce) %s", key)
		}
		seen[key] = true
	}
	if a.BetCount != 3 {
		t.Errorf("bet count = %d, want 3", a.BetCount)
	}
	if last := a.OpenBets[len(a.OpenBets)-1]; last.Nonce != 2 {
		t.Errorf("nonce = %d, want 2", last.Nonce)
	}
	// No stake, so effective equals principal on both surviving bets.
	if second.YesPool != 200 {
		t.Errorf("yes pool = %d, want 200", second.YesPool)
	}
}
