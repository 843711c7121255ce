package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/protocolsim/idlarena/internal/domain"
	"github.com/protocolsim/idlarena/internal/economics"
)

// forceNo guarantees a no outcome when the yes pool is heavier: the bias
// term pushes pYes to the floor of zero.
var forceNo = ResolutionPolicy{Bias: 10, Floor: 0}

func TestResolveSettlesAllBets(t *testing.T) {
	st := newTestState(t, 10_000, "alice", "bob")
	ar := NewArbiter(economics.BetFeeBps)
	settler := NewSettler(ar, forceNo)
	alice, bob := st.Agent("alice"), st.Agent("bob")

	mustApply(t, ar, st, alice, domain.Action{
		Kind:             domain.ActionCreateMarket,
		TargetValue:      1,
		ResolutionOffset: 86_400,
		Description:      "settlement",
	})
	m := st.UnresolvedMarkets()[0]
	mustApply(t, ar, st, alice, domain.Action{
		Kind: domain.ActionPlaceBet, MarketID: m.ID, Amount: 100, Side: domain.SideYes,
	})
	mustApply(t, ar, st, bob, domain.Action{
		Kind: domain.ActionPlaceBet, MarketID: m.ID, Amount: 100, Side: domain.SideNo,
	})
	// Exogenous flow makes yes the heavy side, so the draw lands on no.
	m.YesPool = 1000

	rec, err := settler.Resolve(st, m)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if rec.Outcome != domain.OutcomeNo {
		t.Fatalf("outcome = %s, want no", rec.Outcome)
	}
	if rec.WinnersPaid != 1 || rec.LosersSwept != 1 {
		t.Errorf("winners=%d losers=%d, want 1/1", rec.WinnersPaid, rec.LosersSwept)
	}

	// bob: share = 100*1000/100 = 1000, gross 1100, fee 33, net 1067.
	if bob.TotalPnL != 967 {
		t.Errorf("bob pnl = %d, want 967", bob.TotalPnL)
	}
	if bob.LiquidBalance != 10_000-100+1067 {
		t.Errorf("bob liquid = %d, want %d", bob.LiquidBalance, 10_000-100+1067)
	}
	// alice realizes her principal as a loss but collects the creator fee.
	if alice.TotalPnL != -100 {
		t.Errorf("alice pnl = %d, want -100", alice.TotalPnL)
	}
	if alice.LiquidBalance != 10_000-100+8 {
		t.Errorf("alice liquid = %d, want %d", alice.LiquidBalance, 10_000-100+8)
	}
	if rec.CreatorFee != 8 {
		t.Errorf("creator fee = %d, want 8", rec.CreatorFee)
	}
	if len(alice.OpenBets) != 0 || len(bob.OpenBets) != 0 {
		t.Error("open bets not cleared by settlement")
	}
}

func TestResolutionIsImmutable(t *testing.T) {
	st := newTestState(t, 10_000, "alice")
	ar := NewArbiter(economics.BetFeeBps)
	settler := NewSettler(ar, DefaultResolutionPolicy())
	a := st.Agent("alice")

	mustApply(t, ar, st, a, domain.Action{
		Kind:             domain.ActionCreateMarket,
		TargetValue:      1,
		ResolutionOffset: 86_400,
		Description:      "immutability",
	})
	m := st.UnresolvedMarkets()[0]
	m.YesPool, m.NoPool = 700, 300

	if _, err := settler.Resolve(st, m); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	outcome, yes, no := m.Outcome, m.YesPool, m.NoPool

	if _, err := settler.Resolve(st, m); !errors.Is(err, domain.ErrMarketResolved) {
		t.Fatalf("second resolve: err = %v, want ErrMarketResolved", err)
	}
	if err := PerturbPools(st, 500); err != nil {
		t.Fatalf("perturb: %v", err)
	}
	if m.Outcome != outcome || m.YesPool != yes || m.NoPool != no {
		t.Error("resolved market mutated after resolution")
	}
}

func TestResolveOldestPicksCreationOrder(t *testing.T) {
	st := newTestState(t, 10_000, "alice")
	ar := NewArbiter(economics.BetFeeBps)
	settler := NewSettler(ar, DefaultResolutionPolicy())
	a := st.Agent("alice")

	for i := 0; i < 2; i++ {
		mustApply(t, ar, st, a, domain.Action{
			Kind:             domain.ActionCreateMarket,
			TargetValue:      1,
			ResolutionOffset: 86_400,
			Description:      "ordering",
		})
	}
	first := st.UnresolvedMarkets()[0].ID

	rec, err := settler.ResolveOldest(st)
	if err != nil {
		t.Fatalf("resolve oldest: %v", err)
	}
	if rec.MarketID != first {
		t.Errorf("resolved %s, want oldest %s", rec.MarketID, first)
	}
	if len(st.UnresolvedMarkets()) != 1 {
		t.Errorf("unresolved markets = %d, want 1", len(st.UnresolvedMarkets()))
	}
}

func TestResolveOldestNoMarkets(t *testing.T) {
	st := newTestState(t, 10_000, "alice")
	settler := NewSettler(NewArbiter(economics.BetFeeBps), DefaultResolutionPolicy())
	rec, err := settler.ResolveOldest(st)
	if err != nil || rec != nil {
		t.Fatalf("ResolveOldest on empty set = %v, %v", rec, err)
	}
}

func TestSeedMarketKeepsOpportunitySet(t *testing.T) {
	st := newTestState(t, 10_000, "alice")
	settler := NewSettler(NewArbiter(economics.BetFeeBps), DefaultResolutionPolicy())

	m := settler.SeedMarket(st, 24*time.Hour)
	if m.Creator != "protocol" {
		t.Errorf("creator = %s, want protocol", m.Creator)
	}
	if m.Resolved || m.YesPool != 0 || m.NoPool != 0 {
		t.Errorf("seeded market not pristine: %+v", m)
	}
	if !m.ResolutionTime.After(st.Now()) {
		t.Error("seeded market resolution not in the future")
	}
}
