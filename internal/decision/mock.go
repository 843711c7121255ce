package decision

import (
	"context"
	"math/rand"

	"github.com/protocolsim/idlarena/internal/domain"
	"github.com/protocolsim/idlarena/internal/economics"
)

// MockDecider produces pseudo-random but seed-deterministic actions with no
// network dependency. It is the zero-dependency mode for demos and the
// determinism fixture for tests.
type MockDecider struct {
	rng *rand.Rand
}

// NewMockDecider seeds the mock policy.
func NewMockDecider(seed int64) *MockDecider {
	return &MockDecider{rng: rand.New(rand.NewSource(seed))}
}

// Decide picks a plausible action from the snapshot: stake early, mostly
// bet while markets are open, occasionally create markets or lock, wait
// otherwise. Never returns coerced=true; the mock cannot fail.
func (m *MockDecider) Decide(_ context.Context, agent *domain.AgentState, sc domain.SimulationContext) (domain.Action, bool) {
	if sc.Round == 1 && agent.LiquidBalance > 0 {
		return domain.Action{
			Kind:      domain.ActionStake,
			Amount:    agent.LiquidBalance / 4,
			Rationale: "mock: build staking bonus early",
		}, false
	}

	roll := m.rng.Float64()
	switch {
	case roll < 0.55 && len(sc.Markets) > 0 && agent.LiquidBalance > 10:
		market := sc.Markets[m.rng.Intn(len(sc.Markets))]
		side := domain.SideYes
		if m.rng.Float64() < 0.5 {
			side = domain.SideNo
		}
		maxBet := agent.LiquidBalance / 10
		if maxBet == 0 {
			maxBet = 1
		}
		amount := domain.Amount(m.rng.Int63n(int64(maxBet)) + 1)
		return domain.Action{
			Kind:      domain.ActionPlaceBet,
			MarketID:  market.ID,
			Amount:    amount,
			Side:      side,
			Rationale: "mock: random wager",
		}, false
	case roll < 0.65 && agent.LiquidBalance > 100:
		return domain.Action{
			Kind:      domain.ActionStake,
			Amount:    agent.LiquidBalance / 10,
			Rationale: "mock: top up stake",
		}, false
	case roll < 0.72 && agent.StakedAmount > 0 && agent.Ve == nil:
		return domain.Action{
			Kind:            domain.ActionLockVe,
			DurationSeconds: economics.MinLockSeconds,
			Rationale:       "mock: minimum lock",
		}, false
	case roll < 0.80:
		return domain.Action{
			Kind:             domain.ActionCreateMarket,
			TargetValue:      uint64(m.rng.Int63n(900_000) + 100_000),
			ResolutionOffset: economics.MinResolutionWindow + m.rng.Int63n(86_400),
			Description:      "mock market",
			Rationale:        "mock: seed a new market",
		}, false
	default:
		return domain.WaitAction("mock: sitting out this round"), false
	}
}
