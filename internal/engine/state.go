// Package engine owns the simulation world: entity state, the action
// arbiter, market settlement, and the round loop. All mutation goes through
// arbiter transitions or the settler; everything is single-goroutine and
// deterministic under a fixed seed.
package engine

import (
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/protocolsim/idlarena/internal/domain"
)

// AgentSpec declares one competitor before the run starts.
type AgentSpec struct {
	Name    string
	Persona string
}

// State is the complete in-memory world. Agents keep declaration order,
// markets keep creation order; both matter for deterministic iteration and
// leaderboard tie-breaks.
type State struct {
	agents      []*domain.AgentState
	byName      map[string]*domain.AgentState
	markets     map[string]*domain.MarketInfo
	marketOrder []string
	totals      domain.ProtocolTotals

	round           int
	clock           time.Time
	secondsPerRound int64
	rng             *rand.Rand
}

// NewState builds the starting world: every agent holds the same liquid
// balance, no markets exist yet, and the clock starts at start.
func NewState(specs []AgentSpec, startingBalance domain.Amount, seed int64, start time.Time, secondsPerRound int64) *State {
	s := &State{
		byName:          make(map[string]*domain.AgentState, len(specs)),
		markets:         make(map[string]*domain.MarketInfo),
		clock:           start.UTC(),
		secondsPerRound: secondsPerRound,
		rng:             rand.New(rand.NewSource(seed)),
	}
	for _, spec := range specs {
		a := &domain.AgentState{
			Name:          spec.Name,
			Persona:       spec.Persona,
			LiquidBalance: startingBalance,
		}
		s.agents = append(s.agents, a)
		s.byName[spec.Name] = a
	}
	return s
}

// NewID draws a UUID from the seeded source so identifiers replay
// identically under the same seed.
func (s *State) NewID() string {
	id, err := uuid.NewRandomFromReader(s.rng)
	if err != nil {
		// rand.Rand.Read never fails.
		panic(err)
	}
	return id.String()
}

// Rand exposes the seeded source for perturbation and resolution draws.
func (s *State) Rand() *rand.Rand { return s.rng }

// Agents returns all agents in declaration order.
func (s *State) Agents() []*domain.AgentState { return s.agents }

// Agent returns the agent with the given name, or nil.
func (s *State) Agent(name string) *domain.AgentState { return s.byName[name] }

// Totals returns the mutable protocol-wide accounting.
func (s *State) Totals() *domain.ProtocolTotals { return &s.totals }

// Round returns the current round index (1-based once the run starts).
func (s *State) Round() int { return s.round }

// Now returns the simulated clock.
func (s *State) Now() time.Time { return s.clock }

// AdvanceRound increments the round counter, moves the simulated clock
// forward, and resets every agent's round PnL.
func (s *State) AdvanceRound() {
	s.round++
	s.clock = s.clock.Add(time.Duration(s.secondsPerRound) * time.Second)
	for _, a := range s.agents {
		a.RoundPnL = 0
	}
}

// AddMarket registers a market in creation order.
func (s *State) AddMarket(m *domain.MarketInfo) {
	s.markets[m.ID] = m
	s.marketOrder = append(s.marketOrder, m.ID)
}

// Market returns the market with the given id, or nil.
func (s *State) Market(id string) *domain.MarketInfo { return s.markets[id] }

// UnresolvedMarkets returns open markets in creation order.
func (s *State) UnresolvedMarkets() []*domain.MarketInfo {
	var out []*domain.MarketInfo
	for _, id := range s.marketOrder {
		if m := s.markets[id]; !m.Resolved {
			out = append(out, m)
		}
	}
	return out
}

// Snapshot builds the shared read-only context every agent sees this round.
func (s *State) Snapshot(totalRounds int) domain.SimulationContext {
	sc := domain.SimulationContext{
		Round:       s.round,
		TotalRounds: totalRounds,
		Timestamp:   s.clock,
		Totals:      s.totals,
	}
	for _, m := range s.UnresolvedMarkets() {
		sc.Markets = append(sc.Markets, *m)
	}
	for _, a := range s.agents {
		sc.Competitors = append(sc.Competitors, domain.CompetitorSummary{
			Name:         a.Name,
			TotalPnL:     a.TotalPnL,
			StakedAmount: a.StakedAmount,
			OpenBetCount: len(a.OpenBets),
			Badge:        a.Badge,
		})
	}
	return sc
}

// Leaderboard ranks agents by total PnL descending; equal PnL keeps
// declaration order.
func (s *State) Leaderboard() []domain.LeaderboardEntry {
	idx := make([]int, len(s.agents))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return s.agents[idx[a]].TotalPnL > s.agents[idx[b]].TotalPnL
	})
	entries := make([]domain.LeaderboardEntry, len(idx))
	for rank, i := range idx {
		a := s.agents[i]
		entries[rank] = domain.LeaderboardEntry{
			Rank:          rank + 1,
			Agent:         a.Name,
			TotalPnL:      a.TotalPnL,
			RoundPnL:      a.RoundPnL,
			LiquidBalance: a.LiquidBalance,
			StakedAmount:  a.StakedAmount,
			OpenBets:      len(a.OpenBets),
		}
	}
	return entries
}
