package engine

import (
	"github.com/protocolsim/idlarena/internal/domain"
)

// AgentStats accumulates per-agent counters across the run. The orchestrator
// owns one per agent; they feed the final summary only.
type AgentStats struct {
	BetsPlaced    int
	BetsWon       int
	FailedActions int
	BetAmount     domain.Amount
}

// BuildSummary produces the final ranked report: one line per agent ordered
// by total PnL with declaration-order tie-break, carrying win rate and
// average bet size.
func BuildSummary(st *State, stats map[string]*AgentStats) []domain.AgentSummary {
	board := st.Leaderboard()
	out := make([]domain.AgentSummary, 0, len(board))
	for _, entry := range board {
		a := st.Agent(entry.Agent)
		s := stats[entry.Agent]
		if s == nil {
			s = &AgentStats{}
		}
		sum := domain.AgentSummary{
			Rank:          entry.Rank,
			Agent:         a.Name,
			TotalPnL:      a.TotalPnL,
			FinalBalance:  a.LiquidBalance,
			FinalStaked:   a.StakedAmount,
			BetsPlaced:    s.BetsPlaced,
			BetsWon:       s.BetsWon,
			BetVolume:     a.BetVolume,
			Badge:         a.Badge,
			FailedActions: s.FailedActions,
		}
		if s.BetsPlaced > 0 {
			sum.WinRate = float64(s.BetsWon) / float64(s.BetsPlaced)
			sum.AvgBetSize = s.BetAmount / domain.Amount(s.BetsPlaced)
		}
		out = append(out, sum)
	}
	return out
}
