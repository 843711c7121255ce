package domain

import "time"

// CompetitorSummary is what one agent is allowed to see about another.
type CompetitorSummary struct {
	Name         string    `json:"name"`
	TotalPnL     PnL       `json:"total_pnl"`
	StakedAmount Amount    `json:"staked_amount"`
	OpenBetCount int       `json:"open_bet_count"`
	Badge        BadgeTier `json:"badge"`
}

// SimulationContext is the shared read-only snapshot handed to every agent in
// a round. It is rebuilt once per round so all agents decide against the same
// view of the world.
type SimulationContext struct {
	Round       int                 `json:"round"`
	TotalRounds int                 `json:"total_rounds"`
	Timestamp   time.Time           `json:"timestamp"`
	Markets     []MarketInfo        `json:"markets"`
	Totals      ProtocolTotals      `json:"protocol_totals"`
	Competitors []CompetitorSummary `json:"competitors"`
}
