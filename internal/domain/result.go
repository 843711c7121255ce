package domain

import "time"

// ActionRecord logs one agent's turn within a round: what it proposed and
// what the arbiter decided.
type ActionRecord struct {
	Agent     string `json:"agent"`
	Action    Action `json:"action"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	Coerced   bool   `json:"coerced,omitempty"`
	LatencyMS int64  `json:"latency_ms,omitempty"`
}

// LeaderboardEntry is one row of the per-round standings.
type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	Agent         string `json:"agent"`
	TotalPnL      PnL    `json:"total_pnl"`
	RoundPnL      PnL    `json:"round_pnl"`
	LiquidBalance Amount `json:"liquid_balance"`
	StakedAmount  Amount `json:"staked_amount"`
	OpenBets      int    `json:"open_bets"`
}

// ResolutionRecord logs one forced market resolution and its settlement.
type ResolutionRecord struct {
	MarketID    string   `json:"market_id"`
	Outcome     Outcome  `json:"outcome"`
	YesPool     Amount   `json:"yes_pool"`
	NoPool      Amount   `json:"no_pool"`
	TotalFees   Amount   `json:"total_fees"`
	CreatorFee  Amount   `json:"creator_fee"`
	WinnersPaid int      `json:"winners_paid"`
	LosersSwept int      `json:"losers_swept"`
	Winners     []string `json:"winners,omitempty"`
	Losers      []string `json:"losers,omitempty"`
}

// RoundResult is the append-only log entry for one completed round.
type RoundResult struct {
	Round       int                `json:"round"`
	Timestamp   time.Time          `json:"timestamp"`
	Actions     []ActionRecord     `json:"actions"`
	Resolutions []ResolutionRecord `json:"resolutions,omitempty"`
	Markets     []MarketInfo       `json:"markets,omitempty"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

// AgentSummary is the final per-agent report line.
type AgentSummary struct {
	Rank          int       `json:"rank"`
	Agent         string    `json:"agent"`
	TotalPnL      PnL       `json:"total_pnl"`
	FinalBalance  Amount    `json:"final_balance"`
	FinalStaked   Amount    `json:"final_staked"`
	BetsPlaced    int       `json:"bets_placed"`
	BetsWon       int       `json:"bets_won"`
	WinRate       float64   `json:"win_rate"`
	AvgBetSize    Amount    `json:"avg_bet_size"`
	BetVolume     Amount    `json:"bet_volume"`
	Badge         BadgeTier `json:"badge"`
	FailedActions int       `json:"failed_actions"`
}

// SimulationResult aggregates a whole run.
type SimulationResult struct {
	RunID      string         `json:"run_id"`
	Seed       int64          `json:"seed"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Rounds     []RoundResult  `json:"rounds"`
	Summary    []AgentSummary `json:"summary"`
	Totals     ProtocolTotals `json:"protocol_totals"`
}

// RunRecord is the persisted metadata row for a simulation run.
type RunRecord struct {
	ID         string    `json:"id"`
	Seed       int64     `json:"seed"`
	Rounds     int       `json:"rounds"`
	Agents     int       `json:"agents"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	Winner     string    `json:"winner,omitempty"`
	WinnerPnL  PnL       `json:"winner_pnl"`
}

// Run statuses.
const (
	RunStatusRunning  = "running"
	RunStatusComplete = "complete"
	RunStatusFailed   = "failed"
)
