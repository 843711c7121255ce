package domain

import "time"

// BetPosition is one open parimutuel wager. EffectiveAmount is the principal
// plus the staking bonus and is always >= Amount; the bonus enters the pool
// but is never debited from the bettor.
type BetPosition struct {
	ID              string    `json:"id"`
	MarketID        string    `json:"market_id"`
	Owner           string    `json:"owner"`
	Amount          Amount    `json:"amount"`
	EffectiveAmount Amount    `json:"effective_amount"`
	Side            Side      `json:"side"`
	Nonce           uint64    `json:"nonce"`
	PlacedRound     int       `json:"placed_round"`
	PlacedAt        time.Time `json:"placed_at"`
}
