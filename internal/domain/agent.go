package domain

import "time"

// VePosition is an agent's vote-escrow lock. Locked stake cannot be unstaked
// until LockEnd.
type VePosition struct {
	LockedStake Amount    `json:"locked_stake"`
	VeAmount    Amount    `json:"ve_amount"`
	LockStart   time.Time `json:"lock_start"`
	LockEnd     time.Time `json:"lock_end"`
}

// Active reports whether the lock is still in force at now.
func (v *VePosition) Active(now time.Time) bool {
	return v != nil && now.Before(v.LockEnd)
}

// AgentState is the full per-agent ledger. It is owned by the engine and
// mutated only by arbiter transitions.
type AgentState struct {
	Name          string         `json:"name"`
	Persona       string         `json:"persona,omitempty"`
	LiquidBalance Amount         `json:"liquid_balance"`
	StakedAmount  Amount         `json:"staked_amount"`
	Ve            *VePosition    `json:"ve,omitempty"`
	OpenBets      []*BetPosition `json:"open_bets"`
	TotalPnL      PnL            `json:"total_pnl"`
	RoundPnL      PnL            `json:"round_pnl"`
	BetVolume     Amount         `json:"bet_volume"`
	// BetCount only ever grows; it salts bet nonces so (market, nonce)
	// stays unique even after settlements shrink OpenBets.
	BetCount      uint64         `json:"bet_count"`
	Badge         BadgeTier      `json:"badge"`
	LastStakeAt   time.Time      `json:"last_stake_at,omitzero"`
}

// LockedStake returns the portion of staked tokens frozen by an active lock.
func (a *AgentState) LockedStake(now time.Time) Amount {
	if a.Ve.Active(now) {
		return a.Ve.LockedStake
	}
	return 0
}

// UnlockedStake returns the staked tokens available for withdrawal at now.
func (a *AgentState) UnlockedStake(now time.Time) Amount {
	locked := a.LockedStake(now)
	if locked >= a.StakedAmount {
		return 0
	}
	return a.StakedAmount - locked
}

// FindBet returns the open bet with the given id, or nil.
func (a *AgentState) FindBet(betID string) *BetPosition {
	for _, b := range a.OpenBets {
		if b.ID == betID {
			return b
		}
	}
	return nil
}

// RemoveBet drops the open bet with the given id. Returns false if absent.
func (a *AgentState) RemoveBet(betID string) bool {
	for i, b := range a.OpenBets {
		if b.ID == betID {
			a.OpenBets = append(a.OpenBets[:i], a.OpenBets[i+1:]...)
			return true
		}
	}
	return false
}
