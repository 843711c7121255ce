// Package economics implements the protocol's settlement arithmetic: staking
// bonuses, vote-escrow accrual, parimutuel payouts, and fee distribution.
// Everything here is pure and overflow-checked; an overflow means the model
// is broken and the run must abort.
package economics

// Lock duration bounds for vote-escrow positions.
const (
	MinLockSeconds int64 = 604_800     // 1 week
	MaxLockSeconds int64 = 126_144_000 // 4 years
)

// Betting fees and their distribution, in basis points of the fee taken.
const (
	BetFeeBps uint64 = 300 // 3% of gross winnings

	StakerShareBps   uint64 = 5000
	CreatorShareBps  uint64 = 2500
	TreasuryShareBps uint64 = 1500
	BurnShareBps     uint64 = 1000
)

// Staking bonus: 1 bps of wager boost per full million staked, capped at 50%.
const (
	StakeBonusPerMillion uint64 = 100
	MaxStakeBonusBps     uint64 = 5000
	bonusUnit            uint64 = 1_000_000
)

// Market timing windows, in seconds.
const (
	MinResolutionWindow int64 = 3600 // markets must resolve at least 1h out
	BettingCloseWindow  int64 = 300  // bets stop 5m before resolution
)

const bpsDenominator uint64 = 10_000
