package economics

import (
	"fmt"

	"github.com/protocolsim/idlarena/internal/domain"
)

// StakingBonusBps returns the wager boost earned by a staked balance:
// StakeBonusPerMillion bps per full million staked, saturating at
// MaxStakeBonusBps.
func StakingBonusBps(staked domain.Amount) uint64 {
	// staked/1e6 <= 1.8e13, times 100 stays far below 2^64.
	bonus := uint64(staked) / bonusUnit * StakeBonusPerMillion
	if bonus > MaxStakeBonusBps {
		return MaxStakeBonusBps
	}
	return bonus
}

// EffectiveAmount applies the staking bonus to a wager principal. The bonus
// enters the pool but is never debited from the bettor.
func EffectiveAmount(principal domain.Amount, bonusBps uint64) (domain.Amount, error) {
	mult, err := Add(bpsDenominator, bonusBps)
	if err != nil {
		return 0, err
	}
	eff, err := MulDiv(uint64(principal), mult, bpsDenominator)
	if err != nil {
		return 0, err
	}
	return domain.Amount(eff), nil
}

// VoteEscrow computes the ve amount granted for locking amount for
// lockSeconds: linear in lock length, clamped to [0, amount].
func VoteEscrow(amount domain.Amount, lockSeconds, maxLockSeconds int64) (domain.Amount, error) {
	if lockSeconds <= 0 || maxLockSeconds <= 0 {
		return 0, nil
	}
	if lockSeconds > maxLockSeconds {
		lockSeconds = maxLockSeconds
	}
	ve, err := MulDiv(uint64(amount), uint64(lockSeconds), uint64(maxLockSeconds))
	if err != nil {
		return 0, err
	}
	if ve > uint64(amount) {
		ve = uint64(amount)
	}
	return domain.Amount(ve), nil
}

// Payout is the result of settling one winning bet.
type Payout struct {
	Share domain.Amount // winner's slice of the losing pool
	Gross domain.Amount // principal + share
	Fee   domain.Amount // protocol fee on gross
	Net   domain.Amount // credited to the winner
}

// ParimutuelPayout settles a winning bet: the winner's effective stake earns
// a proportional slice of the losing pool, then the fee is taken from gross.
// Integer division truncates toward zero at both steps; that truncation is
// the protocol's rounding rule. An empty winning pool pays no share.
func ParimutuelPayout(principal, effective, winningPool, losingPool domain.Amount, feeBps uint64) (Payout, error) {
	if effective < principal {
		return Payout{}, fmt.Errorf("economics: effective %d < principal %d: %w",
			effective, principal, domain.ErrArithmeticOverflow)
	}
	var share uint64
	if winningPool > 0 {
		var err error
		share, err = MulDiv(uint64(effective), uint64(losingPool), uint64(winningPool))
		if err != nil {
			return Payout{}, err
		}
	}
	gross, err := Add(uint64(principal), share)
	if err != nil {
		return Payout{}, err
	}
	fee, err := MulDiv(gross, feeBps, bpsDenominator)
	if err != nil {
		return Payout{}, err
	}
	net, err := Sub(gross, fee)
	if err != nil {
		return Payout{}, err
	}
	return Payout{
		Share: domain.Amount(share),
		Gross: domain.Amount(gross),
		Fee:   domain.Amount(fee),
		Net:   domain.Amount(net),
	}, nil
}

// FeeShares is the four-way split of one collected fee.
type FeeShares struct {
	Staker   domain.Amount
	Creator  domain.Amount
	Treasury domain.Amount
	Burn     domain.Amount
}

// FeeSplit divides a fee 50/25/15/10 between stakers, the market creator,
// the treasury, and burning. The integer remainder goes to the treasury so
// the four shares always sum to the fee exactly.
func FeeSplit(fee domain.Amount) (FeeShares, error) {
	staker, err := MulDiv(uint64(fee), StakerShareBps, bpsDenominator)
	if err != nil {
		return FeeShares{}, err
	}
	creator, err := MulDiv(uint64(fee), CreatorShareBps, bpsDenominator)
	if err != nil {
		return FeeShares{}, err
	}
	burn, err := MulDiv(uint64(fee), BurnShareBps, bpsDenominator)
	if err != nil {
		return FeeShares{}, err
	}
	treasury := uint64(fee) - staker - creator - burn
	return FeeShares{
		Staker:   domain.Amount(staker),
		Creator:  domain.Amount(creator),
		Treasury: domain.Amount(treasury),
		Burn:     domain.Amount(burn),
	}, nil
}

// badgeThreshold pairs a cumulative bet volume with the ve grant it earns.
type badgeThreshold struct {
	tier   domain.BadgeTier
	volume domain.Amount
	grant  domain.Amount
}

var badgeThresholds = []badgeThreshold{
	{domain.BadgeDiamond, 1_000_000, 20_000_000},
	{domain.BadgePlatinum, 500_000, 5_000_000},
	{domain.BadgeGold, 100_000, 1_000_000},
	{domain.BadgeSilver, 10_000, 250_000},
	{domain.BadgeBronze, 1_000, 50_000},
}

// BadgeForVolume returns the highest badge tier a cumulative bet volume
// qualifies for, and the ve grant attached to it.
func BadgeForVolume(volume domain.Amount) (domain.BadgeTier, domain.Amount) {
	for _, t := range badgeThresholds {
		if volume >= t.volume {
			return t.tier, t.grant
		}
	}
	return domain.BadgeNone, 0
}

// GrantForBadge returns the ve grant attached to an already-held tier.
func GrantForBadge(tier domain.BadgeTier) domain.Amount {
	for _, t := range badgeThresholds {
		if t.tier == tier {
			return t.grant
		}
	}
	return 0
}
