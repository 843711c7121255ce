package economics

import (
	"errors"
	"math"
	"testing"

	"github.com/protocolsim/idlarena/internal/domain"
)

func TestStakingBonusBps(t *testing.T) {
	tests := []struct {
		name   string
		staked domain.Amount
		want   uint64
	}{
		{"zero", 0, 0},
		{"below one million", 999_999, 0},
		{"one million", 1_000_000, 100},
		{"ten million", 10_000_000, 1000},
		{"at cap", 50_000_000, 5000},
		{"beyond cap", 80_000_000, 5000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StakingBonusBps(tt.staked); got != tt.want {
				t.Errorf("StakingBonusBps(%d) = %d, want %d", tt.staked, got, tt.want)
			}
		})
	}
}

func TestEffectiveAmount(t *testing.T) {
	got, err := EffectiveAmount(100, 1000)
	if err != nil {
		t.Fatalf("EffectiveAmount: %v", err)
	}
	if got != 110 {
		t.Errorf("EffectiveAmount(100, 1000 bps) = %d, want 110", got)
	}

	got, err = EffectiveAmount(100, 0)
	if err != nil {
		t.Fatalf("EffectiveAmount: %v", err)
	}
	if got != 100 {
		t.Errorf("EffectiveAmount(100, 0 bps) = %d, want 100", got)
	}
}

func TestVoteEscrow(t *testing.T) {
	tests := []struct {
		name    string
		amount  domain.Amount
		lock    int64
		maxLock int64
		want    domain.Amount
	}{
		{"full lock grants full amount", 1000, MaxLockSeconds, MaxLockSeconds, 1000},
		{"half lock grants half", 1000, MaxLockSeconds / 2, MaxLockSeconds, 500},
		{"one week of four years", 1_000_000, MinLockSeconds, MaxLockSeconds, 4794},
		{"zero lock", 1000, 0, MaxLockSeconds, 0},
		{"lock beyond max clamps", 1000, MaxLockSeconds * 2, MaxLockSeconds, 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := VoteEscrow(tt.amount, tt.lock, tt.maxLock)
			if err != nil {
				t.Fatalf("VoteEscrow: %v", err)
			}
			if got != tt.want {
				t.Errorf("VoteEscrow(%d, %d, %d) = %d, want %d",
					tt.amount, tt.lock, tt.maxLock, got, tt.want)
			}
		})
	}
}

func TestParimutuelPayoutWorkedExample(t *testing.T) {
	// principal 100 with a 10% bonus against a 1000 winning pool and a
	// 500 losing pool at a 3% fee.
	p, err := ParimutuelPayout(100, 110, 1000, 500, 300)
	if err != nil {
		t.Fatalf("ParimutuelPayout: %v", err)
	}
	if p.Share != 55 {
		t.Errorf("share = %d, want 55", p.Share)
	}
	if p.Gross != 155 {
		t.Errorf("gross = %d, want 155", p.Gross)
	}
	if p.Fee != 4 {
		t.Errorf("fee = %d, want 4", p.Fee)
	}
	if p.Net != 151 {
		t.Errorf("net = %d, want 151", p.Net)
	}
}

func TestParimutuelPayoutEmptyWinningPool(t *testing.T) {
	p, err := ParimutuelPayout(100, 110, 0, 500, 300)
	if err != nil {
		t.Fatalf("ParimutuelPayout: %v", err)
	}
	if p.Share != 0 {
		t.Errorf("share = %d, want 0 with empty winning pool", p.Share)
	}
	if p.Gross != 100 {
		t.Errorf("gross = %d, want 100", p.Gross)
	}
}

func TestParimutuelPayoutRejectsEffectiveBelowPrincipal(t *testing.T) {
	_, err := ParimutuelPayout(100, 99, 1000, 500, 300)
	if !errors.Is(err, domain.ErrArithmeticOverflow) {
		t.Errorf("err = %v, want ErrArithmeticOverflow", err)
	}
}

func TestFeeSplitSumsExactly(t *testing.T) {
	fees := []domain.Amount{0, 1, 3, 7, 99, 100, 10_000, 123_457, math.MaxUint32}
	for _, fee := range fees {
		s, err := FeeSplit(fee)
		if err != nil {
			t.Fatalf("FeeSplit(%d): %v", fee, err)
		}
		sum := s.Staker + s.Creator + s.Treasury + s.Burn
		if sum != fee {
			t.Errorf("FeeSplit(%d) shares sum to %d", fee, sum)
		}
	}

	s, err := FeeSplit(10_000)
	if err != nil {
		t.Fatalf("FeeSplit: %v", err)
	}
	if s.Staker != 5000 || s.Creator != 2500 || s.Treasury != 1500 || s.Burn != 1000 {
		t.Errorf("FeeSplit(10000) = %+v, want 5000/2500/1500/1000", s)
	}
}

func TestBadgeForVolume(t *testing.T) {
	tests := []struct {
		volume domain.Amount
		tier   domain.BadgeTier
		grant  domain.Amount
	}{
		{0, domain.BadgeNone, 0},
		{999, domain.BadgeNone, 0},
		{1_000, domain.BadgeBronze, 50_000},
		{10_000, domain.BadgeSilver, 250_000},
		{100_000, domain.BadgeGold, 1_000_000},
		{500_000, domain.BadgePlatinum, 5_000_000},
		{2_000_000, domain.BadgeDiamond, 20_000_000},
	}
	for _, tt := range tests {
		tier, grant := BadgeForVolume(tt.volume)
		if tier != tt.tier || grant != tt.grant {
			t.Errorf("BadgeForVolume(%d) = (%v, %d), want (%v, %d)",
				tt.volume, tier, grant, tt.tier, tt.grant)
		}
	}
}
