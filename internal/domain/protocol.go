package domain

// BadgeTier is a cumulative bet-volume achievement level. Higher tiers grant
// larger ve amounts; a new tier replaces the prior tier's grant.
type BadgeTier int

const (
	BadgeNone BadgeTier = iota
	BadgeBronze
	BadgeSilver
	BadgeGold
	BadgePlatinum
	BadgeDiamond
)

var badgeNames = map[BadgeTier]string{
	BadgeNone:     "none",
	BadgeBronze:   "bronze",
	BadgeSilver:   "silver",
	BadgeGold:     "gold",
	BadgePlatinum: "platinum",
	BadgeDiamond:  "diamond",
}

func (b BadgeTier) String() string {
	if n, ok := badgeNames[b]; ok {
		return n
	}
	return "none"
}

// MarshalJSON encodes the tier by name.
func (b BadgeTier) MarshalJSON() ([]byte, error) {
	return []byte(`"` + b.String() + `"`), nil
}

// UnmarshalJSON decodes a tier name; unknown names map to none.
func (b *BadgeTier) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	for tier, name := range badgeNames {
		if name == s {
			*b = tier
			return nil
		}
	}
	*b = BadgeNone
	return nil
}

// ProtocolTotals mirrors the protocol-wide accounting that settlement reads
// and writes: aggregate stake, ve supply, and where fees went.
type ProtocolTotals struct {
	TotalStaked        Amount `json:"total_staked"`
	TotalVeSupply      Amount `json:"total_ve_supply"`
	RewardPool         Amount `json:"reward_pool"`
	TotalFeesCollected Amount `json:"total_fees_collected"`
	TreasuryBalance    Amount `json:"treasury_balance"`
	TotalBurned        Amount `json:"total_burned"`
	Paused             bool   `json:"paused"`
}
