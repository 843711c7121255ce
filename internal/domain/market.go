package domain

import "time"

// Side is the direction of a parimutuel bet.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Valid reports whether s is a known side.
func (s Side) Valid() bool { return s == SideYes || s == SideNo }

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// Outcome is a market's resolution result. Unset until the market resolves.
type Outcome string

const (
	OutcomeUnset Outcome = ""
	OutcomeYes   Outcome = "yes"
	OutcomeNo    Outcome = "no"
)

// MetricType identifies what protocol quantity a market predicts.
type MetricType string

const (
	MetricTotalStaked MetricType = "total_staked"
	MetricVeSupply    MetricType = "ve_supply"
	MetricFeeRevenue  MetricType = "fee_revenue"
	MetricCustom      MetricType = "custom"
)

// MarketInfo is one parimutuel prediction market. Pools only grow until
// resolution; once Resolved is set the market is immutable.
type MarketInfo struct {
	ID             string     `json:"id"`
	Creator        string     `json:"creator"`
	Metric         MetricType `json:"metric"`
	TargetValue    uint64     `json:"target_value"`
	ResolutionTime time.Time  `json:"resolution_time"`
	Description    string     `json:"description"`
	YesPool        Amount     `json:"yes_pool"`
	NoPool         Amount     `json:"no_pool"`
	Resolved       bool       `json:"resolved"`
	Outcome        Outcome    `json:"outcome,omitempty"`
	ActualValue    uint64     `json:"actual_value,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ResolvedAt     time.Time  `json:"resolved_at,omitzero"`
}

// Pool returns the pool for the given side.
func (m *MarketInfo) Pool(s Side) Amount {
	if s == SideYes {
		return m.YesPool
	}
	return m.NoPool
}

// AddToPool grows the given side's pool. Callers must have checked overflow.
func (m *MarketInfo) AddToPool(s Side, amt Amount) {
	if s == SideYes {
		m.YesPool += amt
	} else {
		m.NoPool += amt
	}
}

// BettingOpen reports whether bets are still accepted at now. Betting closes
// a fixed window before the scheduled resolution time.
func (m *MarketInfo) BettingOpen(now time.Time, closeWindow time.Duration) bool {
	return !m.Resolved && now.Before(m.ResolutionTime.Add(-closeWindow))
}
