package engine

import (
	"time"

	"github.com/protocolsim/idlarena/internal/domain"
	"github.com/protocolsim/idlarena/internal/economics"
)

// ResolutionPolicy tunes the biased outcome draw for forced resolutions. The
// draw leans against the majority side so contrarian betting pays; the
// coefficients are simulation heuristics, not protocol rules.
type ResolutionPolicy struct {
	Bias  float64 // how strongly the draw leans against the heavy side
	Floor float64 // minimum probability either side keeps
}

// DefaultResolutionPolicy matches the standard contrarian tilt.
func DefaultResolutionPolicy() ResolutionPolicy {
	return ResolutionPolicy{Bias: 0.30, Floor: 0.10}
}

// Settler force-resolves markets and auto-settles every bet against them.
type Settler struct {
	arbiter *Arbiter
	policy  ResolutionPolicy
}

// NewSettler builds a settler sharing the arbiter's fee handling.
func NewSettler(arbiter *Arbiter, policy ResolutionPolicy) *Settler {
	return &Settler{arbiter: arbiter, policy: policy}
}

// pickOutcome draws the winning side. With balanced pools each side is an
// even coin; imbalance shifts probability toward the minority side, clamped
// so neither side ever drops below the floor.
func (s *Settler) pickOutcome(st *State, m *domain.MarketInfo) domain.Outcome {
	total := float64(m.YesPool) + float64(m.NoPool)
	pYes := 0.5
	if total > 0 {
		imbalance := (float64(m.YesPool) - float64(m.NoPool)) / total
		pYes = 0.5 - s.policy.Bias*imbalance
	}
	if pYes < s.policy.Floor {
		pYes = s.policy.Floor
	}
	if pYes > 1-s.policy.Floor {
		pYes = 1 - s.policy.Floor
	}
	if st.Rand().Float64() < pYes {
		return domain.OutcomeYes
	}
	return domain.OutcomeNo
}

// ResolveOldest force-resolves the oldest unresolved market and settles all
// bets against it. Returns nil if no market is open. A market that is
// already resolved is never touched again; pools are frozen at resolution.
func (s *Settler) ResolveOldest(st *State) (*domain.ResolutionRecord, error) {
	open := st.UnresolvedMarkets()
	if len(open) == 0 {
		return nil, nil
	}
	return s.Resolve(st, open[0])
}

// Resolve resolves one market exactly once and auto-settles every open bet:
// winners are credited through the payout formula, losers realize their
// principal as a loss. The creator's slice of each fee is paid inside the
// arbiter's credit path.
func (s *Settler) Resolve(st *State, m *domain.MarketInfo) (*domain.ResolutionRecord, error) {
	if m.Resolved {
		return nil, domain.ErrMarketResolved
	}
	m.Outcome = s.pickOutcome(st, m)
	m.Resolved = true
	m.ResolvedAt = st.Now()
	m.ActualValue = s.drawActualValue(st, m)

	rec := &domain.ResolutionRecord{
		MarketID: m.ID,
		Outcome:  m.Outcome,
		YesPool:  m.YesPool,
		NoPool:   m.NoPool,
	}

	winSide := domain.Side(m.Outcome)
	for _, agent := range st.Agents() {
		// Settlement removes bets from the slice; walk a copy.
		bets := make([]*domain.BetPosition, len(agent.OpenBets))
		copy(bets, agent.OpenBets)
		for _, bet := range bets {
			if bet.MarketID != m.ID {
				continue
			}
			if bet.Side == winSide {
				payout, err := economics.ParimutuelPayout(
					bet.Amount, bet.EffectiveAmount,
					m.Pool(winSide), m.Pool(winSide.Opposite()), s.arbiter.feeBps)
				if err != nil {
					return nil, err
				}
				if err := s.arbiter.credit(st, agent, bet, payout, m.Creator); err != nil {
					return nil, err
				}
				creatorFee, err := economics.FeeSplit(payout.Fee)
				if err != nil {
					return nil, err
				}
				totalFees, err := economics.Add(uint64(rec.TotalFees), uint64(payout.Fee))
				if err != nil {
					return nil, err
				}
				creatorTotal, err := economics.Add(uint64(rec.CreatorFee), uint64(creatorFee.Creator))
				if err != nil {
					return nil, err
				}
				rec.TotalFees = domain.Amount(totalFees)
				rec.CreatorFee = domain.Amount(creatorTotal)
				rec.WinnersPaid++
				rec.Winners = append(rec.Winners, agent.Name)
			} else {
				loss := domain.PnL(bet.Amount)
				agent.TotalPnL -= loss
				agent.RoundPnL -= loss
				rec.LosersSwept++
				rec.Losers = append(rec.Losers, agent.Name)
			}
			agent.RemoveBet(bet.ID)
		}
	}
	return rec, nil
}

// drawActualValue fabricates the observed metric value consistent with the
// drawn outcome: at or above target for yes, below it for no.
func (s *Settler) drawActualValue(st *State, m *domain.MarketInfo) uint64 {
	if m.TargetValue == 0 {
		return 0
	}
	jitter := uint64(st.Rand().Int63n(int64(m.TargetValue)/10 + 1))
	if m.Outcome == domain.OutcomeYes {
		return m.TargetValue + jitter
	}
	if jitter >= m.TargetValue {
		return 0
	}
	return m.TargetValue - jitter - 1
}

// SeedMarket creates a protocol-owned market so the opportunity set never
// goes empty. Seeded markets have no competitor creator; their creator fees
// accrue to the treasury.
func (s *Settler) SeedMarket(st *State, horizon time.Duration) *domain.MarketInfo {
	metrics := []domain.MetricType{domain.MetricTotalStaked, domain.MetricVeSupply, domain.MetricFeeRevenue}
	metric := metrics[st.Rand().Intn(len(metrics))]
	target := uint64(st.Rand().Int63n(900_000) + 100_000)
	m := &domain.MarketInfo{
		ID:             st.NewID(),
		Creator:        "protocol",
		Metric:         metric,
		TargetValue:    target,
		ResolutionTime: st.Now().Add(horizon),
		Description:    "will " + string(metric) + " reach the target before resolution",
		CreatedAt:      st.Now(),
	}
	st.AddMarket(m)
	return m
}
