package engine

import (
	"fmt"
	"time"

	"github.com/protocolsim/idlarena/internal/domain"
	"github.com/protocolsim/idlarena/internal/economics"
)

// Arbiter is the authoritative state-transition function. Every agent action
// passes through Apply; each transition either commits fully or leaves the
// world untouched. Validation failures come back as tagged domain errors;
// anything else (overflow above all) is fatal to the run.
type Arbiter struct {
	feeBps uint64
}

// NewArbiter returns an arbiter charging the given fee on gross winnings.
func NewArbiter(feeBps uint64) *Arbiter {
	return &Arbiter{feeBps: feeBps}
}

// Apply validates and executes one action for one agent against the world.
func (ar *Arbiter) Apply(st *State, agent *domain.AgentState, act domain.Action) error {
	if err := act.Validate(); err != nil {
		return err
	}
	if st.Totals().Paused {
		switch act.Kind {
		case domain.ActionWait, domain.ActionAnalyze:
		default:
			return fmt.Errorf("arbiter: %s: %w", act.Kind, domain.ErrProtocolPaused)
		}
	}

	switch act.Kind {
	case domain.ActionStake:
		return ar.stake(st, agent, act.Amount)
	case domain.ActionUnstake:
		return ar.unstake(st, agent, act.Amount)
	case domain.ActionLockVe:
		return ar.lockVe(st, agent, act.DurationSeconds)
	case domain.ActionUnlockVe:
		return ar.unlockVe(st, agent)
	case domain.ActionCreateMarket:
		return ar.createMarket(st, agent, act)
	case domain.ActionPlaceBet:
		return ar.placeBet(st, agent, act)
	case domain.ActionClaimWinnings:
		return ar.claimWinnings(st, agent, act.BetID)
	case domain.ActionWait, domain.ActionAnalyze:
		return nil
	default:
		return fmt.Errorf("arbiter: %w: %q", domain.ErrInvalidAction, act.Kind)
	}
}

func (ar *Arbiter) stake(st *State, agent *domain.AgentState, amount domain.Amount) error {
	if amount == 0 || amount > agent.LiquidBalance {
		return fmt.Errorf("arbiter: stake %d of %d liquid: %w",
			amount, agent.LiquidBalance, domain.ErrInvalidAmount)
	}
	staked, err := economics.Add(uint64(agent.StakedAmount), uint64(amount))
	if err != nil {
		return err
	}
	totalStaked, err := economics.Add(uint64(st.Totals().TotalStaked), uint64(amount))
	if err != nil {
		return err
	}
	agent.LiquidBalance -= amount
	agent.StakedAmount = domain.Amount(staked)
	agent.LastStakeAt = st.Now()
	st.Totals().TotalStaked = domain.Amount(totalStaked)
	return nil
}

func (ar *Arbiter) unstake(st *State, agent *domain.AgentState, amount domain.Amount) error {
	if amount == 0 {
		return fmt.Errorf("arbiter: unstake zero: %w", domain.ErrInvalidAmount)
	}
	if amount > agent.StakedAmount {
		return fmt.Errorf("arbiter: unstake %d of %d staked: %w",
			amount, agent.StakedAmount, domain.ErrInsufficientStake)
	}
	if amount > agent.UnlockedStake(st.Now()) {
		return fmt.Errorf("arbiter: unstake %d with %d unlocked: %w",
			amount, agent.UnlockedStake(st.Now()), domain.ErrTokensLocked)
	}
	liquid, err := economics.Add(uint64(agent.LiquidBalance), uint64(amount))
	if err != nil {
		return err
	}
	totalStaked, err := economics.Sub(uint64(st.Totals().TotalStaked), uint64(amount))
	if err != nil {
		return err
	}
	agent.StakedAmount -= amount
	agent.LiquidBalance = domain.Amount(liquid)
	st.Totals().TotalStaked = domain.Amount(totalStaked)
	return nil
}

// lockVe locks the agent's whole staked balance. Re-locking before expiry
// recomputes the ve amount from the current stake and overwrites the lock
// end; the supply is adjusted by the delta so no ve is silently lost.
func (ar *Arbiter) lockVe(st *State, agent *domain.AgentState, durationSeconds int64) error {
	if agent.StakedAmount == 0 {
		return fmt.Errorf("arbiter: lock with no stake: %w", domain.ErrInsufficientStake)
	}
	if durationSeconds < economics.MinLockSeconds || durationSeconds > economics.MaxLockSeconds {
		return fmt.Errorf("arbiter: lock %ds outside [%d, %d]: %w",
			durationSeconds, economics.MinLockSeconds, economics.MaxLockSeconds,
			domain.ErrInvalidLockDuration)
	}
	ve, err := economics.VoteEscrow(agent.StakedAmount, durationSeconds, economics.MaxLockSeconds)
	if err != nil {
		return err
	}
	var prior uint64
	if agent.Ve != nil {
		prior = uint64(agent.Ve.VeAmount)
	}
	supply, err := economics.Sub(uint64(st.Totals().TotalVeSupply), prior)
	if err != nil {
		return err
	}
	supply, err = economics.Add(supply, uint64(ve))
	if err != nil {
		return err
	}
	now := st.Now()
	agent.Ve = &domain.VePosition{
		LockedStake: agent.StakedAmount,
		VeAmount:    ve,
		LockStart:   now,
		LockEnd:     now.Add(time.Duration(durationSeconds) * time.Second),
	}
	st.Totals().TotalVeSupply = domain.Amount(supply)
	return nil
}

func (ar *Arbiter) unlockVe(st *State, agent *domain.AgentState) error {
	if agent.Ve == nil {
		return fmt.Errorf("arbiter: unlock with no lock: %w", domain.ErrInvalidAction)
	}
	if st.Now().Before(agent.Ve.LockEnd) {
		return fmt.Errorf("arbiter: unlock before %s: %w",
			agent.Ve.LockEnd.Format(time.RFC3339), domain.ErrLockNotExpired)
	}
	supply, err := economics.Sub(uint64(st.Totals().TotalVeSupply), uint64(agent.Ve.VeAmount))
	if err != nil {
		return err
	}
	agent.Ve = nil
	st.Totals().TotalVeSupply = domain.Amount(supply)
	return nil
}

func (ar *Arbiter) createMarket(st *State, agent *domain.AgentState, act domain.Action) error {
	if act.ResolutionOffset < economics.MinResolutionWindow {
		return fmt.Errorf("arbiter: resolution %ds out, need %ds: %w",
			act.ResolutionOffset, economics.MinResolutionWindow, domain.ErrInvalidTimestamp)
	}
	now := st.Now()
	st.AddMarket(&domain.MarketInfo{
		ID:             st.NewID(),
		Creator:        agent.Name,
		Metric:         domain.MetricCustom,
		TargetValue:    act.TargetValue,
		ResolutionTime: now.Add(time.Duration(act.ResolutionOffset) * time.Second),
		Description:    act.Description,
		CreatedAt:      now,
	})
	return nil
}

func (ar *Arbiter) placeBet(st *State, agent *domain.AgentState, act domain.Action) error {
	m := st.Market(act.MarketID)
	if m == nil {
		return fmt.Errorf("arbiter: market %s: %w", act.MarketID, domain.ErrMarketNotFound)
	}
	if m.Resolved {
		return fmt.Errorf("arbiter: market %s: %w", m.ID, domain.ErrMarketResolved)
	}
	if !m.BettingOpen(st.Now(), time.Duration(economics.BettingCloseWindow)*time.Second) {
		return fmt.Errorf("arbiter: market %s: %w", m.ID, domain.ErrBettingClosed)
	}
	if act.Amount > agent.LiquidBalance {
		return fmt.Errorf("arbiter: bet %d of %d liquid: %w",
			act.Amount, agent.LiquidBalance, domain.ErrInvalidAmount)
	}

	bonus := economics.StakingBonusBps(agent.StakedAmount)
	effective, err := economics.EffectiveAmount(act.Amount, bonus)
	if err != nil {
		return err
	}
	if _, err := economics.Add(uint64(m.Pool(act.Side)), uint64(effective)); err != nil {
		return err
	}
	volume, err := economics.Add(uint64(agent.BetVolume), uint64(act.Amount))
	if err != nil {
		return err
	}

	agent.LiquidBalance -= act.Amount
	agent.BetVolume = domain.Amount(volume)
	m.AddToPool(act.Side, effective)
	agent.OpenBets = append(agent.OpenBets, &domain.BetPosition{
		ID:              st.NewID(),
		MarketID:        m.ID,
		Owner:           agent.Name,
		Amount:          act.Amount,
		EffectiveAmount: effective,
		Side:            act.Side,
		Nonce:           agent.BetCount,
		PlacedRound:     st.Round(),
		PlacedAt:        st.Now(),
	})
	agent.BetCount++
	return nil
}

// claimWinnings settles a winning bet by hand. Losing bets fail with BetLost;
// their losses are realized automatically at resolution.
func (ar *Arbiter) claimWinnings(st *State, agent *domain.AgentState, betID string) error {
	bet := agent.FindBet(betID)
	if bet == nil {
		return fmt.Errorf("arbiter: bet %s: %w", betID, domain.ErrBetNotFound)
	}
	m := st.Market(bet.MarketID)
	if m == nil {
		return fmt.Errorf("arbiter: market %s: %w", bet.MarketID, domain.ErrMarketNotFound)
	}
	if !m.Resolved {
		return fmt.Errorf("arbiter: market %s: %w", m.ID, domain.ErrMarketNotResolved)
	}
	if domain.Outcome(bet.Side) != m.Outcome {
		return fmt.Errorf("arbiter: bet %s on %s, outcome %s: %w",
			bet.ID, bet.Side, m.Outcome, domain.ErrBetLost)
	}

	winSide := domain.Side(m.Outcome)
	payout, err := economics.ParimutuelPayout(
		bet.Amount, bet.EffectiveAmount,
		m.Pool(winSide), m.Pool(winSide.Opposite()), ar.feeBps)
	if err != nil {
		return err
	}
	if err := ar.credit(st, agent, bet, payout, m.Creator); err != nil {
		return err
	}
	agent.RemoveBet(bet.ID)
	return nil
}

// credit applies one winning payout: net to the winner, the fee split to the
// reward pool, creator, treasury, and burn.
func (ar *Arbiter) credit(st *State, agent *domain.AgentState, bet *domain.BetPosition, payout economics.Payout, creator string) error {
	liquid, err := economics.Add(uint64(agent.LiquidBalance), uint64(payout.Net))
	if err != nil {
		return err
	}
	shares, err := economics.FeeSplit(payout.Fee)
	if err != nil {
		return err
	}
	totals := st.Totals()
	rewardPool, err := economics.Add(uint64(totals.RewardPool), uint64(shares.Staker))
	if err != nil {
		return err
	}
	treasury, err := economics.Add(uint64(totals.TreasuryBalance), uint64(shares.Treasury))
	if err != nil {
		return err
	}
	burned, err := economics.Add(uint64(totals.TotalBurned), uint64(shares.Burn))
	if err != nil {
		return err
	}
	collected, err := economics.Add(uint64(totals.TotalFeesCollected), uint64(payout.Fee))
	if err != nil {
		return err
	}

	// The creator's slice goes straight to their balance; if the creator
	// is not a competitor (seeded markets) it accrues to the treasury.
	var creatorLiquid uint64
	c := st.Agent(creator)
	if c != nil {
		base := uint64(c.LiquidBalance)
		if c == agent {
			base = liquid
		}
		creatorLiquid, err = economics.Add(base, uint64(shares.Creator))
	} else {
		treasury, err = economics.Add(treasury, uint64(shares.Creator))
	}
	if err != nil {
		return err
	}

	agent.LiquidBalance = domain.Amount(liquid)
	gain := domain.PnL(payout.Net) - domain.PnL(bet.Amount)
	agent.TotalPnL += gain
	agent.RoundPnL += gain
	totals.RewardPool = domain.Amount(rewardPool)
	totals.TreasuryBalance = domain.Amount(treasury)
	totals.TotalBurned = domain.Amount(burned)
	totals.TotalFeesCollected = domain.Amount(collected)
	if c != nil {
		c.LiquidBalance = domain.Amount(creatorLiquid)
	}
	return nil
}
