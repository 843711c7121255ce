package domain

import "fmt"

// ActionKind is the closed set of moves an agent may propose.
type ActionKind string

const (
	ActionStake         ActionKind = "STAKE"
	ActionUnstake       ActionKind = "UNSTAKE"
	ActionLockVe        ActionKind = "LOCK_VE"
	ActionUnlockVe      ActionKind = "UNLOCK_VE"
	ActionCreateMarket  ActionKind = "CREATE_MARKET"
	ActionPlaceBet      ActionKind = "PLACE_BET"
	ActionClaimWinnings ActionKind = "CLAIM_WINNINGS"
	ActionWait          ActionKind = "WAIT"
	ActionAnalyze       ActionKind = "ANALYZE"
)

// Action is a proposed state transition. It is a flat tagged union: Kind
// selects which parameter fields are meaningful. Decision backends return it
// as JSON; the adapter schema-validates it before the arbiter sees it.
type Action struct {
	Kind             ActionKind `json:"action"`
	Amount           Amount     `json:"amount,omitempty"`
	DurationSeconds  int64      `json:"duration_seconds,omitempty"`
	MarketID         string     `json:"market_id,omitempty"`
	Side             Side       `json:"side,omitempty"`
	BetID            string     `json:"bet_id,omitempty"`
	TargetValue      uint64     `json:"target_value,omitempty"`
	ResolutionOffset int64      `json:"resolution_offset,omitempty"`
	Description      string     `json:"description,omitempty"`
	Rationale        string     `json:"rationale,omitempty"`
}

// WaitAction builds the canonical safe no-op with a diagnostic reason.
func WaitAction(reason string) Action {
	return Action{Kind: ActionWait, Rationale: reason}
}

// Validate checks that the parameters required by the action kind are present
// and well-formed. It does not consult agent or market state.
func (a Action) Validate() error {
	switch a.Kind {
	case ActionStake, ActionUnstake:
		if a.Amount == 0 {
			return fmt.Errorf("%s: %w: amount must be positive", a.Kind, ErrInvalidAction)
		}
	case ActionLockVe:
		if a.DurationSeconds <= 0 {
			return fmt.Errorf("%s: %w: duration must be positive", a.Kind, ErrInvalidAction)
		}
	case ActionUnlockVe:
		// no parameters
	case ActionCreateMarket:
		if a.ResolutionOffset <= 0 {
			return fmt.Errorf("%s: %w: resolution offset must be positive", a.Kind, ErrInvalidAction)
		}
		if a.Description == "" {
			return fmt.Errorf("%s: %w: description required", a.Kind, ErrInvalidAction)
		}
	case ActionPlaceBet:
		if a.MarketID == "" {
			return fmt.Errorf("%s: %w: market_id required", a.Kind, ErrInvalidAction)
		}
		if a.Amount == 0 {
			return fmt.Errorf("%s: %w: amount must be positive", a.Kind, ErrInvalidAction)
		}
		if !a.Side.Valid() {
			return fmt.Errorf("%s: %w: side must be yes or no", a.Kind, ErrInvalidAction)
		}
	case ActionClaimWinnings:
		if a.BetID == "" {
			return fmt.Errorf("%s: %w: bet_id required", a.Kind, ErrInvalidAction)
		}
	case ActionWait, ActionAnalyze:
		// always valid
	default:
		return fmt.Errorf("%w: unknown action kind %q", ErrInvalidAction, a.Kind)
	}
	return nil
}
