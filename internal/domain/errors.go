package domain

import "errors"

// Arbiter validation failures. These are per-agent, per-round outcomes: the
// action is rejected, state is left untouched, and the simulation continues.
var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientStake   = errors.New("insufficient stake")
	ErrTokensLocked        = errors.New("tokens are locked for vote-escrow")
	ErrInvalidLockDuration = errors.New("invalid lock duration")
	ErrLockNotExpired      = errors.New("lock not expired")
	ErrMarketNotFound      = errors.New("market not found")
	ErrMarketResolved      = errors.New("market already resolved")
	ErrMarketNotResolved   = errors.New("market not resolved")
	ErrBettingClosed       = errors.New("betting closed")
	ErrBetNotFound         = errors.New("bet not found")
	ErrBetLost             = errors.New("bet lost")
	ErrProtocolPaused      = errors.New("protocol is paused")
	ErrInvalidTimestamp    = errors.New("invalid timestamp")
	ErrInvalidAction       = errors.New("invalid action")
)

// ErrArithmeticOverflow indicates the economic model produced a value outside
// the 64-bit range. This is a programming-contract violation, not a player
// mistake: the orchestrator aborts the whole run when it sees one.
var ErrArithmeticOverflow = errors.New("arithmetic overflow")

// Infrastructure errors shared across stores and caches.
var (
	ErrNotFound    = errors.New("not found")
	ErrLockHeld    = errors.New("lock already held")
	ErrRateLimited = errors.New("rate limited")
)

// validationErrs enumerates every non-fatal arbiter failure. Anything outside
// this set that escapes a transition is treated as fatal.
var validationErrs = []error{
	ErrInvalidAmount, ErrInsufficientStake, ErrTokensLocked,
	ErrInvalidLockDuration, ErrLockNotExpired, ErrMarketNotFound,
	ErrMarketResolved, ErrMarketNotResolved, ErrBettingClosed,
	ErrBetNotFound, ErrBetLost, ErrProtocolPaused, ErrInvalidTimestamp,
	ErrInvalidAction,
}

// IsValidationError reports whether err is a recoverable arbiter rejection as
// opposed to a broken-invariant fatal error.
func IsValidationError(err error) bool {
	for _, v := range validationErrs {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}
