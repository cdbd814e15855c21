package core

import "errors"

// Error kinds surfaced by the exchange core. Handlers map these to HTTP
// statuses with errors.Is; services wrap them with context via fmt.Errorf.
var (
	// ErrNotFound means the referenced entity id is unknown.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized means the caller presented no (or an invalid) identity.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden means the caller's role is insufficient for the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidAmount means a deposit or withdrawal of a non-positive amount.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientFunds means the wallet cannot cover a debit.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientShares means a sell request exceeds the position.
	ErrInsufficientShares = errors.New("insufficient shares")

	// ErrMarketClosed means the market is not active for trading.
	ErrMarketClosed = errors.New("market closed")

	// ErrOutOfWindow means now is outside the market's trading window.
	ErrOutOfWindow = errors.New("outside trading window")

	// ErrInvalidTrade means a malformed trade request: missing both amount
	// and shares, non-positive values, a sell of zero shares, or an AMM
	// quote that cannot be satisfied.
	ErrInvalidTrade = errors.New("invalid trade")

	// ErrValidation means a malformed request outside the trade path:
	// bad registration input, bad market fields, unknown enum values.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition means a disallowed market status move.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrConflict means an optimistic-concurrency or constraint clash,
	// e.g. a duplicate email or a lost write race.
	ErrConflict = errors.New("conflict")

	// ErrInternal means an unexpected persistence failure. Handlers log it
	// with context and surface a generic message to the caller.
	ErrInternal = errors.New("internal error")
)
