package types

import "errors"

// Engine error taxonomy. Venue-level errors (unreachable, liquidity, expired
// route) are handled by venue exclusion and retry; they only surface as
// ErrNoRouteAvailable or ErrSubmissionExhausted once every option is spent.
var (
	// ErrVenueUnreachable indicates a venue call failed or timed out.
	ErrVenueUnreachable = errors.New("venue unreachable")

	// ErrInsufficientLiquidity indicates a venue cannot fill the requested size.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")

	// ErrRouteExpired indicates a quote's route is no longer buildable.
	ErrRouteExpired = errors.New("route expired")

	// ErrTransactionBuild indicates a venue failed to build a swap transaction.
	ErrTransactionBuild = errors.New("transaction build failed")

	// ErrNoRouteAvailable indicates no venue returned an executable quote.
	ErrNoRouteAvailable = errors.New("no route available")

	// ErrInvalidTransition indicates an order state transition lost a
	// compare-and-swap race or does not follow the state graph.
	ErrInvalidTransition = errors.New("invalid order state transition")

	// ErrNotFound indicates the order id is unknown to the order book.
	ErrNotFound = errors.New("order not found")

	// ErrSlippageExceeded indicates the fresh quote's price impact is above
	// the configured tolerance. Never retried silently.
	ErrSlippageExceeded = errors.New("slippage tolerance exceeded")

	// ErrSubmissionExhausted indicates every submission attempt failed.
	ErrSubmissionExhausted = errors.New("submission attempts exhausted")

	// ErrSignerUnavailable indicates the signing collaborator is unreachable.
	ErrSignerUnavailable = errors.New("signer unavailable")

	// ErrUserRejected indicates the account holder declined to sign.
	ErrUserRejected = errors.New("signature rejected by user")
)
