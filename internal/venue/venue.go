// Package venue provides the uniform adapter contract for liquidity sources
// and the health bookkeeping shared by all of them. New venues are added by
// implementing Adapter, never by branching on venue name in shared logic.
package venue

import (
	"context"

	"github.com/dcastillo/soltrade/pkg/types"
)

// Adapter is the capability set of one liquidity source. Implementations
// must be side-effect free beyond the outbound call and must not mutate
// shared state; every call is bound by the adapter's per-venue timeout.
type Adapter interface {
	// ID returns the stable venue identifier used for health tracking,
	// routing exclusion and receipts.
	ID() string

	// Quote prices a swap of amount raw input units.
	// Fails with types.ErrVenueUnreachable or types.ErrInsufficientLiquidity.
	Quote(ctx context.Context, pair types.Pair, amount uint64, side types.Side) (*types.Quote, error)

	// BuildTransaction turns a previously fetched quote into an unsigned
	// transaction for the given signer public key.
	// Fails with types.ErrRouteExpired or types.ErrTransactionBuild.
	BuildTransaction(ctx context.Context, quote *types.Quote, signerPublicKey string) (*types.UnsignedTransaction, error)
}
