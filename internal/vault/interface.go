// Package vault reads the pool's custodial state: idle balance, per-strategy
// positions and present withdrawal constraints.
package vault

import (
	"context"

	"github.com/lumenvault/svm/internal/types"
)

// Manager is the read surface the rebalance engine works against. The live
// implementation queries the chain; tests substitute a fake.
type Manager interface {
	// Positions returns every registered strategy's current value plus the
	// idle bucket, each under its strategy id.
	Positions(ctx context.Context) ([]types.PositionSnapshot, error)
	// Constraints returns the withdrawal ceilings currently in force. A
	// strategy with no entry is unconstrained.
	Constraints(ctx context.Context) ([]types.LiquidityConstraint, error)
	// TotalValue is the sum over Positions including idle.
	TotalValue(ctx context.Context) (uint64, error)
}
