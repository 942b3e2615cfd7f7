/*

This file contains the types describing the configured strategy set and the
per-cycle observations (positions, liquidity constraints) the allocation
engine works from.

*/

package types

import (
	"math"
	"time"
)

// StrategyID uniquely identifies a configured strategy.
type StrategyID string

// IdleStrategyID is the synthetic entry representing funds held by the pool
// itself, not deposited into any strategy.
const IdleStrategyID StrategyID = "idle"

// StrategyKind selects the adapter used to build operations for a strategy.
type StrategyKind string

const (
	KindLending   StrategyKind = "LENDING"
	KindStaking   StrategyKind = "STAKING"
	KindLiquidity StrategyKind = "LIQUIDITY"
)

// KnownKinds lists every strategy kind the system can operate.
var KnownKinds = []StrategyKind{KindLending, KindStaking, KindLiquidity}

// StrategyDescriptor is the immutable identity of one configured strategy.
// Built once at startup by the registry and never mutated afterwards.
type StrategyDescriptor struct {
	ID           StrategyID   `json:"id"`
	Kind         StrategyKind `json:"kind"`
	Address      string       `json:"address"`       // resolved on-chain identity of the strategy program state
	TokenAddress string       `json:"token_address"` // deposit token mint, used to match yield candidates
	Reserve      string       `json:"reserve"`       // account holding the pool's position in this strategy
}

// PositionSnapshot is one strategy's observed value at a point in time.
// A full snapshot set carries one entry per strategy plus one idle entry;
// it is rebuilt wholesale every cycle, never mutated in place.
type PositionSnapshot struct {
	StrategyID StrategyID `json:"strategy_id"`
	Value      uint64     `json:"value"` // native units
	ObservedAt time.Time  `json:"observed_at"`
}

// UnlimitedWithdraw is the ceiling reported by strategies without liquidity
// limits.
const UnlimitedWithdraw uint64 = math.MaxUint64

// LiquidityConstraint bounds what can be withdrawn from a strategy in one
// cycle. Derived fresh each cycle; advisory only.
type LiquidityConstraint struct {
	StrategyID          StrategyID `json:"strategy_id"`
	WithdrawableCeiling uint64     `json:"withdrawable_ceiling"`
}

// Locked returns the portion of current that cannot be released this cycle.
func (c LiquidityConstraint) Locked(current uint64) uint64 {
	if c.WithdrawableCeiling >= current {
		return 0
	}
	return current - c.WithdrawableCeiling
}

// YieldCandidate is one external market record matched against the registry.
// Transient; discarded once a winner is chosen.
type YieldCandidate struct {
	MarketID          string     `json:"market_id"`
	MatchedStrategyID StrategyID `json:"matched_strategy_id"`
	DepositAPY        float64    `json:"deposit_apy"` // fraction, e.g. 0.0525
	TotalDepositUSD   float64    `json:"total_deposit_usd"`
}

// Dilution is the drop in effective APY caused by adding ourDepositUSD to
// the market's existing deposits.
func (c YieldCandidate) Dilution(ourDepositUSD float64) float64 {
	if c.TotalDepositUSD+ourDepositUSD <= 0 {
		return 0
	}
	return c.DepositAPY - c.DepositAPY*c.TotalDepositUSD/(c.TotalDepositUSD+ourDepositUSD)
}
