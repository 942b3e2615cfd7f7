/*

This file contains the allocation decision types: the policy input, the
target vector produced by the allocation engine, and the move operations
derived from it by the planner.

*/

package types

// AllocationPolicy selects how the target vector is computed.
type AllocationPolicy string

const (
	PolicyEqualWeight    AllocationPolicy = "equal_weight"
	PolicyYieldOptimized AllocationPolicy = "yield_optimized"
)

// FallbackReason distinguishes why the yield policy fell back to
// equal-weight for a cycle. Empty when no fallback occurred.
type FallbackReason string

const (
	FallbackNone        FallbackReason = ""
	FallbackNoMatch     FallbackReason = "no_match"
	FallbackAllFiltered FallbackReason = "all_filtered"
	FallbackAPIFail     FallbackReason = "api_fail"
)

// AllocationEntry is one strategy's target value in native units.
type AllocationEntry struct {
	StrategyID StrategyID `json:"strategy_id"`
	Target     uint64     `json:"target"`
}

// AllocationVector is the ordered target allocation, one entry per strategy
// plus idle. Invariant: the entry sum equals the snapshot sum (value is
// moved, never created or destroyed). Owned exclusively by the allocation
// engine for the duration of one cycle.
type AllocationVector struct {
	Entries  []AllocationEntry `json:"entries"`
	Policy   AllocationPolicy  `json:"policy"`
	Fallback FallbackReason    `json:"fallback,omitempty"`
	Winner   StrategyID        `json:"winner,omitempty"`
}

// Target returns the target value for a strategy, zero if absent.
func (v AllocationVector) Target(id StrategyID) uint64 {
	for _, e := range v.Entries {
		if e.StrategyID == id {
			return e.Target
		}
	}
	return 0
}

// Total returns the sum of all entry targets.
func (v AllocationVector) Total() uint64 {
	var sum uint64
	for _, e := range v.Entries {
		sum += e.Target
	}
	return sum
}

// OperationKind is the direction of a rebalance operation.
type OperationKind string

const (
	OpWithdraw OperationKind = "WITHDRAW"
	OpDeposit  OperationKind = "DEPOSIT"
)

// RebalanceOperation is one move derived from target minus current.
// Amount is strictly positive; zero-delta strategies emit no operation.
type RebalanceOperation struct {
	StrategyID StrategyID    `json:"strategy_id"`
	Kind       OperationKind `json:"kind"`
	Amount     uint64        `json:"amount"`
	// WithdrawAll marks a full exit: the executor withdraws the entire
	// on-chain balance rather than Amount, absorbing yield accrued since
	// the snapshot.
	WithdrawAll bool `json:"withdraw_all,omitempty"`
}
