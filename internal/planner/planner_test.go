package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenvault/svm/internal/types"
)

func snap(vals map[types.StrategyID]uint64) []types.PositionSnapshot {
	var out []types.PositionSnapshot
	for id, v := range vals {
		out = append(out, types.PositionSnapshot{StrategyID: id, Value: v})
	}
	return out
}

func vector(targets map[types.StrategyID]uint64) types.AllocationVector {
	var vec types.AllocationVector
	for id, v := range targets {
		vec.Entries = append(vec.Entries, types.AllocationEntry{StrategyID: id, Target: v})
	}
	return vec
}

func TestWithdrawalsPrecedeDeposits(t *testing.T) {
	p := New(0)
	ops := p.Plan(
		snap(map[types.StrategyID]uint64{"a": 500_000, "b": 100_000, "c": 0}),
		vector(map[types.StrategyID]uint64{"a": 200_000, "b": 200_000, "c": 200_000}),
	)

	require.NotEmpty(t, ops)
	seenDeposit := false
	for _, op := range ops {
		if op.Kind == types.OpDeposit {
			seenDeposit = true
		}
		if seenDeposit {
			assert.Equal(t, types.OpDeposit, op.Kind, "withdrawal after a deposit")
		}
	}
	assert.Equal(t, types.OpWithdraw, ops[0].Kind)
}

func TestZeroTargetBecomesFullExit(t *testing.T) {
	p := New(0)
	ops := p.Plan(
		snap(map[types.StrategyID]uint64{"a": 300_000, "b": 0}),
		vector(map[types.StrategyID]uint64{"a": 0, "b": 300_000}),
	)

	require.Len(t, ops, 2)
	assert.True(t, ops[0].WithdrawAll)
	assert.Equal(t, types.UnlimitedWithdraw, ops[0].Amount)
	assert.Equal(t, types.StrategyID("a"), ops[0].StrategyID)
	assert.Equal(t, types.OpDeposit, ops[1].Kind)
}

func TestFeeHaircutTrimsLargestDeposit(t *testing.T) {
	p := New(0)
	ops := p.Plan(
		snap(map[types.StrategyID]uint64{"a": 400_000, "b": 200_000, "c": 0, "d": 0}),
		vector(map[types.StrategyID]uint64{"a": 100_000, "b": 100_000, "c": 300_000, "d": 100_000}),
	)

	// Two withdrawals reserve 2 * FeeQuantumNative, all taken from the
	// larger deposit.
	var deposits []types.RebalanceOperation
	for _, op := range ops {
		if op.Kind == types.OpDeposit {
			deposits = append(deposits, op)
		}
	}
	require.Len(t, deposits, 2)
	assert.Equal(t, uint64(300_000-2*FeeQuantumNative), deposits[0].Amount)
	assert.Equal(t, uint64(100_000), deposits[1].Amount)
}

func TestDustFloorMakesReplayNoop(t *testing.T) {
	p := New(10_000)

	// Post-settlement state is within fee dust of the target; the plan must
	// come back empty so a re-run does not churn.
	ops := p.Plan(
		snap(map[types.StrategyID]uint64{"a": 199_000, "b": 201_000}),
		vector(map[types.StrategyID]uint64{"a": 200_000, "b": 200_000}),
	)
	assert.Empty(t, ops)
}

func TestDepositConsumedByReserveDropped(t *testing.T) {
	p := New(10_000)
	ops := p.Plan(
		snap(map[types.StrategyID]uint64{"a": 50_000, "b": 38_000}),
		vector(map[types.StrategyID]uint64{"a": 38_000, "b": 50_000}),
	)

	// The 12_000 deposit loses one fee quantum and lands below the floor.
	require.Len(t, ops, 1)
	assert.Equal(t, types.OpWithdraw, ops[0].Kind)
}

func TestAlignedPortfolioYieldsNothing(t *testing.T) {
	p := New(0)
	ops := p.Plan(
		snap(map[types.StrategyID]uint64{"a": 100, "b": 100}),
		vector(map[types.StrategyID]uint64{"a": 100, "b": 100}),
	)
	assert.Empty(t, ops)
}

func TestIdlePositionIgnoredInDiff(t *testing.T) {
	p := New(0)
	ops := p.Plan(
		snap(map[types.StrategyID]uint64{types.IdleStrategyID: 100_000, "a": 0}),
		vector(map[types.StrategyID]uint64{"a": 100_000}),
	)

	require.Len(t, ops, 1)
	assert.Equal(t, types.OpDeposit, ops[0].Kind)
	assert.Equal(t, types.StrategyID("a"), ops[0].StrategyID)
}
