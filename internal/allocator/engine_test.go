package allocator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenvault/svm/internal/types"
	"github.com/lumenvault/svm/internal/yieldfeed"
)

type stubResolver struct {
	decision yieldfeed.Decision
}

func (s stubResolver) ResolveWinner(context.Context, float64) yieldfeed.Decision {
	return s.decision
}

func positions(vals map[types.StrategyID]uint64) []types.PositionSnapshot {
	var out []types.PositionSnapshot
	for id, v := range vals {
		out = append(out, types.PositionSnapshot{StrategyID: id, Value: v})
	}
	return out
}

func sumTargets(vec types.AllocationVector) uint64 {
	var s uint64
	for _, e := range vec.Entries {
		s += e.Target
	}
	return s
}

func TestEqualWeightEvenSplit(t *testing.T) {
	vec := ComputeEqualWeight(Input{
		Total:     300,
		Positions: positions(map[types.StrategyID]uint64{"a": 100, "b": 100, "c": 100}),
	})

	for _, e := range vec.Entries {
		assert.Equal(t, uint64(100), e.Target, "strategy %s", e.StrategyID)
	}
	assert.Equal(t, uint64(300), sumTargets(vec))
}

func TestEqualWeightRemainderToFirstByID(t *testing.T) {
	vec := ComputeEqualWeight(Input{
		Total:     100,
		Positions: positions(map[types.StrategyID]uint64{"c": 100, "a": 0, "b": 0}),
	})

	assert.Equal(t, uint64(34), vec.Target("a"))
	assert.Equal(t, uint64(33), vec.Target("b"))
	assert.Equal(t, uint64(33), vec.Target("c"))
	assert.Equal(t, uint64(100), sumTargets(vec))
}

func TestEqualWeightPinsLockedAboveShare(t *testing.T) {
	// "b" holds 150 but may only withdraw 10, so it stays pinned at 140 and
	// the other two split the remaining 160.
	vec := ComputeEqualWeight(Input{
		Total:     300,
		Positions: positions(map[types.StrategyID]uint64{"a": 100, "b": 150, "c": 50}),
		Constraints: []types.LiquidityConstraint{
			{StrategyID: "b", WithdrawableCeiling: 10},
		},
	})

	assert.Equal(t, uint64(140), vec.Target("b"))
	assert.Equal(t, uint64(80), vec.Target("a"))
	assert.Equal(t, uint64(80), vec.Target("c"))
	assert.Equal(t, uint64(300), sumTargets(vec))
}

func TestEqualWeightLockedClampedToCurrent(t *testing.T) {
	// Ceiling of zero on a strategy holding less than its even share: the
	// pin is its actual balance, never more.
	vec := ComputeEqualWeight(Input{
		Total:     300,
		Positions: positions(map[types.StrategyID]uint64{"a": 250, "b": 50}),
		Constraints: []types.LiquidityConstraint{
			{StrategyID: "b", WithdrawableCeiling: 0},
		},
	})

	assert.Equal(t, uint64(150), vec.Target("a"))
	assert.Equal(t, uint64(150), vec.Target("b"))
	assert.Equal(t, uint64(300), sumTargets(vec))
}

func TestEqualWeightIdleExcludedFromTargets(t *testing.T) {
	vec := ComputeEqualWeight(Input{
		Total: 200,
		Positions: positions(map[types.StrategyID]uint64{
			types.IdleStrategyID: 200, "a": 0, "b": 0,
		}),
	})

	require.Len(t, vec.Entries, 2)
	assert.Equal(t, uint64(100), vec.Target("a"))
	assert.Equal(t, uint64(100), vec.Target("b"))
	assert.Equal(t, uint64(0), vec.Target(types.IdleStrategyID))
}

func TestWinnerTakesAllUnconstrained(t *testing.T) {
	vec := ComputeWinnerTarget(Input{
		Total:     300,
		Positions: positions(map[types.StrategyID]uint64{"a": 100, "b": 100, "c": 100}),
	}, "b")

	assert.Equal(t, uint64(0), vec.Target("a"))
	assert.Equal(t, uint64(300), vec.Target("b"))
	assert.Equal(t, uint64(0), vec.Target("c"))
}

func TestWinnerRespectsLockedBalances(t *testing.T) {
	// "c" can only release 30 of its 100; the winner absorbs the rest.
	vec := ComputeWinnerTarget(Input{
		Total:     300,
		Positions: positions(map[types.StrategyID]uint64{"a": 100, "b": 100, "c": 100}),
		Constraints: []types.LiquidityConstraint{
			{StrategyID: "c", WithdrawableCeiling: 30},
		},
	}, "a")

	assert.Equal(t, uint64(230), vec.Target("a"))
	assert.Equal(t, uint64(0), vec.Target("b"))
	assert.Equal(t, uint64(70), vec.Target("c"))
	assert.Equal(t, uint64(300), sumTargets(vec))
}

func TestComputeTargetYieldOptimizedWinner(t *testing.T) {
	e := NewEngine(types.PolicyYieldOptimized, stubResolver{
		decision: yieldfeed.Decision{Winner: "a", HasWinner: true, WinnerAPY: 0.1},
	})

	vec, err := e.ComputeTarget(context.Background(), Input{
		Total:     100,
		Positions: positions(map[types.StrategyID]uint64{"a": 0, "b": 100}),
	})
	require.NoError(t, err)

	assert.Equal(t, types.PolicyYieldOptimized, vec.Policy)
	assert.Equal(t, types.StrategyID("a"), vec.Winner)
	assert.Equal(t, types.FallbackNone, vec.Fallback)
	assert.Equal(t, uint64(100), vec.Target("a"))
}

func TestComputeTargetFallsBackToEqualWeight(t *testing.T) {
	e := NewEngine(types.PolicyYieldOptimized, stubResolver{
		decision: yieldfeed.Decision{Reason: types.FallbackAPIFail},
	})

	vec, err := e.ComputeTarget(context.Background(), Input{
		Total:     100,
		Positions: positions(map[types.StrategyID]uint64{"a": 0, "b": 100}),
	})
	require.NoError(t, err)

	assert.Equal(t, types.FallbackAPIFail, vec.Fallback)
	assert.Equal(t, uint64(50), vec.Target("a"))
	assert.Equal(t, uint64(50), vec.Target("b"))
	assert.Empty(t, vec.Winner)
}

func TestComputeTargetNoStrategies(t *testing.T) {
	e := NewEngine(types.PolicyEqualWeight, nil)
	_, err := e.ComputeTarget(context.Background(), Input{Total: 100})
	assert.ErrorIs(t, err, ErrNoStrategies)
}
