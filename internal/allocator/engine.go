// Package allocator computes target allocation vectors from the current
// portfolio state under the active policy.
package allocator

import (
	"context"
	"errors"
	"sort"

	"github.com/rs/zerolog"

	"github.com/lumenvault/svm/internal/logger"
	"github.com/lumenvault/svm/internal/types"
	"github.com/lumenvault/svm/internal/utils"
	"github.com/lumenvault/svm/internal/yieldfeed"
)

var ErrNoStrategies = errors.New("no strategies to allocate across")

// WinnerResolver yields the single best strategy for the yield-optimized
// policy. Satisfied by yieldfeed.Resolver.
type WinnerResolver interface {
	ResolveWinner(ctx context.Context, totalValueUSD float64) yieldfeed.Decision
}

// Engine turns portfolio snapshots into allocation targets.
type Engine struct {
	policy   types.AllocationPolicy
	resolver WinnerResolver
	log      zerolog.Logger
}

func NewEngine(policy types.AllocationPolicy, resolver WinnerResolver) *Engine {
	return &Engine{
		policy:   policy,
		resolver: resolver,
		log:      logger.GetForComponent("allocator"),
	}
}

// Input is everything one allocation decision needs: current positions,
// present withdrawal constraints and the pool's total value in native units.
type Input struct {
	Total       uint64
	Positions   []types.PositionSnapshot
	Constraints []types.LiquidityConstraint
	// TotalUSD is only consulted by the yield-optimized policy, for the
	// dilution filter.
	TotalUSD float64
}

// ComputeTarget produces the allocation vector for this cycle. Under the
// yield-optimized policy a failed winner resolution falls back to equal
// weight, recording the reason.
func (e *Engine) ComputeTarget(ctx context.Context, in Input) (types.AllocationVector, error) {
	if len(in.Positions) == 0 {
		return types.AllocationVector{}, ErrNoStrategies
	}

	if e.policy == types.PolicyYieldOptimized {
		decision := e.resolver.ResolveWinner(ctx, in.TotalUSD)
		if decision.HasWinner {
			vec := ComputeWinnerTarget(in, decision.Winner)
			vec.Policy = types.PolicyYieldOptimized
			vec.Winner = decision.Winner
			return vec, nil
		}
		e.log.Warn().
			Str("reason", string(decision.Reason)).
			Msg("No yield winner, falling back to equal weight")
		vec := ComputeEqualWeight(in)
		vec.Policy = types.PolicyYieldOptimized
		vec.Fallback = decision.Reason
		return vec, nil
	}

	vec := ComputeEqualWeight(in)
	vec.Policy = types.PolicyEqualWeight
	return vec, nil
}

// ComputeEqualWeight splits the total evenly across strategies, pinning any
// strategy whose locked balance already exceeds its even share and
// redistributing the rest. The division remainder lands on the first
// strategy by id so totals always conserve exactly.
func ComputeEqualWeight(in Input) types.AllocationVector {
	ids, current := orderedPositions(in.Positions)
	locked := lockedAmounts(ids, current, in.Constraints)

	pinned := make(map[types.StrategyID]bool, len(ids))
	targets := make(map[types.StrategyID]uint64, len(ids))

	for {
		var pinnedSum uint64
		free := 0
		for _, id := range ids {
			if pinned[id] {
				pinnedSum += targets[id]
			} else {
				free++
			}
		}
		if free == 0 {
			break
		}

		remaining := utils.SaturatingSub(in.Total, pinnedSum)
		share := remaining / uint64(free)

		changed := false
		for _, id := range ids {
			if pinned[id] {
				continue
			}
			if locked[id] > share {
				targets[id] = locked[id]
				pinned[id] = true
				changed = true
			}
		}
		if !changed {
			// Stable: assign the share, give the remainder to the first
			// unpinned strategy.
			rem := remaining - share*uint64(free)
			first := true
			for _, id := range ids {
				if pinned[id] {
					continue
				}
				targets[id] = share
				if first {
					targets[id] += rem
					first = false
				}
			}
			break
		}
	}

	return buildVector(ids, targets)
}

// ComputeWinnerTarget drains every other strategy down to its locked
// balance and assigns everything else to the winner. Idle ends at zero.
func ComputeWinnerTarget(in Input, winner types.StrategyID) types.AllocationVector {
	ids, current := orderedPositions(in.Positions)
	locked := lockedAmounts(ids, current, in.Constraints)

	targets := make(map[types.StrategyID]uint64, len(ids))
	var lockedSum uint64
	for _, id := range ids {
		if id == winner {
			continue
		}
		targets[id] = locked[id]
		lockedSum += locked[id]
	}
	targets[winner] = utils.SaturatingSub(in.Total, lockedSum)

	return buildVector(ids, targets)
}

// orderedPositions returns strategy ids sorted lexicographically plus the
// current value per id. The idle bucket is excluded from targets; it is
// implicitly total minus the sum of entries.
func orderedPositions(positions []types.PositionSnapshot) ([]types.StrategyID, map[types.StrategyID]uint64) {
	current := make(map[types.StrategyID]uint64, len(positions))
	var ids []types.StrategyID
	for _, p := range positions {
		if p.StrategyID == types.IdleStrategyID {
			continue
		}
		ids = append(ids, p.StrategyID)
		current[p.StrategyID] = p.Value
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, current
}

// lockedAmounts converts withdrawal ceilings into the minimum balance each
// strategy must retain. A locked figure can never exceed what is actually
// there.
func lockedAmounts(ids []types.StrategyID, current map[types.StrategyID]uint64, constraints []types.LiquidityConstraint) map[types.StrategyID]uint64 {
	byID := make(map[types.StrategyID]types.LiquidityConstraint, len(constraints))
	for _, c := range constraints {
		byID[c.StrategyID] = c
	}
	locked := make(map[types.StrategyID]uint64, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			locked[id] = utils.MinUint64(c.Locked(current[id]), current[id])
		}
	}
	return locked
}

func buildVector(ids []types.StrategyID, targets map[types.StrategyID]uint64) types.AllocationVector {
	entries := make([]types.AllocationEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, types.AllocationEntry{StrategyID: id, Target: targets[id]})
	}
	return types.AllocationVector{Entries: entries}
}
