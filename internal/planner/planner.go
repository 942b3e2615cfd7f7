// Package planner diffs the current portfolio against a target allocation
// and emits the ordered operation list that moves one into the other.
package planner

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/lumenvault/svm/internal/logger"
	"github.com/lumenvault/svm/internal/types"
	"github.com/lumenvault/svm/internal/utils"
)

// FeeQuantumNative is the native-unit cost reserved per withdrawal. The sum
// over all withdrawals is trimmed off the deposit leg so the plan never
// spends balance the fees already consumed.
const FeeQuantumNative uint64 = 5_000

// Planner builds rebalance plans. minOperation is the dust floor: deltas
// below it are left alone so a re-run of a settled plan is a no-op.
type Planner struct {
	minOperation uint64
	log          zerolog.Logger
}

func New(minOperation uint64) *Planner {
	return &Planner{
		minOperation: minOperation,
		log:          logger.GetForComponent("planner"),
	}
}

// Plan computes the operations that take positions to the target vector.
// Every withdrawal precedes every deposit, so each deposit is funded by the
// time it executes. A strategy whose target is zero exits fully via the
// unlimited-withdraw sentinel.
func (p *Planner) Plan(positions []types.PositionSnapshot, target types.AllocationVector) []types.RebalanceOperation {
	current := make(map[types.StrategyID]uint64, len(positions))
	for _, pos := range positions {
		if pos.StrategyID == types.IdleStrategyID {
			continue
		}
		current[pos.StrategyID] = pos.Value
	}

	var withdrawals, deposits []types.RebalanceOperation
	for _, entry := range target.Entries {
		cur := current[entry.StrategyID]
		switch {
		case cur > entry.Target:
			delta := cur - entry.Target
			if delta < p.minOperation {
				p.log.Debug().Str("strategy", string(entry.StrategyID)).Uint64("delta", delta).
					Msg("Withdrawal below dust floor, skipped")
				continue
			}
			op := types.RebalanceOperation{
				StrategyID: entry.StrategyID,
				Kind:       types.OpWithdraw,
				Amount:     delta,
			}
			if entry.Target == 0 {
				op.Amount = types.UnlimitedWithdraw
				op.WithdrawAll = true
			}
			withdrawals = append(withdrawals, op)
		case entry.Target > cur:
			delta := entry.Target - cur
			if delta < p.minOperation {
				p.log.Debug().Str("strategy", string(entry.StrategyID)).Uint64("delta", delta).
					Msg("Deposit below dust floor, skipped")
				continue
			}
			deposits = append(deposits, types.RebalanceOperation{
				StrategyID: entry.StrategyID,
				Kind:       types.OpDeposit,
				Amount:     delta,
			})
		}
	}

	// Largest movements first within each phase.
	sortByAmountDesc(withdrawals)
	sortByAmountDesc(deposits)

	deposits = p.applyFeeHaircut(withdrawals, deposits)

	if len(withdrawals)+len(deposits) > 0 {
		p.log.Info().
			Int("withdrawals", len(withdrawals)).
			Int("deposits", len(deposits)).
			Msg("Rebalance plan built")
	}
	return append(withdrawals, deposits...)
}

// applyFeeHaircut trims the fee reserve for all withdrawals off the deposit
// leg, starting with the largest deposit. Deposits that fall under the dust
// floor after trimming are dropped.
func (p *Planner) applyFeeHaircut(withdrawals, deposits []types.RebalanceOperation) []types.RebalanceOperation {
	reserve := uint64(len(withdrawals)) * FeeQuantumNative
	if reserve == 0 || len(deposits) == 0 {
		return deposits
	}

	out := deposits[:0]
	for _, dep := range deposits {
		if reserve > 0 {
			cut := utils.MinUint64(reserve, dep.Amount)
			dep.Amount -= cut
			reserve -= cut
		}
		if dep.Amount < p.minOperation {
			p.log.Debug().Str("strategy", string(dep.StrategyID)).
				Msg("Deposit consumed by fee reserve, dropped")
			continue
		}
		out = append(out, dep)
	}
	return out
}

func sortByAmountDesc(ops []types.RebalanceOperation) {
	sort.SliceStable(ops, func(i, j int) bool {
		ai, aj := ops[i].Amount, ops[j].Amount
		// Full exits sort by the balance they release, which the sentinel
		// does not carry; treat them as largest.
		if ops[i].WithdrawAll != ops[j].WithdrawAll {
			return ops[i].WithdrawAll
		}
		if ai != aj {
			return ai > aj
		}
		return ops[i].StrategyID < ops[j].StrategyID
	})
}
