package engine

import (
	"context"
	"time"

	"github.com/lumenvault/svm/internal/adapter"
	"github.com/lumenvault/svm/internal/types"
)

// RunRefreshLoop periodically re-reads positions and publishes the value
// gauges, so dashboards stay current between rebalance cycles.
func (e *Engine) RunRefreshLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		positions, err := e.vault.Positions(ctx)
		if err != nil {
			e.log.Warn().Err(err).Msg("Position refresh failed")
			continue
		}
		e.publishGauges(positions)
	}
}

// RunHarvestLoop collects accrued fees from every strategy whose adapter
// supports harvesting, batching up to batchSize strategies per transaction.
func (e *Engine) RunHarvestLoop(ctx context.Context, interval time.Duration, batchSize int) error {
	return e.runCapabilityLoop(ctx, interval, batchSize, "harvest", func(a adapter.Adapter, desc types.StrategyDescriptor) ([]types.Instruction, bool, error) {
		h, ok := a.(adapter.FeeHarvester)
		if !ok {
			return nil, false, nil
		}
		ixs, err := h.BuildHarvest(desc, e.authority)
		return ixs, true, err
	})
}

// RunRewardClaimLoop claims protocol rewards from every strategy whose
// adapter supports claiming.
func (e *Engine) RunRewardClaimLoop(ctx context.Context, interval time.Duration, batchSize int) error {
	return e.runCapabilityLoop(ctx, interval, batchSize, "reward_claim", func(a adapter.Adapter, desc types.StrategyDescriptor) ([]types.Instruction, bool, error) {
		c, ok := a.(adapter.RewardClaimer)
		if !ok {
			return nil, false, nil
		}
		ixs, err := c.BuildClaimRewards(desc, e.authority)
		return ixs, true, err
	})
}

func (e *Engine) runCapabilityLoop(ctx context.Context, interval time.Duration, batchSize int, name string, build func(adapter.Adapter, types.StrategyDescriptor) ([]types.Instruction, bool, error)) error {
	if batchSize < 1 {
		batchSize = 1
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		var batch types.TransactionBatch
		covered := 0
		lookups := make(map[string]bool)

		flush := func() {
			if len(batch.Instructions) == 0 {
				return
			}
			result, err := e.submitter.Submit(ctx, batch)
			if err != nil {
				e.log.Warn().Err(err).Str("loop", name).Int("strategies", covered).
					Msg("Maintenance submission failed")
			} else {
				e.log.Info().Str("loop", name).Int("strategies", covered).
					Str("signature", result.Signature).
					Msg("Maintenance transaction confirmed")
			}
			batch = types.TransactionBatch{}
			covered = 0
			lookups = make(map[string]bool)
		}

		for _, desc := range e.reg.All() {
			a, err := e.adapters.For(desc.Kind)
			if err != nil {
				continue
			}
			ixs, supported, err := build(a, desc)
			if !supported {
				continue
			}
			if err != nil {
				e.log.Warn().Err(err).Str("strategy", string(desc.ID)).Str("loop", name).
					Msg("Instruction build failed")
				continue
			}

			batch.Instructions = append(batch.Instructions, ixs...)
			for _, la := range a.LookupAccounts(desc) {
				if !lookups[la] {
					lookups[la] = true
					batch.LookupAccounts = append(batch.LookupAccounts, la)
				}
			}
			covered++
			if covered >= batchSize {
				flush()
			}
		}
		flush()
	}
}
