package vault

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumenvault/svm/internal/logger"
	"github.com/lumenvault/svm/internal/registry"
	"github.com/lumenvault/svm/internal/rpc"
	"github.com/lumenvault/svm/internal/types"
)

// LiveVault reads positions from chain accounts through the failover pair.
type LiveVault struct {
	fo          *rpc.Failover
	reg         *registry.Registry
	idleAccount string
	log         zerolog.Logger
}

func NewLiveVault(fo *rpc.Failover, reg *registry.Registry, idleAccount string) *LiveVault {
	return &LiveVault{
		fo:          fo,
		reg:         reg,
		idleAccount: idleAccount,
		log:         logger.GetForComponent("vault"),
	}
}

func (v *LiveVault) Positions(ctx context.Context) ([]types.PositionSnapshot, error) {
	now := time.Now().UTC()
	out := make([]types.PositionSnapshot, 0, v.reg.Len()+1)

	idle, err := v.tokenBalance(ctx, v.idleAccount)
	if err != nil {
		return nil, fmt.Errorf("reading idle balance: %w", err)
	}
	out = append(out, types.PositionSnapshot{
		StrategyID: types.IdleStrategyID,
		Value:      idle,
		ObservedAt: now,
	})

	for _, desc := range v.reg.All() {
		value, err := v.tokenBalance(ctx, desc.TokenAddress)
		if err != nil {
			return nil, fmt.Errorf("reading position %s: %w", desc.ID, err)
		}
		out = append(out, types.PositionSnapshot{
			StrategyID: desc.ID,
			Value:      value,
			ObservedAt: now,
		})
	}
	return out, nil
}

// Constraints derives each strategy's withdrawal ceiling from its reserve's
// available liquidity. A reserve holding less than the position caps what
// can come out this cycle.
func (v *LiveVault) Constraints(ctx context.Context) ([]types.LiquidityConstraint, error) {
	var out []types.LiquidityConstraint
	for _, desc := range v.reg.All() {
		available, err := v.tokenBalance(ctx, desc.Reserve)
		if err != nil {
			return nil, fmt.Errorf("reading reserve %s: %w", desc.ID, err)
		}
		position, err := v.tokenBalance(ctx, desc.TokenAddress)
		if err != nil {
			return nil, fmt.Errorf("reading position %s: %w", desc.ID, err)
		}
		if available >= position {
			continue
		}
		v.log.Debug().
			Str("strategy", string(desc.ID)).
			Uint64("available", available).
			Uint64("position", position).
			Msg("Reserve liquidity constrains withdrawal")
		out = append(out, types.LiquidityConstraint{
			StrategyID:          desc.ID,
			WithdrawableCeiling: available,
		})
	}
	return out, nil
}

func (v *LiveVault) TotalValue(ctx context.Context) (uint64, error) {
	positions, err := v.Positions(ctx)
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, p := range positions {
		total += p.Value
	}
	return total, nil
}

func (v *LiveVault) tokenBalance(ctx context.Context, account string) (uint64, error) {
	var balance uint64
	err := v.fo.Do(ctx, func(c *rpc.Client) error {
		var err error
		balance, err = c.GetTokenAccountBalance(ctx, account)
		return err
	})
	return balance, err
}
