// Package adapter builds the on-chain instructions for each strategy kind.
// One adapter per kind; the engine never assembles instructions directly.
package adapter

import (
	"errors"
	"fmt"

	"github.com/lumenvault/svm/internal/types"
)

var (
	ErrUnsupportedKind = errors.New("no adapter for strategy kind")
	ErrZeroAmount      = errors.New("instruction amount must be positive")
)

// Adapter turns an abstract deposit or withdrawal into the concrete
// instructions for one strategy's program.
type Adapter interface {
	Kind() types.StrategyKind
	// BuildDeposit moves amount from the idle account into the strategy.
	BuildDeposit(desc types.StrategyDescriptor, authority string, amount uint64) ([]types.Instruction, error)
	// BuildWithdraw moves amount back to the idle account. amount may be
	// types.UnlimitedWithdraw to exit the position entirely.
	BuildWithdraw(desc types.StrategyDescriptor, authority string, amount uint64) ([]types.Instruction, error)
	// LookupAccounts are the address lookup tables a transaction touching
	// this strategy should load.
	LookupAccounts(desc types.StrategyDescriptor) []string
}

// RewardClaimer is implemented by adapters whose protocol accrues claimable
// rewards outside the position balance.
type RewardClaimer interface {
	BuildClaimRewards(desc types.StrategyDescriptor, authority string) ([]types.Instruction, error)
}

// FeeHarvester is implemented by adapters whose positions accrue fees that
// must be collected explicitly.
type FeeHarvester interface {
	BuildHarvest(desc types.StrategyDescriptor, authority string) ([]types.Instruction, error)
}

// Set holds one adapter per strategy kind.
type Set struct {
	byKind map[types.StrategyKind]Adapter
}

// NewSet registers the default adapters for every known kind.
func NewSet() *Set {
	s := &Set{byKind: make(map[types.StrategyKind]Adapter)}
	s.Register(NewLendingAdapter())
	s.Register(NewStakingAdapter())
	s.Register(NewLiquidityAdapter())
	return s
}

func (s *Set) Register(a Adapter) {
	s.byKind[a.Kind()] = a
}

// For returns the adapter serving kind.
func (s *Set) For(kind types.StrategyKind) (Adapter, error) {
	a, ok := s.byKind[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}
	return a, nil
}
