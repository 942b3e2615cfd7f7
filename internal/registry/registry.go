// Package registry holds the static, process-lifetime mapping of configured
// strategies. Loaded once at startup, read-only afterwards, shared by all
// components.
package registry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mr-tron/base58"

	"github.com/lumenvault/svm/internal/config"
	"github.com/lumenvault/svm/internal/logger"
	"github.com/lumenvault/svm/internal/types"
)

var (
	ErrUnknownKind     = errors.New("unknown strategy kind")
	ErrInvalidAddress  = errors.New("strategy address is not valid base58")
	ErrEmptyRegistry   = errors.New("registry has no strategies")
	ErrUnknownStrategy = errors.New("strategy not registered")
)

// Registry is the resolved strategy set.
type Registry struct {
	byID    map[types.StrategyID]types.StrategyDescriptor
	ordered []types.StrategyDescriptor
}

// Load builds the registry from the configured strategy entries, validating
// kinds and addresses.
func Load(entries []config.StrategyEntry) (*Registry, error) {
	log := logger.GetForComponent("registry")

	if len(entries) == 0 {
		return nil, ErrEmptyRegistry
	}

	r := &Registry{byID: make(map[types.StrategyID]types.StrategyDescriptor, len(entries))}

	for _, e := range entries {
		kind := types.StrategyKind(e.Kind)
		if !kindKnown(kind) {
			return nil, fmt.Errorf("%w: %q for strategy %q", ErrUnknownKind, e.Kind, e.ID)
		}
		for _, addr := range []string{e.Address, e.TokenAddress, e.Reserve} {
			if addr == "" {
				continue
			}
			if _, err := base58.Decode(addr); err != nil {
				return nil, fmt.Errorf("%w: %q for strategy %q", ErrInvalidAddress, addr, e.ID)
			}
		}

		desc := types.StrategyDescriptor{
			ID:           types.StrategyID(e.ID),
			Kind:         kind,
			Address:      e.Address,
			TokenAddress: e.TokenAddress,
			Reserve:      e.Reserve,
		}
		r.byID[desc.ID] = desc
		r.ordered = append(r.ordered, desc)
	}

	// Deterministic iteration order, by id.
	sort.Slice(r.ordered, func(i, j int) bool {
		return r.ordered[i].ID < r.ordered[j].ID
	})

	log.Info().Int("strategies", len(r.ordered)).Msg("Strategy registry loaded")
	return r, nil
}

func kindKnown(kind types.StrategyKind) bool {
	for _, k := range types.KnownKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Get returns the descriptor for a strategy id.
func (r *Registry) Get(id types.StrategyID) (types.StrategyDescriptor, error) {
	d, ok := r.byID[id]
	if !ok {
		return types.StrategyDescriptor{}, fmt.Errorf("%w: %s", ErrUnknownStrategy, id)
	}
	return d, nil
}

// All returns every descriptor ordered by id. Callers must not mutate the
// returned slice.
func (r *Registry) All() []types.StrategyDescriptor {
	return r.ordered
}

// Len returns the number of registered strategies.
func (r *Registry) Len() int {
	return len(r.ordered)
}

// MatchByToken finds the strategy whose deposit token matches the given
// address, for linking yield candidates.
func (r *Registry) MatchByToken(tokenAddress string) (types.StrategyDescriptor, bool) {
	for _, d := range r.ordered {
		if d.TokenAddress == tokenAddress {
			return d, true
		}
	}
	return types.StrategyDescriptor{}, false
}

// MatchByID finds the strategy with the given id string, for explicit
// linkage hints on yield candidates.
func (r *Registry) MatchByID(id string) (types.StrategyDescriptor, bool) {
	d, err := r.Get(types.StrategyID(id))
	return d, err == nil
}
