package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// StrategyEntry is one strategy as declared in the environment, before the
// registry validates and resolves it.
type StrategyEntry struct {
	ID           string
	Kind         string
	Address      string
	TokenAddress string
	Reserve      string
}

// Strategies is the configured strategy set, populated by LoadConfig.
var Strategies []StrategyEntry

// loadStrategyConfig parses SVM_STRATEGIES, a semicolon-separated list of
// id:kind:address:token:reserve tuples, e.g.
//
//	main-lend:LENDING:Baa...1:EPj...v:7qb...R;stake-a:STAKING:Sta...k:EPj...v:9xn...Q
func loadStrategyConfig() error {
	raw, err := getEnv("SVM_STRATEGIES")
	if err != nil {
		return err
	}

	Strategies = Strategies[:0]
	seen := make(map[string]struct{})

	for _, tuple := range strings.Split(raw, ";") {
		tuple = strings.TrimSpace(tuple)
		if tuple == "" {
			continue
		}
		fields := strings.Split(tuple, ":")
		if len(fields) != 5 {
			return fmt.Errorf("SVM_STRATEGIES entry %q must have 5 fields, got %d", tuple, len(fields))
		}
		entry := StrategyEntry{
			ID:           strings.TrimSpace(fields[0]),
			Kind:         strings.TrimSpace(fields[1]),
			Address:      strings.TrimSpace(fields[2]),
			TokenAddress: strings.TrimSpace(fields[3]),
			Reserve:      strings.TrimSpace(fields[4]),
		}
		if entry.ID == "" || entry.Kind == "" || entry.Address == "" {
			return fmt.Errorf("SVM_STRATEGIES entry %q has empty required fields", tuple)
		}
		if _, dup := seen[entry.ID]; dup {
			return fmt.Errorf("SVM_STRATEGIES contains duplicate strategy id %q", entry.ID)
		}
		seen[entry.ID] = struct{}{}
		Strategies = append(Strategies, entry)
	}

	if len(Strategies) == 0 {
		return errors.New("SVM_STRATEGIES must declare at least one strategy")
	}

	log.Debug().Int("count", len(Strategies)).Msg("Strategy configuration loaded.")
	return nil
}
