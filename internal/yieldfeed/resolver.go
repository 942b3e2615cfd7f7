// Package yieldfeed fetches external market yield data and resolves the
// single winning strategy for the yield-optimized policy.
package yieldfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumenvault/svm/internal/logger"
	"github.com/lumenvault/svm/internal/observability"
	"github.com/lumenvault/svm/internal/registry"
	"github.com/lumenvault/svm/internal/types"
)

var (
	ErrFetchFailed = errors.New("yield API fetch failed")
	ErrBadPayload  = errors.New("yield API returned malformed payload")
)

// marketRecord is one entry of the yield API response.
type marketRecord struct {
	ID              string  `json:"id"`
	Provider        string  `json:"provider"`
	TokenAddress    string  `json:"tokenAddress"`
	DepositAPY      float64 `json:"depositApy"`
	TotalDepositUSD float64 `json:"totalDepositUsd"`
	Strategy        string  `json:"strategy,omitempty"` // optional linkage hint
}

// Decision is the resolver output for one cycle: either a winner, or the
// reason there is none.
type Decision struct {
	Winner     types.StrategyID
	HasWinner  bool
	Reason     types.FallbackReason
	WinnerAPY  float64
	WinnerTVL  float64
	Candidates int
}

// Resolver matches external market records to registered strategies and
// picks the best one under the liquidity and dilution filters.
type Resolver struct {
	apiURL      string
	client      *http.Client
	reg         *registry.Registry
	minTVLUSD   float64
	maxDilution float64
	log         zerolog.Logger
}

// NewResolver creates a resolver. timeout bounds one fetch end to end.
func NewResolver(apiURL string, timeout time.Duration, reg *registry.Registry, minTVLUSD, maxDilution float64) *Resolver {
	return &Resolver{
		apiURL:      apiURL,
		client:      &http.Client{Timeout: timeout},
		reg:         reg,
		minTVLUSD:   minTVLUSD,
		maxDilution: maxDilution,
		log:         logger.GetForComponent("yield_resolver"),
	}
}

// ResolveWinner fetches current markets and returns the winning strategy for
// deploying totalValueUSD, or the reason there is none. It never returns an
// error for data-quality problems; those are reason codes, not failures.
func (r *Resolver) ResolveWinner(ctx context.Context, totalValueUSD float64) Decision {
	records, err := r.fetch(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("Yield fetch failed, reporting api_fail")
		observability.WinnerAPY.Set(0)
		return Decision{Reason: types.FallbackAPIFail}
	}

	matched := r.match(records)
	if len(matched) == 0 {
		r.log.Info().Int("records", len(records)).Msg("No market record matched a registered strategy")
		observability.WinnerAPY.Set(0)
		return Decision{Reason: types.FallbackNoMatch}
	}

	filtered := r.filter(matched, totalValueUSD)
	if len(filtered) == 0 {
		r.log.Info().
			Int("matched", len(matched)).
			Float64("minTVLUSD", r.minTVLUSD).
			Float64("maxDilution", r.maxDilution).
			Msg("All matched candidates filtered out")
		observability.WinnerAPY.Set(0)
		return Decision{Reason: types.FallbackAllFiltered, Candidates: len(matched)}
	}

	winner := pickWinner(filtered)
	observability.WinnerAPY.Set(winner.DepositAPY)
	r.log.Info().
		Str("winner", string(winner.MatchedStrategyID)).
		Float64("apy", winner.DepositAPY).
		Float64("tvlUSD", winner.TotalDepositUSD).
		Int("candidates", len(filtered)).
		Msg("Yield winner selected")

	return Decision{
		Winner:     winner.MatchedStrategyID,
		HasWinner:  true,
		WinnerAPY:  winner.DepositAPY,
		WinnerTVL:  winner.TotalDepositUSD,
		Candidates: len(filtered),
	}
}

// fetch retrieves the raw market records, bounded by the client timeout and
// the caller's context.
func (r *Resolver) fetch(ctx context.Context) ([]marketRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrFetchFailed, resp.StatusCode, string(body))
	}

	var records []marketRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadPayload, err)
	}
	return records, nil
}

// match links records to registered strategies; unmatched records are
// dropped. The explicit strategy hint wins over token-address matching.
func (r *Resolver) match(records []marketRecord) []types.YieldCandidate {
	var out []types.YieldCandidate
	for _, rec := range records {
		var desc types.StrategyDescriptor
		var ok bool
		if rec.Strategy != "" {
			desc, ok = r.reg.MatchByID(rec.Strategy)
		}
		if !ok {
			desc, ok = r.reg.MatchByToken(rec.TokenAddress)
		}
		if !ok {
			continue
		}
		out = append(out, types.YieldCandidate{
			MarketID:          rec.ID,
			MatchedStrategyID: desc.ID,
			DepositAPY:        rec.DepositAPY,
			TotalDepositUSD:   rec.TotalDepositUSD,
		})
	}
	return out
}

// filter drops candidates below the TVL floor or above the dilution ceiling
// for the pool's own deposit size.
func (r *Resolver) filter(candidates []types.YieldCandidate, totalValueUSD float64) []types.YieldCandidate {
	var out []types.YieldCandidate
	for _, c := range candidates {
		if c.TotalDepositUSD < r.minTVLUSD {
			r.log.Debug().Str("market", c.MarketID).Float64("tvlUSD", c.TotalDepositUSD).
				Msg("Candidate below TVL floor, dropped")
			continue
		}
		if dilution := c.Dilution(totalValueUSD); dilution > r.maxDilution {
			r.log.Debug().Str("market", c.MarketID).Float64("dilution", dilution).
				Msg("Candidate above dilution ceiling, dropped")
			continue
		}
		out = append(out, c)
	}
	return out
}

// pickWinner returns the highest-APY candidate. Ties break by highest TVL,
// then lexicographic strategy id, for determinism.
func pickWinner(candidates []types.YieldCandidate) types.YieldCandidate {
	sorted := make([]types.YieldCandidate, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].DepositAPY != sorted[j].DepositAPY {
			return sorted[i].DepositAPY > sorted[j].DepositAPY
		}
		if sorted[i].TotalDepositUSD != sorted[j].TotalDepositUSD {
			return sorted[i].TotalDepositUSD > sorted[j].TotalDepositUSD
		}
		return sorted[i].MatchedStrategyID < sorted[j].MatchedStrategyID
	})
	return sorted[0]
}
