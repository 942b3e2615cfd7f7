package yieldfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenvault/svm/internal/config"
	"github.com/lumenvault/svm/internal/registry"
	"github.com/lumenvault/svm/internal/types"
)

const (
	tokenA = "So11111111111111111111111111111111111111112"
	tokenB = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	sysage = "11111111111111111111111111111111"
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.Load([]config.StrategyEntry{
		{ID: "lend-a", Kind: "LENDING", Address: sysage, TokenAddress: tokenA, Reserve: sysage},
		{ID: "stake-b", Kind: "STAKING", Address: sysage, TokenAddress: tokenB, Reserve: sysage},
	})
	require.NoError(t, err)
	return reg
}

func serveJSON(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestResolveWinnerPicksHighestAPY(t *testing.T) {
	srv := serveJSON(t, `[
		{"id":"m1","tokenAddress":"`+tokenA+`","depositApy":0.08,"totalDepositUsd":5000000},
		{"id":"m2","tokenAddress":"`+tokenB+`","depositApy":0.11,"totalDepositUsd":8000000}
	]`)

	r := NewResolver(srv.URL, 5*time.Second, testRegistry(t), 250_000, 0.005)
	d := r.ResolveWinner(context.Background(), 10_000)

	require.True(t, d.HasWinner)
	assert.Equal(t, types.StrategyID("stake-b"), d.Winner)
	assert.Equal(t, 0.11, d.WinnerAPY)
	assert.Equal(t, 2, d.Candidates)
	assert.Equal(t, types.FallbackNone, d.Reason)
}

func TestResolveWinnerStrategyHintWinsOverToken(t *testing.T) {
	srv := serveJSON(t, `[
		{"id":"m1","tokenAddress":"unknown-token","strategy":"lend-a","depositApy":0.09,"totalDepositUsd":2000000}
	]`)

	r := NewResolver(srv.URL, 5*time.Second, testRegistry(t), 250_000, 0.005)
	d := r.ResolveWinner(context.Background(), 10_000)

	require.True(t, d.HasWinner)
	assert.Equal(t, types.StrategyID("lend-a"), d.Winner)
}

func TestResolveWinnerNoMatch(t *testing.T) {
	srv := serveJSON(t, `[
		{"id":"m1","tokenAddress":"not-registered","depositApy":0.30,"totalDepositUsd":9000000}
	]`)

	r := NewResolver(srv.URL, 5*time.Second, testRegistry(t), 250_000, 0.005)
	d := r.ResolveWinner(context.Background(), 10_000)

	assert.False(t, d.HasWinner)
	assert.Equal(t, types.FallbackNoMatch, d.Reason)
}

func TestResolveWinnerAllFiltered(t *testing.T) {
	// One candidate under the TVL floor, one whose APY would dilute too far
	// when our whole pool lands in it.
	srv := serveJSON(t, `[
		{"id":"small","tokenAddress":"`+tokenA+`","depositApy":0.20,"totalDepositUsd":100000},
		{"id":"thin","tokenAddress":"`+tokenB+`","depositApy":0.10,"totalDepositUsd":300000}
	]`)

	r := NewResolver(srv.URL, 5*time.Second, testRegistry(t), 250_000, 0.005)
	d := r.ResolveWinner(context.Background(), 50_000)

	assert.False(t, d.HasWinner)
	assert.Equal(t, types.FallbackAllFiltered, d.Reason)
	assert.Equal(t, 2, d.Candidates)
}

func TestResolveWinnerAPIFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewResolver(srv.URL, 5*time.Second, testRegistry(t), 250_000, 0.005)
	d := r.ResolveWinner(context.Background(), 10_000)

	assert.False(t, d.HasWinner)
	assert.Equal(t, types.FallbackAPIFail, d.Reason)
}

func TestResolveWinnerMalformedPayload(t *testing.T) {
	srv := serveJSON(t, `{"not":"an array"}`)

	r := NewResolver(srv.URL, 5*time.Second, testRegistry(t), 250_000, 0.005)
	d := r.ResolveWinner(context.Background(), 10_000)

	assert.False(t, d.HasWinner)
	assert.Equal(t, types.FallbackAPIFail, d.Reason)
}

func TestPickWinnerTieBreaks(t *testing.T) {
	cands := []types.YieldCandidate{
		{MarketID: "m1", MatchedStrategyID: "zeta", DepositAPY: 0.10, TotalDepositUSD: 1_000_000},
		{MarketID: "m2", MatchedStrategyID: "alpha", DepositAPY: 0.10, TotalDepositUSD: 1_000_000},
		{MarketID: "m3", MatchedStrategyID: "beta", DepositAPY: 0.10, TotalDepositUSD: 500_000},
	}
	w := pickWinner(cands)
	assert.Equal(t, types.StrategyID("alpha"), w.MatchedStrategyID)
}
