package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenvault/svm/internal/config"
	"github.com/lumenvault/svm/internal/types"
)

const (
	validAddr  = "11111111111111111111111111111111"
	validToken = "So11111111111111111111111111111111111111112"
)

func validEntries() []config.StrategyEntry {
	return []config.StrategyEntry{
		{ID: "stake-b", Kind: "STAKING", Address: validAddr, TokenAddress: validToken, Reserve: validAddr},
		{ID: "lend-a", Kind: "LENDING", Address: validAddr, TokenAddress: validAddr, Reserve: validAddr},
	}
}

func TestLoadSortsByID(t *testing.T) {
	reg, err := Load(validEntries())
	require.NoError(t, err)
	require.Equal(t, 2, reg.Len())

	all := reg.All()
	assert.Equal(t, types.StrategyID("lend-a"), all[0].ID)
	assert.Equal(t, types.StrategyID("stake-b"), all[1].ID)
}

func TestLoadRejectsUnknownKind(t *testing.T) {
	entries := validEntries()
	entries[0].Kind = "ARBITRAGE"
	_, err := Load(entries)
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestLoadRejectsBadAddress(t *testing.T) {
	entries := validEntries()
	entries[1].Address = "not-base58-0OIl"
	_, err := Load(entries)
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestLoadRejectsEmptySet(t *testing.T) {
	_, err := Load(nil)
	assert.ErrorIs(t, err, ErrEmptyRegistry)
}

func TestGetAndMatch(t *testing.T) {
	reg, err := Load(validEntries())
	require.NoError(t, err)

	desc, err := reg.Get("stake-b")
	require.NoError(t, err)
	assert.Equal(t, types.KindStaking, desc.Kind)

	_, err = reg.Get("missing")
	assert.Error(t, err)

	byToken, ok := reg.MatchByToken(validToken)
	require.True(t, ok)
	assert.Equal(t, types.StrategyID("stake-b"), byToken.ID)

	_, ok = reg.MatchByToken("UnknownToken")
	assert.False(t, ok)

	byID, ok := reg.MatchByID("lend-a")
	require.True(t, ok)
	assert.Equal(t, types.KindLending, byID.Kind)

	_, ok = reg.MatchByID("missing")
	assert.False(t, ok)
}
