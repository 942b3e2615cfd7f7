package adapter

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenvault/svm/internal/types"
)

var testDesc = types.StrategyDescriptor{
	ID:           "lend-test",
	Kind:         types.KindLending,
	Address:      "Prog111",
	TokenAddress: "Tok111",
	Reserve:      "Res111",
}

const testAuthority = "Auth111"

func TestSetCoversAllKnownKinds(t *testing.T) {
	s := NewSet()
	for _, kind := range types.KnownKinds {
		a, err := s.For(kind)
		require.NoError(t, err, "kind %s", kind)
		assert.Equal(t, kind, a.Kind())
	}
	_, err := s.For(types.StrategyKind("BOGUS"))
	assert.ErrorIs(t, err, ErrUnsupportedKind)
}

func TestDepositEncodesAmount(t *testing.T) {
	s := NewSet()
	for _, kind := range types.KnownKinds {
		a, err := s.For(kind)
		require.NoError(t, err)

		desc := testDesc
		desc.Kind = kind
		ixs, err := a.BuildDeposit(desc, testAuthority, 42_000)
		require.NoError(t, err)
		require.Len(t, ixs, 1)

		ix := ixs[0]
		assert.Equal(t, desc.Address, ix.ProgramID)
		require.Len(t, ix.Data, 9)
		assert.Equal(t, uint64(42_000), binary.LittleEndian.Uint64(ix.Data[1:]))
		require.NotEmpty(t, ix.Accounts)
		assert.True(t, ix.Accounts[0].IsSigner)
		assert.Equal(t, testAuthority, ix.Accounts[0].Address)
	}
}

func TestWithdrawAllUsesSentinelVariant(t *testing.T) {
	s := NewSet()
	for _, kind := range types.KnownKinds {
		a, err := s.For(kind)
		require.NoError(t, err)

		ixs, err := a.BuildWithdraw(testDesc, testAuthority, types.UnlimitedWithdraw)
		require.NoError(t, err)
		require.Len(t, ixs, 1)
		assert.Len(t, ixs[0].Data, 1, "full exit carries no amount, kind %s", kind)
	}
}

func TestZeroAmountRejected(t *testing.T) {
	a := NewLendingAdapter()
	_, err := a.BuildDeposit(testDesc, testAuthority, 0)
	assert.ErrorIs(t, err, ErrZeroAmount)
	_, err = a.BuildWithdraw(testDesc, testAuthority, 0)
	assert.ErrorIs(t, err, ErrZeroAmount)
}

func TestCapabilityInterfaces(t *testing.T) {
	s := NewSet()

	lend, _ := s.For(types.KindLending)
	_, ok := lend.(RewardClaimer)
	assert.True(t, ok, "lending claims rewards")

	liq, _ := s.For(types.KindLiquidity)
	_, ok = liq.(FeeHarvester)
	assert.True(t, ok, "liquidity harvests fees")

	stake, _ := s.For(types.KindStaking)
	_, ok = stake.(RewardClaimer)
	assert.False(t, ok, "staking rewards auto-compound")
}
