package adapter

import (
	"encoding/binary"

	"github.com/lumenvault/svm/internal/types"
)

// Lending program instruction tags.
const (
	lendingIxDeposit     = 0x01
	lendingIxWithdraw    = 0x02
	lendingIxWithdrawAll = 0x03
	lendingIxClaim       = 0x04
)

const lendingLookupTable = "LendLookup1111111111111111111111111111111111"

// LendingAdapter builds deposit/redeem instructions against a lending
// market reserve.
type LendingAdapter struct{}

func NewLendingAdapter() *LendingAdapter { return &LendingAdapter{} }

func (a *LendingAdapter) Kind() types.StrategyKind { return types.KindLending }

func (a *LendingAdapter) BuildDeposit(desc types.StrategyDescriptor, authority string, amount uint64) ([]types.Instruction, error) {
	if amount == 0 {
		return nil, ErrZeroAmount
	}
	return []types.Instruction{{
		ProgramID: desc.Address,
		Accounts:  lendingAccounts(desc, authority),
		Data:      amountData(lendingIxDeposit, amount),
	}}, nil
}

func (a *LendingAdapter) BuildWithdraw(desc types.StrategyDescriptor, authority string, amount uint64) ([]types.Instruction, error) {
	if amount == 0 {
		return nil, ErrZeroAmount
	}
	if amount == types.UnlimitedWithdraw {
		return []types.Instruction{{
			ProgramID: desc.Address,
			Accounts:  lendingAccounts(desc, authority),
			Data:      []byte{lendingIxWithdrawAll},
		}}, nil
	}
	return []types.Instruction{{
		ProgramID: desc.Address,
		Accounts:  lendingAccounts(desc, authority),
		Data:      amountData(lendingIxWithdraw, amount),
	}}, nil
}

func (a *LendingAdapter) BuildClaimRewards(desc types.StrategyDescriptor, authority string) ([]types.Instruction, error) {
	return []types.Instruction{{
		ProgramID: desc.Address,
		Accounts:  lendingAccounts(desc, authority),
		Data:      []byte{lendingIxClaim},
	}}, nil
}

func (a *LendingAdapter) LookupAccounts(desc types.StrategyDescriptor) []string {
	return []string{lendingLookupTable}
}

func lendingAccounts(desc types.StrategyDescriptor, authority string) []types.AccountMeta {
	return []types.AccountMeta{
		{Address: authority, IsSigner: true, IsWritable: true},
		{Address: desc.Reserve, IsWritable: true},
		{Address: desc.TokenAddress, IsWritable: true},
	}
}

// amountData packs the one-byte tag followed by the little-endian amount.
func amountData(tag byte, amount uint64) []byte {
	data := make([]byte, 9)
	data[0] = tag
	binary.LittleEndian.PutUint64(data[1:], amount)
	return data
}
