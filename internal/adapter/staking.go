package adapter

import "github.com/lumenvault/svm/internal/types"

const (
	stakingIxStake      = 0x01
	stakingIxUnstake    = 0x02
	stakingIxUnstakeAll = 0x03
)

const stakingLookupTable = "StakeLookup111111111111111111111111111111111"

// StakingAdapter builds stake/unstake instructions for a staking pool.
type StakingAdapter struct{}

func NewStakingAdapter() *StakingAdapter { return &StakingAdapter{} }

func (a *StakingAdapter) Kind() types.StrategyKind { return types.KindStaking }

func (a *StakingAdapter) BuildDeposit(desc types.StrategyDescriptor, authority string, amount uint64) ([]types.Instruction, error) {
	if amount == 0 {
		return nil, ErrZeroAmount
	}
	return []types.Instruction{{
		ProgramID: desc.Address,
		Accounts:  stakingAccounts(desc, authority),
		Data:      amountData(stakingIxStake, amount),
	}}, nil
}

func (a *StakingAdapter) BuildWithdraw(desc types.StrategyDescriptor, authority string, amount uint64) ([]types.Instruction, error) {
	if amount == 0 {
		return nil, ErrZeroAmount
	}
	if amount == types.UnlimitedWithdraw {
		return []types.Instruction{{
			ProgramID: desc.Address,
			Accounts:  stakingAccounts(desc, authority),
			Data:      []byte{stakingIxUnstakeAll},
		}}, nil
	}
	return []types.Instruction{{
		ProgramID: desc.Address,
		Accounts:  stakingAccounts(desc, authority),
		Data:      amountData(stakingIxUnstake, amount),
	}}, nil
}

func (a *StakingAdapter) LookupAccounts(desc types.StrategyDescriptor) []string {
	return []string{stakingLookupTable}
}

func stakingAccounts(desc types.StrategyDescriptor, authority string) []types.AccountMeta {
	return []types.AccountMeta{
		{Address: authority, IsSigner: true, IsWritable: true},
		{Address: desc.Reserve, IsWritable: true},
		{Address: desc.TokenAddress, IsWritable: true},
	}
}
