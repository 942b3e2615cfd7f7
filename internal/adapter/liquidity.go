package adapter

import "github.com/lumenvault/svm/internal/types"

const (
	liquidityIxAdd       = 0x01
	liquidityIxRemove    = 0x02
	liquidityIxRemoveAll = 0x03
	liquidityIxCollect   = 0x04
)

const liquidityLookupTable = "PoolLookup1111111111111111111111111111111111"

// LiquidityAdapter builds add/remove liquidity instructions for a pool
// position. Removal is two-sided; the position token account receives both
// legs before they settle back to idle.
type LiquidityAdapter struct{}

func NewLiquidityAdapter() *LiquidityAdapter { return &LiquidityAdapter{} }

func (a *LiquidityAdapter) Kind() types.StrategyKind { return types.KindLiquidity }

func (a *LiquidityAdapter) BuildDeposit(desc types.StrategyDescriptor, authority string, amount uint64) ([]types.Instruction, error) {
	if amount == 0 {
		return nil, ErrZeroAmount
	}
	return []types.Instruction{{
		ProgramID: desc.Address,
		Accounts:  liquidityAccounts(desc, authority),
		Data:      amountData(liquidityIxAdd, amount),
	}}, nil
}

func (a *LiquidityAdapter) BuildWithdraw(desc types.StrategyDescriptor, authority string, amount uint64) ([]types.Instruction, error) {
	if amount == 0 {
		return nil, ErrZeroAmount
	}
	if amount == types.UnlimitedWithdraw {
		return []types.Instruction{{
			ProgramID: desc.Address,
			Accounts:  liquidityAccounts(desc, authority),
			Data:      []byte{liquidityIxRemoveAll},
		}}, nil
	}
	return []types.Instruction{{
		ProgramID: desc.Address,
		Accounts:  liquidityAccounts(desc, authority),
		Data:      amountData(liquidityIxRemove, amount),
	}}, nil
}

func (a *LiquidityAdapter) BuildHarvest(desc types.StrategyDescriptor, authority string) ([]types.Instruction, error) {
	return []types.Instruction{{
		ProgramID: desc.Address,
		Accounts:  liquidityAccounts(desc, authority),
		Data:      []byte{liquidityIxCollect},
	}}, nil
}

func (a *LiquidityAdapter) LookupAccounts(desc types.StrategyDescriptor) []string {
	return []string{liquidityLookupTable}
}

func liquidityAccounts(desc types.StrategyDescriptor, authority string) []types.AccountMeta {
	return []types.AccountMeta{
		{Address: authority, IsSigner: true, IsWritable: true},
		{Address: desc.Reserve, IsWritable: true},
		{Address: desc.TokenAddress, IsWritable: true},
	}
}
