/*

This file contains the wire-level types handed from the orchestrator to the
transaction layer: instructions, account references, batches, and the
submission result.

*/

package types

// AccountMeta is one account referenced by an instruction.
type AccountMeta struct {
	Address    string `json:"address"`
	IsSigner   bool   `json:"is_signer"`
	IsWritable bool   `json:"is_writable"`
}

// Instruction is a single protocol-level operation built by a strategy
// adapter. The data payload is opaque to everything above the adapter.
type Instruction struct {
	ProgramID string        `json:"program_id"`
	Accounts  []AccountMeta `json:"accounts"`
	Data      []byte        `json:"data"`
}

// TransactionBatch is an ordered instruction list plus the lookup-account
// references needed to address them compactly. Built by the orchestrator,
// consumed by the transaction layer; stateless, rebuilt every cycle.
type TransactionBatch struct {
	Instructions   []Instruction `json:"instructions"`
	LookupAccounts []string      `json:"lookup_accounts,omitempty"`
	// Operations records which rebalance operations this batch carries,
	// for receipts and logging.
	Operations []RebalanceOperation `json:"operations"`
}

// TransactionResult describes one submitted batch.
type TransactionResult struct {
	Signature     string  `json:"signature"`
	ComputeUnits  uint64  `json:"compute_units"`
	PriorityFee   uint64  `json:"priority_fee"` // micro-units per compute unit
	FeeNative     uint64  `json:"fee_native"`
	Confirmed     bool    `json:"confirmed"`
	ConfirmSecs   float64 `json:"confirm_secs"`
	SubmitRetries int     `json:"submit_retries"`
}
