/*

This file contains the cycle bookkeeping types persisted to the database
after every decision-and-execution cycle.

*/

package types

import "time"

// TriggerKind records what woke the rebalance loop.
type TriggerKind string

const (
	TriggerScheduled TriggerKind = "scheduled"
	TriggerDeposit   TriggerKind = "deposit"
	TriggerManual    TriggerKind = "manual"
)

// CycleOutcome is the terminal state of one cycle.
type CycleOutcome string

const (
	OutcomeSuccess CycleOutcome = "success"
	OutcomeNoop    CycleOutcome = "noop"
	OutcomeFailed  CycleOutcome = "failed"
)

// OperationReceipt records the fate of one planned operation.
type OperationReceipt struct {
	Operation RebalanceOperation `json:"operation"`
	Success   bool               `json:"success"`
	Skipped   bool               `json:"skipped,omitempty"`
	Message   string             `json:"message,omitempty"`
	Signature string             `json:"signature,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// CycleSnapshot captures everything about one cycle for persistence and the
// dashboard API. Rebuilt per cycle.
type CycleSnapshot struct {
	CycleNumber      int                  `json:"cycle_number"`
	CycleID          string               `json:"cycle_id"`
	Trigger          TriggerKind          `json:"trigger"`
	Timestamp        time.Time            `json:"timestamp"`
	Policy           AllocationPolicy     `json:"policy"`
	Fallback         FallbackReason       `json:"fallback,omitempty"`
	Winner           StrategyID           `json:"winner,omitempty"`
	InitialTotal     uint64               `json:"initial_total"`
	InitialIdle      uint64               `json:"initial_idle"`
	InitialPositions []PositionSnapshot   `json:"initial_positions"`
	Targets          AllocationVector     `json:"targets"`
	Operations       []RebalanceOperation `json:"operations"`
	Receipts         []OperationReceipt   `json:"receipts"`
	Signatures       []string             `json:"signatures"`
	FinalTotal       uint64               `json:"final_total"`
	FinalIdle        uint64               `json:"final_idle"`
	Outcome          CycleOutcome         `json:"outcome"`
	FailureReason    string               `json:"failure_reason,omitempty"`
	DurationSecs     float64              `json:"duration_secs"`
}
