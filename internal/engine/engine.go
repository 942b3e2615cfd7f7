// Package engine orchestrates one rebalance cycle end to end: observe the
// pool, compute targets, plan operations, execute them and record the
// outcome.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lumenvault/svm/internal/adapter"
	"github.com/lumenvault/svm/internal/allocator"
	"github.com/lumenvault/svm/internal/logger"
	"github.com/lumenvault/svm/internal/observability"
	"github.com/lumenvault/svm/internal/planner"
	"github.com/lumenvault/svm/internal/registry"
	"github.com/lumenvault/svm/internal/state"
	"github.com/lumenvault/svm/internal/types"
	"github.com/lumenvault/svm/internal/vault"
	"github.com/lumenvault/svm/internal/wallet"
)

// Store persists cycle history. The live implementation writes to Postgres.
type Store interface {
	NextCycleNumber() (int, error)
	SaveSnapshot(snapshot types.CycleSnapshot) error
}

// PostgresStore bridges to the state package.
type PostgresStore struct{}

func (PostgresStore) NextCycleNumber() (int, error) { return state.IncrementCycleNumber() }
func (PostgresStore) SaveSnapshot(s types.CycleSnapshot) error {
	_, err := state.SaveCycleSnapshot(s)
	return err
}

// Engine runs rebalance cycles against a vault.
type Engine struct {
	vault     vault.Manager
	allocator *allocator.Engine
	planner   *planner.Planner
	adapters  *adapter.Set
	submitter wallet.Submitter
	reg       *registry.Registry
	store     Store
	authority string
	batchSize int
	// displayPrecision converts native units to the USD figure the dilution
	// filter consumes. One native unit per micro-dollar by default.
	usdPerNative float64
	log          zerolog.Logger
}

type Params struct {
	Vault        vault.Manager
	Allocator    *allocator.Engine
	Planner      *planner.Planner
	Adapters     *adapter.Set
	Submitter    wallet.Submitter
	Registry     *registry.Registry
	Store        Store
	Authority    string
	BatchSize    int
	USDPerNative float64
}

func New(p Params) *Engine {
	if p.BatchSize < 1 {
		p.BatchSize = 1
	}
	if p.USDPerNative <= 0 {
		p.USDPerNative = 1e-6
	}
	return &Engine{
		vault:        p.Vault,
		allocator:    p.Allocator,
		planner:      p.Planner,
		adapters:     p.Adapters,
		submitter:    p.Submitter,
		reg:          p.Registry,
		store:        p.Store,
		authority:    p.Authority,
		batchSize:    p.BatchSize,
		usdPerNative: p.USDPerNative,
		log:          logger.GetForComponent("engine"),
	}
}

// RunCycle executes one full rebalance cycle. A cycle that plans nothing is
// a noop outcome, not an error. Execution failures mark the cycle failed but
// still persist the snapshot for the record.
func (e *Engine) RunCycle(ctx context.Context, trigger types.TriggerKind) (types.CycleSnapshot, error) {
	start := time.Now()
	cycleID := uuid.New().String()
	log := logger.ForCycle(e.log, cycleID)

	cycleNumber, err := e.store.NextCycleNumber()
	if err != nil {
		return types.CycleSnapshot{}, fmt.Errorf("advancing cycle counter: %w", err)
	}

	log.Info().
		Int("cycle_number", cycleNumber).
		Str("trigger", string(trigger)).
		Msg("Cycle started")

	snap := types.CycleSnapshot{
		CycleNumber: cycleNumber,
		CycleID:     cycleID,
		Trigger:     trigger,
		Timestamp:   start.UTC(),
	}

	positions, err := e.vault.Positions(ctx)
	if err != nil {
		return e.finishFailed(snap, start, fmt.Errorf("reading positions: %w", err))
	}
	constraints, err := e.vault.Constraints(ctx)
	if err != nil {
		return e.finishFailed(snap, start, fmt.Errorf("reading constraints: %w", err))
	}

	var total, idle uint64
	for _, p := range positions {
		total += p.Value
		if p.StrategyID == types.IdleStrategyID {
			idle = p.Value
		}
	}
	snap.InitialTotal = total
	snap.InitialIdle = idle
	snap.InitialPositions = positions

	target, err := e.allocator.ComputeTarget(ctx, allocator.Input{
		Total:       total,
		Positions:   positions,
		Constraints: constraints,
		TotalUSD:    float64(total) * e.usdPerNative,
	})
	if err != nil {
		return e.finishFailed(snap, start, fmt.Errorf("computing target: %w", err))
	}
	snap.Policy = target.Policy
	snap.Fallback = target.Fallback
	snap.Winner = target.Winner
	snap.Targets = target
	if target.Fallback != types.FallbackNone {
		observability.FallbacksTotal.WithLabelValues(string(target.Fallback)).Inc()
	}

	ops := e.planner.Plan(positions, target)
	snap.Operations = ops
	if len(ops) == 0 {
		log.Info().Msg("Portfolio already on target, nothing to do")
		return e.finish(snap, start, types.OutcomeNoop, "")
	}

	receipts, execErr := e.execute(ctx, log, ops)
	snap.Receipts = receipts
	for _, r := range receipts {
		if r.Signature != "" {
			snap.Signatures = append(snap.Signatures, r.Signature)
		}
	}

	if final, ferr := e.vault.Positions(ctx); ferr == nil {
		for _, p := range final {
			snap.FinalTotal += p.Value
			if p.StrategyID == types.IdleStrategyID {
				snap.FinalIdle = p.Value
			}
		}
		e.publishGauges(final)
	} else {
		log.Warn().Err(ferr).Msg("Final position read failed")
	}

	if execErr != nil {
		return e.finishFailed(snap, start, execErr)
	}
	return e.finish(snap, start, types.OutcomeSuccess, "")
}

// interBatchDelay spaces consecutive submissions so the node sees settled
// state between them.
const interBatchDelay = 200 * time.Millisecond

// execute runs the plan in order, batching consecutive operations up to the
// batch size into one transaction. The withdraw phase completes before the
// first deposit executes. A batch failure aborts the remainder of the plan.
func (e *Engine) execute(ctx context.Context, log zerolog.Logger, ops []types.RebalanceOperation) ([]types.OperationReceipt, error) {
	receipts := make([]types.OperationReceipt, 0, len(ops))

	first := true
	for start := 0; start < len(ops); {
		batch, skipped := e.buildBatch(log, ops[start:], e.batchSize)
		receipts = append(receipts, skipped...)
		start += len(batch.Operations) + len(skipped)

		if len(batch.Instructions) == 0 {
			continue
		}

		if !first {
			select {
			case <-ctx.Done():
				return receipts, ctx.Err()
			case <-time.After(interBatchDelay):
			}
		}
		first = false

		result, err := e.submitter.Submit(ctx, batch)
		now := time.Now().UTC()
		if err != nil {
			observability.TransactionsTotal.WithLabelValues("failed").Inc()
			for _, op := range batch.Operations {
				observability.OperationsTotal.WithLabelValues(string(op.Kind), "failed").Inc()
				receipts = append(receipts, types.OperationReceipt{
					Operation: op,
					Success:   false,
					Message:   err.Error(),
					Timestamp: now,
				})
			}
			return receipts, fmt.Errorf("executing batch: %w", err)
		}

		observability.TransactionsTotal.WithLabelValues("confirmed").Inc()
		observability.ConfirmDuration.Observe(result.ConfirmSecs)
		for _, op := range batch.Operations {
			observability.OperationsTotal.WithLabelValues(string(op.Kind), "success").Inc()
			receipts = append(receipts, types.OperationReceipt{
				Operation: op,
				Success:   true,
				Signature: result.Signature,
				Timestamp: now,
			})
		}
	}
	return receipts, nil
}

// buildBatch assembles instructions for up to max consecutive operations of
// the same kind. Operations whose adapter cannot build are skipped with a
// receipt rather than failing the cycle.
func (e *Engine) buildBatch(log zerolog.Logger, ops []types.RebalanceOperation, max int) (types.TransactionBatch, []types.OperationReceipt) {
	var batch types.TransactionBatch
	var skipped []types.OperationReceipt
	lookups := make(map[string]bool)

	for _, op := range ops {
		if len(batch.Operations) >= max {
			break
		}
		// Never mix kinds in one transaction: deposits wait for the
		// withdrawal phase to land.
		if len(batch.Operations) > 0 && op.Kind != batch.Operations[0].Kind {
			break
		}

		ixs, lookup, err := e.buildOperation(op)
		if err != nil {
			log.Warn().
				Err(err).
				Str("strategy", string(op.StrategyID)).
				Str("kind", string(op.Kind)).
				Msg("Operation skipped")
			observability.OperationsTotal.WithLabelValues(string(op.Kind), "skipped").Inc()
			skipped = append(skipped, types.OperationReceipt{
				Operation: op,
				Skipped:   true,
				Message:   err.Error(),
				Timestamp: time.Now().UTC(),
			})
			if len(batch.Operations) > 0 {
				break
			}
			continue
		}

		batch.Instructions = append(batch.Instructions, ixs...)
		batch.Operations = append(batch.Operations, op)
		for _, la := range lookup {
			if !lookups[la] {
				lookups[la] = true
				batch.LookupAccounts = append(batch.LookupAccounts, la)
			}
		}
	}
	return batch, skipped
}

func (e *Engine) buildOperation(op types.RebalanceOperation) ([]types.Instruction, []string, error) {
	desc, err := e.reg.Get(op.StrategyID)
	if err != nil {
		return nil, nil, err
	}
	a, err := e.adapters.For(desc.Kind)
	if err != nil {
		return nil, nil, err
	}

	var ixs []types.Instruction
	if op.Kind == types.OpWithdraw {
		ixs, err = a.BuildWithdraw(desc, e.authority, op.Amount)
	} else {
		ixs, err = a.BuildDeposit(desc, e.authority, op.Amount)
	}
	if err != nil {
		return nil, nil, err
	}
	return ixs, a.LookupAccounts(desc), nil
}

func (e *Engine) publishGauges(positions []types.PositionSnapshot) {
	var total uint64
	for _, p := range positions {
		total += p.Value
		if p.StrategyID == types.IdleStrategyID {
			observability.IdleValueNative.Set(float64(p.Value))
			continue
		}
		observability.StrategyValueNative.WithLabelValues(string(p.StrategyID)).Set(float64(p.Value))
	}
	observability.TotalValueNative.Set(float64(total))
}

func (e *Engine) finishFailed(snap types.CycleSnapshot, start time.Time, cause error) (types.CycleSnapshot, error) {
	snap, _ = e.finish(snap, start, types.OutcomeFailed, cause.Error())
	return snap, cause
}

func (e *Engine) finish(snap types.CycleSnapshot, start time.Time, outcome types.CycleOutcome, failure string) (types.CycleSnapshot, error) {
	snap.Outcome = outcome
	snap.FailureReason = failure
	snap.DurationSecs = time.Since(start).Seconds()

	observability.CyclesTotal.WithLabelValues(string(snap.Trigger), string(outcome)).Inc()
	observability.CycleDuration.Observe(snap.DurationSecs)

	if err := e.store.SaveSnapshot(snap); err != nil {
		e.log.Error().Err(err).Int("cycle_number", snap.CycleNumber).
			Msg("Failed to persist cycle snapshot")
	}

	e.log.Info().
		Int("cycle_number", snap.CycleNumber).
		Str("outcome", string(outcome)).
		Float64("durationSecs", snap.DurationSecs).
		Msg("Cycle finished")
	return snap, nil
}
