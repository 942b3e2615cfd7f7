// Package scheduler decides when a rebalance cycle runs: on the interval
// timer, on a sufficiently large deposit, or on a manual request.
package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumenvault/svm/internal/logger"
	"github.com/lumenvault/svm/internal/types"
)

// State is the scheduler's externally visible phase.
type State string

const (
	StateIdle      State = "idle"
	StateWaiting   State = "waiting"
	StateExecuting State = "executing"
)

// Runner executes one cycle when the scheduler fires.
type Runner interface {
	RunCycle(ctx context.Context, trigger types.TriggerKind) (types.CycleSnapshot, error)
}

// Scheduler serializes cycle triggers. Exactly one cycle runs at a time;
// events arriving mid-cycle are absorbed by the debounce rules, never
// queued.
type Scheduler struct {
	runner    Runner
	interval  time.Duration
	minAmount uint64

	deposits chan uint64
	manual   chan chan types.CycleSnapshot

	state   atomic.Value // State
	lastRun time.Time
	log     zerolog.Logger
}

func New(runner Runner, interval time.Duration, minAmount uint64) *Scheduler {
	s := &Scheduler{
		runner:    runner,
		interval:  interval,
		minAmount: minAmount,
		deposits:  make(chan uint64, 16),
		manual:    make(chan chan types.CycleSnapshot),
		log:       logger.GetForComponent("scheduler"),
	}
	s.state.Store(StateIdle)
	return s
}

// State reports the scheduler's current phase.
func (s *Scheduler) State() State {
	return s.state.Load().(State)
}

// NotifyDeposit reports an inbound deposit in native units. Non-blocking; if
// the buffer is full the deposit still gets picked up by the next timer
// tick.
func (s *Scheduler) NotifyDeposit(amount uint64) {
	select {
	case s.deposits <- amount:
	default:
		s.log.Warn().Uint64("amount", amount).Msg("Deposit buffer full, relying on timer")
	}
}

// TriggerManual requests an immediate cycle and blocks until it completes.
func (s *Scheduler) TriggerManual(ctx context.Context) (types.CycleSnapshot, error) {
	reply := make(chan types.CycleSnapshot, 1)
	select {
	case s.manual <- reply:
	case <-ctx.Done():
		return types.CycleSnapshot{}, ctx.Err()
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-ctx.Done():
		return types.CycleSnapshot{}, ctx.Err()
	}
}

// Run is the scheduler loop. It blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info().
		Dur("interval", s.interval).
		Uint64("minTriggerAmount", s.minAmount).
		Msg("Scheduler started")

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		s.state.Store(StateWaiting)
		select {
		case <-ctx.Done():
			s.state.Store(StateIdle)
			s.log.Info().Msg("Scheduler stopped")
			return ctx.Err()

		case <-timer.C:
			s.fire(ctx, types.TriggerScheduled)
			timer.Reset(s.interval)

		case amount := <-s.deposits:
			if !s.shouldFireOnDeposit(amount) {
				continue
			}
			s.fire(ctx, types.TriggerDeposit)
			resetTimer(timer, s.interval)

		case reply := <-s.manual:
			// Manual requests bypass cooldown and amount rules.
			reply <- s.fire(ctx, types.TriggerManual)
			resetTimer(timer, s.interval)
		}
	}
}

// shouldFireOnDeposit applies the debounce rules: the deposit must reach the
// minimum size and the cooldown since the last cycle must have elapsed.
func (s *Scheduler) shouldFireOnDeposit(amount uint64) bool {
	if amount < s.minAmount {
		s.log.Debug().Uint64("amount", amount).Uint64("min", s.minAmount).
			Msg("Deposit below trigger threshold, ignored")
		return false
	}
	if elapsed := time.Since(s.lastRun); elapsed < s.interval {
		s.log.Debug().Dur("elapsed", elapsed).Dur("cooldown", s.interval).
			Msg("Deposit within cooldown window, ignored")
		return false
	}
	return true
}

func (s *Scheduler) fire(ctx context.Context, trigger types.TriggerKind) types.CycleSnapshot {
	s.state.Store(StateExecuting)
	s.lastRun = time.Now()

	snap, err := s.runner.RunCycle(ctx, trigger)
	if err != nil {
		s.log.Error().Err(err).Str("trigger", string(trigger)).Msg("Cycle failed")
	}
	s.drainDeposits()
	return snap
}

// drainDeposits discards deposit events that arrived while a cycle was
// running; the cycle that just finished already saw those funds.
func (s *Scheduler) drainDeposits() {
	for {
		select {
		case <-s.deposits:
		default:
			return
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
