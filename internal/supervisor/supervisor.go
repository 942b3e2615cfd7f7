// Package supervisor keeps the controller's long-running loops alive. A
// loop that panics or returns early is restarted with exponential backoff;
// one that keeps dying is marked permanently down without taking the rest
// of the process with it.
package supervisor

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/lumenvault/svm/internal/logger"
	"github.com/lumenvault/svm/internal/observability"
)

// Loop is a named long-running function. It should block until ctx is
// cancelled; returning earlier counts as a crash.
type Loop struct {
	Name string
	Run  func(ctx context.Context) error
}

// Status of one supervised loop.
type Status string

const (
	StatusRunning Status = "running"
	StatusDown    Status = "down"
	StatusStopped Status = "stopped"
)

// Supervisor runs loops in isolated goroutines.
type Supervisor struct {
	maxRestarts int
	grace       time.Duration

	mu       sync.Mutex
	statuses map[string]Status
	wg       sync.WaitGroup
	log      zerolog.Logger
}

func New(maxRestarts int, shutdownGrace time.Duration) *Supervisor {
	return &Supervisor{
		maxRestarts: maxRestarts,
		grace:       shutdownGrace,
		statuses:    make(map[string]Status),
		log:         logger.GetForComponent("supervisor"),
	}
}

// Start launches the loop under supervision. Safe to call for several loops;
// each gets its own restart budget.
func (s *Supervisor) Start(ctx context.Context, loop Loop) {
	s.setStatus(loop.Name, StatusRunning)
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		s.supervise(ctx, loop)
	}()
}

// newRestartBackoff doubles the delay on every crash, capped at a minute,
// and never gives up on elapsed time alone.
func newRestartBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.Multiplier = 2
	bo.MaxInterval = time.Minute
	bo.MaxElapsedTime = 0
	return bo
}

func (s *Supervisor) supervise(ctx context.Context, loop Loop) {
	bo := newRestartBackoff()

	restarts := 0
	for {
		err := s.runOnce(ctx, loop)
		if ctx.Err() != nil {
			s.setStatus(loop.Name, StatusStopped)
			s.log.Info().Str("loop", loop.Name).Msg("Loop stopped")
			return
		}

		restarts++
		observability.SupervisorRestartsTotal.WithLabelValues(loop.Name).Inc()
		if restarts > s.maxRestarts {
			s.setStatus(loop.Name, StatusDown)
			s.log.Error().
				Str("loop", loop.Name).
				Int("restarts", restarts-1).
				Msg("Loop exceeded restart budget, permanently down")
			return
		}

		wait := bo.NextBackOff()
		s.log.Warn().
			Err(err).
			Str("loop", loop.Name).
			Int("attempt", restarts).
			Dur("backoff", wait).
			Msg("Loop crashed, restarting")

		select {
		case <-ctx.Done():
			s.setStatus(loop.Name, StatusStopped)
			return
		case <-time.After(wait):
		}
	}
}

// runOnce executes one incarnation of the loop, converting panics into
// errors so a crash never escapes the supervision goroutine.
func (s *Supervisor) runOnce(ctx context.Context, loop Loop) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v\n%s", loop.Name, r, debug.Stack())
		}
	}()

	err = loop.Run(ctx)
	if err == nil && ctx.Err() == nil {
		err = fmt.Errorf("loop %s returned without error before shutdown", loop.Name)
	}
	return err
}

// StatusOf reports the current status of a loop; unknown names are down.
func (s *Supervisor) StatusOf(name string) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.statuses[name]; ok {
		return st
	}
	return StatusDown
}

// Healthy reports whether every supervised loop is currently running.
func (s *Supervisor) Healthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.statuses {
		if st != StatusRunning {
			return false
		}
	}
	return true
}

// Wait blocks until all loops have exited or the shutdown grace period
// passes. Returns false if the grace period expired first.
func (s *Supervisor) Wait() bool {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(s.grace):
		s.log.Error().Dur("grace", s.grace).Msg("Shutdown grace period expired")
		return false
	}
}

func (s *Supervisor) setStatus(name string, st Status) {
	s.mu.Lock()
	s.statuses[name] = st
	s.mu.Unlock()
}
