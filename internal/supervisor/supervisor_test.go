package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestLoopRunsUntilShutdown(t *testing.T) {
	s := New(3, time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	var started atomic.Int32
	s.Start(ctx, Loop{
		Name: "steady",
		Run: func(ctx context.Context) error {
			started.Add(1)
			<-ctx.Done()
			return ctx.Err()
		},
	})

	waitFor(t, func() bool { return started.Load() == 1 })
	assert.Equal(t, StatusRunning, s.StatusOf("steady"))
	assert.True(t, s.Healthy())

	cancel()
	assert.True(t, s.Wait())
	assert.Equal(t, StatusStopped, s.StatusOf("steady"))
}

func TestPanickingLoopIsRestarted(t *testing.T) {
	s := New(5, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	s.Start(ctx, Loop{
		Name: "crashy",
		Run: func(ctx context.Context) error {
			if runs.Add(1) == 1 {
				panic("boom")
			}
			<-ctx.Done()
			return ctx.Err()
		},
	})

	waitFor(t, func() bool { return runs.Load() >= 2 })
	assert.Equal(t, StatusRunning, s.StatusOf("crashy"))
}

func TestRestartBudgetExhaustion(t *testing.T) {
	s := New(2, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	s.Start(ctx, Loop{
		Name: "doomed",
		Run: func(context.Context) error {
			runs.Add(1)
			return errors.New("cannot start")
		},
	})

	waitFor(t, func() bool { return s.StatusOf("doomed") == StatusDown })
	// Initial run plus two restarts.
	assert.Equal(t, int32(3), runs.Load())
	assert.False(t, s.Healthy())
}

func TestEarlyCleanReturnCountsAsCrash(t *testing.T) {
	s := New(3, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	s.Start(ctx, Loop{
		Name: "quitter",
		Run: func(ctx context.Context) error {
			if runs.Add(1) == 1 {
				return nil
			}
			<-ctx.Done()
			return ctx.Err()
		},
	})

	waitFor(t, func() bool { return runs.Load() >= 2 })
}

func TestCrashInOneLoopDoesNotAffectAnother(t *testing.T) {
	s := New(0, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var steadyRunning atomic.Bool
	s.Start(ctx, Loop{
		Name: "steady",
		Run: func(ctx context.Context) error {
			steadyRunning.Store(true)
			<-ctx.Done()
			return ctx.Err()
		},
	})
	s.Start(ctx, Loop{
		Name: "crashy",
		Run: func(context.Context) error {
			panic("boom")
		},
	})

	waitFor(t, func() bool { return s.StatusOf("crashy") == StatusDown })
	assert.True(t, steadyRunning.Load())
	assert.Equal(t, StatusRunning, s.StatusOf("steady"))
}

func TestUnknownLoopReportsDown(t *testing.T) {
	s := New(1, time.Second)
	assert.Equal(t, StatusDown, s.StatusOf("never-started"))
}

func TestRestartBackoffDoublesDelay(t *testing.T) {
	bo := newRestartBackoff()
	assert.Equal(t, time.Second, bo.InitialInterval)
	assert.Equal(t, float64(2), bo.Multiplier)
	assert.Equal(t, time.Minute, bo.MaxInterval)
	assert.Equal(t, time.Duration(0), bo.MaxElapsedTime)
}
