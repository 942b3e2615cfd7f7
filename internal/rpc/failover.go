package rpc

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/lumenvault/svm/internal/logger"
	"github.com/lumenvault/svm/internal/observability"
)

// Failover owns the primary and fallback clients and decides which one
// callers talk to. Failover state is mutated only here; everything else
// reads it through Client().
type Failover struct {
	primary  *Client
	fallback *Client
	// onFallback is 1 while the fallback endpoint is active.
	onFallback atomic.Bool
	interval   time.Duration
}

// NewFailover creates a failover manager. fallback may be nil, in which case
// the primary is always used.
func NewFailover(primary, fallback *Client, healthInterval time.Duration) *Failover {
	return &Failover{
		primary:  primary,
		fallback: fallback,
		interval: healthInterval,
	}
}

// Client returns the currently active client.
func (f *Failover) Client() *Client {
	if f.fallback != nil && f.onFallback.Load() {
		return f.fallback
	}
	return f.primary
}

// OnFallback reports whether the fallback endpoint is active.
func (f *Failover) OnFallback() bool {
	return f.fallback != nil && f.onFallback.Load()
}

// Do runs fn against the active client. If it fails and a standby endpoint
// exists, the standby is tried once and becomes active on success.
func (f *Failover) Do(ctx context.Context, fn func(*Client) error) error {
	active := f.Client()
	err := fn(active)
	if err == nil || f.fallback == nil {
		return err
	}

	var standby *Client
	if active == f.primary {
		standby = f.fallback
	} else {
		standby = f.primary
	}

	log := logger.GetForComponent("rpc_failover")
	log.Warn().Err(err).
		Str("failed", active.Endpoint()).
		Str("standby", standby.Endpoint()).
		Msg("Active RPC endpoint failed, trying standby")

	if sErr := fn(standby); sErr != nil {
		// Both sides failed; surface the original error.
		return err
	}

	if standby == f.fallback && !f.onFallback.Load() {
		observability.RPCFailoversTotal.Inc()
	}
	f.onFallback.Store(standby == f.fallback)
	log.Info().Str("active", standby.Endpoint()).Msg("Switched active RPC endpoint")
	return nil
}

// RunHealthLoop probes the primary on an interval and restores it as the
// active endpoint once it recovers. Intended to run as a supervised loop.
func (f *Failover) RunHealthLoop(ctx context.Context) error {
	if f.fallback == nil {
		<-ctx.Done()
		return nil
	}

	log := logger.GetForComponent("rpc_failover")
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(ctx, f.interval/2)
			err := f.primary.GetHealth(probeCtx)
			cancel()

			switch {
			case err == nil && f.onFallback.Load():
				f.onFallback.Store(false)
				log.Info().Str("endpoint", f.primary.Endpoint()).Msg("Primary RPC endpoint recovered")
			case err != nil && !f.onFallback.Load():
				fbCtx, fbCancel := context.WithTimeout(ctx, f.interval/2)
				fbErr := f.fallback.GetHealth(fbCtx)
				fbCancel()
				if fbErr == nil {
					f.onFallback.Store(true)
					observability.RPCFailoversTotal.Inc()
					log.Warn().Err(err).
						Str("fallback", f.fallback.Endpoint()).
						Msg("Primary RPC endpoint unhealthy, failing over")
				} else {
					log.Error().Err(err).AnErr("fallbackErr", fbErr).
						Msg("Both RPC endpoints unhealthy")
				}
			}
		}
	}
}
