package config

import (
	"time"

	"github.com/rs/zerolog/log"
)

// Endpoint configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// NodeRPC is the primary JSON-RPC endpoint.
	NodeRPC string
	// NodeRPCFallback is the fallback JSON-RPC endpoint used when the
	// primary fails health checks. Optional; empty disables failover.
	NodeRPCFallback string
	// NodeWS is the websocket endpoint for account subscriptions.
	NodeWS string
	// YieldAPI is the HTTP endpoint returning market yield records.
	YieldAPI string
	// YieldAPITimeout bounds one yield fetch.
	YieldAPITimeout time.Duration
	// RPCHealthInterval is how often the transport manager probes the
	// primary endpoint.
	RPCHealthInterval time.Duration
)

// loadEndpointConfig loads endpoint configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadEndpointConfig() error {
	log.Info().Msg("Loading endpoint configuration from environment variables...")

	var err error

	NodeRPC, err = getEnv("NODE_RPC")
	if err != nil {
		return err
	}

	NodeRPCFallback = getEnvOr("NODE_RPC_FALLBACK", "")

	NodeWS, err = getEnv("NODE_WS")
	if err != nil {
		return err
	}

	YieldAPI, err = getEnv("YIELD_API")
	if err != nil {
		return err
	}

	YieldAPITimeout, err = getEnvAsDurationOr("YIELD_API_TIMEOUT", 10*time.Second)
	if err != nil {
		return err
	}

	RPCHealthInterval, err = getEnvAsDurationOr("RPC_HEALTH_INTERVAL", 30*time.Second)
	if err != nil {
		return err
	}

	log.Debug().
		Str("NodeRPC", NodeRPC).
		Str("NodeRPCFallback", NodeRPCFallback).
		Str("YieldAPI", YieldAPI).
		Msg("Endpoint configuration loaded successfully.")

	return nil
}
