package main

import (
	"context"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/lumenvault/svm/internal/adapter"
	"github.com/lumenvault/svm/internal/allocator"
	"github.com/lumenvault/svm/internal/config"
	"github.com/lumenvault/svm/internal/engine"
	"github.com/lumenvault/svm/internal/events"
	"github.com/lumenvault/svm/internal/logger"
	"github.com/lumenvault/svm/internal/planner"
	"github.com/lumenvault/svm/internal/registry"
	"github.com/lumenvault/svm/internal/rpc"
	"github.com/lumenvault/svm/internal/scheduler"
	"github.com/lumenvault/svm/internal/state"
	"github.com/lumenvault/svm/internal/supervisor"
	"github.com/lumenvault/svm/internal/types"
	"github.com/lumenvault/svm/internal/vault"
	"github.com/lumenvault/svm/internal/wallet"
	"github.com/lumenvault/svm/internal/web"
	"github.com/lumenvault/svm/internal/yieldfeed"
)

// main is the entry point for the allocation controller.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("Allocation controller starting...")

	if config.RebalanceMemoryLimit > 0 {
		debug.SetMemoryLimit(config.RebalanceMemoryLimit)
		log.Info().Int64("bytes", config.RebalanceMemoryLimit).Msg("Memory limit set")
	}

	dbCfg := state.DBConfig{
		Host: config.DBHost, Port: config.DBPort,
		User: config.DBUser, Password: config.DBPassword,
		DBName: config.DBName, SSLMode: config.DBSSLMode,
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// --- 2. Chain Access ---
	primary := rpc.NewClient(config.NodeRPC)
	var fallback *rpc.Client
	if config.NodeRPCFallback != "" {
		fallback = rpc.NewClient(config.NodeRPCFallback)
	}
	failover := rpc.NewFailover(primary, fallback, config.RPCHealthInterval)

	reg, err := registry.Load(config.Strategies)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid strategy configuration")
	}
	log.Info().Int("strategies", reg.Len()).Msg("Strategy registry loaded")

	signer, err := wallet.LoadSigner(config.SignerKeyPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load signer key")
	}
	if signer.PublicKey() != config.PoolAuthority {
		log.Fatal().
			Str("signer", signer.PublicKey()).
			Str("poolAuthority", config.PoolAuthority).
			Msg("Signer key does not match the configured pool authority")
	}
	log.Info().Str("authority", signer.PublicKey()).Msg("Signer loaded")

	builder := wallet.NewBuilder(signer, failover,
		config.ComputeMarginPct, config.SubmitMaxRetries, config.ConfirmTimeout)

	// --- 3. Engine Assembly ---
	liveVault := vault.NewLiveVault(failover, reg, config.IdleAccount)
	resolver := yieldfeed.NewResolver(config.YieldAPI, config.YieldAPITimeout,
		reg, config.MinMarketTVLUSD, config.MaxDilution)

	eng := engine.New(engine.Params{
		Vault:     liveVault,
		Allocator: allocator.NewEngine(types.AllocationPolicy(config.RebalancePolicy), resolver),
		Planner:   planner.New(config.MinOperationAmount),
		Adapters:  adapter.NewSet(),
		Submitter: builder,
		Registry:  reg,
		Store:     engine.PostgresStore{},
		Authority: signer.PublicKey(),
		BatchSize: config.DecisionBatchSize,
	})

	sched := scheduler.New(eng, config.RebalanceInterval, config.MinTriggerAmount)

	// --- 4. Supervised Loops ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sup := supervisor.New(config.SupervisorMaxRestarts, config.ShutdownGrace)

	var rebalancer web.Rebalancer
	if config.EnableRebalance {
		rebalancer = sched
		sup.Start(ctx, supervisor.Loop{Name: "scheduler", Run: sched.Run})
		watcher := events.NewDepositWatcher(config.NodeWS, config.IdleAccount, sched)
		sup.Start(ctx, supervisor.Loop{Name: "deposit_watcher", Run: watcher.Run})
	} else {
		log.Warn().Msg("Rebalance loop disabled by configuration")
	}

	webServer := web.NewWebServer(config.WebListenAddr, sup, rebalancer)
	go func() {
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed")
		}
	}()

	sup.Start(ctx, supervisor.Loop{Name: "rpc_health", Run: failover.RunHealthLoop})
	if config.EnableRefresh {
		sup.Start(ctx, supervisor.Loop{Name: "refresh", Run: func(ctx context.Context) error {
			return eng.RunRefreshLoop(ctx, config.RefreshInterval)
		}})
	}

	if config.EnableHarvest {
		sup.Start(ctx, supervisor.Loop{Name: "harvest", Run: func(ctx context.Context) error {
			return eng.RunHarvestLoop(ctx, config.HarvestInterval, config.RefreshBatchSize)
		}})
	}
	if config.EnableRewardClaim {
		sup.Start(ctx, supervisor.Loop{Name: "reward_claim", Run: func(ctx context.Context) error {
			return eng.RunRewardClaimLoop(ctx, config.RewardClaimInterval, config.RefreshBatchSize)
		}})
	}

	log.Info().Msg("All loops started")

	// --- 5. Shutdown ---
	<-ctx.Done()
	log.Info().Msg("Shutdown signal received, draining loops...")
	if !sup.Wait() {
		log.Error().Msg("Some loops did not stop in time")
		os.Exit(1)
	}
	log.Info().Msg("Shutdown complete")
}
