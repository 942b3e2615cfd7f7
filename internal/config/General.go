package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// PoolAuthority is the address that owns the pool's accounts and signs
	// every transaction.
	PoolAuthority string
	// IdleAccount is the token account holding funds not deposited into any
	// strategy.
	IdleAccount string
	// SignerKeyPath is the path to the base58-encoded ed25519 seed used for
	// signing. Key management itself lives outside the core.
	SignerKeyPath string

	// RebalancePolicy is the allocation policy for the rebalance loop
	// ("equal_weight" or "yield_optimized").
	RebalancePolicy string

	// RebalanceInterval is the scheduled cadence of the rebalance loop. It
	// also acts as the cooldown window for deposit triggers.
	RebalanceInterval time.Duration
	// RefreshInterval is the cadence of the position refresh loop.
	RefreshInterval time.Duration
	// HarvestInterval is the cadence of the fee harvest loop.
	HarvestInterval time.Duration
	// RewardClaimInterval is the cadence of the reward claim loop.
	RewardClaimInterval time.Duration

	// MinTriggerAmount is the smallest deposit-increase event (native units)
	// that wakes the rebalance loop off-schedule.
	MinTriggerAmount uint64
	// MinOperationAmount is the dust floor: deltas below it emit no
	// operation, which also keeps back-to-back cycles idempotent.
	MinOperationAmount uint64

	// MinMarketTVLUSD filters yield candidates with too little liquidity.
	MinMarketTVLUSD float64
	// MaxDilution filters yield candidates our own deposit would dilute by
	// more than this APY fraction.
	MaxDilution float64

	// DecisionBatchSize is operations per transaction in the rebalance loop.
	DecisionBatchSize int
	// RefreshBatchSize is strategies per transaction for maintenance work
	// such as fee harvesting and reward claims.
	RefreshBatchSize int

	// ComputeMarginPct is the safety margin applied to simulated compute
	// units before submission.
	ComputeMarginPct uint64
	// SubmitMaxRetries bounds submission attempts per transaction.
	SubmitMaxRetries int
	// ConfirmTimeout bounds confirmation polling per transaction.
	ConfirmTimeout time.Duration

	// EnableRebalance, EnableRefresh, EnableHarvest, EnableRewardClaim gate
	// the individual loops.
	EnableRebalance   bool
	EnableRefresh     bool
	EnableHarvest     bool
	EnableRewardClaim bool

	// SupervisorMaxRestarts is how many times a crashed loop is restarted
	// before it is reported permanently down.
	SupervisorMaxRestarts int
	// ShutdownGrace bounds how long shutdown waits for loops to drain.
	ShutdownGrace time.Duration
	// RebalanceMemoryLimit is the soft memory ceiling (bytes) applied for
	// the benefit of the isolated rebalance unit. Zero leaves the runtime
	// default in place.
	RebalanceMemoryLimit int64
)

// LoadConfig loads configuration from environment variables and sets the
// global config vars. Endpoints, authority and key path are required; tuning
// knobs fall back to conservative defaults.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	PoolAuthority, err = getEnv("SVM_POOL_AUTHORITY")
	if err != nil {
		return err
	}

	IdleAccount, err = getEnv("SVM_IDLE_ACCOUNT")
	if err != nil {
		return err
	}

	SignerKeyPath, err = getEnv("SVM_SIGNER_KEY_PATH")
	if err != nil {
		return err
	}

	RebalancePolicy = getEnvOr("SVM_POLICY", "yield_optimized")
	if RebalancePolicy != "equal_weight" && RebalancePolicy != "yield_optimized" {
		return errors.New("SVM_POLICY must be equal_weight or yield_optimized, got: " + RebalancePolicy)
	}

	RebalanceInterval, err = getEnvAsDurationOr("SVM_REBALANCE_INTERVAL", 10*time.Minute)
	if err != nil {
		return err
	}
	RefreshInterval, err = getEnvAsDurationOr("SVM_REFRESH_INTERVAL", 2*time.Minute)
	if err != nil {
		return err
	}
	HarvestInterval, err = getEnvAsDurationOr("SVM_HARVEST_INTERVAL", time.Hour)
	if err != nil {
		return err
	}
	RewardClaimInterval, err = getEnvAsDurationOr("SVM_REWARD_CLAIM_INTERVAL", 6*time.Hour)
	if err != nil {
		return err
	}

	MinTriggerAmount, err = getEnvAsUint64Or("SVM_MIN_TRIGGER_AMOUNT", 1_000_000)
	if err != nil {
		return err
	}
	MinOperationAmount, err = getEnvAsUint64Or("SVM_MIN_OPERATION_AMOUNT", 10_000)
	if err != nil {
		return err
	}

	MinMarketTVLUSD, err = getEnvAsFloat64Or("SVM_MIN_MARKET_TVL_USD", 250_000)
	if err != nil {
		return err
	}
	MaxDilution, err = getEnvAsFloat64Or("SVM_MAX_DILUTION", 0.005)
	if err != nil {
		return err
	}
	if MaxDilution < 0 || MinMarketTVLUSD < 0 {
		return errors.New("dilution and TVL thresholds cannot be negative")
	}

	DecisionBatchSize, err = getEnvAsIntOr("SVM_DECISION_BATCH_SIZE", 1)
	if err != nil {
		return err
	}
	RefreshBatchSize, err = getEnvAsIntOr("SVM_REFRESH_BATCH_SIZE", 4)
	if err != nil {
		return err
	}
	if DecisionBatchSize < 1 || RefreshBatchSize < 1 {
		return errors.New("batch sizes must be at least 1")
	}

	ComputeMarginPct, err = getEnvAsUint64Or("SVM_COMPUTE_MARGIN_PCT", 10)
	if err != nil {
		return err
	}
	SubmitMaxRetries, err = getEnvAsIntOr("SVM_SUBMIT_MAX_RETRIES", 3)
	if err != nil {
		return err
	}
	ConfirmTimeout, err = getEnvAsDurationOr("SVM_CONFIRM_TIMEOUT", 90*time.Second)
	if err != nil {
		return err
	}

	EnableRebalance = getEnvAsBoolOr("SVM_ENABLE_REBALANCE", true)
	EnableRefresh = getEnvAsBoolOr("SVM_ENABLE_REFRESH", true)
	EnableHarvest = getEnvAsBoolOr("SVM_ENABLE_HARVEST", false)
	EnableRewardClaim = getEnvAsBoolOr("SVM_ENABLE_REWARD_CLAIM", false)

	SupervisorMaxRestarts, err = getEnvAsIntOr("SVM_MAX_RESTARTS", 5)
	if err != nil {
		return err
	}
	ShutdownGrace, err = getEnvAsDurationOr("SVM_SHUTDOWN_GRACE", 30*time.Second)
	if err != nil {
		return err
	}
	RebalanceMemoryLimit, err = getEnvAsInt64Or("SVM_MEMORY_LIMIT_BYTES", 0)
	if err != nil {
		return err
	}

	if err := loadEndpointConfig(); err != nil {
		return err
	}

	if err := loadStrategyConfig(); err != nil {
		return err
	}

	if err := loadDatabaseConfig(); err != nil {
		return err
	}

	log.Debug().
		Str("policy", RebalancePolicy).
		Dur("rebalanceInterval", RebalanceInterval).
		Uint64("minTriggerAmount", MinTriggerAmount).
		Int("strategies", len(Strategies)).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvOr retrieves a string environment variable with a default.
func getEnvOr(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsUint64Or(key string, defaultValue uint64) (uint64, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

func getEnvAsInt64Or(key string, defaultValue int64) (int64, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid int64, got: " + valueStr)
	}
	return value, nil
}

func getEnvAsIntOr(key string, defaultValue int) (int, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid int, got: " + valueStr)
	}
	return value, nil
}

func getEnvAsFloat64Or(key string, defaultValue float64) (float64, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid float64, got: " + valueStr)
	}
	return value, nil
}

func getEnvAsDurationOr(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid duration, got: " + valueStr)
	}
	return value, nil
}

func getEnvAsBoolOr(key string, defaultValue bool) bool {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
