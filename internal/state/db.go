package state

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	if err := DB.Ping(); err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Connected to the PostgreSQL database")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the DDL for the snapshot and counter tables. Safe to
// run multiple times.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS cycle_snapshots (
			snapshot_id SERIAL PRIMARY KEY,
			cycle_number INTEGER NOT NULL,
			cycle_id UUID NOT NULL,
			trigger_kind TEXT NOT NULL,
			snapshot_timestamp TIMESTAMPTZ NOT NULL,
			policy TEXT NOT NULL,
			fallback_reason TEXT NOT NULL DEFAULT '',
			winner TEXT NOT NULL DEFAULT '',
			initial_total_native BIGINT NOT NULL,
			initial_idle_native BIGINT NOT NULL,
			initial_positions JSONB NOT NULL,
			target_allocations JSONB NOT NULL,
			operations JSONB NOT NULL,
			receipts JSONB NOT NULL,
			signatures TEXT[] NOT NULL DEFAULT '{}',
			final_total_native BIGINT NOT NULL,
			final_idle_native BIGINT NOT NULL,
			outcome TEXT NOT NULL,
			failure_reason TEXT NOT NULL DEFAULT '',
			duration_secs DOUBLE PRECISION NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_cycle_snapshots_cycle_number
			ON cycle_snapshots (cycle_number DESC);
		CREATE INDEX IF NOT EXISTS idx_cycle_snapshots_timestamp
			ON cycle_snapshots (snapshot_timestamp DESC);
	`
	if _, err := DB.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to create cycle_snapshots table: %w", err)
	}

	if err := ensureCycleCounterTable(); err != nil {
		return err
	}

	log.Info().Msg("Database schema ensured")
	return nil
}
