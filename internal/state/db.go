// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
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
	SSLMode  string // "disable", "require", "verify-full", etc.
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

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
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

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
//
// Token amounts are stored as NUMERIC(78, 0), wide enough for any uint256
// amount, and decimal fractions as NUMERIC(42, 18) matching the 18-digit
// fixed-point rates used throughout the cellar.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS rebalance_receipts (
			receipt_id SERIAL PRIMARY KEY,
			trace_id VARCHAR(64) NOT NULL,
			receipt_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			calls JSONB,
			total_assets_before NUMERIC(78, 0) NOT NULL,
			total_assets_after NUMERIC(78, 0) NOT NULL,
			total_supply_before NUMERIC(78, 0) NOT NULL,
			total_supply_after NUMERIC(78, 0) NOT NULL,
			deviation NUMERIC(42, 18) NOT NULL,
			success BOOLEAN NOT NULL,
			message TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_rebalance_receipts_timestamp ON rebalance_receipts(receipt_timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_rebalance_receipts_success ON rebalance_receipts(success);

		CREATE TABLE IF NOT EXISTS fee_accruals (
			record_id SERIAL PRIMARY KEY,
			trace_id VARCHAR(64) NOT NULL,
			accrual_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			elapsed_seconds BIGINT NOT NULL,
			total_assets NUMERIC(78, 0) NOT NULL,
			platform_fee NUMERIC(42, 18) NOT NULL,
			fee_shares NUMERIC(78, 0) NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_fee_accruals_timestamp ON fee_accruals(accrual_timestamp DESC);

		CREATE TABLE IF NOT EXISTS share_observations (
			observation_id SERIAL PRIMARY KEY,
			observation_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			total_assets NUMERIC(78, 0) NOT NULL,
			total_supply NUMERIC(78, 0) NOT NULL,
			share_price NUMERIC(42, 18) NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_share_observations_timestamp ON share_observations(observation_timestamp DESC);

		CREATE TABLE IF NOT EXISTS vault_parameters (
			parameters_id SERIAL PRIMARY KEY,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			platform_fee NUMERIC(42, 18) NOT NULL,
			strategist_platform_cut NUMERIC(42, 18) NOT NULL,
			rebalance_deviation NUMERIC(42, 18) NOT NULL,
			share_lock_period_seconds BIGINT NOT NULL,
			holding_position BIGINT NOT NULL,
			shutdown_active BOOLEAN NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_vault_parameters_recorded ON vault_parameters(recorded_at DESC);

		-- Cycle counter table for persistent engine cycle numbering
		CREATE TABLE IF NOT EXISTS cycle_counter (
			id INTEGER PRIMARY KEY DEFAULT 1,
			current_cycle INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT single_row_check CHECK (id = 1)
		);

		-- Insert initial row if it doesn't exist
		INSERT INTO cycle_counter (id, current_cycle)
		VALUES (1, 0)
		ON CONFLICT (id) DO NOTHING;
	`
	_, err := DB.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := DB.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}

// parseNumericInt converts a NUMERIC column scanned as text into an Int.
func parseNumericInt(value string) (sdkmath.Int, error) {
	parsed, ok := sdkmath.NewIntFromString(value)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("invalid integer numeric %q", value)
	}
	return parsed, nil
}

// parseNumericDec converts a NUMERIC column scanned as text into a LegacyDec.
func parseNumericDec(value string) (sdkmath.LegacyDec, error) {
	parsed, err := sdkmath.LegacyNewDecFromStr(value)
	if err != nil {
		return sdkmath.LegacyDec{}, fmt.Errorf("invalid decimal numeric %q: %w", value, err)
	}
	return parsed, nil
}
