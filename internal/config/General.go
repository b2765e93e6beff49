package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// CellarName is the display name of the cellar this daemon manages.
	CellarName string

	// AssetDenom is the base denom of the cellar's accounting asset (e.g., "uusdc").
	AssetDenom string
	// AssetSymbol is the display symbol of the accounting asset (e.g., "USDC").
	AssetSymbol string
	// AssetDecimals is the decimal precision of the accounting asset.
	AssetDecimals uint8

	// CellarAddress is the cellar's own custody account.
	CellarAddress string
	// StrategistAddress is the account authorized for rebalances and position management.
	StrategistAddress string
	// GovernanceAddress is the account authorized for catalogue, fee and shutdown operations.
	GovernanceAddress string
	// StrategistPayoutAddress receives the strategist's cut of platform fees.
	StrategistPayoutAddress string
	// ProtocolFeeCollector receives the protocol's share of platform fees.
	ProtocolFeeCollector string

	// AccrualIntervalMinutes is how often the engine accrues fees and records an observation.
	AccrualIntervalMinutes uint64
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// All environment variables are required and must be set.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	CellarName, err = getEnv("CELLAR_NAME")
	if err != nil {
		return err
	}

	AssetDenom, err = getEnv("CELLAR_ASSET_DENOM")
	if err != nil {
		return err
	}

	AssetSymbol, err = getEnv("CELLAR_ASSET_SYMBOL")
	if err != nil {
		return err
	}

	AssetDecimals, err = getEnvAsUint8("CELLAR_ASSET_DECIMALS")
	if err != nil {
		return err
	}

	CellarAddress, err = getEnv("CELLAR_ADDRESS")
	if err != nil {
		return err
	}

	StrategistAddress, err = getEnv("STRATEGIST_ADDRESS")
	if err != nil {
		return err
	}

	GovernanceAddress, err = getEnv("GOVERNANCE_ADDRESS")
	if err != nil {
		return err
	}

	StrategistPayoutAddress, err = getEnv("STRATEGIST_PAYOUT_ADDRESS")
	if err != nil {
		return err
	}

	ProtocolFeeCollector, err = getEnv("PROTOCOL_FEE_COLLECTOR")
	if err != nil {
		return err
	}

	AccrualIntervalMinutes, err = getEnvAsUint64("ACCRUAL_INTERVAL_MINUTES")
	if err != nil {
		return err
	}

	// Load web server configuration
	if err := loadServerConfig(); err != nil {
		return err
	}

	log.Debug().
		Str("CellarName", CellarName).
		Str("AssetDenom", AssetDenom).
		Str("Strategist", StrategistAddress).
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

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsUint8 retrieves an environment variable as a uint8. Returns error if not set or invalid.
func getEnvAsUint8(key string) (uint8, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 8)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint8, got: " + valueStr)
	}
	return uint8(value), nil
}
