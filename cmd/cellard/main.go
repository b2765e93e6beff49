package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/cellar-network/cellar/internal/adaptors"
	"github.com/cellar-network/cellar/internal/bank"
	"github.com/cellar-network/cellar/internal/cellar"
	"github.com/cellar-network/cellar/internal/config"
	"github.com/cellar-network/cellar/internal/engine"
	"github.com/cellar-network/cellar/internal/logger"
	"github.com/cellar-network/cellar/internal/oracle"
	"github.com/cellar-network/cellar/internal/registry"
	"github.com/cellar-network/cellar/internal/state"
	"github.com/cellar-network/cellar/internal/types"
	"github.com/cellar-network/cellar/internal/web"

	sdkmath "cosmossdk.io/math"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	// Position ids assigned at bootstrap. The custody position is the holding
	// position; the yield vault and borrow market are catalogued and active so
	// strategist batches can use them immediately.
	HOLDING_POSITION_ID = types.PositionID(1)
	VAULT_POSITION_ID   = types.PositionID(2)
	DEBT_POSITION_ID    = types.PositionID(3)

	// MARKET_SEED_LIQUIDITY is the accounting-asset liquidity minted to the
	// simulated borrow market so borrows have something to draw on.
	MARKET_SEED_LIQUIDITY = 1_000_000_000_000
)

// main is the entry point for the cellar daemon.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Str("cellar", config.CellarName).Msg("Cellar daemon starting...")

	// Initialize Database Connection
	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// The accounting asset must come from the supported table so the oracle
	// can value it and the decimals stay consistent.
	accountingAsset, err := lookupAccountingAsset()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid accounting asset configuration")
	}

	// --- 2. Protocol World Construction ---
	ledger := bank.NewLedger()

	priceTable, err := oracle.NewTableOracle(config.SupportedAssets, config.InitialPricesUSD)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build price oracle")
	}

	reg, err := registry.NewRegistry(config.GovernanceAddress, config.ProtocolFeeCollector)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build registry")
	}

	vaultName := "yv-" + accountingAsset.Denom
	marketName := "lend-" + accountingAsset.Denom
	yieldVault := adaptors.NewYieldVault(ledger, vaultName, accountingAsset)
	borrowMarket := adaptors.NewBorrowMarket(ledger, marketName, accountingAsset)
	if err := borrowMarket.Fund(sdkmath.NewInt(MARKET_SEED_LIQUIDITY)); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed borrow market liquidity")
	}

	assetsByDenom := make(map[string]types.Asset, len(config.SupportedAssets))
	for _, asset := range config.SupportedAssets {
		assetsByDenom[asset.Denom] = asset
	}
	handlers := []adaptors.Adaptor{
		adaptors.NewTokenAdaptor(assetsByDenom),
		adaptors.NewYieldVaultAdaptor(yieldVault),
		adaptors.NewDebtAdaptor(borrowMarket),
	}

	cellarInstance, err := cellar.NewCellar(cellar.Config{
		Name:                    config.CellarName,
		Address:                 config.CellarAddress,
		Asset:                   accountingAsset,
		Ledger:                  ledger,
		Oracle:                  priceTable,
		Registry:                reg,
		Adaptors:                handlers,
		Strategist:              config.StrategistAddress,
		Governance:              config.GovernanceAddress,
		StrategistPayoutAddress: config.StrategistPayoutAddress,
		PlatformFee:             config.DefaultPlatformFee,
		StrategistPlatformCut:   config.DefaultStrategistPlatformCut,
		RebalanceDeviation:      config.DefaultRebalanceDeviation,
		ShareLockPeriod:         config.DefaultShareLockPeriod,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create cellar")
	}

	if err := bootstrapCellar(cellarInstance, reg, accountingAsset, handlers, vaultName, marketName); err != nil {
		log.Fatal().Err(err).Msg("Failed to bootstrap cellar positions")
	}
	log.Info().
		Str("cellar", config.CellarName).
		Str("asset", accountingAsset.Denom).
		Str("vault", vaultName).
		Str("market", marketName).
		Msg("Cellar bootstrapped")

	// --- 3. Start Web Server ---
	webServer, err := web.NewWebServer(web.ServerConfig{
		Port:       config.WebPort,
		APIToken:   config.WebAPIKey,
		Cellar:     cellarInstance,
		Strategist: config.StrategistAddress,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create web server")
	}
	go func() {
		log.Info().Str("port", config.WebPort).Str("url", "http://localhost:"+config.WebPort).Msg("Starting cellar web API")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 4. Start Housekeeping Engine ---
	engineInstance, err := engine.NewEngine(engine.Config{Cellar: cellarInstance})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create engine")
	}

	interval := time.Duration(config.AccrualIntervalMinutes) * time.Minute
	log.Info().Str("interval", interval.String()).Msg("Starting engine loop")

	ctx := context.Background()
	engineInstance.RunLoop(ctx, interval)
}

// lookupAccountingAsset resolves CELLAR_ASSET_* against the supported asset
// table and cross-checks the decimals.
func lookupAccountingAsset() (types.Asset, error) {
	for _, asset := range config.SupportedAssets {
		if asset.Denom != config.AssetDenom {
			continue
		}
		if asset.Decimals != config.AssetDecimals {
			return types.Asset{}, fmt.Errorf("CELLAR_ASSET_DECIMALS %d disagrees with asset table decimals %d for %s",
				config.AssetDecimals, asset.Decimals, asset.Denom)
		}
		return asset, nil
	}
	return types.Asset{}, fmt.Errorf("CELLAR_ASSET_DENOM %q is not in the supported asset table", config.AssetDenom)
}

// bootstrapCellar trusts and catalogues the adaptors and the three bootstrap
// positions, activates them, and makes the custody position the holding
// position.
func bootstrapCellar(c *cellar.Cellar, reg *registry.Registry, asset types.Asset, handlers []adaptors.Adaptor, vaultName, marketName string) error {
	governance := config.GovernanceAddress
	strategist := config.StrategistAddress

	for _, handler := range handlers {
		if err := reg.TrustAdaptor(governance, handler.Name()); err != nil {
			return err
		}
		if err := c.AddAdaptorToCatalogue(governance, handler.Name()); err != nil {
			return err
		}
	}

	positions := []struct {
		id          types.PositionID
		adaptor     string
		isDebt      bool
		adaptorData string
	}{
		{HOLDING_POSITION_ID, adaptors.TokenAdaptorName, false, fmt.Sprintf(`{"denom":%q}`, asset.Denom)},
		{VAULT_POSITION_ID, adaptors.YieldVaultAdaptorName, false, fmt.Sprintf(`{"vault":%q}`, vaultName)},
		{DEBT_POSITION_ID, adaptors.DebtAdaptorName, true, fmt.Sprintf(`{"market":%q}`, marketName)},
	}
	for _, p := range positions {
		if err := reg.TrustPosition(governance, p.id, p.adaptor, p.isDebt, []byte(p.adaptorData)); err != nil {
			return err
		}
		if err := c.AddPositionToCatalogue(governance, p.id); err != nil {
			return err
		}
	}

	if err := c.AddPosition(strategist, 0, HOLDING_POSITION_ID, nil, false); err != nil {
		return err
	}
	if err := c.SetHoldingPosition(governance, HOLDING_POSITION_ID); err != nil {
		return err
	}
	if err := c.AddPosition(strategist, 1, VAULT_POSITION_ID, nil, false); err != nil {
		return err
	}
	if err := c.AddPosition(strategist, 0, DEBT_POSITION_ID, nil, true); err != nil {
		return err
	}

	return nil
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
