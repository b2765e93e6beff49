/*

This file contains the housekeeping engine. It drives a periodic cycle that
accrues platform fees, samples the share price and persists both, plus a
parameter-history row whenever the governed configuration changed. The cellar
stays fully functional without a database; persistence failures are logged
and the cycle moves on.

*/

package engine

import (
	"context"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cellar-network/cellar/internal/cellar"
	"github.com/cellar-network/cellar/internal/logger"
	"github.com/cellar-network/cellar/internal/state"
	"github.com/cellar-network/cellar/internal/types"
)

// Engine runs the periodic housekeeping for one cellar.
type Engine struct {
	logger zerolog.Logger
	cellar *cellar.Cellar

	// In-process cycle count, used when the persistent counter is unavailable.
	cycleCount int
}

// Config holds the dependencies for creating a new Engine instance.
type Config struct {
	Cellar *cellar.Cellar
}

// NewEngine creates an engine instance with dependency injection.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Cellar == nil {
		return nil, fmt.Errorf("cellar cannot be nil")
	}

	e := &Engine{
		logger: logger.GetForComponent("engine"),
		cellar: cfg.Cellar,
	}

	e.logger.Info().Str("cellar", cfg.Cellar.Name()).Msg("Engine instance created")
	return e, nil
}

// RunLoop starts the housekeeping loop with the specified interval. The first
// cycle runs immediately; the loop returns when the context is cancelled.
func (e *Engine) RunLoop(ctx context.Context, interval time.Duration) {
	e.logger.Info().Dur("interval", interval).Msg("Starting engine loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.cycleCount++
	e.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("Engine loop stopped due to context cancellation")
			return
		case <-ticker.C:
			e.cycleCount++
			e.RunCycle(ctx)
		}
	}
}

// RunCycle executes one housekeeping pass: accrue platform fees, record a
// share price observation, and persist the governed parameters when they
// changed since the last recorded row.
func (e *Engine) RunCycle(ctx context.Context) {
	cycleStart := time.Now()

	// Trace ID correlates every log line and persisted row of this cycle.
	traceID := uuid.New().String()
	cycleLogger := e.logger.With().
		Str("trace_id", traceID).
		Int("cycle", e.getCycleNumber()).
		Logger()

	cycleLogger.Info().Msg("--- Starting housekeeping cycle ---")

	// --- Step 1: Platform fee accrual ---
	record, err := e.cellar.AccrueFees()
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Cycle aborted: fee accrual failed")
		return
	}
	record.TraceID = traceID

	if recordID, err := state.SaveFeeAccrual(record); err != nil {
		cycleLogger.Error().Err(err).Msg("Failed to save fee accrual record")
	} else {
		cycleLogger.Info().
			Int64("record_id", recordID).
			Int64("elapsed_seconds", record.ElapsedSeconds).
			Str("fee_shares", record.FeeShares.String()).
			Msg("Fee accrual recorded")
	}

	// --- Step 2: Share price observation ---
	// Fee minting dilutes supply but leaves total assets unchanged, so the
	// accrual's valuation carries over; only the supply needs a fresh read.
	totalSupply := e.cellar.TotalSupply()
	observation := types.ShareObservation{
		Timestamp:   time.Now(),
		TotalAssets: record.TotalAssets,
		TotalSupply: totalSupply,
		SharePrice:  SharePrice(record.TotalAssets, totalSupply, e.cellar.Asset().Decimals),
	}

	if observationID, err := state.SaveShareObservation(observation); err != nil {
		cycleLogger.Error().Err(err).Msg("Failed to save share observation")
	} else {
		cycleLogger.Info().
			Int64("observation_id", observationID).
			Str("share_price", observation.SharePrice.String()).
			Msg("Share observation recorded")
	}

	// --- Step 3: Parameter history ---
	e.recordParametersIfChanged(cycleLogger)

	cycleLogger.Info().
		Str("totalAssets", record.TotalAssets.String()).
		Str("totalSupply", totalSupply.String()).
		Str("sharePrice", observation.SharePrice.String()).
		Str("cycleDuration", time.Since(cycleStart).String()).
		Msg("--- Housekeeping cycle completed ---")
}

// SharePrice is the value of one whole share in whole accounting-asset
// tokens. An empty vault reports the bootstrap par price of 1.
func SharePrice(totalAssets, totalSupply sdkmath.Int, assetDecimals uint8) sdkmath.LegacyDec {
	if totalSupply.IsNil() || totalSupply.IsZero() {
		return sdkmath.LegacyOneDec()
	}
	numerator := sdkmath.LegacyNewDecFromInt(totalAssets).
		Mul(sdkmath.LegacyNewDec(10).Power(uint64(cellar.ShareDecimals)))
	denominator := sdkmath.LegacyNewDecFromInt(totalSupply).
		Mul(sdkmath.LegacyNewDec(10).Power(uint64(assetDecimals)))
	return numerator.Quo(denominator)
}

// recordParametersIfChanged writes a vault_parameters row when the governed
// configuration differs from the latest recorded one.
func (e *Engine) recordParametersIfChanged(cycleLogger zerolog.Logger) {
	current := e.currentParameters()

	latest, err := state.GetLatestVaultParameters()
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Failed to load latest vault parameters")
		return
	}
	if latest != nil && parametersEqual(*latest, current) {
		return
	}

	parametersID, err := state.SaveVaultParameters(current)
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Failed to save vault parameters")
		return
	}
	cycleLogger.Info().
		Int64("parameters_id", parametersID).
		Str("platform_fee", current.PlatformFee.String()).
		Str("rebalance_deviation", current.RebalanceDeviation.String()).
		Msg("Vault parameters recorded")
}

// currentParameters gathers the governed configuration from the cellar.
func (e *Engine) currentParameters() types.VaultParameters {
	feeData := e.cellar.FeeData()
	return types.VaultParameters{
		Timestamp:             time.Now(),
		PlatformFee:           feeData.PlatformFee,
		StrategistPlatformCut: feeData.StrategistPlatformCut,
		RebalanceDeviation:    e.cellar.RebalanceDeviation(),
		ShareLockPeriod:       int64(e.cellar.ShareLockPeriod().Seconds()),
		HoldingPosition:       e.cellar.HoldingPosition(),
		ShutdownActive:        e.cellar.ShutdownActive(),
	}
}

// parametersEqual compares everything except the timestamp and row id.
func parametersEqual(a, b types.VaultParameters) bool {
	return a.PlatformFee.Equal(b.PlatformFee) &&
		a.StrategistPlatformCut.Equal(b.StrategistPlatformCut) &&
		a.RebalanceDeviation.Equal(b.RebalanceDeviation) &&
		a.ShareLockPeriod == b.ShareLockPeriod &&
		a.HoldingPosition == b.HoldingPosition &&
		a.ShutdownActive == b.ShutdownActive
}

// getCycleNumber increments and returns the persistent cycle counter, falling
// back to the in-process count when the database is unavailable.
func (e *Engine) getCycleNumber() int {
	cycleNumber, err := state.IncrementCycleNumber()
	if err != nil {
		e.logger.Debug().Err(err).Msg("Persistent cycle counter unavailable, using in-process count")
		return e.cycleCount
	}
	return cycleNumber
}
