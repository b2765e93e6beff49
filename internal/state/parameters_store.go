// ./internal/state/parameters_store.go
package state

import (
	"database/sql"
	"fmt"

	"github.com/cellar-network/cellar/internal/types"
	"github.com/rs/zerolog/log"
)

// SaveVaultParameters appends one row of governed cellar configuration to the
// parameter history. Rows are append-only; the newest row is the current one.
func SaveVaultParameters(params types.VaultParameters) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO vault_parameters (
			recorded_at, platform_fee, strategist_platform_cut,
			rebalance_deviation, share_lock_period_seconds,
			holding_position, shutdown_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING parameters_id;
	`

	var parametersID int64
	err := DB.QueryRow(
		query,
		params.Timestamp,
		params.PlatformFee.String(), params.StrategistPlatformCut.String(),
		params.RebalanceDeviation.String(), params.ShareLockPeriod,
		int64(params.HoldingPosition), params.ShutdownActive,
	).Scan(&parametersID)

	if err != nil {
		return 0, fmt.Errorf("failed to save vault parameters: %w", err)
	}

	log.Info().
		Int64("parameters_id", parametersID).
		Str("platform_fee", params.PlatformFee.String()).
		Bool("shutdown", params.ShutdownActive).
		Msg("Saved vault parameters")

	return parametersID, nil
}

// GetLatestVaultParameters returns the newest recorded parameter row, or nil
// when none has been recorded yet.
func GetLatestVaultParameters() (*types.VaultParameters, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT parameters_id, recorded_at, platform_fee, strategist_platform_cut,
			rebalance_deviation, share_lock_period_seconds,
			holding_position, shutdown_active
		FROM vault_parameters
		ORDER BY recorded_at DESC, parameters_id DESC
		LIMIT 1
	`

	params, err := scanVaultParameters(DB.QueryRow(query))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query latest vault parameters: %w", err)
	}

	return &params, nil
}

// GetParameterHistory retrieves recorded parameter rows, newest first.
func GetParameterHistory(limit int) ([]types.VaultParameters, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := `
		SELECT parameters_id, recorded_at, platform_fee, strategist_platform_cut,
			rebalance_deviation, share_lock_period_seconds,
			holding_position, shutdown_active
		FROM vault_parameters
		ORDER BY recorded_at DESC, parameters_id DESC
		LIMIT $1
	`

	rows, err := DB.Query(query, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to query vault parameter history")
		return nil, fmt.Errorf("failed to query vault parameter history: %w", err)
	}
	defer rows.Close()

	var history []types.VaultParameters
	for rows.Next() {
		params, err := scanVaultParameters(rows)
		if err != nil {
			log.Error().Err(err).Msg("Failed to scan vault parameters row")
			continue
		}
		history = append(history, params)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return history, nil
}

func scanVaultParameters(row rowScanner) (types.VaultParameters, error) {
	var params types.VaultParameters
	var platformFee, strategistCut, deviation string
	var holdingPosition int64

	err := row.Scan(
		&params.ParametersID, &params.Timestamp, &platformFee, &strategistCut,
		&deviation, &params.ShareLockPeriod,
		&holdingPosition, &params.ShutdownActive,
	)
	if err != nil {
		return types.VaultParameters{}, err
	}

	if params.PlatformFee, err = parseNumericDec(platformFee); err != nil {
		return types.VaultParameters{}, err
	}
	if params.StrategistPlatformCut, err = parseNumericDec(strategistCut); err != nil {
		return types.VaultParameters{}, err
	}
	if params.RebalanceDeviation, err = parseNumericDec(deviation); err != nil {
		return types.VaultParameters{}, err
	}
	params.HoldingPosition = types.PositionID(holdingPosition)

	return params, nil
}
