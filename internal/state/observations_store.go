// ./internal/state/observations_store.go
package state

import (
	"fmt"

	"github.com/cellar-network/cellar/internal/types"
	"github.com/rs/zerolog/log"
)

// SaveShareObservation saves one share price sample to the database.
func SaveShareObservation(observation types.ShareObservation) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO share_observations (
			observation_timestamp, total_assets, total_supply, share_price
		) VALUES ($1, $2, $3, $4)
		RETURNING observation_id;
	`

	var observationID int64
	err := DB.QueryRow(
		query,
		observation.Timestamp,
		observation.TotalAssets.String(),
		observation.TotalSupply.String(),
		observation.SharePrice.String(),
	).Scan(&observationID)

	if err != nil {
		return 0, fmt.Errorf("failed to save share observation: %w", err)
	}

	log.Debug().
		Int64("observation_id", observationID).
		Str("share_price", observation.SharePrice.String()).
		Msg("Share observation saved to database")

	return observationID, nil
}

// GetRecentObservations retrieves recent share price samples, newest first.
func GetRecentObservations(limit int) ([]types.ShareObservation, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `
		SELECT observation_id, observation_timestamp, total_assets, total_supply, share_price
		FROM share_observations
		ORDER BY observation_timestamp DESC
		LIMIT $1
	`

	rows, err := DB.Query(query, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to query share observations")
		return nil, fmt.Errorf("failed to query share observations: %w", err)
	}
	defer rows.Close()

	var observations []types.ShareObservation
	for rows.Next() {
		var observation types.ShareObservation
		var totalAssets, totalSupply, sharePrice string

		err := rows.Scan(
			&observation.ObservationID, &observation.Timestamp,
			&totalAssets, &totalSupply, &sharePrice,
		)
		if err != nil {
			log.Error().Err(err).Msg("Failed to scan share observation row")
			continue
		}

		if observation.TotalAssets, err = parseNumericInt(totalAssets); err != nil {
			log.Error().Err(err).Msg("Failed to parse share observation amounts")
			continue
		}
		if observation.TotalSupply, err = parseNumericInt(totalSupply); err != nil {
			log.Error().Err(err).Msg("Failed to parse share observation amounts")
			continue
		}
		if observation.SharePrice, err = parseNumericDec(sharePrice); err != nil {
			log.Error().Err(err).Msg("Failed to parse share observation amounts")
			continue
		}

		observations = append(observations, observation)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return observations, nil
}
