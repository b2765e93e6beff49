// ./internal/state/accruals_store.go
package state

import (
	"fmt"

	"github.com/cellar-network/cellar/internal/types"
	"github.com/rs/zerolog/log"
)

// SaveFeeAccrual saves one platform fee accrual record to the database.
func SaveFeeAccrual(record types.AccrualRecord) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO fee_accruals (
			trace_id, accrual_timestamp, elapsed_seconds,
			total_assets, platform_fee, fee_shares
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING record_id;
	`

	var recordID int64
	err := DB.QueryRow(
		query,
		record.TraceID, record.Timestamp, record.ElapsedSeconds,
		record.TotalAssets.String(), record.PlatformFee.String(), record.FeeShares.String(),
	).Scan(&recordID)

	if err != nil {
		return 0, fmt.Errorf("failed to save fee accrual: %w", err)
	}

	log.Info().
		Int64("record_id", recordID).
		Str("fee_shares", record.FeeShares.String()).
		Msg("Fee accrual saved to database")

	return recordID, nil
}

// GetRecentAccruals retrieves recent fee accrual records, newest first.
func GetRecentAccruals(limit int) ([]types.AccrualRecord, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := `
		SELECT
			record_id, trace_id, accrual_timestamp, elapsed_seconds,
			total_assets, platform_fee, fee_shares
		FROM fee_accruals
		ORDER BY accrual_timestamp DESC
		LIMIT $1
	`

	rows, err := DB.Query(query, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to query recent fee accruals")
		return nil, fmt.Errorf("failed to query recent fee accruals: %w", err)
	}
	defer rows.Close()

	var records []types.AccrualRecord
	for rows.Next() {
		var record types.AccrualRecord
		var totalAssets, platformFee, feeShares string

		err := rows.Scan(
			&record.RecordID, &record.TraceID, &record.Timestamp, &record.ElapsedSeconds,
			&totalAssets, &platformFee, &feeShares,
		)
		if err != nil {
			log.Error().Err(err).Msg("Failed to scan fee accrual row")
			continue
		}

		if record.TotalAssets, err = parseNumericInt(totalAssets); err != nil {
			log.Error().Err(err).Msg("Failed to parse fee accrual amounts")
			continue
		}
		if record.PlatformFee, err = parseNumericDec(platformFee); err != nil {
			log.Error().Err(err).Msg("Failed to parse fee accrual amounts")
			continue
		}
		if record.FeeShares, err = parseNumericInt(feeShares); err != nil {
			log.Error().Err(err).Msg("Failed to parse fee accrual amounts")
			continue
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return records, nil
}
