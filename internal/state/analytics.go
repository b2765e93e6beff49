// ./internal/state/analytics.go
package state

import (
	"database/sql"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"
)

// RebalanceStats aggregates the recorded adaptor-call batches.
type RebalanceStats struct {
	TotalBatches     int        `json:"total_batches"`
	Committed        int        `json:"committed"`
	RolledBack       int        `json:"rolled_back"`
	AverageDeviation float64    `json:"average_deviation"`
	MaxDeviation     float64    `json:"max_deviation"`
	LastBatchTime    *time.Time `json:"last_batch_time,omitempty"`
}

// AccrualStats aggregates the recorded platform fee accruals.
type AccrualStats struct {
	TotalAccruals   int         `json:"total_accruals"`
	TotalFeeShares  sdkmath.Int `json:"total_fee_shares"`
	LastAccrualTime *time.Time  `json:"last_accrual_time,omitempty"`
}

// GetRebalanceStats aggregates all recorded rebalance receipts.
func GetRebalanceStats() (*RebalanceStats, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT
			COUNT(*) as total_batches,
			COUNT(CASE WHEN success THEN 1 END) as committed,
			COUNT(CASE WHEN NOT success THEN 1 END) as rolled_back,
			COALESCE(AVG(deviation), 0) as average_deviation,
			COALESCE(MAX(deviation), 0) as max_deviation,
			MAX(receipt_timestamp) as last_batch_time
		FROM rebalance_receipts
	`

	stats := &RebalanceStats{}
	var lastBatch sql.NullTime
	err := DB.QueryRow(query).Scan(
		&stats.TotalBatches,
		&stats.Committed,
		&stats.RolledBack,
		&stats.AverageDeviation,
		&stats.MaxDeviation,
		&lastBatch,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get rebalance stats: %w", err)
	}
	if lastBatch.Valid {
		stats.LastBatchTime = &lastBatch.Time
	}

	log.Debug().
		Int("totalBatches", stats.TotalBatches).
		Int("rolledBack", stats.RolledBack).
		Msg("Retrieved rebalance stats")

	return stats, nil
}

// GetAccrualStats aggregates all recorded fee accruals.
func GetAccrualStats() (*AccrualStats, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT
			COUNT(*) as total_accruals,
			COALESCE(SUM(fee_shares), 0) as total_fee_shares,
			MAX(accrual_timestamp) as last_accrual_time
		FROM fee_accruals
	`

	stats := &AccrualStats{}
	var totalFeeShares string
	var lastAccrual sql.NullTime
	err := DB.QueryRow(query).Scan(&stats.TotalAccruals, &totalFeeShares, &lastAccrual)
	if err != nil {
		return nil, fmt.Errorf("failed to get accrual stats: %w", err)
	}

	if stats.TotalFeeShares, err = parseNumericInt(totalFeeShares); err != nil {
		return nil, err
	}
	if lastAccrual.Valid {
		stats.LastAccrualTime = &lastAccrual.Time
	}

	log.Debug().
		Int("totalAccruals", stats.TotalAccruals).
		Str("totalFeeShares", stats.TotalFeeShares.String()).
		Msg("Retrieved accrual stats")

	return stats, nil
}
