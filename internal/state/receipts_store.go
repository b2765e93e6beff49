// ./internal/state/receipts_store.go
package state

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/cellar-network/cellar/internal/types"
	"github.com/rs/zerolog/log"
)

// SaveRebalanceReceipt saves one adaptor-call batch receipt to the database.
// Rolled-back batches are saved too; success and message tell them apart.
func SaveRebalanceReceipt(receipt types.RebalanceReceipt) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	callsJSON, err := json.Marshal(receipt.Calls)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal calls: %w", err)
	}

	query := `
		INSERT INTO rebalance_receipts (
			trace_id, receipt_timestamp, calls,
			total_assets_before, total_assets_after,
			total_supply_before, total_supply_after,
			deviation, success, message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING receipt_id;
	`

	var receiptID int64
	err = DB.QueryRow(
		query,
		receipt.TraceID, receipt.Timestamp, callsJSON,
		receipt.TotalAssetsBefore.String(), receipt.TotalAssetsAfter.String(),
		receipt.TotalSupplyBefore.String(), receipt.TotalSupplyAfter.String(),
		receipt.Deviation.String(), receipt.Success, receipt.Message,
	).Scan(&receiptID)

	if err != nil {
		return 0, fmt.Errorf("failed to save rebalance receipt: %w", err)
	}

	log.Info().
		Int64("receipt_id", receiptID).
		Str("trace_id", receipt.TraceID).
		Bool("success", receipt.Success).
		Msg("Rebalance receipt saved to database")

	return receiptID, nil
}

// GetRecentRebalances retrieves recent rebalance receipts, newest first.
func GetRecentRebalances(limit int) ([]types.RebalanceReceipt, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := `
		SELECT
			receipt_id, trace_id, receipt_timestamp, calls,
			total_assets_before, total_assets_after,
			total_supply_before, total_supply_after,
			deviation, success, message
		FROM rebalance_receipts
		ORDER BY receipt_timestamp DESC
		LIMIT $1
	`

	rows, err := DB.Query(query, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to query recent rebalances")
		return nil, fmt.Errorf("failed to query recent rebalances: %w", err)
	}
	defer rows.Close()

	var receipts []types.RebalanceReceipt
	for rows.Next() {
		receipt, err := scanRebalanceReceipt(rows)
		if err != nil {
			log.Error().Err(err).Msg("Failed to scan rebalance receipt row")
			continue
		}
		receipts = append(receipts, receipt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return receipts, nil
}

// GetRebalanceByID retrieves a specific rebalance receipt.
func GetRebalanceByID(receiptID int64) (*types.RebalanceReceipt, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT
			receipt_id, trace_id, receipt_timestamp, calls,
			total_assets_before, total_assets_after,
			total_supply_before, total_supply_after,
			deviation, success, message
		FROM rebalance_receipts
		WHERE receipt_id = $1
	`

	row := DB.QueryRow(query, receiptID)
	receipt, err := scanRebalanceReceipt(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("rebalance receipt %d not found", receiptID)
		}
		return nil, fmt.Errorf("failed to query rebalance receipt %d: %w", receiptID, err)
	}

	return &receipt, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRebalanceReceipt(row rowScanner) (types.RebalanceReceipt, error) {
	var receipt types.RebalanceReceipt
	var callsJSON []byte
	var assetsBefore, assetsAfter, supplyBefore, supplyAfter, deviation string
	var message sql.NullString

	err := row.Scan(
		&receipt.ReceiptID, &receipt.TraceID, &receipt.Timestamp, &callsJSON,
		&assetsBefore, &assetsAfter,
		&supplyBefore, &supplyAfter,
		&deviation, &receipt.Success, &message,
	)
	if err != nil {
		return types.RebalanceReceipt{}, err
	}

	if len(callsJSON) > 0 {
		if err := json.Unmarshal(callsJSON, &receipt.Calls); err != nil {
			return types.RebalanceReceipt{}, fmt.Errorf("failed to unmarshal calls: %w", err)
		}
	}
	if receipt.TotalAssetsBefore, err = parseNumericInt(assetsBefore); err != nil {
		return types.RebalanceReceipt{}, err
	}
	if receipt.TotalAssetsAfter, err = parseNumericInt(assetsAfter); err != nil {
		return types.RebalanceReceipt{}, err
	}
	if receipt.TotalSupplyBefore, err = parseNumericInt(supplyBefore); err != nil {
		return types.RebalanceReceipt{}, err
	}
	if receipt.TotalSupplyAfter, err = parseNumericInt(supplyAfter); err != nil {
		return types.RebalanceReceipt{}, err
	}
	if receipt.Deviation, err = parseNumericDec(deviation); err != nil {
		return types.RebalanceReceipt{}, err
	}
	receipt.Message = message.String

	return receipt, nil
}
