/*

This file contains the record types persisted by the state layer and served by
the web API: rebalance receipts, fee accrual records, share price observations
and vault parameter snapshots.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// RebalanceReceipt captures one strategist adaptor-call batch end to end.
// TotalAssets must stay inside the deviation band and TotalSupply must not
// move at all; failed batches are recorded too, with the rejection reason.
type RebalanceReceipt struct {
	ReceiptID         int64             `json:"receipt_id,omitempty"` // Auto-incremented by DB
	TraceID           string            `json:"trace_id"`             // UUID correlating logs for this batch
	Timestamp         time.Time         `json:"timestamp"`
	Calls             []AdaptorCall     `json:"calls"`
	TotalAssetsBefore sdkmath.Int       `json:"total_assets_before"`
	TotalAssetsAfter  sdkmath.Int       `json:"total_assets_after"`
	TotalSupplyBefore sdkmath.Int       `json:"total_supply_before"`
	TotalSupplyAfter  sdkmath.Int       `json:"total_supply_after"`
	Deviation         sdkmath.LegacyDec `json:"deviation"` // |after-before|/before
	Success           bool              `json:"success"`
	Message           string            `json:"message,omitempty"`
}

// AccrualRecord captures one platform fee accrual event.
type AccrualRecord struct {
	RecordID       int64             `json:"record_id,omitempty"`
	TraceID        string            `json:"trace_id"`
	Timestamp      time.Time         `json:"timestamp"`
	ElapsedSeconds int64             `json:"elapsed_seconds"`
	TotalAssets    sdkmath.Int       `json:"total_assets"`
	PlatformFee    sdkmath.LegacyDec `json:"platform_fee"`
	FeeShares      sdkmath.Int       `json:"fee_shares"` // shares minted to the cellar itself
}

// ShareObservation is a periodic sample of the share price, recorded by the
// engine loop for monitoring and off-chain consumers.
type ShareObservation struct {
	ObservationID int64             `json:"observation_id,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
	TotalAssets   sdkmath.Int       `json:"total_assets"`
	TotalSupply   sdkmath.Int       `json:"total_supply"`
	SharePrice    sdkmath.LegacyDec `json:"share_price"` // accounting asset per share, in whole tokens
}

// VaultParameters is the governed configuration of a cellar as persisted for
// audit. A new row is written whenever a setter changes any of these.
type VaultParameters struct {
	ParametersID          int64             `json:"parameters_id,omitempty"`
	Timestamp             time.Time         `json:"timestamp"`
	PlatformFee           sdkmath.LegacyDec `json:"platform_fee"`
	StrategistPlatformCut sdkmath.LegacyDec `json:"strategist_platform_cut"`
	RebalanceDeviation    sdkmath.LegacyDec `json:"rebalance_deviation"`
	ShareLockPeriod       int64             `json:"share_lock_period_seconds"`
	HoldingPosition       PositionID        `json:"holding_position"`
	ShutdownActive        bool              `json:"shutdown_active"`
}
