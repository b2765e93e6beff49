/*

This file contains the fee bookkeeping types. Platform fees accrue against
total assets over time and are realized as share dilution; the strategist's
cut is paid out on a separate claim.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

type FeeData struct {
	StrategistPlatformCut   sdkmath.LegacyDec `json:"strategist_platform_cut"` // fraction of platform fees owed to the strategist, 0.0 - 1.0
	PlatformFee             sdkmath.LegacyDec `json:"platform_fee"`            // annualized fraction of total assets, e.g. 0.01 = 1%/year
	LastAccrual             time.Time         `json:"last_accrual"`
	StrategistPayoutAddress string            `json:"strategist_payout_address"`
}
