/*

This file contains the default governed parameters for a cellar.

These values are used when the daemon constructs a cellar and no parameter row
exists in the database yet. All of them can be changed later through the
governance setters, within the caps enforced by the cellar itself.

*/

package config

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

var (
	// DefaultPlatformFee is the annualized fraction of total assets accrued as
	// platform fees. 0.01 = 1% per year.
	DefaultPlatformFee = sdkmath.LegacyMustNewDecFromStr("0.01")

	// DefaultStrategistPlatformCut is the fraction of accrued platform fees
	// paid to the strategist on SendFees. The remainder goes to the protocol
	// fee collector.
	DefaultStrategistPlatformCut = sdkmath.LegacyMustNewDecFromStr("0.75")

	// DefaultRebalanceDeviation is the maximum fractional change in total
	// assets allowed across one adaptor call batch. 0.0003 = 0.03%.
	DefaultRebalanceDeviation = sdkmath.LegacyMustNewDecFromStr("0.0003")

	// DefaultShareLockPeriod is how long freshly minted shares stay locked.
	// Must lie within the cellar's minimum and maximum lock bounds.
	DefaultShareLockPeriod = 10 * time.Minute
)
