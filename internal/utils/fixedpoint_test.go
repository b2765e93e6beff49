package utils_test

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/cellar-network/cellar/internal/utils"
)

// TestMulDivDown_TruncatesTowardZero verifies the round-down quotient used by
// deposit direction conversions.
func TestMulDivDown_TruncatesTowardZero(t *testing.T) {
	result, err := utils.MulDivDown(sdkmath.NewInt(10), sdkmath.NewInt(10), sdkmath.NewInt(3))
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(33), result)

	// Exact division loses nothing.
	result, err = utils.MulDivDown(sdkmath.NewInt(12), sdkmath.NewInt(5), sdkmath.NewInt(6))
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(10), result)
}

// TestMulDivUp_RoundsRemaindersUp verifies the round-up quotient used by
// withdraw direction conversions.
func TestMulDivUp_RoundsRemaindersUp(t *testing.T) {
	result, err := utils.MulDivUp(sdkmath.NewInt(10), sdkmath.NewInt(10), sdkmath.NewInt(3))
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(34), result)

	// Exact division must not be bumped.
	result, err = utils.MulDivUp(sdkmath.NewInt(12), sdkmath.NewInt(5), sdkmath.NewInt(6))
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(10), result)
}

// TestMulDiv_FullPrecisionIntermediate verifies that products larger than 256
// bits survive as long as the quotient fits.
func TestMulDiv_FullPrecisionIntermediate(t *testing.T) {
	big := sdkmath.NewIntWithDecimal(1, 70) // 10^70, near the 256 bit cap

	result, err := utils.MulDivDown(big, big, big)
	require.NoError(t, err)
	require.Equal(t, big, result)
}

func TestMulDiv_RejectsBadInputs(t *testing.T) {
	_, err := utils.MulDivDown(sdkmath.NewInt(1), sdkmath.NewInt(1), sdkmath.ZeroInt())
	require.ErrorIs(t, err, utils.ErrDivisionByZero)

	_, err = utils.MulDivUp(sdkmath.NewInt(-1), sdkmath.NewInt(1), sdkmath.NewInt(1))
	require.ErrorIs(t, err, utils.ErrAmountNegative)

	_, err = utils.MulDivDown(sdkmath.Int{}, sdkmath.NewInt(1), sdkmath.NewInt(1))
	require.ErrorIs(t, err, utils.ErrAmountNil)

	big := sdkmath.NewIntWithDecimal(1, 70)
	_, err = utils.MulDivDown(big, big, sdkmath.OneInt())
	require.ErrorIs(t, err, utils.ErrOverflow)
}

// TestChangeDecimals_ScalesBetweenBases verifies the rescaling used for the
// bootstrap share rate between asset decimals and the 18 decimal share base.
func TestChangeDecimals_ScalesBetweenBases(t *testing.T) {
	// 1.0 token at 6 decimals becomes 1.0 share at 18 decimals.
	up, err := utils.ChangeDecimals(sdkmath.NewInt(1_000_000), 6, 18, false)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewIntWithDecimal(1, 18), up)

	down, err := utils.ChangeDecimals(sdkmath.NewIntWithDecimal(1, 18), 18, 6, false)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(1_000_000), down)

	same, err := utils.ChangeDecimals(sdkmath.NewInt(42), 9, 9, false)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(42), same)
}

func TestChangeDecimals_RoundingDirection(t *testing.T) {
	// 1.5 units at 1 decimal, rescaled to 0 decimals.
	down, err := utils.ChangeDecimals(sdkmath.NewInt(15), 1, 0, false)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(1), down)

	up, err := utils.ChangeDecimals(sdkmath.NewInt(15), 1, 0, true)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(2), up)
}

func TestMaxUint256_Sentinel(t *testing.T) {
	max := utils.MaxUint256()
	require.True(t, utils.IsMaxUint256(max))
	require.False(t, utils.IsMaxUint256(sdkmath.NewInt(1)))
	require.False(t, utils.IsMaxUint256(sdkmath.Int{}))
}

// TestSDKIntToFloat64_DisplayConversion covers the web facing display path.
func TestSDKIntToFloat64_DisplayConversion(t *testing.T) {
	value, err := utils.SDKIntToFloat64(sdkmath.NewInt(1_500_000), 6)
	require.NoError(t, err)
	require.InDelta(t, 1.5, value, 1e-9)

	_, err = utils.SDKIntToFloat64(sdkmath.NewInt(1), 19)
	require.ErrorIs(t, err, utils.ErrInvalidPrecision)

	_, err = utils.SDKIntToFloat64(sdkmath.NewInt(-1), 6)
	require.ErrorIs(t, err, utils.ErrAmountNegative)
}

func TestFloat64ToSDKInt_ParsesUserAmounts(t *testing.T) {
	amount, err := utils.Float64ToSDKInt(2.25, 6)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(2_250_000), amount)

	zero, err := utils.Float64ToSDKInt(0, 6)
	require.NoError(t, err)
	require.True(t, zero.IsZero())

	_, err = utils.Float64ToSDKInt(-1, 6)
	require.ErrorIs(t, err, utils.ErrAmountNegative)
}
