package cellar_test

import (
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/cellar-network/cellar/internal/utils"
)

// skewFixture returns a cellar with totalAssets 7 and supply 3e12, a ratio
// chosen so every conversion below has a nonzero remainder and the rounding
// direction is observable.
func skewFixture(t *testing.T) *fixture {
	f := newFixture(t, "0")
	f.deposit(alice, 3)
	f.fund(cellarAddr, usdc.Denom, 4)
	require.Equal(t, int64(7), f.totalAssets().Int64())
	require.Equal(t, "3000000000000", f.cellar.TotalSupply().String())
	return f
}

// TestConversions_BootstrapUsesDecimalRescale verifies the empty-cellar
// exchange rate is a pure decimal rescale between the 6-decimal asset and
// 18-decimal shares.
func TestConversions_BootstrapUsesDecimalRescale(t *testing.T) {
	f := newFixture(t, "0")

	shares, err := f.cellar.ConvertToShares(sdkmath.NewInt(1_000_000))
	require.NoError(t, err)
	require.Equal(t, "1000000000000000000", shares.String())

	assets, err := f.cellar.ConvertToAssets(shares)
	require.NoError(t, err)
	require.Equal(t, int64(1_000_000), assets.Int64())

	// Minting a single share unit still costs a full base unit.
	assets, err = f.cellar.PreviewMint(sdkmath.NewInt(1))
	require.NoError(t, err)
	require.Equal(t, int64(1), assets.Int64())
}

// TestConversions_RoundingDirections pins the four preview functions to
// their rounding rules: deposit-direction rounds down, withdraw-direction
// rounds up, always against the user.
func TestConversions_RoundingDirections(t *testing.T) {
	f := skewFixture(t)

	// 1 * 3e12 / 7 = 428571428571.42...
	shares, err := f.cellar.PreviewDeposit(sdkmath.NewInt(1))
	require.NoError(t, err)
	require.Equal(t, "428571428571", shares.String())

	shares, err = f.cellar.PreviewWithdraw(sdkmath.NewInt(1))
	require.NoError(t, err)
	require.Equal(t, "428571428572", shares.String())

	// 428571428571 * 7 / 3e12 = 0.999...
	assets, err := f.cellar.PreviewRedeem(sdkmath.NewInt(428_571_428_571))
	require.NoError(t, err)
	require.True(t, assets.IsZero())

	assets, err = f.cellar.PreviewMint(sdkmath.NewInt(428_571_428_571))
	require.NoError(t, err)
	require.Equal(t, int64(1), assets.Int64())
}

// TestConversions_RoundTripNeverCreatesValue verifies
// convertToAssets(convertToShares(x)) <= x across amounts with and without
// exact quotients.
func TestConversions_RoundTripNeverCreatesValue(t *testing.T) {
	f := skewFixture(t)

	for _, x := range []int64{1, 5, 7, 14, 1000, 123_456} {
		shares, err := f.cellar.ConvertToShares(sdkmath.NewInt(x))
		require.NoError(t, err)
		back, err := f.cellar.ConvertToAssets(shares)
		require.NoError(t, err)
		require.True(t, back.LTE(sdkmath.NewInt(x)), "round trip of %d returned %s", x, back)
	}
}

// TestMaxDepositAndMint_OpenUntilHalted verifies entries are unlimited in
// normal operation and zero once the cellar is shut down.
func TestMaxDepositAndMint_OpenUntilHalted(t *testing.T) {
	f := newFixture(t, "0")

	require.True(t, utils.IsMaxUint256(f.cellar.MaxDeposit(alice)))
	require.True(t, utils.IsMaxUint256(f.cellar.MaxMint(alice)))

	require.NoError(t, f.cellar.InitiateShutdown(governance))
	require.True(t, f.cellar.MaxDeposit(alice).IsZero())
	require.True(t, f.cellar.MaxMint(alice).IsZero())
}

// TestMaxWithdrawAndRedeem_ClampToLiquidity verifies the exit limits are the
// lesser of the owner's claim and what the credit positions can deliver.
func TestMaxWithdrawAndRedeem_ClampToLiquidity(t *testing.T) {
	f := newFixture(t, "0")
	f.deposit(alice, 1_000_000_000)
	f.clock.advance(11 * time.Minute)

	f.addCredit(0, vaultPositionID, illiquidConfig)
	_, err := f.vault.Deposit(cellarAddr, sdkmath.NewInt(600_000_000))
	require.NoError(t, err)

	maxAssets, err := f.cellar.MaxWithdraw(alice)
	require.NoError(t, err)
	require.Equal(t, int64(400_000_000), maxAssets.Int64())

	maxShares, err := f.cellar.MaxRedeem(alice)
	require.NoError(t, err)
	require.Equal(t, "400000000000000000000", maxShares.String())
}

// TestMaxWithdraw_ZeroWhileLocked verifies a fresh depositor cannot exit
// until the share lock expires.
func TestMaxWithdraw_ZeroWhileLocked(t *testing.T) {
	f := newFixture(t, "0")
	f.deposit(alice, 1_000_000_000)

	maxAssets, err := f.cellar.MaxWithdraw(alice)
	require.NoError(t, err)
	require.True(t, maxAssets.IsZero())
	maxShares, err := f.cellar.MaxRedeem(alice)
	require.NoError(t, err)
	require.True(t, maxShares.IsZero())

	f.clock.advance(11 * time.Minute)
	maxAssets, err = f.cellar.MaxWithdraw(alice)
	require.NoError(t, err)
	require.Equal(t, int64(1_000_000_000), maxAssets.Int64())
}
