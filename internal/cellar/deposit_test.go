package cellar_test

import (
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/cellar-network/cellar/internal/types"
)

// TestDeposit_BootstrapMintsScaledShares verifies the first deposit into an
// empty cellar mints shares at the pure decimal rescale: 1 USDC in base
// units becomes 1e18 share units.
func TestDeposit_BootstrapMintsScaledShares(t *testing.T) {
	f := newFixture(t, "0")

	shares := f.deposit(alice, 1_000_000)
	require.Equal(t, "1000000000000000000", shares.String())
	require.Equal(t, "1000000000000000000", f.cellar.BalanceOf(alice).String())
	require.Equal(t, "1000000000000000000", f.cellar.TotalSupply().String())

	require.True(t, f.assetBalance(alice).IsZero())
	require.Equal(t, int64(1_000_000), f.assetBalance(cellarAddr).Int64())
	require.Equal(t, int64(1_000_000), f.totalAssets().Int64())
}

// TestDeposit_MintsProRataAfterAppreciation verifies later depositors mint
// at the prevailing share price, not the bootstrap rate.
func TestDeposit_MintsProRataAfterAppreciation(t *testing.T) {
	f := newFixture(t, "0")
	f.deposit(alice, 1_000_000)

	// Yield doubles total assets while supply stands still.
	f.fund(cellarAddr, usdc.Denom, 1_000_000)
	require.Equal(t, int64(2_000_000), f.totalAssets().Int64())

	shares := f.deposit(bob, 1_000_000)
	require.Equal(t, "500000000000000000", shares.String())
}

// TestDeposit_RejectsZeroShares verifies a deposit too small to mint a
// single share unit fails and leaves the depositor's funds untouched.
func TestDeposit_RejectsZeroShares(t *testing.T) {
	f := newFixture(t, "0")
	f.deposit(alice, 1)
	f.fund(cellarAddr, usdc.Denom, 20_000_000_000_000)

	f.fund(bob, usdc.Denom, 5)
	_, err := f.cellar.Deposit(bob, bob, sdkmath.NewInt(5))
	require.ErrorIs(t, err, types.ErrZeroShares)

	require.Equal(t, int64(5), f.assetBalance(bob).Int64())
	require.Equal(t, "1000000000000", f.cellar.TotalSupply().String())
}

// TestDeposit_OnBehalfRequiresApproval verifies depositing for a different
// receiver needs the registry's on-behalf approval, while depositing for
// oneself never does.
func TestDeposit_OnBehalfRequiresApproval(t *testing.T) {
	f := newFixture(t, "0")

	f.fund(bob, usdc.Denom, 1_000_000)
	_, err := f.cellar.Deposit(bob, alice, sdkmath.NewInt(1_000_000))
	require.ErrorIs(t, err, types.ErrNotApprovedForDeposit)

	require.NoError(t, f.registry.SetApprovedForDepositOnBehalf(governance, bob, true))
	shares, err := f.cellar.Deposit(bob, alice, sdkmath.NewInt(1_000_000))
	require.NoError(t, err)
	require.Equal(t, shares, f.cellar.BalanceOf(alice))
	require.True(t, f.cellar.BalanceOf(bob).IsZero())
	require.True(t, f.assetBalance(bob).IsZero())

	// The receiver's shares are lock-stamped, not the payer's.
	require.True(t, f.cellar.SharesAreLocked(alice))
	require.False(t, f.cellar.SharesAreLocked(bob))
}

// TestDeposit_StampsShareLock verifies each deposit restarts the receiver's
// lock window.
func TestDeposit_StampsShareLock(t *testing.T) {
	f := newFixture(t, "0")

	f.deposit(alice, 1_000_000)
	require.True(t, f.cellar.SharesAreLocked(alice))

	f.clock.advance(9 * time.Minute)
	require.True(t, f.cellar.SharesAreLocked(alice))

	f.deposit(alice, 1_000_000)
	f.clock.advance(2 * time.Minute)
	require.True(t, f.cellar.SharesAreLocked(alice))

	f.clock.advance(9 * time.Minute)
	require.False(t, f.cellar.SharesAreLocked(alice))
}

// TestDeposit_RequiresHoldingPosition verifies a cellar without a designated
// holding position accepts no deposits.
func TestDeposit_RequiresHoldingPosition(t *testing.T) {
	c := newBareCellar(t, nil)

	_, err := c.Deposit(alice, alice, sdkmath.NewInt(1_000_000))
	require.ErrorIs(t, err, types.ErrInvalidHoldingPosition)
}

// TestDeposit_SweepsIntoHoldingVault verifies deposits are routed into the
// holding position rather than left in custody when the holding position is
// an external vault.
func TestDeposit_SweepsIntoHoldingVault(t *testing.T) {
	f := newFixture(t, "0")
	f.addCredit(0, vaultPositionID, nil)
	require.NoError(t, f.cellar.SetHoldingPosition(governance, vaultPositionID))

	f.deposit(alice, 1_000_000)

	require.True(t, f.assetBalance(cellarAddr).IsZero())
	require.Equal(t, int64(1_000_000), f.vault.TotalAssets().Int64())
	require.Equal(t, int64(1_000_000), f.ledger.Balance(cellarAddr, "yv-usdc").Int64())
	require.Equal(t, int64(1_000_000), f.totalAssets().Int64())
}

// TestDeposit_RollsBackWhenHoldingRejects verifies the whole entry reverts
// when routing into the holding position fails: no shares, no lock stamp,
// and the depositor keeps their assets.
func TestDeposit_RollsBackWhenHoldingRejects(t *testing.T) {
	f := newFixture(t, "0")
	f.addCredit(0, vaultPositionID, nil)
	require.NoError(t, f.cellar.SetHoldingPosition(governance, vaultPositionID))

	// Inflate the vault's share rate so a 5-unit deposit rounds to zero
	// vault shares.
	f.fund(mallory, usdc.Denom, 1)
	_, err := f.vault.Deposit(mallory, sdkmath.NewInt(1))
	require.NoError(t, err)
	require.NoError(t, f.vault.AccrueYield(sdkmath.NewInt(10_000_000_000_000)))

	f.fund(alice, usdc.Denom, 5)
	_, err = f.cellar.Deposit(alice, alice, sdkmath.NewInt(5))
	require.ErrorIs(t, err, types.ErrZeroShares)

	require.Equal(t, int64(5), f.assetBalance(alice).Int64())
	require.True(t, f.cellar.BalanceOf(alice).IsZero())
	require.True(t, f.cellar.TotalSupply().IsZero())
	require.False(t, f.cellar.SharesAreLocked(alice))
	require.True(t, f.assetBalance(cellarAddr).IsZero())
}

// TestMint_ChargesRoundedUpAssets verifies minting an exact share count
// charges the asset cost rounded up.
func TestMint_ChargesRoundedUpAssets(t *testing.T) {
	f := skewFixture(t)

	f.fund(bob, usdc.Denom, 10)
	assets, err := f.cellar.Mint(bob, bob, sdkmath.NewInt(428_571_428_571))
	require.NoError(t, err)
	require.Equal(t, int64(1), assets.Int64())
	require.Equal(t, int64(9), f.assetBalance(bob).Int64())
	require.Equal(t, "428571428571", f.cellar.BalanceOf(bob).String())
}

func TestEntry_RejectsNonPositiveAmounts(t *testing.T) {
	f := newFixture(t, "0")

	_, err := f.cellar.Deposit(alice, alice, sdkmath.ZeroInt())
	require.ErrorIs(t, err, types.ErrInvalidAmount)
	_, err = f.cellar.Deposit(alice, alice, sdkmath.NewInt(-5))
	require.ErrorIs(t, err, types.ErrInvalidAmount)
	_, err = f.cellar.Mint(alice, alice, sdkmath.ZeroInt())
	require.ErrorIs(t, err, types.ErrInvalidAmount)
}
