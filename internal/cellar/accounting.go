/*

This file contains share accounting: the two conversion primitives
parameterized by an already-computed total-assets figure, and the public
convert/preview/max surface built on them. Deposit-direction math rounds
down and withdraw-direction math rounds up, always favoring the vault.

*/

package cellar

import (
	sdkmath "cosmossdk.io/math"

	"github.com/cellar-network/cellar/internal/utils"
)

// toShares converts assets to shares at the rate implied by totalAssets and
// totalSupply. With no supply outstanding the bootstrap rate is a plain
// decimal rescale from asset decimals to share decimals.
func (c *Cellar) toShares(assets, totalAssets, totalSupply sdkmath.Int, roundUp bool) (sdkmath.Int, error) {
	if totalSupply.IsZero() {
		return utils.ChangeDecimals(assets, c.asset.Decimals, ShareDecimals, roundUp)
	}
	if roundUp {
		return utils.MulDivUp(assets, totalSupply, totalAssets)
	}
	return utils.MulDivDown(assets, totalSupply, totalAssets)
}

// toAssets converts shares to assets, the inverse of toShares.
func (c *Cellar) toAssets(shares, totalAssets, totalSupply sdkmath.Int, roundUp bool) (sdkmath.Int, error) {
	if totalSupply.IsZero() {
		return utils.ChangeDecimals(shares, ShareDecimals, c.asset.Decimals, roundUp)
	}
	if roundUp {
		return utils.MulDivUp(shares, totalAssets, totalSupply)
	}
	return utils.MulDivDown(shares, totalAssets, totalSupply)
}

// convert runs one conversion against a fresh valuation under the guard.
func (c *Cellar) convert(amount sdkmath.Int, toSharesDirection, roundUp bool) (sdkmath.Int, error) {
	release, err := c.enter()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer release()

	if err := c.checkNotPaused(); err != nil {
		return sdkmath.ZeroInt(), err
	}

	totalAssets, err := c.totalAssetsInternal(false)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	if toSharesDirection {
		return c.toShares(amount, totalAssets, c.TotalSupply(), roundUp)
	}
	return c.toAssets(amount, totalAssets, c.TotalSupply(), roundUp)
}

// ConvertToShares returns the shares assets are currently worth.
func (c *Cellar) ConvertToShares(assets sdkmath.Int) (sdkmath.Int, error) {
	return c.convert(assets, true, false)
}

// ConvertToAssets returns the assets shares are currently worth.
func (c *Cellar) ConvertToAssets(shares sdkmath.Int) (sdkmath.Int, error) {
	return c.convert(shares, false, false)
}

// PreviewDeposit returns the shares a deposit of assets would mint.
func (c *Cellar) PreviewDeposit(assets sdkmath.Int) (sdkmath.Int, error) {
	return c.convert(assets, true, false)
}

// PreviewMint returns the assets a mint of shares would pull.
func (c *Cellar) PreviewMint(shares sdkmath.Int) (sdkmath.Int, error) {
	return c.convert(shares, false, true)
}

// PreviewWithdraw returns the shares a withdrawal of assets would burn.
func (c *Cellar) PreviewWithdraw(assets sdkmath.Int) (sdkmath.Int, error) {
	return c.convert(assets, true, true)
}

// PreviewRedeem returns the assets a redemption of shares would release.
func (c *Cellar) PreviewRedeem(shares sdkmath.Int) (sdkmath.Int, error) {
	return c.convert(shares, false, false)
}

// MaxDeposit returns the deposit limit for receiver: zero when deposits are
// unavailable, otherwise effectively unlimited.
func (c *Cellar) MaxDeposit(string) sdkmath.Int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.shutdown || c.registry.IsPaused(c.address) {
		return sdkmath.ZeroInt()
	}
	return utils.MaxUint256()
}

// MaxMint returns the mint limit for receiver, mirroring MaxDeposit.
func (c *Cellar) MaxMint(receiver string) sdkmath.Int {
	return c.MaxDeposit(receiver)
}

// MaxWithdraw returns the most assets owner can withdraw right now: the
// lesser of the owner's claim and the liquid total, zero while the owner's
// shares are locked or the cellar is paused.
func (c *Cellar) MaxWithdraw(owner string) (sdkmath.Int, error) {
	release, err := c.enter()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer release()

	if c.registry.IsPaused(c.address) || c.sharesAreLocked(owner) {
		return sdkmath.ZeroInt(), nil
	}

	totalAssets, err := c.totalAssetsInternal(false)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	ownerAssets, err := c.toAssets(c.BalanceOf(owner), totalAssets, c.TotalSupply(), false)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	withdrawable, err := c.totalAssetsInternal(true)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return sdkmath.MinInt(ownerAssets, withdrawable), nil
}

// MaxRedeem returns the most shares owner can redeem right now, the share
// counterpart of MaxWithdraw.
func (c *Cellar) MaxRedeem(owner string) (sdkmath.Int, error) {
	release, err := c.enter()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer release()

	if c.registry.IsPaused(c.address) || c.sharesAreLocked(owner) {
		return sdkmath.ZeroInt(), nil
	}

	ownerShares := c.BalanceOf(owner)
	if ownerShares.IsZero() {
		return sdkmath.ZeroInt(), nil
	}

	totalAssets, err := c.totalAssetsInternal(false)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	withdrawable, err := c.totalAssetsInternal(true)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	liquidShares, err := c.toShares(withdrawable, totalAssets, c.TotalSupply(), false)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return sdkmath.MinInt(ownerShares, liquidShares), nil
}
