/*

This file contains the entry half of the entry/exit state machine: deposit
and mint. Both paths validate, accrue pending fees, pull the asset with
transfer-then-mint ordering, route the funds into the holding position, and
stamp the receiver's share lock.

*/

package cellar

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/cellar-network/cellar/internal/types"
)

// entryQuote is the two sides of one entry trade, fixed after valuation.
type entryQuote struct {
	assets sdkmath.Int
	shares sdkmath.Int
}

// Deposit pulls assets from the caller and mints the equivalent shares to
// receiver, rounding the shares down. Returns the shares minted.
func (c *Cellar) Deposit(caller, receiver string, assets sdkmath.Int) (sdkmath.Int, error) {
	release, err := c.enter()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer release()

	if assets.IsNil() || !assets.IsPositive() {
		return sdkmath.ZeroInt(), errorsmod.Wrap(types.ErrInvalidAmount, "deposit amount must be positive")
	}

	quote, err := c.enterCellar(caller, receiver, func(totalAssets, totalSupply sdkmath.Int) (entryQuote, error) {
		shares, err := c.toShares(assets, totalAssets, totalSupply, false)
		if err != nil {
			return entryQuote{}, err
		}
		if shares.IsZero() {
			return entryQuote{}, errorsmod.Wrapf(types.ErrZeroShares, "depositing %s %s", assets, c.asset.Denom)
		}
		return entryQuote{assets: assets, shares: shares}, nil
	})
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	c.logger.Info().
		Str("caller", caller).
		Str("receiver", receiver).
		Str("assets", quote.assets.String()).
		Str("shares", quote.shares.String()).
		Msg("Deposit")
	return quote.shares, nil
}

// Mint mints exactly the requested shares to receiver and pulls however many
// assets they are currently worth, rounding the assets up. Returns the
// assets pulled.
func (c *Cellar) Mint(caller, receiver string, shares sdkmath.Int) (sdkmath.Int, error) {
	release, err := c.enter()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer release()

	if shares.IsNil() || !shares.IsPositive() {
		return sdkmath.ZeroInt(), errorsmod.Wrap(types.ErrInvalidAmount, "mint amount must be positive")
	}

	quote, err := c.enterCellar(caller, receiver, func(totalAssets, totalSupply sdkmath.Int) (entryQuote, error) {
		assets, err := c.toAssets(shares, totalAssets, totalSupply, true)
		if err != nil {
			return entryQuote{}, err
		}
		if assets.IsZero() {
			return entryQuote{}, errorsmod.Wrapf(types.ErrZeroAssets, "minting %s shares", shares)
		}
		return entryQuote{assets: assets, shares: shares}, nil
	})
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	c.logger.Info().
		Str("caller", caller).
		Str("receiver", receiver).
		Str("assets", quote.assets.String()).
		Str("shares", quote.shares.String()).
		Msg("Mint")
	return quote.assets, nil
}

// enterCellar is the shared entry path. The quantify callback converts
// between assets and shares using the freshly valued totals; everything
// after it is all-or-nothing.
func (c *Cellar) enterCellar(caller, receiver string, quantify func(totalAssets, totalSupply sdkmath.Int) (entryQuote, error)) (entryQuote, error) {
	if err := c.checkNotShutdown(); err != nil {
		return entryQuote{}, err
	}
	if err := c.checkNotPaused(); err != nil {
		return entryQuote{}, err
	}
	if caller != receiver && !c.registry.ApprovedForDepositOnBehalf(caller) {
		return entryQuote{}, errorsmod.Wrapf(types.ErrNotApprovedForDeposit, "caller %s, receiver %s", caller, receiver)
	}
	if c.holdingPosition == 0 {
		return entryQuote{}, errorsmod.Wrap(types.ErrInvalidHoldingPosition, "no holding position set")
	}

	rollback := c.beginAtomic()
	fail := func(err error) (entryQuote, error) {
		rollback()
		return entryQuote{}, err
	}

	totalAssets, err := c.totalAssetsInternal(false)
	if err != nil {
		return fail(err)
	}
	if _, _, err := c.accrueFeesInternal(totalAssets, c.now()); err != nil {
		return fail(err)
	}

	quote, err := quantify(totalAssets, c.TotalSupply())
	if err != nil {
		return fail(err)
	}

	if err := c.ledger.Send(caller, c.address, sdk.NewCoins(sdk.NewCoin(c.asset.Denom, quote.assets))); err != nil {
		return fail(err)
	}
	if err := c.mintShares(receiver, quote.shares, true); err != nil {
		return fail(err)
	}

	position := c.positions[c.holdingPosition]
	adaptor := c.adaptors[position.Adaptor]
	if err := adaptor.Deposit(c.adaptorContext(), quote.assets, position.AdaptorData, position.ConfigData); err != nil {
		return fail(err)
	}

	return quote, nil
}
