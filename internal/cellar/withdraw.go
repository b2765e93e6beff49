/*

This file contains the exit half of the entry/exit state machine: withdraw
and redeem, with shares burned before any funds move and the ordered
withdrawal walk over credit positions. Withdrawals source whatever assets
the positions actually hold, so a receiver can end up with several denoms
from one call; the request is satisfied in accounting-asset value terms.

*/

package cellar

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/cellar-network/cellar/internal/types"
)

// Withdraw burns however many of owner's shares the requested assets are
// worth, rounding the shares up, and delivers the assets to receiver.
// Returns the shares burned.
func (c *Cellar) Withdraw(caller, receiver, owner string, assets sdkmath.Int) (sdkmath.Int, error) {
	release, err := c.enter()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer release()

	if assets.IsNil() || !assets.IsPositive() {
		return sdkmath.ZeroInt(), errorsmod.Wrap(types.ErrInvalidAmount, "withdraw amount must be positive")
	}

	quote, err := c.exitCellar(caller, receiver, owner, func(totalAssets, totalSupply sdkmath.Int) (entryQuote, error) {
		shares, err := c.toShares(assets, totalAssets, totalSupply, true)
		if err != nil {
			return entryQuote{}, err
		}
		if shares.IsZero() {
			return entryQuote{}, errorsmod.Wrapf(types.ErrZeroShares, "withdrawing %s %s", assets, c.asset.Denom)
		}
		return entryQuote{assets: assets, shares: shares}, nil
	})
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	c.logger.Info().
		Str("caller", caller).
		Str("receiver", receiver).
		Str("owner", owner).
		Str("assets", quote.assets.String()).
		Str("shares", quote.shares.String()).
		Msg("Withdraw")
	return quote.shares, nil
}

// Redeem burns exactly the requested shares and delivers whatever assets
// they are worth, rounding the assets down. Returns the assets delivered.
func (c *Cellar) Redeem(caller, receiver, owner string, shares sdkmath.Int) (sdkmath.Int, error) {
	release, err := c.enter()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer release()

	if shares.IsNil() || !shares.IsPositive() {
		return sdkmath.ZeroInt(), errorsmod.Wrap(types.ErrInvalidAmount, "redeem amount must be positive")
	}

	quote, err := c.exitCellar(caller, receiver, owner, func(totalAssets, totalSupply sdkmath.Int) (entryQuote, error) {
		assets, err := c.toAssets(shares, totalAssets, totalSupply, false)
		if err != nil {
			return entryQuote{}, err
		}
		if assets.IsZero() {
			return entryQuote{}, errorsmod.Wrapf(types.ErrZeroAssets, "redeeming %s shares", shares)
		}
		return entryQuote{assets: assets, shares: shares}, nil
	})
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	c.logger.Info().
		Str("caller", caller).
		Str("receiver", receiver).
		Str("owner", owner).
		Str("assets", quote.assets.String()).
		Str("shares", quote.shares.String()).
		Msg("Redeem")
	return quote.assets, nil
}

// exitCellar is the shared exit path: quantify the trade, spend allowance if
// the caller is not the owner, check the share lock, burn, then pull funds
// in withdrawal order. All-or-nothing; a shortfall reverts the burn too.
// Works during shutdown so users can always leave.
func (c *Cellar) exitCellar(caller, receiver, owner string, quantify func(totalAssets, totalSupply sdkmath.Int) (entryQuote, error)) (entryQuote, error) {
	if err := c.checkNotPaused(); err != nil {
		return entryQuote{}, err
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

	if caller != owner {
		if err := c.spendAllowance(owner, caller, quote.shares); err != nil {
			return fail(err)
		}
	}
	if err := c.checkSharesNotLocked(owner); err != nil {
		return fail(err)
	}

	if err := c.burnShares(owner, quote.shares); err != nil {
		return fail(err)
	}
	if err := c.withdrawInOrder(quote.assets, receiver); err != nil {
		return fail(err)
	}

	return quote, nil
}

// withdrawInOrder walks the credit positions in registry order and pulls
// until the requested accounting-asset value is covered. Positions report
// their liquid balance; its oracle value decides how much of the request it
// can serve. Exhausting every position with value still owed is an
// incomplete withdrawal.
func (c *Cellar) withdrawInOrder(assets sdkmath.Int, receiver string) error {
	remaining := assets
	ctx := c.adaptorContext()

	for _, id := range c.creditPositions {
		if remaining.IsZero() {
			break
		}

		position := c.positions[id]
		adaptor := c.adaptors[position.Adaptor]

		withdrawable, err := adaptor.WithdrawableFrom(ctx, position.AdaptorData, position.ConfigData)
		if err != nil {
			return err
		}
		if withdrawable.IsZero() {
			continue
		}

		asset, err := adaptor.AssetOf(position.AdaptorData)
		if err != nil {
			return err
		}
		value, err := c.oracle.GetValue(sdk.NewCoin(asset.Denom, withdrawable), c.asset.Denom)
		if err != nil {
			return err
		}
		if value.IsZero() {
			continue
		}

		var pull sdkmath.Int
		if value.GT(remaining) {
			// Convert the remainder into position-asset units, rounding
			// down; the dust below one unit stays in the position.
			pull, err = c.oracle.GetValue(sdk.NewCoin(c.asset.Denom, remaining), asset.Denom)
			if err != nil {
				return err
			}
			remaining = sdkmath.ZeroInt()
		} else {
			pull = withdrawable
			remaining = remaining.Sub(value)
		}
		if pull.IsZero() {
			continue
		}

		if err := adaptor.Withdraw(ctx, pull, receiver, position.AdaptorData, position.ConfigData); err != nil {
			return err
		}
		c.logger.Debug().
			Uint32("position", uint32(id)).
			Str("denom", asset.Denom).
			Str("amount", pull.String()).
			Msg("Pulled from position")
	}

	if remaining.IsPositive() {
		return errorsmod.Wrapf(types.ErrIncompleteWithdraw, "%s %s still owed after draining all positions",
			remaining, c.asset.Denom)
	}
	return nil
}
