/*

This file contains the valuation engine. Total managed value is the oracle
value of every credit position balance minus every debt position balance,
denominated in the accounting asset. The withdrawable variant sums only what
positions report as immediately liquid.

*/

package cellar

import (
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/cellar-network/cellar/internal/types"
)

// positionBalances collects the non-zero balances of the positions in ids,
// full or withdrawable-only. Balances of positions sharing an asset merge
// into one coin.
func (c *Cellar) positionBalances(ids []types.PositionID, withdrawableOnly bool) (sdk.Coins, error) {
	coins := sdk.NewCoins()
	ctx := c.adaptorContext()

	for _, id := range ids {
		position := c.positions[id]
		adaptor := c.adaptors[position.Adaptor]

		var balance sdkmath.Int
		var err error
		if withdrawableOnly {
			balance, err = adaptor.WithdrawableFrom(ctx, position.AdaptorData, position.ConfigData)
		} else {
			balance, err = adaptor.BalanceOf(ctx, position.AdaptorData)
		}
		if err != nil {
			return nil, err
		}
		if balance.IsZero() {
			continue
		}

		asset, err := adaptor.AssetOf(position.AdaptorData)
		if err != nil {
			return nil, err
		}
		coins = coins.Add(sdk.NewCoin(asset.Denom, balance))
	}
	return coins, nil
}

// totalAssetsInternal computes total managed value in accounting asset base
// units. Callers hold the operation guard and have checked pause state.
func (c *Cellar) totalAssetsInternal(reportWithdrawable bool) (sdkmath.Int, error) {
	credit, err := c.positionBalances(c.creditPositions, reportWithdrawable)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	if reportWithdrawable {
		return c.oracle.GetValues(credit, c.asset.Denom)
	}

	debt, err := c.positionBalances(c.debtPositions, false)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return c.oracle.GetValuesDelta(credit, debt, c.asset.Denom)
}

// TotalAssets returns the net value managed by the cellar. Fails while
// paused or while another guarded operation is running.
func (c *Cellar) TotalAssets() (sdkmath.Int, error) {
	release, err := c.enter()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer release()

	if err := c.checkNotPaused(); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return c.totalAssetsInternal(false)
}

// TotalAssetsWithdrawable returns the value that could be withdrawn right
// now across all liquid credit positions.
func (c *Cellar) TotalAssetsWithdrawable() (sdkmath.Int, error) {
	release, err := c.enter()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer release()

	return c.totalAssetsInternal(true)
}
