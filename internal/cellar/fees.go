/*

This file contains platform fee accrual and distribution. Fees are realized
as dilution: `totalAssets × elapsed × platformFee / year` worth of shares is
minted to the cellar itself, shrinking every holder's claim pro rata. A
separate claim call splits the accumulated fee shares between the strategist
payout address and the protocol fee collector.

*/

package cellar

import (
	"time"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/cellar-network/cellar/internal/types"
)

// accrueFeesInternal mints the platform fee accumulated since the last
// accrual, using the provided pre-accrual totalAssets. Returns the shares
// minted and the asset value they represent. Caller holds the guard.
func (c *Cellar) accrueFeesInternal(totalAssets sdkmath.Int, at time.Time) (sdkmath.Int, sdkmath.Int, error) {
	if !at.After(c.feeData.LastAccrual) {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), nil
	}
	elapsed := at.Sub(c.feeData.LastAccrual)

	totalSupply := c.TotalSupply()
	if totalAssets.IsZero() || totalSupply.IsZero() || c.feeData.PlatformFee.IsZero() {
		c.feeData.LastAccrual = at
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), nil
	}

	feeAssets := c.feeData.PlatformFee.
		MulInt(totalAssets).
		MulInt64(int64(elapsed.Seconds())).
		QuoInt64(secondsPerYear).
		TruncateInt()
	if feeAssets.IsZero() {
		c.feeData.LastAccrual = at
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), nil
	}

	feeShares, err := c.toShares(feeAssets, totalAssets, totalSupply, false)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	if !feeShares.IsZero() {
		if err := c.mintShares(c.address, feeShares, false); err != nil {
			return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
		}
	}
	c.feeData.LastAccrual = at

	c.logger.Info().
		Str("feeAssets", feeAssets.String()).
		Str("feeShares", feeShares.String()).
		Dur("elapsed", elapsed).
		Msg("Platform fees accrued")
	return feeShares, feeAssets, nil
}

// AccrueFees mints the platform fee accumulated since the last accrual.
// Callable by anyone; the engine loop calls it on a schedule.
func (c *Cellar) AccrueFees() (types.AccrualRecord, error) {
	release, err := c.enter()
	if err != nil {
		return types.AccrualRecord{}, err
	}
	defer release()

	if err := c.checkNotPaused(); err != nil {
		return types.AccrualRecord{}, err
	}

	now := c.now()
	elapsed := now.Sub(c.feeData.LastAccrual)
	if elapsed < 0 {
		elapsed = 0
	}

	totalAssets, err := c.totalAssetsInternal(false)
	if err != nil {
		return types.AccrualRecord{}, err
	}

	feeShares, _, err := c.accrueFeesInternal(totalAssets, now)
	if err != nil {
		return types.AccrualRecord{}, err
	}

	return types.AccrualRecord{
		Timestamp:      now,
		ElapsedSeconds: int64(elapsed.Seconds()),
		TotalAssets:    totalAssets,
		PlatformFee:    c.feeData.PlatformFee,
		FeeShares:      feeShares,
	}, nil
}

// SendFees distributes the fee shares accumulated at the cellar address:
// the strategist's cut to the payout address, the rest to the protocol fee
// collector. Callable by anyone.
func (c *Cellar) SendFees() (sdkmath.Int, sdkmath.Int, error) {
	release, err := c.enter()
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	defer release()

	feeShares := c.BalanceOf(c.address)
	if feeShares.IsZero() {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), nil
	}

	strategistShares := c.feeData.StrategistPlatformCut.MulInt(feeShares).TruncateInt()
	protocolShares := feeShares.Sub(strategistShares)

	if !strategistShares.IsZero() {
		coins := sdk.NewCoins(sdk.NewCoin(c.shareDenom, strategistShares))
		if err := c.ledger.Send(c.address, c.feeData.StrategistPayoutAddress, coins); err != nil {
			return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
		}
	}
	if !protocolShares.IsZero() {
		coins := sdk.NewCoins(sdk.NewCoin(c.shareDenom, protocolShares))
		if err := c.ledger.Send(c.address, c.registry.FeeCollector(), coins); err != nil {
			return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
		}
	}

	c.logger.Info().
		Str("strategistShares", strategistShares.String()).
		Str("protocolShares", protocolShares.String()).
		Msg("Fee shares distributed")
	return strategistShares, protocolShares, nil
}

// SetPlatformFee changes the annualized platform fee. Takes effect from the
// last accrual point; call AccrueFees first to settle at the old rate.
func (c *Cellar) SetPlatformFee(caller string, fee sdkmath.LegacyDec) error {
	release, err := c.enter()
	if err != nil {
		return err
	}
	defer release()

	if err := c.requireGovernance(caller); err != nil {
		return err
	}
	if fee.IsNil() || fee.IsNegative() || fee.GT(MaximumPlatformFee) {
		return errorsmod.Wrapf(types.ErrInvalidFee, "platform fee %s outside [0, %s]", fee, MaximumPlatformFee)
	}

	c.feeData.PlatformFee = fee
	c.logger.Info().Str("platformFee", fee.String()).Msg("Platform fee changed")
	return nil
}

// SetStrategistPlatformCut changes the strategist's fraction of the
// platform fee.
func (c *Cellar) SetStrategistPlatformCut(caller string, cut sdkmath.LegacyDec) error {
	release, err := c.enter()
	if err != nil {
		return err
	}
	defer release()

	if err := c.requireGovernance(caller); err != nil {
		return err
	}
	if cut.IsNil() || cut.IsNegative() || cut.GT(sdkmath.LegacyOneDec()) {
		return errorsmod.Wrapf(types.ErrInvalidFeeCut, "strategist cut %s outside [0, 1]", cut)
	}

	c.feeData.StrategistPlatformCut = cut
	c.logger.Info().Str("strategistPlatformCut", cut.String()).Msg("Strategist platform cut changed")
	return nil
}

// SetStrategistPayoutAddress changes where the strategist's fee cut goes.
// This one belongs to the strategist, not governance.
func (c *Cellar) SetStrategistPayoutAddress(caller, addr string) error {
	release, err := c.enter()
	if err != nil {
		return err
	}
	defer release()

	if caller != c.strategist {
		return errorsmod.Wrapf(types.ErrUnauthorized, "%s is not the strategist", caller)
	}
	if addr == "" {
		return errorsmod.Wrap(types.ErrInvalidAmount, "payout address cannot be empty")
	}

	c.feeData.StrategistPayoutAddress = addr
	c.logger.Info().Str("payoutAddress", addr).Msg("Strategist payout address changed")
	return nil
}
