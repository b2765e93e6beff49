/*

This file contains the rebalance gate: the strategist's adaptor-call sandbox.
A batch executes against catalogued adaptors only, with external receivers
blocked for the duration, and commits only if total value stays inside the
deviation band and the share supply comes out exactly unchanged. Any
violation rolls the whole batch back.

*/

package cellar

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"github.com/cellar-network/cellar/internal/types"
)

// CallOnAdaptor executes a strategist adaptor-call batch. The returned
// receipt describes the batch for persistence whether it committed or rolled
// back; the error reports why it rolled back.
func (c *Cellar) CallOnAdaptor(caller string, calls []types.AdaptorCall) (types.RebalanceReceipt, error) {
	release, err := c.enter()
	if err != nil {
		return types.RebalanceReceipt{}, err
	}
	defer release()

	if err := c.requireStrategist(caller); err != nil {
		return types.RebalanceReceipt{}, err
	}
	if err := c.checkNotShutdown(); err != nil {
		return types.RebalanceReceipt{}, err
	}
	if err := c.checkNotPaused(); err != nil {
		return types.RebalanceReceipt{}, err
	}

	rollback := c.beginAtomic()

	totalBefore, err := c.totalAssetsInternal(false)
	if err != nil {
		return types.RebalanceReceipt{}, err
	}
	// Platform fees accrue before the snapshot so the supply-equality check
	// measures only the adaptor calls.
	if _, _, err := c.accrueFeesInternal(totalBefore, c.now()); err != nil {
		rollback()
		return types.RebalanceReceipt{}, err
	}
	supplyBefore := c.TotalSupply()

	receipt := types.RebalanceReceipt{
		Timestamp:         c.now(),
		Calls:             calls,
		TotalAssetsBefore: totalBefore,
		TotalAssetsAfter:  sdkmath.ZeroInt(),
		TotalSupplyBefore: supplyBefore,
		TotalSupplyAfter:  sdkmath.ZeroInt(),
		Deviation:         sdkmath.LegacyZeroDec(),
	}
	fail := func(err error) (types.RebalanceReceipt, error) {
		rollback()
		receipt.Success = false
		receipt.Message = err.Error()
		c.logger.Warn().Err(err).Str("cellar", c.name).Msg("Rebalance rolled back")
		return receipt, err
	}

	c.blockExternalReceiver = true
	defer func() { c.blockExternalReceiver = false }()
	ctx := c.adaptorContext()

	for _, call := range calls {
		if !c.adaptorCatalogue[call.Adaptor] {
			return fail(errorsmod.Wrap(types.ErrAdaptorNotInCatalogue, call.Adaptor))
		}
		adaptor := c.adaptors[call.Adaptor]

		for _, payload := range call.Payloads {
			if err := adaptor.StrategistCall(ctx, payload); err != nil {
				return fail(errorsmod.Wrapf(err, "adaptor %s", call.Adaptor))
			}
		}
	}

	totalAfter, err := c.totalAssetsInternal(false)
	if err != nil {
		return fail(err)
	}
	supplyAfter := c.TotalSupply()
	receipt.TotalAssetsAfter = totalAfter
	receipt.TotalSupplyAfter = supplyAfter

	if !supplyAfter.Equal(supplyBefore) {
		return fail(errorsmod.Wrapf(types.ErrTotalSharesChanged, "supply moved from %s to %s",
			supplyBefore, supplyAfter))
	}

	if totalBefore.IsZero() {
		if !totalAfter.IsZero() {
			return fail(errorsmod.Wrapf(types.ErrTotalAssetsDeviated,
				"total assets moved from 0 to %s", totalAfter))
		}
	} else {
		beforeDec := sdkmath.LegacyNewDecFromInt(totalBefore)
		deviation := sdkmath.LegacyNewDecFromInt(totalAfter).Sub(beforeDec).Abs().Quo(beforeDec)
		receipt.Deviation = deviation
		if deviation.GT(c.rebalanceDeviation) {
			return fail(errorsmod.Wrapf(types.ErrTotalAssetsDeviated,
				"total assets moved from %s to %s, deviation %s exceeds %s",
				totalBefore, totalAfter, deviation, c.rebalanceDeviation))
		}
	}

	receipt.Success = true
	c.logger.Info().
		Str("cellar", c.name).
		Str("totalAssetsBefore", totalBefore.String()).
		Str("totalAssetsAfter", totalAfter.String()).
		Str("deviation", receipt.Deviation.String()).
		Int("calls", len(calls)).
		Msg("Rebalance executed")
	return receipt, nil
}

// SetRebalanceDeviation changes the allowed total-value deviation per
// rebalance, capped at the protocol ceiling.
func (c *Cellar) SetRebalanceDeviation(caller string, deviation sdkmath.LegacyDec) error {
	release, err := c.enter()
	if err != nil {
		return err
	}
	defer release()

	if err := c.requireStrategist(caller); err != nil {
		return err
	}
	if deviation.IsNil() || deviation.IsNegative() || deviation.GT(MaximumRebalanceDeviation) {
		return errorsmod.Wrapf(types.ErrInvalidRebalanceDeviation, "%s outside [0, %s]",
			deviation, MaximumRebalanceDeviation)
	}

	c.rebalanceDeviation = deviation
	c.logger.Info().Str("deviation", deviation.String()).Msg("Rebalance deviation changed")
	return nil
}
