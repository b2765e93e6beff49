/*

This file contains share bookkeeping: mint/burn against the ledger's share
denom, the post-mint transfer lock, and the minimal transfer/approve surface
the lock has to gate.

*/

package cellar

import (
	"time"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/cellar-network/cellar/internal/types"
	"github.com/cellar-network/cellar/internal/utils"
)

// TotalSupply returns the outstanding share supply in 18-decimal base units.
func (c *Cellar) TotalSupply() sdkmath.Int {
	return c.ledger.Supply(c.shareDenom)
}

// BalanceOf returns addr's share balance.
func (c *Cellar) BalanceOf(addr string) sdkmath.Int {
	return c.ledger.Balance(addr, c.shareDenom)
}

// mintShares credits shares to receiver and, for user mints, stamps the
// share lock. Fee mints to the cellar itself skip the stamp.
func (c *Cellar) mintShares(receiver string, shares sdkmath.Int, stampLock bool) error {
	if err := c.ledger.Mint(receiver, sdk.NewCoins(sdk.NewCoin(c.shareDenom, shares))); err != nil {
		return err
	}
	if stampLock {
		c.shareLocks[receiver] = c.now()
	}
	return nil
}

func (c *Cellar) burnShares(owner string, shares sdkmath.Int) error {
	if c.BalanceOf(owner).LT(shares) {
		return errorsmod.Wrapf(types.ErrInsufficientShares, "%s holds %s, needs %s",
			owner, c.BalanceOf(owner), shares)
	}
	return c.ledger.Burn(owner, sdk.NewCoins(sdk.NewCoin(c.shareDenom, shares)))
}

// sharesLockedUntil returns the end of owner's lock window, zero time when
// owner never minted.
func (c *Cellar) sharesLockedUntil(owner string) time.Time {
	mintedAt, ok := c.shareLocks[owner]
	if !ok {
		return time.Time{}
	}
	return mintedAt.Add(c.shareLockPeriod)
}

func (c *Cellar) sharesAreLocked(owner string) bool {
	return c.now().Before(c.sharesLockedUntil(owner))
}

func (c *Cellar) checkSharesNotLocked(owner string) error {
	if until := c.sharesLockedUntil(owner); c.now().Before(until) {
		return errorsmod.Wrapf(types.ErrSharesAreLocked, "%s locked until %s",
			owner, until.Format(time.RFC3339))
	}
	return nil
}

// SharesAreLocked reports whether owner is inside the post-mint lock window.
func (c *Cellar) SharesAreLocked(owner string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sharesAreLocked(owner)
}

// Transfer moves shares from the caller to another address, subject to the
// caller's share lock.
func (c *Cellar) Transfer(caller, to string, shares sdkmath.Int) error {
	release, err := c.enter()
	if err != nil {
		return err
	}
	defer release()

	return c.transferShares(caller, to, shares)
}

// TransferFrom moves shares on an allowance granted by the owner, subject to
// the owner's share lock.
func (c *Cellar) TransferFrom(caller, owner, to string, shares sdkmath.Int) error {
	release, err := c.enter()
	if err != nil {
		return err
	}
	defer release()

	if err := c.spendAllowance(owner, caller, shares); err != nil {
		return err
	}
	return c.transferShares(owner, to, shares)
}

func (c *Cellar) transferShares(from, to string, shares sdkmath.Int) error {
	if shares.IsNil() || !shares.IsPositive() {
		return errorsmod.Wrap(types.ErrInvalidAmount, "share amount must be positive")
	}
	if err := c.checkSharesNotLocked(from); err != nil {
		return err
	}
	if c.BalanceOf(from).LT(shares) {
		return errorsmod.Wrapf(types.ErrInsufficientShares, "%s holds %s, needs %s",
			from, c.BalanceOf(from), shares)
	}
	return c.ledger.Send(from, to, sdk.NewCoins(sdk.NewCoin(c.shareDenom, shares)))
}

// Approve lets spender move up to amount of the caller's shares. The
// max-uint256 sentinel grants an unlimited allowance that is never spent
// down.
func (c *Cellar) Approve(caller, spender string, amount sdkmath.Int) error {
	release, err := c.enter()
	if err != nil {
		return err
	}
	defer release()

	if amount.IsNil() || amount.IsNegative() {
		return errorsmod.Wrap(types.ErrInvalidAmount, "allowance cannot be negative")
	}

	if c.allowances[caller] == nil {
		c.allowances[caller] = make(map[string]sdkmath.Int)
	}
	c.allowances[caller][spender] = amount
	return nil
}

// Allowance returns what spender may still move on owner's behalf.
func (c *Cellar) Allowance(owner, spender string) sdkmath.Int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.allowanceOf(owner, spender)
}

func (c *Cellar) allowanceOf(owner, spender string) sdkmath.Int {
	allowance, ok := c.allowances[owner][spender]
	if !ok {
		return sdkmath.ZeroInt()
	}
	return allowance
}

func (c *Cellar) spendAllowance(owner, spender string, shares sdkmath.Int) error {
	allowance := c.allowanceOf(owner, spender)
	if utils.IsMaxUint256(allowance) {
		return nil
	}
	if allowance.LT(shares) {
		return errorsmod.Wrapf(types.ErrInsufficientAllowance, "%s allows %s only %s, needs %s",
			owner, spender, allowance, shares)
	}

	if c.allowances[owner] == nil {
		c.allowances[owner] = make(map[string]sdkmath.Int)
	}
	c.allowances[owner][spender] = allowance.Sub(shares)
	return nil
}

// SetShareLockPeriod changes the post-mint lock window within the protocol
// bounds. Applies to existing stamps as well.
func (c *Cellar) SetShareLockPeriod(caller string, period time.Duration) error {
	release, err := c.enter()
	if err != nil {
		return err
	}
	defer release()

	if err := c.requireGovernance(caller); err != nil {
		return err
	}
	if period < MinimumShareLockPeriod || period > MaximumShareLockPeriod {
		return errorsmod.Wrapf(types.ErrInvalidShareLockPeriod, "%s outside [%s, %s]",
			period, MinimumShareLockPeriod, MaximumShareLockPeriod)
	}

	c.shareLockPeriod = period
	c.logger.Info().Dur("period", period).Msg("Share lock period changed")
	return nil
}
