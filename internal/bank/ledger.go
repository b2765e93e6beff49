/*

This file contains the in-process multi asset ledger. It is the custody
substrate for the cellar, the markets the adaptors talk to, and every user
account: balances per address, transfers between addresses, and mint/burn for
market simulations and test funding.

*/

package bank

import (
	"sync"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/cellar-network/cellar/internal/types"
)

// Ledger maps addresses to coin balances and tracks the minted supply per
// denom. All methods are safe for concurrent use; higher level serialization
// is the cellar's job.
type Ledger struct {
	mu       sync.RWMutex
	balances map[string]sdk.Coins
	supply   sdk.Coins
}

func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[string]sdk.Coins),
	}
}

// Snapshot is a deep copy of the ledger state, taken before a multi-step
// operation so a failure can roll the whole thing back.
type Snapshot struct {
	balances map[string]sdk.Coins
	supply   sdk.Coins
}

// Snapshot captures the current balances and supply.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	balances := make(map[string]sdk.Coins, len(l.balances))
	for addr, coins := range l.balances {
		copied := make(sdk.Coins, len(coins))
		copy(copied, coins)
		balances[addr] = copied
	}
	supply := make(sdk.Coins, len(l.supply))
	copy(supply, l.supply)

	return Snapshot{balances: balances, supply: supply}
}

// Restore replaces the ledger state with a previously taken snapshot.
func (l *Ledger) Restore(snap Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances = snap.balances
	l.supply = snap.supply
}

// Balance returns the amount of denom held by addr.
func (l *Ledger) Balance(addr, denom string) sdkmath.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[addr].AmountOf(denom)
}

// Balances returns a copy of all coins held by addr.
func (l *Ledger) Balances(addr string) sdk.Coins {
	l.mu.RLock()
	defer l.mu.RUnlock()

	coins := l.balances[addr]
	out := make(sdk.Coins, len(coins))
	copy(out, coins)
	return out
}

// Supply returns the total minted amount of denom across all addresses.
func (l *Ledger) Supply(denom string) sdkmath.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.supply.AmountOf(denom)
}

// Send moves coins from one address to another.
func (l *Ledger) Send(from, to string, coins sdk.Coins) error {
	if err := validateCoins(coins); err != nil {
		return err
	}
	if from == to {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	remaining, negative := l.balances[from].SafeSub(coins...)
	if negative {
		return errorsmod.Wrapf(types.ErrInsufficientFunds, "%s has %s, needs %s", from, l.balances[from], coins)
	}
	l.balances[from] = remaining
	l.balances[to] = l.balances[to].Add(coins...)
	return nil
}

// Mint credits coins to addr out of thin air. Used to fund accounts in tests
// and to realize simulated market yield.
func (l *Ledger) Mint(addr string, coins sdk.Coins) error {
	if err := validateCoins(coins); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances[addr] = l.balances[addr].Add(coins...)
	l.supply = l.supply.Add(coins...)
	return nil
}

// Burn removes coins from addr.
func (l *Ledger) Burn(addr string, coins sdk.Coins) error {
	if err := validateCoins(coins); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	remaining, negative := l.balances[addr].SafeSub(coins...)
	if negative {
		return errorsmod.Wrapf(types.ErrInsufficientFunds, "%s has %s, cannot burn %s", addr, l.balances[addr], coins)
	}
	l.balances[addr] = remaining
	l.supply, _ = l.supply.SafeSub(coins...)
	return nil
}

func validateCoins(coins sdk.Coins) error {
	if err := coins.Validate(); err != nil {
		return errorsmod.Wrap(types.ErrInvalidAmount, err.Error())
	}
	return nil
}
