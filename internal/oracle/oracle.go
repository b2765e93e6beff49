/*

This file contains the price oracle interface consumed by the valuation
engine. Implementations answer in base units of the quote asset and round
down, the vault never gains value from price conversion rounding.

*/

package oracle

import (
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

type PriceOracle interface {
	// GetExchangeRate returns how many whole quote tokens one whole base
	// token is worth.
	GetExchangeRate(baseDenom, quoteDenom string) (sdkmath.LegacyDec, error)

	// GetValue converts coin into base units of quoteDenom, rounding down.
	GetValue(coin sdk.Coin, quoteDenom string) (sdkmath.Int, error)

	// GetValues sums the value of all coins in base units of quoteDenom.
	GetValues(coins sdk.Coins, quoteDenom string) (sdkmath.Int, error)

	// GetValuesDelta returns the credit total minus the debt total in base
	// units of quoteDenom. Debt exceeding credit is an error, never a
	// negative return.
	GetValuesDelta(credit, debt sdk.Coins, quoteDenom string) (sdkmath.Int, error)

	// GetPriceInUSD returns the USD price of one whole token.
	GetPriceInUSD(denom string) (sdkmath.LegacyDec, error)
}
