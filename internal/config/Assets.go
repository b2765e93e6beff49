/*

This file contains the static asset table the daemon seeds into the oracle at
startup: supported asset metadata plus bootstrap USD prices.

Prices here are only the starting point for the in-process price table and are
expected to be refreshed by an operator or a price feed. Keep the decimals in
sync with the issuing chain, a wrong entry here breaks valuation for every
position holding that asset.

*/

package config

import (
	"github.com/cellar-network/cellar/internal/types"
)

var (
	// SupportedAssets is the metadata for every asset the daemon knows how to
	// value. The accounting asset configured via CELLAR_ASSET_* must be listed.
	SupportedAssets = []types.Asset{
		{Denom: "uusdc", Symbol: "USDC", Decimals: 6},
		{Denom: "uusdt", Symbol: "USDT", Decimals: 6},
		{Denom: "uatom", Symbol: "ATOM", Decimals: 6},
		{Denom: "uosmo", Symbol: "OSMO", Decimals: 6},
		{Denom: "wei", Symbol: "WETH", Decimals: 18},
		{Denom: "satoshi", Symbol: "WBTC", Decimals: 8},
	}

	// InitialPricesUSD maps denom to the bootstrap USD price per whole token.
	// Parsed as LegacyDec at startup.
	InitialPricesUSD = map[string]string{
		"uusdc":   "1.00",
		"uusdt":   "1.00",
		"uatom":   "11.20",
		"uosmo":   "0.58",
		"wei":     "3400.00",
		"satoshi": "64000.00",
	}
)
