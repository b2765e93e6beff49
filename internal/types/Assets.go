/*

This file contains the asset type shared by the cellar, the oracle and the
adaptors. An asset is a token denomination plus the metadata needed to value
and rescale it.

*/

package types

import (
	"fmt"
)

type Asset struct {
	Denom    string `json:"denom"`    // e.g., "uusdc"
	Symbol   string `json:"symbol"`   // e.g., "USDC"
	Decimals uint8  `json:"decimals"` // e.g., 6 = 1_000_000 base units per token
}

func NewAsset(denom, symbol string, decimals uint8) Asset {
	return Asset{Denom: denom, Symbol: symbol, Decimals: decimals}
}

func (a Asset) String() string {
	return fmt.Sprintf("%s(%s/%d)", a.Symbol, a.Denom, a.Decimals)
}

// Equal compares by denom only. Metadata is sourced from configuration and is
// expected to agree for a given denom.
func (a Asset) Equal(b Asset) bool {
	return a.Denom == b.Denom
}

func (a Asset) IsEmpty() bool {
	return a.Denom == ""
}
