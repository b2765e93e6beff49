/*

This file contains the table backed oracle used by the daemon: a static set of
assets with USD prices, seeded from configuration and refreshable at runtime.
All conversions go through integer fraction math so repeated valuation of the
same state is deterministic.

*/

package oracle

import (
	"fmt"
	"math/big"
	"sync"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/rs/zerolog"

	"github.com/cellar-network/cellar/internal/logger"
	"github.com/cellar-network/cellar/internal/types"
	"github.com/cellar-network/cellar/internal/utils"
)

type TableOracle struct {
	logger    zerolog.Logger
	mu        sync.RWMutex
	assets    map[string]types.Asset
	pricesUSD map[string]sdkmath.LegacyDec // per whole token
}

// NewTableOracle builds an oracle from asset metadata and price strings, as
// listed in the configuration. Every asset must have a positive price.
func NewTableOracle(assets []types.Asset, pricesUSD map[string]string) (*TableOracle, error) {
	if len(assets) == 0 {
		return nil, fmt.Errorf("at least one asset is required")
	}

	o := &TableOracle{
		logger:    logger.GetForComponent("oracle"),
		assets:    make(map[string]types.Asset, len(assets)),
		pricesUSD: make(map[string]sdkmath.LegacyDec, len(assets)),
	}

	for _, asset := range assets {
		if asset.Denom == "" {
			return nil, fmt.Errorf("asset with empty denom")
		}
		if _, exists := o.assets[asset.Denom]; exists {
			return nil, fmt.Errorf("duplicate asset %s", asset.Denom)
		}

		priceStr, ok := pricesUSD[asset.Denom]
		if !ok {
			return nil, fmt.Errorf("no price configured for %s", asset.Denom)
		}
		price, err := sdkmath.LegacyNewDecFromStr(priceStr)
		if err != nil {
			return nil, fmt.Errorf("invalid price for %s: %w", asset.Denom, err)
		}
		if !price.IsPositive() {
			return nil, fmt.Errorf("price for %s must be positive, got %s", asset.Denom, price)
		}

		o.assets[asset.Denom] = asset
		o.pricesUSD[asset.Denom] = price
	}

	o.logger.Info().Int("assets", len(o.assets)).Msg("Price table initialized")
	return o, nil
}

// SetPriceUSD updates the USD price of one whole token. Only known assets can
// be repriced.
func (o *TableOracle) SetPriceUSD(denom string, price sdkmath.LegacyDec) error {
	if price.IsNil() || !price.IsPositive() {
		return errorsmod.Wrapf(types.ErrInvalidAmount, "price for %s must be positive", denom)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.assets[denom]; !ok {
		return errorsmod.Wrap(types.ErrAssetNotSupported, denom)
	}

	old := o.pricesUSD[denom]
	o.pricesUSD[denom] = price
	o.logger.Info().
		Str("denom", denom).
		Str("oldPrice", old.String()).
		Str("newPrice", price.String()).
		Msg("Asset repriced")
	return nil
}

// Asset returns the metadata for denom.
func (o *TableOracle) Asset(denom string) (types.Asset, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	asset, ok := o.assets[denom]
	if !ok {
		return types.Asset{}, errorsmod.Wrap(types.ErrAssetNotSupported, denom)
	}
	return asset, nil
}

func (o *TableOracle) GetPriceInUSD(denom string) (sdkmath.LegacyDec, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	price, ok := o.pricesUSD[denom]
	if !ok {
		return sdkmath.LegacyDec{}, errorsmod.Wrap(types.ErrAssetNotSupported, denom)
	}
	return price, nil
}

func (o *TableOracle) GetExchangeRate(baseDenom, quoteDenom string) (sdkmath.LegacyDec, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	basePrice, ok := o.pricesUSD[baseDenom]
	if !ok {
		return sdkmath.LegacyDec{}, errorsmod.Wrap(types.ErrAssetNotSupported, baseDenom)
	}
	quotePrice, ok := o.pricesUSD[quoteDenom]
	if !ok {
		return sdkmath.LegacyDec{}, errorsmod.Wrap(types.ErrAssetNotSupported, quoteDenom)
	}
	return basePrice.Quo(quotePrice), nil
}

// GetValue converts coin into base units of quoteDenom:
//
//	value = amount * priceBase * 10^quoteDecimals / (priceQuote * 10^baseDecimals)
//
// evaluated as one integer fraction with floor division.
func (o *TableOracle) GetValue(coin sdk.Coin, quoteDenom string) (sdkmath.Int, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.valueLocked(coin, quoteDenom)
}

func (o *TableOracle) valueLocked(coin sdk.Coin, quoteDenom string) (sdkmath.Int, error) {
	if coin.Amount.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	if coin.Denom == quoteDenom {
		return coin.Amount, nil
	}

	base, ok := o.assets[coin.Denom]
	if !ok {
		return sdkmath.Int{}, errorsmod.Wrap(types.ErrAssetNotSupported, coin.Denom)
	}
	quote, ok := o.assets[quoteDenom]
	if !ok {
		return sdkmath.Int{}, errorsmod.Wrap(types.ErrAssetNotSupported, quoteDenom)
	}

	// LegacyDec prices share the same 1e18 scale, so the scale cancels in the
	// fraction and the raw scaled integers can be used directly.
	num := sdkmath.NewIntFromBigInt(new(big.Int).Mul(o.pricesUSD[base.Denom].BigInt(), pow10(quote.Decimals)))
	den := sdkmath.NewIntFromBigInt(new(big.Int).Mul(o.pricesUSD[quote.Denom].BigInt(), pow10(base.Decimals)))

	return utils.MulDivDown(coin.Amount, num, den)
}

func (o *TableOracle) GetValues(coins sdk.Coins, quoteDenom string) (sdkmath.Int, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	total := sdkmath.ZeroInt()
	for _, coin := range coins {
		value, err := o.valueLocked(coin, quoteDenom)
		if err != nil {
			return sdkmath.Int{}, err
		}
		total = total.Add(value)
	}
	return total, nil
}

func (o *TableOracle) GetValuesDelta(credit, debt sdk.Coins, quoteDenom string) (sdkmath.Int, error) {
	creditTotal, err := o.GetValues(credit, quoteDenom)
	if err != nil {
		return sdkmath.Int{}, err
	}
	debtTotal, err := o.GetValues(debt, quoteDenom)
	if err != nil {
		return sdkmath.Int{}, err
	}

	if debtTotal.GT(creditTotal) {
		return sdkmath.Int{}, errorsmod.Wrapf(types.ErrTotalDebtExceedsCredit,
			"credit %s, debt %s in %s", creditTotal, debtTotal, quoteDenom)
	}
	return creditTotal.Sub(debtTotal), nil
}

func pow10(exp uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil)
}
