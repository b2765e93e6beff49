/*

This file contains the plain-token adaptor. Positions handled here are bare
asset balances sitting in cellar custody, so deposit is a custody check rather
than a transfer and withdraw is a direct send. The holding position of a
cellar is always one of these.

*/

package adaptors

import (
	"encoding/json"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/rs/zerolog"

	"github.com/cellar-network/cellar/internal/logger"
	"github.com/cellar-network/cellar/internal/types"
)

const TokenAdaptorName = "token"

type tokenAdaptorData struct {
	Denom string `json:"denom"`
}

// TokenAdaptor values and moves plain asset balances held at the cellar
// address. It has no strategist functions; rebalances move tokens through the
// adaptors of the positions on the other side.
type TokenAdaptor struct {
	logger zerolog.Logger
	assets map[string]types.Asset
}

func NewTokenAdaptor(assets map[string]types.Asset) *TokenAdaptor {
	supported := make(map[string]types.Asset, len(assets))
	for denom, asset := range assets {
		supported[denom] = asset
	}

	return &TokenAdaptor{
		logger: logger.GetForComponent("adaptor.token"),
		assets: supported,
	}
}

func (a *TokenAdaptor) Name() string {
	return TokenAdaptorName
}

func (a *TokenAdaptor) asset(adaptorData json.RawMessage) (types.Asset, error) {
	var data tokenAdaptorData
	if err := json.Unmarshal(adaptorData, &data); err != nil {
		return types.Asset{}, fmt.Errorf("failed to parse token adaptor data: %w", err)
	}

	asset, ok := a.assets[data.Denom]
	if !ok {
		return types.Asset{}, errorsmod.Wrap(types.ErrAssetNotSupported, data.Denom)
	}
	return asset, nil
}

// Deposit verifies the deposited amount is actually sitting in custody. The
// cellar transfers user assets to itself before routing them here, so there
// is nothing left to move.
func (a *TokenAdaptor) Deposit(ctx CellarContext, amount sdkmath.Int, adaptorData, _ json.RawMessage) error {
	if err := validateAmount(amount); err != nil {
		return err
	}

	asset, err := a.asset(adaptorData)
	if err != nil {
		return err
	}

	if ctx.Ledger.Balance(ctx.CellarAddress, asset.Denom).LT(amount) {
		return errorsmod.Wrapf(types.ErrInsufficientFunds,
			"custody holds less %s than the deposited %s", asset.Denom, amount)
	}
	return nil
}

func (a *TokenAdaptor) Withdraw(ctx CellarContext, amount sdkmath.Int, receiver string, adaptorData, configData json.RawMessage) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if err := externalReceiverCheck(ctx, receiver); err != nil {
		return err
	}

	liquid, err := isLiquid(configData)
	if err != nil {
		return err
	}
	if !liquid {
		return errorsmod.Wrap(types.ErrUserWithdrawsNotAllowed, "position is configured illiquid")
	}

	asset, err := a.asset(adaptorData)
	if err != nil {
		return err
	}

	a.logger.Debug().
		Str("denom", asset.Denom).
		Str("amount", amount.String()).
		Str("receiver", receiver).
		Msg("Withdrawing from custody")
	return ctx.Ledger.Send(ctx.CellarAddress, receiver, sdk.NewCoins(sdk.NewCoin(asset.Denom, amount)))
}

func (a *TokenAdaptor) BalanceOf(ctx CellarContext, adaptorData json.RawMessage) (sdkmath.Int, error) {
	asset, err := a.asset(adaptorData)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return ctx.Ledger.Balance(ctx.CellarAddress, asset.Denom), nil
}

func (a *TokenAdaptor) WithdrawableFrom(ctx CellarContext, adaptorData, configData json.RawMessage) (sdkmath.Int, error) {
	liquid, err := isLiquid(configData)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if !liquid {
		return sdkmath.ZeroInt(), nil
	}
	return a.BalanceOf(ctx, adaptorData)
}

func (a *TokenAdaptor) AssetOf(adaptorData json.RawMessage) (types.Asset, error) {
	return a.asset(adaptorData)
}

func (a *TokenAdaptor) StrategistCall(_ CellarContext, _ json.RawMessage) error {
	return errorsmod.Wrap(types.ErrInvalidAdaptorCall, "token adaptor exposes no strategist functions")
}
