/*

This file contains the simulated external yield vault and the adaptor that
lets a cellar hold positions in it. The vault is share-based: depositors swap
assets for vault shares, yield accrues by minting assets into the vault, and
an optional exit fee skims withdrawals. All of its state lives in the bank
ledger (backing assets at the vault address, shares as their own denom), so a
ledger snapshot is sufficient to roll a failed batch back.

*/

package adaptors

import (
	"encoding/json"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/rs/zerolog"

	"github.com/cellar-network/cellar/internal/bank"
	"github.com/cellar-network/cellar/internal/logger"
	"github.com/cellar-network/cellar/internal/types"
	"github.com/cellar-network/cellar/internal/utils"
)

const YieldVaultAdaptorName = "yieldvault"

const bpsDenominator = 10_000

// YieldVault is a simulated external share-based vault. Shares are minted at
// the current exchange rate on deposit and burned pro rata on withdrawal.
type YieldVault struct {
	ledger     *bank.Ledger
	name       string
	address    string
	asset      types.Asset
	shareDenom string

	exitFeeBps   uint32
	feeCollector string
}

func NewYieldVault(ledger *bank.Ledger, name string, asset types.Asset) *YieldVault {
	return &YieldVault{
		ledger:     ledger,
		name:       name,
		address:    "market:" + name,
		asset:      asset,
		shareDenom: name,
	}
}

// SetExitFee configures a withdrawal skim in basis points, paid to collector.
// Used to model lossy exits.
func (v *YieldVault) SetExitFee(bps uint32, collector string) error {
	if bps >= bpsDenominator {
		return fmt.Errorf("exit fee %d bps must be below %d", bps, bpsDenominator)
	}
	if bps > 0 && collector == "" {
		return fmt.Errorf("exit fee requires a collector address")
	}

	v.exitFeeBps = bps
	v.feeCollector = collector
	return nil
}

func (v *YieldVault) Name() string       { return v.name }
func (v *YieldVault) Address() string    { return v.address }
func (v *YieldVault) Asset() types.Asset { return v.asset }

// TotalAssets returns the backing assets held by the vault.
func (v *YieldVault) TotalAssets() sdkmath.Int {
	return v.ledger.Balance(v.address, v.asset.Denom)
}

// TotalShares returns the outstanding share supply.
func (v *YieldVault) TotalShares() sdkmath.Int {
	return v.ledger.Supply(v.shareDenom)
}

// Deposit moves assets from the depositor into the vault and mints shares at
// the current exchange rate. Returns the shares minted.
func (v *YieldVault) Deposit(from string, assets sdkmath.Int) (sdkmath.Int, error) {
	if err := validateAmount(assets); err != nil {
		return sdkmath.ZeroInt(), err
	}

	shares := assets
	if totalShares := v.TotalShares(); !totalShares.IsZero() {
		var err error
		shares, err = utils.MulDivDown(assets, totalShares, v.TotalAssets())
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
	}
	if shares.IsZero() {
		return sdkmath.ZeroInt(), errorsmod.Wrapf(types.ErrZeroShares, "depositing %s into %s", assets, v.name)
	}

	if err := v.ledger.Send(from, v.address, sdk.NewCoins(sdk.NewCoin(v.asset.Denom, assets))); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := v.ledger.Mint(from, sdk.NewCoins(sdk.NewCoin(v.shareDenom, shares))); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return shares, nil
}

// Withdraw burns the owner's shares covering the requested assets and sends
// the assets, minus any exit fee, to receiver.
func (v *YieldVault) Withdraw(owner string, assets sdkmath.Int, receiver string) error {
	if err := validateAmount(assets); err != nil {
		return err
	}

	totalShares := v.TotalShares()
	if totalShares.IsZero() {
		return errorsmod.Wrapf(types.ErrInsufficientFunds, "%s has no outstanding shares", v.name)
	}

	shares, err := utils.MulDivUp(assets, totalShares, v.TotalAssets())
	if err != nil {
		return err
	}
	if err := v.ledger.Burn(owner, sdk.NewCoins(sdk.NewCoin(v.shareDenom, shares))); err != nil {
		return err
	}

	payout := assets
	if v.exitFeeBps > 0 {
		fee, err := utils.MulDivDown(assets, sdkmath.NewInt(int64(v.exitFeeBps)), sdkmath.NewInt(bpsDenominator))
		if err != nil {
			return err
		}
		if !fee.IsZero() {
			if err := v.ledger.Send(v.address, v.feeCollector, sdk.NewCoins(sdk.NewCoin(v.asset.Denom, fee))); err != nil {
				return err
			}
			payout = payout.Sub(fee)
		}
	}

	return v.ledger.Send(v.address, receiver, sdk.NewCoins(sdk.NewCoin(v.asset.Denom, payout)))
}

// BalanceOf returns the asset value of owner's shares, rounded down.
func (v *YieldVault) BalanceOf(owner string) (sdkmath.Int, error) {
	totalShares := v.TotalShares()
	if totalShares.IsZero() {
		return sdkmath.ZeroInt(), nil
	}

	shares := v.ledger.Balance(owner, v.shareDenom)
	if shares.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	return utils.MulDivDown(shares, v.TotalAssets(), totalShares)
}

// AccrueYield mints assets into the vault, raising the share exchange rate.
func (v *YieldVault) AccrueYield(assets sdkmath.Int) error {
	if err := validateAmount(assets); err != nil {
		return err
	}
	return v.ledger.Mint(v.address, sdk.NewCoins(sdk.NewCoin(v.asset.Denom, assets)))
}

type yieldVaultAdaptorData struct {
	Vault string `json:"vault"`
}

type yieldVaultCall struct {
	Function string      `json:"function"`
	Vault    string      `json:"vault"`
	Amount   sdkmath.Int `json:"amount"`
	Receiver string      `json:"receiver,omitempty"`
}

// YieldVaultAdaptor handles positions in simulated yield vaults, keyed by
// vault name in the position's adaptor data.
type YieldVaultAdaptor struct {
	logger zerolog.Logger
	vaults map[string]*YieldVault
}

func NewYieldVaultAdaptor(vaults ...*YieldVault) *YieldVaultAdaptor {
	byName := make(map[string]*YieldVault, len(vaults))
	for _, vault := range vaults {
		byName[vault.Name()] = vault
	}

	return &YieldVaultAdaptor{
		logger: logger.GetForComponent("adaptor.yieldvault"),
		vaults: byName,
	}
}

func (a *YieldVaultAdaptor) Name() string {
	return YieldVaultAdaptorName
}

func (a *YieldVaultAdaptor) vault(name string) (*YieldVault, error) {
	vault, ok := a.vaults[name]
	if !ok {
		return nil, errorsmod.Wrapf(types.ErrInvalidAdaptorCall, "unknown yield vault %q", name)
	}
	return vault, nil
}

func (a *YieldVaultAdaptor) vaultFromData(adaptorData json.RawMessage) (*YieldVault, error) {
	var data yieldVaultAdaptorData
	if err := json.Unmarshal(adaptorData, &data); err != nil {
		return nil, fmt.Errorf("failed to parse yield vault adaptor data: %w", err)
	}
	return a.vault(data.Vault)
}

func (a *YieldVaultAdaptor) Deposit(ctx CellarContext, amount sdkmath.Int, adaptorData, _ json.RawMessage) error {
	vault, err := a.vaultFromData(adaptorData)
	if err != nil {
		return err
	}

	_, err = vault.Deposit(ctx.CellarAddress, amount)
	return err
}

func (a *YieldVaultAdaptor) Withdraw(ctx CellarContext, amount sdkmath.Int, receiver string, adaptorData, configData json.RawMessage) error {
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

	vault, err := a.vaultFromData(adaptorData)
	if err != nil {
		return err
	}
	return vault.Withdraw(ctx.CellarAddress, amount, receiver)
}

func (a *YieldVaultAdaptor) BalanceOf(ctx CellarContext, adaptorData json.RawMessage) (sdkmath.Int, error) {
	vault, err := a.vaultFromData(adaptorData)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return vault.BalanceOf(ctx.CellarAddress)
}

func (a *YieldVaultAdaptor) WithdrawableFrom(ctx CellarContext, adaptorData, configData json.RawMessage) (sdkmath.Int, error) {
	liquid, err := isLiquid(configData)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if !liquid {
		return sdkmath.ZeroInt(), nil
	}
	return a.BalanceOf(ctx, adaptorData)
}

func (a *YieldVaultAdaptor) AssetOf(adaptorData json.RawMessage) (types.Asset, error) {
	vault, err := a.vaultFromData(adaptorData)
	if err != nil {
		return types.Asset{}, err
	}
	return vault.Asset(), nil
}

func (a *YieldVaultAdaptor) StrategistCall(ctx CellarContext, payload json.RawMessage) error {
	var call yieldVaultCall
	if err := json.Unmarshal(payload, &call); err != nil {
		return fmt.Errorf("failed to parse yield vault call: %w", err)
	}

	vault, err := a.vault(call.Vault)
	if err != nil {
		return err
	}

	a.logger.Debug().
		Str("function", call.Function).
		Str("vault", call.Vault).
		Msg("Executing strategist call")

	switch call.Function {
	case "deposit":
		_, err := vault.Deposit(ctx.CellarAddress, call.Amount)
		return err
	case "withdraw":
		receiver := call.Receiver
		if receiver == "" {
			receiver = ctx.CellarAddress
		}
		if err := externalReceiverCheck(ctx, receiver); err != nil {
			return err
		}
		return vault.Withdraw(ctx.CellarAddress, call.Amount, receiver)
	default:
		return errorsmod.Wrapf(types.ErrInvalidAdaptorCall, "yield vault adaptor has no function %q", call.Function)
	}
}
