/*

This file contains the simulated borrow market and the debt adaptor. A debt
position tracks what the cellar owes the market, represented as a debt denom
minted to the borrower on borrow and burned on repay. Users never deposit
into or withdraw from debt positions; only strategist calls move them.

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
)

const DebtAdaptorName = "debtmarket"

// BorrowMarket is a simulated lending market. It lends its asset from a
// funded treasury and tracks each borrower's outstanding debt as a balance in
// the market's debt denom.
type BorrowMarket struct {
	ledger    *bank.Ledger
	name      string
	address   string
	asset     types.Asset
	debtDenom string
}

func NewBorrowMarket(ledger *bank.Ledger, name string, asset types.Asset) *BorrowMarket {
	return &BorrowMarket{
		ledger:    ledger,
		name:      name,
		address:   "market:" + name,
		asset:     asset,
		debtDenom: "debt/" + name,
	}
}

func (m *BorrowMarket) Name() string       { return m.name }
func (m *BorrowMarket) Address() string    { return m.address }
func (m *BorrowMarket) Asset() types.Asset { return m.asset }

// Fund seeds the market treasury with lendable assets.
func (m *BorrowMarket) Fund(assets sdkmath.Int) error {
	if err := validateAmount(assets); err != nil {
		return err
	}
	return m.ledger.Mint(m.address, sdk.NewCoins(sdk.NewCoin(m.asset.Denom, assets)))
}

// Borrow lends assets to the receiver and records the debt against borrower.
func (m *BorrowMarket) Borrow(borrower string, assets sdkmath.Int, receiver string) error {
	if err := validateAmount(assets); err != nil {
		return err
	}

	if err := m.ledger.Send(m.address, receiver, sdk.NewCoins(sdk.NewCoin(m.asset.Denom, assets))); err != nil {
		return err
	}
	return m.ledger.Mint(borrower, sdk.NewCoins(sdk.NewCoin(m.debtDenom, assets)))
}

// Repay returns assets to the market and clears that much of the borrower's
// debt. Repaying more than owed is clamped to the outstanding amount.
func (m *BorrowMarket) Repay(borrower string, assets sdkmath.Int) error {
	if err := validateAmount(assets); err != nil {
		return err
	}

	owed := m.DebtOf(borrower)
	if owed.IsZero() {
		return errorsmod.Wrapf(types.ErrInvalidAmount, "%s owes nothing to %s", borrower, m.name)
	}
	if assets.GT(owed) {
		assets = owed
	}

	if err := m.ledger.Send(borrower, m.address, sdk.NewCoins(sdk.NewCoin(m.asset.Denom, assets))); err != nil {
		return err
	}
	return m.ledger.Burn(borrower, sdk.NewCoins(sdk.NewCoin(m.debtDenom, assets)))
}

// DebtOf returns the borrower's outstanding debt in asset base units.
func (m *BorrowMarket) DebtOf(borrower string) sdkmath.Int {
	return m.ledger.Balance(borrower, m.debtDenom)
}

// AccrueInterest grows the borrower's debt by rate without moving any assets.
func (m *BorrowMarket) AccrueInterest(borrower string, rate sdkmath.LegacyDec) error {
	if rate.IsNil() || rate.IsNegative() {
		return errorsmod.Wrap(types.ErrInvalidAmount, "interest rate must be non-negative")
	}

	interest := rate.MulInt(m.DebtOf(borrower)).TruncateInt()
	if interest.IsZero() {
		return nil
	}
	return m.ledger.Mint(borrower, sdk.NewCoins(sdk.NewCoin(m.debtDenom, interest)))
}

type debtAdaptorData struct {
	Market string `json:"market"`
}

type debtMarketCall struct {
	Function string      `json:"function"`
	Market   string      `json:"market"`
	Amount   sdkmath.Int `json:"amount"`
	Receiver string      `json:"receiver,omitempty"`
}

// DebtAdaptor handles debt positions against simulated borrow markets, keyed
// by market name in the position's adaptor data. BalanceOf reports what is
// owed; the cellar's valuation engine subtracts it.
type DebtAdaptor struct {
	logger  zerolog.Logger
	markets map[string]*BorrowMarket
}

func NewDebtAdaptor(markets ...*BorrowMarket) *DebtAdaptor {
	byName := make(map[string]*BorrowMarket, len(markets))
	for _, market := range markets {
		byName[market.Name()] = market
	}

	return &DebtAdaptor{
		logger:  logger.GetForComponent("adaptor.debtmarket"),
		markets: byName,
	}
}

func (a *DebtAdaptor) Name() string {
	return DebtAdaptorName
}

func (a *DebtAdaptor) market(name string) (*BorrowMarket, error) {
	market, ok := a.markets[name]
	if !ok {
		return nil, errorsmod.Wrapf(types.ErrInvalidAdaptorCall, "unknown borrow market %q", name)
	}
	return market, nil
}

func (a *DebtAdaptor) marketFromData(adaptorData json.RawMessage) (*BorrowMarket, error) {
	var data debtAdaptorData
	if err := json.Unmarshal(adaptorData, &data); err != nil {
		return nil, fmt.Errorf("failed to parse debt adaptor data: %w", err)
	}
	return a.market(data.Market)
}

func (a *DebtAdaptor) Deposit(_ CellarContext, _ sdkmath.Int, _, _ json.RawMessage) error {
	return errorsmod.Wrap(types.ErrUserDepositsNotAllowed, "debt positions accept no user deposits")
}

func (a *DebtAdaptor) Withdraw(_ CellarContext, _ sdkmath.Int, _ string, _, _ json.RawMessage) error {
	return errorsmod.Wrap(types.ErrUserWithdrawsNotAllowed, "debt positions serve no user withdrawals")
}

func (a *DebtAdaptor) BalanceOf(ctx CellarContext, adaptorData json.RawMessage) (sdkmath.Int, error) {
	market, err := a.marketFromData(adaptorData)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return market.DebtOf(ctx.CellarAddress), nil
}

func (a *DebtAdaptor) WithdrawableFrom(_ CellarContext, _, _ json.RawMessage) (sdkmath.Int, error) {
	return sdkmath.ZeroInt(), nil
}

func (a *DebtAdaptor) AssetOf(adaptorData json.RawMessage) (types.Asset, error) {
	market, err := a.marketFromData(adaptorData)
	if err != nil {
		return types.Asset{}, err
	}
	return market.Asset(), nil
}

func (a *DebtAdaptor) StrategistCall(ctx CellarContext, payload json.RawMessage) error {
	var call debtMarketCall
	if err := json.Unmarshal(payload, &call); err != nil {
		return fmt.Errorf("failed to parse debt market call: %w", err)
	}

	market, err := a.market(call.Market)
	if err != nil {
		return err
	}

	a.logger.Debug().
		Str("function", call.Function).
		Str("market", call.Market).
		Msg("Executing strategist call")

	switch call.Function {
	case "borrow":
		receiver := call.Receiver
		if receiver == "" {
			receiver = ctx.CellarAddress
		}
		if err := externalReceiverCheck(ctx, receiver); err != nil {
			return err
		}
		return market.Borrow(ctx.CellarAddress, call.Amount, receiver)
	case "repay":
		return market.Repay(ctx.CellarAddress, call.Amount)
	default:
		return errorsmod.Wrapf(types.ErrInvalidAdaptorCall, "debt adaptor has no function %q", call.Function)
	}
}
