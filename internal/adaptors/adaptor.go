/*

This file contains the adaptor contract: the polymorphic handler interface the
cellar dispatches position operations through, and the context struct that
hands each adaptor an explicit reference to the vault state it operates on.
Concrete adaptors translate the generic deposit/withdraw/balance operations
into calls against a specific market kind.

*/

package adaptors

import (
	"encoding/json"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"github.com/cellar-network/cellar/internal/bank"
	"github.com/cellar-network/cellar/internal/types"
)

// CellarContext is the slice of vault state an adaptor may touch. Adaptors
// never reach into the cellar directly; everything they need is passed here.
type CellarContext struct {
	Ledger        *bank.Ledger
	CellarAddress string

	// BlockExternalReceiver is set for the duration of a rebalance batch.
	// While set, adaptors must refuse to move funds to any receiver other
	// than the cellar itself.
	BlockExternalReceiver bool
}

// Adaptor is the handler for one kind of external position. Amounts are in
// the position asset's base units; AssetOf tells the caller which asset that
// is.
type Adaptor interface {
	Name() string

	// Deposit routes assets already held in cellar custody into the
	// position identified by adaptorData.
	Deposit(ctx CellarContext, amount sdkmath.Int, adaptorData, configData json.RawMessage) error

	// Withdraw pulls assets out of the position and delivers them to
	// receiver, honoring ctx.BlockExternalReceiver.
	Withdraw(ctx CellarContext, amount sdkmath.Int, receiver string, adaptorData, configData json.RawMessage) error

	// BalanceOf reports the cellar's full balance in the position.
	BalanceOf(ctx CellarContext, adaptorData json.RawMessage) (sdkmath.Int, error)

	// WithdrawableFrom reports the portion of the balance that can be
	// pulled right now. Zero for debt and illiquid positions.
	WithdrawableFrom(ctx CellarContext, adaptorData, configData json.RawMessage) (sdkmath.Int, error)

	// AssetOf resolves the underlying asset of the position.
	AssetOf(adaptorData json.RawMessage) (types.Asset, error)

	// StrategistCall executes one opaque rebalance payload. Payloads are
	// JSON envelopes with a "function" field naming the operation and the
	// arguments inline.
	StrategistCall(ctx CellarContext, payload json.RawMessage) error
}

// positionConfig is the caller-supplied configuration stored alongside a
// position. Empty config means fully liquid.
type positionConfig struct {
	IsLiquid *bool `json:"is_liquid,omitempty"`
}

func isLiquid(configData json.RawMessage) (bool, error) {
	if len(configData) == 0 {
		return true, nil
	}

	var cfg positionConfig
	if err := json.Unmarshal(configData, &cfg); err != nil {
		return false, fmt.Errorf("failed to parse position config: %w", err)
	}
	if cfg.IsLiquid == nil {
		return true, nil
	}
	return *cfg.IsLiquid, nil
}

func externalReceiverCheck(ctx CellarContext, receiver string) error {
	if ctx.BlockExternalReceiver && receiver != ctx.CellarAddress {
		return errorsmod.Wrap(types.ErrExternalReceiverBlocked, receiver)
	}
	return nil
}

func validateAmount(amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return errorsmod.Wrap(types.ErrInvalidAmount, "adaptor amount must be positive")
	}
	return nil
}
