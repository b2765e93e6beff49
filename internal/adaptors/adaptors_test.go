package adaptors_test

import (
	"encoding/json"
	"testing"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	"github.com/cellar-network/cellar/internal/adaptors"
	"github.com/cellar-network/cellar/internal/bank"
	"github.com/cellar-network/cellar/internal/types"
)

// Fixtures shared across the adaptor tests.

const cellarAddr = "cellar"

var (
	usdc = types.NewAsset("uusdc", "USDC", 6)

	illiquidConfig = json.RawMessage(`{"is_liquid":false}`)
)

func custodyCtx(ledger *bank.Ledger) adaptors.CellarContext {
	return adaptors.CellarContext{Ledger: ledger, CellarAddress: cellarAddr}
}

func rebalanceCtx(ledger *bank.Ledger) adaptors.CellarContext {
	return adaptors.CellarContext{Ledger: ledger, CellarAddress: cellarAddr, BlockExternalReceiver: true}
}

func fund(t *testing.T, ledger *bank.Ledger, addr, denom string, amount int64) {
	t.Helper()
	require.NoError(t, ledger.Mint(addr, sdk.NewCoins(sdk.NewCoin(denom, sdkmath.NewInt(amount)))))
}

func payload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}
