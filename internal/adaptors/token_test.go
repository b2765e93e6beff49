package adaptors_test

import (
	"encoding/json"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/cellar-network/cellar/internal/adaptors"
	"github.com/cellar-network/cellar/internal/bank"
	"github.com/cellar-network/cellar/internal/types"
)

var usdcData = json.RawMessage(`{"denom":"uusdc"}`)

func newTokenAdaptor() *adaptors.TokenAdaptor {
	return adaptors.NewTokenAdaptor(map[string]types.Asset{usdc.Denom: usdc})
}

// TestTokenAdaptor_BalanceIsCustody verifies balance and withdrawable report
// the cellar's raw custody balance.
func TestTokenAdaptor_BalanceIsCustody(t *testing.T) {
	ledger := bank.NewLedger()
	adaptor := newTokenAdaptor()
	fund(t, ledger, cellarAddr, "uusdc", 1_000_000)

	balance, err := adaptor.BalanceOf(custodyCtx(ledger), usdcData)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(1_000_000), balance)

	withdrawable, err := adaptor.WithdrawableFrom(custodyCtx(ledger), usdcData, nil)
	require.NoError(t, err)
	require.Equal(t, balance, withdrawable)

	asset, err := adaptor.AssetOf(usdcData)
	require.NoError(t, err)
	require.Equal(t, usdc, asset)
}

// TestTokenAdaptor_DepositChecksCustody verifies deposit accepts amounts the
// cellar actually holds and rejects amounts it does not.
func TestTokenAdaptor_DepositChecksCustody(t *testing.T) {
	ledger := bank.NewLedger()
	adaptor := newTokenAdaptor()
	fund(t, ledger, cellarAddr, "uusdc", 500)

	require.NoError(t, adaptor.Deposit(custodyCtx(ledger), sdkmath.NewInt(500), usdcData, nil))

	err := adaptor.Deposit(custodyCtx(ledger), sdkmath.NewInt(501), usdcData, nil)
	require.ErrorIs(t, err, types.ErrInsufficientFunds)
}

// TestTokenAdaptor_WithdrawSendsToReceiver covers the normal withdraw path
// and the illiquid configuration.
func TestTokenAdaptor_WithdrawSendsToReceiver(t *testing.T) {
	ledger := bank.NewLedger()
	adaptor := newTokenAdaptor()
	fund(t, ledger, cellarAddr, "uusdc", 1_000)

	require.NoError(t, adaptor.Withdraw(custodyCtx(ledger), sdkmath.NewInt(400), "alice", usdcData, nil))
	require.Equal(t, sdkmath.NewInt(400), ledger.Balance("alice", "uusdc"))
	require.Equal(t, sdkmath.NewInt(600), ledger.Balance(cellarAddr, "uusdc"))

	err := adaptor.Withdraw(custodyCtx(ledger), sdkmath.NewInt(100), "alice", usdcData, illiquidConfig)
	require.ErrorIs(t, err, types.ErrUserWithdrawsNotAllowed)

	withdrawable, err := adaptor.WithdrawableFrom(custodyCtx(ledger), usdcData, illiquidConfig)
	require.NoError(t, err)
	require.True(t, withdrawable.IsZero())
}

// TestTokenAdaptor_BlocksExternalReceiverDuringRebalance verifies the
// receiver guard while the rebalance flag is set.
func TestTokenAdaptor_BlocksExternalReceiverDuringRebalance(t *testing.T) {
	ledger := bank.NewLedger()
	adaptor := newTokenAdaptor()
	fund(t, ledger, cellarAddr, "uusdc", 1_000)

	err := adaptor.Withdraw(rebalanceCtx(ledger), sdkmath.NewInt(100), "attacker", usdcData, nil)
	require.ErrorIs(t, err, types.ErrExternalReceiverBlocked)
	require.True(t, ledger.Balance("attacker", "uusdc").IsZero())

	// The cellar itself is always an acceptable receiver.
	require.NoError(t, adaptor.Withdraw(rebalanceCtx(ledger), sdkmath.NewInt(100), cellarAddr, usdcData, nil))
}

func TestTokenAdaptor_RejectsUnknownDenomAndCalls(t *testing.T) {
	ledger := bank.NewLedger()
	adaptor := newTokenAdaptor()

	_, err := adaptor.BalanceOf(custodyCtx(ledger), json.RawMessage(`{"denom":"ujunk"}`))
	require.ErrorIs(t, err, types.ErrAssetNotSupported)

	err = adaptor.StrategistCall(custodyCtx(ledger), json.RawMessage(`{"function":"withdraw"}`))
	require.ErrorIs(t, err, types.ErrInvalidAdaptorCall)
}
