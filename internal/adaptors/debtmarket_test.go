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

var mkData = json.RawMessage(`{"market":"mk-usdc"}`)

func newBorrowMarketFixture(t *testing.T) (*bank.Ledger, *adaptors.BorrowMarket, *adaptors.DebtAdaptor) {
	t.Helper()
	ledger := bank.NewLedger()
	market := adaptors.NewBorrowMarket(ledger, "mk-usdc", usdc)
	require.NoError(t, market.Fund(sdkmath.NewInt(10_000_000)))
	return ledger, market, adaptors.NewDebtAdaptor(market)
}

// TestBorrowMarket_BorrowAndRepay walks a full borrow/repay round trip and
// checks the debt ledger at each step.
func TestBorrowMarket_BorrowAndRepay(t *testing.T) {
	ledger, market, _ := newBorrowMarketFixture(t)

	require.NoError(t, market.Borrow(cellarAddr, sdkmath.NewInt(1_000_000), cellarAddr))
	require.Equal(t, sdkmath.NewInt(1_000_000), ledger.Balance(cellarAddr, "uusdc"))
	require.Equal(t, sdkmath.NewInt(1_000_000), market.DebtOf(cellarAddr))

	require.NoError(t, market.Repay(cellarAddr, sdkmath.NewInt(400_000)))
	require.Equal(t, sdkmath.NewInt(600_000), market.DebtOf(cellarAddr))
	require.Equal(t, sdkmath.NewInt(600_000), ledger.Balance(cellarAddr, "uusdc"))

	// Overpayment is clamped to what is owed.
	require.NoError(t, market.Repay(cellarAddr, sdkmath.NewInt(999_999)))
	require.True(t, market.DebtOf(cellarAddr).IsZero())
	require.True(t, ledger.Balance(cellarAddr, "uusdc").IsZero())

	err := market.Repay(cellarAddr, sdkmath.NewInt(1))
	require.ErrorIs(t, err, types.ErrInvalidAmount)
}

// TestBorrowMarket_InterestGrowsDebt verifies interest accrual raises debt
// without moving assets.
func TestBorrowMarket_InterestGrowsDebt(t *testing.T) {
	ledger, market, _ := newBorrowMarketFixture(t)
	require.NoError(t, market.Borrow(cellarAddr, sdkmath.NewInt(1_000_000), cellarAddr))

	require.NoError(t, market.AccrueInterest(cellarAddr, sdkmath.LegacyMustNewDecFromStr("0.05")))
	require.Equal(t, sdkmath.NewInt(1_050_000), market.DebtOf(cellarAddr))
	require.Equal(t, sdkmath.NewInt(1_000_000), ledger.Balance(cellarAddr, "uusdc"))

	err := market.AccrueInterest(cellarAddr, sdkmath.LegacyMustNewDecFromStr("-0.01"))
	require.ErrorIs(t, err, types.ErrInvalidAmount)
}

// TestDebtAdaptor_RefusesUserFlows verifies the adaptor rejects the user
// entry points and reports zero withdrawable.
func TestDebtAdaptor_RefusesUserFlows(t *testing.T) {
	ledger, _, adaptor := newBorrowMarketFixture(t)

	err := adaptor.Deposit(custodyCtx(ledger), sdkmath.NewInt(100), mkData, nil)
	require.ErrorIs(t, err, types.ErrUserDepositsNotAllowed)

	err = adaptor.Withdraw(custodyCtx(ledger), sdkmath.NewInt(100), "alice", mkData, nil)
	require.ErrorIs(t, err, types.ErrUserWithdrawsNotAllowed)

	withdrawable, err := adaptor.WithdrawableFrom(custodyCtx(ledger), mkData, nil)
	require.NoError(t, err)
	require.True(t, withdrawable.IsZero())
}

// TestDebtAdaptor_StrategistCalls drives borrow and repay through rebalance
// payloads and checks the reported position balance is the debt owed.
func TestDebtAdaptor_StrategistCalls(t *testing.T) {
	ledger, _, adaptor := newBorrowMarketFixture(t)

	borrow := payload(t, map[string]any{"function": "borrow", "market": "mk-usdc", "amount": "2000000"})
	require.NoError(t, adaptor.StrategistCall(rebalanceCtx(ledger), borrow))
	require.Equal(t, sdkmath.NewInt(2_000_000), ledger.Balance(cellarAddr, "uusdc"))

	balance, err := adaptor.BalanceOf(rebalanceCtx(ledger), mkData)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(2_000_000), balance)

	steal := payload(t, map[string]any{"function": "borrow", "market": "mk-usdc", "amount": "1", "receiver": "attacker"})
	require.ErrorIs(t, adaptor.StrategistCall(rebalanceCtx(ledger), steal), types.ErrExternalReceiverBlocked)

	repay := payload(t, map[string]any{"function": "repay", "market": "mk-usdc", "amount": "500000"})
	require.NoError(t, adaptor.StrategistCall(rebalanceCtx(ledger), repay))
	balance, err = adaptor.BalanceOf(rebalanceCtx(ledger), mkData)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(1_500_000), balance)

	unknown := payload(t, map[string]any{"function": "liquidate", "market": "mk-usdc"})
	require.ErrorIs(t, adaptor.StrategistCall(rebalanceCtx(ledger), unknown), types.ErrInvalidAdaptorCall)

	asset, err := adaptor.AssetOf(mkData)
	require.NoError(t, err)
	require.Equal(t, usdc, asset)
}
