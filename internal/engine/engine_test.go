package engine_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	"github.com/cellar-network/cellar/internal/adaptors"
	"github.com/cellar-network/cellar/internal/bank"
	"github.com/cellar-network/cellar/internal/cellar"
	"github.com/cellar-network/cellar/internal/engine"
	"github.com/cellar-network/cellar/internal/oracle"
	"github.com/cellar-network/cellar/internal/registry"
	"github.com/cellar-network/cellar/internal/types"
)

// The engine tests run cycles against a live cellar with no database wired:
// accrual must still happen and persistence failures must not abort a cycle.

const (
	governance = "gov"
	strategist = "strategist"
	alice      = "alice"
)

var usdc = types.NewAsset("uusdc", "USDC", 6)

type fakeClock struct {
	current time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{current: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.current }

func (c *fakeClock) advance(d time.Duration) { c.current = c.current.Add(d) }

// newTestCellar builds a USDC cellar with just the custody holding position.
func newTestCellar(t *testing.T, platformFee string, clock *fakeClock) (*cellar.Cellar, *bank.Ledger) {
	t.Helper()

	ledger := bank.NewLedger()
	table, err := oracle.NewTableOracle([]types.Asset{usdc}, map[string]string{usdc.Denom: "1"})
	require.NoError(t, err)
	reg, err := registry.NewRegistry(governance, "collector")
	require.NoError(t, err)
	token := adaptors.NewTokenAdaptor(map[string]types.Asset{usdc.Denom: usdc})

	c, err := cellar.NewCellar(cellar.Config{
		Name:                    "growth",
		Address:                 "cellar:growth",
		Asset:                   usdc,
		Ledger:                  ledger,
		Oracle:                  table,
		Registry:                reg,
		Adaptors:                []adaptors.Adaptor{token},
		Strategist:              strategist,
		Governance:              governance,
		StrategistPayoutAddress: "payout",
		PlatformFee:             sdkmath.LegacyMustNewDecFromStr(platformFee),
		Now:                     clock.Now,
	})
	require.NoError(t, err)

	require.NoError(t, reg.TrustAdaptor(governance, token.Name()))
	require.NoError(t, c.AddAdaptorToCatalogue(governance, token.Name()))
	require.NoError(t, reg.TrustPosition(governance, 1, adaptors.TokenAdaptorName, false, json.RawMessage(`{"denom":"uusdc"}`)))
	require.NoError(t, c.AddPositionToCatalogue(governance, 1))
	require.NoError(t, c.AddPosition(strategist, 0, 1, nil, false))
	require.NoError(t, c.SetHoldingPosition(governance, 1))

	return c, ledger
}

func deposit(t *testing.T, c *cellar.Cellar, ledger *bank.Ledger, user string, amount int64) {
	t.Helper()
	require.NoError(t, ledger.Mint(user, sdk.NewCoins(sdk.NewCoin(usdc.Denom, sdkmath.NewInt(amount)))))
	_, err := c.Deposit(user, user, sdkmath.NewInt(amount))
	require.NoError(t, err)
}

func TestNewEngine_RequiresCellar(t *testing.T) {
	_, err := engine.NewEngine(engine.Config{})
	require.Error(t, err)

	clock := newFakeClock()
	c, _ := newTestCellar(t, "0", clock)
	e, err := engine.NewEngine(engine.Config{Cellar: c})
	require.NoError(t, err)
	require.NotNil(t, e)
}

// TestSharePrice covers the observable price across decimal bases and the
// bootstrap case.
func TestSharePrice(t *testing.T) {
	// Empty vault reports par.
	price := engine.SharePrice(sdkmath.ZeroInt(), sdkmath.ZeroInt(), 6)
	require.True(t, price.Equal(sdkmath.LegacyOneDec()))
	price = engine.SharePrice(sdkmath.ZeroInt(), sdkmath.Int{}, 6)
	require.True(t, price.Equal(sdkmath.LegacyOneDec()))

	// 100 USDC against 100 shares is par despite the 6 vs 18 decimal bases.
	price = engine.SharePrice(
		sdkmath.NewInt(100_000_000),
		sdkmath.NewIntWithDecimal(100, 18),
		6,
	)
	require.True(t, price.Equal(sdkmath.LegacyOneDec()))

	// 10% appreciation.
	price = engine.SharePrice(
		sdkmath.NewInt(110_000_000),
		sdkmath.NewIntWithDecimal(100, 18),
		6,
	)
	require.True(t, price.Equal(sdkmath.LegacyMustNewDecFromStr("1.1")))

	// 18-decimal asset: 5 tokens across 10 shares.
	price = engine.SharePrice(
		sdkmath.NewIntWithDecimal(5, 18),
		sdkmath.NewIntWithDecimal(10, 18),
		18,
	)
	require.True(t, price.Equal(sdkmath.LegacyMustNewDecFromStr("0.5")))
}

// TestRunCycle_AccruesAndSamples runs a cycle a year after deposit: platform
// fees must mint, and the absent database must not abort anything.
func TestRunCycle_AccruesAndSamples(t *testing.T) {
	clock := newFakeClock()
	c, ledger := newTestCellar(t, "0.01", clock)
	deposit(t, c, ledger, alice, 100_000_000)

	e, err := engine.NewEngine(engine.Config{Cellar: c})
	require.NoError(t, err)

	supplyBefore := c.TotalSupply()
	clock.advance(365 * 24 * time.Hour)

	e.RunCycle(context.Background())

	require.True(t, c.FeeData().LastAccrual.Equal(clock.Now()))
	supplyAfter := c.TotalSupply()
	require.True(t, supplyAfter.GT(supplyBefore))
	require.True(t, c.BalanceOf(c.Address()).IsPositive())

	// Nothing elapsed since the last accrual, so a second cycle mints nothing.
	e.RunCycle(context.Background())
	require.True(t, c.TotalSupply().Equal(supplyAfter))
}

// TestRunLoop_CancelStops checks the loop exits on context cancellation.
func TestRunLoop_CancelStops(t *testing.T) {
	clock := newFakeClock()
	c, _ := newTestCellar(t, "0", clock)
	e, err := engine.NewEngine(engine.Config{Cellar: c})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.RunLoop(ctx, 50*time.Millisecond)
		close(done)
	}()

	time.Sleep(120 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("engine loop did not stop after context cancellation")
	}
}
