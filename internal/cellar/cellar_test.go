package cellar_test

import (
	"encoding/json"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	"github.com/cellar-network/cellar/internal/adaptors"
	"github.com/cellar-network/cellar/internal/bank"
	"github.com/cellar-network/cellar/internal/cellar"
	"github.com/cellar-network/cellar/internal/oracle"
	"github.com/cellar-network/cellar/internal/registry"
	"github.com/cellar-network/cellar/internal/types"
)

// Fixtures shared across the cellar tests. The fixture wires a full protocol
// instance against the in-memory ledger: a USDC cellar with a custody holding
// position, two yield vaults, and a borrow market, all trusted and catalogued
// so individual tests only activate what they need.

const (
	cellarName = "growth"
	cellarAddr = "cellar:growth"

	governance = "gov"
	strategist = "strategist"
	collector  = "collector"
	payoutAddr = "payout"

	alice   = "alice"
	bob     = "bob"
	mallory = "mallory"
)

const (
	holdingPositionID = types.PositionID(1)
	vaultPositionID   = types.PositionID(2)
	wethPositionID    = types.PositionID(3)
	debtPositionID    = types.PositionID(4)
	lossyPositionID   = types.PositionID(5)
)

var (
	usdc = types.NewAsset("uusdc", "USDC", 6)
	weth = types.NewAsset("uweth", "WETH", 18)

	illiquidConfig = json.RawMessage(`{"is_liquid":false}`)
)

type fakeClock struct {
	current time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{current: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.current }

func (c *fakeClock) advance(d time.Duration) { c.current = c.current.Add(d) }

type fixture struct {
	t *testing.T

	clock    *fakeClock
	ledger   *bank.Ledger
	oracle   *oracle.TableOracle
	registry *registry.Registry

	vault  *adaptors.YieldVault
	lossy  *adaptors.YieldVault
	market *adaptors.BorrowMarket

	cellar *cellar.Cellar
}

// newFixture builds a cellar holding USDC with the custody position active as
// holding position. platformFee is a decimal string; flow tests pass "0" so
// accrual does not disturb their arithmetic. Extra adaptors are trusted and
// catalogued alongside the built-in three.
func newFixture(t *testing.T, platformFee string, extras ...adaptors.Adaptor) *fixture {
	t.Helper()

	clock := newFakeClock()
	ledger := bank.NewLedger()

	table, err := oracle.NewTableOracle(
		[]types.Asset{usdc, weth},
		map[string]string{usdc.Denom: "1", weth.Denom: "2000"},
	)
	require.NoError(t, err)

	reg, err := registry.NewRegistry(governance, collector)
	require.NoError(t, err)

	vault := adaptors.NewYieldVault(ledger, "yv-usdc", usdc)
	lossy := adaptors.NewYieldVault(ledger, "yv-lossy", usdc)
	market := adaptors.NewBorrowMarket(ledger, "lend-usdc", usdc)
	require.NoError(t, market.Fund(sdkmath.NewInt(1_000_000_000_000)))

	handlers := []adaptors.Adaptor{
		adaptors.NewTokenAdaptor(map[string]types.Asset{usdc.Denom: usdc, weth.Denom: weth}),
		adaptors.NewYieldVaultAdaptor(vault, lossy),
		adaptors.NewDebtAdaptor(market),
	}
	handlers = append(handlers, extras...)

	c, err := cellar.NewCellar(cellar.Config{
		Name:                    cellarName,
		Address:                 cellarAddr,
		Asset:                   usdc,
		Ledger:                  ledger,
		Oracle:                  table,
		Registry:                reg,
		Adaptors:                handlers,
		Strategist:              strategist,
		Governance:              governance,
		StrategistPayoutAddress: payoutAddr,
		PlatformFee:             sdkmath.LegacyMustNewDecFromStr(platformFee),
		Now:                     clock.Now,
	})
	require.NoError(t, err)

	for _, handler := range handlers {
		require.NoError(t, reg.TrustAdaptor(governance, handler.Name()))
		require.NoError(t, c.AddAdaptorToCatalogue(governance, handler.Name()))
	}

	trusted := []struct {
		id          types.PositionID
		adaptor     string
		isDebt      bool
		adaptorData string
	}{
		{holdingPositionID, adaptors.TokenAdaptorName, false, `{"denom":"uusdc"}`},
		{vaultPositionID, adaptors.YieldVaultAdaptorName, false, `{"vault":"yv-usdc"}`},
		{wethPositionID, adaptors.TokenAdaptorName, false, `{"denom":"uweth"}`},
		{debtPositionID, adaptors.DebtAdaptorName, true, `{"market":"lend-usdc"}`},
		{lossyPositionID, adaptors.YieldVaultAdaptorName, false, `{"vault":"yv-lossy"}`},
	}
	for _, p := range trusted {
		require.NoError(t, reg.TrustPosition(governance, p.id, p.adaptor, p.isDebt, json.RawMessage(p.adaptorData)))
		require.NoError(t, c.AddPositionToCatalogue(governance, p.id))
	}

	require.NoError(t, c.AddPosition(strategist, 0, holdingPositionID, nil, false))
	require.NoError(t, c.SetHoldingPosition(governance, holdingPositionID))

	return &fixture{
		t:        t,
		clock:    clock,
		ledger:   ledger,
		oracle:   table,
		registry: reg,
		vault:    vault,
		lossy:    lossy,
		market:   market,
		cellar:   c,
	}
}

func (f *fixture) fund(addr, denom string, amount int64) {
	f.t.Helper()
	require.NoError(f.t, f.ledger.Mint(addr, sdk.NewCoins(sdk.NewCoin(denom, sdkmath.NewInt(amount)))))
}

// deposit mints fresh USDC to user and deposits it, returning the shares.
func (f *fixture) deposit(user string, amount int64) sdkmath.Int {
	f.t.Helper()
	f.fund(user, usdc.Denom, amount)
	shares, err := f.cellar.Deposit(user, user, sdkmath.NewInt(amount))
	require.NoError(f.t, err)
	return shares
}

func (f *fixture) addCredit(index int, id types.PositionID, configData json.RawMessage) {
	f.t.Helper()
	require.NoError(f.t, f.cellar.AddPosition(strategist, index, id, configData, false))
}

func (f *fixture) addDebt(id types.PositionID) {
	f.t.Helper()
	require.NoError(f.t, f.cellar.AddPosition(strategist, 0, id, nil, true))
}

func (f *fixture) totalAssets() sdkmath.Int {
	f.t.Helper()
	total, err := f.cellar.TotalAssets()
	require.NoError(f.t, err)
	return total
}

func (f *fixture) assetBalance(addr string) sdkmath.Int {
	return f.ledger.Balance(addr, usdc.Denom)
}

func (f *fixture) rebalance(calls ...types.AdaptorCall) (types.RebalanceReceipt, error) {
	f.t.Helper()
	return f.cellar.CallOnAdaptor(strategist, calls)
}

func adaptorCall(t *testing.T, adaptor string, payloads ...any) types.AdaptorCall {
	t.Helper()
	call := types.AdaptorCall{Adaptor: adaptor}
	for _, p := range payloads {
		raw, err := json.Marshal(p)
		require.NoError(t, err)
		call.Payloads = append(call.Payloads, json.RawMessage(raw))
	}
	return call
}

func vaultCall(function, vault string, amount int64) map[string]any {
	return map[string]any{"function": function, "vault": vault, "amount": sdkmath.NewInt(amount)}
}

func marketCall(function, market string, amount int64) map[string]any {
	return map[string]any{"function": function, "market": market, "amount": sdkmath.NewInt(amount)}
}

// newBareCellar builds a cellar with no positions wired, for tests around
// construction and the pre-position state.
func newBareCellar(t *testing.T, config func(*cellar.Config)) *cellar.Cellar {
	t.Helper()

	ledger := bank.NewLedger()
	table, err := oracle.NewTableOracle([]types.Asset{usdc}, map[string]string{usdc.Denom: "1"})
	require.NoError(t, err)
	reg, err := registry.NewRegistry(governance, collector)
	require.NoError(t, err)

	cfg := cellar.Config{
		Name:                    cellarName,
		Address:                 cellarAddr,
		Asset:                   usdc,
		Ledger:                  ledger,
		Oracle:                  table,
		Registry:                reg,
		Adaptors:                []adaptors.Adaptor{adaptors.NewTokenAdaptor(map[string]types.Asset{usdc.Denom: usdc})},
		Strategist:              strategist,
		Governance:              governance,
		StrategistPayoutAddress: payoutAddr,
	}
	if config != nil {
		config(&cfg)
	}

	c, err := cellar.NewCellar(cfg)
	require.NoError(t, err)
	return c
}

// TestNewCellar_ValidatesConfig exercises the constructor checks: missing
// dependencies, out-of-range parameters, and duplicate adaptor names all
// fail before a cellar exists.
func TestNewCellar_ValidatesConfig(t *testing.T) {
	ledger := bank.NewLedger()
	table, err := oracle.NewTableOracle([]types.Asset{usdc}, map[string]string{usdc.Denom: "1"})
	require.NoError(t, err)
	reg, err := registry.NewRegistry(governance, collector)
	require.NoError(t, err)
	token := adaptors.NewTokenAdaptor(map[string]types.Asset{usdc.Denom: usdc})

	base := func() cellar.Config {
		return cellar.Config{
			Name:                    cellarName,
			Address:                 cellarAddr,
			Asset:                   usdc,
			Ledger:                  ledger,
			Oracle:                  table,
			Registry:                reg,
			Adaptors:                []adaptors.Adaptor{token},
			Strategist:              strategist,
			Governance:              governance,
			StrategistPayoutAddress: payoutAddr,
		}
	}

	_, err = cellar.NewCellar(base())
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*cellar.Config)
	}{
		{"empty name", func(c *cellar.Config) { c.Name = "" }},
		{"empty address", func(c *cellar.Config) { c.Address = "" }},
		{"empty asset", func(c *cellar.Config) { c.Asset = types.Asset{} }},
		{"nil ledger", func(c *cellar.Config) { c.Ledger = nil }},
		{"nil oracle", func(c *cellar.Config) { c.Oracle = nil }},
		{"nil registry", func(c *cellar.Config) { c.Registry = nil }},
		{"empty strategist", func(c *cellar.Config) { c.Strategist = "" }},
		{"empty governance", func(c *cellar.Config) { c.Governance = "" }},
		{"empty payout address", func(c *cellar.Config) { c.StrategistPayoutAddress = "" }},
		{"platform fee above cap", func(c *cellar.Config) {
			c.PlatformFee = sdkmath.LegacyMustNewDecFromStr("0.21")
		}},
		{"strategist cut above one", func(c *cellar.Config) {
			c.StrategistPlatformCut = sdkmath.LegacyMustNewDecFromStr("1.01")
		}},
		{"deviation above cap", func(c *cellar.Config) {
			c.RebalanceDeviation = sdkmath.LegacyMustNewDecFromStr("0.11")
		}},
		{"share lock below minimum", func(c *cellar.Config) { c.ShareLockPeriod = time.Minute }},
		{"share lock above maximum", func(c *cellar.Config) { c.ShareLockPeriod = 72 * time.Hour }},
		{"duplicate adaptor", func(c *cellar.Config) { c.Adaptors = []adaptors.Adaptor{token, token} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			_, err := cellar.NewCellar(cfg)
			require.Error(t, err)
		})
	}
}

// TestNewCellar_AppliesDefaults checks the parameter defaults: 1% platform
// fee, 75% strategist cut, 0.03% deviation band, ten minute share lock.
func TestNewCellar_AppliesDefaults(t *testing.T) {
	c := newBareCellar(t, nil)

	feeData := c.FeeData()
	require.True(t, feeData.PlatformFee.Equal(sdkmath.LegacyMustNewDecFromStr("0.01")))
	require.True(t, feeData.StrategistPlatformCut.Equal(sdkmath.LegacyMustNewDecFromStr("0.75")))
	require.Equal(t, payoutAddr, feeData.StrategistPayoutAddress)
	require.True(t, c.RebalanceDeviation().Equal(sdkmath.LegacyMustNewDecFromStr("0.0003")))
	require.Equal(t, 10*time.Minute, c.ShareLockPeriod())
	require.Equal(t, "share/"+cellarName, c.ShareDenom())
}

// TestCellar_ShutdownStopsEntriesNotExits walks the shutdown lifecycle:
// entries and rebalances stop, withdrawals keep working, and lifting the
// shutdown restores normal operation.
func TestCellar_ShutdownStopsEntriesNotExits(t *testing.T) {
	f := newFixture(t, "0")
	f.deposit(alice, 100_000_000)
	f.clock.advance(11 * time.Minute)

	require.ErrorIs(t, f.cellar.InitiateShutdown(mallory), types.ErrUnauthorized)
	require.NoError(t, f.cellar.InitiateShutdown(governance))
	require.True(t, f.cellar.ShutdownActive())
	require.ErrorIs(t, f.cellar.InitiateShutdown(governance), types.ErrCellarShutdown)

	f.fund(bob, usdc.Denom, 1_000_000)
	_, err := f.cellar.Deposit(bob, bob, sdkmath.NewInt(1_000_000))
	require.ErrorIs(t, err, types.ErrCellarShutdown)
	_, err = f.cellar.Mint(bob, bob, sdkmath.NewInt(1))
	require.ErrorIs(t, err, types.ErrCellarShutdown)
	err = f.cellar.AddPosition(strategist, 1, vaultPositionID, nil, false)
	require.ErrorIs(t, err, types.ErrCellarShutdown)
	_, err = f.rebalance(adaptorCall(t, adaptors.YieldVaultAdaptorName, vaultCall("deposit", "yv-usdc", 1)))
	require.ErrorIs(t, err, types.ErrCellarShutdown)
	require.True(t, f.cellar.MaxDeposit(bob).IsZero())

	shares, err := f.cellar.Withdraw(alice, alice, alice, sdkmath.NewInt(40_000_000))
	require.NoError(t, err)
	require.True(t, shares.IsPositive())
	require.Equal(t, int64(40_000_000), f.assetBalance(alice).Int64())

	require.ErrorIs(t, f.cellar.LiftShutdown(mallory), types.ErrUnauthorized)
	require.NoError(t, f.cellar.LiftShutdown(governance))
	require.False(t, f.cellar.ShutdownActive())
	require.ErrorIs(t, f.cellar.LiftShutdown(governance), types.ErrCellarNotShutdown)

	f.deposit(bob, 1_000_000)
}

// TestCellar_PauseFreezesCellar checks the registry pause switch: every
// operation including withdrawals and valuation refuses to run until the
// pause is lifted.
func TestCellar_PauseFreezesCellar(t *testing.T) {
	f := newFixture(t, "0")
	f.deposit(alice, 100_000_000)
	f.clock.advance(11 * time.Minute)

	require.NoError(t, f.registry.SetPaused(governance, cellarAddr, true))
	require.True(t, f.cellar.Paused())

	f.fund(bob, usdc.Denom, 1_000_000)
	_, err := f.cellar.Deposit(bob, bob, sdkmath.NewInt(1_000_000))
	require.ErrorIs(t, err, types.ErrCellarPaused)
	_, err = f.cellar.Withdraw(alice, alice, alice, sdkmath.NewInt(1_000_000))
	require.ErrorIs(t, err, types.ErrCellarPaused)
	_, err = f.cellar.TotalAssets()
	require.ErrorIs(t, err, types.ErrCellarPaused)
	_, err = f.cellar.ConvertToShares(sdkmath.NewInt(1))
	require.ErrorIs(t, err, types.ErrCellarPaused)
	_, err = f.cellar.AccrueFees()
	require.ErrorIs(t, err, types.ErrCellarPaused)
	_, err = f.rebalance(adaptorCall(t, adaptors.YieldVaultAdaptorName, vaultCall("deposit", "yv-usdc", 1)))
	require.ErrorIs(t, err, types.ErrCellarPaused)

	require.True(t, f.cellar.MaxDeposit(bob).IsZero())
	maxOut, err := f.cellar.MaxWithdraw(alice)
	require.NoError(t, err)
	require.True(t, maxOut.IsZero())

	require.NoError(t, f.registry.SetPaused(governance, cellarAddr, false))
	require.False(t, f.cellar.Paused())
	f.deposit(bob, 1_000_000)
}
