/*

This file contains the Cellar itself: the tokenized vault that pools
depositor assets, allocates them across registered positions through
adaptors, and accrues platform fees as share dilution. The struct, its
configuration, the reentrancy guard, and the shutdown circuit breaker live
here; position management, valuation, share accounting, entry/exit, the
rebalance gate, and fee logic are in the sibling files.

*/

package cellar

import (
	"fmt"
	"sync"
	"time"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/cellar-network/cellar/internal/adaptors"
	"github.com/cellar-network/cellar/internal/bank"
	"github.com/cellar-network/cellar/internal/logger"
	"github.com/cellar-network/cellar/internal/oracle"
	"github.com/cellar-network/cellar/internal/registry"
	"github.com/cellar-network/cellar/internal/types"
)

const (
	// ShareDecimals is the decimal base of cellar shares, independent of the
	// accounting asset's decimals.
	ShareDecimals uint8 = 18

	// MaximumPositions bounds each of the credit and debt arrays.
	MaximumPositions = 16

	MinimumShareLockPeriod = 5 * time.Minute
	MaximumShareLockPeriod = 2 * 24 * time.Hour

	secondsPerYear = 365 * 24 * 60 * 60
)

var (
	// MaximumRebalanceDeviation is the hard ceiling on the governance-tunable
	// deviation band.
	MaximumRebalanceDeviation = sdkmath.LegacyMustNewDecFromStr("0.1")

	// MaximumPlatformFee caps the annualized platform fee at 20%.
	MaximumPlatformFee = sdkmath.LegacyMustNewDecFromStr("0.2")
)

// Config holds the dependencies and parameters for a Cellar.
type Config struct {
	Name    string
	Address string
	Asset   types.Asset

	Ledger   *bank.Ledger
	Oracle   oracle.PriceOracle
	Registry *registry.Registry
	Adaptors []adaptors.Adaptor

	Strategist string
	Governance string

	// StrategistPayoutAddress receives the strategist's cut on SendFees.
	StrategistPayoutAddress string

	// PlatformFee and StrategistPlatformCut default to 1% and 75% when nil.
	PlatformFee           sdkmath.LegacyDec
	StrategistPlatformCut sdkmath.LegacyDec

	// RebalanceDeviation defaults to 0.03% when nil.
	RebalanceDeviation sdkmath.LegacyDec

	// ShareLockPeriod defaults to 10 minutes when zero.
	ShareLockPeriod time.Duration

	// Now is the clock. Defaults to time.Now; tests inject their own.
	Now func() time.Time
}

type Cellar struct {
	logger zerolog.Logger

	name       string
	address    string
	asset      types.Asset
	shareDenom string

	ledger   *bank.Ledger
	oracle   oracle.PriceOracle
	registry *registry.Registry

	strategist string
	governance string

	// mu is the single operation guard. Guarded entry points take the write
	// lock via TryLock and fail fast on overlap; read accessors for
	// out-of-band observers take the read lock.
	mu sync.RWMutex

	shutdown              bool
	blockExternalReceiver bool

	adaptors          map[string]adaptors.Adaptor
	adaptorCatalogue  map[string]bool
	positionCatalogue map[types.PositionID]bool

	positions       map[types.PositionID]types.Position
	creditPositions []types.PositionID
	debtPositions   []types.PositionID
	holdingPosition types.PositionID

	feeData            types.FeeData
	rebalanceDeviation sdkmath.LegacyDec

	shareLockPeriod time.Duration
	shareLocks      map[string]time.Time
	allowances      map[string]map[string]sdkmath.Int

	now func() time.Time
}

func NewCellar(config Config) (*Cellar, error) {
	if err := validateCellarConfig(config); err != nil {
		return nil, fmt.Errorf("invalid cellar config: %w", err)
	}

	if config.Now == nil {
		config.Now = time.Now
	}
	if config.PlatformFee.IsNil() {
		config.PlatformFee = sdkmath.LegacyMustNewDecFromStr("0.01")
	}
	if config.StrategistPlatformCut.IsNil() {
		config.StrategistPlatformCut = sdkmath.LegacyMustNewDecFromStr("0.75")
	}
	if config.RebalanceDeviation.IsNil() {
		config.RebalanceDeviation = sdkmath.LegacyMustNewDecFromStr("0.0003")
	}
	if config.ShareLockPeriod == 0 {
		config.ShareLockPeriod = 10 * time.Minute
	}

	if err := validateCellarParameters(config); err != nil {
		return nil, err
	}

	byName := make(map[string]adaptors.Adaptor, len(config.Adaptors))
	for _, adaptor := range config.Adaptors {
		if _, exists := byName[adaptor.Name()]; exists {
			return nil, fmt.Errorf("invalid cellar config: duplicate adaptor %q", adaptor.Name())
		}
		byName[adaptor.Name()] = adaptor
	}

	c := &Cellar{
		logger:     logger.GetForComponent("cellar"),
		name:       config.Name,
		address:    config.Address,
		asset:      config.Asset,
		shareDenom: "share/" + config.Name,
		ledger:     config.Ledger,
		oracle:     config.Oracle,
		registry:   config.Registry,
		strategist: config.Strategist,
		governance: config.Governance,
		adaptors:   byName,

		adaptorCatalogue:  make(map[string]bool),
		positionCatalogue: make(map[types.PositionID]bool),
		positions:         make(map[types.PositionID]types.Position),

		feeData: types.FeeData{
			PlatformFee:             config.PlatformFee,
			StrategistPlatformCut:   config.StrategistPlatformCut,
			LastAccrual:             config.Now(),
			StrategistPayoutAddress: config.StrategistPayoutAddress,
		},
		rebalanceDeviation: config.RebalanceDeviation,

		shareLockPeriod: config.ShareLockPeriod,
		shareLocks:      make(map[string]time.Time),
		allowances:      make(map[string]map[string]sdkmath.Int),

		now: config.Now,
	}

	c.logger.Info().
		Str("name", c.name).
		Str("address", c.address).
		Str("asset", c.asset.Denom).
		Str("platformFee", c.feeData.PlatformFee.String()).
		Str("rebalanceDeviation", c.rebalanceDeviation.String()).
		Dur("shareLockPeriod", c.shareLockPeriod).
		Msg("Cellar created")
	return c, nil
}

func validateCellarConfig(config Config) error {
	if config.Name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if config.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}
	if config.Asset.IsEmpty() {
		return fmt.Errorf("accounting asset cannot be empty")
	}
	if config.Ledger == nil {
		return fmt.Errorf("ledger cannot be nil")
	}
	if config.Oracle == nil {
		return fmt.Errorf("oracle cannot be nil")
	}
	if config.Registry == nil {
		return fmt.Errorf("registry cannot be nil")
	}
	if config.Strategist == "" {
		return fmt.Errorf("strategist address cannot be empty")
	}
	if config.Governance == "" {
		return fmt.Errorf("governance address cannot be empty")
	}
	if config.StrategistPayoutAddress == "" {
		return fmt.Errorf("strategist payout address cannot be empty")
	}
	return nil
}

func validateCellarParameters(config Config) error {
	if config.PlatformFee.IsNegative() || config.PlatformFee.GT(MaximumPlatformFee) {
		return errorsmod.Wrapf(types.ErrInvalidFee, "platform fee %s outside [0, %s]",
			config.PlatformFee, MaximumPlatformFee)
	}
	if config.StrategistPlatformCut.IsNegative() || config.StrategistPlatformCut.GT(sdkmath.LegacyOneDec()) {
		return errorsmod.Wrapf(types.ErrInvalidFeeCut, "strategist cut %s outside [0, 1]",
			config.StrategistPlatformCut)
	}
	if config.RebalanceDeviation.IsNegative() || config.RebalanceDeviation.GT(MaximumRebalanceDeviation) {
		return errorsmod.Wrapf(types.ErrInvalidRebalanceDeviation, "%s outside [0, %s]",
			config.RebalanceDeviation, MaximumRebalanceDeviation)
	}
	if config.ShareLockPeriod < MinimumShareLockPeriod || config.ShareLockPeriod > MaximumShareLockPeriod {
		return errorsmod.Wrapf(types.ErrInvalidShareLockPeriod, "%s outside [%s, %s]",
			config.ShareLockPeriod, MinimumShareLockPeriod, MaximumShareLockPeriod)
	}
	return nil
}

// enter acquires the operation guard without blocking. Any overlap with
// another guarded operation, reentrant or concurrent, fails fast.
func (c *Cellar) enter() (func(), error) {
	if !c.mu.TryLock() {
		return nil, errorsmod.Wrap(types.ErrReentrancy, c.name)
	}
	return c.mu.Unlock, nil
}

// beginAtomic captures everything a multi-step operation can mutate and
// returns the rollback restoring it. Entry points call the rollback on any
// error so a failed operation is all-or-nothing.
func (c *Cellar) beginAtomic() func() {
	snap := c.ledger.Snapshot()
	lastAccrual := c.feeData.LastAccrual

	locks := make(map[string]time.Time, len(c.shareLocks))
	for owner, mintedAt := range c.shareLocks {
		locks[owner] = mintedAt
	}
	allowances := make(map[string]map[string]sdkmath.Int, len(c.allowances))
	for owner, spenders := range c.allowances {
		inner := make(map[string]sdkmath.Int, len(spenders))
		for spender, amount := range spenders {
			inner[spender] = amount
		}
		allowances[owner] = inner
	}

	return func() {
		c.ledger.Restore(snap)
		c.feeData.LastAccrual = lastAccrual
		c.shareLocks = locks
		c.allowances = allowances
	}
}

func (c *Cellar) checkNotPaused() error {
	if c.registry.IsPaused(c.address) {
		return errorsmod.Wrap(types.ErrCellarPaused, c.name)
	}
	return nil
}

func (c *Cellar) checkNotShutdown() error {
	if c.shutdown {
		return errorsmod.Wrap(types.ErrCellarShutdown, c.name)
	}
	return nil
}

func (c *Cellar) requireGovernance(caller string) error {
	if caller != c.governance {
		return errorsmod.Wrapf(types.ErrUnauthorized, "%s is not governance", caller)
	}
	return nil
}

// requireStrategist admits the strategist and governance; governance can
// always do what the strategist can.
func (c *Cellar) requireStrategist(caller string) error {
	if caller != c.strategist && caller != c.governance {
		return errorsmod.Wrapf(types.ErrUnauthorized, "%s is not the strategist", caller)
	}
	return nil
}

// adaptorContext builds the state reference handed to adaptors.
func (c *Cellar) adaptorContext() adaptors.CellarContext {
	return adaptors.CellarContext{
		Ledger:                c.ledger,
		CellarAddress:         c.address,
		BlockExternalReceiver: c.blockExternalReceiver,
	}
}

// InitiateShutdown stops deposits, mints, position changes and rebalances.
// Withdrawals keep working so users can exit.
func (c *Cellar) InitiateShutdown(caller string) error {
	release, err := c.enter()
	if err != nil {
		return err
	}
	defer release()

	if err := c.requireGovernance(caller); err != nil {
		return err
	}
	if err := c.checkNotShutdown(); err != nil {
		return err
	}

	c.shutdown = true
	c.logger.Warn().Str("cellar", c.name).Msg("Shutdown initiated")
	return nil
}

// LiftShutdown returns the cellar to normal operation.
func (c *Cellar) LiftShutdown(caller string) error {
	release, err := c.enter()
	if err != nil {
		return err
	}
	defer release()

	if err := c.requireGovernance(caller); err != nil {
		return err
	}
	if !c.shutdown {
		return errorsmod.Wrap(types.ErrCellarNotShutdown, c.name)
	}

	c.shutdown = false
	c.logger.Info().Str("cellar", c.name).Msg("Shutdown lifted")
	return nil
}

func (c *Cellar) Name() string       { return c.name }
func (c *Cellar) Address() string    { return c.address }
func (c *Cellar) Asset() types.Asset { return c.asset }
func (c *Cellar) ShareDenom() string { return c.shareDenom }

func (c *Cellar) ShutdownActive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.shutdown
}

func (c *Cellar) Paused() bool {
	return c.registry.IsPaused(c.address)
}

func (c *Cellar) RebalanceDeviation() sdkmath.LegacyDec {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rebalanceDeviation
}

func (c *Cellar) ShareLockPeriod() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.shareLockPeriod
}

func (c *Cellar) FeeData() types.FeeData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.feeData
}
