/*

This file contains the governance trust registry. It is the source of truth
for which positions and adaptors a cellar may use, the pause list, and the
deposit-on-behalf approvals. The cellar consults it on every position
activation and every rebalance; governance mutates it.

*/

package registry

import (
	"encoding/json"
	"fmt"
	"sync"

	errorsmod "cosmossdk.io/errors"
	"github.com/rs/zerolog"

	"github.com/cellar-network/cellar/internal/logger"
	"github.com/cellar-network/cellar/internal/types"
)

type positionEntry struct {
	position types.Position
	trusted  bool
}

type Registry struct {
	logger zerolog.Logger

	mu           sync.RWMutex
	governance   string
	feeCollector string

	positions map[types.PositionID]*positionEntry
	adaptors  map[string]bool // adaptor name → trusted

	paused           map[string]bool // cellar address → paused
	approvedOnBehalf map[string]bool // caller address → may deposit for others
}

func NewRegistry(governance, feeCollector string) (*Registry, error) {
	if governance == "" {
		return nil, fmt.Errorf("governance address cannot be empty")
	}
	if feeCollector == "" {
		return nil, fmt.Errorf("fee collector address cannot be empty")
	}

	return &Registry{
		logger:           logger.GetForComponent("registry"),
		governance:       governance,
		feeCollector:     feeCollector,
		positions:        make(map[types.PositionID]*positionEntry),
		adaptors:         make(map[string]bool),
		paused:           make(map[string]bool),
		approvedOnBehalf: make(map[string]bool),
	}, nil
}

func (r *Registry) requireGovernance(caller string) error {
	if caller != r.governance {
		return errorsmod.Wrapf(types.ErrUnauthorized, "%s is not governance", caller)
	}
	return nil
}

// TrustAdaptor marks an adaptor identifier as trusted.
func (r *Registry) TrustAdaptor(caller, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireGovernance(caller); err != nil {
		return err
	}
	if name == "" {
		return errorsmod.Wrap(types.ErrUnknownAdaptor, "empty adaptor name")
	}

	r.adaptors[name] = true
	r.logger.Info().Str("adaptor", name).Msg("Adaptor trusted")
	return nil
}

// DistrustAdaptor revokes trust. Positions already registered against the
// adaptor stay registered but can no longer be activated or called.
func (r *Registry) DistrustAdaptor(caller, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireGovernance(caller); err != nil {
		return err
	}

	r.adaptors[name] = false
	r.logger.Warn().Str("adaptor", name).Msg("Adaptor distrusted")
	return nil
}

// TrustPosition registers a position id with its adaptor binding and debt
// classification. The adaptor must already be trusted. Ids are never reused
// for a different binding; re-trusting an existing id restores its flag.
func (r *Registry) TrustPosition(caller string, id types.PositionID, adaptorName string, isDebt bool, adaptorData json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireGovernance(caller); err != nil {
		return err
	}
	if id == 0 {
		return errorsmod.Wrap(types.ErrUntrustedPosition, "position id 0 is reserved")
	}
	if !r.adaptors[adaptorName] {
		return errorsmod.Wrap(types.ErrUntrustedAdaptor, adaptorName)
	}

	if entry, exists := r.positions[id]; exists {
		if entry.position.Adaptor != adaptorName || entry.position.IsDebt != isDebt {
			return errorsmod.Wrapf(types.ErrPositionAlreadyUsed,
				"position %d already bound to adaptor %s", id, entry.position.Adaptor)
		}
		entry.trusted = true
		r.logger.Info().Uint32("position", uint32(id)).Msg("Position re-trusted")
		return nil
	}

	r.positions[id] = &positionEntry{
		position: types.Position{
			ID:          id,
			Adaptor:     adaptorName,
			IsDebt:      isDebt,
			AdaptorData: adaptorData,
		},
		trusted: true,
	}
	r.logger.Info().
		Uint32("position", uint32(id)).
		Str("adaptor", adaptorName).
		Bool("isDebt", isDebt).
		Msg("Position trusted")
	return nil
}

// DistrustPosition revokes trust for a position id.
func (r *Registry) DistrustPosition(caller string, id types.PositionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireGovernance(caller); err != nil {
		return err
	}

	entry, exists := r.positions[id]
	if !exists {
		return errorsmod.Wrapf(types.ErrUntrustedPosition, "position %d not registered", id)
	}
	entry.trusted = false
	r.logger.Warn().Uint32("position", uint32(id)).Msg("Position distrusted")
	return nil
}

// AddPositionToCellar resolves a position id to its registered binding for a
// cellar that wants to activate it. Fails if the position or its adaptor is
// not currently trusted.
func (r *Registry) AddPositionToCellar(id types.PositionID) (types.Position, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.positions[id]
	if !exists || !entry.trusted {
		return types.Position{}, errorsmod.Wrapf(types.ErrUntrustedPosition, "position %d", id)
	}
	if !r.adaptors[entry.position.Adaptor] {
		return types.Position{}, errorsmod.Wrap(types.ErrUntrustedAdaptor, entry.position.Adaptor)
	}
	return entry.position, nil
}

// RequirePositionTrusted returns an error unless id is registered and trusted.
func (r *Registry) RequirePositionTrusted(id types.PositionID) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.positions[id]
	if !exists || !entry.trusted {
		return errorsmod.Wrapf(types.ErrUntrustedPosition, "position %d", id)
	}
	return nil
}

// RequireAdaptorTrusted returns an error unless the adaptor is trusted.
func (r *Registry) RequireAdaptorTrusted(name string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.adaptors[name] {
		return errorsmod.Wrap(types.ErrUntrustedAdaptor, name)
	}
	return nil
}

// SetPaused pauses or unpauses a cellar by address.
func (r *Registry) SetPaused(caller, cellarAddr string, paused bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireGovernance(caller); err != nil {
		return err
	}

	r.paused[cellarAddr] = paused
	r.logger.Warn().Str("cellar", cellarAddr).Bool("paused", paused).Msg("Cellar pause state changed")
	return nil
}

// IsPaused reports whether the cellar at addr is paused.
func (r *Registry) IsPaused(addr string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.paused[addr]
}

// SetApprovedForDepositOnBehalf grants or revokes the right to deposit with a
// receiver different from the caller.
func (r *Registry) SetApprovedForDepositOnBehalf(caller, addr string, approved bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireGovernance(caller); err != nil {
		return err
	}

	r.approvedOnBehalf[addr] = approved
	r.logger.Info().Str("address", addr).Bool("approved", approved).Msg("Deposit-on-behalf approval changed")
	return nil
}

// ApprovedForDepositOnBehalf reports whether caller may deposit for others.
func (r *Registry) ApprovedForDepositOnBehalf(caller string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.approvedOnBehalf[caller]
}

// FeeCollector returns the protocol fee collector address.
func (r *Registry) FeeCollector() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.feeCollector
}

// SetFeeCollector changes the protocol fee collector address.
func (r *Registry) SetFeeCollector(caller, addr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireGovernance(caller); err != nil {
		return err
	}
	if addr == "" {
		return errorsmod.Wrap(types.ErrInvalidAmount, "fee collector address cannot be empty")
	}

	r.feeCollector = addr
	r.logger.Info().Str("feeCollector", addr).Msg("Fee collector changed")
	return nil
}
