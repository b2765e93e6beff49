/*

This file contains the position registry of the cellar: the arena of active
position records, the two ordered id lists (credit order doubles as
withdrawal priority), the governance catalogues gating activation, and the
holding position designation.

*/

package cellar

import (
	"encoding/json"

	errorsmod "cosmossdk.io/errors"

	"github.com/cellar-network/cellar/internal/types"
)

func (c *Cellar) isPositionUsed(id types.PositionID) bool {
	_, used := c.positions[id]
	return used
}

func (c *Cellar) positionArray(inDebtArray bool) *[]types.PositionID {
	if inDebtArray {
		return &c.debtPositions
	}
	return &c.creditPositions
}

// AddPositionToCatalogue allows a registry-trusted position to be activated
// by the strategist later.
func (c *Cellar) AddPositionToCatalogue(caller string, id types.PositionID) error {
	release, err := c.enter()
	if err != nil {
		return err
	}
	defer release()

	if err := c.requireGovernance(caller); err != nil {
		return err
	}
	if err := c.registry.RequirePositionTrusted(id); err != nil {
		return err
	}

	c.positionCatalogue[id] = true
	c.logger.Info().Uint32("position", uint32(id)).Msg("Position added to catalogue")
	return nil
}

// RemovePositionFromCatalogue blocks future activations of id. Already
// active positions are unaffected.
func (c *Cellar) RemovePositionFromCatalogue(caller string, id types.PositionID) error {
	release, err := c.enter()
	if err != nil {
		return err
	}
	defer release()

	if err := c.requireGovernance(caller); err != nil {
		return err
	}

	delete(c.positionCatalogue, id)
	c.logger.Info().Uint32("position", uint32(id)).Msg("Position removed from catalogue")
	return nil
}

// AddAdaptorToCatalogue allows strategist calls to a registry-trusted
// adaptor the cellar has a handler for.
func (c *Cellar) AddAdaptorToCatalogue(caller, name string) error {
	release, err := c.enter()
	if err != nil {
		return err
	}
	defer release()

	if err := c.requireGovernance(caller); err != nil {
		return err
	}
	if err := c.registry.RequireAdaptorTrusted(name); err != nil {
		return err
	}
	if _, known := c.adaptors[name]; !known {
		return errorsmod.Wrapf(types.ErrUnknownAdaptor, "no handler for %q", name)
	}

	c.adaptorCatalogue[name] = true
	c.logger.Info().Str("adaptor", name).Msg("Adaptor added to catalogue")
	return nil
}

// RemoveAdaptorFromCatalogue blocks future strategist calls to the adaptor.
func (c *Cellar) RemoveAdaptorFromCatalogue(caller, name string) error {
	release, err := c.enter()
	if err != nil {
		return err
	}
	defer release()

	if err := c.requireGovernance(caller); err != nil {
		return err
	}

	delete(c.adaptorCatalogue, name)
	c.logger.Info().Str("adaptor", name).Msg("Adaptor removed from catalogue")
	return nil
}

// AddPosition activates a catalogued position at index in the credit or debt
// array. The registry supplies the adaptor binding; the caller supplies the
// per-position configuration and must agree with the registry on the debt
// classification.
func (c *Cellar) AddPosition(caller string, index int, id types.PositionID, configData json.RawMessage, inDebtArray bool) error {
	release, err := c.enter()
	if err != nil {
		return err
	}
	defer release()

	if err := c.requireStrategist(caller); err != nil {
		return err
	}
	if err := c.checkNotShutdown(); err != nil {
		return err
	}

	if !c.positionCatalogue[id] {
		return errorsmod.Wrapf(types.ErrPositionNotInCatalogue, "position %d", id)
	}
	if c.isPositionUsed(id) {
		return errorsmod.Wrapf(types.ErrPositionAlreadyUsed, "position %d", id)
	}

	position, err := c.registry.AddPositionToCellar(id)
	if err != nil {
		return err
	}
	if position.IsDebt != inDebtArray {
		return errorsmod.Wrapf(types.ErrDebtMismatch,
			"position %d registered isDebt=%t, caller claims %t", id, position.IsDebt, inDebtArray)
	}
	if _, known := c.adaptors[position.Adaptor]; !known {
		return errorsmod.Wrapf(types.ErrUnknownAdaptor, "no handler for %q", position.Adaptor)
	}

	array := c.positionArray(inDebtArray)
	if len(*array) >= MaximumPositions {
		return errorsmod.Wrapf(types.ErrPositionArrayFull, "limit is %d", MaximumPositions)
	}
	if index < 0 || index > len(*array) {
		return errorsmod.Wrapf(types.ErrInvalidAmount, "index %d outside [0, %d]", index, len(*array))
	}

	position.ConfigData = configData
	c.positions[id] = position
	*array = append(*array, 0)
	copy((*array)[index+1:], (*array)[index:])
	(*array)[index] = id

	c.logger.Info().
		Uint32("position", uint32(id)).
		Str("adaptor", position.Adaptor).
		Bool("isDebt", inDebtArray).
		Int("index", index).
		Msg("Position added")
	return nil
}

// RemovePosition deactivates the position at index. Fails while the position
// still holds value or serves as the holding position.
func (c *Cellar) RemovePosition(caller string, index int, inDebtArray bool) error {
	release, err := c.enter()
	if err != nil {
		return err
	}
	defer release()

	if err := c.requireStrategist(caller); err != nil {
		return err
	}

	array := c.positionArray(inDebtArray)
	if index < 0 || index >= len(*array) {
		return errorsmod.Wrapf(types.ErrInvalidAmount, "index %d outside [0, %d)", index, len(*array))
	}
	id := (*array)[index]

	if id == c.holdingPosition {
		return errorsmod.Wrapf(types.ErrRemovingHoldingPosition, "position %d", id)
	}

	position := c.positions[id]
	balance, err := c.adaptors[position.Adaptor].BalanceOf(c.adaptorContext(), position.AdaptorData)
	if err != nil {
		return err
	}
	if !balance.IsZero() {
		return errorsmod.Wrapf(types.ErrPositionNotEmpty, "position %d holds %s", id, balance)
	}

	c.removeAt(array, index, id)
	c.logger.Info().Uint32("position", uint32(id)).Msg("Position removed")
	return nil
}

// ForcePositionOut removes the position at index without the balance check.
// Governance uses it to purge a distrusted position; any value still inside
// is stranded deliberately.
func (c *Cellar) ForcePositionOut(caller string, index int, id types.PositionID, inDebtArray bool) error {
	release, err := c.enter()
	if err != nil {
		return err
	}
	defer release()

	if err := c.requireGovernance(caller); err != nil {
		return err
	}

	array := c.positionArray(inDebtArray)
	if index < 0 || index >= len(*array) || (*array)[index] != id {
		return errorsmod.Wrapf(types.ErrPositionNotUsed, "position %d is not at index %d", id, index)
	}
	if id == c.holdingPosition {
		return errorsmod.Wrapf(types.ErrRemovingHoldingPosition,
			"designate another holding position before forcing %d out", id)
	}

	c.removeAt(array, index, id)
	c.logger.Warn().Uint32("position", uint32(id)).Msg("Position forced out")
	return nil
}

func (c *Cellar) removeAt(array *[]types.PositionID, index int, id types.PositionID) {
	*array = append((*array)[:index], (*array)[index+1:]...)
	delete(c.positions, id)
}

// SwapPositions reorders two positions within one array. For credit
// positions this changes withdrawal priority.
func (c *Cellar) SwapPositions(caller string, i, j int, inDebtArray bool) error {
	release, err := c.enter()
	if err != nil {
		return err
	}
	defer release()

	if err := c.requireStrategist(caller); err != nil {
		return err
	}

	array := c.positionArray(inDebtArray)
	if i < 0 || i >= len(*array) || j < 0 || j >= len(*array) {
		return errorsmod.Wrapf(types.ErrInvalidAmount, "indexes %d, %d outside [0, %d)", i, j, len(*array))
	}

	(*array)[i], (*array)[j] = (*array)[j], (*array)[i]
	c.logger.Info().Int("i", i).Int("j", j).Bool("isDebt", inDebtArray).Msg("Positions swapped")
	return nil
}

// SetHoldingPosition designates the credit position that receives deposits
// and is drained first on withdrawals. Its asset must match the accounting
// asset.
func (c *Cellar) SetHoldingPosition(caller string, id types.PositionID) error {
	release, err := c.enter()
	if err != nil {
		return err
	}
	defer release()

	if err := c.requireGovernance(caller); err != nil {
		return err
	}

	position, used := c.positions[id]
	if !used {
		return errorsmod.Wrapf(types.ErrPositionNotUsed, "position %d", id)
	}
	if position.IsDebt {
		return errorsmod.Wrapf(types.ErrInvalidHoldingPosition, "position %d is a debt position", id)
	}

	asset, err := c.adaptors[position.Adaptor].AssetOf(position.AdaptorData)
	if err != nil {
		return err
	}
	if !asset.Equal(c.asset) {
		return errorsmod.Wrapf(types.ErrInvalidHoldingPosition,
			"position %d holds %s, cellar accounts in %s", id, asset.Denom, c.asset.Denom)
	}

	c.holdingPosition = id
	c.logger.Info().Uint32("position", uint32(id)).Msg("Holding position set")
	return nil
}

// HoldingPosition returns the current holding position id, zero when unset.
func (c *Cellar) HoldingPosition() types.PositionID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.holdingPosition
}

// CreditPositions returns the active credit positions in withdrawal order.
func (c *Cellar) CreditPositions() []types.Position {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.positionsIn(c.creditPositions)
}

// DebtPositions returns the active debt positions in order.
func (c *Cellar) DebtPositions() []types.Position {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.positionsIn(c.debtPositions)
}

func (c *Cellar) positionsIn(ids []types.PositionID) []types.Position {
	out := make([]types.Position, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.positions[id])
	}
	return out
}

// IsPositionUsed reports whether id is active in either array.
func (c *Cellar) IsPositionUsed(id types.PositionID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isPositionUsed(id)
}
