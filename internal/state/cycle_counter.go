/*

This file manages the persistent counter behind the engine's housekeeping
cycle numbers. Keeping it in the database gives cycle numbering continuity
across daemon restarts, so log trails and persisted records line up.

*/

package state

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
)

// ensureCycleCounterRow creates the counter table and its single row if
// missing, so the counter works even after a partial schema reset.
func ensureCycleCounterRow() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	createSQL := `
		CREATE TABLE IF NOT EXISTS cycle_counter (
			id INTEGER PRIMARY KEY DEFAULT 1,
			current_cycle INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT single_row_check CHECK (id = 1)
		);

		INSERT INTO cycle_counter (id, current_cycle)
		VALUES (1, 0)
		ON CONFLICT (id) DO NOTHING;
	`

	if _, err := DB.Exec(createSQL); err != nil {
		return fmt.Errorf("failed to ensure cycle_counter table: %w", err)
	}
	return nil
}

// GetCurrentCycleNumber retrieves the current cycle number without advancing it.
func GetCurrentCycleNumber() (int, error) {
	if err := ensureCycleCounterRow(); err != nil {
		return 0, err
	}

	var currentCycle int
	err := DB.QueryRow(`SELECT current_cycle FROM cycle_counter WHERE id = 1;`).Scan(&currentCycle)
	if err != nil {
		if err == sql.ErrNoRows {
			log.Warn().Msg("No cycle counter row found, treating as 0")
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get current cycle number: %w", err)
	}

	return currentCycle, nil
}

// IncrementCycleNumber advances the cycle counter and returns the new value.
func IncrementCycleNumber() (int, error) {
	if err := ensureCycleCounterRow(); err != nil {
		return 0, err
	}

	updateSQL := `
		UPDATE cycle_counter
		SET current_cycle = current_cycle + 1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
		RETURNING current_cycle;`

	var newCycle int
	if err := DB.QueryRow(updateSQL).Scan(&newCycle); err != nil {
		return 0, fmt.Errorf("failed to increment cycle number: %w", err)
	}

	log.Debug().Int("cycle", newCycle).Msg("Incremented cycle counter")
	return newCycle, nil
}

// ResetCycleNumber sets the counter to a specific value, for maintenance.
func ResetCycleNumber(cycleNumber int) error {
	if err := ensureCycleCounterRow(); err != nil {
		return err
	}
	if cycleNumber < 0 {
		return fmt.Errorf("cycle number cannot be negative: %d", cycleNumber)
	}

	updateSQL := `
		UPDATE cycle_counter
		SET current_cycle = $1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = 1;`

	result, err := DB.Exec(updateSQL, cycleNumber)
	if err != nil {
		return fmt.Errorf("failed to reset cycle number to %d: %w", cycleNumber, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no rows updated when resetting cycle number")
	}

	log.Warn().Int("cycle", cycleNumber).Msg("Reset cycle counter")
	return nil
}
