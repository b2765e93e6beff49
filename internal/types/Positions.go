/*

This file contains the types for cellar positions. A position is a tracked
placement of vault assets into some external resource, identified by a small
stable id and handled through a named adaptor.

*/

package types

import (
	"encoding/json"
)

type PositionID uint32

// Position is the registered state for one position id. AdaptorData identifies
// the concrete external resource (interpreted only by the adaptor), ConfigData
// carries per-cellar configuration such as liquidity limits.
type Position struct {
	ID          PositionID      `json:"id"`
	Adaptor     string          `json:"adaptor"` // registered adaptor identifier, e.g. "token", "yieldvault"
	IsDebt      bool            `json:"is_debt"`
	AdaptorData json.RawMessage `json:"adaptor_data,omitempty"`
	ConfigData  json.RawMessage `json:"config_data,omitempty"`
}

// AdaptorCall is one entry of a strategist rebalance batch: a target adaptor
// and an ordered list of opaque payloads it should execute. Payloads are
// interpreted only by the adaptor named here.
type AdaptorCall struct {
	Adaptor  string            `json:"adaptor"`
	Payloads []json.RawMessage `json:"payloads"`
}
