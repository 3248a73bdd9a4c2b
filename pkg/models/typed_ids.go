package models

import (
	"database/sql/driver"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// Table names shared between both store adapters. They match GORM's
// pluralized table names for the relational secondary; the schema-flexible
// primary uses them as the RecordID table component.
const (
	TableAccounts             = "accounts"
	TableGameSessions         = "game_sessions"
	TablePlayerScenarioScores = "player_scenario_scores"
)

// Entity identifiers are stable, store-independent strings ("acct-42"). New
// IDs are minted from a short prefix plus a UUID; anything non-empty is
// accepted on the way in so that records created by the original system keep
// their identifiers across the migration.

// AccountID is a typed ID for accounts
type AccountID string

func NewAccountID() AccountID {
	return AccountID("acct-" + uuid.NewString())
}

func (id AccountID) String() string { return string(id) }
func (id AccountID) IsZero() bool   { return id == "" }

func (id AccountID) MarshalCBOR() ([]byte, error) {
	return marshalCBORID(TableAccounts, string(id))
}

func (id *AccountID) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, TableAccounts, (*string)(id))
}

func (id AccountID) Value() (driver.Value, error) {
	if id.IsZero() {
		return nil, nil
	}
	return string(id), nil
}

func (id *AccountID) Scan(value any) error {
	return scanStringID(value, (*string)(id))
}

func (AccountID) GormDataType() string { return "text" }

// GameSessionID is a typed ID for game sessions
type GameSessionID string

func NewGameSessionID() GameSessionID {
	return GameSessionID("sess-" + uuid.NewString())
}

func (id GameSessionID) String() string { return string(id) }
func (id GameSessionID) IsZero() bool   { return id == "" }

func (id GameSessionID) MarshalCBOR() ([]byte, error) {
	return marshalCBORID(TableGameSessions, string(id))
}

func (id *GameSessionID) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, TableGameSessions, (*string)(id))
}

func (id GameSessionID) Value() (driver.Value, error) {
	if id.IsZero() {
		return nil, nil
	}
	return string(id), nil
}

func (id *GameSessionID) Scan(value any) error {
	return scanStringID(value, (*string)(id))
}

func (GameSessionID) GormDataType() string { return "text" }

// PlayerScenarioScoreID is a typed ID for player scenario scores
type PlayerScenarioScoreID string

func NewPlayerScenarioScoreID() PlayerScenarioScoreID {
	return PlayerScenarioScoreID("score-" + uuid.NewString())
}

func (id PlayerScenarioScoreID) String() string { return string(id) }
func (id PlayerScenarioScoreID) IsZero() bool   { return id == "" }

func (id PlayerScenarioScoreID) MarshalCBOR() ([]byte, error) {
	return marshalCBORID(TablePlayerScenarioScores, string(id))
}

func (id *PlayerScenarioScoreID) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, TablePlayerScenarioScores, (*string)(id))
}

func (id PlayerScenarioScoreID) Value() (driver.Value, error) {
	if id.IsZero() {
		return nil, nil
	}
	return string(id), nil
}

func (id *PlayerScenarioScoreID) Scan(value any) error {
	return scanStringID(value, (*string)(id))
}

func (PlayerScenarioScoreID) GormDataType() string { return "text" }

// marshalCBORID encodes an ID as a SurrealDB RecordID (CBOR tag 8 wrapping a
// [table, id] pair) so that entity documents and references marshal to proper
// record links instead of bare strings.
func marshalCBORID(table, id string) ([]byte, error) {
	return cbor.Marshal(cbor.Tag{
		Number:  8,
		Content: []any{table, id},
	})
}

// unmarshalCBORID is a helper for unmarshaling SurrealDB RecordID from CBOR.
// SurrealDB uses CBOR tag 8 to identify RecordID types in its binary protocol.
// A plain string is also accepted so documents written by other tooling still
// decode.
func unmarshalCBORID(data []byte, expectedTable string, target *string) error {
	if len(data) == 0 {
		return fmt.Errorf("empty CBOR data")
	}

	// Major type 6 is a CBOR tag; anything else is decoded as a plain string.
	if data[0]>>5 != 6 {
		var s string
		if err := cbor.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("failed to unmarshal ID string: %w", err)
		}
		*target = s
		return nil
	}

	var tag cbor.Tag
	if err := cbor.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("failed to unmarshal CBOR tag: %w", err)
	}

	// SurrealDB uses tag 8 for RecordID
	if tag.Number != 8 {
		return fmt.Errorf("expected RecordID tag (8), got %d", tag.Number)
	}

	arr, ok := tag.Content.([]any)
	if !ok || len(arr) != 2 {
		return fmt.Errorf("invalid RecordID format: expected [table, id] array")
	}

	table, ok := arr[0].(string)
	if !ok {
		return fmt.Errorf("invalid RecordID format: table name must be string")
	}
	if table != expectedTable {
		return fmt.Errorf("expected table %s, got %s", expectedTable, table)
	}

	idStr, ok := arr[1].(string)
	if !ok {
		return fmt.Errorf("invalid RecordID format: ID must be string")
	}

	*target = idStr
	return nil
}

func scanStringID(value any, target *string) error {
	if value == nil {
		*target = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*target = v
	case []byte:
		*target = string(v)
	default:
		return fmt.Errorf("cannot scan type %T into entity ID", value)
	}
	return nil
}
