package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// SessionStatus represents the lifecycle state of a game session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionPaused    SessionStatus = "paused"
	SessionCompleted SessionStatus = "completed"
	SessionAbandoned SessionStatus = "abandoned"
)

// JSONMap is a flexible key-value map for storing dynamic payloads across both
// backing stores. The relational secondary persists it as JSONB while the
// schema-flexible primary stores it as a nested object. It is used for session
// state and score breakdowns whose structure varies per scenario.
type JSONMap map[string]any

// Value implements the driver.Valuer interface for database storage
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for database retrieval
func (j *JSONMap) Scan(value any) error {
	if value == nil {
		*j = make(map[string]any)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		bytes = []byte(value.(string))
	}
	return json.Unmarshal(bytes, j)
}

// Account represents a player account. Accounts are the root identity that
// game sessions and scores hang off, and the first entity type migrated
// between stores.
type Account struct {
	ID          AccountID `gorm:"type:text;primary_key" json:"id"`
	Email       string    `gorm:"uniqueIndex;not null" json:"email"`
	DisplayName string    `gorm:"not null" json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	Preferences JSONMap   `gorm:"type:jsonb" json:"preferences,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BeforeCreate hook to generate ID if not set
func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID.IsZero() {
		a.ID = NewAccountID()
	}
	return nil
}

func (a Account) EntityID() string        { return a.ID.String() }
func (a Account) LastModified() time.Time { return a.UpdatedAt }

// GameSession represents one playthrough of a scenario by an account.
// Sessions carry a free-form State payload because each scenario defines its
// own checkpoint and inventory structure.
type GameSession struct {
	ID          GameSessionID `gorm:"type:text;primary_key" json:"id"`
	AccountID   AccountID     `gorm:"type:text;not null;index" json:"account_id"`
	ScenarioID  string        `gorm:"not null;index" json:"scenario_id"`
	Status      SessionStatus `gorm:"not null" json:"status"`
	Checkpoint  string        `json:"checkpoint,omitempty"`
	State       JSONMap       `gorm:"type:jsonb" json:"state,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// BeforeCreate hook to generate ID if not set
func (s *GameSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID.IsZero() {
		s.ID = NewGameSessionID()
	}
	return nil
}

func (s GameSession) EntityID() string        { return s.ID.String() }
func (s GameSession) LastModified() time.Time { return s.UpdatedAt }

// PlayerScenarioScore is the per-account, per-scenario best result. Score and
// CompletionRatio are floating point and BadgeIDs is a collection, which makes
// this the entity type that exercises semantic (not byte) comparison during
// consistency validation.
type PlayerScenarioScore struct {
	ID              PlayerScenarioScoreID `gorm:"type:text;primary_key" json:"id"`
	AccountID       AccountID             `gorm:"type:text;not null;index:idx_score_account_scenario" json:"account_id"`
	ScenarioID      string                `gorm:"not null;index:idx_score_account_scenario" json:"scenario_id"`
	Score           float64               `gorm:"not null" json:"score"`
	CompletionRatio float64               `json:"completion_ratio"`
	BadgeIDs        []string              `gorm:"serializer:json" json:"badge_ids,omitempty"`
	Breakdown       JSONMap               `gorm:"type:jsonb" json:"breakdown,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// BeforeCreate hook to generate ID if not set
func (p *PlayerScenarioScore) BeforeCreate(tx *gorm.DB) error {
	if p.ID.IsZero() {
		p.ID = NewPlayerScenarioScoreID()
	}
	return nil
}

func (p PlayerScenarioScore) EntityID() string        { return p.ID.String() }
func (p PlayerScenarioScore) LastModified() time.Time { return p.UpdatedAt }
