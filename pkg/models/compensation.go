package models

import (
	"time"
)

// CompensationOperation identifies which repository operation failed against
// the secondary store and therefore must be replayed.
type CompensationOperation string

const (
	CompensationCreate CompensationOperation = "create"
	CompensationUpdate CompensationOperation = "update"
	CompensationDelete CompensationOperation = "delete"
)

// CompensationRecord marks a single entity whose secondary-store write failed
// after the primary write succeeded. Its existence means the two stores are
// currently divergent for that entity.
//
// Records are keyed by (EntityType, EntityID): re-recording a failure for the
// same entity updates Attempts and LastError instead of creating a duplicate.
// A record is deleted when a replay succeeds. Once Attempts reaches the
// configured ceiling the record is retained and surfaced through status as a
// permanent inconsistency needing manual reconciliation; it is never deleted
// automatically so the signal cannot be lost.
type CompensationRecord struct {
	ID          uint64                `gorm:"primaryKey;autoIncrement" json:"id"`
	EntityType  string                `gorm:"not null;uniqueIndex:idx_compensation_entity" json:"entity_type"`
	EntityID    string                `gorm:"not null;uniqueIndex:idx_compensation_entity" json:"entity_id"`
	Operation   CompensationOperation `gorm:"not null" json:"operation"`
	Attempts    int                   `gorm:"not null" json:"attempts"`
	LastError   string                `gorm:"type:text" json:"last_error"`
	NextRetryAt time.Time             `gorm:"index" json:"next_retry_at"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}
