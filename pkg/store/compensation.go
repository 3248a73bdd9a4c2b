package store

import (
	"context"
	"time"

	"github.com/mystira/polystore/pkg/models"
)

// CompensationStore persists the set of pending secondary-store repairs. It
// is the only durable shared mutable state the engine owns, so the contract
// is deliberately small: idempotent upsert keyed by (entityType, entityID),
// lookup, delete, and two list shapes.
//
// Put must tolerate concurrent calls for the same entity from racing writers;
// last-writer-wins on Attempts/LastError is acceptable because the record is
// advisory, not authoritative.
type CompensationStore interface {
	// Get returns the open record for (entityType, entityID), or (nil, nil)
	// when none exists.
	Get(ctx context.Context, entityType, entityID string) (*models.CompensationRecord, error)

	// Put inserts the record or, when one already exists for the same
	// (entityType, entityID), replaces its mutable fields.
	Put(ctx context.Context, rec *models.CompensationRecord) error

	// Delete removes the record for (entityType, entityID). Deleting a
	// missing record is not an error.
	Delete(ctx context.Context, entityType, entityID string) error

	// ListDue returns up to limit records whose NextRetryAt is not after now
	// and whose Attempts is below maxAttempts, ordered by NextRetryAt.
	ListDue(ctx context.Context, now time.Time, maxAttempts, limit int) ([]*models.CompensationRecord, error)

	// List returns every record, capped-out ones included, for status and
	// manual reconciliation views.
	List(ctx context.Context) ([]*models.CompensationRecord, error)
}
