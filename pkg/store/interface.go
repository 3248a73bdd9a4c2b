// Package store defines the per-entity-type adapter contract that the
// polyglot persistence engine is built on.
//
// An [Adapter] binds one entity type to one physical store. Every entity type
// participating in polyglot persistence has a primary adapter (the durable
// source of truth) and optionally a secondary adapter (the store being
// migrated to). The engine in pkg/polyglot composes adapters; it never talks
// to a database driver directly.
//
// Three implementations exist:
//
//   - pkg/store/surreal: SurrealDB via the surrealdb.go SDK with the
//     surrealcbor codec; the schema-flexible primary.
//   - pkg/store/postgres: PostgreSQL via GORM; the relational secondary.
//   - pkg/store/memory: in-memory map; tests and local development.
//
// Adapters classify their failures as transient (network and timeout
// errors, worth retrying) or permanent (validation and constraint
// violations, where a retry gives the same result) using [Transient] and
// [Permanent]. The compensation handler branches on [ClassOf]: permanent
// failures skip straight to the attempt ceiling instead of being retried.
package store

import (
	"context"
	"time"
)

// Entity is any domain record with a stable, store-independent identifier and
// a last-modified marker. The identifier must be identical in both stores for
// the same logical record.
type Entity interface {
	EntityID() string
	LastModified() time.Time
}

// Adapter is the read/write/delete contract for one entity type against one
// physical store.
//
// Get returns (nil, nil) for a missing entity; an error always means the
// lookup itself failed, never that the record is absent. Upsert and Delete
// are idempotent: re-applying either with the same input leaves the store in
// the same state, which is what makes compensation replay and backfill
// re-runs safe.
//
// Page iterates the store in ascending ID order. The returned cursor is
// opaque to callers; passing it back resumes after the last item of the
// previous batch, and an empty cursor from Page means the iteration is done.
// ID ordering keeps pagination monotonic under concurrent writes: a record
// created behind the cursor is missed by the current run, never visited
// twice.
type Adapter[T Entity] interface {
	Get(ctx context.Context, id string) (*T, error)
	Upsert(ctx context.Context, entity *T) error
	Delete(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (bool, error)
	Page(ctx context.Context, cursor string, limit int) (items []*T, next string, err error)

	// Ping performs a lightweight round-trip against the backing store.
	// It is the primitive the health probe builds on.
	Ping(ctx context.Context) error
}
