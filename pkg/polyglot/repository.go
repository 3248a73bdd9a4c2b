// Package polyglot implements a dual-store repository engine: every write
// lands in a primary store first, then propagates to an optional secondary
// store under a bounded timeout. Secondary failures never fail the caller;
// they are recorded for compensation and replayed until the stores converge.
//
// The engine is built from small parts: [Repository] routes reads and writes
// per [Mode], [CompensationHandler] records and replays failed secondary
// writes, [ConsistencyResult] reports per-entity agreement between the
// stores, and [BackfillService] copies existing data into a freshly attached
// secondary. A [Registry] binds one repository per entity type and the
// [Engine] exposes the admin operations over it.
package polyglot

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/mystira/polystore/pkg/models"
	"github.com/mystira/polystore/pkg/store"
)

// Repository routes reads and writes for one entity type across a primary
// and an optional secondary store.
//
// The primary write is authoritative: if it fails the operation fails and
// the secondary is not attempted. A primary success is never rolled back;
// whatever happens to the secondary afterwards, the caller sees success.
type Repository[T store.Entity] struct {
	entityType EntityType
	primary    store.Adapter[T]
	secondary  store.Option[store.Adapter[T]]
	comp       *CompensationHandler
	cfg        Config
	log        zerolog.Logger

	// Failed secondary writes dropped because compensation is disabled.
	uncompensated atomic.Uint64
}

// NewRepository wires a repository and registers its replayer with the
// compensation handler when one is provided.
func NewRepository[T store.Entity](
	entityType EntityType,
	primary store.Adapter[T],
	secondary store.Option[store.Adapter[T]],
	comp *CompensationHandler,
	cfg Config,
	log zerolog.Logger,
) *Repository[T] {
	r := &Repository[T]{
		entityType: entityType,
		primary:    primary,
		secondary:  secondary,
		comp:       comp,
		cfg:        cfg.withDefaults(),
		log:        log.With().Str("entity_type", entityType.String()).Logger(),
	}
	if comp != nil {
		comp.RegisterReplayer(entityType, r.replay)
	}
	return r
}

// Type returns the entity type this repository manages.
func (r *Repository[T]) Type() EntityType { return r.entityType }

// HasSecondary reports whether a secondary store is configured.
func (r *Repository[T]) HasSecondary() bool { return r.secondary.IsSome() }

// UncompensatedFailures returns how many secondary failures were dropped
// because compensation is disabled.
func (r *Repository[T]) UncompensatedFailures() uint64 { return r.uncompensated.Load() }

// Get reads an entity, returning (nil, nil) when it does not exist. Reads go
// to the primary unless the mode promotes the secondary.
func (r *Repository[T]) Get(ctx context.Context, id string) (*T, error) {
	if r.cfg.Mode.ReadsFromSecondary() {
		if sec, ok := r.secondary.Get(); ok {
			return sec.Get(ctx, id)
		}
	}
	return r.primary.Get(ctx, id)
}

// Create writes a new entity to the primary, then propagates to the
// secondary according to the mode. The underlying write is still an upsert,
// so retrying a create that already landed is harmless; the operation only
// marks the compensation intent.
func (r *Repository[T]) Create(ctx context.Context, entity *T) error {
	if err := r.primary.Upsert(ctx, entity); err != nil {
		return fmt.Errorf("primary create failed: %w", err)
	}
	r.propagate(ctx, models.CompensationCreate, (*entity).EntityID(), func(sctx context.Context, sec store.Adapter[T]) error {
		return sec.Upsert(sctx, entity)
	})
	return nil
}

// Upsert writes the entity to the primary, then propagates to the secondary
// according to the mode. A secondary failure is absorbed: it is compensated
// when enabled, otherwise logged and counted.
func (r *Repository[T]) Upsert(ctx context.Context, entity *T) error {
	if err := r.primary.Upsert(ctx, entity); err != nil {
		return fmt.Errorf("primary upsert failed: %w", err)
	}
	r.propagate(ctx, models.CompensationUpdate, (*entity).EntityID(), func(sctx context.Context, sec store.Adapter[T]) error {
		return sec.Upsert(sctx, entity)
	})
	return nil
}

// Delete removes the entity from the primary, then from the secondary.
// Deleting a missing entity is not an error.
func (r *Repository[T]) Delete(ctx context.Context, id string) error {
	if err := r.primary.Delete(ctx, id); err != nil {
		return fmt.Errorf("primary delete failed: %w", err)
	}
	r.propagate(ctx, models.CompensationDelete, id, func(sctx context.Context, sec store.Adapter[T]) error {
		return sec.Delete(sctx, id)
	})
	return nil
}

// propagate runs the secondary half of a write under the configured timeout.
// The attempt is detached from the caller's cancellation: the primary write
// already happened, so the secondary should get its full window even if the
// caller gives up. A store that ignores its context cannot stall the caller
// past the timeout either; the attempt is abandoned and compensated.
func (r *Repository[T]) propagate(ctx context.Context, op models.CompensationOperation, id string, write func(context.Context, store.Adapter[T]) error) {
	if !r.cfg.Mode.WritesSecondary() {
		return
	}
	sec, ok := r.secondary.Get()
	if !ok {
		return
	}

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.SecondaryWriteTimeout)

	done := make(chan error, 1)
	go func() {
		defer cancel()
		done <- write(sctx, sec)
	}()

	select {
	case err := <-done:
		if err != nil {
			r.absorb(ctx, op, id, err)
		}
	case <-sctx.Done():
		r.absorb(ctx, op, id, fmt.Errorf("secondary write timed out after %s", r.cfg.SecondaryWriteTimeout))
	}
}

// absorb handles a secondary failure without surfacing it to the caller.
func (r *Repository[T]) absorb(ctx context.Context, op models.CompensationOperation, id string, cause error) {
	if r.cfg.EnableCompensation && r.comp != nil {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.SecondaryWriteTimeout)
		defer cancel()
		err := r.comp.Record(rctx, r.entityType, id, op, cause)
		if err == nil {
			return
		}
		r.log.Error().Err(err).Str("entity_id", id).Msg("failed to record compensation")
	}
	r.uncompensated.Add(1)
	r.log.Warn().
		Str("entity_id", id).
		Str("operation", string(op)).
		Str("error_class", store.ClassOf(cause).String()).
		Err(cause).
		Msg("secondary write failed without compensation")
}

// replay re-applies one failed secondary write from current primary state.
// An entity missing from the primary means the failed write was superseded
// by a delete, so the secondary copy is removed.
func (r *Repository[T]) replay(ctx context.Context, op models.CompensationOperation, id string) error {
	sec, ok := r.secondary.Get()
	if !ok {
		return fmt.Errorf("no secondary store configured for %s", r.entityType)
	}

	if op == models.CompensationDelete {
		return sec.Delete(ctx, id)
	}

	entity, err := r.primary.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to read primary for replay: %w", err)
	}
	if entity == nil {
		return sec.Delete(ctx, id)
	}
	return sec.Upsert(ctx, entity)
}

// IsPrimaryHealthy probes the primary store.
func (r *Repository[T]) IsPrimaryHealthy(ctx context.Context) bool {
	return IsHealthy(ctx, r.primary, r.cfg.ConsistencyTimeout)
}

// IsSecondaryHealthy probes the secondary store. A missing secondary
// reports unhealthy; callers check [Repository.HasSecondary] first.
func (r *Repository[T]) IsSecondaryHealthy(ctx context.Context) bool {
	sec, ok := r.secondary.Get()
	if !ok {
		return false
	}
	return IsHealthy(ctx, sec, r.cfg.ConsistencyTimeout)
}
