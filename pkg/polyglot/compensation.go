package polyglot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mystira/polystore/pkg/models"
	"github.com/mystira/polystore/pkg/store"
)

// Replayer re-applies one failed secondary write. Implementations read the
// current primary state and push it to the secondary, so replaying an
// already-repaired entity is a no-op.
type Replayer func(ctx context.Context, op models.CompensationOperation, entityID string) error

// CompensationHandler records failed secondary writes and replays them until
// they succeed or hit the attempt ceiling. One handler serves all entity
// types; repositories register a [Replayer] per type at construction.
type CompensationHandler struct {
	store       store.CompensationStore
	maxAttempts int
	backoff     time.Duration
	log         zerolog.Logger

	mu        sync.RWMutex
	replayers map[EntityType]Replayer
}

// NewCompensationHandler creates a handler over the given record store.
func NewCompensationHandler(cs store.CompensationStore, maxAttempts int, backoff time.Duration, log zerolog.Logger) *CompensationHandler {
	return &CompensationHandler{
		store:       cs,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		log:         log.With().Str("component", "compensation").Logger(),
		replayers:   make(map[EntityType]Replayer),
	}
}

// RegisterReplayer binds the replay function for one entity type. Records of
// types with no registered replayer are skipped during replay.
func (h *CompensationHandler) RegisterReplayer(t EntityType, fn Replayer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.replayers[t] = fn
}

func (h *CompensationHandler) replayer(t EntityType) (Replayer, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	fn, ok := h.replayers[t]
	return fn, ok
}

// Record notes a failed secondary write. Repeat failures for the same entity
// collapse into one record: the operation and error are updated in place and
// the attempt count carries over, so one broken entity cannot flood the
// store.
func (h *CompensationHandler) Record(ctx context.Context, entityType EntityType, entityID string, op models.CompensationOperation, cause error) error {
	now := time.Now()

	rec, err := h.store.Get(ctx, entityType.String(), entityID)
	if err != nil {
		return fmt.Errorf("failed to load compensation record: %w", err)
	}
	if rec == nil {
		rec = &models.CompensationRecord{
			EntityType:  entityType.String(),
			EntityID:    entityID,
			CreatedAt:   now,
			NextRetryAt: now.Add(h.backoff),
		}
	}

	// The latest operation wins. Replay reads the primary at replay time,
	// so only the most recent intent matters.
	rec.Operation = op
	rec.LastError = cause.Error()
	rec.UpdatedAt = now

	if err := h.store.Put(ctx, rec); err != nil {
		return fmt.Errorf("failed to store compensation record: %w", err)
	}

	h.log.Warn().
		Str("entity_type", entityType.String()).
		Str("entity_id", entityID).
		Str("operation", string(op)).
		Str("error_class", store.ClassOf(cause).String()).
		Err(cause).
		Msg("recorded failed secondary write")
	return nil
}

// Replay processes up to batchSize due records. Each success removes its
// record; each failure bumps the attempt count and pushes the next retry
// out. Returns how many records succeeded and how many are still pending.
func (h *CompensationHandler) Replay(ctx context.Context, batchSize int) (succeeded, stillFailing int, err error) {
	now := time.Now()

	due, err := h.store.ListDue(ctx, now, h.maxAttempts, batchSize)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list due compensation records: %w", err)
	}

	for _, rec := range due {
		if err := ctx.Err(); err != nil {
			return succeeded, stillFailing, err
		}

		entityType, perr := ParseEntityType(rec.EntityType)
		if perr != nil {
			h.log.Error().Str("entity_type", rec.EntityType).Msg("compensation record has unknown entity type")
			stillFailing++
			continue
		}
		fn, ok := h.replayer(entityType)
		if !ok {
			stillFailing++
			continue
		}

		if rerr := fn(ctx, rec.Operation, rec.EntityID); rerr != nil {
			rec.Attempts++
			if store.ClassOf(rerr) == store.ClassPermanent {
				// Replaying a permanent failure gives the same result every
				// time. Cap the record now so it surfaces for manual
				// reconciliation instead of burning retries.
				rec.Attempts = h.maxAttempts
			}
			rec.LastError = rerr.Error()
			rec.UpdatedAt = time.Now()
			// Linear backoff keeps a persistently failing entity from
			// being retried on every pass.
			rec.NextRetryAt = time.Now().Add(h.backoff * time.Duration(rec.Attempts))
			if serr := h.store.Put(ctx, rec); serr != nil {
				h.log.Error().Err(serr).Str("entity_id", rec.EntityID).Msg("failed to update compensation record")
			}
			stillFailing++
			continue
		}

		if derr := h.store.Delete(ctx, rec.EntityType, rec.EntityID); derr != nil {
			h.log.Error().Err(derr).Str("entity_id", rec.EntityID).Msg("failed to remove replayed compensation record")
			stillFailing++
			continue
		}
		succeeded++
		h.log.Info().
			Str("entity_type", rec.EntityType).
			Str("entity_id", rec.EntityID).
			Msg("replayed failed secondary write")
	}

	return succeeded, stillFailing, nil
}

// CompensationStats summarizes the state of the compensation backlog.
type CompensationStats struct {
	Pending   int `json:"pending"`
	Exhausted int `json:"exhausted"`
}

// Stats reports how many records are pending replay and how many have
// reached the attempt ceiling.
func (h *CompensationHandler) Stats(ctx context.Context) (*CompensationStats, error) {
	all, err := h.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list compensation records: %w", err)
	}
	stats := &CompensationStats{}
	for _, rec := range all {
		if rec.Attempts >= h.maxAttempts {
			stats.Exhausted++
		} else {
			stats.Pending++
		}
	}
	return stats, nil
}

// Backlog returns every compensation record, exhausted ones included, for
// the admin surface.
func (h *CompensationHandler) Backlog(ctx context.Context) ([]*models.CompensationRecord, error) {
	return h.store.List(ctx)
}

// StartReplayLoop replays due records on a fixed interval until ctx is
// canceled. Returns a stop function that also waits for the loop to exit.
func (h *CompensationHandler) StartReplayLoop(ctx context.Context, interval time.Duration, batchSize int) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				succeeded, stillFailing, err := h.Replay(ctx, batchSize)
				if err != nil && ctx.Err() == nil {
					h.log.Error().Err(err).Msg("compensation replay pass failed")
					continue
				}
				if succeeded > 0 || stillFailing > 0 {
					h.log.Info().
						Int("succeeded", succeeded).
						Int("still_failing", stillFailing).
						Msg("compensation replay pass")
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
