package polyglot

import (
	"context"
	"fmt"
	"time"
)

// Presence is the tri-state outcome of looking an entity up in one store.
// A store that cannot answer reports unknown rather than absent: "I could
// not check" and "it is not there" are different findings, and conflating
// them would let an outage masquerade as agreement.
type Presence string

const (
	PresencePresent Presence = "present"
	PresenceAbsent  Presence = "absent"
	PresenceUnknown Presence = "unknown"
)

// ConsistencyResult reports whether one entity agrees across both stores.
//
// IsConsistent is true only when both presences are known and the copies
// match: both present with no field diffs, or both absent. Any unknown
// presence makes the result inconsistent.
type ConsistencyResult struct {
	EntityType EntityType  `json:"entity_type"`
	EntityID   string      `json:"entity_id"`
	Primary    Presence    `json:"primary"`
	Secondary  Presence    `json:"secondary"`
	FieldDiffs []FieldDiff `json:"field_diffs,omitempty"`
	CheckedAt  time.Time   `json:"checked_at"`

	IsConsistent bool `json:"is_consistent"`
}

// ErrNoSecondary is returned when consistency validation is requested but
// no secondary store is configured.
var ErrNoSecondary = fmt.Errorf("no secondary store configured")

type fetchOutcome[T any] struct {
	entity   *T
	presence Presence
}

// ValidateConsistency fetches the entity from both stores concurrently and
// compares the copies. Each fetch is bounded by the consistency timeout; a
// fetch that errors or times out yields an unknown presence instead of
// failing the validation.
func (r *Repository[T]) ValidateConsistency(ctx context.Context, id string) (*ConsistencyResult, error) {
	sec, ok := r.secondary.Get()
	if !ok {
		return nil, ErrNoSecondary
	}

	primaryCh := make(chan fetchOutcome[T], 1)
	secondaryCh := make(chan fetchOutcome[T], 1)
	go func() { primaryCh <- r.fetchOne(ctx, r.primary, id) }()
	go func() { secondaryCh <- r.fetchOne(ctx, sec, id) }()

	p := <-primaryCh
	s := <-secondaryCh

	result := &ConsistencyResult{
		EntityType: r.entityType,
		EntityID:   id,
		Primary:    p.presence,
		Secondary:  s.presence,
		CheckedAt:  time.Now(),
	}

	switch {
	case p.presence == PresenceUnknown || s.presence == PresenceUnknown:
		result.IsConsistent = false
	case p.presence == PresencePresent && s.presence == PresencePresent:
		result.FieldDiffs = diffFields(p.entity, s.entity)
		result.IsConsistent = len(result.FieldDiffs) == 0
	case p.presence == PresenceAbsent && s.presence == PresenceAbsent:
		result.IsConsistent = true
	default:
		result.IsConsistent = false
	}
	return result, nil
}

// fetchOne looks the entity up in one store under the consistency timeout.
func (r *Repository[T]) fetchOne(ctx context.Context, adapter interface {
	Get(ctx context.Context, id string) (*T, error)
}, id string) fetchOutcome[T] {
	fctx, cancel := context.WithTimeout(ctx, r.cfg.ConsistencyTimeout)
	defer cancel()

	type getResult struct {
		entity *T
		err    error
	}
	done := make(chan getResult, 1)
	go func() {
		entity, err := adapter.Get(fctx, id)
		done <- getResult{entity, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return fetchOutcome[T]{presence: PresenceUnknown}
		}
		if res.entity == nil {
			return fetchOutcome[T]{presence: PresenceAbsent}
		}
		return fetchOutcome[T]{entity: res.entity, presence: PresencePresent}
	case <-fctx.Done():
		return fetchOutcome[T]{presence: PresenceUnknown}
	}
}
