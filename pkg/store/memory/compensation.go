package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mystira/polystore/pkg/models"
)

// CompensationStore keeps compensation records in memory. Used by tests and
// single-store development runs where no relational database is configured.
type CompensationStore struct {
	mu      sync.RWMutex
	records map[string]models.CompensationRecord
	nextID  uint64
}

// NewCompensationStore creates an empty in-memory compensation store.
func NewCompensationStore() *CompensationStore {
	return &CompensationStore{records: make(map[string]models.CompensationRecord)}
}

func compensationKey(entityType, entityID string) string {
	return entityType + "/" + entityID
}

func (s *CompensationStore) Get(ctx context.Context, entityType, entityID string) (*models.CompensationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[compensationKey(entityType, entityID)]
	if !ok {
		return nil, nil
	}
	cp := rec
	return &cp, nil
}

func (s *CompensationStore) Put(ctx context.Context, rec *models.CompensationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := compensationKey(rec.EntityType, rec.EntityID)
	if existing, ok := s.records[key]; ok {
		rec.ID = existing.ID
	} else if rec.ID == 0 {
		s.nextID++
		rec.ID = s.nextID
	}
	s.records[key] = *rec
	return nil
}

func (s *CompensationStore) Delete(ctx context.Context, entityType, entityID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, compensationKey(entityType, entityID))
	return nil
}

// ListDue returns records whose next retry time has passed and whose attempt
// count is below maxAttempts, oldest retry time first.
func (s *CompensationStore) ListDue(ctx context.Context, now time.Time, maxAttempts, limit int) ([]*models.CompensationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	due := make([]*models.CompensationRecord, 0)
	for _, rec := range s.records {
		if rec.Attempts >= maxAttempts {
			continue
		}
		if rec.NextRetryAt.After(now) {
			continue
		}
		cp := rec
		due = append(due, &cp)
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].NextRetryAt.Before(due[j].NextRetryAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *CompensationStore) List(ctx context.Context) ([]*models.CompensationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*models.CompensationRecord, 0, len(s.records))
	for _, rec := range s.records {
		cp := rec
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].ID < all[j].ID
	})
	return all, nil
}
