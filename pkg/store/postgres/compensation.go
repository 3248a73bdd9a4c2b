package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mystira/polystore/pkg/models"
)

// CompensationStore persists compensation records in PostgreSQL so pending
// secondary-store repairs survive process restarts.
type CompensationStore struct {
	db *gorm.DB
}

// NewCompensationStore creates a durable compensation store over the given
// GORM handle.
func NewCompensationStore(db *gorm.DB) *CompensationStore {
	return &CompensationStore{db: db}
}

func (s *CompensationStore) Get(ctx context.Context, entityType, entityID string) (*models.CompensationRecord, error) {
	var rec models.CompensationRecord
	err := s.db.WithContext(ctx).
		First(&rec, "entity_type = ? AND entity_id = ?", entityType, entityID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// Put inserts the record or replaces the existing one for the same entity.
// The (entity_type, entity_id) unique index makes concurrent writers
// converge on a single row.
func (s *CompensationStore) Put(ctx context.Context, rec *models.CompensationRecord) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "entity_type"}, {Name: "entity_id"}},
			UpdateAll: true,
		}).
		Create(rec).Error
}

func (s *CompensationStore) Delete(ctx context.Context, entityType, entityID string) error {
	return s.db.WithContext(ctx).
		Delete(&models.CompensationRecord{}, "entity_type = ? AND entity_id = ?", entityType, entityID).Error
}

// ListDue returns records ready for another attempt, oldest retry time
// first. Records at or above maxAttempts are left for manual inspection.
func (s *CompensationStore) ListDue(ctx context.Context, now time.Time, maxAttempts, limit int) ([]*models.CompensationRecord, error) {
	var recs []*models.CompensationRecord
	q := s.db.WithContext(ctx).
		Where("next_retry_at <= ? AND attempts < ?", now, maxAttempts).
		Order("next_retry_at")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

func (s *CompensationStore) List(ctx context.Context) ([]*models.CompensationRecord, error) {
	var recs []*models.CompensationRecord
	if err := s.db.WithContext(ctx).Order("id").Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}
