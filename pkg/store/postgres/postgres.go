// Package postgres implements the [store.Adapter] contract on PostgreSQL
// using GORM.
//
// The relational store is the strict-schema side of the engine. GORM struct
// tags on the entity models define the columns, indexes, and constraints,
// and [Open] runs AutoMigrate so the schema tracks the models. Constraint
// violations surface as permanent errors so the engine does not retry writes
// that can never succeed.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mystira/polystore/pkg/store"
)

// Open connects to PostgreSQL and returns the shared GORM handle.
// TranslateError maps driver errors to GORM sentinels like
// [gorm.ErrDuplicatedKey] so they can be classified.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Close closes the underlying connection pool of the GORM handle.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Store is a PostgreSQL-backed adapter for one entity table.
type Store[T store.Entity] struct {
	db *gorm.DB
}

// New creates an adapter over the given GORM handle. The table is derived
// from T by GORM's naming strategy.
func New[T store.Entity](db *gorm.DB) *Store[T] {
	return &Store[T]{db: db}
}

// classify wraps err with an error class. Constraint violations cannot
// succeed on retry; everything else is assumed recoverable.
func classify(err error) error {
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey),
		errors.Is(err, gorm.ErrCheckConstraintViolated),
		errors.Is(err, gorm.ErrForeignKeyViolated),
		errors.Is(err, gorm.ErrInvalidData):
		return store.Permanent(err)
	default:
		return store.Transient(err)
	}
}

func (s *Store[T]) Get(ctx context.Context, id string) (*T, error) {
	var entity T
	err := s.db.WithContext(ctx).First(&entity, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, classify(err)
	}
	return &entity, nil
}

// Upsert inserts the entity or replaces the existing row with the same
// primary key. ON CONFLICT keeps concurrent retries idempotent.
func (s *Store[T]) Upsert(ctx context.Context, entity *T) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(entity).Error
	if err != nil {
		return classify(err)
	}
	return nil
}

func (s *Store[T]) Delete(ctx context.Context, id string) error {
	var entity T
	err := s.db.WithContext(ctx).Delete(&entity, "id = ?", id).Error
	if err != nil {
		return classify(err)
	}
	return nil
}

func (s *Store[T]) Exists(ctx context.Context, id string) (bool, error) {
	var entity T
	var count int64
	err := s.db.WithContext(ctx).Model(&entity).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return false, classify(err)
	}
	return count > 0, nil
}

// Page returns up to limit rows with IDs strictly greater than cursor in
// ascending ID order.
func (s *Store[T]) Page(ctx context.Context, cursor string, limit int) ([]*T, string, error) {
	var items []*T
	err := s.db.WithContext(ctx).
		Where("id > ?", cursor).
		Order("id").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, "", classify(err)
	}

	next := ""
	if len(items) == limit && limit > 0 {
		next = (*items[len(items)-1]).EntityID()
	}
	return items, next, nil
}

func (s *Store[T]) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return store.Transient(err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return store.Transient(err)
	}
	return nil
}
