// Package memory provides map-backed implementations of the store contracts.
// They are the reference implementations the engine tests run against and the
// backing for local development runs without databases.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mystira/polystore/pkg/store"
)

// Store is an in-memory [store.Adapter]. All operations copy entities on the
// way in and out so callers never share memory with the store.
type Store[T store.Entity] struct {
	mu    sync.RWMutex
	items map[string]T
}

// New creates an empty in-memory store.
func New[T store.Entity]() *Store[T] {
	return &Store[T]{items: make(map[string]T)}
}

func (s *Store[T]) Get(ctx context.Context, id string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.Transient(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	cp := item
	return &cp, nil
}

func (s *Store[T]) Upsert(ctx context.Context, entity *T) error {
	if err := ctx.Err(); err != nil {
		return store.Transient(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[(*entity).EntityID()] = *entity
	return nil
}

func (s *Store[T]) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return store.Transient(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, id)
	return nil
}

func (s *Store[T]) Exists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, store.Transient(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.items[id]
	return ok, nil
}

// Page returns up to limit entities with IDs strictly greater than cursor, in
// ascending ID order. The next cursor is the ID of the last returned entity,
// or empty when the iteration is exhausted.
func (s *Store[T]) Page(ctx context.Context, cursor string, limit int) ([]*T, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", store.Transient(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.items))
	for id := range s.items {
		if id > cursor {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	if len(ids) > limit {
		ids = ids[:limit]
	}

	items := make([]*T, 0, len(ids))
	for _, id := range ids {
		cp := s.items[id]
		items = append(items, &cp)
	}

	next := ""
	if len(ids) == limit && len(ids) > 0 {
		next = ids[len(ids)-1]
	}
	return items, next, nil
}

func (s *Store[T]) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Len reports the number of stored entities.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
