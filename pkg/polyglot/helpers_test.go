package polyglot

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/mystira/polystore/pkg/models"
	"github.com/mystira/polystore/pkg/store"
	"github.com/mystira/polystore/pkg/store/memory"
)

var testLog = zerolog.Nop()

func testConfig() Config {
	return Config{
		Mode:                        ModeDualWrite,
		EnableCompensation:          true,
		SecondaryWriteTimeout:       200 * time.Millisecond,
		EnableConsistencyValidation: true,
		ConsistencyTimeout:          200 * time.Millisecond,
		MaxCompensationAttempts:     3,
		CompensationBackoff:         time.Millisecond,
	}
}

func testAccount(id string) *models.Account {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	return &models.Account{
		ID:          models.AccountID(id),
		Email:       id + "@example.com",
		DisplayName: "Player " + id,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// failingAdapter injects failures into selected operations of a real
// in-memory adapter.
type failingAdapter[T store.Entity] struct {
	store.Adapter[T]
	failWrites atomic.Bool
	failReads  atomic.Bool

	// failPermanent classifies injected errors as permanent instead of
	// transient.
	failPermanent atomic.Bool
}

func wrapFailing[T store.Entity](inner store.Adapter[T]) *failingAdapter[T] {
	return &failingAdapter[T]{Adapter: inner}
}

var errInjected = errors.New("injected store failure")

func (f *failingAdapter[T]) injected() error {
	if f.failPermanent.Load() {
		return store.Permanent(errInjected)
	}
	return store.Transient(errInjected)
}

func (f *failingAdapter[T]) Upsert(ctx context.Context, entity *T) error {
	if f.failWrites.Load() {
		return f.injected()
	}
	return f.Adapter.Upsert(ctx, entity)
}

func (f *failingAdapter[T]) Delete(ctx context.Context, id string) error {
	if f.failWrites.Load() {
		return f.injected()
	}
	return f.Adapter.Delete(ctx, id)
}

func (f *failingAdapter[T]) Get(ctx context.Context, id string) (*T, error) {
	if f.failReads.Load() {
		return nil, f.injected()
	}
	return f.Adapter.Get(ctx, id)
}

func (f *failingAdapter[T]) Ping(ctx context.Context) error {
	if f.failReads.Load() || f.failWrites.Load() {
		return f.injected()
	}
	return f.Adapter.Ping(ctx)
}

// sleepyAdapter ignores its context and sleeps on writes, standing in for a
// hung store.
type sleepyAdapter[T store.Entity] struct {
	store.Adapter[T]
	delay time.Duration
}

func (s *sleepyAdapter[T]) Upsert(ctx context.Context, entity *T) error {
	time.Sleep(s.delay)
	return s.Adapter.Upsert(ctx, entity)
}

// newTestRepo builds a dual-write account repository over in-memory stores
// with an injectable secondary.
func newTestRepo(cfg Config) (*Repository[models.Account], *memory.Store[models.Account], *failingAdapter[models.Account], *CompensationHandler) {
	primary := memory.New[models.Account]()
	secondary := wrapFailing[models.Account](memory.New[models.Account]())
	comp := NewCompensationHandler(memory.NewCompensationStore(), cfg.MaxCompensationAttempts, cfg.CompensationBackoff, testLog)
	repo := NewRepository(EntityTypeAccount, primary, store.Some[store.Adapter[models.Account]](secondary), comp, cfg, testLog)
	return repo, primary, secondary, comp
}

// newTestRegistry builds a full registry with memory-backed primaries and
// secondaries sharing one compensation handler.
func newTestRegistry(cfg Config) (*Registry, *CompensationHandler) {
	comp := NewCompensationHandler(memory.NewCompensationStore(), cfg.MaxCompensationAttempts, cfg.CompensationBackoff, testLog)
	registry := &Registry{
		Accounts: NewRepository[models.Account](
			EntityTypeAccount, memory.New[models.Account](),
			store.Some[store.Adapter[models.Account]](memory.New[models.Account]()),
			comp, cfg, testLog),
		Sessions: NewRepository[models.GameSession](
			EntityTypeGameSession, memory.New[models.GameSession](),
			store.Some[store.Adapter[models.GameSession]](memory.New[models.GameSession]()),
			comp, cfg, testLog),
		Scores: NewRepository[models.PlayerScenarioScore](
			EntityTypePlayerScenarioScore, memory.New[models.PlayerScenarioScore](),
			store.Some[store.Adapter[models.PlayerScenarioScore]](memory.New[models.PlayerScenarioScore]()),
			comp, cfg, testLog),
	}
	return registry, comp
}

// seedAccounts loads n accounts with zero-padded IDs into an adapter.
func seedAccounts(ctx context.Context, s store.Adapter[models.Account], n int) error {
	for i := 0; i < n; i++ {
		if err := s.Upsert(ctx, testAccount(fmt.Sprintf("acct-%03d", i))); err != nil {
			return err
		}
	}
	return nil
}
