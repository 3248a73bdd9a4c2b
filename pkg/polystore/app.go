// Package polystore is the application layer over the polyglot engine: it
// wires concrete store adapters into repositories from configuration,
// exposes the HTTP API, and implements the CLI commands.
package polystore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/mystira/polystore/pkg/models"
	"github.com/mystira/polystore/pkg/polyglot"
	"github.com/mystira/polystore/pkg/store"
	"github.com/mystira/polystore/pkg/store/memory"
	"github.com/mystira/polystore/pkg/store/postgres"
	"github.com/mystira/polystore/pkg/store/surreal"
)

// adapterSet bundles one driver's adapters for every entity type, so the
// primary and secondary slots can be filled from any driver.
type adapterSet struct {
	accounts store.Adapter[models.Account]
	sessions store.Adapter[models.GameSession]
	scores   store.Adapter[models.PlayerScenarioScore]

	// gormDB is set when the driver is postgres: the compensation store
	// prefers a durable backing when one is available.
	gormDB *gorm.DB

	close func() error
}

// App holds the wired application state.
type App struct {
	engine   *polyglot.Engine
	registry *polyglot.Registry
	comp     *polyglot.CompensationHandler
	config   *Config
	log      zerolog.Logger

	// Runtime read-only state, toggled through the admin API.
	readOnly atomic.Bool

	closers []func() error
}

// New wires stores, repositories, and the engine from the configuration.
// Connections are established here so a misconfigured store fails at
// startup, not on the first request.
func New(ctx context.Context, config *Config) (*App, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	log, err := newLogger(config.LogLevel)
	if err != nil {
		return nil, err
	}

	mode, err := polyglot.ParseMode(config.Mode)
	if err != nil {
		return nil, err
	}
	engineCfg := polyglot.Config{
		Mode:                        mode,
		EnableCompensation:          config.EnableCompensation,
		SecondaryWriteTimeout:       config.SecondaryWriteTimeout,
		EnableConsistencyValidation: config.EnableConsistencyValidation,
		ConsistencyTimeout:          config.ConsistencyTimeout,
		MaxCompensationAttempts:     config.MaxCompensationAttempts,
		CompensationBackoff:         config.CompensationBackoff,
	}

	app := &App{config: config, log: log}
	app.readOnly.Store(config.ReadOnly)

	primary, err := app.buildAdapters(ctx, config.PrimaryDriver)
	if err != nil {
		return nil, fmt.Errorf("failed to build primary store: %w", err)
	}
	app.addCloser(primary.close)

	var secondary *adapterSet
	if config.SecondaryDriver != DriverNone {
		secondary, err = app.buildAdapters(ctx, config.SecondaryDriver)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to build secondary store: %w", err)
		}
		app.addCloser(secondary.close)
	}

	if config.EnableCompensation {
		cs := app.pickCompensationStore(primary, secondary)
		app.comp = polyglot.NewCompensationHandler(
			cs, engineCfg.MaxCompensationAttempts, engineCfg.CompensationBackoff, log)
	}

	app.registry = &polyglot.Registry{
		Accounts: polyglot.NewRepository(
			polyglot.EntityTypeAccount, primary.accounts,
			secondaryOption(secondary, func(s *adapterSet) store.Adapter[models.Account] { return s.accounts }),
			app.comp, engineCfg, log),
		Sessions: polyglot.NewRepository(
			polyglot.EntityTypeGameSession, primary.sessions,
			secondaryOption(secondary, func(s *adapterSet) store.Adapter[models.GameSession] { return s.sessions }),
			app.comp, engineCfg, log),
		Scores: polyglot.NewRepository(
			polyglot.EntityTypePlayerScenarioScore, primary.scores,
			secondaryOption(secondary, func(s *adapterSet) store.Adapter[models.PlayerScenarioScore] { return s.scores }),
			app.comp, engineCfg, log),
	}
	app.engine = polyglot.NewEngine(app.registry, app.comp, engineCfg, log)

	log.Info().
		Str("mode", mode.String()).
		Str("primary", config.PrimaryDriver).
		Str("secondary", config.SecondaryDriver).
		Bool("compensation", config.EnableCompensation).
		Msg("polystore wired")
	return app, nil
}

func (a *App) buildAdapters(ctx context.Context, driver string) (*adapterSet, error) {
	switch driver {
	case DriverMemory:
		return &adapterSet{
			accounts: memory.New[models.Account](),
			sessions: memory.New[models.GameSession](),
			scores:   memory.New[models.PlayerScenarioScore](),
		}, nil

	case DriverSurrealDB:
		db, err := surreal.Connect(ctx, surreal.Config{
			URL:       a.config.SurrealDBURL,
			Namespace: a.config.SurrealDBNS,
			Database:  a.config.SurrealDBDB,
			Username:  a.config.SurrealDBUser,
			Password:  a.config.SurrealDBPass,
		})
		if err != nil {
			return nil, err
		}
		a.log.Info().Str("url", a.config.SurrealDBURL).Msg("connected to SurrealDB")
		return &adapterSet{
			accounts: surreal.New[models.Account](db, models.TableAccounts),
			sessions: surreal.New[models.GameSession](db, models.TableGameSessions),
			scores:   surreal.New[models.PlayerScenarioScore](db, models.TablePlayerScenarioScores),
			close:    func() error { return db.Close(context.Background()) },
		}, nil

	case DriverPostgres:
		db, err := postgres.Open(a.config.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := db.AutoMigrate(
			&models.Account{},
			&models.GameSession{},
			&models.PlayerScenarioScore{},
			&models.CompensationRecord{},
		); err != nil {
			return nil, fmt.Errorf("failed to migrate schema: %w", err)
		}
		a.log.Info().Msg("connected to PostgreSQL")
		return &adapterSet{
			accounts: postgres.New[models.Account](db),
			sessions: postgres.New[models.GameSession](db),
			scores:   postgres.New[models.PlayerScenarioScore](db),
			gormDB:   db,
			close:    func() error { return postgres.Close(db) },
		}, nil

	default:
		return nil, fmt.Errorf("unknown store driver: %q", driver)
	}
}

// pickCompensationStore prefers a durable backing: a postgres store from
// either slot survives restarts, memory does not.
func (a *App) pickCompensationStore(primary, secondary *adapterSet) store.CompensationStore {
	if secondary != nil && secondary.gormDB != nil {
		return postgres.NewCompensationStore(secondary.gormDB)
	}
	if primary.gormDB != nil {
		return postgres.NewCompensationStore(primary.gormDB)
	}
	a.log.Warn().Msg("no relational store available, compensation records are in-memory only")
	return memory.NewCompensationStore()
}

func secondaryOption[T store.Entity](set *adapterSet, pick func(*adapterSet) store.Adapter[T]) store.Option[store.Adapter[T]] {
	if set == nil {
		return store.None[store.Adapter[T]]()
	}
	return store.Some(pick(set))
}

func (a *App) addCloser(fn func() error) {
	if fn != nil {
		a.closers = append(a.closers, fn)
	}
}

// Close releases store connections in reverse wiring order.
func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Engine returns the wired engine, useful for tests.
func (a *App) Engine() *polyglot.Engine { return a.engine }

// Registry returns the entity repositories, useful for tests.
func (a *App) Registry() *polyglot.Registry { return a.registry }

// IsReadOnly reports whether write operations are currently rejected.
func (a *App) IsReadOnly() bool { return a.readOnly.Load() }

// SetReadOnly toggles the runtime read-only state.
func (a *App) SetReadOnly(v bool) { a.readOnly.Store(v) }

// Backfill implements the backfill CLI command.
func (a *App) Backfill(ctx context.Context, cmd *BackfillCommand) error {
	opts := polyglot.BackfillOptions{
		BatchSize: cmd.BatchSize,
		Overwrite: cmd.Overwrite,
		Cursor:    cmd.Cursor,
	}

	if cmd.EntityType != "" {
		t, err := polyglot.ParseEntityType(cmd.EntityType)
		if err != nil {
			return err
		}
		res, err := a.engine.TriggerBackfill(ctx, t, opts)
		if res != nil {
			a.logBackfillResult(res)
		}
		return err
	}

	summary, err := a.engine.TriggerBackfillAll(ctx, opts)
	if summary != nil {
		for _, res := range summary.Results {
			a.logBackfillResult(res)
		}
		a.log.Info().
			Int("attempted", summary.Attempted).
			Int("migrated", summary.Migrated).
			Int("skipped", summary.Skipped).
			Int("failed", summary.Failed).
			Msg("backfill complete")
	}
	return err
}

func (a *App) logBackfillResult(res *polyglot.BackfillResult) {
	ev := a.log.Info().
		Str("entity_type", res.EntityType.String()).
		Int("attempted", res.Attempted).
		Int("migrated", res.Migrated).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Dur("duration", res.Duration)
	if res.Cursor != "" {
		ev = ev.Str("resume_cursor", res.Cursor)
	}
	ev.Msg("backfill result")
}

// PrintStatus implements the status CLI command: the same view as the
// /api/status endpoint, written to stdout as JSON.
func (a *App) PrintStatus(ctx context.Context) error {
	st, err := a.engine.Status(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(st)
}

// Replay implements the replay CLI command.
func (a *App) Replay(ctx context.Context, cmd *ReplayCommand) error {
	succeeded, stillFailing, err := a.engine.Replay(ctx, cmd.BatchSize)
	if err != nil {
		return err
	}
	a.log.Info().
		Int("succeeded", succeeded).
		Int("still_failing", stillFailing).
		Msg("replay pass complete")
	return nil
}

func newLogger(level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger(), nil
}
