package polyglot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mystira/polystore/pkg/models"
	"github.com/mystira/polystore/pkg/store"
	"github.com/mystira/polystore/pkg/store/memory"
)

func TestEngineStatus(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	registry, comp := newTestRegistry(cfg)
	engine := NewEngine(registry, comp, cfg, testLog)

	st, err := engine.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, ModeDualWrite, st.Mode)
	require.True(t, st.CompensationEnabled)
	require.True(t, st.ConsistencyValidation)
	require.Equal(t, cfg.SecondaryWriteTimeout.Milliseconds(), st.SecondaryWriteTimeoutMS)
	require.Len(t, st.Entities, 3)
	for _, es := range st.Entities {
		require.True(t, es.PrimaryHealthy)
		require.True(t, es.SecondaryConfigured)
		require.True(t, es.SecondaryHealthy)
		require.Zero(t, es.UncompensatedFailures)
	}
	require.NotNil(t, st.Compensation)
	require.Zero(t, st.Compensation.Pending)
}

func TestEngineStatusReflectsBacklog(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	registry, comp := newTestRegistry(cfg)
	engine := NewEngine(registry, comp, cfg, testLog)

	require.NoError(t, comp.Record(ctx, EntityTypeAccount, "acct-1", models.CompensationUpdate, errInjected))

	st, err := engine.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, st.Compensation.Pending)
}

func TestEngineHealthWithoutSecondary(t *testing.T) {
	cfg := testConfig()
	cfg.Mode = ModeSingleStore
	registry := &Registry{
		Accounts: NewRepository[models.Account](
			EntityTypeAccount, memory.New[models.Account](),
			store.None[store.Adapter[models.Account]](), nil, cfg, testLog),
		Sessions: NewRepository[models.GameSession](
			EntityTypeGameSession, memory.New[models.GameSession](),
			store.None[store.Adapter[models.GameSession]](), nil, cfg, testLog),
		Scores: NewRepository[models.PlayerScenarioScore](
			EntityTypePlayerScenarioScore, memory.New[models.PlayerScenarioScore](),
			store.None[store.Adapter[models.PlayerScenarioScore]](), nil, cfg, testLog),
	}
	engine := NewEngine(registry, nil, cfg, testLog)

	h := engine.Health(context.Background())
	require.True(t, h.PrimaryHealthy)
	require.False(t, h.SecondaryConfigured)
	require.False(t, h.SecondaryHealthy)
	require.Contains(t, h.Message, "secondary store not configured")

	_, _, err := engine.Replay(context.Background(), 10)
	require.ErrorIs(t, err, ErrCompensationDisabled)
}

func TestEngineHealthMessage(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()

	primary := memory.New[models.Account]()
	secondary := wrapFailing[models.Account](memory.New[models.Account]())
	registry := &Registry{
		Accounts: NewRepository[models.Account](
			EntityTypeAccount, primary,
			store.Some[store.Adapter[models.Account]](secondary), nil, cfg, testLog),
		Sessions: NewRepository[models.GameSession](
			EntityTypeGameSession, memory.New[models.GameSession](),
			store.Some[store.Adapter[models.GameSession]](memory.New[models.GameSession]()), nil, cfg, testLog),
		Scores: NewRepository[models.PlayerScenarioScore](
			EntityTypePlayerScenarioScore, memory.New[models.PlayerScenarioScore](),
			store.Some[store.Adapter[models.PlayerScenarioScore]](memory.New[models.PlayerScenarioScore]()), nil, cfg, testLog),
	}
	engine := NewEngine(registry, nil, cfg, testLog)

	h := engine.Health(ctx)
	require.Equal(t, "ok", h.Message)

	secondary.failWrites.Store(true)
	h = engine.Health(ctx)
	require.True(t, h.PrimaryHealthy)
	require.False(t, h.SecondaryHealthy)
	require.Contains(t, h.Message, "secondary store failed")
}

func TestEngineConsistencyDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.EnableConsistencyValidation = false
	registry, comp := newTestRegistry(cfg)
	engine := NewEngine(registry, comp, cfg, testLog)

	_, err := engine.ValidateConsistency(context.Background(), EntityTypeAccount, "acct-1")
	require.ErrorIs(t, err, ErrValidationDisabled)
}

func TestParseMode(t *testing.T) {
	for input, want := range map[string]Mode{
		"":                  ModeSingleStore,
		"single_store":      ModeSingleStore,
		"dual_write":        ModeDualWrite,
		"secondary_primary": ModeSecondaryPrimary,
	} {
		got, err := ParseMode(input)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := ParseMode("validation")
	require.Error(t, err)
}

func TestParseEntityType(t *testing.T) {
	for input, want := range map[string]EntityType{
		"account":                "account",
		"Accounts":               "account",
		"game-session":           "game_session",
		"sessions":               "game_session",
		"player_scenario_scores": "player_scenario_score",
		"score":                  "player_scenario_score",
	} {
		got, err := ParseEntityType(input)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := ParseEntityType("creature")
	require.ErrorIs(t, err, ErrUnknownEntityType)
}

func TestRegistryLookup(t *testing.T) {
	registry, _ := newTestRegistry(testConfig())

	repo, err := registry.Lookup(EntityTypeGameSession)
	require.NoError(t, err)
	require.Equal(t, EntityTypeGameSession, repo.Type())

	_, err = registry.Lookup(EntityType("creature"))
	require.ErrorIs(t, err, ErrUnknownEntityType)
}
