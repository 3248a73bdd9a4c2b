package polyglot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mystira/polystore/pkg/models"
	"github.com/mystira/polystore/pkg/store/memory"
)

func TestRecordCollapsesRepeatFailures(t *testing.T) {
	ctx := context.Background()
	comp := NewCompensationHandler(memory.NewCompensationStore(), 3, 0, testLog)
	comp.RegisterReplayer(EntityTypeAccount, func(ctx context.Context, op models.CompensationOperation, id string) error {
		return nil
	})

	require.NoError(t, comp.Record(ctx, EntityTypeAccount, "acct-1", models.CompensationUpdate, errInjected))
	require.NoError(t, comp.Record(ctx, EntityTypeAccount, "acct-1", models.CompensationDelete, errInjected))

	backlog, err := comp.Backlog(ctx)
	require.NoError(t, err)
	require.Len(t, backlog, 1)
	// The latest intent wins.
	require.Equal(t, models.CompensationDelete, backlog[0].Operation)
}

func TestReplayRestoresConsistency(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.CompensationBackoff = 0
	repo, _, secondary, comp := newTestRepo(cfg)

	secondary.failWrites.Store(true)
	require.NoError(t, repo.Upsert(ctx, testAccount("acct-1")))
	require.NoError(t, repo.Upsert(ctx, testAccount("acct-2")))

	// Stores diverge, replay fails while the secondary is still down.
	stillFailing := func() int {
		_, n, err := comp.Replay(ctx, 100)
		require.NoError(t, err)
		return n
	}
	require.Equal(t, 2, stillFailing())

	secondary.failWrites.Store(false)
	succeeded, failing, err := comp.Replay(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, 2, succeeded)
	require.Zero(t, failing)

	for _, id := range []string{"acct-1", "acct-2"} {
		res, err := repo.ValidateConsistency(ctx, id)
		require.NoError(t, err)
		require.True(t, res.IsConsistent)
	}

	backlog, err := comp.Backlog(ctx)
	require.NoError(t, err)
	require.Empty(t, backlog)
}

func TestReplayHonorsDeleteIntent(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.CompensationBackoff = 0
	repo, _, secondary, comp := newTestRepo(cfg)

	require.NoError(t, repo.Upsert(ctx, testAccount("acct-1")))

	secondary.failWrites.Store(true)
	require.NoError(t, repo.Delete(ctx, "acct-1"))

	secondary.failWrites.Store(false)
	succeeded, _, err := comp.Replay(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, 1, succeeded)

	got, err := secondary.Get(ctx, "acct-1")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestReplayStopsAtAttemptCeiling(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.CompensationBackoff = 0
	cfg.MaxCompensationAttempts = 2
	repo, _, secondary, comp := newTestRepo(cfg)

	secondary.failWrites.Store(true)
	require.NoError(t, repo.Upsert(ctx, testAccount("acct-1")))

	// Each failed pass bumps the attempt count until the ceiling.
	for i := 0; i < cfg.MaxCompensationAttempts; i++ {
		_, failing, err := comp.Replay(ctx, 100)
		require.NoError(t, err)
		require.Equal(t, 1, failing)
	}

	// At the ceiling the record is no longer due, even though the
	// secondary has recovered.
	secondary.failWrites.Store(false)
	succeeded, failing, err := comp.Replay(ctx, 100)
	require.NoError(t, err)
	require.Zero(t, succeeded)
	require.Zero(t, failing)

	// The record is retained as a permanent-inconsistency signal.
	stats, err := comp.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Exhausted)
	require.Zero(t, stats.Pending)
}

func TestReplayCapsPermanentFailuresImmediately(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.CompensationBackoff = 0
	cfg.MaxCompensationAttempts = 5
	repo, _, secondary, comp := newTestRepo(cfg)

	secondary.failWrites.Store(true)
	secondary.failPermanent.Store(true)
	require.NoError(t, repo.Upsert(ctx, testAccount("acct-1")))

	// One pass is enough: a permanent failure replays identically every
	// time, so the record jumps straight to the attempt ceiling.
	_, failing, err := comp.Replay(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, 1, failing)

	secondary.failWrites.Store(false)
	succeeded, failing, err := comp.Replay(ctx, 100)
	require.NoError(t, err)
	require.Zero(t, succeeded)
	require.Zero(t, failing)

	stats, err := comp.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Exhausted)
	require.Zero(t, stats.Pending)
}

func TestReplayOfSupersededWriteDeletesFromSecondary(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.CompensationBackoff = 0
	repo, primary, secondary, comp := newTestRepo(cfg)

	secondary.failWrites.Store(true)
	require.NoError(t, repo.Upsert(ctx, testAccount("acct-1")))

	// The entity disappears from the primary before replay runs.
	require.NoError(t, primary.Delete(ctx, "acct-1"))

	secondary.failWrites.Store(false)
	succeeded, _, err := comp.Replay(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, 1, succeeded)

	got, err := secondary.Get(ctx, "acct-1")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestStartReplayLoopDrainsBacklog(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.CompensationBackoff = 0
	repo, _, secondary, comp := newTestRepo(cfg)

	secondary.failWrites.Store(true)
	require.NoError(t, repo.Upsert(ctx, testAccount("acct-1")))
	secondary.failWrites.Store(false)

	stop := comp.StartReplayLoop(ctx, 5*time.Millisecond, 100)
	defer stop()

	require.Eventually(t, func() bool {
		backlog, err := comp.Backlog(ctx)
		return err == nil && len(backlog) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
