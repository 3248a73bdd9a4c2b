package polyglot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mystira/polystore/pkg/models"
)

func TestDiffFieldsIdenticalEntities(t *testing.T) {
	a := testAccount("acct-1")
	b := testAccount("acct-1")
	require.Empty(t, diffFields(a, b))
}

func TestDiffFieldsNamesTheDivergentField(t *testing.T) {
	a := testAccount("acct-1")
	b := testAccount("acct-1")
	b.DisplayName = "Someone Else"

	diffs := diffFields(a, b)
	require.Len(t, diffs, 1)
	require.Equal(t, "DisplayName", diffs[0].Field)
	require.Equal(t, "Player acct-1", diffs[0].Primary)
	require.Equal(t, "Someone Else", diffs[0].Secondary)
}

func TestDiffFieldsTimeComparesByInstant(t *testing.T) {
	a := testAccount("acct-1")
	b := testAccount("acct-1")
	// Same instant in a different location must not count as drift.
	b.CreatedAt = a.CreatedAt.In(time.FixedZone("JST", 9*3600))
	b.UpdatedAt = a.UpdatedAt.In(time.FixedZone("JST", 9*3600))

	require.Empty(t, diffFields(a, b))
}

func TestDiffFieldsMixedNumericTypesAgree(t *testing.T) {
	// The same number decodes as int64 from CBOR and float64 from JSONB.
	a := &models.PlayerScenarioScore{
		ID:        "score-1",
		Breakdown: models.JSONMap{"speed": int64(10), "style": uint64(5)},
	}
	b := &models.PlayerScenarioScore{
		ID:        "score-1",
		Breakdown: models.JSONMap{"speed": 10.0, "style": 5.0},
	}
	require.Empty(t, diffFields(a, b))

	b.Breakdown = models.JSONMap{"speed": 10.0, "style": 6.0}
	diffs := diffFields(a, b)
	require.Len(t, diffs, 1)
	require.Equal(t, "Breakdown", diffs[0].Field)
}

func TestDiffFieldsFloatEpsilon(t *testing.T) {
	a := &models.PlayerScenarioScore{ID: "score-1", Score: 99.5, CompletionRatio: 0.75}
	b := &models.PlayerScenarioScore{ID: "score-1", Score: 99.5 + 1e-12, CompletionRatio: 0.75}
	require.Empty(t, diffFields(a, b))

	b.Score = 99.6
	diffs := diffFields(a, b)
	require.Len(t, diffs, 1)
	require.Equal(t, "Score", diffs[0].Field)
}

func TestDiffFieldsSlicesAndMaps(t *testing.T) {
	a := &models.PlayerScenarioScore{
		ID:        "score-1",
		BadgeIDs:  []string{"badge-a", "badge-b"},
		Breakdown: models.JSONMap{"speed": 10.0, "style": 5.0},
	}
	b := &models.PlayerScenarioScore{
		ID:        "score-1",
		BadgeIDs:  []string{"badge-a", "badge-b"},
		Breakdown: models.JSONMap{"speed": 10.0, "style": 5.0},
	}
	require.Empty(t, diffFields(a, b))

	b.BadgeIDs = []string{"badge-a", "badge-c"}
	diffs := diffFields(a, b)
	require.Len(t, diffs, 1)
	require.Equal(t, "BadgeIDs", diffs[0].Field)

	b.BadgeIDs = a.BadgeIDs
	b.Breakdown = models.JSONMap{"speed": 10.0, "style": 6.0}
	diffs = diffFields(a, b)
	require.Len(t, diffs, 1)
	require.Equal(t, "Breakdown", diffs[0].Field)
}

func TestDiffFieldsNilAndEmptySliceAgree(t *testing.T) {
	a := &models.PlayerScenarioScore{ID: "score-1"}
	b := &models.PlayerScenarioScore{ID: "score-1", BadgeIDs: []string{}}
	require.Empty(t, diffFields(a, b))
}

func TestDiffFieldsPointerFields(t *testing.T) {
	done := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	a := &models.GameSession{ID: "sess-1", Status: models.SessionCompleted, CompletedAt: &done}
	b := &models.GameSession{ID: "sess-1", Status: models.SessionCompleted, CompletedAt: &done}
	require.Empty(t, diffFields(a, b))

	b.CompletedAt = nil
	diffs := diffFields(a, b)
	require.Len(t, diffs, 1)
	require.Equal(t, "CompletedAt", diffs[0].Field)
	require.Equal(t, "<nil>", diffs[0].Secondary)
}
