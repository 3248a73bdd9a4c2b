package polyglot

import (
	"context"
	"fmt"
	"strings"

	"github.com/mystira/polystore/pkg/models"
)

// EntityType identifies one of the entity families the engine manages. The
// set is closed; admin input is parsed through [ParseEntityType] so an
// unknown name fails fast instead of silently doing nothing.
type EntityType string

const (
	EntityTypeAccount             EntityType = "account"
	EntityTypeGameSession         EntityType = "game_session"
	EntityTypePlayerScenarioScore EntityType = "player_scenario_score"
)

// ErrUnknownEntityType is returned when admin input names an entity type
// the registry does not manage.
var ErrUnknownEntityType = fmt.Errorf("unknown entity type")

// ParseEntityType normalizes user-facing spellings of an entity type.
// Hyphens are accepted in place of underscores, as are a few short aliases.
func ParseEntityType(s string) (EntityType, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	switch normalized {
	case "account", "accounts":
		return EntityTypeAccount, nil
	case "game_session", "game_sessions", "session", "sessions":
		return EntityTypeGameSession, nil
	case "player_scenario_score", "player_scenario_scores", "score", "scores":
		return EntityTypePlayerScenarioScore, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEntityType, s)
	}
}

func (t EntityType) String() string { return string(t) }

// EntityRepository is the type-erased view of a [Repository] that the
// registry, backfill service, and admin surface work through.
type EntityRepository interface {
	Type() EntityType
	Backfill(ctx context.Context, opts BackfillOptions) (*BackfillResult, error)
	ValidateConsistency(ctx context.Context, id string) (*ConsistencyResult, error)
	IsPrimaryHealthy(ctx context.Context) bool
	IsSecondaryHealthy(ctx context.Context) bool
	HasSecondary() bool
	UncompensatedFailures() uint64
}

// Registry holds one repository per entity type. Fields are explicit so the
// wiring is visible at the construction site and the compiler catches a
// missing repository.
type Registry struct {
	Accounts *Repository[models.Account]
	Sessions *Repository[models.GameSession]
	Scores   *Repository[models.PlayerScenarioScore]
}

// All returns the repositories in a fixed order. Backfill and status
// reporting iterate this so output ordering is stable.
func (r *Registry) All() []EntityRepository {
	return []EntityRepository{r.Accounts, r.Sessions, r.Scores}
}

// Lookup finds the repository for an entity type.
func (r *Registry) Lookup(t EntityType) (EntityRepository, error) {
	for _, repo := range r.All() {
		if repo.Type() == t {
			return repo, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEntityType, t)
}
