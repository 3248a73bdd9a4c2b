package polyglot

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ErrValidationDisabled is returned by consistency checks when validation
// is switched off in the configuration.
var ErrValidationDisabled = fmt.Errorf("consistency validation is disabled")

// ErrCompensationDisabled is returned by replay operations when no
// compensation handler is wired.
var ErrCompensationDisabled = fmt.Errorf("compensation is not enabled")

// Engine ties the registry, compensation handler, and backfill service into
// the operations the admin surface exposes.
type Engine struct {
	registry *Registry
	comp     *CompensationHandler
	backfill *BackfillService
	cfg      Config
	log      zerolog.Logger
	started  time.Time
}

// NewEngine assembles the engine over an already-wired registry.
func NewEngine(registry *Registry, comp *CompensationHandler, cfg Config, log zerolog.Logger) *Engine {
	return &Engine{
		registry: registry,
		comp:     comp,
		backfill: NewBackfillService(registry),
		cfg:      cfg.withDefaults(),
		log:      log.With().Str("component", "engine").Logger(),
		started:  time.Now(),
	}
}

// Registry exposes the entity repositories.
func (e *Engine) Registry() *Registry { return e.registry }

// Compensation exposes the compensation handler.
func (e *Engine) Compensation() *CompensationHandler { return e.comp }

// Mode returns the configured routing mode.
func (e *Engine) Mode() Mode { return e.cfg.Mode }

// TriggerBackfillAll backfills every entity type.
func (e *Engine) TriggerBackfillAll(ctx context.Context, opts BackfillOptions) (*BackfillSummary, error) {
	e.log.Info().Int("batch_size", opts.BatchSize).Bool("overwrite", opts.Overwrite).Msg("starting full backfill")
	return e.backfill.BackfillAll(ctx, opts)
}

// TriggerBackfill backfills one entity type.
func (e *Engine) TriggerBackfill(ctx context.Context, t EntityType, opts BackfillOptions) (*BackfillResult, error) {
	e.log.Info().Str("entity_type", t.String()).Msg("starting backfill")
	return e.backfill.BackfillOne(ctx, t, opts)
}

// Replay runs one compensation replay pass.
func (e *Engine) Replay(ctx context.Context, batchSize int) (succeeded, stillFailing int, err error) {
	if e.comp == nil {
		return 0, 0, ErrCompensationDisabled
	}
	return e.comp.Replay(ctx, batchSize)
}

// ValidateConsistency checks one entity across both stores.
func (e *Engine) ValidateConsistency(ctx context.Context, t EntityType, id string) (*ConsistencyResult, error) {
	if !e.cfg.EnableConsistencyValidation {
		return nil, ErrValidationDisabled
	}
	repo, err := e.registry.Lookup(t)
	if err != nil {
		return nil, err
	}
	return repo.ValidateConsistency(ctx, id)
}

// EntityStatus is the per-type slice of a status report.
type EntityStatus struct {
	EntityType            EntityType `json:"entity_type"`
	PrimaryHealthy        bool       `json:"primary_healthy"`
	SecondaryConfigured   bool       `json:"secondary_configured"`
	SecondaryHealthy      bool       `json:"secondary_healthy"`
	UncompensatedFailures uint64     `json:"uncompensated_failures"`
}

// Status is the full engine status report.
type Status struct {
	Mode                    Mode               `json:"mode"`
	CompensationEnabled     bool               `json:"compensation_enabled"`
	ConsistencyValidation   bool               `json:"consistency_validation_enabled"`
	SecondaryWriteTimeoutMS int64              `json:"secondary_write_timeout_ms"`
	UptimeSeconds           int64              `json:"uptime_seconds"`
	Entities                []EntityStatus     `json:"entities"`
	Compensation            *CompensationStats `json:"compensation,omitempty"`
}

// Status reports the configuration, per-type store health, and compensation
// backlog.
func (e *Engine) Status(ctx context.Context) (*Status, error) {
	st := &Status{
		Mode:                    e.cfg.Mode,
		CompensationEnabled:     e.comp != nil,
		ConsistencyValidation:   e.cfg.EnableConsistencyValidation,
		SecondaryWriteTimeoutMS: e.cfg.SecondaryWriteTimeout.Milliseconds(),
		UptimeSeconds:           int64(time.Since(e.started).Seconds()),
	}
	for _, repo := range e.registry.All() {
		es := EntityStatus{
			EntityType:            repo.Type(),
			PrimaryHealthy:        repo.IsPrimaryHealthy(ctx),
			SecondaryConfigured:   repo.HasSecondary(),
			UncompensatedFailures: repo.UncompensatedFailures(),
		}
		if es.SecondaryConfigured {
			es.SecondaryHealthy = repo.IsSecondaryHealthy(ctx)
		}
		st.Entities = append(st.Entities, es)
	}
	if e.comp != nil {
		stats, err := e.comp.Stats(ctx)
		if err != nil {
			return nil, err
		}
		st.Compensation = stats
	}
	return st, nil
}

// Health is the cheap liveness summary. The report never errors; stores
// that cannot be probed simply show unhealthy, and Message names what
// failed for the operator.
type Health struct {
	PrimaryHealthy      bool   `json:"primary_healthy"`
	SecondaryConfigured bool   `json:"secondary_configured"`
	SecondaryHealthy    bool   `json:"secondary_healthy"`
	Message             string `json:"message"`
}

// Health probes the stores once. Primary health requires every repository's
// primary to answer; secondary health requires every configured secondary
// to answer.
func (e *Engine) Health(ctx context.Context) *Health {
	h := &Health{PrimaryHealthy: true, SecondaryHealthy: true}
	for _, repo := range e.registry.All() {
		if !repo.IsPrimaryHealthy(ctx) {
			h.PrimaryHealthy = false
		}
		if repo.HasSecondary() {
			h.SecondaryConfigured = true
			if !repo.IsSecondaryHealthy(ctx) {
				h.SecondaryHealthy = false
			}
		}
	}
	if !h.SecondaryConfigured {
		h.SecondaryHealthy = false
	}

	switch {
	case !h.PrimaryHealthy && h.SecondaryConfigured && !h.SecondaryHealthy:
		h.Message = "primary and secondary stores failed their health probes"
	case !h.PrimaryHealthy:
		h.Message = "primary store failed its health probe"
	case h.SecondaryConfigured && !h.SecondaryHealthy:
		h.Message = "secondary store failed its health probe"
	case !h.SecondaryConfigured:
		h.Message = "ok; secondary store not configured"
	default:
		h.Message = "ok"
	}
	return h
}
