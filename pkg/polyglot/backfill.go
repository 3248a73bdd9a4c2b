package polyglot

import (
	"context"
	"fmt"
	"time"
)

// BackfillOptions tune one backfill run.
type BackfillOptions struct {
	// BatchSize is how many entities each page reads from the primary.
	BatchSize int

	// Overwrite copies entities even when the secondary already has them.
	// The default skips existing entities so re-runs only fill gaps.
	Overwrite bool

	// Cursor resumes a previous run from where it stopped. Empty starts
	// from the beginning.
	Cursor string
}

const defaultBackfillBatchSize = 100

// BackfillError records one entity that failed to copy. The run keeps going
// past individual failures; the errors come back in the result.
type BackfillError struct {
	EntityID string `json:"entity_id"`
	Error    string `json:"error"`
}

// BackfillResult summarizes one entity type's backfill run. Cursor is set
// when the run stopped early and can seed the next run's options.
type BackfillResult struct {
	EntityType EntityType      `json:"entity_type"`
	Attempted  int             `json:"attempted"`
	Migrated   int             `json:"migrated"`
	Skipped    int             `json:"skipped"`
	Failed     int             `json:"failed"`
	Errors     []BackfillError `json:"errors,omitempty"`
	Cursor     string          `json:"cursor,omitempty"`
	Duration   time.Duration   `json:"duration"`
}

// BackfillSummary aggregates the per-type results of a full backfill.
type BackfillSummary struct {
	Results   []*BackfillResult `json:"results"`
	Attempted int               `json:"attempted"`
	Migrated  int               `json:"migrated"`
	Skipped   int               `json:"skipped"`
	Failed    int               `json:"failed"`
}

// Backfill copies this repository's entities from the primary store into the
// secondary, page by page in ascending ID order.
//
// Cancellation is honored between batches, never inside one: a batch that
// has started runs to completion so the reported cursor is exact. On
// cancellation the partial result carries the resume cursor and the
// context's error is returned alongside it.
func (r *Repository[T]) Backfill(ctx context.Context, opts BackfillOptions) (*BackfillResult, error) {
	sec, ok := r.secondary.Get()
	if !ok {
		return nil, ErrNoSecondary
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBackfillBatchSize
	}

	start := time.Now()
	result := &BackfillResult{EntityType: r.entityType}
	cursor := opts.Cursor

	for {
		if err := ctx.Err(); err != nil {
			result.Cursor = cursor
			result.Duration = time.Since(start)
			return result, err
		}

		// In-batch operations run detached from the caller's cancellation
		// so a batch never stops halfway through.
		bctx := context.WithoutCancel(ctx)

		items, next, err := r.primary.Page(bctx, cursor, opts.BatchSize)
		if err != nil {
			result.Cursor = cursor
			result.Duration = time.Since(start)
			return result, fmt.Errorf("failed to page primary store: %w", err)
		}

		for _, item := range items {
			result.Attempted++
			id := (*item).EntityID()

			if !opts.Overwrite {
				exists, err := sec.Exists(bctx, id)
				if err != nil {
					result.Failed++
					result.Errors = append(result.Errors, BackfillError{EntityID: id, Error: err.Error()})
					continue
				}
				if exists {
					result.Skipped++
					continue
				}
			}

			if err := sec.Upsert(bctx, item); err != nil {
				result.Failed++
				result.Errors = append(result.Errors, BackfillError{EntityID: id, Error: err.Error()})
				continue
			}
			result.Migrated++
		}

		if next == "" {
			break
		}
		cursor = next
	}

	result.Duration = time.Since(start)
	return result, nil
}

// BackfillService runs backfills across every repository in a registry.
type BackfillService struct {
	registry *Registry
}

// NewBackfillService creates a service over the registry.
func NewBackfillService(registry *Registry) *BackfillService {
	return &BackfillService{registry: registry}
}

// BackfillOne backfills a single entity type.
func (s *BackfillService) BackfillOne(ctx context.Context, t EntityType, opts BackfillOptions) (*BackfillResult, error) {
	repo, err := s.registry.Lookup(t)
	if err != nil {
		return nil, err
	}
	return repo.Backfill(ctx, opts)
}

// BackfillAll backfills every entity type sequentially in registry order.
// Entity types run one at a time to bound the load on both stores. A failed
// type does not stop the rest; its error is folded into the summary.
func (s *BackfillService) BackfillAll(ctx context.Context, opts BackfillOptions) (*BackfillSummary, error) {
	summary := &BackfillSummary{}
	for _, repo := range s.registry.All() {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if !repo.HasSecondary() {
			continue
		}

		res, err := repo.Backfill(ctx, opts)
		if res != nil {
			summary.Results = append(summary.Results, res)
			summary.Attempted += res.Attempted
			summary.Migrated += res.Migrated
			summary.Skipped += res.Skipped
			summary.Failed += res.Failed
		}
		if err != nil && ctx.Err() != nil {
			return summary, err
		}
		// Other errors keep the loop going; the per-type result carries
		// the detail.
	}
	return summary, nil
}
