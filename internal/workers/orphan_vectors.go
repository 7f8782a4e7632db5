package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"

	"github.com/quillai/quill/internal/jobs"
	"github.com/quillai/quill/internal/observability"
)

type orphanVectorRepo interface {
	DeleteOrphans(ctx context.Context, cutoff time.Time) (int64, error)
}

// OrphanVectorSweeper deletes vector namespaces that no saved analysis references,
// e.g. when indexing finished but insight extraction failed.
type OrphanVectorSweeper struct {
	river.WorkerDefaults[jobs.OrphanVectorSweepArgs]

	repo    orphanVectorRepo
	after   time.Duration
	metrics observability.SweepMetrics
	now     func() time.Time
}

// NewOrphanVectorSweeper creates the worker. metrics may be nil.
func NewOrphanVectorSweeper(repo orphanVectorRepo, after time.Duration, metrics observability.SweepMetrics) *OrphanVectorSweeper {
	return &OrphanVectorSweeper{repo: repo, after: after, metrics: metrics, now: time.Now}
}

// Timeout bounds a single sweep.
func (w *OrphanVectorSweeper) Timeout(*river.Job[jobs.OrphanVectorSweepArgs]) time.Duration {
	return sweepTimeout
}

// Work deletes unreferenced vectors written before now minus the configured age.
// The age keeps vectors of jobs still running out of reach.
func (w *OrphanVectorSweeper) Work(ctx context.Context, _ *river.Job[jobs.OrphanVectorSweepArgs]) error {
	cutoff := w.now().Add(-w.after)

	deleted, err := w.repo.DeleteOrphans(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("sweep orphan vectors: %w", err)
	}

	if w.metrics != nil {
		w.metrics.RecordOrphanVectorsDeleted(ctx, deleted)
	}

	if deleted > 0 {
		slog.InfoContext(ctx, "orphan vectors deleted", "count", deleted, "cutoff", cutoff)
	}

	return nil
}
