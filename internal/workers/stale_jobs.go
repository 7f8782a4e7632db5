// Package workers provides River job workers for periodic reconciliation.
package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"

	"github.com/quillai/quill/internal/jobs"
	"github.com/quillai/quill/internal/observability"
	"github.com/quillai/quill/internal/quillerrors"
)

// InterruptedJobMessage is the failure recorded for jobs that never reached a terminal state.
const InterruptedJobMessage = "job interrupted before completion"

const sweepTimeout = time.Minute

// staleJobRepo is the minimal repo interface needed by the worker.
type staleJobRepo interface {
	FailStale(ctx context.Context, cutoff time.Time, message string) ([]string, error)
}

// jobFailer mirrors the terminal transition onto the live tracker.
type jobFailer interface {
	MarkFailed(ctx context.Context, jobID, message string) error
}

// StaleJobSweeper fails analysis_jobs rows left in PROCESSING by a process that died mid-job.
type StaleJobSweeper struct {
	river.WorkerDefaults[jobs.StaleJobSweepArgs]

	repo    staleJobRepo
	tracker jobFailer
	after   time.Duration
	metrics observability.SweepMetrics
	now     func() time.Time
}

// NewStaleJobSweeper creates the worker. tracker and metrics may be nil.
func NewStaleJobSweeper(
	repo staleJobRepo, tracker jobFailer, after time.Duration, metrics observability.SweepMetrics,
) *StaleJobSweeper {
	return &StaleJobSweeper{repo: repo, tracker: tracker, after: after, metrics: metrics, now: time.Now}
}

// Timeout bounds a single sweep.
func (w *StaleJobSweeper) Timeout(*river.Job[jobs.StaleJobSweepArgs]) time.Duration {
	return sweepTimeout
}

// Work fails every job older than the configured age that is still PROCESSING.
func (w *StaleJobSweeper) Work(ctx context.Context, _ *river.Job[jobs.StaleJobSweepArgs]) error {
	cutoff := w.now().Add(-w.after)

	ids, err := w.repo.FailStale(ctx, cutoff, InterruptedJobMessage)
	if err != nil {
		return fmt.Errorf("sweep stale jobs: %w", err)
	}

	for _, id := range ids {
		if w.tracker == nil {
			break
		}

		// Jobs from a previous process are usually not tracked here; a Redis store may still hold them.
		err := w.tracker.MarkFailed(ctx, id, InterruptedJobMessage)
		if err != nil && !errors.Is(err, quillerrors.ErrNotFound) {
			slog.WarnContext(ctx, "stale job sweep: tracker update failed", "job_id", id, "error", err)
		}
	}

	if w.metrics != nil {
		w.metrics.RecordStaleJobsSwept(ctx, len(ids))
	}

	if len(ids) > 0 {
		slog.InfoContext(ctx, "stale jobs marked failed", "count", len(ids), "cutoff", cutoff)
	}

	return nil
}
