package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/quillai/quill/internal/models"
	"github.com/quillai/quill/internal/quillerrors"
)

// maxSwapAttempts bounds the optimistic retry loop under contention on one job.
const maxSwapAttempts = 64

var errSwapContention = errors.New("progress: too much contention on job")

// Reporter receives progress from sub-tasks. Sub-tasks only report; they never issue terminal calls.
type Reporter interface {
	Report(ctx context.Context, jobID string, channel models.ProgressChannel, percent int)
}

// Tracker records job progress and terminal state on top of a Store.
type Tracker struct {
	store  Store
	now    func() time.Time
	logger *slog.Logger
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		t.now = now
	}
}

// WithLogger sets the logger; default is slog.Default().
func WithLogger(logger *slog.Logger) TrackerOption {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// NewTracker creates a Tracker backed by store.
func NewTracker(store Store, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		store:  store,
		now:    time.Now,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Create inserts a new PROCESSING job with both counters at 0.
// A second Create for the same id is rejected with quillerrors.ErrConflict.
func (t *Tracker) Create(ctx context.Context, jobID, url string) (models.Job, error) {
	now := t.now()
	job := models.Job{
		ID:        jobID,
		URL:       url,
		Status:    models.JobStatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := t.store.Insert(ctx, job); err != nil {
		return models.Job{}, fmt.Errorf("create job: %w", err)
	}

	t.logger.InfoContext(ctx, "job created", "job_id", jobID, "url", url)

	return job, nil
}

// Get returns the current snapshot of a job.
func (t *Tracker) Get(ctx context.Context, jobID string) (models.Job, error) {
	job, err := t.store.Get(ctx, jobID)
	if err != nil {
		return models.Job{}, fmt.Errorf("get job: %w", err)
	}

	return job, nil
}

// UpdateEmbeddingsProgress sets the embeddings counter. Unknown or terminal jobs are a no-op.
func (t *Tracker) UpdateEmbeddingsProgress(ctx context.Context, jobID string, percent int) error {
	return t.updateProgress(ctx, jobID, models.ChannelEmbeddings, percent)
}

// UpdateAnalysisProgress sets the insight-extraction counter. Unknown or terminal jobs are a no-op.
func (t *Tracker) UpdateAnalysisProgress(ctx context.Context, jobID string, percent int) error {
	return t.updateProgress(ctx, jobID, models.ChannelAnalysis, percent)
}

// Report implements Reporter. Failures are logged, never propagated to the sub-task.
func (t *Tracker) Report(ctx context.Context, jobID string, channel models.ProgressChannel, percent int) {
	if err := t.updateProgress(ctx, jobID, channel, percent); err != nil {
		t.logger.WarnContext(ctx, "progress report failed",
			"job_id", jobID, "channel", string(channel), "percent", percent, "error", err)
	}
}

// MarkComplete moves the job to COMPLETED with both counters at 100.
// Repeating the call with the same analysis id is a no-op; any other call on a
// terminal job returns ErrTerminalState.
func (t *Tracker) MarkComplete(ctx context.Context, jobID, analysisID string) error {
	err := t.mutate(ctx, jobID, func(job *models.Job) (bool, error) {
		if job.Status.IsTerminal() {
			if job.Status == models.JobStatusCompleted && job.AnalysisID != nil && *job.AnalysisID == analysisID {
				return false, nil
			}

			return false, ErrTerminalState
		}

		job.Status = models.JobStatusCompleted
		job.AnalysisID = &analysisID
		job.Error = nil
		job.EmbeddingsProgress = 100
		job.AnalysisProgress = 100

		return true, nil
	})
	if err != nil {
		return fmt.Errorf("mark complete: %w", err)
	}

	t.logger.InfoContext(ctx, "job completed", "job_id", jobID, "analysis_id", analysisID)

	return nil
}

// MarkFailed moves the job to FAILED with the given message.
// Repeating the call with the same message is a no-op; any other call on a
// terminal job returns ErrTerminalState.
func (t *Tracker) MarkFailed(ctx context.Context, jobID, message string) error {
	err := t.mutate(ctx, jobID, func(job *models.Job) (bool, error) {
		if job.Status.IsTerminal() {
			if job.Status == models.JobStatusFailed && job.Error != nil && *job.Error == message {
				return false, nil
			}

			return false, ErrTerminalState
		}

		job.Status = models.JobStatusFailed
		job.Error = &message
		job.AnalysisID = nil

		return true, nil
	})
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}

	t.logger.ErrorContext(ctx, "job failed", "job_id", jobID, "error", message)

	return nil
}

func (t *Tracker) updateProgress(ctx context.Context, jobID string, channel models.ProgressChannel, percent int) error {
	percent = clampPercent(percent)

	err := t.mutate(ctx, jobID, func(job *models.Job) (bool, error) {
		if job.Status.IsTerminal() {
			return false, nil
		}

		switch channel {
		case models.ChannelEmbeddings:
			if job.EmbeddingsProgress == percent {
				return false, nil
			}

			job.EmbeddingsProgress = percent
		case models.ChannelAnalysis:
			if job.AnalysisProgress == percent {
				return false, nil
			}

			job.AnalysisProgress = percent
		default:
			return false, fmt.Errorf("unknown progress channel %q", channel)
		}

		return true, nil
	})
	if errors.Is(err, quillerrors.ErrNotFound) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("update %s progress: %w", channel, err)
	}

	t.logger.DebugContext(ctx, "job progress", "job_id", jobID, "channel", string(channel), "percent", percent)

	return nil
}

// mutate applies fn to the latest snapshot and stores it with compare-and-swap,
// retrying on version conflicts. fn returns false to leave the job unchanged.
func (t *Tracker) mutate(ctx context.Context, jobID string, fn func(*models.Job) (bool, error)) error {
	for range maxSwapAttempts {
		job, err := t.store.Get(ctx, jobID)
		if err != nil {
			return err //nolint:wrapcheck // callers wrap with the operation name
		}

		expected := job.Version

		changed, err := fn(&job)
		if err != nil {
			return err
		}

		if !changed {
			return nil
		}

		job.UpdatedAt = t.now()

		swapped, err := t.store.CompareAndSwap(ctx, jobID, expected, job)
		if err != nil {
			return err //nolint:wrapcheck // callers wrap with the operation name
		}

		if swapped {
			return nil
		}

		if err := ctx.Err(); err != nil {
			return fmt.Errorf("mutate job: %w", err)
		}
	}

	return errSwapContention
}

func clampPercent(p int) int {
	return max(0, min(100, p))
}
