package progress

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillai/quill/internal/models"
	"github.com/quillai/quill/internal/quillerrors"
)

func newTestTracker() *Tracker {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	return NewTracker(NewMemoryStore(), WithClock(func() time.Time { return now }))
}

func TestTracker_Create(t *testing.T) {
	ctx := context.Background()
	tracker := newTestTracker()

	_, err := tracker.Create(ctx, "job-1", "https://youtu.be/abc")
	require.NoError(t, err)

	job, err := tracker.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusProcessing, job.Status)
	assert.Equal(t, 0, job.EmbeddingsProgress)
	assert.Equal(t, 0, job.AnalysisProgress)
	assert.Nil(t, job.Error)
	assert.Nil(t, job.AnalysisID)
	assert.Equal(t, "https://youtu.be/abc", job.URL)
}

func TestTracker_CreateRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	tracker := newTestTracker()

	_, err := tracker.Create(ctx, "job-1", "https://youtu.be/abc")
	require.NoError(t, err)
	require.NoError(t, tracker.UpdateEmbeddingsProgress(ctx, "job-1", 40))

	_, err = tracker.Create(ctx, "job-1", "https://youtu.be/other")
	require.ErrorIs(t, err, quillerrors.ErrConflict)

	job, err := tracker.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 40, job.EmbeddingsProgress, "existing entry must not be re-initialized")
	assert.Equal(t, "https://youtu.be/abc", job.URL)
}

func TestTracker_GetUnknown(t *testing.T) {
	_, err := newTestTracker().Get(context.Background(), "missing")
	assert.ErrorIs(t, err, quillerrors.ErrNotFound)
}

func TestTracker_UpdateProgress(t *testing.T) {
	ctx := context.Background()
	tracker := newTestTracker()
	_, err := tracker.Create(ctx, "job-1", "u")
	require.NoError(t, err)

	require.NoError(t, tracker.UpdateEmbeddingsProgress(ctx, "job-1", 40))
	require.NoError(t, tracker.UpdateAnalysisProgress(ctx, "job-1", 30))

	job, err := tracker.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 40, job.EmbeddingsProgress)
	assert.Equal(t, 30, job.AnalysisProgress)
	assert.Equal(t, models.JobStatusProcessing, job.Status)
}

func TestTracker_UpdateProgressClamps(t *testing.T) {
	ctx := context.Background()
	tracker := newTestTracker()
	_, err := tracker.Create(ctx, "job-1", "u")
	require.NoError(t, err)

	require.NoError(t, tracker.UpdateEmbeddingsProgress(ctx, "job-1", 140))
	require.NoError(t, tracker.UpdateAnalysisProgress(ctx, "job-1", -5))

	job, err := tracker.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 100, job.EmbeddingsProgress)
	assert.Equal(t, 0, job.AnalysisProgress)
}

func TestTracker_UpdateUnknownJobIsNoop(t *testing.T) {
	ctx := context.Background()
	tracker := newTestTracker()

	assert.NoError(t, tracker.UpdateEmbeddingsProgress(ctx, "ghost", 50))
	assert.NoError(t, tracker.UpdateAnalysisProgress(ctx, "ghost", 50))
	assert.NotPanics(t, func() { tracker.Report(ctx, "ghost", models.ChannelEmbeddings, 10) })

	_, err := tracker.Get(ctx, "ghost")
	assert.ErrorIs(t, err, quillerrors.ErrNotFound)
}

func TestTracker_MarkComplete(t *testing.T) {
	ctx := context.Background()
	tracker := newTestTracker()
	_, err := tracker.Create(ctx, "job-1", "u")
	require.NoError(t, err)
	require.NoError(t, tracker.UpdateEmbeddingsProgress(ctx, "job-1", 17))

	require.NoError(t, tracker.MarkComplete(ctx, "job-1", "analysis-1"))

	job, err := tracker.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.EmbeddingsProgress)
	assert.Equal(t, 100, job.AnalysisProgress)
	require.NotNil(t, job.AnalysisID)
	assert.Equal(t, "analysis-1", *job.AnalysisID)
	assert.Nil(t, job.Error)
}

func TestTracker_MarkCompleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	tracker := newTestTracker()
	_, err := tracker.Create(ctx, "job-1", "u")
	require.NoError(t, err)

	require.NoError(t, tracker.MarkComplete(ctx, "job-1", "analysis-1"))
	require.NoError(t, tracker.MarkComplete(ctx, "job-1", "analysis-1"))

	err = tracker.MarkComplete(ctx, "job-1", "analysis-2")
	require.ErrorIs(t, err, ErrTerminalState)

	job, err := tracker.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "analysis-1", *job.AnalysisID)
}

func TestTracker_LateFailureCannotOverwriteCompletion(t *testing.T) {
	ctx := context.Background()
	tracker := newTestTracker()
	_, err := tracker.Create(ctx, "job-1", "u")
	require.NoError(t, err)
	require.NoError(t, tracker.MarkComplete(ctx, "job-1", "analysis-1"))

	err = tracker.MarkFailed(ctx, "job-1", "late failure")
	require.ErrorIs(t, err, ErrTerminalState)

	job, err := tracker.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Nil(t, job.Error)
}

func TestTracker_MarkFailed(t *testing.T) {
	ctx := context.Background()
	tracker := newTestTracker()
	_, err := tracker.Create(ctx, "job-1", "u")
	require.NoError(t, err)
	require.NoError(t, tracker.UpdateAnalysisProgress(ctx, "job-1", 30))

	require.NoError(t, tracker.MarkFailed(ctx, "job-1", "no data retrieved"))
	require.NoError(t, tracker.MarkFailed(ctx, "job-1", "no data retrieved"))

	job, err := tracker.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	require.NotNil(t, job.Error)
	assert.Equal(t, "no data retrieved", *job.Error)
	assert.Nil(t, job.AnalysisID)
	assert.Equal(t, 30, job.AnalysisProgress)

	require.ErrorIs(t, tracker.MarkComplete(ctx, "job-1", "a"), ErrTerminalState)
}

func TestTracker_ProgressIgnoredAfterTerminal(t *testing.T) {
	ctx := context.Background()
	tracker := newTestTracker()
	_, err := tracker.Create(ctx, "job-1", "u")
	require.NoError(t, err)
	require.NoError(t, tracker.MarkComplete(ctx, "job-1", "analysis-1"))

	require.NoError(t, tracker.UpdateEmbeddingsProgress(ctx, "job-1", 10))

	job, err := tracker.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 100, job.EmbeddingsProgress)
}

func TestTracker_MarkUnknownJob(t *testing.T) {
	ctx := context.Background()
	tracker := newTestTracker()

	assert.ErrorIs(t, tracker.MarkComplete(ctx, "ghost", "a"), quillerrors.ErrNotFound)
	assert.ErrorIs(t, tracker.MarkFailed(ctx, "ghost", "x"), quillerrors.ErrNotFound)
}

func TestTracker_ConcurrentChannelsDoNotLoseUpdates(t *testing.T) {
	ctx := context.Background()
	tracker := newTestTracker()
	_, err := tracker.Create(ctx, "job-1", "u")
	require.NoError(t, err)

	var wg sync.WaitGroup

	for i := 1; i <= 100; i++ {
		wg.Add(2)

		go func(p int) {
			defer wg.Done()
			tracker.Report(ctx, "job-1", models.ChannelEmbeddings, p)
		}(i)

		go func(p int) {
			defer wg.Done()
			tracker.Report(ctx, "job-1", models.ChannelAnalysis, p)
		}(i)
	}

	wg.Wait()

	require.NoError(t, tracker.UpdateEmbeddingsProgress(ctx, "job-1", 77))
	require.NoError(t, tracker.UpdateAnalysisProgress(ctx, "job-1", 33))

	job, err := tracker.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 77, job.EmbeddingsProgress)
	assert.Equal(t, 33, job.AnalysisProgress)
}

func TestTracker_IndependentJobs(t *testing.T) {
	ctx := context.Background()
	tracker := newTestTracker()

	var wg sync.WaitGroup

	for i := range 20 {
		wg.Add(1)

		go func(n int) {
			defer wg.Done()

			id := fmt.Sprintf("job-%d", n)
			_, err := tracker.Create(ctx, id, "u")
			assert.NoError(t, err)
			assert.NoError(t, tracker.UpdateEmbeddingsProgress(ctx, id, n))
			assert.NoError(t, tracker.MarkComplete(ctx, id, "analysis-"+id))
		}(i)
	}

	wg.Wait()

	for i := range 20 {
		job, err := tracker.Get(ctx, fmt.Sprintf("job-%d", i))
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusCompleted, job.Status)
	}
}
