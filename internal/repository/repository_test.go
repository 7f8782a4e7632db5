package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/quillai/quill/internal/models"
	"github.com/quillai/quill/internal/quillerrors"
	"github.com/quillai/quill/internal/repository"
	"github.com/quillai/quill/pkg/database"
)

// setupTestDB starts a pgvector-enabled Postgres container, runs migrations and returns a pool.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"pgvector/pgvector:pg16",
		postgres.WithDatabase("quill_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, database.RunMigrations(connStr))

	pool, err := database.NewPostgresPool(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool
}

func unitVector(dim, hot int) []float32 {
	v := make([]float32, dim)
	v[hot] = 1

	return v
}

func TestRepositories(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db := setupTestDB(t)
	ctx := context.Background()

	t.Run("analysis save and read back", func(t *testing.T) {
		repo := repository.NewAnalysisRepository(db)
		id := uuid.NewString()

		result := models.AnalysisResult{
			SentimentScore:     72,
			SentimentBreakdown: models.SentimentBreakdown{Positive: 60, Neutral: 30, Negative: 10},
			LeadPercentage:     12,
			Leads:              []models.LeadComment{{Username: "@amy", Text: "where to buy?", Timestamp: "2026-03-10", Sentiment: 0.8}},
			CreatorInsights:    []string{"make a part two"},
			VibeTrend:          []int{57, 62, 67, 72, 75},
			TotalComments:      3,
		}
		summary := models.AnalysisSummary{
			ID: id, URL: "https://youtu.be/abc", Platform: "youtube",
			SentimentScore: 72, LeadPercentage: 12, TotalComments: 3,
		}

		require.NoError(t, repo.Save(ctx, summary, result))

		gotSummary, err := repo.GetSummary(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, gotSummary.ID)
		assert.Equal(t, 72, gotSummary.SentimentScore)
		assert.False(t, gotSummary.CreatedAt.IsZero())

		gotResult, err := repo.GetResult(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, result.SentimentBreakdown, gotResult.SentimentBreakdown)
		assert.Equal(t, result.Leads, gotResult.Leads)
		assert.Equal(t, result.VibeTrend, gotResult.VibeTrend)
		assert.Equal(t, []string{}, gotResult.CompetitorInsights)

		err = repo.Save(ctx, summary, result)
		assert.ErrorIs(t, err, quillerrors.ErrConflict)
	})

	t.Run("analysis not found", func(t *testing.T) {
		repo := repository.NewAnalysisRepository(db)

		_, err := repo.GetSummary(ctx, uuid.NewString())
		assert.ErrorIs(t, err, quillerrors.ErrNotFound)

		_, err = repo.GetResult(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, quillerrors.ErrNotFound)
	})

	t.Run("job lifecycle", func(t *testing.T) {
		repo := repository.NewJobsRepository(db)
		jobID := uuid.NewString()
		analysisID := uuid.NewString()

		rec, err := repo.Create(ctx, jobID, "https://youtu.be/abc")
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusProcessing, rec.Status)
		assert.Equal(t, 0, rec.EmbeddingsProgress)

		_, err = repo.Create(ctx, jobID, "https://youtu.be/abc")
		require.ErrorIs(t, err, quillerrors.ErrConflict)

		require.NoError(t, repo.MarkCompleted(ctx, jobID, analysisID))
		require.NoError(t, repo.MarkFailed(ctx, jobID, "late"))

		got, err := repo.Get(ctx, jobID)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusCompleted, got.Status)
		assert.Equal(t, 100, got.AnalysisProgress)
		require.NotNil(t, got.AnalysisID)
		assert.Equal(t, analysisID, *got.AnalysisID)
		assert.Nil(t, got.Error)
		assert.NotNil(t, got.CompletedAt)

		_, err = repo.Get(ctx, uuid.NewString())
		assert.ErrorIs(t, err, quillerrors.ErrNotFound)
	})

	t.Run("list and fail stale", func(t *testing.T) {
		repo := repository.NewJobsRepository(db)
		staleID := uuid.NewString()

		_, err := repo.Create(ctx, staleID, "https://youtu.be/stale")
		require.NoError(t, err)

		ids, err := repo.FailStale(ctx, time.Now().Add(time.Minute), "job interrupted before completion")
		require.NoError(t, err)
		assert.Contains(t, ids, staleID)

		failed := models.JobStatusFailed
		list, err := repo.List(ctx, &models.ListJobsFilters{Status: &failed, Limit: 10})
		require.NoError(t, err)
		require.NotEmpty(t, list)

		for _, rec := range list {
			assert.Equal(t, models.JobStatusFailed, rec.Status)
		}
	})

	t.Run("vector upsert and query", func(t *testing.T) {
		repo := repository.NewCommentVectorsRepository(db)
		namespace := uuid.NewString()

		err := repo.Upsert(ctx, namespace, []models.CommentVector{
			{ID: "c1", Vector: unitVector(1536, 0), Metadata: models.VectorMetadata{Author: "@amy", CommentText: "love it", VoteCount: 5}},
			{ID: "c2", Vector: unitVector(1536, 1), Metadata: models.VectorMetadata{Author: "@bob", CommentText: "meh"}},
		})
		require.NoError(t, err)

		matches, err := repo.Query(ctx, namespace, unitVector(1536, 0), 10)
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, "c1", matches[0].ID)
		assert.InDelta(t, 1.0, matches[0].Score, 1e-3)
		assert.Equal(t, "@amy", matches[0].Metadata.Author)
		assert.Equal(t, 5, matches[0].Metadata.VoteCount)

		other, err := repo.Query(ctx, uuid.NewString(), unitVector(1536, 0), 10)
		require.NoError(t, err)
		assert.Empty(t, other)

		n, err := repo.DeleteOrphans(ctx, time.Now().Add(time.Minute))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, int64(2))

		count, err := repo.Count(ctx, namespace)
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}
