package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quillai/quill/internal/models"
	"github.com/quillai/quill/internal/quillerrors"
)

const (
	defaultJobsLimit = 20
	jobColumns       = `id::text, url, status, embeddings_progress, gemini_progress, error, analysis_id::text,
		created_at, updated_at, completed_at`
)

// JobsRepository handles data access for the analysis_jobs table.
type JobsRepository struct {
	db *pgxpool.Pool
}

// NewJobsRepository creates a new jobs repository.
func NewJobsRepository(db *pgxpool.Pool) *JobsRepository {
	return &JobsRepository{db: db}
}

func scanJob(row pgx.Row) (models.JobRecord, error) {
	var rec models.JobRecord

	err := row.Scan(
		&rec.ID, &rec.URL, &rec.Status, &rec.EmbeddingsProgress, &rec.AnalysisProgress,
		&rec.Error, &rec.AnalysisID, &rec.CreatedAt, &rec.UpdatedAt, &rec.CompletedAt,
	)

	return rec, err //nolint:wrapcheck // callers wrap
}

// Create inserts a PROCESSING row with both counters at 0.
func (r *JobsRepository) Create(ctx context.Context, jobID, url string) (models.JobRecord, error) {
	id, ok := parseID(jobID)
	if !ok {
		return models.JobRecord{}, quillerrors.NewValidationError("job_id", "job id must be a UUID")
	}

	rec, err := scanJob(r.db.QueryRow(ctx, `
		INSERT INTO analysis_jobs (id, url, status, embeddings_progress, gemini_progress)
		VALUES ($1, $2, $3, 0, 0)
		RETURNING `+jobColumns,
		id, url, models.JobStatusProcessing,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return models.JobRecord{}, quillerrors.NewConflictError("job " + jobID + " already exists")
		}

		return models.JobRecord{}, fmt.Errorf("create analysis job: %w", err)
	}

	return rec, nil
}

// Get returns one job row.
func (r *JobsRepository) Get(ctx context.Context, jobID string) (models.JobRecord, error) {
	id, ok := parseID(jobID)
	if !ok {
		return models.JobRecord{}, quillerrors.NewNotFoundError("job", "Job not found")
	}

	rec, err := scanJob(r.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM analysis_jobs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.JobRecord{}, quillerrors.NewNotFoundError("job", "Job not found")
		}

		return models.JobRecord{}, fmt.Errorf("get analysis job: %w", err)
	}

	return rec, nil
}

// MarkCompleted records the COMPLETED outcome. Rows already in a terminal state are left untouched.
func (r *JobsRepository) MarkCompleted(ctx context.Context, jobID, analysisID string) error {
	id, ok := parseID(jobID)
	if !ok {
		return quillerrors.NewValidationError("job_id", "job id must be a UUID")
	}

	aid, ok := parseID(analysisID)
	if !ok {
		return quillerrors.NewValidationError("analysis_id", "analysis id must be a UUID")
	}

	_, err := r.db.Exec(ctx, `
		UPDATE analysis_jobs
		SET status = $2, analysis_id = $3, embeddings_progress = 100, gemini_progress = 100,
		    error = NULL, completed_at = now(), updated_at = now()
		WHERE id = $1 AND status IN ('PENDING', 'PROCESSING')`,
		id, models.JobStatusCompleted, aid,
	)
	if err != nil {
		return fmt.Errorf("mark analysis job completed: %w", err)
	}

	return nil
}

// MarkFailed records the FAILED outcome. Rows already in a terminal state are left untouched.
func (r *JobsRepository) MarkFailed(ctx context.Context, jobID, message string) error {
	id, ok := parseID(jobID)
	if !ok {
		return quillerrors.NewValidationError("job_id", "job id must be a UUID")
	}

	_, err := r.db.Exec(ctx, `
		UPDATE analysis_jobs
		SET status = $2, error = $3, updated_at = now()
		WHERE id = $1 AND status IN ('PENDING', 'PROCESSING')`,
		id, models.JobStatusFailed, message,
	)
	if err != nil {
		return fmt.Errorf("mark analysis job failed: %w", err)
	}

	return nil
}

// List returns job rows newest first.
func (r *JobsRepository) List(ctx context.Context, filters *models.ListJobsFilters) ([]models.JobRecord, error) {
	if filters == nil {
		filters = &models.ListJobsFilters{}
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = defaultJobsLimit
	}

	query := `SELECT ` + jobColumns + ` FROM analysis_jobs`
	args := []any{}

	if filters.Status != nil {
		args = append(args, *filters.Status)
		query += fmt.Sprintf(" WHERE status = $%d", len(args))
	}

	args = append(args, limit, filters.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list analysis jobs: %w", err)
	}
	defer rows.Close()

	records := []models.JobRecord{}

	for rows.Next() {
		rec, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan analysis job: %w", err)
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating analysis jobs: %w", err)
	}

	return records, nil
}

// FailStale moves rows stuck in PROCESSING since before cutoff to FAILED and returns their ids.
func (r *JobsRepository) FailStale(ctx context.Context, cutoff time.Time, message string) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		UPDATE analysis_jobs
		SET status = $1, error = $2, updated_at = now()
		WHERE status IN ('PENDING', 'PROCESSING') AND updated_at < $3
		RETURNING id::text`,
		models.JobStatusFailed, message, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("fail stale analysis jobs: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect stale job ids: %w", err)
	}

	return ids, nil
}
