package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quillai/quill/internal/models"
	"github.com/quillai/quill/internal/quillerrors"
)

// AnalysisRepository handles data access for analysis_history and analysis_details.
type AnalysisRepository struct {
	db *pgxpool.Pool
}

// NewAnalysisRepository creates a new analysis repository.
func NewAnalysisRepository(db *pgxpool.Pool) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// detailColumns is the JSONB payload of one analysis_details row, in column order.
func detailColumns(result models.AnalysisResult) ([]any, error) {
	values := []any{
		result.SentimentBreakdown,
		orEmpty(result.Leads),
		orEmpty(result.TopFeedbackTopics),
		orEmpty(result.TopDiscussedTopics),
		orEmpty(result.ActionableTodos),
		orEmpty(result.CreatorInsights),
		orEmpty(result.CompetitorInsights),
		orEmpty(result.EngagementSpikes),
		orEmpty(result.TopInfluencers),
		orEmpty(result.VibeTrend),
	}

	out := make([]any, len(values))

	for i, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode analysis details: %w", err)
		}

		out[i] = data
	}

	return out, nil
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}

	return s
}

// Save writes the summary row and then the details row in one transaction.
// Details reference the summary, so a details row never exists without its summary.
func (r *AnalysisRepository) Save(ctx context.Context, summary models.AnalysisSummary, result models.AnalysisResult) error {
	id, ok := parseID(summary.ID)
	if !ok {
		return quillerrors.NewValidationError("analysis_id", "analysis id must be a UUID")
	}

	details, err := detailColumns(result)
	if err != nil {
		return err
	}

	err = pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO analysis_history (id, url, platform, sentiment_score, lead_percentage, total_comments)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			id, summary.URL, summary.Platform, summary.SentimentScore, summary.LeadPercentage, summary.TotalComments,
		)
		if err != nil {
			return fmt.Errorf("insert analysis_history: %w", err)
		}

		args := append([]any{id}, details...)

		_, err = tx.Exec(ctx, `
			INSERT INTO analysis_details (
				analysis_history_id, sentiment_breakdown, leads, top_feedback_topics, top_discussed_topics,
				actionable_todos, creator_insights, competitor_insights, engagement_spikes, top_influencers, vibe_trend
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			args...,
		)
		if err != nil {
			return fmt.Errorf("insert analysis_details: %w", err)
		}

		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return quillerrors.NewConflictError("analysis " + summary.ID + " already exists")
		}

		return fmt.Errorf("save analysis: %w", err)
	}

	return nil
}

// GetSummary returns the analysis_history row.
func (r *AnalysisRepository) GetSummary(ctx context.Context, analysisID string) (models.AnalysisSummary, error) {
	id, ok := parseID(analysisID)
	if !ok {
		return models.AnalysisSummary{}, quillerrors.NewNotFoundError("analysis", "Analysis not found")
	}

	var s models.AnalysisSummary

	err := r.db.QueryRow(ctx, `
		SELECT id::text, url, platform, sentiment_score, lead_percentage, total_comments, created_at
		FROM analysis_history
		WHERE id = $1`, id,
	).Scan(&s.ID, &s.URL, &s.Platform, &s.SentimentScore, &s.LeadPercentage, &s.TotalComments, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.AnalysisSummary{}, quillerrors.NewNotFoundError("analysis", "Analysis not found")
		}

		return models.AnalysisSummary{}, fmt.Errorf("get analysis summary: %w", err)
	}

	return s, nil
}

// GetResult returns the stored details for an analysis. TotalComments is not part of the
// details row and is left zero; callers combine it with the summary.
func (r *AnalysisRepository) GetResult(ctx context.Context, analysisID string) (models.AnalysisResult, error) {
	id, ok := parseID(analysisID)
	if !ok {
		return models.AnalysisResult{}, quillerrors.NewNotFoundError("analysis details", "Analysis details not found")
	}

	var (
		res  models.AnalysisResult
		cols [10][]byte
	)

	err := r.db.QueryRow(ctx, `
		SELECT sentiment_breakdown, leads, top_feedback_topics, top_discussed_topics, actionable_todos,
		       creator_insights, competitor_insights, engagement_spikes, top_influencers, vibe_trend
		FROM analysis_details
		WHERE analysis_history_id = $1`, id,
	).Scan(&cols[0], &cols[1], &cols[2], &cols[3], &cols[4], &cols[5], &cols[6], &cols[7], &cols[8], &cols[9])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.AnalysisResult{}, quillerrors.NewNotFoundError("analysis details", "Analysis details not found")
		}

		return models.AnalysisResult{}, fmt.Errorf("get analysis details: %w", err)
	}

	targets := []any{
		&res.SentimentBreakdown, &res.Leads, &res.TopFeedbackTopics, &res.TopDiscussedTopics, &res.ActionableTodos,
		&res.CreatorInsights, &res.CompetitorInsights, &res.EngagementSpikes, &res.TopInfluencers, &res.VibeTrend,
	}

	for i, target := range targets {
		if err := json.Unmarshal(cols[i], target); err != nil {
			return models.AnalysisResult{}, fmt.Errorf("decode analysis details column %d: %w", i, err)
		}
	}

	return res, nil
}
