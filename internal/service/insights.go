package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/quillai/quill/internal/models"
	"github.com/quillai/quill/internal/observability"
	"github.com/quillai/quill/internal/progress"
	"github.com/quillai/quill/internal/quillerrors"
)

const (
	defaultInsightMaxComments = 500
	defaultSentimentScore     = 50
	codeFence                 = "```"
)

// vibeTrendOffsets produce the five-point trend line around the overall sentiment score.
var vibeTrendOffsets = [...]int{-15, -10, -5, 0, 3}

// TextGenerator produces a completion for a single prompt.
type TextGenerator interface {
	GenerateText(ctx context.Context, model, prompt string) (string, error)
}

// InsightExtractor asks an LLM for the structured analysis of a comment set.
type InsightExtractor struct {
	generator   TextGenerator
	model       string
	maxComments int
	logger      *slog.Logger
}

// InsightExtractorParams configures InsightExtractor. An empty Model lets the generator choose.
type InsightExtractorParams struct {
	Generator   TextGenerator
	Model       string
	MaxComments int
	Logger      *slog.Logger
}

// NewInsightExtractor creates an InsightExtractor.
func NewInsightExtractor(p InsightExtractorParams) *InsightExtractor {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxComments := p.MaxComments
	if maxComments <= 0 {
		maxComments = defaultInsightMaxComments
	}

	return &InsightExtractor{
		generator:   p.Generator,
		model:       p.Model,
		maxComments: maxComments,
		logger:      logger,
	}
}

// Extract reports 10, 30, 80 and 100 on the analysis channel around prompt building,
// generation and parsing. A malformed response is a provider fault and is not retried.
func (x *InsightExtractor) Extract(
	ctx context.Context, jobID string, comments []models.CanonicalComment, reporter progress.Reporter,
) (result models.AnalysisResult, err error) {
	ctx, span := observability.Tracer().Start(ctx, "insights.Extract", trace.WithAttributes(
		attribute.String("job.id", jobID),
		attribute.Int("comments.count", len(comments)),
	))
	defer func() { observability.EndSpan(span, err) }()

	reporter.Report(ctx, jobID, models.ChannelAnalysis, 10)

	prompt := BuildInsightPrompt(comments, x.maxComments)

	reporter.Report(ctx, jobID, models.ChannelAnalysis, 30)

	text, err := x.generator.GenerateText(ctx, x.model, prompt)
	if err != nil {
		return models.AnalysisResult{}, quillerrors.NewProviderError(observability.ProviderLLM, err)
	}

	reporter.Report(ctx, jobID, models.ChannelAnalysis, 80)

	result, err = ParseInsights(text)
	if err != nil {
		x.logger.ErrorContext(ctx, "unparseable insight response",
			"job_id", jobID, "response_prefix", truncateRunes(text, 500), "error", err)

		return models.AnalysisResult{}, quillerrors.NewProviderError(observability.ProviderLLM, err)
	}

	if result.TotalComments == 0 {
		result.TotalComments = len(comments)
	}

	reporter.Report(ctx, jobID, models.ChannelAnalysis, 100)

	return result, nil
}

// ParseInsights strips one optional leading and trailing code fence, decodes the JSON object
// and derives VibeTrend from the sentiment score (50 when the field is absent).
func ParseInsights(text string) (models.AnalysisResult, error) {
	result := models.AnalysisResult{SentimentScore: defaultSentimentScore}

	if err := json.Unmarshal([]byte(stripCodeFence(text)), &result); err != nil {
		return models.AnalysisResult{}, fmt.Errorf("invalid JSON response: %w", err)
	}

	result.VibeTrend = VibeTrend(result.SentimentScore)

	return result, nil
}

// VibeTrend returns the score shifted by -15, -10, -5, 0 and +3, each clamped to [0,100].
func VibeTrend(score int) []int {
	trend := make([]int, len(vibeTrendOffsets))
	for i, off := range vibeTrendOffsets {
		trend[i] = max(0, min(100, score+off))
	}

	return trend
}

func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, codeFence) {
		text = strings.TrimPrefix(text, codeFence)
		// Drop the info string ("json") along with the rest of the fence line.
		if nl := strings.IndexByte(text, '\n'); nl >= 0 {
			text = text[nl+1:]
		} else {
			text = strings.TrimPrefix(text, "json")
		}
	}

	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, codeFence)

	return strings.TrimSpace(text)
}
