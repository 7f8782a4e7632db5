package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quillai/quill/internal/embeddings"
	"github.com/quillai/quill/internal/models"
	"github.com/quillai/quill/internal/observability"
	"github.com/quillai/quill/internal/quillerrors"
	"github.com/quillai/quill/pkg/cache"
)

const (
	chatTopK        = 10
	chatModelOpenAI = "gpt-4o"

	chatSystemPrompt = "You are Quill AI, an expert analyst for YouTube comment analysis. \n" +
		"Answer questions based ONLY on the provided comment context. \n" +
		"Be direct, blunt, and data-driven. Use bullet points for readability.\n" +
		"If the context doesn't contain relevant information, say so."

	geminiChatPrompt = "You are Quill AI, an expert analyst for YouTube comment analysis.\n" +
		"Answer questions based ONLY on the provided comment context.\n" +
		"Be direct, blunt, and data-driven. Use bullet points for readability.\n" +
		"If the context doesn't contain relevant information, say so.\n\n" +
		"Context:\n%s\n\nUser question: %s"

	chatContextHeader = "Relevant comments from the analysis:\n\n"
)

var errChatNotConfigured = errors.New("chat model is not configured")

// ChatCompleter runs a chat completion with system messages and one user turn.
type ChatCompleter interface {
	Chat(ctx context.Context, systemMessages []string, userMessage string) (string, error)
}

// ChatService answers questions about one analysis from its most similar comments.
type ChatService struct {
	embedder     embeddings.Client
	vectors      VectorStore
	openai       ChatCompleter
	gemini       TextGenerator
	geminiModel  string
	queryCache   *cache.LoaderCache[string, []float32]
	cacheMetrics observability.CacheMetrics
	logger       *slog.Logger
}

// ChatServiceParams configures ChatService. QueryCache and CacheMetrics may be nil (no caching).
// OpenAI serves model "gpt-4o"; every other model name goes to Gemini with GeminiModel.
type ChatServiceParams struct {
	Embedder     embeddings.Client
	Vectors      VectorStore
	OpenAI       ChatCompleter
	Gemini       TextGenerator
	GeminiModel  string
	QueryCache   *cache.LoaderCache[string, []float32]
	CacheMetrics observability.CacheMetrics
	Logger       *slog.Logger
}

// NewChatService creates a ChatService.
func NewChatService(p ChatServiceParams) *ChatService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ChatService{
		embedder:     p.Embedder,
		vectors:      p.Vectors,
		openai:       p.OpenAI,
		gemini:       p.Gemini,
		geminiModel:  p.GeminiModel,
		queryCache:   p.QueryCache,
		cacheMetrics: p.CacheMetrics,
		logger:       logger,
	}
}

// Ask embeds the question, retrieves the top 10 comments of the analysis and asks the chosen model.
func (s *ChatService) Ask(ctx context.Context, req models.ChatRequest) (models.ChatResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return models.ChatResponse{}, quillerrors.NewValidationError("message", "message is required")
	}

	if strings.TrimSpace(req.AnalysisID) == "" {
		return models.ChatResponse{}, quillerrors.NewValidationError("analysis_id", "analysis_id is required")
	}

	s.logger.InfoContext(ctx, "chat request", "analysis_id", req.AnalysisID, "model", req.Model)

	vector, err := s.embedQuery(ctx, message)
	if err != nil {
		return models.ChatResponse{}, quillerrors.NewProviderError(observability.ProviderEmbeddings, err)
	}

	matches, err := s.vectors.Query(ctx, req.AnalysisID, vector, chatTopK)
	if err != nil {
		return models.ChatResponse{}, quillerrors.NewProviderError(observability.ProviderVectors, err)
	}

	chatContext := BuildChatContext(matches)

	var answer string
	if req.Model == chatModelOpenAI {
		answer, err = s.askOpenAI(ctx, chatContext, req.Message)
	} else {
		answer, err = s.askGemini(ctx, chatContext, req.Message)
	}

	if err != nil {
		return models.ChatResponse{}, quillerrors.NewProviderError(observability.ProviderLLM, err)
	}

	return models.ChatResponse{Response: answer}, nil
}

func (s *ChatService) askOpenAI(ctx context.Context, chatContext, message string) (string, error) {
	if s.openai == nil {
		return "", fmt.Errorf("%s: %w", chatModelOpenAI, errChatNotConfigured)
	}

	return s.openai.Chat(ctx, []string{chatSystemPrompt, "Context:\n" + chatContext}, message) //nolint:wrapcheck // wrapped by Ask
}

func (s *ChatService) askGemini(ctx context.Context, chatContext, message string) (string, error) {
	if s.gemini == nil {
		return "", fmt.Errorf("gemini: %w", errChatNotConfigured)
	}

	return s.gemini.GenerateText(ctx, s.geminiModel, fmt.Sprintf(geminiChatPrompt, chatContext, message)) //nolint:wrapcheck // wrapped by Ask
}

func (s *ChatService) embedQuery(ctx context.Context, message string) ([]float32, error) {
	if s.queryCache == nil {
		return s.embedder.CreateEmbedding(ctx, message) //nolint:wrapcheck // wrapped by Ask
	}

	vec, hit, err := s.queryCache.Get(ctx, message, s.embedder.CreateEmbedding)

	if s.cacheMetrics != nil {
		if hit {
			s.cacheMetrics.RecordHit(ctx, observability.CacheChatQueryEmbedding)
		} else {
			s.cacheMetrics.RecordMiss(ctx, observability.CacheChatQueryEmbedding)
		}
	}

	return vec, err //nolint:wrapcheck // wrapped by Ask
}

// BuildChatContext renders retrieved comments as the numbered context block sent to the model.
func BuildChatContext(matches []models.VectorMatch) string {
	var b strings.Builder

	b.WriteString(chatContextHeader)

	for i, m := range matches {
		md := m.Metadata
		fmt.Fprintf(&b, "%d. @%s (Likes: %d, Replies: %d)\n", i+1, md.Author, md.VoteCount, md.ReplyCount)
		fmt.Fprintf(&b, "   %s\n", md.CommentText)
		fmt.Fprintf(&b, "   Date: %s\n\n", md.Date)
	}

	return b.String()
}
