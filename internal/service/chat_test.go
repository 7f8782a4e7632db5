package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillai/quill/internal/models"
	"github.com/quillai/quill/internal/quillerrors"
	"github.com/quillai/quill/pkg/cache"
)

const testAnalysisID = "3f1c1d2e-8a4b-4c7d-9e10-5b6a7c8d9e0f"

func sampleMatches() []models.VectorMatch {
	return []models.VectorMatch{
		{ID: "c1", Score: 0.91, Metadata: models.VectorMetadata{
			Author: "Carol", CommentText: "The audio is too quiet", Date: "2026-03-13", VoteCount: 5, ReplyCount: 1,
		}},
		{ID: "c2", Score: 0.84, Metadata: models.VectorMetadata{
			Author: "Dan", CommentText: "Where can I buy the kit?", Date: "2026-03-12",
		}},
	}
}

func TestBuildChatContext(t *testing.T) {
	want := "Relevant comments from the analysis:\n\n" +
		"1. @Carol (Likes: 5, Replies: 1)\n   The audio is too quiet\n   Date: 2026-03-13\n\n" +
		"2. @Dan (Likes: 0, Replies: 0)\n   Where can I buy the kit?\n   Date: 2026-03-12\n\n"

	assert.Equal(t, want, BuildChatContext(sampleMatches()))
	assert.Equal(t, "Relevant comments from the analysis:\n\n", BuildChatContext(nil))
}

func newChatFixture(t *testing.T) (*mockEmbedder, *memoryVectorStore) {
	t.Helper()

	embedder := &mockEmbedder{createEmbeddingFunc: func(context.Context, string) ([]float32, error) {
		return []float32{0.1, 0.2}, nil
	}}

	vectors := newMemoryVectorStore()
	vectors.queryFunc = func(_ context.Context, namespace string, vector []float32, topK int) ([]models.VectorMatch, error) {
		assert.Equal(t, testAnalysisID, namespace)
		assert.Equal(t, []float32{0.1, 0.2}, vector)
		assert.Equal(t, 10, topK)

		return sampleMatches(), nil
	}

	return embedder, vectors
}

func TestChatService_Ask(t *testing.T) {
	ctx := context.Background()

	t.Run("gpt-4o goes to OpenAI with the context as a second system message", func(t *testing.T) {
		embedder, vectors := newChatFixture(t)

		var (
			gotSystem []string
			gotUser   string
		)

		openai := &mockChatCompleter{chatFunc: func(_ context.Context, system []string, user string) (string, error) {
			gotSystem, gotUser = system, user

			return "- Fix the audio", nil
		}}

		svc := NewChatService(ChatServiceParams{
			Embedder: embedder, Vectors: vectors, OpenAI: openai, Gemini: failingGenerator(t),
		})

		resp, err := svc.Ask(ctx, models.ChatRequest{
			Message: "What should I fix?", Model: "gpt-4o", AnalysisID: testAnalysisID,
		})
		require.NoError(t, err)
		assert.Equal(t, "- Fix the audio", resp.Response)

		require.Len(t, gotSystem, 2)
		assert.Equal(t, chatSystemPrompt, gotSystem[0])
		assert.Equal(t, "Context:\n"+BuildChatContext(sampleMatches()), gotSystem[1])
		assert.Equal(t, "What should I fix?", gotUser)
	})

	t.Run("any other model goes to Gemini with one combined prompt", func(t *testing.T) {
		embedder, vectors := newChatFixture(t)

		var gotModel, gotPrompt string

		gemini := &mockGenerator{generateFunc: func(_ context.Context, model, prompt string) (string, error) {
			gotModel, gotPrompt = model, prompt

			return "Mostly positive.", nil
		}}

		openai := &mockChatCompleter{chatFunc: func(context.Context, []string, string) (string, error) {
			t.Error("OpenAI must not be called")

			return "", nil
		}}

		svc := NewChatService(ChatServiceParams{
			Embedder: embedder, Vectors: vectors, OpenAI: openai, Gemini: gemini, GeminiModel: "gemini-2.5-flash",
		})

		for _, model := range []string{"", "gemini-2.5-flash", "claude"} {
			resp, err := svc.Ask(ctx, models.ChatRequest{
				Message: "How do people feel?", Model: model, AnalysisID: testAnalysisID,
			})
			require.NoError(t, err)
			assert.Equal(t, "Mostly positive.", resp.Response)
		}

		assert.Equal(t, "gemini-2.5-flash", gotModel)
		assert.Contains(t, gotPrompt, "You are Quill AI")
		assert.Contains(t, gotPrompt, "Context:\n"+BuildChatContext(sampleMatches()))
		assert.Contains(t, gotPrompt, "\n\nUser question: How do people feel?")
	})

	t.Run("validation", func(t *testing.T) {
		svc := NewChatService(ChatServiceParams{})

		_, err := svc.Ask(ctx, models.ChatRequest{Message: "  ", AnalysisID: testAnalysisID})
		require.ErrorIs(t, err, quillerrors.ErrValidation)

		_, err = svc.Ask(ctx, models.ChatRequest{Message: "hi"})
		require.ErrorIs(t, err, quillerrors.ErrValidation)
	})

	t.Run("provider failures", func(t *testing.T) {
		embedder, vectors := newChatFixture(t)
		embedder.createEmbeddingFunc = func(context.Context, string) ([]float32, error) {
			return nil, errors.New("quota")
		}

		_, err := NewChatService(ChatServiceParams{Embedder: embedder, Vectors: vectors}).
			Ask(ctx, models.ChatRequest{Message: "hi", AnalysisID: testAnalysisID})
		require.ErrorIs(t, err, quillerrors.ErrProvider)
		assert.Contains(t, err.Error(), "quota")

		embedder, vectors = newChatFixture(t)
		gemini := &mockGenerator{generateFunc: func(context.Context, string, string) (string, error) {
			return "", errors.New("503")
		}}

		_, err = NewChatService(ChatServiceParams{Embedder: embedder, Vectors: vectors, Gemini: gemini}).
			Ask(ctx, models.ChatRequest{Message: "hi", AnalysisID: testAnalysisID})
		require.ErrorIs(t, err, quillerrors.ErrProvider)
	})

	t.Run("unconfigured OpenAI is a provider error", func(t *testing.T) {
		embedder, vectors := newChatFixture(t)

		_, err := NewChatService(ChatServiceParams{Embedder: embedder, Vectors: vectors}).
			Ask(ctx, models.ChatRequest{Message: "hi", Model: "gpt-4o", AnalysisID: testAnalysisID})
		require.ErrorIs(t, err, quillerrors.ErrProvider)
		assert.ErrorIs(t, err, errChatNotConfigured)
	})

	t.Run("repeated questions reuse the query embedding", func(t *testing.T) {
		embedder, vectors := newChatFixture(t)

		var embeds atomic.Int32

		embedder.createEmbeddingFunc = func(context.Context, string) ([]float32, error) {
			embeds.Add(1)

			return []float32{0.1, 0.2}, nil
		}

		queryCache, err := cache.NewLoaderCache[string, []float32](16, func(s string) string { return s })
		require.NoError(t, err)

		svc := NewChatService(ChatServiceParams{
			Embedder: embedder, Vectors: vectors, Gemini: staticGenerator("ok"), QueryCache: queryCache,
		})

		for range 3 {
			_, err := svc.Ask(ctx, models.ChatRequest{Message: "What should I fix?", AnalysisID: testAnalysisID})
			require.NoError(t, err)
		}

		assert.Equal(t, int32(1), embeds.Load())
	})
}
