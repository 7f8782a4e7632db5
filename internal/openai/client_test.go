package openai

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_CreateEmbeddings(t *testing.T) {
	t.Run("returns vectors in input order", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/embeddings", r.URL.Path)

			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, []any{"first", "second"}, body["input"])

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"object": "list",
				"model": "text-embedding-3-small",
				"data": [
					{"object": "embedding", "index": 1, "embedding": [0, 1]},
					{"object": "embedding", "index": 0, "embedding": [1, 0]}
				],
				"usage": {"prompt_tokens": 2, "total_tokens": 2}
			}`))
		}))
		defer server.Close()

		client := NewClient("sk-test", WithDimensions(2), WithBaseURL(server.URL))

		out, err := client.CreateEmbeddings(t.Context(), []string{"first", "second"})
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.Equal(t, []float32{1, 0}, out[0])
		assert.Equal(t, []float32{0, 1}, out[1])
	})

	t.Run("rejects empty text before calling the API", func(t *testing.T) {
		client := NewClient("sk-test", WithBaseURL("http://127.0.0.1:1"))

		_, err := client.CreateEmbeddings(t.Context(), []string{"ok", "  "})
		require.ErrorIs(t, err, ErrEmptyInput)
	})

	t.Run("count mismatch", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"object":"list","model":"m","data":[{"object":"embedding","index":0,"embedding":[1,0]}],"usage":{"prompt_tokens":1,"total_tokens":1}}`))
		}))
		defer server.Close()

		client := NewClient("sk-test", WithDimensions(2), WithBaseURL(server.URL))

		_, err := client.CreateEmbeddings(t.Context(), []string{"a", "b"})
		require.ErrorIs(t, err, ErrCountMismatch)
	})
}

func TestClient_Chat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var body struct {
			Model       string  `json:"model"`
			Temperature float64 `json:"temperature"`
			MaxTokens   int     `json:"max_tokens"`
			Messages    []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		assert.Equal(t, "gpt-4o", body.Model)
		assert.InDelta(t, 0.7, body.Temperature, 1e-9)
		assert.Equal(t, 500, body.MaxTokens)
		require.Len(t, body.Messages, 3)
		assert.Equal(t, "system", body.Messages[0].Role)
		assert.Equal(t, "Context:\nctx", body.Messages[1].Content)
		assert.Equal(t, "user", body.Messages[2].Role)
		assert.Equal(t, "what do people like?", body.Messages[2].Content)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "c1", "object": "chat.completion", "created": 1, "model": "gpt-4o",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "- the music"}}]
		}`))
	}))
	defer server.Close()

	client := NewClient("sk-test", WithBaseURL(server.URL))

	out, err := client.Chat(t.Context(), []string{"be blunt", "Context:\nctx"}, "what do people like?")
	require.NoError(t, err)
	assert.Equal(t, "- the music", out)
}
