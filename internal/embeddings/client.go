// Package embeddings defines the embedding provider contract shared by the indexer and chat.
package embeddings

import "context"

// Client generates text embeddings.
type Client interface {
	// CreateEmbedding embeds a single text.
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)

	// CreateEmbeddings embeds a batch of texts. The result has one vector per input, in input order.
	CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error)
}
