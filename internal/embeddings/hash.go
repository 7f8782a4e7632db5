package embeddings

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	vectors "github.com/quillai/quill/pkg/embeddings"
)

// ErrEmptyInput is returned when a text to embed is empty.
var ErrEmptyInput = errors.New("embeddings: input text is empty")

const defaultHashDimensions = 1536

// HashClient derives deterministic unit vectors from a SHA-256 of the text.
// It needs no network access and backs EMBEDDING_PROVIDER=local and tests.
type HashClient struct {
	dimensions int
}

// NewHashClient creates a hash client producing vectors of the given length (0 = 1536).
func NewHashClient(dimensions int) *HashClient {
	if dimensions <= 0 {
		dimensions = defaultHashDimensions
	}

	return &HashClient{dimensions: dimensions}
}

// CreateEmbedding implements Client.
func (c *HashClient) CreateEmbedding(_ context.Context, input string) ([]float32, error) {
	if input == "" {
		return nil, ErrEmptyInput
	}

	return c.vector(input), nil
}

// CreateEmbeddings implements Client.
func (c *HashClient) CreateEmbeddings(_ context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, ErrEmptyInput
	}

	out := make([][]float32, len(inputs))

	for i, in := range inputs {
		if in == "" {
			return nil, fmt.Errorf("%w: index %d", ErrEmptyInput, i)
		}

		out[i] = c.vector(in)
	}

	return out, nil
}

func (c *HashClient) vector(text string) []float32 {
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, c.dimensions)

	for i := range vec {
		vec[i] = float32(sum[i%len(sum)])/127.5 - 1
	}

	vectors.NormalizeL2(vec)

	return vec
}

var _ Client = (*HashClient)(nil)
