// Package googleai provides a thin wrapper around the Google Gen AI SDK (Gemini API)
// for text generation and embeddings.
package googleai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"google.golang.org/genai"

	"github.com/quillai/quill/pkg/embeddings"
)

var (
	// ErrEmptyInput is returned when an embedding input or prompt is empty.
	ErrEmptyInput = errors.New("googleai: input text is empty")
	// ErrInvalidDims is returned when dimensions is not positive.
	ErrInvalidDims = errors.New("googleai: embedding dimensions must be positive")
	// ErrNoEmbeddingInResponse is returned when the API response contains no embedding data.
	ErrNoEmbeddingInResponse = errors.New("googleai: no embedding in response")
	// ErrDimensionMismatch is returned when the response embedding length does not match configured dimensions.
	ErrDimensionMismatch = errors.New("googleai: embedding dimension mismatch")
	// ErrCountMismatch is returned when a batch response carries a different number of vectors than inputs.
	ErrCountMismatch = errors.New("googleai: embedding count mismatch")
	// ErrEmptyResponse is returned when generation yields no text.
	ErrEmptyResponse = errors.New("googleai: empty generation response")
)

const (
	defaultDimension       = 1536
	defaultEmbeddingModel  = "gemini-embedding-001"
	defaultGenerationModel = "gemini-2.5-flash"
)

// Client calls the Gemini API via the Google Gen AI SDK.
type Client struct {
	client          *genai.Client
	embeddingModel  string
	generationModel string
	dimensions      int
	baseURL         string
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithDimensions sets the requested embedding dimension (must match DB column).
func WithDimensions(dim int) ClientOption {
	return func(c *Client) {
		c.dimensions = dim
	}
}

// WithModel sets the embedding model name (e.g. gemini-embedding-001). Empty uses default.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.embeddingModel = model
		}
	}
}

// WithGenerationModel sets the default model for GenerateText. Empty uses default.
func WithGenerationModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.generationModel = model
		}
	}
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// NewClient creates a Gemini client.
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	client := &Client{
		embeddingModel:  defaultEmbeddingModel,
		generationModel: defaultGenerationModel,
		dimensions:      defaultDimension,
	}
	for _, opt := range opts {
		opt(client)
	}

	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: client.baseURL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("googleai client: %w", err)
	}

	client.client = genaiClient

	return client, nil
}

// GenerationModel returns the model GenerateText uses when none is given.
func (c *Client) GenerationModel() string {
	return c.generationModel
}

// GenerateText sends a single text prompt and returns the concatenated response text.
// An empty model uses the configured generation model.
func (c *Client) GenerateText(ctx context.Context, model, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyInput
	}

	if model == "" {
		model = c.generationModel
	}

	resp, err := c.client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}

	return text, nil
}

// CreateEmbedding returns the embedding vector for a single text.
func (c *Client) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	out, err := c.CreateEmbeddings(ctx, []string{input})
	if err != nil {
		return nil, err
	}

	return out[0], nil
}

// CreateEmbeddings embeds a batch of texts with the configured model. Vectors are L2-normalized
// because Gemini only returns unit vectors at its native dimension.
func (c *Client) CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, ErrEmptyInput
	}

	if c.dimensions <= 0 || c.dimensions > math.MaxInt32 {
		return nil, ErrInvalidDims
	}

	contents := make([]*genai.Content, len(inputs))

	for i, in := range inputs {
		if strings.TrimSpace(in) == "" {
			return nil, fmt.Errorf("%w: index %d", ErrEmptyInput, i)
		}

		contents[i] = genai.NewContentFromText(in, genai.RoleUser)
	}

	//nolint:gosec // G115: c.dimensions is bounded above by math.MaxInt32
	dimInt32 := int32(c.dimensions)

	resp, err := c.client.Models.EmbedContent(ctx, c.embeddingModel, contents, &genai.EmbedContentConfig{
		OutputDimensionality: &dimInt32,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embedding: %w", err)
	}

	if len(resp.Embeddings) == 0 {
		return nil, ErrNoEmbeddingInResponse
	}

	if len(resp.Embeddings) != len(inputs) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrCountMismatch, len(resp.Embeddings), len(inputs))
	}

	out := make([][]float32, len(resp.Embeddings))

	for i, e := range resp.Embeddings {
		if len(e.Values) != c.dimensions {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(e.Values), c.dimensions)
		}

		vec := make([]float32, len(e.Values))
		copy(vec, e.Values)
		embeddings.NormalizeL2(vec)
		out[i] = vec
	}

	return out, nil
}
