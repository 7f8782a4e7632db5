// Package openai provides a thin wrapper around the official OpenAI Go SDK for embeddings and chat.
package openai

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
)

var (
	// ErrEmptyInput is returned when an embedding input or chat message is empty.
	ErrEmptyInput = errors.New("openai: input text is empty")
	// ErrInvalidDims is returned when dimensions is not positive.
	ErrInvalidDims = errors.New("openai: embedding dimensions must be positive")
	// ErrNoEmbeddingInResponse is returned when the API response contains no embedding data.
	ErrNoEmbeddingInResponse = errors.New("openai: no embedding in response")
	// ErrDimensionMismatch is returned when the response embedding length does not match configured dimensions.
	ErrDimensionMismatch = errors.New("openai: embedding dimension mismatch")
	// ErrCountMismatch is returned when a batch response carries a different number of vectors than inputs.
	ErrCountMismatch = errors.New("openai: embedding count mismatch")
	// ErrNoChoices is returned when a chat completion has no choices.
	ErrNoChoices = errors.New("openai: no choices in chat completion")
)

const (
	defaultDimension     = 1536
	defaultModel         = string(openaisdk.EmbeddingModelTextEmbedding3Small)
	defaultChatModel     = string(openaisdk.ChatModelGPT4o)
	defaultChatTemp      = 0.7
	defaultChatMaxTokens = 500
)

// Client calls the OpenAI embeddings and chat completion APIs via the official SDK.
type Client struct {
	sdk        openaisdk.Client
	model      string
	chatModel  string
	dimensions int
	sdkOpts    []option.RequestOption
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithDimensions sets the requested embedding dimension (must match DB column).
func WithDimensions(dim int) ClientOption {
	return func(c *Client) {
		c.dimensions = dim
	}
}

// WithModel sets the embedding model name. Empty uses text-embedding-3-small.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithChatModel sets the chat completion model. Empty uses gpt-4o.
func WithChatModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.chatModel = model
		}
	}
}

// WithBaseURL points the SDK at a different endpoint (proxies, tests).
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.sdkOpts = append(c.sdkOpts, option.WithBaseURL(baseURL), option.WithMaxRetries(0))
	}
}

// NewClient creates an OpenAI client using the official SDK.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	client := &Client{
		model:      defaultModel,
		chatModel:  defaultChatModel,
		dimensions: defaultDimension,
	}

	for _, opt := range opts {
		opt(client)
	}

	sdkOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, client.sdkOpts...)
	client.sdk = openaisdk.NewClient(sdkOpts...)

	return client
}

// CreateEmbedding returns the embedding vector for a single text.
func (c *Client) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	out, err := c.CreateEmbeddings(ctx, []string{input})
	if err != nil {
		return nil, err
	}

	return out[0], nil
}

// CreateEmbeddings embeds a batch of texts in one request. The result is in input order.
func (c *Client) CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, ErrEmptyInput
	}

	for i, in := range inputs {
		if strings.TrimSpace(in) == "" {
			return nil, fmt.Errorf("%w: index %d", ErrEmptyInput, i)
		}
	}

	if c.dimensions <= 0 {
		return nil, ErrInvalidDims
	}

	resp, err := c.sdk.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: inputs,
		},
		Model:      openaisdk.EmbeddingModel(c.model),
		Dimensions: param.NewOpt(int64(c.dimensions)),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, ErrNoEmbeddingInResponse
	}

	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrCountMismatch, len(resp.Data), len(inputs))
	}

	data := slices.Clone(resp.Data)
	slices.SortFunc(data, func(a, b openaisdk.Embedding) int {
		return int(a.Index - b.Index)
	})

	out := make([][]float32, len(data))

	for i, d := range data {
		if len(d.Embedding) != c.dimensions {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(d.Embedding), c.dimensions)
		}

		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}

		out[i] = vec
	}

	return out, nil
}

// Chat sends the system messages followed by one user message and returns the first choice's text.
// Temperature is 0.7 and the completion is capped at 500 tokens.
func (c *Client) Chat(ctx context.Context, systemMessages []string, userMessage string) (string, error) {
	if strings.TrimSpace(userMessage) == "" {
		return "", ErrEmptyInput
	}

	messages := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(systemMessages)+1)
	for _, s := range systemMessages {
		messages = append(messages, openaisdk.SystemMessage(s))
	}

	messages = append(messages, openaisdk.UserMessage(userMessage))

	resp, err := c.sdk.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model:       openaisdk.ChatModel(c.chatModel),
		Messages:    messages,
		Temperature: param.NewOpt(defaultChatTemp),
		MaxTokens:   param.NewOpt(int64(defaultChatMaxTokens)),
	})
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	return resp.Choices[0].Message.Content, nil
}
