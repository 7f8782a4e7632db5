// Package apify runs the YouTube comment scraper actor on Apify and reads back its dataset.
package apify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/quillai/quill/internal/models"
)

const (
	// DefaultBaseURL is the Apify REST API root.
	DefaultBaseURL = "https://api.apify.com/v2"
	// DefaultActorID is the YouTube comments scraper actor.
	DefaultActorID = "p7UMdpQnjKmmpR21D"

	defaultPollInterval = 3 * time.Second
	defaultTimeout      = 60 * time.Second
	defaultRetryMax     = 3

	// sortByRelevance is the actor's "Top comments" ordering.
	sortByRelevance = "1"
)

var (
	// ErrMissingToken is returned when no API token is configured.
	ErrMissingToken = errors.New("apify: api token is required")
	// ErrRunFailed is returned when the actor run ends in a non-success state.
	ErrRunFailed = errors.New("apify: actor run did not succeed")
	// ErrUnexpectedStatus is returned for non-2xx API responses.
	ErrUnexpectedStatus = errors.New("apify: unexpected response status")
)

// Run states reported by the actor-runs endpoint.
const (
	runStatusSucceeded = "SUCCEEDED"
	runStatusFailed    = "FAILED"
	runStatusAborted   = "ABORTED"
	runStatusTimedOut  = "TIMED-OUT"
)

// ClientOptions configures the Apify client.
type ClientOptions struct {
	// Token is the Apify API token.
	Token string
	// ActorID defaults to DefaultActorID.
	ActorID string
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string
	// PollInterval is the wait between run status checks (default: 3 seconds).
	PollInterval time.Duration
	// RetryMax is the maximum number of retries per request (default: 3, negative disables retries).
	RetryMax int
	// Timeout is the per-request HTTP timeout (default: 60 seconds).
	Timeout time.Duration
}

// Client starts actor runs and fetches their results.
type Client struct {
	token        string
	actorID      string
	baseURL      string
	pollInterval time.Duration
	httpClient   *retryablehttp.Client
}

// NewClient creates an Apify client.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.Token == "" {
		return nil, ErrMissingToken
	}

	if opts.ActorID == "" {
		opts.ActorID = DefaultActorID
	}

	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}

	switch {
	case opts.RetryMax == 0:
		opts.RetryMax = defaultRetryMax
	case opts.RetryMax < 0:
		opts.RetryMax = 0
	}

	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.HTTPClient.Timeout = opts.Timeout
	retryClient.Logger = nil

	return &Client{
		token:        opts.Token,
		actorID:      opts.ActorID,
		baseURL:      strings.TrimSuffix(opts.BaseURL, "/"),
		pollInterval: opts.PollInterval,
		httpClient:   retryClient,
	}, nil
}

type startURL struct {
	URL string `json:"url"`
}

type runInput struct {
	StartURLs      []startURL `json:"startUrls"`
	MaxComments    int        `json:"maxComments"`
	CommentsSortBy string     `json:"commentsSortBy"`
}

type runEnvelope struct {
	Data struct {
		ID               string `json:"id"`
		Status           string `json:"status"`
		DefaultDatasetID string `json:"defaultDatasetId"`
	} `json:"data"`
}

// Fetch runs the actor for videoURL, waits for it to finish and returns at most maxComments raw records.
func (c *Client) Fetch(ctx context.Context, videoURL string, maxComments int) ([]models.RawComment, error) {
	slog.InfoContext(ctx, "apify: starting actor run", "actor_id", c.actorID, "url", videoURL)

	run, err := c.startRun(ctx, runInput{
		StartURLs:      []startURL{{URL: videoURL}},
		MaxComments:    maxComments,
		CommentsSortBy: sortByRelevance,
	})
	if err != nil {
		return nil, err
	}

	datasetID, err := c.waitForRun(ctx, run)
	if err != nil {
		return nil, err
	}

	items, err := c.datasetItems(ctx, datasetID, maxComments)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "apify: fetched dataset items", "dataset_id", datasetID, "count", len(items))

	return items, nil
}

func (c *Client) startRun(ctx context.Context, input runInput) (runEnvelope, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return runEnvelope{}, fmt.Errorf("apify: encode run input: %w", err)
	}

	reqURL := fmt.Sprintf("%s/acts/%s/runs?%s", c.baseURL, url.PathEscape(c.actorID), c.tokenQuery(nil))

	var run runEnvelope
	if err := c.doJSON(ctx, http.MethodPost, reqURL, body, &run); err != nil {
		return runEnvelope{}, fmt.Errorf("apify: start run: %w", err)
	}

	return run, nil
}

// waitForRun polls the run until it reaches a final state and returns its dataset id.
func (c *Client) waitForRun(ctx context.Context, run runEnvelope) (string, error) {
	statusURL := fmt.Sprintf("%s/actor-runs/%s?%s", c.baseURL, url.PathEscape(run.Data.ID), c.tokenQuery(nil))

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		switch run.Data.Status {
		case runStatusSucceeded:
			return run.Data.DefaultDatasetID, nil
		case runStatusFailed, runStatusAborted, runStatusTimedOut:
			return "", fmt.Errorf("%w: run %s ended %s", ErrRunFailed, run.Data.ID, run.Data.Status)
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("apify: wait for run: %w", ctx.Err())
		case <-ticker.C:
		}

		if err := c.doJSON(ctx, http.MethodGet, statusURL, nil, &run); err != nil {
			return "", fmt.Errorf("apify: poll run: %w", err)
		}
	}
}

func (c *Client) datasetItems(ctx context.Context, datasetID string, limit int) ([]models.RawComment, error) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("clean", "true")

	if limit > 0 {
		params.Set("limit", fmt.Sprint(limit))
	}

	reqURL := fmt.Sprintf("%s/datasets/%s/items?%s", c.baseURL, url.PathEscape(datasetID), c.tokenQuery(params))

	var items []models.RawComment
	if err := c.doJSON(ctx, http.MethodGet, reqURL, nil, &items); err != nil {
		return nil, fmt.Errorf("apify: dataset items: %w", err)
	}

	return items, nil
}

func (c *Client) tokenQuery(params url.Values) string {
	if params == nil {
		params = url.Values{}
	}

	params.Set("token", c.token)

	return params.Encode()
}

func (c *Client) doJSON(ctx context.Context, method, reqURL string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("apify: close response body", "error", err)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: %d: %s", ErrUnexpectedStatus, resp.StatusCode, truncate(string(data), 512))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n]
}
