// Package ai wraps the external text-embedding service behind an
// OpenAI-compatible HTTP client.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"docindex/internal/model"
)

const (
	maxAttempts  = 3
	retryBackoff = 500 * time.Millisecond
)

// EmbeddingClient calls an OpenAI-compatible /embeddings endpoint.
// Stateless: it holds only configuration and an HTTP client, so any
// number of callers may use it concurrently.
type EmbeddingClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	dimension  int
}

type EmbeddingOptions struct {
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int
	Timeout   time.Duration
}

func NewEmbeddingClient(opts EmbeddingOptions) *EmbeddingClient {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &EmbeddingClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		model:      opts.Model,
		dimension:  opts.Dimension,
	}
}

// Model returns the pinned embedding model identifier. Queries must use
// the same model the index was built with.
func (c *EmbeddingClient) Model() string { return c.model }

// Dimension returns the configured vector dimensionality.
func (c *EmbeddingClient) Dimension() int { return c.dimension }

// Embed returns the embedding vector for one text.
func (c *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: embedding input is empty", model.ErrValidation)
	}
	vectors, err := c.request(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: expected 1 embedding, got %d", model.ErrEmbeddingService, len(vectors))
	}
	return vectors[0], nil
}

// EmbedBatch returns embeddings for multiple texts, order-preserving.
func (c *EmbeddingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("%w: embedding batch contains empty text", model.ErrValidation)
		}
	}
	vectors, err := c.request(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", model.ErrEmbeddingService, len(texts), len(vectors))
	}
	return vectors, nil
}

// request posts to /embeddings with a small bounded retry. Transient
// faults get maxAttempts tries with doubling backoff; validation-class
// HTTP statuses (4xx) fail immediately.
func (c *EmbeddingClient) request(ctx context.Context, input any) ([][]float32, error) {
	reqBody := map[string]any{
		"model": c.model,
		"input": input,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request failed: %w", err)
	}

	var lastErr error
	backoff := retryBackoff
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		vectors, retryable, err := c.do(ctx, bodyBytes)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return nil, lastErr
}

func (c *EmbeddingClient) do(ctx context.Context, body []byte) (vectors [][]float32, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("build embedding request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %v", model.ErrEmbeddingService, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("%w: read response: %v", model.ErrEmbeddingService, err)
	}
	if resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("%w: status %d: %s", model.ErrEmbeddingService, resp.StatusCode, string(raw))
	}
	if resp.StatusCode >= 300 {
		return nil, false, fmt.Errorf("%w: status %d: %s", model.ErrEmbeddingService, resp.StatusCode, string(raw))
	}

	var parsed struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, false, fmt.Errorf("%w: parse response: %v", model.ErrEmbeddingService, err)
	}
	if len(parsed.Data) == 0 {
		return nil, false, fmt.Errorf("%w: empty embedding response", model.ErrEmbeddingService)
	}

	vectors = make([][]float32, len(parsed.Data))
	for i := range parsed.Data {
		if c.dimension > 0 && len(parsed.Data[i].Embedding) != c.dimension {
			return nil, false, fmt.Errorf("%w: embedding dimension %d, expected %d",
				model.ErrEmbeddingService, len(parsed.Data[i].Embedding), c.dimension)
		}
		vectors[i] = parsed.Data[i].Embedding
	}
	return vectors, false, nil
}
