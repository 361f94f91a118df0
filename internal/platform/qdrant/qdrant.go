// Package qdrant is a minimal REST client for the Qdrant vector index.
// It assumes cosine distance. Writes use wait=true so a successful
// insert is visible to the very next search.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"docindex/internal/model"
)

type Client struct {
	baseURL    string
	apiKey     string
	collection string
	httpClient *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// Point is one stored vector with its payload.
type Point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// ScoredPoint is a similarity-search hit.
type ScoredPoint struct {
	Point
	Score float64 `json:"score"`
}

// Filter is a conjunction of equality matches on payload fields.
type Filter map[string]any

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// EnsureCollection creates the collection if missing and verifies an
// existing one declares the expected vector dimension. A mismatch is a
// fatal configuration error: ingestion and query must share one model.
func (c *Client) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}

	var info struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	status, err := c.doJSON(ctx, http.MethodGet, c.collectionURL(""), nil, &info)
	if err != nil {
		return err
	}
	switch {
	case status == http.StatusOK:
		if got := info.Result.Config.Params.Vectors.Size; got != dimension {
			return fmt.Errorf("collection %q declares dimension %d, config says %d", c.collection, got, dimension)
		}
		return nil
	case status == http.StatusNotFound:
		// Only a definitive "missing" takes the create path. A sick
		// server must not be answered with a create attempt.
	default:
		return fmt.Errorf("get collection %q failed: status %d", c.collection, status)
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	status, err = c.doJSON(ctx, http.MethodPut, c.collectionURL(""), body, nil)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("create collection %q failed: status %d", c.collection, status)
	}
	return nil
}

// Upsert writes points in one call and waits for them to be indexed.
func (c *Client) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	body := map[string]any{"points": points}
	status, err := c.doJSON(ctx, http.MethodPut, c.collectionURL("/points?wait=true"), body, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrIndexWrite, err)
	}
	if status >= 300 {
		return fmt.Errorf("%w: upsert status %d", model.ErrIndexWrite, status)
	}
	return nil
}

// Search returns the top-limit points by cosine similarity, optionally
// constrained by an equality filter. Hit order is Qdrant's native order;
// ties are not renormalized.
func (c *Client) Search(ctx context.Context, vector []float32, limit int, filter Filter) ([]ScoredPoint, error) {
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if f := filterClause(filter); f != nil {
		req["filter"] = f
	}

	var resp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	status, err := c.doJSON(ctx, http.MethodPost, c.collectionURL("/points/search"), req, &resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrIndexRead, err)
	}
	if status >= 300 {
		return nil, fmt.Errorf("%w: search status %d", model.ErrIndexRead, status)
	}

	hits := make([]ScoredPoint, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, ScoredPoint{
			Point: Point{ID: fmt.Sprint(r.ID), Payload: r.Payload},
			Score: r.Score,
		})
	}
	return hits, nil
}

// Scroll pages through points matching the filter, without vectors.
func (c *Client) Scroll(ctx context.Context, filter Filter, limit int) ([]Point, error) {
	var points []Point
	var offset any
	for {
		req := map[string]any{
			"limit":        limit,
			"with_payload": true,
		}
		if f := filterClause(filter); f != nil {
			req["filter"] = f
		}
		if offset != nil {
			req["offset"] = offset
		}

		var resp struct {
			Result struct {
				Points []struct {
					ID      any            `json:"id"`
					Payload map[string]any `json:"payload"`
				} `json:"points"`
				NextPageOffset any `json:"next_page_offset"`
			} `json:"result"`
		}
		status, err := c.doJSON(ctx, http.MethodPost, c.collectionURL("/points/scroll"), req, &resp)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrIndexRead, err)
		}
		if status >= 300 {
			return nil, fmt.Errorf("%w: scroll status %d", model.ErrIndexRead, status)
		}

		for _, p := range resp.Result.Points {
			points = append(points, Point{ID: fmt.Sprint(p.ID), Payload: p.Payload})
		}
		// An empty page ends the scroll even with an offset still set;
		// a server echoing offsets forever must not loop us.
		if resp.Result.NextPageOffset == nil || len(resp.Result.Points) == 0 {
			return points, nil
		}
		offset = resp.Result.NextPageOffset
	}
}

// DeletePoints removes the given point ids in one batched call.
func (c *Client) DeletePoints(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	body := map[string]any{"points": ids}
	status, err := c.doJSON(ctx, http.MethodPost, c.collectionURL("/points/delete?wait=true"), body, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrIndexWrite, err)
	}
	if status >= 300 {
		return fmt.Errorf("%w: delete status %d", model.ErrIndexWrite, status)
	}
	return nil
}

// Ping checks the collection is reachable.
func (c *Client) Ping(ctx context.Context) error {
	status, err := c.doJSON(ctx, http.MethodGet, c.collectionURL(""), nil, nil)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("qdrant collection %q: status %d", c.collection, status)
	}
	return nil
}

func (c *Client) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", c.baseURL, c.collection, suffix)
}

func filterClause(filter Filter) map[string]any {
	if len(filter) == 0 {
		return nil
	}
	must := make([]map[string]any, 0, len(filter))
	for key, value := range filter {
		must = append(must, map[string]any{
			"key":   key,
			"match": map[string]any{"value": value},
		})
	}
	return map[string]any{"must": must}
}

func (c *Client) doJSON(ctx context.Context, method, url string, body any, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request failed: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, fmt.Errorf("build request failed: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("qdrant %s %s failed: %w", method, url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read qdrant response failed: %w", err)
	}
	if out != nil && resp.StatusCode < 300 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, fmt.Errorf("parse qdrant response failed: %w", err)
		}
	}
	return resp.StatusCode, nil
}
