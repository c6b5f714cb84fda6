package gcpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RerankClient calls a dedicated cross-encoder rerank API (Cohere-style
// /rerank endpoint). Implements service.CrossEncoder.
type RerankClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewRerankClient creates a RerankClient.
func NewRerankClient(apiKey, baseURL, model string) *RerankClient {
	if baseURL == "" {
		baseURL = "https://api.cohere.com/v2"
	}
	baseURL = strings.TrimRight(baseURL, "/")
	return &RerankClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank scores each passage against the query, returning calibrated
// relevance in [0,1], one score per input passage in input order.
func (c *RerankClient) Rerank(ctx context.Context, query string, passages []string) ([]float64, error) {
	return withRetry(ctx, "Rerank", func() ([]float64, error) {
		return c.doRerank(ctx, query, passages)
	})
}

func (c *RerankClient) doRerank(ctx context.Context, query string, passages []string) ([]float64, error) {
	body, err := json.Marshal(rerankRequest{
		Model:     c.model,
		Query:     query,
		Documents: passages,
		TopN:      len(passages),
	})
	if err != nil {
		return nil, fmt.Errorf("rerank: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("rerank: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank: request failed: %w", err)
	}
	defer resp.Body.Close()

	if isRetryableStatus(resp.StatusCode) {
		return nil, fmt.Errorf("rerank: status %d rate limit", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("rerank: unexpected status %d: %s", resp.StatusCode, truncateBody(respBody))
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("rerank: decode response: %w", err)
	}

	scores := make([]float64, len(passages))
	for _, r := range parsed.Results {
		if r.Index < 0 || r.Index >= len(scores) {
			return nil, fmt.Errorf("rerank: result index %d out of range", r.Index)
		}
		scores[r.Index] = r.RelevanceScore
	}
	return scores, nil
}
