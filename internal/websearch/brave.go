package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const braveBaseURL = "https://api.search.brave.com/res/v1/web/search"

// BraveProvider implements Provider against the Brave Search API.
// Brave returns no per-result score; rank position maps to 1/(1+rank).
type BraveProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewBraveProvider creates a BraveProvider. An empty apiKey leaves the
// provider unavailable.
func NewBraveProvider(apiKey string) *BraveProvider {
	return &BraveProvider{
		apiKey:  apiKey,
		baseURL: braveBaseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (p *BraveProvider) Name() string { return "brave" }

func (p *BraveProvider) IsAvailable() bool { return p.apiKey != "" }

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
			PageAge     string `json:"page_age"`
		} `json:"results"`
	} `json:"web"`
}

func (p *BraveProvider) Search(ctx context.Context, query string, opts SearchOptions) ([]Result, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(opts.MaxResults))

	req, err := http.NewRequestWithContext(ctx, "GET", p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("brave: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &transientError{fmt.Errorf("brave: request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, &transientError{fmt.Errorf("brave: server error: %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("brave: unexpected status %d: %s", resp.StatusCode, respBody)
	}

	var parsed braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("brave: decode response: %w", err)
	}

	results := make([]Result, 0, len(parsed.Web.Results))
	for rank, r := range parsed.Web.Results {
		if len(results) >= opts.MaxResults {
			break
		}
		result := Result{
			Title:    r.Title,
			URL:      r.URL,
			Snippet:  r.Description,
			Score:    1.0 / float64(1+rank),
			Provider: p.Name(),
		}
		if r.PageAge != "" {
			if t, err := time.Parse(time.RFC3339, r.PageAge); err == nil {
				result.PublishedDate = &t
			}
		}
		results = append(results, result)
	}
	return results, nil
}
