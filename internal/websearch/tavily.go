package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const tavilyBaseURL = "https://api.tavily.com"

// TavilyProvider implements Provider against the Tavily search API.
type TavilyProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewTavilyProvider creates a TavilyProvider. An empty apiKey leaves the
// provider unavailable.
func NewTavilyProvider(apiKey string) *TavilyProvider {
	return &TavilyProvider{
		apiKey:  apiKey,
		baseURL: tavilyBaseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (p *TavilyProvider) Name() string { return "tavily" }

func (p *TavilyProvider) IsAvailable() bool { return p.apiKey != "" }

type tavilyRequest struct {
	Query          string   `json:"query"`
	SearchDepth    string   `json:"search_depth"`
	MaxResults     int      `json:"max_results"`
	IncludeDomains []string `json:"include_domains,omitempty"`
	ExcludeDomains []string `json:"exclude_domains,omitempty"`
	IncludeRawContent bool  `json:"include_raw_content"`
}

type tavilyResponse struct {
	Results []struct {
		Title         string  `json:"title"`
		URL           string  `json:"url"`
		Content       string  `json:"content"`
		Score         float64 `json:"score"`
		RawContent    string  `json:"raw_content"`
		PublishedDate string  `json:"published_date"`
	} `json:"results"`
}

// Search issues one Tavily query. Tavily scores are already in [0,1].
func (p *TavilyProvider) Search(ctx context.Context, query string, opts SearchOptions) ([]Result, error) {
	body, err := json.Marshal(tavilyRequest{
		Query:          query,
		SearchDepth:    opts.SearchDepth,
		MaxResults:     opts.MaxResults,
		IncludeDomains: opts.IncludeDomains,
		ExcludeDomains: opts.ExcludeDomains,
	})
	if err != nil {
		return nil, fmt.Errorf("tavily: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tavily: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &transientError{fmt.Errorf("tavily: request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, &transientError{fmt.Errorf("tavily: server error: %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("tavily: unexpected status %d: %s", resp.StatusCode, respBody)
	}

	var parsed tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("tavily: decode response: %w", err)
	}

	results := make([]Result, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		result := Result{
			Title:      r.Title,
			URL:        r.URL,
			Snippet:    r.Content,
			Score:      r.Score,
			RawContent: r.RawContent,
			Provider:   p.Name(),
		}
		if r.PublishedDate != "" {
			if t, err := time.Parse("2006-01-02", r.PublishedDate); err == nil {
				result.PublishedDate = &t
			}
		}
		results = append(results, result)
	}
	return results, nil
}
