package websearch

import (
	"context"

	"github.com/connexus-ai/tailor-backend/internal/service"
)

// ServiceAdapter exposes a Searcher through the orchestrator's
// WebSearchClient interface.
type ServiceAdapter struct {
	searcher *Searcher
}

// NewServiceAdapter wraps a Searcher.
func NewServiceAdapter(s *Searcher) *ServiceAdapter {
	return &ServiceAdapter{searcher: s}
}

var _ service.WebSearchClient = (*ServiceAdapter)(nil)

func (a *ServiceAdapter) Available() bool {
	return a.searcher.Available()
}

func (a *ServiceAdapter) Search(ctx context.Context, query string, maxResults int) ([]service.WebResult, error) {
	resp, err := a.searcher.Search(ctx, query, SearchOptions{MaxResults: maxResults})
	if err != nil {
		return nil, err
	}
	out := make([]service.WebResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, service.WebResult{
			Title:       r.Title,
			URL:         r.URL,
			Snippet:     r.Snippet,
			Content:     r.RawContent,
			Score:       r.Score,
			PublishedAt: r.PublishedDate,
			Provider:    r.Provider,
		})
	}
	return out, nil
}
