package websearch

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type stubProvider struct {
	name      string
	available bool
	results   []Result
	err       error
	calls     int
}

func (s *stubProvider) Name() string      { return s.name }
func (s *stubProvider) IsAvailable() bool { return s.available }
func (s *stubProvider) Search(ctx context.Context, query string, opts SearchOptions) ([]Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func TestSearcher_PrimaryWins(t *testing.T) {
	primary := &stubProvider{name: "primary", available: true, results: []Result{{Title: "a", URL: "u", Score: 0.8}}}
	fallback := &stubProvider{name: "fallback", available: true}
	s := NewSearcher(primary, fallback)
	s.minGap = 0

	resp, err := s.Search(context.Background(), "q", SearchOptions{})
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if resp.Provider != "primary" || len(resp.Results) != 1 {
		t.Errorf("resp = %+v", resp)
	}
	if fallback.calls != 0 {
		t.Error("fallback should not be called when primary succeeds")
	}
}

func TestSearcher_FailoverOnTransient(t *testing.T) {
	primary := &stubProvider{name: "primary", available: true, err: &transientError{fmt.Errorf("server error: 503")}}
	fallback := &stubProvider{name: "fallback", available: true, results: []Result{{Title: "b", URL: "u2", Score: 0.5}}}
	s := NewSearcher(primary, fallback)
	s.minGap = 0

	resp, err := s.Search(context.Background(), "q", SearchOptions{})
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if resp.Provider != "fallback" {
		t.Errorf("provider = %q, want fallback", resp.Provider)
	}
}

func TestSearcher_NonTransientStops(t *testing.T) {
	primary := &stubProvider{name: "primary", available: true, err: fmt.Errorf("bad request: 400")}
	fallback := &stubProvider{name: "fallback", available: true}
	s := NewSearcher(primary, fallback)
	s.minGap = 0

	if _, err := s.Search(context.Background(), "q", SearchOptions{}); err == nil {
		t.Fatal("expected error")
	}
	if fallback.calls != 0 {
		t.Error("non-transient errors must not fail over")
	}
}

func TestSearcher_NoProviderAvailable(t *testing.T) {
	s := NewSearcher(&stubProvider{name: "a"}, &stubProvider{name: "b"})
	s.minGap = 0

	_, err := s.Search(context.Background(), "q", SearchOptions{})
	if !errors.Is(err, ErrNoProviderAvailable) {
		t.Errorf("error = %v, want ErrNoProviderAvailable", err)
	}
	if s.Available() {
		t.Error("Available should be false with no configured providers")
	}
}

func TestSearcher_AllTransientFail(t *testing.T) {
	a := &stubProvider{name: "a", available: true, err: &transientError{fmt.Errorf("down")}}
	b := &stubProvider{name: "b", available: true, err: &transientError{fmt.Errorf("down too")}}
	s := NewSearcher(a, b)
	s.minGap = 0

	_, err := s.Search(context.Background(), "q", SearchOptions{})
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrNoProviderAvailable) {
		t.Error("configured-but-failing providers are not NO_PROVIDER_AVAILABLE")
	}
}

func TestSearcher_ScoresClamped(t *testing.T) {
	p := &stubProvider{name: "p", available: true, results: []Result{
		{Title: "hot", URL: "u1", Score: 3.2},
		{Title: "cold", URL: "u2", Score: -1},
	}}
	s := NewSearcher(p)
	s.minGap = 0

	resp, err := s.Search(context.Background(), "q", SearchOptions{})
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	for _, r := range resp.Results {
		if r.Score < 0 || r.Score > 1 {
			t.Errorf("score %v outside [0,1]", r.Score)
		}
	}
}

func TestProviders_Availability(t *testing.T) {
	if NewTavilyProvider("").IsAvailable() {
		t.Error("tavily without key should be unavailable")
	}
	if !NewTavilyProvider("k").IsAvailable() {
		t.Error("tavily with key should be available")
	}
	if NewBraveProvider("").IsAvailable() {
		t.Error("brave without key should be unavailable")
	}
	if !NewBraveProvider("k").IsAvailable() {
		t.Error("brave with key should be available")
	}
}
