package websearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTavily_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("auth header = %q", auth)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[
			{"title":"Result One","url":"https://a.test","content":"snippet one","score":0.91,"published_date":"2025-06-01"},
			{"title":"Result Two","url":"https://b.test","content":"snippet two","score":0.42}
		]}`))
	}))
	defer srv.Close()

	p := NewTavilyProvider("test-key")
	p.baseURL = srv.URL

	results, err := p.Search(context.Background(), "query", SearchOptions{MaxResults: 5, SearchDepth: "basic"})
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d", len(results))
	}
	if results[0].Score != 0.91 || results[0].Provider != "tavily" {
		t.Errorf("result[0] = %+v", results[0])
	}
	if results[0].PublishedDate == nil {
		t.Error("published date not parsed")
	}
	if results[1].PublishedDate != nil {
		t.Error("missing published date should stay nil")
	}
}

func TestTavily_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewTavilyProvider("k")
	p.baseURL = srv.URL

	_, err := p.Search(context.Background(), "q", SearchOptions{MaxResults: 1, SearchDepth: "basic"})
	if err == nil || !IsTransient(err) {
		t.Errorf("error = %v, want transient", err)
	}
}

func TestBrave_Search_RankMapsToScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tok := r.Header.Get("X-Subscription-Token"); tok != "brave-key" {
			t.Errorf("token header = %q", tok)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"web":{"results":[
			{"title":"First","url":"https://1.test","description":"d1"},
			{"title":"Second","url":"https://2.test","description":"d2"},
			{"title":"Third","url":"https://3.test","description":"d3"}
		]}}`))
	}))
	defer srv.Close()

	p := NewBraveProvider("brave-key")
	p.baseURL = srv.URL

	results, err := p.Search(context.Background(), "q", SearchOptions{MaxResults: 2})
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want MaxResults cap of 2", len(results))
	}
	if results[0].Score != 1.0 {
		t.Errorf("rank 0 score = %v, want 1.0", results[0].Score)
	}
	if results[1].Score != 0.5 {
		t.Errorf("rank 1 score = %v, want 0.5", results[1].Score)
	}
}
