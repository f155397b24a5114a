package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestTavilySearch(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]string{
				{"title": "First", "url": "https://a.example", "content": "snippet a"},
				{"title": "Second", "url": "https://b.example", "content": "snippet b"},
				{"title": "Third", "url": "https://c.example", "content": "snippet c"},
			},
		})
	}))
	defer server.Close()

	provider := NewTavily("tvly-test", "basic").WithEndpoint(server.URL)
	results, err := provider.Search(context.Background(), Query{
		Text:       "history of the telephone",
		MaxResults: 2,
		Topic:      "general",
	})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2 (MaxResults bound)", len(results))
	}
	if results[0].Title != "First" || results[1].Title != "Second" {
		t.Errorf("results out of order: %+v", results)
	}

	if gotBody["query"] != "history of the telephone" {
		t.Errorf("query = %v", gotBody["query"])
	}
	if gotBody["max_results"] != float64(2) {
		t.Errorf("max_results = %v, want 2", gotBody["max_results"])
	}
	if gotBody["topic"] != "general" {
		t.Errorf("topic = %v, want general", gotBody["topic"])
	}
}

func TestTavilyRetriesOn429(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]string{
				{"title": "Done", "url": "https://d.example", "content": "ok"},
			},
		})
	}))
	defer server.Close()

	provider := NewTavily("tvly-test", "").WithEndpoint(server.URL)
	results, err := provider.Search(context.Background(), Query{Text: "q"})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2 (one retry)", calls.Load())
	}
	if len(results) != 1 || results[0].Title != "Done" {
		t.Errorf("unexpected results: %+v", results)
	}
}

func TestTavilyMissingKey(t *testing.T) {
	provider := NewTavily("", "basic")
	if _, err := provider.Search(context.Background(), Query{Text: "q"}); err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestTavilyHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	provider := NewTavily("tvly-test", "").WithEndpoint(server.URL)
	if _, err := provider.Search(context.Background(), Query{Text: "q"}); err == nil {
		t.Error("expected error for HTTP 502")
	}
}
