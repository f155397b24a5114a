// Package search provides web search capabilities for research agents.
//
// Information Hiding:
// - HTTP transport and authentication per provider
// - Provider-specific request/response formats
// - Rate-limit backoff behavior
package search

import "context"

// Result is a single item returned by a Provider.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Query describes one search request.
type Query struct {
	// Text is the search query.
	Text string
	// MaxResults bounds the number of results returned. Zero means the
	// provider default.
	MaxResults int
	// Topic optionally narrows the search category ("general", "news", ...).
	Topic string
}

// Provider executes a query and returns results in relevance order.
type Provider interface {
	Search(ctx context.Context, query Query) ([]Result, error)
}
