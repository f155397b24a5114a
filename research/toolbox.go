// Tool Dispatcher - closed dispatch table for research tools.
//
// Information Hiding:
// - Search result formatting and truncation hidden
// - Argument validation per tool hidden
//
// Dispatch failures are returned as error ToolResults, never as Go errors:
// the reasoning engine must be able to see a failure and recover on its next
// turn.

package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/probeworks/deepscout/llm"
	"github.com/probeworks/deepscout/search"
)

// Tool names understood by the dispatcher. ToolComplete is recognized at the
// worker boundary and never dispatched.
const (
	ToolSearch   = "search"
	ToolThink    = "think"
	ToolComplete = "research_complete"
)

const (
	// defaultMaxToolContent bounds the content of a single tool result
	// before it is placed back into the conversation.
	defaultMaxToolContent = 16 * 1024
	// defaultSearchResults is the per-search result bound.
	defaultSearchResults = 3
	// maxSnippetLength bounds each formatted search snippet.
	maxSnippetLength = 1500
)

// ToolResult is the outcome of one tool dispatch, appended back into the
// conversation as a tool message.
type ToolResult struct {
	CallID  string
	Content string
	IsError bool
}

// Toolbox dispatches tool calls emitted by the reasoning engine.
type Toolbox struct {
	searcher      search.Provider
	maxResults    int
	maxContentLen int
	observer      Observer
}

// NewToolbox creates a toolbox over the given search capability.
func NewToolbox(searcher search.Provider) *Toolbox {
	return &Toolbox{
		searcher:      searcher,
		maxResults:    defaultSearchResults,
		maxContentLen: defaultMaxToolContent,
		observer:      NopObserver{},
	}
}

// WithMaxResults overrides the per-search result bound.
func (b *Toolbox) WithMaxResults(n int) *Toolbox {
	if n > 0 {
		b.maxResults = n
	}
	return b
}

// WithObserver sets the dispatch observer.
func (b *Toolbox) WithObserver(observer Observer) *Toolbox {
	if observer != nil {
		b.observer = observer
	}
	return b
}

// Definitions returns the tool descriptors advertised to the reasoning
// engine.
func (b *Toolbox) Definitions() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Name:        ToolSearch,
			Description: "Search the web for information on a query. Returns titles, URLs and content snippets.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{
						"type":        "string",
						"description": "The search query",
					},
					"max_results": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of results to return",
					},
					"topic": map[string]interface{}{
						"type":        "string",
						"description": "Topic category: general or news",
					},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        ToolThink,
			Description: "Record a reflection about what you have learned so far and what is still missing. Takes no external action.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"reflection": map[string]interface{}{
						"type":        "string",
						"description": "Your reflection on progress and gaps",
					},
				},
				"required": []string{"reflection"},
			},
		},
		{
			Name:        ToolComplete,
			Description: "Signal that enough information has been gathered to answer the research topic.",
			Parameters: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
				"required":   []string{},
			},
		},
	}
}

// Dispatch executes one tool call. Failures become error ToolResults.
func (b *Toolbox) Dispatch(ctx context.Context, call llm.ToolCall) ToolResult {
	var result ToolResult
	switch call.Name {
	case ToolSearch:
		result = b.dispatchSearch(ctx, call)
	case ToolThink:
		result = b.dispatchThink(call)
	default:
		result = errorResult(call.ID, fmt.Errorf("tool %q not found", call.Name))
	}

	result.Content = truncate(result.Content, b.maxContentLen)
	b.observer.ToolDispatched(call.Name, call.Arguments, result)
	return result
}

// DispatchAll executes the tool calls of one assistant turn. Sibling calls
// run concurrently; results are returned in call order.
func (b *Toolbox) DispatchAll(ctx context.Context, calls []llm.ToolCall) []ToolResult {
	results := make([]ToolResult, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call llm.ToolCall) {
			defer wg.Done()
			results[i] = b.Dispatch(ctx, call)
		}(i, call)
	}
	wg.Wait()

	return results
}

type searchArgs struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
	Topic      string `json:"topic"`
}

func (b *Toolbox) dispatchSearch(ctx context.Context, call llm.ToolCall) ToolResult {
	var args searchArgs
	if err := json.Unmarshal(call.Arguments, &args); err != nil {
		return errorResult(call.ID, fmt.Errorf("invalid search arguments: %w", err))
	}
	if strings.TrimSpace(args.Query) == "" {
		return errorResult(call.ID, fmt.Errorf("search query cannot be empty"))
	}

	maxResults := args.MaxResults
	if maxResults <= 0 || maxResults > b.maxResults {
		maxResults = b.maxResults
	}

	results, err := b.searcher.Search(ctx, search.Query{
		Text:       args.Query,
		MaxResults: maxResults,
		Topic:      args.Topic,
	})
	if err != nil {
		return errorResult(call.ID, fmt.Errorf("search failed: %w", err))
	}

	return ToolResult{CallID: call.ID, Content: formatSearchResults(args.Query, results)}
}

type thinkArgs struct {
	Reflection string `json:"reflection"`
}

func (b *Toolbox) dispatchThink(call llm.ToolCall) ToolResult {
	var args thinkArgs
	if err := json.Unmarshal(call.Arguments, &args); err != nil {
		return errorResult(call.ID, fmt.Errorf("invalid think arguments: %w", err))
	}
	if strings.TrimSpace(args.Reflection) == "" {
		return errorResult(call.ID, fmt.Errorf("reflection cannot be empty"))
	}

	// Pure pass-through: the note re-enters the conversation so it shapes
	// the engine's next decision.
	return ToolResult{CallID: call.ID, Content: fmt.Sprintf("Reflection recorded: %s", args.Reflection)}
}

// formatSearchResults renders an ordered result list as a bounded text block.
func formatSearchResults(query string, results []search.Result) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for %q.", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Search results for %q:\n", query)
	for i, r := range results {
		fmt.Fprintf(&sb, "\n%d. %s\n   %s\n   %s\n", i+1, r.Title, r.URL, truncate(r.Snippet, maxSnippetLength))
	}
	return sb.String()
}

func errorResult(callID string, err error) ToolResult {
	return ToolResult{CallID: callID, Content: fmt.Sprintf("Error: %v", err), IsError: true}
}

// truncate bounds s to max bytes, marking the cut. The cut backs up to a
// rune boundary so no invalid UTF-8 re-enters the conversation.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n... [truncated]"
}
