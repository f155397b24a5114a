package research

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/probeworks/deepscout/llm"
	"github.com/probeworks/deepscout/search"
)

// fakeProvider scripts reasoning-engine behavior per entry point. Callbacks
// receive the full conversation so tests can branch on message content.
// Safe for concurrent use; every call is recorded.
type fakeProvider struct {
	mu       sync.Mutex
	onChat   func(messages []llm.ChatMessage) (llm.LLMResponse, error)
	onFormat func(messages []llm.ChatMessage) (llm.LLMResponse, error)
	onTools  func(messages []llm.ChatMessage) (llm.LLMResponse, error)

	chatCalls   [][]llm.ChatMessage
	formatCalls [][]llm.ChatMessage
	toolCalls   [][]llm.ChatMessage
}

func (f *fakeProvider) Name() string  { return "fake" }
func (f *fakeProvider) Model() string { return "fake-model" }

func (f *fakeProvider) Chat(_ context.Context, messages []llm.ChatMessage) (llm.LLMResponse, error) {
	f.mu.Lock()
	f.chatCalls = append(f.chatCalls, messages)
	f.mu.Unlock()
	if f.onChat == nil {
		return llm.LLMResponse{Content: "summary"}, nil
	}
	return f.onChat(messages)
}

func (f *fakeProvider) ChatWithFormat(_ context.Context, messages []llm.ChatMessage, _ *llm.ResponseFormat) (llm.LLMResponse, error) {
	f.mu.Lock()
	f.formatCalls = append(f.formatCalls, messages)
	f.mu.Unlock()
	if f.onFormat == nil {
		return llm.LLMResponse{Content: "{}"}, nil
	}
	return f.onFormat(messages)
}

func (f *fakeProvider) ChatWithTools(_ context.Context, messages []llm.ChatMessage, _ []llm.ToolDefinition) (llm.LLMResponse, error) {
	f.mu.Lock()
	f.toolCalls = append(f.toolCalls, messages)
	f.mu.Unlock()
	if f.onTools == nil {
		return llm.LLMResponse{Content: "done"}, nil
	}
	return f.onTools(messages)
}

func (f *fakeProvider) toolCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.toolCalls)
}

var _ llm.Provider = (*fakeProvider)(nil)

// fakeSearcher scripts search results and records every query.
type fakeSearcher struct {
	mu      sync.Mutex
	results []search.Result
	err     error
	queries []search.Query
}

func (f *fakeSearcher) Search(_ context.Context, q search.Query) ([]search.Result, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

var _ search.Provider = (*fakeSearcher)(nil)

func searchCall(id, query string) llm.ToolCall {
	args, _ := json.Marshal(map[string]string{"query": query})
	return llm.ToolCall{ID: id, Name: ToolSearch, Arguments: args}
}

func completeCall(id string) llm.ToolCall {
	return llm.ToolCall{ID: id, Name: ToolComplete, Arguments: json.RawMessage(`{}`)}
}

// userContent returns the content of the first user message in a
// conversation, or "". For worker conversations that is the topic.
func userContent(messages []llm.ChatMessage) string {
	for _, m := range messages {
		if m.Role == "user" {
			return m.Content
		}
	}
	return ""
}

// toolRespond always emits one search call with a unique ID per turn.
func toolRespondSearching() func([]llm.ChatMessage) (llm.LLMResponse, error) {
	var n int
	var mu sync.Mutex
	return func([]llm.ChatMessage) (llm.LLMResponse, error) {
		mu.Lock()
		n++
		id := fmt.Sprintf("call-%d", n)
		mu.Unlock()
		return llm.LLMResponse{ToolCalls: []llm.ToolCall{searchCall(id, "query")}}, nil
	}
}
