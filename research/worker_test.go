package research

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probeworks/deepscout/llm"
	"github.com/probeworks/deepscout/search"
)

func newTestWorker(provider *fakeProvider, searcher search.Provider, cap int) *Worker {
	return NewWorker(llm.NewClient(provider), NewToolbox(searcher), NewGuard(cap))
}

func TestWorkerBudgetForcesStop(t *testing.T) {
	provider := &fakeProvider{onTools: toolRespondSearching()}
	worker := newTestWorker(provider, &fakeSearcher{}, 2)

	finding, err := worker.Research(context.Background(), "quantum error correction")

	require.NoError(t, err)
	// Cap of 2 allows exactly 3 reasoning rounds.
	assert.Equal(t, 3, provider.toolCallCount())
	assert.True(t, finding.Truncated)
	assert.Len(t, finding.RawNotes, 3)
	assert.Equal(t, "quantum error correction", finding.Topic)
}

func TestWorkerConcludesEarly(t *testing.T) {
	turn := 0
	provider := &fakeProvider{onTools: func([]llm.ChatMessage) (llm.LLMResponse, error) {
		turn++
		if turn == 1 {
			return llm.LLMResponse{ToolCalls: []llm.ToolCall{searchCall("c1", "q")}}, nil
		}
		return llm.LLMResponse{ToolCalls: []llm.ToolCall{completeCall("c2")}}, nil
	}}
	worker := newTestWorker(provider, &fakeSearcher{}, 10)

	finding, err := worker.Research(context.Background(), "topic")

	require.NoError(t, err)
	assert.Equal(t, 2, provider.toolCallCount())
	assert.False(t, finding.Truncated)
	assert.Len(t, finding.RawNotes, 1)
}

func TestWorkerPlainTextResponseConcludes(t *testing.T) {
	provider := &fakeProvider{onTools: func([]llm.ChatMessage) (llm.LLMResponse, error) {
		return llm.LLMResponse{Content: "I already know this."}, nil
	}}
	worker := newTestWorker(provider, &fakeSearcher{}, 5)

	finding, err := worker.Research(context.Background(), "topic")

	require.NoError(t, err)
	assert.Equal(t, 1, provider.toolCallCount())
	assert.False(t, finding.Truncated)
	assert.Empty(t, finding.RawNotes)
	assert.NotEmpty(t, finding.Summary)
}

func TestWorkerTwoSearchesThenConclude(t *testing.T) {
	turn := 0
	provider := &fakeProvider{onTools: func([]llm.ChatMessage) (llm.LLMResponse, error) {
		turn++
		switch turn {
		case 1:
			return llm.LLMResponse{ToolCalls: []llm.ToolCall{searchCall("c1", "invention of the telephone")}}, nil
		case 2:
			return llm.LLMResponse{ToolCalls: []llm.ToolCall{searchCall("c2", "bell vs gray patent dispute")}}, nil
		default:
			return llm.LLMResponse{ToolCalls: []llm.ToolCall{completeCall("c3")}}, nil
		}
	}}
	searcher := &fakeSearcher{results: []search.Result{{Title: "t", URL: "u", Snippet: "s"}}}
	worker := newTestWorker(provider, searcher, 3)

	finding, err := worker.Research(context.Background(), "history of the telephone")

	require.NoError(t, err)
	assert.Len(t, finding.RawNotes, 2)
	assert.False(t, finding.Truncated)
	// Concluded on the third of four permitted rounds.
	assert.Equal(t, 3, provider.toolCallCount())
}

func TestWorkerSiblingCallsOfConcludingTurnStillRun(t *testing.T) {
	provider := &fakeProvider{onTools: func([]llm.ChatMessage) (llm.LLMResponse, error) {
		return llm.LLMResponse{ToolCalls: []llm.ToolCall{
			searchCall("c1", "last question"),
			completeCall("c2"),
		}}, nil
	}}
	searcher := &fakeSearcher{results: []search.Result{{Title: "t", URL: "u", Snippet: "s"}}}
	worker := newTestWorker(provider, searcher, 5)

	finding, err := worker.Research(context.Background(), "topic")

	require.NoError(t, err)
	assert.Len(t, searcher.queries, 1)
	assert.Len(t, finding.RawNotes, 1)
	assert.False(t, finding.Truncated)
}

func TestWorkerToolErrorsAreData(t *testing.T) {
	turn := 0
	provider := &fakeProvider{onTools: func([]llm.ChatMessage) (llm.LLMResponse, error) {
		turn++
		if turn < 3 {
			return llm.LLMResponse{ToolCalls: []llm.ToolCall{searchCall("c", "q")}}, nil
		}
		return llm.LLMResponse{ToolCalls: []llm.ToolCall{completeCall("done")}}, nil
	}}
	searcher := &fakeSearcher{err: errors.New("backend down")}
	worker := newTestWorker(provider, searcher, 10)

	finding, err := worker.Research(context.Background(), "topic")

	// Dispatch failures never abort the loop.
	require.NoError(t, err)
	assert.Equal(t, 3, provider.toolCallCount())
	require.Len(t, finding.RawNotes, 2)
	assert.Contains(t, finding.RawNotes[0], "search failed")
}

func TestWorkerInferenceErrorPropagates(t *testing.T) {
	provider := &fakeProvider{onTools: func([]llm.ChatMessage) (llm.LLMResponse, error) {
		return llm.LLMResponse{}, errors.New("401 unauthorized")
	}}
	worker := newTestWorker(provider, &fakeSearcher{}, 5)

	_, err := worker.Research(context.Background(), "topic")

	var infErr *InferenceError
	require.ErrorAs(t, err, &infErr)
	assert.Equal(t, "decide", infErr.Stage)
}

func TestWorkerCompressErrorPropagates(t *testing.T) {
	provider := &fakeProvider{
		onTools: func([]llm.ChatMessage) (llm.LLMResponse, error) {
			return llm.LLMResponse{ToolCalls: []llm.ToolCall{completeCall("c1")}}, nil
		},
		onChat: func([]llm.ChatMessage) (llm.LLMResponse, error) {
			return llm.LLMResponse{}, errors.New("timeout")
		},
	}
	worker := newTestWorker(provider, &fakeSearcher{}, 5)

	_, err := worker.Research(context.Background(), "topic")

	var infErr *InferenceError
	require.ErrorAs(t, err, &infErr)
	assert.Equal(t, "compress", infErr.Stage)
}

func TestWorkerEmptySummaryFallback(t *testing.T) {
	provider := &fakeProvider{
		onTools: func([]llm.ChatMessage) (llm.LLMResponse, error) {
			return llm.LLMResponse{ToolCalls: []llm.ToolCall{completeCall("c1")}}, nil
		},
		onChat: func([]llm.ChatMessage) (llm.LLMResponse, error) {
			return llm.LLMResponse{Content: "   "}, nil
		},
	}
	worker := newTestWorker(provider, &fakeSearcher{}, 5)

	finding, err := worker.Research(context.Background(), "topic")

	require.NoError(t, err)
	assert.NotEmpty(t, finding.Summary)
}

func TestWorkerIsSingleUse(t *testing.T) {
	provider := &fakeProvider{onTools: func([]llm.ChatMessage) (llm.LLMResponse, error) {
		return llm.LLMResponse{ToolCalls: []llm.ToolCall{completeCall("c1")}}, nil
	}}
	worker := newTestWorker(provider, &fakeSearcher{}, 5)

	_, err := worker.Research(context.Background(), "topic")
	require.NoError(t, err)

	_, err = worker.Research(context.Background(), "another topic")
	assert.ErrorIs(t, err, ErrWorkerConsumed)
}

func TestWorkerRejectsEmptyTopic(t *testing.T) {
	worker := newTestWorker(&fakeProvider{}, &fakeSearcher{}, 5)

	_, err := worker.Research(context.Background(), "   ")

	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestWorkerCompressionSeesFullConversation(t *testing.T) {
	provider := &fakeProvider{
		onTools: func([]llm.ChatMessage) (llm.LLMResponse, error) {
			return llm.LLMResponse{ToolCalls: []llm.ToolCall{completeCall("c1")}}, nil
		},
	}
	worker := newTestWorker(provider, &fakeSearcher{}, 5)

	_, err := worker.Research(context.Background(), "dark matter halos")
	require.NoError(t, err)

	require.Len(t, provider.chatCalls, 1)
	compress := provider.chatCalls[0]
	assert.Equal(t, "system", compress[0].Role)
	assert.NotContains(t, compress[0].Content, "research_complete")

	var sawTopic bool
	for _, m := range compress {
		if m.Role == "user" && m.Content == "dark matter halos" {
			sawTopic = true
		}
	}
	assert.True(t, sawTopic, "compression conversation should include the original topic")
}
