// Research Worker - single-topic decide/act/observe loop.
//
// Information Hiding:
// - Conversation accumulation hidden
// - Iteration accounting hidden behind the Guard
// - Compression phase hidden; callers see only the Finding
//
// The worker is single-use: one topic in, one Finding out.

package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/probeworks/deepscout/llm"
)

// Worker investigates one topic by alternating between reasoning-engine
// calls and tool dispatch until the engine concludes or the budget runs out.
type Worker struct {
	client   *llm.Client
	toolbox  *Toolbox
	guard    Guard
	observer Observer
	consumed bool
}

// NewWorker creates a single-use worker. Cap bounds the number of reasoning
// rounds; see Guard.
func NewWorker(client *llm.Client, toolbox *Toolbox, guard Guard) *Worker {
	return &Worker{
		client:   client,
		toolbox:  toolbox,
		guard:    guard,
		observer: NopObserver{},
	}
}

// WithObserver sets the observer for inference callbacks. Tool dispatch
// callbacks are configured on the Toolbox.
func (w *Worker) WithObserver(observer Observer) *Worker {
	if observer != nil {
		w.observer = observer
	}
	return w
}

// Research runs the loop for topic and returns the compressed Finding.
// A worker researches at most once; subsequent calls return
// ErrWorkerConsumed.
func (w *Worker) Research(ctx context.Context, topic string) (Finding, error) {
	if w.consumed {
		return Finding{}, ErrWorkerConsumed
	}
	w.consumed = true

	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Finding{}, ErrEmptyQuery
	}

	messages := []llm.ChatMessage{
		llm.SystemMessage(fmt.Sprintf(researcherSystemPrompt, w.guard.Cap()+1)),
		llm.UserMessage(topic),
	}

	var rawNotes []string
	concluded := false

	state := w.guard.Start()
	for {
		state = w.guard.Record(state)

		response, err := w.client.ChatWithTools(ctx, messages, w.toolbox.Definitions())
		w.observer.InferenceCompleted("decide", response.Usage, err)
		if err != nil {
			return Finding{}, &InferenceError{Stage: "decide", Err: err}
		}

		messages = append(messages, llm.ChatMessage{
			Role:      "assistant",
			Content:   response.Content,
			ToolCalls: response.ToolCalls,
		})

		if len(response.ToolCalls) == 0 {
			// The engine answered in plain text instead of calling a
			// tool. Treat it as a conclusion.
			concluded = true
			break
		}

		// Conclusion is recognized here, not dispatched. Sibling calls in
		// the same turn still execute so their results are not lost.
		var pending []llm.ToolCall
		var concludeIDs []string
		for _, call := range response.ToolCalls {
			if call.Name == ToolComplete {
				concludeIDs = append(concludeIDs, call.ID)
				continue
			}
			pending = append(pending, call)
		}

		results := w.toolbox.DispatchAll(ctx, pending)
		for _, result := range results {
			messages = append(messages, llm.ToolResultMessage(result.CallID, result.Content))
			rawNotes = append(rawNotes, result.Content)
		}
		for _, id := range concludeIDs {
			messages = append(messages, llm.ToolResultMessage(id, "Research concluded."))
		}

		if len(concludeIDs) > 0 {
			concluded = true
			break
		}
		if !w.guard.ShouldContinue(state) {
			break
		}
	}

	summary, err := w.compress(ctx, messages)
	if err != nil {
		return Finding{}, err
	}

	return Finding{
		Topic:     topic,
		Summary:   summary,
		RawNotes:  rawNotes,
		Truncated: !concluded,
	}, nil
}

// compress replaces the researcher's system prompt with the compression
// prompt and asks for a final summary over the accumulated conversation.
func (w *Worker) compress(ctx context.Context, messages []llm.ChatMessage) (string, error) {
	compressMessages := make([]llm.ChatMessage, 0, len(messages)+1)
	compressMessages = append(compressMessages, llm.SystemMessage(compressionPrompt))
	compressMessages = append(compressMessages, messages[1:]...)
	compressMessages = append(compressMessages, llm.UserMessage("Summarize the research findings above."))

	summary, usage, err := w.client.ChatWithUsage(ctx, compressMessages)
	w.observer.InferenceCompleted("compress", usage, err)
	if err != nil {
		return "", &InferenceError{Stage: "compress", Err: err}
	}

	if strings.TrimSpace(summary) == "" {
		summary = "No findings were recorded for this topic."
	}
	return summary, nil
}
