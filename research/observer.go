// Observability hook points for research loops.
//
// The core reports every capability call through an Observer; it defines the
// hooks, not the log format. See internal/logging for the zap-backed
// implementation.

package research

import (
	"encoding/json"

	"github.com/probeworks/deepscout/llm"
)

// Observer receives callbacks for every reasoning-engine call and tool
// dispatch. Implementations must be safe for concurrent use: workers run in
// parallel and share one observer.
type Observer interface {
	// InferenceCompleted is called after each reasoning-engine call.
	// Stage is one of "decide", "compress", "brief", "synthesize".
	InferenceCompleted(stage string, usage *llm.TokenUsage, err error)

	// ToolDispatched is called after each tool dispatch with the result,
	// including error results.
	ToolDispatched(name string, args json.RawMessage, result ToolResult)
}

// NopObserver discards all callbacks. It is the default.
type NopObserver struct{}

func (NopObserver) InferenceCompleted(string, *llm.TokenUsage, error) {}

func (NopObserver) ToolDispatched(string, json.RawMessage, ToolResult) {}

var _ Observer = NopObserver{}
