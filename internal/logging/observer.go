package logging

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/probeworks/deepscout/llm"
	"github.com/probeworks/deepscout/research"
)

// maxLoggedArgs bounds tool arguments in log lines.
const maxLoggedArgs = 512

// Observer logs inference calls and tool dispatches through zap. Safe for
// concurrent use.
type Observer struct {
	log *zap.Logger
}

// NewObserver creates a research.Observer backed by the given logger.
func NewObserver(log *zap.Logger) *Observer {
	return &Observer{log: log}
}

func (o *Observer) InferenceCompleted(stage string, usage *llm.TokenUsage, err error) {
	fields := []zap.Field{zap.String("stage", stage)}
	if usage != nil {
		fields = append(fields,
			zap.Uint32("prompt_tokens", usage.PromptTokens),
			zap.Uint32("completion_tokens", usage.CompletionTokens),
		)
	}
	if err != nil {
		o.log.Error("inference failed", append(fields, zap.Error(err))...)
		return
	}
	o.log.Info("inference completed", fields...)
}

func (o *Observer) ToolDispatched(name string, args json.RawMessage, result research.ToolResult) {
	argsStr := string(args)
	if len(argsStr) > maxLoggedArgs {
		argsStr = argsStr[:maxLoggedArgs] + "..."
	}

	fields := []zap.Field{
		zap.String("tool", name),
		zap.String("args", argsStr),
		zap.Int("result_bytes", len(result.Content)),
	}
	if result.IsError {
		o.log.Warn("tool dispatch returned error result", fields...)
		return
	}
	o.log.Debug("tool dispatched", fields...)
}

var _ research.Observer = (*Observer)(nil)
