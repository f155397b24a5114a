// Error taxonomy for research loops.
//
// Tool dispatch failures are data, not errors: they surface as error
// ToolResults inside the conversation so the reasoning engine can recover.
// Only reasoning-engine failures propagate as Go errors.

package research

import (
	"errors"
	"fmt"
)

// ErrEmptyQuery is returned when a run is started with a blank query.
var ErrEmptyQuery = errors.New("research: query is empty")

// ErrWorkerConsumed is returned when a worker is asked to research twice.
// A worker produces its finding at most once.
var ErrWorkerConsumed = errors.New("research: worker already produced its finding")

// ErrAllWorkersFailed is returned by a supervised run when no worker
// produced a usable finding.
var ErrAllWorkersFailed = errors.New("research: all delegated workers failed")

// InferenceError reports a reasoning-engine failure (transport, auth, rate
// limit). It is never recovered inside a loop; the loop terminates in a
// failed state distinct from normal completion.
type InferenceError struct {
	Stage string // "decide", "compress", "brief", "synthesize"
	Err   error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("research: inference failed during %s: %v", e.Stage, e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// WorkerError wraps the failure of one delegated worker. Under a supervisor
// it is recorded per worker and does not abort siblings.
type WorkerError struct {
	Topic string
	Err   error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("research: worker for %q failed: %v", e.Topic, e.Err)
}

func (e *WorkerError) Unwrap() error {
	return e.Err
}
