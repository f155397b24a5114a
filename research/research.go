// Entry points for the two research modes.

package research

import (
	"context"

	"github.com/probeworks/deepscout/llm"
	"github.com/probeworks/deepscout/search"
)

// Options configures a research run. Zero values select the defaults.
type Options struct {
	// WorkerCap bounds each worker's reasoning rounds (cap c allows c+1).
	WorkerCap int
	// SupervisorCap bounds supervisor rounds.
	SupervisorCap int
	// MaxWorkers bounds concurrent delegation in supervised mode.
	MaxWorkers int
	// MaxSearchResults bounds results per search call.
	MaxSearchResults int
	// Observer receives inference and tool dispatch callbacks.
	Observer Observer
}

const (
	defaultWorkerCap     = 5
	defaultSupervisorCap = 2
)

func (o Options) workerGuard() Guard {
	cap := o.WorkerCap
	if cap <= 0 {
		cap = defaultWorkerCap
	}
	return NewGuard(cap)
}

func (o Options) supervisorGuard() Guard {
	cap := o.SupervisorCap
	if cap <= 0 {
		cap = defaultSupervisorCap
	}
	return NewGuard(cap)
}

func (o Options) toolbox(searcher search.Provider) *Toolbox {
	toolbox := NewToolbox(searcher)
	if o.MaxSearchResults > 0 {
		toolbox = toolbox.WithMaxResults(o.MaxSearchResults)
	}
	if o.Observer != nil {
		toolbox = toolbox.WithObserver(o.Observer)
	}
	return toolbox
}

func (o Options) observer() Observer {
	if o.Observer != nil {
		return o.Observer
	}
	return NopObserver{}
}

// RunSingleAgent runs one worker directly on query and returns its Finding.
func RunSingleAgent(ctx context.Context, provider llm.Provider, searcher search.Provider, query string, opts Options) (Finding, error) {
	client := llm.NewClient(provider)
	worker := NewWorker(client, opts.toolbox(searcher), opts.workerGuard()).
		WithObserver(opts.observer())
	return worker.Research(ctx, query)
}

// RunSupervised runs the full supervisor pipeline on query and returns the
// synthesized Report.
func RunSupervised(ctx context.Context, provider llm.Provider, searcher search.Provider, query string, opts Options) (Report, error) {
	client := llm.NewClient(provider)
	supervisor := NewSupervisor(client, opts.toolbox(searcher), opts.supervisorGuard(), opts.workerGuard()).
		WithObserver(opts.observer())
	if opts.MaxWorkers > 0 {
		supervisor = supervisor.WithMaxWorkers(opts.MaxWorkers)
	}
	return supervisor.Research(ctx, query)
}
