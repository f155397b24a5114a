// Supervisor Coordinator - decompose, delegate, join, synthesize.
//
// Information Hiding:
// - Decomposition prompt and brief parsing hidden
// - Fan-out/join mechanics hidden; workers never see each other
// - Synthesis over findings hidden
//
// Workers are isolated: each gets only its sub-topic, a fresh Worker, and a
// fresh conversation. One worker's failure degrades the report instead of
// aborting siblings.

package research

import (
	"context"
	"fmt"
	"strings"
	"sync"

	internaljson "github.com/probeworks/deepscout/internal/json"
	"github.com/probeworks/deepscout/llm"
)

// defaultMaxWorkers bounds how many sub-topics a brief may delegate.
const defaultMaxWorkers = 3

// Supervisor coordinates a multi-worker research run.
type Supervisor struct {
	client      *llm.Client
	toolbox     *Toolbox
	guard       Guard // supervisor rounds
	workerGuard Guard // per-worker iteration budget
	maxWorkers  int
	observer    Observer
}

// NewSupervisor creates a supervisor. Guard bounds delegation rounds: the
// first round covers the whole brief, later rounds retry failed sub-topics.
// workerGuard is handed to each spawned worker.
func NewSupervisor(client *llm.Client, toolbox *Toolbox, guard, workerGuard Guard) *Supervisor {
	return &Supervisor{
		client:      client,
		toolbox:     toolbox,
		guard:       guard,
		workerGuard: workerGuard,
		maxWorkers:  defaultMaxWorkers,
		observer:    NopObserver{},
	}
}

// WithMaxWorkers bounds concurrent delegation.
func (s *Supervisor) WithMaxWorkers(n int) *Supervisor {
	if n > 0 {
		s.maxWorkers = n
	}
	return s
}

// WithObserver sets the observer, propagated to spawned workers.
func (s *Supervisor) WithObserver(observer Observer) *Supervisor {
	if observer != nil {
		s.observer = observer
	}
	return s
}

// Research decomposes query into sub-topics, runs one worker per sub-topic
// concurrently, and synthesizes their findings into a Report.
//
// Worker failures are isolated: a failed worker contributes a degraded
// Finding, is retried while the supervisor budget allows, and the report
// notes any remaining gap. Only when every worker fails does Research
// return an error.
func (s *Supervisor) Research(ctx context.Context, query string) (Report, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Report{}, ErrEmptyQuery
	}

	state := s.guard.Start()
	state = s.guard.Record(state)

	brief, err := s.plan(ctx, query)
	if err != nil {
		return Report{}, err
	}

	findings, workerErrs := s.delegate(ctx, brief.SubTopics)

	// Re-delegate failed sub-topics while the supervisor budget allows,
	// one fresh worker per topic per round.
	for len(failedIndices(findings)) > 0 && s.guard.ShouldContinue(state) {
		state = s.guard.Record(state)
		retry := failedIndices(findings)
		topics := make([]string, len(retry))
		for i, idx := range retry {
			topics[i] = findings[idx].Topic
		}
		retried, retryErrs := s.delegate(ctx, topics)
		for i, idx := range retry {
			findings[idx] = retried[i]
		}
		workerErrs = retryErrs
	}

	if len(failedIndices(findings)) == len(findings) {
		return Report{}, fmt.Errorf("%w: %v", ErrAllWorkersFailed, workerErrs)
	}

	draft, err := s.synthesize(ctx, query, findings)
	if err != nil {
		return Report{}, err
	}

	return assembleReport(draft, findings), nil
}

// plan asks the reasoning engine to decompose the query into sub-topics.
// An unparseable or empty brief falls back to the whole query as the single
// sub-topic.
func (s *Supervisor) plan(ctx context.Context, query string) (Brief, error) {
	messages := []llm.ChatMessage{
		llm.SystemMessage(fmt.Sprintf(supervisorBriefPrompt, s.maxWorkers)),
		llm.UserMessage(query),
	}

	content, err := s.client.ChatWithFormat(ctx, messages, llm.NewJSONObjectFormat())
	s.observer.InferenceCompleted("brief", nil, err)
	if err != nil {
		return Brief{}, &InferenceError{Stage: "brief", Err: err}
	}

	var brief Brief
	if err := internaljson.ExtractJSONFromResponseWithType(content, &brief); err != nil {
		return Brief{SubTopics: []string{query}}, nil
	}

	var topics []string
	for _, t := range brief.SubTopics {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	if len(topics) == 0 {
		topics = []string{query}
	}
	if len(topics) > s.maxWorkers {
		topics = topics[:s.maxWorkers]
	}
	return Brief{SubTopics: topics}, nil
}

// failedIndices returns the positions of degraded findings.
func failedIndices(findings []Finding) []int {
	var failed []int
	for i, f := range findings {
		if f.Failed {
			failed = append(failed, i)
		}
	}
	return failed
}

// delegate spawns one worker per sub-topic and joins them. Findings come
// back in spawn order regardless of completion order.
func (s *Supervisor) delegate(ctx context.Context, topics []string) ([]Finding, []error) {
	findings := make([]Finding, len(topics))
	errs := make([]error, len(topics))

	var wg sync.WaitGroup
	for i, topic := range topics {
		wg.Add(1)
		go func(i int, topic string) {
			defer wg.Done()
			worker := NewWorker(s.client, s.toolbox, s.workerGuard).WithObserver(s.observer)
			finding, err := worker.Research(ctx, topic)
			if err != nil {
				errs[i] = &WorkerError{Topic: topic, Err: err}
				findings[i] = Finding{Topic: topic, Failed: true}
				return
			}
			findings[i] = finding
		}(i, topic)
	}
	wg.Wait()

	var workerErrs []error
	for _, err := range errs {
		if err != nil {
			workerErrs = append(workerErrs, err)
		}
	}
	return findings, workerErrs
}

// synthesize writes the draft report over all findings in one call.
func (s *Supervisor) synthesize(ctx context.Context, query string, findings []Finding) (string, error) {
	prompt := fmt.Sprintf(synthesisPrompt, query, formatFindingsForSynthesis(findings))

	draft, usage, err := s.client.ChatWithUsage(ctx, []llm.ChatMessage{llm.UserMessage(prompt)})
	s.observer.InferenceCompleted("synthesize", usage, err)
	if err != nil {
		return "", &InferenceError{Stage: "synthesize", Err: err}
	}
	return draft, nil
}

// assembleReport concatenates per-worker artifacts in spawn order.
func assembleReport(draft string, findings []Finding) Report {
	var summaries []string
	var rawNotes []string
	for _, f := range findings {
		if f.Failed {
			continue
		}
		summaries = append(summaries, fmt.Sprintf("## %s\n\n%s", f.Topic, f.Summary))
		rawNotes = append(rawNotes, f.RawNotes...)
	}

	return Report{
		CompressedResearch: strings.Join(summaries, "\n\n"),
		RawNotes:           rawNotes,
		DraftReport:        draft,
		Findings:           findings,
	}
}
