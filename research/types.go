// Package research implements the two-layer autonomous research loop:
// per-topic workers that alternate between reasoning and tool execution,
// and a supervisor that decomposes a query, delegates sub-topics to
// concurrent workers, and synthesizes their findings into a report.
//
// Information Hiding:
// - Loop internals and conversation management hidden
// - Tool dispatch coordination hidden
// - Fan-out/join mechanics hidden
package research

// Finding is a worker's terminal artifact: a compressed summary plus the
// verbatim tool outputs that support it. Immutable once produced.
type Finding struct {
	// Topic is the research topic this finding answers.
	Topic string `json:"topic"`
	// Summary is the compressed synthesis of everything the worker gathered.
	Summary string `json:"summary"`
	// RawNotes holds every tool result verbatim, in call order.
	RawNotes []string `json:"raw_notes"`
	// Truncated is set when the iteration budget forced an early stop.
	Truncated bool `json:"truncated,omitempty"`
	// Failed marks a degraded finding recorded for a worker that errored
	// under a supervisor. Failed findings carry no summary or notes.
	Failed bool `json:"failed,omitempty"`
}

// Brief is the supervisor's decomposition plan: the ordered sub-topics to
// delegate. Produced once by the first reasoning step and read-only after.
type Brief struct {
	SubTopics []string `json:"sub_topics"`
}

// Report is the terminal artifact of a supervised run.
type Report struct {
	// CompressedResearch concatenates the workers' summaries in spawn order.
	CompressedResearch string `json:"compressed_research"`
	// RawNotes concatenates every worker's raw notes in spawn order.
	RawNotes []string `json:"raw_notes"`
	// DraftReport is the supervisor's synthesis over all findings.
	DraftReport string `json:"draft_report"`
	// Findings preserves the per-worker results, including degraded entries.
	Findings []Finding `json:"findings"`
}
