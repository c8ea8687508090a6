package domain

import "time"

// RunKind names the orchestrator entry point that produced a report.
type RunKind string

const (
	RunFull        RunKind = "full"
	RunIncremental RunKind = "incremental"
	RunReanalyze   RunKind = "reanalyze"
)

// ItemOutcome is the per-item result of the processing loop.
type ItemOutcome string

const (
	OutcomeAnalyzed ItemOutcome = "analyzed"
	OutcomeFailed   ItemOutcome = "failed"
	OutcomeSkipped  ItemOutcome = "skipped"
)

// ItemResult records how one content item left the processing loop.
type ItemResult struct {
	ItemID    int64       `json:"item_id"`
	SourceURL string      `json:"source_url"`
	Title     string      `json:"title"`
	Outcome   ItemOutcome `json:"outcome"`
	Reason    string      `json:"reason,omitempty"`
	WordCount int         `json:"word_count,omitempty"`
}

// RunReport aggregates the outcome of one orchestrator run.
type RunReport struct {
	RunID       string       `json:"run_id"`
	Kind        RunKind      `json:"kind"`
	PersonaID   int64        `json:"persona_id"`
	PersonaName string       `json:"persona_name,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`
	Discovered  int          `json:"discovered"`
	NewItems    int          `json:"new_items"`
	Items       []ItemResult `json:"items,omitempty"`
	Skipped     bool         `json:"skipped,omitempty"`
	SkipReason  string       `json:"skip_reason,omitempty"`
	Status      Status       `json:"status,omitempty"`
	Totals      Totals       `json:"totals"`
	Error       string       `json:"error,omitempty"`
}

// Count returns how many item results share the outcome.
func (r RunReport) Count(outcome ItemOutcome) int {
	n := 0
	for _, item := range r.Items {
		if item.Outcome == outcome {
			n++
		}
	}
	return n
}
