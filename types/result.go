package types

import "time"

// ResultStatus is the module-reported outcome of processing a task.
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusError   ResultStatus = "error"
)

// Location pinpoints a finding within the artifact's extracted tree.
type Location struct {
	File      string `json:"file"`
	Path      string `json:"path,omitempty"`
	StartLine int    `json:"start_line,omitempty"`
	EndLine   int    `json:"end_line,omitempty"`
	Code      string `json:"code,omitempty"`
}

// Finding is one structured observation from a module. Severity is an
// opaque string preserved verbatim — the orchestrator never branches on it.
type Finding struct {
	RuleID   string         `json:"rule_id"`
	Name     string         `json:"name"`
	Severity string         `json:"severity"`
	Location Location       `json:"location"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Summary is an optional module-provided aggregate over its own findings.
type Summary struct {
	TotalFindings  int            `json:"total_findings"`
	SeverityCounts map[string]int `json:"severity_counts,omitempty"`
	CategoryCounts map[string]int `json:"category_counts,omitempty"`
}

// ModuleResult is the published, atomically-replaced result for one
// (fingerprint, module_id) pair (§3 ModuleResult, §6 module result wire shape).
type ModuleResult struct {
	TaskID       string       `json:"task_id"`
	Fingerprint  string       `json:"fingerprint"`
	ModuleID     string       `json:"module_id"`
	Status       ResultStatus `json:"status"`
	Findings     []Finding    `json:"findings,omitempty"`
	Summary      *Summary     `json:"summary,omitempty"`
	ErrorMessage string       `json:"error,omitempty"`
	CompletedAt  time.Time    `json:"completed_at"`

	// Orphan marks a result that arrived for a task the executor no longer
	// tracks (module deregistered mid-flight, or a stale/timed-out arrival).
	// Still durably stored per §8, but never used to advance a ChainRun.
	Orphan bool `json:"orphan,omitempty"`
}
