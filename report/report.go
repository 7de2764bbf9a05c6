// Package report implements the report store (C2): a per-artifact,
// fingerprint-keyed structured report aggregating module results and
// chain-run snapshots.
package report

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/modsentry/orchestrator/types"
)

// Report is the per-artifact aggregate: its module results and the chain
// runs that have executed against it.
type Report struct {
	Fingerprint string                         `json:"fingerprint"`
	Modules     map[string]types.ModuleResult  `json:"modules"`
	ChainRuns   []types.ChainRun               `json:"chain_runs"`
}

// Repository stores Reports and the durable task markers that back the
// executor's at-most-one-concurrent-task invariant.
type Repository interface {
	PutModuleResult(fingerprint string, result types.ModuleResult) error
	PutChainRunState(run types.ChainRun) error
	GetReport(fingerprint string) (Report, error)
	ListArtifacts(page, size int) ([]string, error)

	PutTaskMarker(marker TaskMarker) error
	GetTaskMarker(fingerprint, moduleID string) (TaskMarker, bool, error)
	DeleteTaskMarker(fingerprint, moduleID string) error
	ListOpenTaskMarkers() ([]TaskMarker, error)
}

// TaskMarker is the durable in-flight marker for one (fingerprint,
// module_id) pair, the restart-survival half of invariant P1. It is
// written when a task is enqueued and removed once its result lands.
type TaskMarker struct {
	Fingerprint string    `msgpack:"fingerprint"`
	ModuleID    string    `msgpack:"module_id"`
	TaskID      string    `msgpack:"task_id"`
	ChainRunID  string     `msgpack:"chain_run_id"`
	StepIndex   int       `msgpack:"step_index"`
	EnqueuedAt  time.Time `msgpack:"enqueued_at"`
	Deadline    time.Time `msgpack:"deadline"`
}

// MemRepository is a mutex-guarded in-memory Repository.
type MemRepository struct {
	mu      sync.RWMutex
	reports map[string]Report
	markers map[string]TaskMarker
}

// NewMemRepository creates an empty MemRepository.
func NewMemRepository() *MemRepository {
	return &MemRepository{
		reports: make(map[string]Report),
		markers: make(map[string]TaskMarker),
	}
}

func markerKey(fingerprint, moduleID string) string {
	return fingerprint + ":" + moduleID
}

func (r *MemRepository) ensureReportLocked(fingerprint string) Report {
	rep, ok := r.reports[fingerprint]
	if !ok {
		rep = Report{Fingerprint: fingerprint, Modules: make(map[string]types.ModuleResult)}
	}
	if rep.Modules == nil {
		rep.Modules = make(map[string]types.ModuleResult)
	}
	return rep
}

// PutModuleResult writes or replaces the result for result.ModuleID.
// Append-or-replace-per-key, no partial updates, per §4.2.
func (r *MemRepository) PutModuleResult(fingerprint string, result types.ModuleResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep := r.ensureReportLocked(fingerprint)
	rep.Modules[result.ModuleID] = result
	r.reports[fingerprint] = rep
	return nil
}

// PutChainRunState appends or replaces a ChainRun snapshot by ChainRunID.
func (r *MemRepository) PutChainRunState(run types.ChainRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep := r.ensureReportLocked(run.Fingerprint)
	replaced := false
	for i, existing := range rep.ChainRuns {
		if existing.ChainRunID == run.ChainRunID {
			rep.ChainRuns[i] = run
			replaced = true
			break
		}
	}
	if !replaced {
		rep.ChainRuns = append(rep.ChainRuns, run)
	}
	r.reports[run.Fingerprint] = rep
	return nil
}

// GetReport returns the report for fingerprint.
func (r *MemRepository) GetReport(fingerprint string) (Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rep, ok := r.reports[fingerprint]
	if !ok {
		return Report{}, types.NewError(types.KindNotFound, "report.GetReport", fmt.Errorf("report %q", fingerprint))
	}
	return rep, nil
}

// ListArtifacts returns a page of fingerprints, sorted for stable paging.
func (r *MemRepository) ListArtifacts(page, size int) ([]string, error) {
	if page < 0 || size <= 0 {
		return nil, types.NewError(types.KindInvalidInput, "report.ListArtifacts", fmt.Errorf("invalid page=%d size=%d", page, size))
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	fingerprints := make([]string, 0, len(r.reports))
	for fp := range r.reports {
		fingerprints = append(fingerprints, fp)
	}
	sort.Strings(fingerprints)

	start := page * size
	if start >= len(fingerprints) {
		return []string{}, nil
	}
	end := start + size
	if end > len(fingerprints) {
		end = len(fingerprints)
	}
	return fingerprints[start:end], nil
}

// PutTaskMarker writes the durable in-flight marker for a task.
func (r *MemRepository) PutTaskMarker(marker TaskMarker) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markers[markerKey(marker.Fingerprint, marker.ModuleID)] = marker
	return nil
}

// GetTaskMarker returns the marker for (fingerprint, moduleID), if any.
func (r *MemRepository) GetTaskMarker(fingerprint, moduleID string) (TaskMarker, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.markers[markerKey(fingerprint, moduleID)]
	return m, ok, nil
}

// DeleteTaskMarker removes the marker once its task reaches a final state.
func (r *MemRepository) DeleteTaskMarker(fingerprint, moduleID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.markers, markerKey(fingerprint, moduleID))
	return nil
}

// ListOpenTaskMarkers returns every outstanding marker, used by the
// executor's restart reconciliation pass.
func (r *MemRepository) ListOpenTaskMarkers() ([]TaskMarker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]TaskMarker, 0, len(r.markers))
	for _, m := range r.markers {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Fingerprint != out[j].Fingerprint {
			return out[i].Fingerprint < out[j].Fingerprint
		}
		return out[i].ModuleID < out[j].ModuleID
	})
	return out, nil
}

var _ Repository = (*MemRepository)(nil)
