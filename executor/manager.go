// Package executor implements the chain executor (C6): the core scheduler
// that drives one goroutine per ChainRun through its steps, enforcing the
// at-most-one-concurrent-task invariant and hard/soft failure policy.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/modsentry/orchestrator/adapter"
	"github.com/modsentry/orchestrator/external"
	"github.com/modsentry/orchestrator/log"
	"github.com/modsentry/orchestrator/metrics"
	"github.com/modsentry/orchestrator/queue"
	"github.com/modsentry/orchestrator/registry"
	"github.com/modsentry/orchestrator/report"
	"github.com/modsentry/orchestrator/types"
)

// ExternalNotifier is the narrow C8 dependency: best-effort delivery of a
// task notification to an external-kind module's base_url on enqueue.
type ExternalNotifier interface {
	Notify(ctx context.Context, baseURL string, notification external.TaskNotification) error
}

var _ ExternalNotifier = (*external.Notifier)(nil)

// ArtifactLookup is the narrow C1 dependency the executor needs: the
// detected file type and extracted-tree root to build task payloads.
type ArtifactLookup interface {
	GetArtifact(ctx context.Context, fingerprint string) (*types.Artifact, error)
}

// Config parameterizes the executor.
type Config struct {
	// DefaultStepTimeout is used when a step does not override it.
	DefaultStepTimeout time.Duration
	// ReconciliationGraceMultiplier bounds the fresh deadline given to a
	// reconciled in-flight task on restart: grace = N * step_timeout.
	ReconciliationGraceMultiplier int
}

// DefaultConfig returns the orchestrator's default executor tuning.
func DefaultConfig() Config {
	return Config{
		DefaultStepTimeout:            5 * time.Minute,
		ReconciliationGraceMultiplier: 2,
	}
}

// runHandle tracks one in-flight ChainRun goroutine's cancellation.
type runHandle struct {
	cancel context.CancelFunc
}

// Manager drives ChainRuns: one goroutine per run, an outstanding-task
// registry keyed by (fingerprint, module_id) enforcing invariant P1, and
// restart reconciliation against the durable task markers in the report
// store. Grounded on the teacher's fan-out Operator (runtime/fanout.go):
// the same shape of mutex-guarded "seen" bookkeeping and atomic counters,
// generalized from dedup-by-key to at-most-one-outstanding-task-per-key.
type Manager struct {
	registry   *registry.Registry
	plane      queue.Plane
	reports    report.Repository
	artifacts  ArtifactLookup
	cfg        Config
	logger     *log.Logger
	metrics    *metrics.Collector

	// Notifier is optional: when set, terminate() publishes a
	// ChainRunCompletedEvent through it. Best-effort — publish errors are
	// logged, never propagated to the run's result.
	Notifier adapter.Adapter

	// ExternalNotifier is optional: when set, runStep notifies external-kind
	// modules of a newly enqueued task (§4.8). Best-effort and asynchronous —
	// the queue entry is the source of truth, never the notification.
	ExternalNotifier ExternalNotifier

	mu        sync.Mutex
	runs      map[string]*runHandle
	outstanding map[string]string // (fingerprint,module_id) key -> task_id, invariant P1
}

// NewManager creates a Manager. metrics may be nil; Collector's Inc methods
// are nil-receiver safe.
func NewManager(reg *registry.Registry, plane queue.Plane, reports report.Repository, artifacts ArtifactLookup, cfg Config, logger *log.Logger, collector *metrics.Collector) *Manager {
	if logger == nil {
		logger = log.NewLogger()
	}
	return &Manager{
		registry:    reg,
		plane:       plane,
		reports:     reports,
		artifacts:   artifacts,
		cfg:         cfg,
		logger:      logger,
		metrics:     collector,
		runs:        make(map[string]*runHandle),
		outstanding: make(map[string]string),
	}
}

func outstandingKey(fingerprint, moduleID string) string {
	return fingerprint + ":" + moduleID
}

// StartChainRun validates step eligibility up front and, if every step
// passes, creates and persists a running ChainRun and spawns its driving
// goroutine. Per §5.133: any failing step aborts before any task is
// enqueued, with a precise reason.
func (m *Manager) StartChainRun(ctx context.Context, chain types.Chain, fingerprint string) (*types.ChainRun, error) {
	artifact, err := m.artifacts.GetArtifact(ctx, fingerprint)
	if err != nil {
		return nil, err
	}

	for _, step := range chain.Steps {
		if reason := m.ineligibilityReason(ctx, step, artifact.DetectedType); reason != "" {
			return nil, types.NewError(types.KindInvalidInput, "executor.StartChainRun",
				fmt.Errorf("step %d (module %s): %s", step.Order, step.ModuleID, reason))
		}
	}

	run := &types.ChainRun{
		ChainRunID:    uuid.New().String(),
		ChainSnapshot: chain,
		Fingerprint:   fingerprint,
		Cursor:        0,
		State:         types.RunRunning,
		StartedAt:     time.Now().UTC(),
	}
	if err := m.reports.PutChainRunState(*run); err != nil {
		return nil, fmt.Errorf("executor: persist initial chain run: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.runs[run.ChainRunID] = &runHandle{cancel: cancel}
	m.mu.Unlock()

	m.metrics.IncChainRunStarted()
	go m.drive(runCtx, run)

	return run, nil
}

func (m *Manager) ineligibilityReason(ctx context.Context, step types.ChainStep, ft types.FileType) string {
	mod, err := m.registry.Get(ctx, step.ModuleID)
	if err != nil {
		return "module does not exist"
	}
	if !mod.Active {
		return "module is inactive"
	}
	if !mod.Healthy {
		return "module is unhealthy"
	}
	if !mod.AcceptsFileType(ft) {
		return fmt.Sprintf("module does not accept file type %s", ft)
	}
	return ""
}

// Cancel transitions a ChainRun to cancelled. The currently awaited task is
// abandoned; its eventual result is still written through but does not
// advance the run. Workers are not forcibly stopped.
func (m *Manager) Cancel(chainRunID string) error {
	m.mu.Lock()
	handle, ok := m.runs[chainRunID]
	m.mu.Unlock()
	if !ok {
		return types.NewError(types.KindNotFound, "executor.Cancel", fmt.Errorf("chain run %q", chainRunID))
	}
	handle.cancel()
	return nil
}

// reserveOutstanding enforces P1: at most one non-final task per
// (fingerprint, module_id). Returns false if a task is already in flight.
func (m *Manager) reserveOutstanding(fingerprint, moduleID, taskID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := outstandingKey(fingerprint, moduleID)
	if _, exists := m.outstanding[key]; exists {
		return false
	}
	m.outstanding[key] = taskID
	return true
}

func (m *Manager) releaseOutstanding(fingerprint, moduleID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.outstanding, outstandingKey(fingerprint, moduleID))
}

func (m *Manager) finishRun(chainRunID string) {
	m.mu.Lock()
	delete(m.runs, chainRunID)
	m.mu.Unlock()
}
