// Package metrics provides process-wide counters for the orchestrator: task
// lifecycle, chain-run terminal states, module health flips, and artifact
// ingestion, exported as Prometheus counters by PrometheusExporter.
//
// The Collector accumulates counters for the lifetime of the orchestrator
// process (not per-run, since many ChainRuns execute concurrently). It is a
// leaf package with no internal dependencies.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters. Returned by
// Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Chain runs, by terminal state.
	ChainRunsStarted   int64
	ChainRunsCompleted int64
	ChainRunsFailed    int64
	ChainRunsCancelled int64

	// Tasks, by terminal state.
	TasksEnqueued int64
	TasksCompleted int64
	TasksFailed    int64
	TasksTimedOut  int64

	// Module health transitions.
	ModuleHealthFlipsToHealthy   int64
	ModuleHealthFlipsToUnhealthy int64

	// Artifact ingestion (C1).
	ArtifactsIngested int64
	ArtifactsDeduped  int64
}

// Collector accumulates counters across the orchestrator process's
// lifetime. Thread-safe via sync.Mutex. All increment methods are
// nil-receiver safe so callers can pass a possibly-unconfigured *Collector
// without a nil check at every call site.
type Collector struct {
	mu sync.Mutex

	chainRunsStarted   int64
	chainRunsCompleted int64
	chainRunsFailed    int64
	chainRunsCancelled int64

	tasksEnqueued int64
	tasksCompleted int64
	tasksFailed    int64
	tasksTimedOut  int64

	moduleHealthFlipsToHealthy   int64
	moduleHealthFlipsToUnhealthy int64

	artifactsIngested int64
	artifactsDeduped  int64
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// --- Chain runs ---

// IncChainRunStarted records a ChainRun start.
func (c *Collector) IncChainRunStarted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.chainRunsStarted++
	c.mu.Unlock()
}

// IncChainRunTerminal records a ChainRun reaching state, one of
// completed/failed/cancelled; other values are ignored.
func (c *Collector) IncChainRunTerminal(state string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	switch state {
	case "completed":
		c.chainRunsCompleted++
	case "failed":
		c.chainRunsFailed++
	case "cancelled":
		c.chainRunsCancelled++
	}
}

// --- Tasks ---

// IncTaskEnqueued records a task being pushed onto a module's queue.
func (c *Collector) IncTaskEnqueued() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.tasksEnqueued++
	c.mu.Unlock()
}

// IncTaskCompleted records a task completing successfully.
func (c *Collector) IncTaskCompleted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.tasksCompleted++
	c.mu.Unlock()
}

// IncTaskFailed records a task completing with a worker error.
func (c *Collector) IncTaskFailed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.tasksFailed++
	c.mu.Unlock()
}

// IncTaskTimedOut records a task's deadline elapsing without a result.
func (c *Collector) IncTaskTimedOut() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.tasksTimedOut++
	c.mu.Unlock()
}

// --- Module health ---

// IncModuleHealthFlip records a module's health transition.
func (c *Collector) IncModuleHealthFlip(toHealthy bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if toHealthy {
		c.moduleHealthFlipsToHealthy++
	} else {
		c.moduleHealthFlipsToUnhealthy++
	}
}

// --- Artifacts ---

// IncArtifactIngested records a newly-ingested artifact (novel fingerprint).
func (c *Collector) IncArtifactIngested() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.artifactsIngested++
	c.mu.Unlock()
}

// IncArtifactDeduped records an ingest whose bytes matched an existing
// fingerprint (recorded as an alias rather than a new artifact).
func (c *Collector) IncArtifactDeduped() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.artifactsDeduped++
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		ChainRunsStarted:   c.chainRunsStarted,
		ChainRunsCompleted: c.chainRunsCompleted,
		ChainRunsFailed:    c.chainRunsFailed,
		ChainRunsCancelled: c.chainRunsCancelled,

		TasksEnqueued:  c.tasksEnqueued,
		TasksCompleted: c.tasksCompleted,
		TasksFailed:    c.tasksFailed,
		TasksTimedOut:  c.tasksTimedOut,

		ModuleHealthFlipsToHealthy:   c.moduleHealthFlipsToHealthy,
		ModuleHealthFlipsToUnhealthy: c.moduleHealthFlipsToUnhealthy,

		ArtifactsIngested: c.artifactsIngested,
		ArtifactsDeduped:  c.artifactsDeduped,
	}
}
