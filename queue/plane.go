// Package queue implements the Redis-backed queue plane (C3): per-module
// task FIFOs, ephemeral task payloads, result delivery, and internal-module
// heartbeats.
package queue

import (
	"context"
	"time"

	"github.com/modsentry/orchestrator/types"
)

// Plane is the queue-plane contract the chain executor and module adapters
// drive against. Both RedisPlane and the in-memory MemPlane satisfy it.
type Plane interface {
	// Enqueue pushes task onto its module's FIFO and stores the ephemeral
	// task payload, atomically, so a consumer popping the queue can always
	// load the payload.
	Enqueue(ctx context.Context, task *types.Task) error

	// Pop blocks up to wait for the next task on moduleID's FIFO. Returns
	// nil, nil on timeout with no task available.
	Pop(ctx context.Context, moduleID string, wait time.Duration) (*types.Task, error)

	// PublishResult stores a module's result for later collection, keyed by
	// (moduleID, fingerprint).
	PublishResult(ctx context.Context, result *types.ModuleResult) error

	// AwaitResult polls for a result keyed by (moduleID, fingerprint) whose
	// TaskID matches taskID, until one appears or timeout elapses, backing
	// off between polls. A result left over from a prior task at the same
	// key (stale task_id) is ignored rather than returned, so a re-run never
	// picks up a previous run's leftover result (§8).
	AwaitResult(ctx context.Context, moduleID, fingerprint, taskID string, timeout time.Duration) (*types.ModuleResult, error)

	// Heartbeat records that moduleID's internal container is alive, valid
	// for ttl.
	Heartbeat(ctx context.Context, moduleID string, ttl time.Duration) error

	// LastHeartbeat reports whether moduleID has an unexpired heartbeat.
	LastHeartbeat(ctx context.Context, moduleID string) (bool, error)

	// Close releases the plane's underlying connection.
	Close() error
}

func moduleQueueKey(moduleID string) string     { return "module:" + moduleID + ":queue" }
func taskPayloadKey(taskID string) string       { return "task:" + taskID }
func resultKey(moduleID, fingerprint string) string {
	return "result:" + moduleID + ":" + fingerprint
}
func heartbeatKey(moduleID string) string { return "heartbeat:" + moduleID }
