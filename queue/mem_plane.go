package queue

import (
	"context"
	"sync"
	"time"

	"github.com/modsentry/orchestrator/types"
)

// MemPlane is an in-memory Plane implementation, used by tests that don't
// need a real Redis instance and by the serve command when no queue URL is
// configured.
type MemPlane struct {
	mu          sync.Mutex
	queues      map[string][]*types.Task
	popSignal   map[string]chan struct{}
	results     map[string]*types.ModuleResult
	heartbeats  map[string]time.Time
}

// NewMemPlane creates an empty MemPlane.
func NewMemPlane() *MemPlane {
	return &MemPlane{
		queues:     make(map[string][]*types.Task),
		popSignal:  make(map[string]chan struct{}),
		results:    make(map[string]*types.ModuleResult),
		heartbeats: make(map[string]time.Time),
	}
}

func (p *MemPlane) signalFor(moduleID string) chan struct{} {
	ch, ok := p.popSignal[moduleID]
	if !ok {
		ch = make(chan struct{}, 1)
		p.popSignal[moduleID] = ch
	}
	return ch
}

// Enqueue implements Plane.
func (p *MemPlane) Enqueue(_ context.Context, task *types.Task) error {
	p.mu.Lock()
	p.queues[task.ModuleID] = append(p.queues[task.ModuleID], task)
	ch := p.signalFor(task.ModuleID)
	p.mu.Unlock()

	select {
	case ch <- struct{}{}:
	default:
	}
	return nil
}

// Pop implements Plane.
func (p *MemPlane) Pop(ctx context.Context, moduleID string, wait time.Duration) (*types.Task, error) {
	deadline := time.After(wait)
	for {
		p.mu.Lock()
		q := p.queues[moduleID]
		if len(q) > 0 {
			task := q[0]
			p.queues[moduleID] = q[1:]
			p.mu.Unlock()
			return task, nil
		}
		ch := p.signalFor(moduleID)
		p.mu.Unlock()

		select {
		case <-ch:
			continue
		case <-deadline:
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// PublishResult implements Plane.
func (p *MemPlane) PublishResult(_ context.Context, result *types.ModuleResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results[resultKey(result.ModuleID, result.Fingerprint)] = result
	return nil
}

// AwaitResult implements Plane.
func (p *MemPlane) AwaitResult(ctx context.Context, moduleID, fingerprint, taskID string, timeout time.Duration) (*types.ModuleResult, error) {
	deadline := time.Now().Add(timeout)
	key := resultKey(moduleID, fingerprint)
	interval := pollInterval

	for {
		p.mu.Lock()
		result, ok := p.results[key]
		p.mu.Unlock()
		if ok && result.TaskID == taskID {
			return result, nil
		}

		if time.Now().After(deadline) {
			return nil, types.NewError(types.KindTimeout, "queue.AwaitResult", nil)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
		interval *= 2
		if interval > pollIntervalMax {
			interval = pollIntervalMax
		}
	}
}

// Heartbeat implements Plane.
func (p *MemPlane) Heartbeat(_ context.Context, moduleID string, ttl time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.heartbeats[moduleID] = time.Now().Add(ttl)
	return nil
}

// LastHeartbeat implements Plane.
func (p *MemPlane) LastHeartbeat(_ context.Context, moduleID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	expiry, ok := p.heartbeats[moduleID]
	if !ok {
		return false, nil
	}
	return time.Now().Before(expiry), nil
}

// Close implements Plane.
func (p *MemPlane) Close() error { return nil }

var _ Plane = (*MemPlane)(nil)
