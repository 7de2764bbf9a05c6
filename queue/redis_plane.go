package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/modsentry/orchestrator/types"
)

// DefaultTaskTTL bounds how long an ephemeral task payload survives in
// Redis if its consumer never pops it.
const DefaultTaskTTL = 1 * time.Hour

// pollInterval is the base backoff between AwaitResult polls. Doubles on
// each miss up to pollIntervalMax, mirroring the adapter packages' retry
// pattern.
const (
	pollInterval    = 250 * time.Millisecond
	pollIntervalMax = 5 * time.Second
)

// RedisPlane implements Plane over a single Redis instance/cluster.
type RedisPlane struct {
	client  *goredis.Client
	taskTTL time.Duration
}

// NewRedisPlane connects to the Redis instance at url.
func NewRedisPlane(url string, taskTTL time.Duration) (*RedisPlane, error) {
	if url == "" {
		return nil, errors.New("queue: redis URL is required")
	}
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("queue: invalid redis URL: %w", err)
	}
	if taskTTL <= 0 {
		taskTTL = DefaultTaskTTL
	}
	return &RedisPlane{client: goredis.NewClient(opts), taskTTL: taskTTL}, nil
}

// Enqueue implements Plane.
func (p *RedisPlane) Enqueue(ctx context.Context, task *types.Task) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("queue: marshal task: %w", err)
	}

	_, err = p.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, taskPayloadKey(task.TaskID), body, p.taskTTL)
		pipe.RPush(ctx, moduleQueueKey(task.ModuleID), task.TaskID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("queue: enqueue task %s: %w", task.TaskID, err)
	}
	return nil
}

// Pop implements Plane.
func (p *RedisPlane) Pop(ctx context.Context, moduleID string, wait time.Duration) (*types.Task, error) {
	var taskID string
	if wait <= 0 {
		// BLPOP with a zero timeout blocks forever; a zero wait is a single
		// non-blocking pop instead.
		id, err := p.client.LPop(ctx, moduleQueueKey(moduleID)).Result()
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("queue: pop module %s: %w", moduleID, err)
		}
		taskID = id
	} else {
		result, err := p.client.BLPop(ctx, wait, moduleQueueKey(moduleID)).Result()
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("queue: pop module %s: %w", moduleID, err)
		}
		// BLPop returns [key, value]; value is the task ID pushed by Enqueue.
		taskID = result[1]
	}

	body, err := p.client.Get(ctx, taskPayloadKey(taskID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		// Payload expired before it was claimed; treat as no task this round.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("queue: load task payload %s: %w", taskID, err)
	}

	var task types.Task
	if err := json.Unmarshal(body, &task); err != nil {
		return nil, fmt.Errorf("queue: unmarshal task payload %s: %w", taskID, err)
	}
	return &task, nil
}

// PublishResult implements Plane.
func (p *RedisPlane) PublishResult(ctx context.Context, result *types.ModuleResult) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("queue: marshal result: %w", err)
	}
	key := resultKey(result.ModuleID, result.Fingerprint)
	if err := p.client.Set(ctx, key, body, p.taskTTL).Err(); err != nil {
		return fmt.Errorf("queue: publish result %s: %w", key, err)
	}
	return nil
}

// AwaitResult implements Plane, polling with exponential backoff. A result
// whose TaskID doesn't match taskID is a prior run's leftover at the same
// (moduleID, fingerprint) key; it's ignored and polling continues.
func (p *RedisPlane) AwaitResult(ctx context.Context, moduleID, fingerprint, taskID string, timeout time.Duration) (*types.ModuleResult, error) {
	deadline := time.Now().Add(timeout)
	key := resultKey(moduleID, fingerprint)
	interval := pollInterval

	for {
		body, err := p.client.Get(ctx, key).Bytes()
		if err == nil {
			var result types.ModuleResult
			if err := json.Unmarshal(body, &result); err != nil {
				return nil, fmt.Errorf("queue: unmarshal result %s: %w", key, err)
			}
			if result.TaskID == taskID {
				return &result, nil
			}
		} else if !errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("queue: await result %s: %w", key, err)
		}

		if time.Now().After(deadline) {
			return nil, types.NewError(types.KindTimeout, "queue.AwaitResult", fmt.Errorf("no result for %s within timeout", key))
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
func (p *RedisPlane) Heartbeat(ctx context.Context, moduleID string, ttl time.Duration) error {
	if err := p.client.Set(ctx, heartbeatKey(moduleID), time.Now().UTC().Format(time.RFC3339), ttl).Err(); err != nil {
		return fmt.Errorf("queue: heartbeat %s: %w", moduleID, err)
	}
	return nil
}

// LastHeartbeat implements Plane.
func (p *RedisPlane) LastHeartbeat(ctx context.Context, moduleID string) (bool, error) {
	err := p.client.Get(ctx, heartbeatKey(moduleID)).Err()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("queue: last heartbeat %s: %w", moduleID, err)
	}
	return true, nil
}

// Close implements Plane.
func (p *RedisPlane) Close() error {
	return p.client.Close()
}

var _ Plane = (*RedisPlane)(nil)
