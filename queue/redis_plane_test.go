package queue

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/modsentry/orchestrator/types"
)

func newTestRedisPlane(t *testing.T) *RedisPlane {
	t.Helper()
	mr := miniredis.RunT(t)
	p, err := NewRedisPlane("redis://"+mr.Addr(), time.Minute)
	if err != nil {
		t.Fatalf("NewRedisPlane: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestRedisPlane_EnqueuePop(t *testing.T) {
	p := newTestRedisPlane(t)
	ctx := t.Context()

	task := &types.Task{TaskID: "t1", ModuleID: "mod-a", FileHash: "fp1"}
	if err := p.Enqueue(ctx, task); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	got, err := p.Pop(ctx, "mod-a", time.Second)
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if got == nil || got.TaskID != "t1" {
		t.Fatalf("expected task t1, got %+v", got)
	}
}

func TestRedisPlane_PopTimesOutWhenEmpty(t *testing.T) {
	p := newTestRedisPlane(t)
	got, err := p.Pop(t.Context(), "mod-empty", 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil task, got %+v", got)
	}
}

func TestRedisPlane_PublishAndAwaitResult(t *testing.T) {
	p := newTestRedisPlane(t)
	ctx := t.Context()

	result := &types.ModuleResult{TaskID: "t1", Fingerprint: "fp1", ModuleID: "mod-a", Status: types.StatusSuccess}
	if err := p.PublishResult(ctx, result); err != nil {
		t.Fatalf("PublishResult: %v", err)
	}

	got, err := p.AwaitResult(ctx, "mod-a", "fp1", "t1", time.Second)
	if err != nil {
		t.Fatalf("AwaitResult: %v", err)
	}
	if got.TaskID != "t1" {
		t.Errorf("expected t1, got %s", got.TaskID)
	}
}

func TestRedisPlane_AwaitResultTimesOut(t *testing.T) {
	p := newTestRedisPlane(t)
	_, err := p.AwaitResult(t.Context(), "mod-a", "never", "t1", 300*time.Millisecond)
	if types.KindOf(err) != types.KindTimeout {
		t.Fatalf("expected timeout kind, got %v", err)
	}
}

func TestRedisPlane_AwaitResultIgnoresStaleTaskID(t *testing.T) {
	p := newTestRedisPlane(t)
	ctx := t.Context()

	stale := &types.ModuleResult{TaskID: "old-run", Fingerprint: "fp1", ModuleID: "mod-a", Status: types.StatusSuccess}
	if err := p.PublishResult(ctx, stale); err != nil {
		t.Fatalf("PublishResult: %v", err)
	}

	_, err := p.AwaitResult(ctx, "mod-a", "fp1", "new-run", 300*time.Millisecond)
	if types.KindOf(err) != types.KindTimeout {
		t.Fatalf("expected timeout kind waiting past a stale result, got %v", err)
	}
}

func TestRedisPlane_Heartbeat(t *testing.T) {
	p := newTestRedisPlane(t)
	ctx := t.Context()

	alive, err := p.LastHeartbeat(ctx, "mod-a")
	if err != nil {
		t.Fatalf("LastHeartbeat: %v", err)
	}
	if alive {
		t.Fatal("expected no heartbeat recorded yet")
	}

	if err := p.Heartbeat(ctx, "mod-a", time.Minute); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}

	alive, err = p.LastHeartbeat(ctx, "mod-a")
	if err != nil {
		t.Fatalf("LastHeartbeat: %v", err)
	}
	if !alive {
		t.Fatal("expected heartbeat to be alive")
	}
}

func TestNewRedisPlane_RequiresURL(t *testing.T) {
	_, err := NewRedisPlane("", time.Minute)
	if err == nil {
		t.Fatal("expected error for empty URL")
	}
}
