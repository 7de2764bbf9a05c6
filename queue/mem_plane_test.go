package queue

import (
	"testing"
	"time"

	"github.com/modsentry/orchestrator/types"
)

func TestMemPlane_EnqueuePopBlocksUntilAvailable(t *testing.T) {
	p := NewMemPlane()
	ctx := t.Context()

	done := make(chan *types.Task, 1)
	go func() {
		task, _ := p.Pop(ctx, "mod-a", time.Second)
		done <- task
	}()

	time.Sleep(20 * time.Millisecond)
	if err := p.Enqueue(ctx, &types.Task{TaskID: "t1", ModuleID: "mod-a"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	select {
	case task := <-done:
		if task == nil || task.TaskID != "t1" {
			t.Fatalf("expected task t1, got %+v", task)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for blocked Pop to return")
	}
}

func TestMemPlane_PopTimesOut(t *testing.T) {
	p := NewMemPlane()
	task, err := p.Pop(t.Context(), "mod-empty", 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if task != nil {
		t.Fatalf("expected nil task, got %+v", task)
	}
}

func TestMemPlane_PublishAwaitResult(t *testing.T) {
	p := NewMemPlane()
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

func TestMemPlane_AwaitResultIgnoresStaleTaskID(t *testing.T) {
	p := NewMemPlane()
	ctx := t.Context()

	// A leftover result from a prior run at the same (module, fingerprint).
	stale := &types.ModuleResult{TaskID: "old-run", Fingerprint: "fp1", ModuleID: "mod-a", Status: types.StatusSuccess}
	if err := p.PublishResult(ctx, stale); err != nil {
		t.Fatalf("PublishResult: %v", err)
	}

	done := make(chan *types.ModuleResult, 1)
	errs := make(chan error, 1)
	go func() {
		got, err := p.AwaitResult(ctx, "mod-a", "fp1", "new-run", time.Second)
		done <- got
		errs <- err
	}()

	time.Sleep(20 * time.Millisecond)
	fresh := &types.ModuleResult{TaskID: "new-run", Fingerprint: "fp1", ModuleID: "mod-a", Status: types.StatusSuccess}
	if err := p.PublishResult(ctx, fresh); err != nil {
		t.Fatalf("PublishResult: %v", err)
	}

	select {
	case got := <-done:
		if err := <-errs; err != nil {
			t.Fatalf("AwaitResult: %v", err)
		}
		if got.TaskID != "new-run" {
			t.Fatalf("expected new-run, got %s", got.TaskID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("AwaitResult did not return the matching result")
	}
}

func TestMemPlane_Heartbeat(t *testing.T) {
	p := NewMemPlane()
	ctx := t.Context()

	if err := p.Heartbeat(ctx, "mod-a", 50*time.Millisecond); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	alive, err := p.LastHeartbeat(ctx, "mod-a")
	if err != nil || !alive {
		t.Fatalf("expected alive heartbeat, err=%v alive=%v", err, alive)
	}

	time.Sleep(100 * time.Millisecond)
	alive, err = p.LastHeartbeat(ctx, "mod-a")
	if err != nil || alive {
		t.Fatalf("expected expired heartbeat, err=%v alive=%v", err, alive)
	}
}
