package external

import (
	"context"
	"testing"
	"time"

	"github.com/modsentry/orchestrator/queue"
	"github.com/modsentry/orchestrator/report"
	"github.com/modsentry/orchestrator/types"
)

type fakeModules struct {
	modules map[string]types.ModuleDescriptor
}

func (f *fakeModules) Get(_ context.Context, id string) (types.ModuleDescriptor, error) {
	m, ok := f.modules[id]
	if !ok {
		return types.ModuleDescriptor{}, types.NewError(types.KindNotFound, "fakeModules.Get", nil)
	}
	return m, nil
}

type fakeArtifactChecker struct {
	known map[string]bool
}

func (f *fakeArtifactChecker) GetArtifact(_ context.Context, fingerprint string) (*types.Artifact, error) {
	if !f.known[fingerprint] {
		return nil, types.NewError(types.KindNotFound, "fakeArtifactChecker.GetArtifact", nil)
	}
	return &types.Artifact{Fingerprint: fingerprint}, nil
}

func TestResultIngester_AcceptsValidResult(t *testing.T) {
	modules := &fakeModules{modules: map[string]types.ModuleDescriptor{
		"ext-a": {ID: "ext-a", Kind: types.ModuleKindExternal},
	}}
	artifacts := &fakeArtifactChecker{known: map[string]bool{"fp1": true}}
	plane := queue.NewMemPlane()
	reports := report.NewMemRepository()
	_ = reports.PutTaskMarker(report.TaskMarker{Fingerprint: "fp1", ModuleID: "ext-a", TaskID: "task-1", Deadline: time.Now().Add(time.Minute)})

	ri := NewResultIngester(modules, artifacts, plane, reports)
	result := &types.ModuleResult{TaskID: "task-1", Fingerprint: "fp1", Status: types.StatusSuccess}

	if err := ri.Ingest(t.Context(), "ext-a", result); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	rep, err := reports.GetReport("fp1")
	if err != nil || rep.Modules["ext-a"].Status != types.StatusSuccess {
		t.Fatalf("expected durable result written, got %+v err=%v", rep, err)
	}
	got, err := plane.AwaitResult(t.Context(), "ext-a", "fp1", "task-1", time.Millisecond)
	if err != nil || got.TaskID != "task-1" {
		t.Fatalf("expected queue-plane result, got %+v err=%v", got, err)
	}
}

func TestResultIngester_RejectsUnknownModule(t *testing.T) {
	ri := NewResultIngester(&fakeModules{modules: map[string]types.ModuleDescriptor{}}, &fakeArtifactChecker{known: map[string]bool{"fp1": true}}, queue.NewMemPlane(), report.NewMemRepository())
	err := ri.Ingest(t.Context(), "missing", &types.ModuleResult{TaskID: "t", Fingerprint: "fp1"})
	if types.KindOf(err) != types.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestResultIngester_RejectsInternalModule(t *testing.T) {
	modules := &fakeModules{modules: map[string]types.ModuleDescriptor{"int-a": {ID: "int-a", Kind: types.ModuleKindInternal}}}
	ri := NewResultIngester(modules, &fakeArtifactChecker{known: map[string]bool{"fp1": true}}, queue.NewMemPlane(), report.NewMemRepository())
	err := ri.Ingest(t.Context(), "int-a", &types.ModuleResult{TaskID: "t", Fingerprint: "fp1"})
	if types.KindOf(err) != types.KindInvalidInput {
		t.Fatalf("expected invalid input for internal module, got %v", err)
	}
}

func TestResultIngester_RejectsUnknownFingerprint(t *testing.T) {
	modules := &fakeModules{modules: map[string]types.ModuleDescriptor{"ext-a": {ID: "ext-a", Kind: types.ModuleKindExternal}}}
	ri := NewResultIngester(modules, &fakeArtifactChecker{known: map[string]bool{}}, queue.NewMemPlane(), report.NewMemRepository())
	err := ri.Ingest(t.Context(), "ext-a", &types.ModuleResult{TaskID: "t", Fingerprint: "missing"})
	if types.KindOf(err) != types.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestResultIngester_RejectsStaleTaskID(t *testing.T) {
	modules := &fakeModules{modules: map[string]types.ModuleDescriptor{"ext-a": {ID: "ext-a", Kind: types.ModuleKindExternal}}}
	artifacts := &fakeArtifactChecker{known: map[string]bool{"fp1": true}}
	reports := report.NewMemRepository()
	_ = reports.PutTaskMarker(report.TaskMarker{Fingerprint: "fp1", ModuleID: "ext-a", TaskID: "current-task"})

	ri := NewResultIngester(modules, artifacts, queue.NewMemPlane(), reports)
	err := ri.Ingest(t.Context(), "ext-a", &types.ModuleResult{TaskID: "stale-task", Fingerprint: "fp1"})
	if types.KindOf(err) != types.KindInvalidInput {
		t.Fatalf("expected invalid input for stale task_id, got %v", err)
	}
}
