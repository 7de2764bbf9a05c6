package executor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/modsentry/orchestrator/adapter"
	"github.com/modsentry/orchestrator/external"
	"github.com/modsentry/orchestrator/types"
)

type fakeNotifier struct {
	mu     sync.Mutex
	events []*adapter.ChainRunCompletedEvent
}

func (f *fakeNotifier) Publish(_ context.Context, event *adapter.ChainRunCompletedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeNotifier) Close() error { return nil }

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func TestManager_NotifiesOnTerminal(t *testing.T) {
	mgr, plane, reports, reg, artifacts := newTestManager(t)
	notifier := &fakeNotifier{}
	mgr.Notifier = notifier

	artifacts.artifacts["fp1"] = &types.Artifact{Fingerprint: "fp1", DetectedType: types.FileTypeAPK, ExtractedRoot: "extracted/fp1"}
	if err := reg.Put(t.Context(), types.ModuleDescriptor{ID: "unpack", Kind: types.ModuleKindInternal, Active: true, Healthy: true, InputFormats: []types.FileType{types.FileTypeAPK}}); err != nil {
		t.Fatalf("register module: %v", err)
	}

	chain := types.Chain{Name: "single", Steps: []types.ChainStep{{ModuleID: "unpack"}}}
	chain.Normalize()

	run, err := mgr.StartChainRun(t.Context(), chain, "fp1")
	if err != nil {
		t.Fatalf("start chain run: %v", err)
	}

	go moduleWorker(t, plane, "unpack", types.StatusSuccess, "")
	waitForTerminal(t, reports, "fp1", 2*time.Second)

	deadline := time.Now().Add(time.Second)
	for notifier.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if notifier.count() != 1 {
		t.Fatalf("notifier received %d events, want 1", notifier.count())
	}
	if notifier.events[0].ChainRunID != run.ChainRunID {
		t.Fatalf("event chain_run_id = %q, want %q", notifier.events[0].ChainRunID, run.ChainRunID)
	}
	if notifier.events[0].Outcome != string(types.RunCompleted) {
		t.Fatalf("event outcome = %q, want completed", notifier.events[0].Outcome)
	}
}

type fakeExternalNotifier struct {
	mu            sync.Mutex
	notifications []external.TaskNotification
	baseURLs      []string
}

func (f *fakeExternalNotifier) Notify(_ context.Context, baseURL string, notification external.TaskNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.baseURLs = append(f.baseURLs, baseURL)
	f.notifications = append(f.notifications, notification)
	return nil
}

func (f *fakeExternalNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notifications)
}

func TestManager_NotifiesExternalModuleOnEnqueue(t *testing.T) {
	mgr, plane, reports, reg, artifacts := newTestManager(t)
	notifier := &fakeExternalNotifier{}
	mgr.ExternalNotifier = notifier

	artifacts.artifacts["fp1"] = &types.Artifact{Fingerprint: "fp1", DetectedType: types.FileTypeAPK, ExtractedRoot: "extracted/fp1"}
	if err := reg.Put(t.Context(), types.ModuleDescriptor{
		ID: "ext-scan", Kind: types.ModuleKindExternal, Active: true, Healthy: true,
		InputFormats: []types.FileType{types.FileTypeAPK}, BaseURL: "http://ext-scan.example",
	}); err != nil {
		t.Fatalf("register module: %v", err)
	}

	chain := types.Chain{Name: "single", Steps: []types.ChainStep{{ModuleID: "ext-scan"}}}
	chain.Normalize()

	if _, err := mgr.StartChainRun(t.Context(), chain, "fp1"); err != nil {
		t.Fatalf("start chain run: %v", err)
	}

	go moduleWorker(t, plane, "ext-scan", types.StatusSuccess, "")
	waitForTerminal(t, reports, "fp1", 2*time.Second)

	deadline := time.Now().Add(time.Second)
	for notifier.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if notifier.count() != 1 {
		t.Fatalf("external notifier received %d notifications, want 1", notifier.count())
	}
	if notifier.baseURLs[0] != "http://ext-scan.example" {
		t.Fatalf("base_url = %q, want http://ext-scan.example", notifier.baseURLs[0])
	}
	if notifier.notifications[0].FileHash != "fp1" {
		t.Fatalf("file_hash = %q, want fp1", notifier.notifications[0].FileHash)
	}
}

func TestManager_DoesNotNotifyInternalModule(t *testing.T) {
	mgr, plane, reports, reg, artifacts := newTestManager(t)
	notifier := &fakeExternalNotifier{}
	mgr.ExternalNotifier = notifier

	artifacts.artifacts["fp1"] = &types.Artifact{Fingerprint: "fp1", DetectedType: types.FileTypeAPK, ExtractedRoot: "extracted/fp1"}
	if err := reg.Put(t.Context(), types.ModuleDescriptor{ID: "unpack", Kind: types.ModuleKindInternal, Active: true, Healthy: true, InputFormats: []types.FileType{types.FileTypeAPK}}); err != nil {
		t.Fatalf("register module: %v", err)
	}

	chain := types.Chain{Name: "single", Steps: []types.ChainStep{{ModuleID: "unpack"}}}
	chain.Normalize()

	if _, err := mgr.StartChainRun(t.Context(), chain, "fp1"); err != nil {
		t.Fatalf("start chain run: %v", err)
	}

	go moduleWorker(t, plane, "unpack", types.StatusSuccess, "")
	waitForTerminal(t, reports, "fp1", 2*time.Second)

	if notifier.count() != 0 {
		t.Fatalf("internal module should not trigger external notification, got %d", notifier.count())
	}
}
