package cmd

import (
	"testing"

	"github.com/modsentry/orchestrator/cli/config"
	"github.com/modsentry/orchestrator/queue"
	"github.com/modsentry/orchestrator/store"
)

func TestNewStoreBackendLocal(t *testing.T) {
	backend, err := newStoreBackend(t.Context(), config.StorageConfig{Backend: "local", Path: t.TempDir()})
	if err != nil {
		t.Fatalf("newStoreBackend: %v", err)
	}
	if _, ok := backend.(*store.LocalBackend); !ok {
		t.Fatalf("backend = %T, want *store.LocalBackend", backend)
	}
}

func TestNewStoreBackendUnknown(t *testing.T) {
	if _, err := newStoreBackend(t.Context(), config.StorageConfig{Backend: "nope"}); err == nil {
		t.Fatal("expected error for unknown storage backend")
	}
}

func TestNewQueuePlaneDefaultsToMem(t *testing.T) {
	plane, err := newQueuePlane(config.QueueConfig{})
	if err != nil {
		t.Fatalf("newQueuePlane: %v", err)
	}
	defer plane.Close()
	if _, ok := plane.(*queue.MemPlane); !ok {
		t.Fatalf("plane = %T, want *queue.MemPlane", plane)
	}
}
