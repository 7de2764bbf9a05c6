package chain

import (
	"path/filepath"
	"testing"

	"github.com/modsentry/orchestrator/types"
)

func TestFileRepository_CreatesFileWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chains.yaml")
	r, err := NewFileRepository(path)
	if err != nil {
		t.Fatalf("NewFileRepository: %v", err)
	}
	list, err := r.List(t.Context())
	if err != nil || len(list) != 0 {
		t.Fatalf("expected empty repository, got %+v err=%v", list, err)
	}
}

func TestFileRepository_CreatePersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chains.yaml")
	r, err := NewFileRepository(path)
	if err != nil {
		t.Fatalf("NewFileRepository: %v", err)
	}

	c := types.Chain{Name: "default", Steps: []types.ChainStep{{ModuleID: "mod-a"}, {ModuleID: "mod-b"}}}
	if _, err := r.Create(t.Context(), c); err != nil {
		t.Fatalf("Create: %v", err)
	}

	reloaded, err := NewFileRepository(path)
	if err != nil {
		t.Fatalf("reload NewFileRepository: %v", err)
	}
	got, err := reloaded.Get(t.Context(), "default")
	if err != nil {
		t.Fatalf("Get after reload: %v", err)
	}
	if len(got.Steps) != 2 || got.Steps[0].ModuleID != "mod-a" {
		t.Fatalf("unexpected reloaded chain: %+v", got)
	}
}

func TestFileRepository_DeletePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chains.yaml")
	r, err := NewFileRepository(path)
	if err != nil {
		t.Fatalf("NewFileRepository: %v", err)
	}
	c := types.Chain{Name: "gone", Steps: []types.ChainStep{{ModuleID: "mod-a"}}}
	if _, err := r.Create(t.Context(), c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := r.Delete(t.Context(), "gone"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	reloaded, err := NewFileRepository(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if _, err := reloaded.Get(t.Context(), "gone"); types.KindOf(err) != types.KindNotFound {
		t.Fatalf("expected not found after reload, got %v", err)
	}
}

func TestFileRepository_DuplicateNameRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chains.yaml")
	r, err := NewFileRepository(path)
	if err != nil {
		t.Fatalf("NewFileRepository: %v", err)
	}
	c := types.Chain{Name: "dup", Steps: []types.ChainStep{{ModuleID: "mod-a"}}}
	if _, err := r.Create(t.Context(), c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := r.Create(t.Context(), c); types.KindOf(err) != types.KindIllegalState {
		t.Fatalf("expected illegal state, got %v", err)
	}
}
