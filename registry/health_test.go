package registry

import (
	"context"
	"testing"

	"github.com/modsentry/orchestrator/types"
)

type fakeChecker struct{ alive bool }

func (f *fakeChecker) Check(_ context.Context, _ types.ModuleDescriptor) bool { return f.alive }

func TestProber_SingleFailureDoesNotFlipHealthy(t *testing.T) {
	r := New()
	ctx := t.Context()
	_ = r.Put(ctx, types.ModuleDescriptor{ID: "mod-a", Kind: types.ModuleKindExternal, Active: true, Healthy: true})

	checker := &fakeChecker{alive: false}
	p := NewProber(r, checker, nil, 0, nil)

	p.probeOne(ctx, mustGet(t, r, "mod-a"))

	got, _ := r.Get(ctx, "mod-a")
	if !got.Healthy {
		t.Fatal("expected healthy to remain true after a single failure")
	}
}

func TestProber_TwoConsecutiveFailuresFlipUnhealthy(t *testing.T) {
	r := New()
	ctx := t.Context()
	_ = r.Put(ctx, types.ModuleDescriptor{ID: "mod-a", Kind: types.ModuleKindExternal, Active: true, Healthy: true})

	checker := &fakeChecker{alive: false}
	p := NewProber(r, checker, nil, 0, nil)

	p.probeOne(ctx, mustGet(t, r, "mod-a"))
	p.probeOne(ctx, mustGet(t, r, "mod-a"))

	got, _ := r.Get(ctx, "mod-a")
	if got.Healthy {
		t.Fatal("expected healthy=false after two consecutive failures")
	}
}

func TestProber_AnySuccessRestoresHealthy(t *testing.T) {
	r := New()
	ctx := t.Context()
	_ = r.Put(ctx, types.ModuleDescriptor{ID: "mod-a", Kind: types.ModuleKindExternal, Active: true, Healthy: false})

	checker := &fakeChecker{alive: true}
	p := NewProber(r, checker, nil, 0, nil)
	p.probeOne(ctx, mustGet(t, r, "mod-a"))

	got, _ := r.Get(ctx, "mod-a")
	if !got.Healthy {
		t.Fatal("expected healthy=true after a success")
	}
}

func mustGet(t *testing.T, r *Registry, id string) types.ModuleDescriptor {
	t.Helper()
	m, err := r.Get(t.Context(), id)
	if err != nil {
		t.Fatalf("Get(%s): %v", id, err)
	}
	return m
}
