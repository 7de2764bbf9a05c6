package registry

import (
	"testing"

	"github.com/modsentry/orchestrator/types"
)

func TestRegisterExternal_CreatesHealthyActiveModule(t *testing.T) {
	r := New()
	ctx := t.Context()

	req := RegisterExternalRequest{
		ModuleID:       "ext-mod",
		BaseURL:        "https://ext.example.com",
		HealthcheckURL: "https://ext.example.com/health",
		Config: ExternalModuleConfig{
			Name:         "External Module",
			InputFormats: []types.FileType{types.FileTypeSource},
		},
	}

	m, err := r.RegisterExternal(ctx, req)
	if err != nil {
		t.Fatalf("RegisterExternal: %v", err)
	}
	if !m.Active || !m.Healthy || m.Kind != types.ModuleKindExternal {
		t.Fatalf("unexpected descriptor: %+v", m)
	}

	got, err := r.Get(ctx, "ext-mod")
	if err != nil || got.BaseURL != req.BaseURL {
		t.Fatalf("Get after register: %+v %v", got, err)
	}
}

func TestRegisterExternal_IdempotentReRegistrationUpdatesBaseURL(t *testing.T) {
	r := New()
	ctx := t.Context()
	req := RegisterExternalRequest{ModuleID: "ext-mod", BaseURL: "https://old.example.com"}
	if _, err := r.RegisterExternal(ctx, req); err != nil {
		t.Fatalf("first register: %v", err)
	}

	req.BaseURL = "https://new.example.com"
	if _, err := r.RegisterExternal(ctx, req); err != nil {
		t.Fatalf("second register: %v", err)
	}

	got, _ := r.Get(ctx, "ext-mod")
	if got.BaseURL != "https://new.example.com" {
		t.Fatalf("expected updated base_url, got %s", got.BaseURL)
	}
}

func TestRegisterExternal_RequiresModuleIDAndBaseURL(t *testing.T) {
	r := New()
	ctx := t.Context()

	if _, err := r.RegisterExternal(ctx, RegisterExternalRequest{}); types.KindOf(err) != types.KindInvalidInput {
		t.Fatalf("expected invalid input for empty request, got %v", err)
	}
	if _, err := r.RegisterExternal(ctx, RegisterExternalRequest{ModuleID: "x"}); types.KindOf(err) != types.KindInvalidInput {
		t.Fatalf("expected invalid input for missing base_url, got %v", err)
	}
}

func TestDeregisterExternal_RejectsInternalModule(t *testing.T) {
	r := New()
	ctx := t.Context()
	_ = r.Put(ctx, types.ModuleDescriptor{ID: "internal-mod", Kind: types.ModuleKindInternal})

	err := r.DeregisterExternal(ctx, "internal-mod")
	if types.KindOf(err) != types.KindInvalidInput {
		t.Fatalf("expected invalid input deregistering internal module, got %v", err)
	}
}

func TestDeregisterExternal_RemovesModule(t *testing.T) {
	r := New()
	ctx := t.Context()
	if _, err := r.RegisterExternal(ctx, RegisterExternalRequest{ModuleID: "ext-mod", BaseURL: "https://x"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.DeregisterExternal(ctx, "ext-mod"); err != nil {
		t.Fatalf("DeregisterExternal: %v", err)
	}
	if _, err := r.Get(ctx, "ext-mod"); types.KindOf(err) != types.KindNotFound {
		t.Fatalf("expected not found after deregister, got %v", err)
	}
}
