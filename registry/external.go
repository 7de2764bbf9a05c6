package registry

import (
	"context"
	"fmt"

	"github.com/modsentry/orchestrator/types"
)

// ExternalModuleConfig is the "config" sub-object of an external module
// registration request, per §6.
type ExternalModuleConfig struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Author       string          `json:"author"`
	InputFormats []types.FileType `json:"input_formats"`
}

// RegisterExternalRequest is the body of an external module registration
// request: {module_id, base_url, healthcheck_url, config}.
type RegisterExternalRequest struct {
	ModuleID       string                `json:"module_id"`
	BaseURL        string                `json:"base_url"`
	HealthcheckURL string                `json:"healthcheck_url"`
	Config         ExternalModuleConfig  `json:"config"`
}

// RegisterExternal registers or re-registers an external module. Repeating
// an identical request is idempotent; a changed base_url updates the
// descriptor atomically (single Put call under the registry's lock).
func (r *Registry) RegisterExternal(ctx context.Context, req RegisterExternalRequest) (types.ModuleDescriptor, error) {
	if req.ModuleID == "" {
		return types.ModuleDescriptor{}, types.NewError(types.KindInvalidInput, "registry.RegisterExternal", fmt.Errorf("module_id is required"))
	}
	if req.BaseURL == "" {
		return types.ModuleDescriptor{}, types.NewError(types.KindInvalidInput, "registry.RegisterExternal", fmt.Errorf("base_url is required"))
	}

	m := types.ModuleDescriptor{
		ID:             req.ModuleID,
		Name:           req.Config.Name,
		Version:        req.Config.Version,
		Author:         req.Config.Author,
		Description:    req.Config.Description,
		InputFormats:   req.Config.InputFormats,
		Kind:           types.ModuleKindExternal,
		Active:         true,
		Healthy:        true,
		BaseURL:        req.BaseURL,
		HealthcheckURL: req.HealthcheckURL,
	}
	if err := r.Put(ctx, m); err != nil {
		return types.ModuleDescriptor{}, err
	}
	return m, nil
}

// DeregisterExternal removes an external module's registration.
func (r *Registry) DeregisterExternal(ctx context.Context, moduleID string) error {
	m, err := r.Get(ctx, moduleID)
	if err != nil {
		return err
	}
	if m.Kind != types.ModuleKindExternal {
		return types.NewError(types.KindInvalidInput, "registry.DeregisterExternal", fmt.Errorf("module %q is not external", moduleID))
	}
	return r.Remove(ctx, moduleID)
}
