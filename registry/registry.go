// Package registry implements the module registry (C4): module
// descriptors for internal (container-hosted) and external (service)
// modules, container lifecycle supervision, and health probing.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/modsentry/orchestrator/types"
)

// Registry stores ModuleDescriptor values and answers eligibility queries.
// Modules are keyed by ID alone, so an ID is unique across kinds: Put with
// an existing ID replaces that descriptor whatever its kind.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]*types.ModuleDescriptor
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{modules: make(map[string]*types.ModuleDescriptor)}
}

// Put inserts or replaces a module descriptor.
func (r *Registry) Put(_ context.Context, m types.ModuleDescriptor) error {
	if m.ID == "" {
		return types.NewError(types.KindInvalidInput, "registry.Put", fmt.Errorf("module id is required"))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := m
	r.modules[m.ID] = &cp
	return nil
}

// Get returns the module descriptor for id.
func (r *Registry) Get(_ context.Context, id string) (types.ModuleDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[id]
	if !ok {
		return types.ModuleDescriptor{}, types.NewError(types.KindNotFound, "registry.Get", fmt.Errorf("module %q", id))
	}
	return *m, nil
}

// Exists implements chain.ModuleExistenceChecker.
func (r *Registry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.modules[id]
	return ok
}

// List returns all registered modules, ordered by ID.
func (r *Registry) List(_ context.Context) ([]types.ModuleDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.ModuleDescriptor, 0, len(r.modules))
	for _, m := range r.modules {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Remove deregisters a module.
func (r *Registry) Remove(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.modules[id]; !ok {
		return types.NewError(types.KindNotFound, "registry.Remove", fmt.Errorf("module %q", id))
	}
	delete(r.modules, id)
	return nil
}

// SetHealthy updates the mutable health flag for a module. Reported by the
// health prober, never by discovery.
func (r *Registry) SetHealthy(_ context.Context, id string, healthy bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.modules[id]
	if !ok {
		return types.NewError(types.KindNotFound, "registry.SetHealthy", fmt.Errorf("module %q", id))
	}
	m.Healthy = healthy
	return nil
}

// SetContainerState updates the mutable container state for an internal
// module.
func (r *Registry) SetContainerState(_ context.Context, id string, state types.ContainerState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.modules[id]
	if !ok {
		return types.NewError(types.KindNotFound, "registry.SetContainerState", fmt.Errorf("module %q", id))
	}
	m.ContainerState = state
	return nil
}

// SetActive updates the mutable active flag.
func (r *Registry) SetActive(_ context.Context, id string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.modules[id]
	if !ok {
		return types.NewError(types.KindNotFound, "registry.SetActive", fmt.Errorf("module %q", id))
	}
	m.Active = active
	return nil
}

// Select returns the eligible modules (active, healthy, accepting ft),
// ordered by ID, per §4.4's select(module_id, file_type) query generalized
// to "which modules can take this file type" for the dispatcher.
func (r *Registry) Select(_ context.Context, ft types.FileType) []types.ModuleDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []types.ModuleDescriptor
	for _, m := range r.modules {
		if m.Eligible(ft) {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Eligible reports whether a specific module is currently eligible to
// receive tasks for ft.
func (r *Registry) Eligible(_ context.Context, moduleID string, ft types.FileType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[moduleID]
	if !ok {
		return false
	}
	return m.Eligible(ft)
}
