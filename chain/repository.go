// Package chain implements the chain definition store (C5): CRUD over
// named, ordered module sequences, with validation against the module
// registry.
package chain

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/modsentry/orchestrator/types"
)

// ModuleExistenceChecker is the narrow registry dependency chain validation
// needs: does a module ID exist at all (regardless of health).
type ModuleExistenceChecker interface {
	Exists(moduleID string) bool
}

// Repository stores named Chain definitions.
type Repository interface {
	Create(ctx context.Context, c types.Chain) (types.Chain, error)
	Get(ctx context.Context, name string) (types.Chain, error)
	List(ctx context.Context) ([]types.Chain, error)
	Delete(ctx context.Context, name string) error
}

// MemRepository is an in-memory Repository, the default for tests and for
// deployments that manage chains only through the CLI/API at runtime.
type MemRepository struct {
	mu     sync.RWMutex
	chains map[string]types.Chain
}

// NewMemRepository creates an empty MemRepository.
func NewMemRepository() *MemRepository {
	return &MemRepository{chains: make(map[string]types.Chain)}
}

// Create implements Repository.
func (r *MemRepository) Create(_ context.Context, c types.Chain) (types.Chain, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.chains[c.Name]; exists {
		return types.Chain{}, types.NewError(types.KindIllegalState, "chain.Create", fmt.Errorf("chain %q already exists", c.Name))
	}
	c.Normalize()
	r.chains[c.Name] = c
	return c, nil
}

// Get implements Repository.
func (r *MemRepository) Get(_ context.Context, name string) (types.Chain, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.chains[name]
	if !ok {
		return types.Chain{}, types.NewError(types.KindNotFound, "chain.Get", fmt.Errorf("chain %q", name))
	}
	return c, nil
}

// List implements Repository.
func (r *MemRepository) List(_ context.Context) ([]types.Chain, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.Chain, 0, len(r.chains))
	for _, c := range r.chains {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Delete implements Repository.
func (r *MemRepository) Delete(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.chains[name]; !ok {
		return types.NewError(types.KindNotFound, "chain.Delete", fmt.Errorf("chain %q", name))
	}
	delete(r.chains, name)
	return nil
}

var _ Repository = (*MemRepository)(nil)

// Validate checks a Chain definition is well-formed: non-empty name, at
// least one step, and every step's ModuleID exists in the registry.
func Validate(c types.Chain, modules ModuleExistenceChecker) error {
	if c.Name == "" {
		return types.NewError(types.KindInvalidInput, "chain.Validate", fmt.Errorf("chain name is required"))
	}
	if len(c.Steps) == 0 {
		return types.NewError(types.KindInvalidInput, "chain.Validate", fmt.Errorf("chain %q has no steps", c.Name))
	}
	for _, step := range c.Steps {
		if step.ModuleID == "" {
			return types.NewError(types.KindInvalidInput, "chain.Validate", fmt.Errorf("chain %q has a step with no module_id", c.Name))
		}
		if modules != nil && !modules.Exists(step.ModuleID) {
			return types.NewError(types.KindInvalidInput, "chain.Validate", fmt.Errorf("chain %q references unknown module %q", c.Name, step.ModuleID))
		}
	}
	return nil
}
