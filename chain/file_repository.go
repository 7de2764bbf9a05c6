package chain

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/modsentry/orchestrator/types"
)

// fileDocument is the on-disk shape of a chain definitions file.
type fileDocument struct {
	Chains []types.Chain `yaml:"chains"`
}

// FileRepository is a Repository backed by a single YAML file, rewritten
// atomically on every mutation. Reads are served from an in-memory cache
// populated at construction time, matching the teacher's config-load idiom
// of reading the whole file up front rather than per-call.
type FileRepository struct {
	mu   sync.RWMutex
	path string
	mem  map[string]types.Chain
}

// NewFileRepository loads chain definitions from path, creating an empty
// file if it does not yet exist.
func NewFileRepository(path string) (*FileRepository, error) {
	r := &FileRepository{path: path, mem: make(map[string]types.Chain)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := r.flushLocked(); err != nil {
				return nil, err
			}
			return r, nil
		}
		return nil, fmt.Errorf("chain: read %s: %w", path, err)
	}

	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("chain: parse %s: %w", path, err)
	}
	for _, c := range doc.Chains {
		c.Normalize()
		r.mem[c.Name] = c
	}
	return r, nil
}

// flushLocked rewrites the backing file from r.mem. Caller must hold r.mu.
func (r *FileRepository) flushLocked() error {
	names := make([]string, 0, len(r.mem))
	for name := range r.mem {
		names = append(names, name)
	}
	sort.Strings(names)

	doc := fileDocument{Chains: make([]types.Chain, 0, len(names))}
	for _, name := range names {
		doc.Chains = append(doc.Chains, r.mem[name])
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("chain: encode %s: %w", r.path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("chain: encode %s: %w", r.path, err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("chain: create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".chains-*.yaml")
	if err != nil {
		return fmt.Errorf("chain: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("chain: write %s: %w", r.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chain: write %s: %w", r.path, err)
	}
	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chain: rename into %s: %w", r.path, err)
	}
	return nil
}

// Create implements Repository.
func (r *FileRepository) Create(_ context.Context, c types.Chain) (types.Chain, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.mem[c.Name]; exists {
		return types.Chain{}, types.NewError(types.KindIllegalState, "chain.Create", fmt.Errorf("chain %q already exists", c.Name))
	}
	c.Normalize()
	r.mem[c.Name] = c
	if err := r.flushLocked(); err != nil {
		delete(r.mem, c.Name)
		return types.Chain{}, err
	}
	return c, nil
}

// Get implements Repository.
func (r *FileRepository) Get(_ context.Context, name string) (types.Chain, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.mem[name]
	if !ok {
		return types.Chain{}, types.NewError(types.KindNotFound, "chain.Get", fmt.Errorf("chain %q", name))
	}
	return c, nil
}

// List implements Repository.
func (r *FileRepository) List(_ context.Context) ([]types.Chain, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.Chain, 0, len(r.mem))
	for _, c := range r.mem {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Delete implements Repository.
func (r *FileRepository) Delete(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.mem[name]
	if !ok {
		return types.NewError(types.KindNotFound, "chain.Delete", fmt.Errorf("chain %q", name))
	}
	delete(r.mem, name)
	if err := r.flushLocked(); err != nil {
		r.mem[name] = old
		return err
	}
	return nil
}

var _ Repository = (*FileRepository)(nil)
