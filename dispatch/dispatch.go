// Package dispatch implements the dispatcher (C7): on artifact ingestion it
// reads the current auto-run policy and starts the configured module or
// chain, via the same entry point explicit user-initiated runs use.
package dispatch

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/modsentry/orchestrator/types"
)

// ChainStarter is the narrow C6 dependency: launch a ChainRun for a named
// Chain definition against an ingested artifact.
type ChainStarter interface {
	StartChainRun(ctx context.Context, chain types.Chain, fingerprint string) (*types.ChainRun, error)
}

// ChainLookup is the narrow C5 dependency: resolve a chain by name.
type ChainLookup interface {
	Get(ctx context.Context, name string) (types.Chain, error)
}

// Dispatcher holds the process-wide auto-run policy behind an atomic
// pointer (§9 Design Notes): the settings API swaps it with Store, and
// OnIngested reads one consistent snapshot via Load so a single ingestion
// never observes a mid-flight config change.
type Dispatcher struct {
	cfg     atomic.Pointer[types.AutoRunConfig]
	chains  ChainLookup
	executor ChainStarter
}

// New creates a Dispatcher with the none-for-everything default policy.
func New(chains ChainLookup, executor ChainStarter) *Dispatcher {
	d := &Dispatcher{chains: chains, executor: executor}
	d.cfg.Store(&types.AutoRunConfig{})
	return d
}

// Store atomically replaces the auto-run policy.
func (d *Dispatcher) Store(cfg types.AutoRunConfig) {
	d.cfg.Store(&cfg)
}

// Config returns the currently active auto-run policy.
func (d *Dispatcher) Config() types.AutoRunConfig {
	return *d.cfg.Load()
}

// OnIngested handles automatic dispatch on ingestion (§4.7): it selects the
// rule for the artifact's detected type from one snapshot of the auto-run
// policy and hands it to Run, the entry point explicit runs also use.
func (d *Dispatcher) OnIngested(ctx context.Context, artifact *types.Artifact) (*types.ChainRun, error) {
	cfg := d.Config()
	rule := cfg.RuleFor(artifact.DetectedType)
	return d.Run(ctx, rule, artifact.Fingerprint)
}

// Run starts whatever rule selects, against fingerprint. Used directly by
// explicit "run module X" / "run chain Y" user requests, which construct
// their own ad hoc Rule rather than going through the stored AutoRunConfig.
func (d *Dispatcher) Run(ctx context.Context, rule types.Rule, fingerprint string) (*types.ChainRun, error) {
	switch rule.Kind {
	case types.RuleNone, "":
		return nil, nil
	case types.RuleModule:
		chain := types.Chain{
			Name:  "auto:" + rule.TargetID,
			Steps: []types.ChainStep{{ModuleID: rule.TargetID}},
		}
		chain.Normalize()
		return d.executor.StartChainRun(ctx, chain, fingerprint)
	case types.RuleChain:
		c, err := d.chains.Get(ctx, rule.TargetID)
		if err != nil {
			return nil, err
		}
		return d.executor.StartChainRun(ctx, c, fingerprint)
	default:
		return nil, types.NewError(types.KindInvalidInput, "dispatch.Run", fmt.Errorf("unknown rule kind %q", rule.Kind))
	}
}
