package external

import (
	"context"
	"fmt"

	"github.com/modsentry/orchestrator/queue"
	"github.com/modsentry/orchestrator/report"
	"github.com/modsentry/orchestrator/types"
)

// ModuleRegistration is the narrow C4 dependency result ingestion needs:
// does the module exist, and is it the external kind.
type ModuleRegistration interface {
	Get(ctx context.Context, id string) (types.ModuleDescriptor, error)
}

// ArtifactChecker is the narrow C1 dependency: is the fingerprint known.
type ArtifactChecker interface {
	GetArtifact(ctx context.Context, fingerprint string) (*types.Artifact, error)
}

// ResultIngester implements POST /external-modules/{id}/results (§4.8):
// validates the module is registered and external, the fingerprint is
// known, and task_id is current (when an outstanding task marker exists,
// task_id must match it; without a marker any task_id is accepted), then
// writes through C3 (so an executor task awaiting this result
// observes it) and C2 (for durability independent of the await path).
type ResultIngester struct {
	modules   ModuleRegistration
	artifacts ArtifactChecker
	plane     queue.Plane
	reports   report.Repository
}

// NewResultIngester creates a ResultIngester.
func NewResultIngester(modules ModuleRegistration, artifacts ArtifactChecker, plane queue.Plane, reports report.Repository) *ResultIngester {
	return &ResultIngester{modules: modules, artifacts: artifacts, plane: plane, reports: reports}
}

// Ingest validates and records a module result.
func (ri *ResultIngester) Ingest(ctx context.Context, moduleID string, result *types.ModuleResult) error {
	mod, err := ri.modules.Get(ctx, moduleID)
	if err != nil {
		return types.NewError(types.KindNotFound, "external.Ingest", fmt.Errorf("module %q: %w", moduleID, err))
	}
	if mod.Kind != types.ModuleKindExternal {
		return types.NewError(types.KindInvalidInput, "external.Ingest", fmt.Errorf("module %q is not external", moduleID))
	}

	if _, err := ri.artifacts.GetArtifact(ctx, result.Fingerprint); err != nil {
		return types.NewError(types.KindNotFound, "external.Ingest", fmt.Errorf("fingerprint %q: %w", result.Fingerprint, err))
	}

	marker, ok, err := ri.reports.GetTaskMarker(result.Fingerprint, moduleID)
	if err != nil {
		return types.NewError(types.KindInternal, "external.Ingest", err)
	}
	if ok && marker.TaskID != result.TaskID {
		return types.NewError(types.KindInvalidInput, "external.Ingest",
			fmt.Errorf("task_id %q is not the current outstanding task for module %q", result.TaskID, moduleID))
	}

	result.ModuleID = moduleID
	if err := ri.plane.PublishResult(ctx, result); err != nil {
		return types.NewError(types.KindUnavailable, "external.Ingest", err)
	}
	if err := ri.reports.PutModuleResult(result.Fingerprint, *result); err != nil {
		return types.NewError(types.KindInternal, "external.Ingest", err)
	}
	return nil
}
