package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/api/types/container"

	"github.com/modsentry/orchestrator/internal/backoff"
	"github.com/modsentry/orchestrator/log"
	"github.com/modsentry/orchestrator/types"
)

// SupervisorConfig parameterizes container build/start retries.
type SupervisorConfig struct {
	BuildRetries  int
	BuildBaseDelay time.Duration
	StopTimeout   time.Duration
	LogTailLines  int
}

// DefaultSupervisorConfig mirrors the adapters' default retry shape: 3
// retries, 500ms base delay.
func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		BuildRetries:   3,
		BuildBaseDelay: 500 * time.Millisecond,
		StopTimeout:    10 * time.Second,
		LogTailLines:   200,
	}
}

// ContainerSupervisor drives one internal module's container through the
// absent -> building -> running -> (stopped | failed) state machine (§4.4).
type ContainerSupervisor struct {
	registry *Registry
	engine   ContainerEngine
	cfg      SupervisorConfig
	logger   *log.Logger
}

// NewContainerSupervisor creates a supervisor for internal modules.
func NewContainerSupervisor(registry *Registry, engine ContainerEngine, cfg SupervisorConfig, logger *log.Logger) *ContainerSupervisor {
	if logger == nil {
		logger = log.NewLogger()
	}
	return &ContainerSupervisor{registry: registry, engine: engine, cfg: cfg, logger: logger}
}

// containerName is the deterministic container name for a module ID.
func containerName(moduleID string) string {
	return "modsentry-module-" + moduleID
}

// Start brings an internal module's container up from absent/stopped/failed
// to running, retrying the create+start sequence with exponential backoff.
func (s *ContainerSupervisor) Start(ctx context.Context, m types.ModuleDescriptor) error {
	if m.Kind != types.ModuleKindInternal {
		return types.NewError(types.KindInvalidInput, "registry.Start", fmt.Errorf("module %q is not internal", m.ID))
	}

	if err := s.registry.SetContainerState(ctx, m.ID, types.ContainerBuilding); err != nil {
		return err
	}

	retryCfg := backoff.Config{Attempts: s.cfg.BuildRetries + 1, BaseDelay: s.cfg.BuildBaseDelay}
	var containerID string
	err := backoff.Retry(ctx, retryCfg, func(ctx context.Context) error {
		id, startErr := s.ensureContainer(ctx, m)
		if startErr != nil {
			return startErr
		}
		containerID = id
		return nil
	})
	if err != nil {
		_ = s.registry.SetContainerState(ctx, m.ID, types.ContainerFailed)
		s.logDiagnostics(ctx, m.ID, containerID)
		return fmt.Errorf("registry: start module %s: %w", m.ID, err)
	}

	return s.registry.SetContainerState(ctx, m.ID, types.ContainerRunning)
}

func (s *ContainerSupervisor) ensureContainer(ctx context.Context, m types.ModuleDescriptor) (string, error) {
	name := containerName(m.ID)
	id, err := s.engine.ContainerByName(ctx, name)
	if err != nil {
		return "", err
	}
	if id == "" {
		id, err = s.engine.CreateContainer(ctx, &container.Config{
			Image: m.ImageRef,
			Labels: map[string]string{
				"modsentry.module_id": m.ID,
			},
		}, &container.HostConfig{}, name)
		if err != nil {
			return "", fmt.Errorf("create container: %w", err)
		}
	}
	if err := s.engine.StartContainer(ctx, id); err != nil {
		return id, fmt.Errorf("start container: %w", err)
	}
	running, err := s.engine.ContainerRunning(ctx, id)
	if err != nil {
		return id, fmt.Errorf("inspect container: %w", err)
	}
	if !running {
		return id, fmt.Errorf("container %s did not reach running state", id)
	}
	return id, nil
}

// Stop gracefully stops an internal module's container.
func (s *ContainerSupervisor) Stop(ctx context.Context, m types.ModuleDescriptor) error {
	id, err := s.engine.ContainerByName(ctx, containerName(m.ID))
	if err != nil {
		return err
	}
	if id == "" {
		return s.registry.SetContainerState(ctx, m.ID, types.ContainerAbsent)
	}
	if err := s.engine.StopContainer(ctx, id, s.cfg.StopTimeout); err != nil {
		return fmt.Errorf("registry: stop module %s: %w", m.ID, err)
	}
	return s.registry.SetContainerState(ctx, m.ID, types.ContainerStopped)
}

// Rebuild removes the existing container (if any) and starts a fresh one.
func (s *ContainerSupervisor) Rebuild(ctx context.Context, m types.ModuleDescriptor) error {
	id, err := s.engine.ContainerByName(ctx, containerName(m.ID))
	if err != nil {
		return err
	}
	if id != "" {
		if err := s.engine.RemoveContainer(ctx, id, true); err != nil {
			return fmt.Errorf("registry: remove container for rebuild %s: %w", m.ID, err)
		}
	}
	return s.Start(ctx, m)
}

func (s *ContainerSupervisor) logDiagnostics(ctx context.Context, moduleID, containerID string) {
	if containerID == "" {
		return
	}
	logs, err := s.engine.Logs(ctx, containerID, s.cfg.LogTailLines)
	if err != nil {
		s.logger.Error("registry: fetch container logs failed", map[string]any{"module_id": moduleID, "error": err.Error()})
		return
	}
	s.logger.Warn("registry: module container failed", map[string]any{"module_id": moduleID, "logs": logs})
}
