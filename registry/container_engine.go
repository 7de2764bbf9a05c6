package registry

import (
	"context"
	"time"

	"github.com/docker/docker/api/types/container"
)

// ContainerEngine is the narrow container lifecycle surface the
// supervisor needs, implemented by internal/docker.Client in production
// and by a fake in tests.
type ContainerEngine interface {
	ContainerByName(ctx context.Context, name string) (string, error)
	CreateContainer(ctx context.Context, cfg *container.Config, hostCfg *container.HostConfig, name string) (string, error)
	StartContainer(ctx context.Context, containerID string) error
	StopContainer(ctx context.Context, containerID string, timeout time.Duration) error
	RemoveContainer(ctx context.Context, containerID string, force bool) error
	Logs(ctx context.Context, containerID string, tail int) (string, error)
	ContainerRunning(ctx context.Context, containerID string) (bool, error)
}
