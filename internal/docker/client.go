// Package docker wraps docker/docker/client with the narrow surface the
// module registry's container supervisor needs: create/start/stop/remove
// an internal module's container, tail its logs on failure, and resolve
// its published host port.
package docker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
)

// Client wraps the Docker Engine API client used by the module registry.
type Client struct {
	api *client.Client
}

// NewClient connects to the local Docker daemon, falling back to an
// auto-detected non-default socket (e.g. Colima) when DOCKER_HOST is unset
// and the standard socket is unreachable.
func NewClient() (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}
	if err := pingClient(cli); err == nil {
		return &Client{api: cli}, nil
	} else if strings.TrimSpace(os.Getenv("DOCKER_HOST")) != "" {
		_ = cli.Close()
		return nil, err
	}
	_ = cli.Close()
	if host, ok := AutoDockerHost(); ok {
		alt, altErr := client.NewClientWithOpts(client.WithHost(host), client.WithAPIVersionNegotiation())
		if altErr != nil {
			return nil, err
		}
		if pingErr := pingClient(alt); pingErr == nil {
			return &Client{api: alt}, nil
		}
		_ = alt.Close()
	}
	return nil, err
}

func pingClient(cli *client.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := cli.Ping(ctx)
	return err
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	if c == nil || c.api == nil {
		return nil
	}
	return c.api.Close()
}

// ContainerByName returns the container ID for name, or ("", nil) if no
// such container exists.
func (c *Client) ContainerByName(ctx context.Context, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.New("container name required")
	}
	info, err := c.api.ContainerInspect(ctx, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return info.ID, nil
}

// CreateContainer creates a container without starting it.
func (c *Client) CreateContainer(ctx context.Context, cfg *container.Config, hostCfg *container.HostConfig, name string) (string, error) {
	resp, err := c.api.ContainerCreate(ctx, cfg, hostCfg, &network.NetworkingConfig{}, nil, name)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

// StartContainer starts a previously created container.
func (c *Client) StartContainer(ctx context.Context, containerID string) error {
	if strings.TrimSpace(containerID) == "" {
		return errors.New("container id required")
	}
	return c.api.ContainerStart(ctx, containerID, container.StartOptions{})
}

// StopContainer gracefully stops a running container.
func (c *Client) StopContainer(ctx context.Context, containerID string, timeout time.Duration) error {
	if strings.TrimSpace(containerID) == "" {
		return errors.New("container id required")
	}
	if timeout <= 0 {
		return c.api.ContainerStop(ctx, containerID, container.StopOptions{})
	}
	seconds := int(timeout.Seconds())
	return c.api.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &seconds})
}

// RemoveContainer removes a container, optionally forcing removal of a
// still-running one.
func (c *Client) RemoveContainer(ctx context.Context, containerID string, force bool) error {
	if strings.TrimSpace(containerID) == "" {
		return errors.New("container id required")
	}
	return c.api.ContainerRemove(ctx, containerID, container.RemoveOptions{
		Force:         force,
		RemoveVolumes: true,
	})
}

// Logs returns the combined stdout/stderr tail for diagnostics, typically
// called when a container transitions to failed.
func (c *Client) Logs(ctx context.Context, containerID string, tail int) (string, error) {
	if strings.TrimSpace(containerID) == "" {
		return "", errors.New("container id required")
	}
	tailStr := ""
	if tail > 0 {
		tailStr = fmt.Sprintf("%d", tail)
	}
	reader, err := c.api.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       tailStr,
	})
	if err != nil {
		return "", err
	}
	defer reader.Close()

	var buf strings.Builder
	if _, err := stdcopy.StdCopy(&buf, &buf, reader); err != nil {
		return buf.String(), nil
	}
	return buf.String(), nil
}

// HostPortFor resolves the host-published port bound to containerPort/tcp.
func (c *Client) HostPortFor(ctx context.Context, containerID string, containerPort int) (string, error) {
	if strings.TrimSpace(containerID) == "" {
		return "", errors.New("container id required")
	}
	info, err := c.api.ContainerInspect(ctx, containerID)
	if err != nil {
		return "", err
	}
	if info.NetworkSettings == nil {
		return "", fmt.Errorf("container %s has no network settings", containerID)
	}
	key := nat.Port(fmt.Sprintf("%d/tcp", containerPort))
	bindings, ok := info.NetworkSettings.Ports[key]
	if !ok || len(bindings) == 0 {
		return "", fmt.Errorf("no host port bound for %s", key)
	}
	for _, binding := range bindings {
		if strings.TrimSpace(binding.HostPort) != "" {
			return binding.HostPort, nil
		}
	}
	return "", fmt.Errorf("no host port bound for %s", key)
}

// ContainerRunning reports whether containerID exists and is running.
func (c *Client) ContainerRunning(ctx context.Context, containerID string) (bool, error) {
	info, err := c.api.ContainerInspect(ctx, containerID)
	if err != nil {
		if client.IsErrNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return info.State != nil && info.State.Running, nil
}
