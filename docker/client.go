package docker

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/oar-cd/hound/domain"
)

// composeProjectLabel is set by docker compose on every container it creates
const composeProjectLabel = "com.docker.compose.project"

// StatusReader reports the live state of a compose project's containers
type StatusReader interface {
	ProjectStatus(ctx context.Context, composeName string) (domain.RuntimeStatus, error)
}

// DockerClient wraps Docker SDK operations
type DockerClient struct {
	cli *client.Client
}

var _ StatusReader = (*DockerClient)(nil)

// NewDockerClient creates a new Docker client for host
func NewDockerClient(host string) (*DockerClient, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}
	return &DockerClient{cli: cli}, nil
}

// Close closes the Docker client
func (dc *DockerClient) Close() error {
	if dc.cli != nil {
		return dc.cli.Close()
	}
	return nil
}

func (dc *DockerClient) ProjectStatus(ctx context.Context, composeName string) (domain.RuntimeStatus, error) {
	containers, err := dc.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", composeProjectLabel+"="+composeName)),
	})
	if err != nil {
		return domain.RuntimeStatusUnknown, fmt.Errorf("failed to list containers: %w", err)
	}

	states := make([]string, len(containers))
	for i, c := range containers {
		states[i] = string(c.State)
	}
	return SummarizeStates(states), nil
}

// SummarizeStates folds container states into one runtime status
func SummarizeStates(states []string) domain.RuntimeStatus {
	if len(states) == 0 {
		return domain.RuntimeStatusStopped
	}

	running := 0
	for _, s := range states {
		if s == "running" {
			running++
		}
	}

	switch running {
	case len(states):
		return domain.RuntimeStatusRunning
	case 0:
		return domain.RuntimeStatusStopped
	default:
		return domain.RuntimeStatusPartial
	}
}
