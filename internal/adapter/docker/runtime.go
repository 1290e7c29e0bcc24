package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"

	"rotator/internal/fleet"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

var _ fleet.ContainerRuntime = (*Runtime)(nil)

// Runtime implements fleet.ContainerRuntime using the Docker Engine API.
type Runtime struct {
	cli client.APIClient
}

// NewRuntime creates a Runtime with a new Docker client from the environment.
func NewRuntime() (*Runtime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &Runtime{cli: cli}, nil
}

// NewRuntimeFromClient wraps an existing Docker client.
func NewRuntimeFromClient(cli client.APIClient) *Runtime {
	return &Runtime{cli: cli}
}

func (r *Runtime) WaitReady(ctx context.Context) error {
	return WaitReady(ctx, r.cli)
}

// FindContainer lists all containers, stopped ones included, whose name
// matches name. An exact name match wins over the engine's substring match.
func (r *Runtime) FindContainer(ctx context.Context, name string) (fleet.Container, bool, error) {
	list, err := r.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("name", name)),
	})
	if err != nil {
		return fleet.Container{}, false, fmt.Errorf("list containers named %q: %w", name, err)
	}
	if len(list) == 0 {
		return fleet.Container{}, false, nil
	}

	for _, c := range list {
		for _, n := range c.Names {
			if trimSlash(n) == name {
				return toContainer(c, name), true, nil
			}
		}
	}
	return toContainer(list[0], name), true, nil
}

func toContainer(c container.Summary, fallbackName string) fleet.Container {
	name := fallbackName
	if len(c.Names) > 0 {
		name = trimSlash(c.Names[0])
	}
	return fleet.Container{ID: c.ID, Name: name, State: string(c.State)}
}

func trimSlash(s string) string {
	if len(s) > 0 && s[0] == '/' {
		return s[1:]
	}
	return s
}

func (r *Runtime) StartContainer(ctx context.Context, id string) error {
	if err := r.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return fmt.Errorf("start container %s: %w", id, classify(err))
	}
	return nil
}

func (r *Runtime) RestartContainer(ctx context.Context, id string) error {
	if err := r.cli.ContainerRestart(ctx, id, container.StopOptions{}); err != nil {
		return fmt.Errorf("restart container %s: %w", id, classify(err))
	}
	return nil
}

// ContainerLogs returns the last tail lines of stdout followed by stderr.
// Multiplexed streams are split with stdcopy; TTY containers are read raw.
func (r *Runtime) ContainerLogs(ctx context.Context, id string, tail int, timestamps bool) (string, error) {
	info, err := r.cli.ContainerInspect(ctx, id)
	if err != nil {
		return "", fmt.Errorf("inspect container %s: %w", id, classify(err))
	}
	tty := info.Config != nil && info.Config.Tty

	rc, err := r.cli.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Timestamps: timestamps,
		Tail:       strconv.Itoa(tail),
	})
	if err != nil {
		return "", fmt.Errorf("container logs %s: %w", id, err)
	}
	defer rc.Close()

	if tty {
		data, err := io.ReadAll(rc)
		if err != nil {
			return "", fmt.Errorf("read logs %s: %w", id, err)
		}
		return string(bytes.TrimSpace(data)), nil
	}

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, rc); err != nil {
		return "", fmt.Errorf("demux logs %s: %w", id, err)
	}
	out := bytes.TrimSpace(stdout.Bytes())
	if errOut := bytes.TrimSpace(stderr.Bytes()); len(errOut) > 0 {
		if len(out) > 0 {
			out = append(out, '\n')
		}
		out = append(out, errOut...)
	}
	return string(out), nil
}

// classify maps engine not-found errors to fleet.ErrContainerNotFound.
// The container can disappear between listing and acting on it.
func classify(err error) error {
	if errdefs.IsNotFound(err) {
		return fmt.Errorf("%w: %v", fleet.ErrContainerNotFound, err)
	}
	return err
}

func (r *Runtime) Close() error {
	return r.cli.Close()
}
