package fake

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"rotator/internal/fleet"
)

var _ fleet.ContainerRuntime = (*ContainerRuntime)(nil)

type containerState struct {
	ID    string
	State string
	Logs  []string
}

// ContainerRuntime is an in-memory implementation of fleet.ContainerRuntime.
// Containers are matched by exact name.
type ContainerRuntime struct {
	CallRecorder
	mu         sync.Mutex
	containers map[string]*containerState

	FindContainerErr    func(ctx context.Context, name string) error
	StartContainerErr   func(ctx context.Context, id string) error
	RestartContainerErr func(ctx context.Context, id string) error
	ContainerLogsErr    func(ctx context.Context, id string, tail int) error
}

func NewContainerRuntime() *ContainerRuntime {
	return &ContainerRuntime{containers: make(map[string]*containerState)}
}

// AddContainer registers a container under name with the given id and state.
func (r *ContainerRuntime) AddContainer(name, id, state string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.containers[name] = &containerState{ID: id, State: state}
}

// SetState changes the state of a registered container.
func (r *ContainerRuntime) SetState(name, state string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cs, ok := r.containers[name]; ok {
		cs.State = state
	}
}

// State returns the current state of a registered container.
func (r *ContainerRuntime) State(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cs, ok := r.containers[name]; ok {
		return cs.State
	}
	return ""
}

// AppendLogs adds output lines to a registered container.
func (r *ContainerRuntime) AppendLogs(name string, lines ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cs, ok := r.containers[name]; ok {
		cs.Logs = append(cs.Logs, lines...)
	}
}

func (r *ContainerRuntime) FindContainer(ctx context.Context, name string) (fleet.Container, bool, error) {
	r.record("FindContainer", name)
	if r.FindContainerErr != nil {
		if err := r.FindContainerErr(ctx, name); err != nil {
			return fleet.Container{}, false, err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cs, ok := r.containers[name]
	if !ok {
		return fleet.Container{}, false, nil
	}
	return fleet.Container{ID: cs.ID, Name: name, State: cs.State}, true, nil
}

func (r *ContainerRuntime) StartContainer(ctx context.Context, id string) error {
	r.record("StartContainer", id)
	if r.StartContainerErr != nil {
		if err := r.StartContainerErr(ctx, id); err != nil {
			return err
		}
	}
	return r.setRunning(id)
}

func (r *ContainerRuntime) RestartContainer(ctx context.Context, id string) error {
	r.record("RestartContainer", id)
	if r.RestartContainerErr != nil {
		if err := r.RestartContainerErr(ctx, id); err != nil {
			return err
		}
	}
	return r.setRunning(id)
}

func (r *ContainerRuntime) setRunning(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cs := range r.containers {
		if cs.ID == id {
			cs.State = fleet.StateRunning
			return nil
		}
	}
	return fmt.Errorf("%w: %s", fleet.ErrContainerNotFound, id)
}

// ContainerLogs returns the last tail lines stored for the container. Lines
// are returned as appended, so tests include timestamps themselves.
func (r *ContainerRuntime) ContainerLogs(ctx context.Context, id string, tail int, timestamps bool) (string, error) {
	r.record("ContainerLogs", id, tail, timestamps)
	if r.ContainerLogsErr != nil {
		if err := r.ContainerLogsErr(ctx, id, tail); err != nil {
			return "", err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, cs := range r.containers {
		if cs.ID != id {
			continue
		}
		lines := cs.Logs
		if tail >= 0 && len(lines) > tail {
			lines = lines[len(lines)-tail:]
		}
		return strings.Join(lines, "\n"), nil
	}
	return "", fmt.Errorf("%w: %s", fleet.ErrContainerNotFound, id)
}
