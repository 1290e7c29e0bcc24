// Package fleet defines the server identities and the container runtime
// port shared by the rotation loop and the hang detector.
package fleet

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrContainerNotFound means the runtime no longer knows the container.
var ErrContainerNotFound = errors.New("container not found")

// Container states reported by the runtime that the daemon acts on.
const (
	StateRunning    = "running"
	StateExited     = "exited"
	StateRestarting = "restarting"
)

// Container is the runtime's view of one container.
type Container struct {
	ID    string
	Name  string
	State string
}

// ContainerRuntime abstracts the container engine.
// Production: adapter/docker.Runtime
// Testing: adapter/fake.ContainerRuntime
type ContainerRuntime interface {
	// FindContainer returns the first container whose name matches name.
	// The bool is false when no container matches.
	FindContainer(ctx context.Context, name string) (Container, bool, error)
	StartContainer(ctx context.Context, id string) error
	RestartContainer(ctx context.Context, id string) error
	// ContainerLogs returns the last tail lines of combined output.
	ContainerLogs(ctx context.Context, id string, tail int, timestamps bool) (string, error)
}

// Clock abstracts time.Now() for deterministic testing.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// Server identifies one managed game server.
type Server struct {
	// Name is the container name.
	Name string
	// Index locates the server's catalog and config documents.
	Index string
}

// ParseNames splits a comma-separated container name list, trimming blanks
// and dropping empty and duplicate entries.
func ParseNames(list string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(list, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
