package rotation

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"rotator/internal/check"
	"rotator/internal/fleet"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultInterval is the pause between rotation ticks.
	DefaultInterval = 5 * time.Second
	// DefaultCallTimeout bounds each container runtime call.
	DefaultCallTimeout = 30 * time.Second
	// minAntiRepeatCatalog is the smallest catalog where a fresh pick never
	// needs the fallback.
	minAntiRepeatCatalog = 3
)

// Loop starts exited server containers with a freshly selected scenario.
type Loop struct {
	Runtime     fleet.ContainerRuntime // injected: container engine
	Configs     ConfigStore            // injected: per-server config documents
	Catalogs    CatalogSource          // injected: per-server scenario catalogs
	Selector    *Selector
	Servers     []fleet.Server
	Interval    time.Duration
	CallTimeout time.Duration
	Tracer      trace.Tracer
	// OnRotate is called after a start request was accepted.
	OnRotate func(server fleet.Server, scenarioID string)

	mu     sync.Mutex
	phases map[string]Phase
}

func (l *Loop) interval() time.Duration {
	if l.Interval > 0 {
		return l.Interval
	}
	return DefaultInterval
}

func (l *Loop) callTimeout() time.Duration {
	if l.CallTimeout > 0 {
		return l.CallTimeout
	}
	return DefaultCallTimeout
}

func (l *Loop) tracer() trace.Tracer {
	if l.Tracer != nil {
		return l.Tracer
	}
	return otel.Tracer("rotator/internal/rotation")
}

// Run ticks until ctx is cancelled, sleeping Interval after each tick.
func (l *Loop) Run(ctx context.Context) error {
	check.Assert(l.Runtime != nil, "Loop.Run: Runtime must not be nil")
	check.Assert(l.Configs != nil, "Loop.Run: Configs must not be nil")
	check.Assert(l.Catalogs != nil, "Loop.Run: Catalogs must not be nil")
	check.Assert(l.Selector != nil, "Loop.Run: Selector must not be nil")

	slog.Info("Rotation loop started.", "servers", len(l.Servers), "interval", l.interval())
	for {
		l.Tick(ctx)

		timer := time.NewTimer(l.interval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Tick checks every configured server concurrently and returns once all
// checks have finished. Failures are logged per server.
func (l *Loop) Tick(ctx context.Context) {
	var g errgroup.Group
	g.SetLimit(max(1, len(l.Servers)))
	for _, srv := range l.Servers {
		g.Go(func() error {
			if err := l.checkServer(ctx, srv); err != nil {
				slog.Warn("Rotation check failed.", "server", srv.Name, "index", srv.Index, "err", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Phases returns the last observed phase of each server checked so far.
func (l *Loop) Phases() map[string]Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	return maps.Clone(l.phases)
}

func (l *Loop) setPhase(server string, p Phase) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.phases == nil {
		l.phases = make(map[string]Phase)
	}
	if prev, ok := l.phases[server]; ok && prev != p {
		slog.Debug("Server phase changed.", "server", server, "from", prev, "to", p)
	}
	l.phases[server] = p
}

func (l *Loop) checkServer(ctx context.Context, srv fleet.Server) (err error) {
	ctx, span := l.tracer().Start(ctx, "rotation.check", trace.WithAttributes(
		attribute.String("server.name", srv.Name),
		attribute.String("server.index", srv.Index),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	c, found, err := l.findContainer(ctx, srv.Name)
	if err != nil {
		return err
	}
	if !found {
		l.setPhase(srv.Name, PhaseUnknown)
		slog.Warn("Server container not found.", "server", srv.Name)
		return nil
	}

	l.setPhase(srv.Name, phaseOf(c.State))
	span.SetAttributes(attribute.String("container.state", c.State))
	if c.State != fleet.StateExited {
		return nil
	}

	scenarioID, err := l.rotate(ctx, srv, c)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.String("scenario.id", scenarioID))
	return nil
}

func (l *Loop) findContainer(ctx context.Context, name string) (fleet.Container, bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, l.callTimeout())
	defer cancel()
	c, found, err := l.Runtime.FindContainer(callCtx, name)
	if err != nil {
		return fleet.Container{}, false, fmt.Errorf("find container %q: %w", name, err)
	}
	return c, found, nil
}

// rotate writes a new scenario into the server's config and starts the
// container. The config is validated before picking so a broken document
// does not consume a history slot.
func (l *Loop) rotate(ctx context.Context, srv fleet.Server, c fleet.Container) (string, error) {
	catalog, err := l.Catalogs.ReadCatalog(ctx, srv.Index)
	if err != nil {
		return "", fmt.Errorf("read catalog for server %s: %w", srv.Index, err)
	}
	if len(catalog) < minAntiRepeatCatalog {
		slog.Warn("Scenario catalog too small to avoid repeats.", "server", srv.Name, "count", len(catalog), "history_cap", HistoryCap(len(catalog)))
	}

	doc, err := l.Configs.ReadDocument(ctx, srv.Index)
	if err != nil {
		return "", fmt.Errorf("read config for server %s: %w", srv.Index, err)
	}
	previous, err := doc.ScenarioID()
	if err != nil {
		return "", fmt.Errorf("read config for server %s: %w", srv.Index, err)
	}

	scenarioID, err := l.Selector.PickNext(srv.Name, catalog)
	if err != nil {
		return "", fmt.Errorf("pick scenario for %s: %w", srv.Name, err)
	}
	updated, err := doc.WithScenarioID(scenarioID)
	if err != nil {
		return "", err
	}
	if err := l.Configs.WriteDocument(ctx, srv.Index, updated); err != nil {
		return "", fmt.Errorf("write config for server %s: %w", srv.Index, err)
	}
	slog.Info("Scenario selected.",
		"server", srv.Name,
		"scenario", scenarioID,
		"previous", previous,
		"history", l.Selector.Tracker().History(srv.Name))

	callCtx, cancel := context.WithTimeout(ctx, l.callTimeout())
	defer cancel()
	if err := l.Runtime.StartContainer(callCtx, c.ID); err != nil {
		return "", fmt.Errorf("start container %s: %w", srv.Name, err)
	}
	l.setPhase(srv.Name, PhaseRestarting)
	slog.Info("Server container start requested.", "server", srv.Name, "container", c.ID)

	if l.OnRotate != nil {
		l.OnRotate(srv, scenarioID)
	}
	return scenarioID, nil
}
