package hang

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
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
	// DefaultThreshold is how long a container may go without logging.
	DefaultThreshold = 360 * time.Second
	// DefaultInterval is the pause between detector ticks.
	DefaultInterval = 10 * time.Second
	// DefaultCallTimeout bounds each container runtime call.
	DefaultCallTimeout = 30 * time.Second
	// DefaultMarker is the log text the game server prints when frozen.
	DefaultMarker = "Application hangs"

	markerTailLines = 10
)

// Detector restarts containers whose logs went stale or report a hang.
type Detector struct {
	Runtime     fleet.ContainerRuntime // injected: container engine
	Containers  []string
	Threshold   time.Duration
	Interval    time.Duration
	CallTimeout time.Duration
	Marker      string
	// LeaveExited skips exited containers. The daemon sets it while the
	// rotation loop is enabled, since that loop starts them with a new
	// scenario.
	LeaveExited bool
	Clock       fleet.Clock
	Tracer      trace.Tracer
	// OnRestart is called after a restart request was accepted.
	OnRestart func(Sample)
}

func (d *Detector) threshold() time.Duration {
	if d.Threshold > 0 {
		return d.Threshold
	}
	return DefaultThreshold
}

func (d *Detector) interval() time.Duration {
	if d.Interval > 0 {
		return d.Interval
	}
	return DefaultInterval
}

func (d *Detector) callTimeout() time.Duration {
	if d.CallTimeout > 0 {
		return d.CallTimeout
	}
	return DefaultCallTimeout
}

func (d *Detector) marker() string {
	if d.Marker != "" {
		return d.Marker
	}
	return DefaultMarker
}

func (d *Detector) clock() fleet.Clock {
	if d.Clock != nil {
		return d.Clock
	}
	return fleet.RealClock{}
}

func (d *Detector) tracer() trace.Tracer {
	if d.Tracer != nil {
		return d.Tracer
	}
	return otel.Tracer("rotator/internal/hang")
}

// Run ticks until ctx is cancelled, sleeping Interval after each tick.
func (d *Detector) Run(ctx context.Context) error {
	check.Assert(d.Runtime != nil, "Detector.Run: Runtime must not be nil")

	slog.Info("Hang detector started.",
		"containers", len(d.Containers),
		"threshold", d.threshold(),
		"interval", d.interval())
	for {
		d.Tick(ctx)

		timer := time.NewTimer(d.interval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Tick checks every configured container concurrently and returns once all
// checks have finished.
func (d *Detector) Tick(ctx context.Context) {
	var g errgroup.Group
	g.SetLimit(max(1, len(d.Containers)))
	for _, name := range d.Containers {
		g.Go(func() error {
			if err := d.checkContainer(ctx, name); err != nil {
				slog.Warn("Hang check failed.", "container", name, "err", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (d *Detector) checkContainer(ctx context.Context, name string) (err error) {
	ctx, span := d.tracer().Start(ctx, "hang.check", trace.WithAttributes(
		attribute.String("container.name", name),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	sample, found, err := d.Inspect(ctx, name)
	if err != nil {
		return err
	}
	if !found {
		slog.Info("Container not found.", "container", name)
		return nil
	}
	if d.LeaveExited && sample.State == fleet.StateExited {
		slog.Debug("Leaving exited container to rotation.", "container", name)
		return nil
	}

	threshold := d.threshold()
	slog.Debug("Log staleness measured.",
		"container", name,
		"last_log", sample.LastLog,
		"timestamp_found", sample.TimestampFound,
		"delta", sample.Delta,
		"threshold", threshold)
	span.SetAttributes(
		attribute.Int64("staleness.ms", sample.Delta.Milliseconds()),
		attribute.Bool("hang.marker", sample.Hang),
	)

	if !sample.ShouldRestart(threshold) {
		return nil
	}
	slog.Warn("Container stale or hung, restarting.",
		"container", name,
		"delta", sample.Delta,
		"threshold", threshold,
		"hang_marker", sample.Hang)

	callCtx, cancel := context.WithTimeout(ctx, d.callTimeout())
	defer cancel()
	if err := d.Runtime.RestartContainer(callCtx, sample.ContainerID); err != nil {
		return fmt.Errorf("restart container %q: %w", name, err)
	}
	span.SetAttributes(attribute.Bool("restarted", true))
	if d.OnRestart != nil {
		d.OnRestart(sample)
	}
	return nil
}

// Inspect builds a Sample for the named container without acting on it.
// The bool is false when no container matches name.
func (d *Detector) Inspect(ctx context.Context, name string) (Sample, bool, error) {
	now := d.clock().Now()

	c, found, err := d.findContainer(ctx, name)
	if err != nil || !found {
		return Sample{}, found, err
	}
	sample := Sample{
		ContainerID:   c.ID,
		ContainerName: name,
		State:         c.State,
		CheckedAt:     now,
		LastLog:       now,
	}

	last, err := d.logs(ctx, c.ID, 1)
	if err != nil {
		return Sample{}, true, err
	}
	// Unreadable logs count as fresh: a broken log path must not cause a
	// restart loop.
	if ts, err := ParseLogTimestamp(last); err == nil {
		sample.LastLog = ts
		sample.TimestampFound = true
	} else {
		slog.Debug("No log timestamp, treating container as fresh.", "container", name, "err", err)
	}

	tail, err := d.logs(ctx, c.ID, markerTailLines)
	if err != nil {
		return Sample{}, true, err
	}
	sample.Hang = strings.Contains(tail, d.marker())
	sample.Delta = now.Sub(sample.LastLog)
	return sample, true, nil
}

func (d *Detector) findContainer(ctx context.Context, name string) (fleet.Container, bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.callTimeout())
	defer cancel()
	c, found, err := d.Runtime.FindContainer(callCtx, name)
	if err != nil {
		return fleet.Container{}, false, fmt.Errorf("find container %q: %w", name, err)
	}
	return c, found, nil
}

func (d *Detector) logs(ctx context.Context, id string, tail int) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.callTimeout())
	defer cancel()
	out, err := d.Runtime.ContainerLogs(callCtx, id, tail, true)
	if err != nil {
		return "", fmt.Errorf("read last %d log lines of %s: %w", tail, id, err)
	}
	return out, nil
}
