// Package daemon wires the rotation loop, the hang detector and the clock
// checker into one supervised process.
package daemon

import (
	"context"
	"errors"
	"log/slog"

	"rotator/config"
	"rotator/internal/adapter/jsonfile"
	"rotator/internal/fleet"
	"rotator/internal/hang"
	"rotator/internal/logging"
	"rotator/internal/rotation"
	"rotator/internal/signal/ntp"

	systemd "github.com/coreos/go-systemd/v22/daemon"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"
)

// Daemon holds the configured workers. Nil workers are disabled.
type Daemon struct {
	Loop     *rotation.Loop
	Detector *hang.Detector
	Clock    *ntp.Checker
	// Tracing receives the spans of every rotation and hang check.
	Tracing *sdktrace.TracerProvider
}

// New builds the workers for cfg on top of rt. cfg must be validated.
func New(cfg config.Config, rt fleet.ContainerRuntime) *Daemon {
	d := &Daemon{Tracing: logging.NewTracerProvider(nil)}
	servers := cfg.FleetServers()

	if cfg.Rotation.Enabled {
		store := jsonfile.New(cfg.DataRoot)
		d.Loop = &rotation.Loop{
			Runtime:     rt,
			Configs:     store,
			Catalogs:    store,
			Selector:    rotation.NewSelector(rotation.NewTracker(cfg.Servers...), nil),
			Servers:     servers,
			Interval:    cfg.Rotation.Interval,
			CallTimeout: cfg.CallTimeout,
			Tracer:      d.Tracing.Tracer("rotator/internal/rotation"),
		}
	}
	if cfg.Hang.Enabled {
		d.Detector = &hang.Detector{
			Runtime:     rt,
			Containers:  cfg.Servers,
			Threshold:   cfg.Hang.Timeout,
			Interval:    cfg.Hang.Interval,
			CallTimeout: cfg.CallTimeout,
			Marker:      cfg.Hang.Marker,
			LeaveExited: cfg.Rotation.Enabled,
			Tracer:      d.Tracing.Tracer("rotator/internal/hang"),
		}
	}
	if cfg.NTP.Pool != "" {
		d.Clock = ntp.NewChecker(cfg.NTP.Pool, cfg.NTP.Threshold, fleet.RealClock{})
	}
	return d
}

// Run starts every enabled worker and blocks until ctx is cancelled or a
// worker fails. Cancellation is a clean shutdown and returns nil.
func (d *Daemon) Run(ctx context.Context) error {
	if d.Tracing != nil {
		defer func() {
			if err := d.Tracing.Shutdown(context.Background()); err != nil {
				slog.Warn("Failed to shut down tracing.", "err", err)
			}
		}()
	}

	g, ctx := errgroup.WithContext(ctx)
	if d.Loop != nil {
		g.Go(func() error { return d.Loop.Run(ctx) })
	}
	if d.Detector != nil {
		g.Go(func() error { return d.Detector.Run(ctx) })
	}
	if d.Clock != nil {
		g.Go(func() error { return d.Clock.Run(ctx) })
	}

	if _, err := systemd.SdNotify(false, systemd.SdNotifyReady); err != nil {
		slog.Error("Failed to notify systemd that the daemon is ready.", "err", err)
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		slog.Info("Daemon stopped.")
		return nil
	}
	return err
}

// Run builds a Daemon for cfg and runs it.
func Run(ctx context.Context, cfg config.Config, rt fleet.ContainerRuntime) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	d := New(cfg, rt)
	slog.Info("Starting daemon.",
		"servers", cfg.Servers,
		"rotation", d.Loop != nil,
		"hang_detection", d.Detector != nil,
		"clock_check", d.Clock != nil)
	return d.Run(ctx)
}
