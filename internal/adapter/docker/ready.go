package docker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/docker/docker/client"
)

const (
	readyInitialInterval = 250 * time.Millisecond
	readyMaxInterval     = 5 * time.Second
	readyMaxElapsed      = 2 * time.Minute
)

// WaitReady pings the Docker daemon until it answers, backing off while the
// connection is refused. Other errors end the wait immediately.
func WaitReady(ctx context.Context, cli client.APIClient) error {
	log := slog.With("component", "docker")
	waiting := false

	ping := func() error {
		_, err := cli.Ping(ctx)
		if err == nil {
			if waiting {
				log.Debug("daemon reachable")
			}
			return nil
		}
		if !client.IsErrConnectionFailed(err) {
			log.Error("ping failed", "err", err)
			return backoff.Permanent(fmt.Errorf("connect to docker daemon: %w", err))
		}
		if !waiting {
			waiting = true
			log.Debug("waiting for docker daemon")
		}
		return err
	}

	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(readyInitialInterval),
		backoff.WithMaxInterval(readyMaxInterval),
		backoff.WithMaxElapsedTime(readyMaxElapsed),
	)
	if err := backoff.Retry(ping, backoff.WithContext(b, ctx)); err != nil {
		return fmt.Errorf("wait for docker daemon: %w", err)
	}
	return nil
}
