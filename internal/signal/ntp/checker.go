// Package ntp watches the host clock against an NTP pool. Hang detection
// compares engine log timestamps to the host clock, so a drifting clock
// skews every staleness delta.
package ntp

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"rotator/internal/check"
	"rotator/internal/fleet"

	"github.com/beevik/ntp"
)

const (
	DefaultPool      = "pool.ntp.org"
	defaultInterval  = 10 * time.Minute
	defaultThreshold = 5 * time.Second
	queryTimeout     = 5 * time.Second
)

type Phase uint8

const (
	PhaseUnchecked Phase = iota + 1
	PhaseHealthy
	PhaseUnhealthyOffset
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseUnchecked:
		return "unchecked"
	case PhaseHealthy:
		return "healthy"
	case PhaseUnhealthyOffset:
		return "unhealthy_offset"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// Transition returns to when the move is allowed, p otherwise.
func (p Phase) Transition(to Phase) Phase {
	ok := false
	switch p {
	case PhaseUnchecked:
		ok = to == PhaseHealthy || to == PhaseUnhealthyOffset || to == PhaseError
	case PhaseHealthy, PhaseUnhealthyOffset, PhaseError:
		ok = to == PhaseHealthy || to == PhaseUnhealthyOffset || to == PhaseError
	}
	check.Assertf(ok, "ntp transition: %s -> %s", p, to)
	if !ok {
		return p
	}
	return to
}

type Status struct {
	Offset    time.Duration
	Phase     Phase
	Error     string
	CheckedAt time.Time
}

// Checker periodically measures the host clock offset.
type Checker struct {
	mu        sync.RWMutex
	status    Status
	pool      string
	interval  time.Duration
	threshold time.Duration
	clock     fleet.Clock

	// QueryFunc replaces the NTP query in tests.
	QueryFunc func(ctx context.Context, pool string) (time.Duration, error)
}

func NewChecker(pool string, threshold time.Duration, clock fleet.Clock) *Checker {
	check.Assert(clock != nil, "ntp.NewChecker: clock must not be nil")
	if pool == "" {
		pool = DefaultPool
	}
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	return &Checker{
		pool:      pool,
		interval:  defaultInterval,
		threshold: threshold,
		status:    Status{Phase: PhaseUnchecked},
		clock:     clock,
	}
}

// Run checks immediately and then every interval until ctx is cancelled.
func (n *Checker) Run(ctx context.Context) error {
	n.Check(ctx)

	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n.Check(ctx)
		}
	}
}

// Check runs one query and logs when the phase changes. A query cut short
// by ctx leaves the status untouched.
func (n *Checker) Check(ctx context.Context) Status {
	offset, err := n.query(ctx)
	if ctx.Err() != nil {
		return n.Status()
	}
	now := n.clock.Now()

	n.mu.Lock()
	prev := n.status
	next := Status{CheckedAt: now}
	switch {
	case err != nil:
		next.Phase = prev.Phase.Transition(PhaseError)
		next.Error = err.Error()
	case offset.Abs() < n.threshold:
		next.Phase = prev.Phase.Transition(PhaseHealthy)
		next.Offset = offset
	default:
		next.Phase = prev.Phase.Transition(PhaseUnhealthyOffset)
		next.Offset = offset
	}
	n.status = next
	n.mu.Unlock()

	if next.Phase != prev.Phase {
		switch next.Phase {
		case PhaseUnhealthyOffset:
			slog.Warn("Host clock offset exceeds threshold, staleness deltas are skewed.",
				"offset", next.Offset, "threshold", n.threshold)
		case PhaseError:
			slog.Warn("NTP query failed.", "pool", n.pool, "err", next.Error)
		default:
			slog.Info("Host clock in sync.", "offset", next.Offset)
		}
	}
	return next
}

type queryResult struct {
	offset time.Duration
	err    error
}

// query returns as soon as ctx is done. The abandoned query finishes in the
// background within queryTimeout.
func (n *Checker) query(ctx context.Context) (time.Duration, error) {
	fn := n.QueryFunc
	if fn == nil {
		fn = queryPool
	}
	done := make(chan queryResult, 1)
	go func() {
		offset, err := fn(ctx, n.pool)
		done <- queryResult{offset: offset, err: err}
	}()
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case r := <-done:
		return r.offset, r.err
	}
}

func queryPool(_ context.Context, pool string) (time.Duration, error) {
	resp, err := ntp.QueryWithOptions(pool, ntp.QueryOptions{Timeout: queryTimeout})
	if err != nil {
		return 0, err
	}
	if err := resp.Validate(); err != nil {
		return 0, err
	}
	return resp.ClockOffset, nil
}

func (n *Checker) Status() Status {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.status
}
