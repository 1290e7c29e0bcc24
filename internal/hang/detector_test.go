package hang

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"rotator/internal/adapter/fake"
	"rotator/internal/fleet"
)

var t0 = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func logLine(at time.Time, msg string) string {
	return at.Format(time.RFC3339Nano) + " " + msg
}

type detectorHarness struct {
	runtime  *fake.ContainerRuntime
	clock    *fake.Clock
	detector *Detector

	mu        sync.Mutex
	restarted []Sample
}

func newDetectorHarness(names ...string) *detectorHarness {
	h := &detectorHarness{
		runtime: fake.NewContainerRuntime(),
		clock:   fake.NewClock(t0),
	}
	h.detector = &Detector{
		Runtime:    h.runtime,
		Containers: names,
		Threshold:  360 * time.Second,
		Interval:   10 * time.Millisecond,
		Clock:      h.clock,
		OnRestart: func(s Sample) {
			h.mu.Lock()
			h.restarted = append(h.restarted, s)
			h.mu.Unlock()
		},
	}
	return h
}

func (h *detectorHarness) restartedIDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.restarted))
	for _, s := range h.restarted {
		out = append(out, s.ContainerID)
	}
	return out
}

func TestDetectorRestartsOnlyPastThreshold(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		age     time.Duration
		restart bool
	}{
		{"fresh", 10 * time.Second, false},
		{"exactly threshold", 360 * time.Second, false},
		{"stale", 361 * time.Second, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newDetectorHarness("srv")
			h.runtime.AddContainer("srv", "c1", fleet.StateRunning)
			h.runtime.AppendLogs("srv", logLine(t0.Add(-tt.age), "tick"))

			h.detector.Tick(t.Context())

			restarts := h.runtime.Calls("RestartContainer")
			if got := len(restarts) == 1; got != tt.restart {
				t.Fatalf("restart requested = %v, want %v", got, tt.restart)
			}
		})
	}
}

func TestDetectorRestartsOnHangMarker(t *testing.T) {
	t.Parallel()

	h := newDetectorHarness("srv")
	h.runtime.AddContainer("srv", "c1", fleet.StateRunning)
	h.runtime.AppendLogs("srv",
		logLine(t0.Add(-5*time.Second), "Application hangs (freeze detected)"),
		logLine(t0.Add(-time.Second), "still logging"),
	)

	h.detector.Tick(t.Context())

	if got := h.restartedIDs(); len(got) != 1 || got[0] != "c1" {
		t.Fatalf("restarted = %v, want [c1]", got)
	}
	if !h.restarted[0].Hang {
		t.Fatal("sample.Hang = false, want true")
	}
}

func TestDetectorIgnoresMarkerOutsideTail(t *testing.T) {
	t.Parallel()

	h := newDetectorHarness("srv")
	h.runtime.AddContainer("srv", "c1", fleet.StateRunning)
	h.runtime.AppendLogs("srv", logLine(t0.Add(-time.Minute), "Application hangs"))
	for i := range markerTailLines {
		h.runtime.AppendLogs("srv", logLine(t0.Add(-time.Duration(10-i)*time.Second), fmt.Sprintf("line %d", i)))
	}

	h.detector.Tick(t.Context())

	if got := len(h.runtime.Calls("RestartContainer")); got != 0 {
		t.Fatalf("RestartContainer calls = %d, want 0", got)
	}
}

func TestDetectorTreatsMissingTimestampAsFresh(t *testing.T) {
	t.Parallel()

	h := newDetectorHarness("srv")
	h.runtime.AddContainer("srv", "c1", fleet.StateRunning)
	h.runtime.AppendLogs("srv", "no timestamp here")

	sample, found, err := h.detector.Inspect(t.Context(), "srv")
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if !found {
		t.Fatal("Inspect() found = false")
	}
	if sample.TimestampFound {
		t.Fatal("sample.TimestampFound = true, want false")
	}
	if sample.Delta != 0 || !sample.LastLog.Equal(t0) {
		t.Fatalf("sample = %+v, want zero delta at check time", sample)
	}
	if sample.ShouldRestart(time.Second) {
		t.Fatal("ShouldRestart() = true for unreadable logs")
	}
}

func TestDetectorMeasuresDeltaFromCheckStart(t *testing.T) {
	t.Parallel()

	h := newDetectorHarness("srv")
	h.runtime.AddContainer("srv", "c1", fleet.StateRunning)
	h.runtime.AppendLogs("srv", logLine(t0.Add(-350*time.Second), "tick"))
	h.runtime.ContainerLogsErr = func(context.Context, string, int) error {
		h.clock.Advance(30 * time.Second)
		return nil
	}

	h.detector.Tick(t.Context())

	if got := len(h.runtime.Calls("RestartContainer")); got != 0 {
		t.Fatalf("RestartContainer calls = %d, want 0 (fetch latency must not count)", got)
	}
}

func TestDetectorRestartsRegardlessOfState(t *testing.T) {
	t.Parallel()

	for _, state := range []string{fleet.StateRunning, fleet.StateExited, "paused", "created"} {
		t.Run(state, func(t *testing.T) {
			t.Parallel()

			h := newDetectorHarness("srv")
			h.runtime.AddContainer("srv", "c1", state)
			h.runtime.AppendLogs("srv", logLine(t0.Add(-time.Hour), "Application hangs"))

			h.detector.Tick(t.Context())

			if got := len(h.runtime.Calls("RestartContainer")); got != 1 {
				t.Fatalf("RestartContainer calls = %d, want 1", got)
			}
		})
	}
}

func TestDetectorLeaveExited(t *testing.T) {
	t.Parallel()

	h := newDetectorHarness("exited", "paused")
	h.detector.LeaveExited = true
	h.runtime.AddContainer("exited", "c1", fleet.StateExited)
	h.runtime.AddContainer("paused", "c2", "paused")
	for _, name := range []string{"exited", "paused"} {
		h.runtime.AppendLogs(name, logLine(t0.Add(-time.Hour), "Application hangs"))
	}

	h.detector.Tick(t.Context())

	if got := h.restartedIDs(); len(got) != 1 || got[0] != "c2" {
		t.Fatalf("restarted = %v, want [c2]", got)
	}
}

func TestDetectorMissingContainer(t *testing.T) {
	t.Parallel()

	h := newDetectorHarness("ghost")

	h.detector.Tick(t.Context())

	if got := len(h.runtime.Calls("ContainerLogs")); got != 0 {
		t.Fatalf("ContainerLogs calls = %d, want 0", got)
	}
}

func TestDetectorFailureDoesNotBlockOthers(t *testing.T) {
	t.Parallel()

	h := newDetectorHarness("a", "b", "c")
	for _, name := range []string{"a", "b", "c"} {
		h.runtime.AddContainer(name, "id-"+name, fleet.StateRunning)
		h.runtime.AppendLogs(name, logLine(t0.Add(-time.Hour), "tick"))
	}
	h.runtime.ContainerLogsErr = func(_ context.Context, id string, _ int) error {
		if id == "id-a" {
			return errors.New("log stream closed")
		}
		return nil
	}
	h.runtime.RestartContainerErr = func(_ context.Context, id string) error {
		if id == "id-b" {
			return errors.New("restart refused")
		}
		return nil
	}

	h.detector.Tick(t.Context())

	if got := h.restartedIDs(); len(got) != 1 || got[0] != "id-c" {
		t.Fatalf("restarted = %v, want [id-c]", got)
	}
}

func TestDetectorRetriggersWithoutBackoff(t *testing.T) {
	t.Parallel()

	h := newDetectorHarness("srv")
	h.runtime.AddContainer("srv", "c1", fleet.StateRunning)
	h.runtime.AppendLogs("srv", logLine(t0.Add(-time.Hour), "tick"))

	h.detector.Tick(t.Context())
	h.clock.Advance(10 * time.Second)
	h.detector.Tick(t.Context())

	if got := len(h.runtime.Calls("RestartContainer")); got != 2 {
		t.Fatalf("RestartContainer calls = %d, want 2", got)
	}
}

func TestDetectorRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	h := newDetectorHarness("srv")
	h.runtime.AddContainer("srv", "c1", fleet.StateRunning)
	h.runtime.AppendLogs("srv", logLine(t0.Add(-time.Hour), "tick"))

	ctx, cancel := context.WithCancel(t.Context())
	h.detector.OnRestart = func(Sample) { cancel() }

	done := make(chan error, 1)
	go func() { done <- h.detector.Run(ctx) }()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
