package rotation

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
)

func TestHistoryCap(t *testing.T) {
	t.Parallel()

	tests := []struct{ n, want int }{
		{0, 1}, {1, 1}, {2, 1}, {3, 1}, {4, 2}, {5, 3}, {10, 8},
	}
	for _, tt := range tests {
		if got := HistoryCap(tt.n); got != tt.want {
			t.Fatalf("HistoryCap(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestTrackerRecordEvictsOldest(t *testing.T) {
	t.Parallel()

	tr := NewTracker("srv")
	for _, id := range []string{"A", "B", "C", "D"} {
		tr.Record("srv", id, 5)
	}
	if got, want := tr.History("srv"), []string{"B", "C", "D"}; !slices.Equal(got, want) {
		t.Fatalf("History() = %v, want %v", got, want)
	}
}

func TestTrackerEligibleSetExcludesHistory(t *testing.T) {
	t.Parallel()

	catalog := []string{"A", "B", "C", "D", "E"}
	tr := NewTracker("srv")
	for _, id := range []string{"A", "B", "C"} {
		tr.Record("srv", id, len(catalog))
	}

	got, err := tr.EligibleSet("srv", catalog)
	if err != nil {
		t.Fatalf("EligibleSet() error = %v", err)
	}
	if want := []string{"D", "E"}; !slices.Equal(got, want) {
		t.Fatalf("EligibleSet() = %v, want %v", got, want)
	}
}

func TestTrackerEligibleSetFallsBackToExcludingLastPick(t *testing.T) {
	t.Parallel()

	// History built against a larger catalog, then the catalog shrank.
	tr := NewTracker("srv")
	for _, id := range []string{"A", "B", "C"} {
		tr.Record("srv", id, 5)
	}

	got, err := tr.EligibleSet("srv", []string{"A", "B", "C"})
	if err != nil {
		t.Fatalf("EligibleSet() error = %v", err)
	}
	if want := []string{"A", "B"}; !slices.Equal(got, want) {
		t.Fatalf("EligibleSet() = %v, want %v", got, want)
	}
}

func TestTrackerEligibleSetSingleEntryRepeats(t *testing.T) {
	t.Parallel()

	tr := NewTracker("srv")
	tr.Record("srv", "A", 1)

	got, err := tr.EligibleSet("srv", []string{"A"})
	if err != nil {
		t.Fatalf("EligibleSet() error = %v", err)
	}
	if want := []string{"A"}; !slices.Equal(got, want) {
		t.Fatalf("EligibleSet() = %v, want %v", got, want)
	}
}

func TestTrackerEligibleSetNoEligibleScenario(t *testing.T) {
	t.Parallel()

	tr := NewTracker("srv")
	tr.Record("srv", "A", 2)

	_, err := tr.EligibleSet("srv", []string{"A", "A"})
	if !errors.Is(err, ErrNoEligibleScenario) {
		t.Fatalf("EligibleSet() error = %v, want ErrNoEligibleScenario", err)
	}
}

func TestTrackerUnknownServerStartsEmpty(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	if got := tr.History("ghost"); len(got) != 0 {
		t.Fatalf("History(ghost) = %v, want empty", got)
	}
	got, err := tr.EligibleSet("ghost", []string{"A", "B"})
	if err != nil || len(got) != 2 {
		t.Fatalf("EligibleSet(ghost) = %v, %v", got, err)
	}
}

func TestTrackerConcurrentServers(t *testing.T) {
	t.Parallel()

	servers := make([]string, 8)
	for i := range servers {
		servers[i] = fmt.Sprintf("srv-%d", i)
	}
	tr := NewTracker(servers...)

	var wg sync.WaitGroup
	for _, srv := range servers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				tr.Record(srv, fmt.Sprintf("S%d", i%6), 6)
				_, _ = tr.EligibleSet(srv, []string{"S0", "S1", "S2", "S3", "S4", "S5"})
			}
		}()
	}
	wg.Wait()

	for _, srv := range servers {
		if got := len(tr.History(srv)); got != HistoryCap(6) {
			t.Fatalf("len(History(%s)) = %d, want %d", srv, got, HistoryCap(6))
		}
	}
}
