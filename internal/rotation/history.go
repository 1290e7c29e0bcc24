package rotation

import (
	"slices"
	"sync"

	"rotator/internal/check"
)

// HistoryCap returns how many recent picks are excluded for a catalog of
// the given size: max(1, n-2). For n >= 3 at least one scenario is always
// outside the history.
func HistoryCap(catalogSize int) int {
	return max(1, catalogSize-2)
}

// Tracker keeps a bounded FIFO of recently picked scenarios per server.
// Histories live in memory only.
type Tracker struct {
	mu      sync.Mutex
	history map[string][]string
}

// NewTracker creates a Tracker with an empty history for each server.
func NewTracker(serverIDs ...string) *Tracker {
	t := &Tracker{history: make(map[string][]string, len(serverIDs))}
	for _, id := range serverIDs {
		t.history[id] = nil
	}
	return t
}

// Record appends scenarioID to the server's history and evicts the oldest
// entries until the history fits the cap for catalogSize.
func (t *Tracker) Record(serverID, scenarioID string, catalogSize int) {
	limit := HistoryCap(catalogSize)

	t.mu.Lock()
	defer t.mu.Unlock()

	h := append(t.history[serverID], scenarioID)
	if over := len(h) - limit; over > 0 {
		h = slices.Clone(h[over:])
	}
	check.Assertf(len(h) <= limit, "history for %s has %d entries, cap %d", serverID, len(h), limit)
	t.history[serverID] = h
}

// EligibleSet returns the catalog entries the server may pick next, in
// catalog order. Entries in the recent history are excluded; when that
// excludes everything, only the most recent pick is excluded instead.
func (t *Tracker) EligibleSet(serverID string, catalog []string) ([]string, error) {
	t.mu.Lock()
	h := slices.Clone(t.history[serverID])
	t.mu.Unlock()

	eligible := make([]string, 0, len(catalog))
	for _, id := range catalog {
		if !slices.Contains(h, id) {
			eligible = append(eligible, id)
		}
	}
	if len(eligible) > 0 {
		return eligible, nil
	}

	if len(catalog) == 1 {
		return []string{catalog[0]}, nil
	}

	var last string
	if len(h) > 0 {
		last = h[len(h)-1]
	}
	for _, id := range catalog {
		if id != last {
			eligible = append(eligible, id)
		}
	}
	if len(eligible) == 0 {
		return nil, ErrNoEligibleScenario
	}
	return eligible, nil
}

// History returns a copy of the server's history, oldest first.
func (t *Tracker) History(serverID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.history[serverID])
}
