package rotation

import (
	"math/rand/v2"
	"slices"

	"rotator/internal/check"
)

// Random picks an integer in [0, n).
type Random interface {
	IntN(n int) int
}

type processRandom struct{}

func (processRandom) IntN(n int) int { return rand.IntN(n) }

// Selector chooses the next scenario for a server uniformly among the
// entries its history allows.
type Selector struct {
	tracker *Tracker
	rnd     Random
}

// NewSelector returns a Selector backed by tracker. A nil rnd uses the
// process-wide auto-seeded source.
func NewSelector(tracker *Tracker, rnd Random) *Selector {
	if rnd == nil {
		rnd = processRandom{}
	}
	return &Selector{tracker: tracker, rnd: rnd}
}

// Tracker returns the history tracker the selector records into.
func (s *Selector) Tracker() *Tracker {
	return s.tracker
}

// PickNext chooses a scenario for serverID from catalog and records it.
func (s *Selector) PickNext(serverID string, catalog []string) (string, error) {
	if len(catalog) == 0 {
		return "", ErrEmptyCatalog
	}
	eligible, err := s.tracker.EligibleSet(serverID, catalog)
	if err != nil {
		return "", err
	}

	picked := eligible[s.rnd.IntN(len(eligible))]
	check.Assertf(slices.Contains(eligible, picked), "picked %q outside eligible set", picked)

	s.tracker.Record(serverID, picked, len(catalog))
	return picked, nil
}
