package fake

import (
	"sync"

	"rotator/internal/rotation"
)

var _ rotation.Random = (*SequenceRandom)(nil)

// SequenceRandom replays a fixed sequence of values, each reduced modulo n.
// It wraps around when exhausted; an empty sequence always yields 0.
type SequenceRandom struct {
	mu     sync.Mutex
	values []int
	next   int
}

func NewSequenceRandom(values ...int) *SequenceRandom {
	return &SequenceRandom{values: values}
}

func (r *SequenceRandom) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.values) == 0 {
		return 0
	}
	v := r.values[r.next%len(r.values)]
	r.next++
	if v < 0 {
		v = -v
	}
	return v % n
}
