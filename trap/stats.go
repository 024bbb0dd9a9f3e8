package trap

import "sync/atomic"

// Stats counts occurrences of each trap vector, for diagnostics and
// tests (a storm of page faults, say, should show up as a counter
// jump rather than require re-deriving it from a log).
type Stats struct {
	counts [256]atomic.Uint64
}

// Record increments the counter for v.
func (s *Stats) Record(v Vector) {
	s.counts[v&0xff].Add(1)
}

// Count returns the number of times v has fired.
func (s *Stats) Count(v Vector) uint64 {
	return s.counts[v&0xff].Load()
}
