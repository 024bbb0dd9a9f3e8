// Package clock establishes the one correlation point between the CPU's
// free-running timestamp counter and wall-clock time, and projects a
// monotonic, wall-clock `Now()` from it afterward (component F).
//
// Grounded on the original's sequence-lock discipline
// (original_source/ku/src/time/mod.rs): readers never block a writer and
// a writer never blocks on a reader, at the cost of a reader retrying
// when it detects it raced a write — the same non-blocking update
// pattern the teacher uses for process register snapshots, generalized
// here into its own reusable primitive.
package clock

import "sync/atomic"

// SeqLock is a single-writer, many-reader sequence lock: the sequence
// counter is even while the protected data is stable and odd while a
// writer is updating it. A reader that observes an odd count, or a
// count that changed between the start and end of its read, must retry.
type SeqLock struct {
	seq atomic.Uint64
}

// BeginRead returns the current sequence number, spinning until it is
// even (no writer in progress).
func (l *SeqLock) BeginRead() uint64 {
	for {
		s := l.seq.Load()
		if s&1 == 0 {
			return s
		}
	}
}

// Retry reports whether the sequence changed since start, meaning a
// writer ran concurrently with the read and it must be redone.
func (l *SeqLock) Retry(start uint64) bool {
	return l.seq.Load() != start
}

// BeginWrite marks the start of an update, moving the sequence to odd.
func (l *SeqLock) BeginWrite() {
	l.seq.Add(1)
}

// EndWrite marks the update complete, moving the sequence back to even.
func (l *SeqLock) EndWrite() {
	l.seq.Add(1)
}
