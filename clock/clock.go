package clock

import (
	"time"

	"github.com/google/uuid"

	"kernix/arch"
)

// correlation is the data a SeqLock protects: the TSC reading and
// corresponding wall-clock time observed at the moment the kernel first
// learned wall-clock time (typically from the RTC/PIT during boot), plus
// the counter's measured frequency.
type correlation struct {
	tscAtPoint  uint64
	wallAtPoint time.Time
	hz          uint64
}

// Clock projects wall-clock time from the TSC once a correlation point
// has been established. Before that, Now returns the zero time.
type Clock struct {
	lock SeqLock
	c    correlation

	// SessionID tags this boot's correlation record so a test harness
	// that reboots the kernel repeatedly can tell readings from
	// different boots apart.
	SessionID uuid.UUID
}

// New returns a Clock with no correlation point established yet.
func New() *Clock {
	return &Clock{SessionID: uuid.New()}
}

// Establish records the correlation point: the TSC reads tsc at the same
// instant the RTC/PIT driver (an external collaborator) reports wall, and
// hz is the TSC's measured frequency in ticks per second.
func (c *Clock) Establish(wall time.Time, tsc, hz uint64) {
	c.lock.BeginWrite()
	c.c = correlation{tscAtPoint: tsc, wallAtPoint: wall, hz: hz}
	c.lock.EndWrite()
}

// Now projects the current wall-clock time from the current TSC reading
// and the last-established correlation point, retrying the read if a
// concurrent Establish raced it. Returns the zero time if no correlation
// point has been established yet.
func (c *Clock) Now() time.Time {
	for {
		seq := c.lock.BeginRead()
		corr := c.c
		if !c.lock.Retry(seq) {
			if corr.hz == 0 {
				return time.Time{}
			}
			ticks := arch.ReadTSC() - corr.tscAtPoint
			elapsed := time.Duration(ticks) * time.Second / time.Duration(corr.hz)
			return corr.wallAtPoint.Add(elapsed)
		}
	}
}

// Established reports whether Establish has been called at least once.
func (c *Clock) Established() bool {
	seq := c.lock.BeginRead()
	hz := c.c.hz
	for c.lock.Retry(seq) {
		seq = c.lock.BeginRead()
		hz = c.c.hz
	}
	return hz != 0
}
