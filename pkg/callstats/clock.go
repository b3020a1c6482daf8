package callstats

import "time"

// Clock is a monotonic time source. Readings are offsets from an arbitrary
// origin and must never decrease within one Stats.
type Clock interface {
	Now() time.Duration
}

// SystemClock reads the monotonic clock of the process.
type SystemClock struct {
	base time.Time
}

// NewSystemClock returns a clock whose origin is the moment of the call.
func NewSystemClock() *SystemClock {
	return &SystemClock{base: time.Now()}
}

// Now returns the monotonic time elapsed since the clock was created.
func (c *SystemClock) Now() time.Duration {
	return time.Since(c.base)
}

var defaultClock = NewSystemClock()

// ManualClock is a clock that only moves when told to.
type ManualClock struct {
	now time.Duration
}

// Now returns the current reading.
func (c *ManualClock) Now() time.Duration {
	return c.now
}

// Set moves the clock to t. Moving backwards panics.
func (c *ManualClock) Set(t time.Duration) {
	if t < c.now {
		panic("callstats: manual clock moved backwards")
	}
	c.now = t
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.Set(c.now + d)
}

// SequenceClock returns a fixed series of readings, one per call, and
// repeats the last one once exhausted.
type SequenceClock struct {
	ticks []time.Duration
	next  int
}

// NewSequenceClock creates a clock yielding ticks in order.
func NewSequenceClock(ticks ...time.Duration) *SequenceClock {
	return &SequenceClock{ticks: ticks}
}

// Now returns the next reading.
func (c *SequenceClock) Now() time.Duration {
	if len(c.ticks) == 0 {
		return 0
	}
	if c.next >= len(c.ticks) {
		return c.ticks[len(c.ticks)-1]
	}
	t := c.ticks[c.next]
	c.next++
	return t
}

// Calls reports how many readings have been consumed.
func (c *SequenceClock) Calls() int {
	return c.next
}
