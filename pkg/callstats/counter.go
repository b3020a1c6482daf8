package callstats

import "time"

// Counter accumulates the committed time and the number of completed
// activations of one operation. It is owned by a single Stats and is not
// safe for concurrent use.
type Counter struct {
	name  string
	time  time.Duration
	count int64
}

// Name returns the operation name.
func (c *Counter) Name() string {
	return c.name
}

// Time returns the cumulative committed duration.
func (c *Counter) Time() time.Duration {
	return c.time
}

// Count returns the number of completed activations.
func (c *Counter) Count() int64 {
	return c.count
}

// Add adds d to the cumulative duration.
func (c *Counter) Add(d time.Duration) {
	c.time += d
}

// Increment records one completed activation.
func (c *Counter) Increment() {
	c.count++
}

// Reset zeroes the counter.
func (c *Counter) Reset() {
	c.time = 0
	c.count = 0
}
