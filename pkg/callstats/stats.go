// Package callstats attributes wall-clock time to named operations,
// separating the time spent in an operation itself from the time spent in
// the operations it calls.
package callstats

import "fmt"

// Stats is the call-timing state of one execution context: its counters
// and the innermost running timer. It must only be used from one goroutine
// at a time.
type Stats struct {
	registry *Registry
	counters []Counter
	current  *Timer
	clock    Clock
	mode     *Switch
}

// Option configures a Stats.
type Option func(*Stats)

// WithClock sets the time source.
func WithClock(c Clock) Option {
	return func(s *Stats) {
		s.clock = c
	}
}

// WithSwitch sets the mode switch. Several Stats may share one switch.
func WithSwitch(sw *Switch) Option {
	return func(s *Stats) {
		s.mode = sw
	}
}

// Registry returns the registry s was built from.
func (s *Stats) Registry() *Registry {
	return s.registry
}

// Mode returns the current instrumentation mode.
func (s *Stats) Mode() Mode {
	return s.mode.Mode()
}

// Switch returns the mode switch of s.
func (s *Stats) Switch() *Switch {
	return s.mode
}

// Counter returns the counter in slot id.
func (s *Stats) Counter(id CounterID) *Counter {
	return &s.counters[id]
}

// CounterByName returns the counter registered under name.
func (s *Stats) CounterByName(name string) (*Counter, error) {
	id, ok := s.registry.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCounter, name)
	}
	return &s.counters[id], nil
}

// Enter pushes t onto the stack as an activation of counter id, pausing
// the timer that was running.
func (s *Stats) Enter(t *Timer, id CounterID) {
	mode := s.mode.Mode()
	if mode == Disabled {
		return
	}
	t.Start(s.clock, &s.counters[id], s.current, mode == Sampling)
	t.entered = true
	s.current = t
}

// Leave pops t, committing its time and resuming its parent. Leaving a
// timer whose last Enter happened while instrumentation was disabled does
// nothing, even when the timer was used for earlier activations.
func (s *Stats) Leave(t *Timer) {
	if s.mode.Mode() == Disabled {
		return
	}
	if !t.entered {
		return
	}
	if t != s.current {
		violation("leave", t.counter, ErrUnbalanced)
	}
	t.entered = false
	s.current = t.Stop()
}

// Current returns the innermost timer, or nil when idle.
func (s *Stats) Current() *Timer {
	return s.current
}

// CurrentCounter returns the counter of the innermost timer, or nil.
func (s *Stats) CurrentCounter() *Counter {
	if s.current == nil {
		return nil
	}
	return s.current.counter
}

// CorrectCurrentCounter rebinds the innermost timer to counter id, for
// operations whose identity is only known after they were entered.
func (s *Stats) CorrectCurrentCounter(id CounterID) {
	if s.mode.Mode() == Disabled || s.current == nil {
		return
	}
	s.current.SetCounter(&s.counters[id])
}

// InUse reports whether an activation is in progress.
func (s *Stats) InUse() bool {
	return s.current != nil
}

// Reset zeroes every counter.
func (s *Stats) Reset() error {
	if s.InUse() {
		return ErrBusy
	}
	for i := range s.counters {
		s.counters[i].Reset()
	}
	return nil
}

// Merge adds the counters of other into s. Both must come from the same
// registry and be idle.
func (s *Stats) Merge(other *Stats) error {
	if s.registry != other.registry {
		return ErrRegistryMismatch
	}
	if s.InUse() || other.InUse() {
		return ErrBusy
	}
	for i := range other.counters {
		s.counters[i].Add(other.counters[i].time)
		s.counters[i].count += other.counters[i].count
	}
	return nil
}

// Snapshot copies the committed state of every counter. Time of
// activations still on the stack is not included.
func (s *Stats) Snapshot() Snapshot {
	snap := make(Snapshot, len(s.counters))
	for i := range s.counters {
		c := &s.counters[i]
		snap[i] = Entry{Name: c.name, Time: c.time, Count: c.count}
	}
	return snap
}
