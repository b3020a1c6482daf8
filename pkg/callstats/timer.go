package callstats

import "time"

// Timer is one frame of the call stack. It is either running, with a start
// reading, or paused, with its accumulated duration frozen. At most one
// timer of a stack runs at any time: the innermost.
//
// Timers are usually embedded in a Scope and live for one activation.
type Timer struct {
	counter *Counter
	parent  *Timer
	clock   Clock

	start   time.Duration
	running bool
	elapsed time.Duration

	// pausedParent is set when Start paused the parent, so Stop resumes
	// only what it paused.
	pausedParent bool
	// entered marks an activation pushed by Stats.Enter and not yet left.
	entered bool
}

// Start binds t to counter and parent. Unless sampling is set, it pauses
// a running parent and starts t at the same reading so no time falls
// between them. With sampling set only the binding is recorded. A parent
// bound without a reading (sampling) is left alone.
func (t *Timer) Start(clock Clock, counter *Counter, parent *Timer, sampling bool) {
	if t.running {
		violation("start", counter, ErrAlreadyRunning)
	}
	t.counter = counter
	t.parent = parent
	t.clock = clock
	t.pausedParent = false
	if sampling {
		return
	}
	now := clock.Now()
	if parent != nil && parent.running {
		parent.Pause(now)
		t.pausedParent = true
	}
	t.Resume(now)
}

// Pause accrues the running interval up to now and stops the timer.
func (t *Timer) Pause(now time.Duration) {
	if !t.running {
		violation("pause", t.counter, ErrNotRunning)
	}
	t.elapsed += now - t.start
	t.start = 0
	t.running = false
}

// Resume starts a new running interval at now.
func (t *Timer) Resume(now time.Duration) {
	if t.running {
		violation("resume", t.counter, ErrAlreadyRunning)
	}
	t.start = now
	t.running = true
}

// Stop ends the activation: the accrued time and one invocation are
// committed to the counter, and a parent paused by Start resumes at the
// same reading.
// A timer that never started returns its parent without doing anything.
func (t *Timer) Stop() *Timer {
	if !t.running {
		return t.parent
	}
	now := t.clock.Now()
	t.Pause(now)
	t.counter.Increment()
	t.commit()
	if t.pausedParent {
		t.parent.Resume(now)
		t.pausedParent = false
	}
	return t.parent
}

func (t *Timer) commit() {
	t.counter.Add(t.elapsed)
	t.elapsed = 0
}

// IsStarted reports whether t is running.
func (t *Timer) IsStarted() bool {
	return t.running
}

// Counter returns the counter t is bound to, or nil.
func (t *Timer) Counter() *Counter {
	return t.counter
}

// SetCounter rebinds t to c. Time accrued so far moves with it.
func (t *Timer) SetCounter(c *Counter) {
	t.counter = c
}

// Parent returns the enclosing timer.
func (t *Timer) Parent() *Timer {
	return t.parent
}

// Elapsed returns the time accrued and not yet committed, excluding the
// current running interval.
func (t *Timer) Elapsed() time.Duration {
	return t.elapsed
}
