package callstats

import (
	"errors"
	"math/rand"
	"testing"
	"time"
)

func TestRecursiveActivation(t *testing.T) {
	clock := &ManualClock{}
	reg := NewRegistry("Eval")
	stats := reg.NewStats(WithClock(clock))
	id := reg.MustLookup("Eval")

	var outer, inner Timer
	stats.Enter(&outer, id)
	clock.Advance(10)
	stats.Enter(&inner, id)
	if inner.Counter() != outer.Counter() {
		t.Fatal("Both frames should share the counter")
	}
	clock.Advance(5)
	stats.Leave(&inner)
	if outer.Elapsed() != 10 {
		t.Errorf("Outer self time should exclude the inner frame, got %v", outer.Elapsed())
	}
	clock.Advance(20)
	stats.Leave(&outer)

	c := stats.Counter(id)
	if c.Count() != 2 {
		t.Errorf("Expected count 2, got %d", c.Count())
	}
	if c.Time() != 35 {
		t.Errorf("Expected time 35, got %v", c.Time())
	}
}

func TestEnterLeaveDisabled(t *testing.T) {
	sw := NewSwitch(Disabled)
	reg := NewRegistry("A")
	stats := reg.NewStats(WithSwitch(sw), WithClock(&ManualClock{}))

	var tm Timer
	stats.Enter(&tm, 0)
	if stats.InUse() || tm.Counter() != nil {
		t.Fatal("Disabled enter must not touch the stack")
	}
	sw.Set(Enabled)
	stats.Leave(&tm)
	if stats.InUse() {
		t.Error("Leave of a never-entered timer must keep the stack idle")
	}
	if c := stats.Counter(0); c.Count() != 0 {
		t.Errorf("Expected no activations, got %d", c.Count())
	}
}

func TestToggleKeepsOuterFrame(t *testing.T) {
	sw := NewSwitch(Enabled)
	clock := &ManualClock{}
	reg := NewRegistry("Outer", "Inner")
	stats := reg.NewStats(WithSwitch(sw), WithClock(clock))

	var outer, inner Timer
	stats.Enter(&outer, 0)
	sw.Set(Disabled)
	stats.Enter(&inner, 1)
	sw.Set(Enabled)
	stats.Leave(&inner)
	if stats.Current() != &outer {
		t.Fatal("Outer frame should still be current")
	}
	clock.Advance(3)
	stats.Leave(&outer)
	if c := stats.Counter(0); c.Time() != 3 || c.Count() != 1 {
		t.Errorf("Expected Outer=3/1, got %v/%d", c.Time(), c.Count())
	}
}

func TestReusedTimerAcrossModes(t *testing.T) {
	sw := NewSwitch(Enabled)
	clock := &ManualClock{}
	reg := NewRegistry("A")
	stats := reg.NewStats(WithSwitch(sw), WithClock(clock))

	var tm Timer
	for i := 0; i < 3; i++ {
		stats.Enter(&tm, 0)
		clock.Advance(2)
		stats.Leave(&tm)

		sw.Set(Disabled)
		stats.Enter(&tm, 0)
		sw.Set(Enabled)
		stats.Leave(&tm)
		if stats.InUse() {
			t.Fatalf("Iteration %d: stack should be idle", i)
		}
	}

	if c := stats.Counter(0); c.Time() != 6 || c.Count() != 3 {
		t.Errorf("Expected A=6/3, got %v/%d", c.Time(), c.Count())
	}
}

func TestSamplingParentEnabledChild(t *testing.T) {
	sw := NewSwitch(Sampling)
	clock := &ManualClock{}
	reg := NewRegistry("A", "B")
	stats := reg.NewStats(WithSwitch(sw), WithClock(clock))

	a := NewScope(stats, 0)
	sw.Set(Enabled)
	clock.Advance(10)
	b := NewScope(stats, 1)
	clock.Advance(5)
	b.Close()
	if a.timer.IsStarted() {
		t.Error("A sampling parent must not be resumed by its child")
	}
	a.Close()

	if stats.InUse() {
		t.Fatal("Stack should be idle")
	}
	if c := stats.Counter(1); c.Time() != 5 || c.Count() != 1 {
		t.Errorf("Expected B=5/1, got %v/%d", c.Time(), c.Count())
	}
	if c := stats.Counter(0); c.Time() != 0 || c.Count() != 0 {
		t.Errorf("Expected A=0/0, got %v/%d", c.Time(), c.Count())
	}
}

func TestEnabledParentSamplingChild(t *testing.T) {
	sw := NewSwitch(Enabled)
	clock := &ManualClock{}
	reg := NewRegistry("A", "B")
	stats := reg.NewStats(WithSwitch(sw), WithClock(clock))

	a := NewScope(stats, 0)
	sw.Set(Sampling)
	b := NewScope(stats, 1)
	clock.Advance(4)
	b.Close()
	sw.Set(Enabled)
	a.Close()

	if stats.InUse() {
		t.Fatal("Stack should be idle")
	}
	if c := stats.Counter(0); c.Time() != 4 || c.Count() != 1 {
		t.Errorf("Expected A=4/1, got %v/%d", c.Time(), c.Count())
	}
}

func TestSamplingModeMeasuresNothing(t *testing.T) {
	clock := NewSequenceClock(1, 2, 3, 4)
	reg := NewRegistry("A", "B")
	stats := reg.NewStats(WithSwitch(NewSwitch(Sampling)), WithClock(clock))

	var a, b Timer
	stats.Enter(&a, 0)
	stats.Enter(&b, 1)
	if stats.Current() != &b || b.Parent() != &a {
		t.Fatal("Sampling mode should still maintain the stack")
	}
	if stats.CurrentCounter() != stats.Counter(1) {
		t.Error("Current counter should be B")
	}
	stats.Leave(&b)
	stats.Leave(&a)
	if stats.InUse() {
		t.Error("Stack should be idle")
	}
	if clock.Calls() != 0 {
		t.Errorf("Sampling mode should not read the clock, got %d reads", clock.Calls())
	}
	for _, e := range stats.Snapshot() {
		if e.Time != 0 || e.Count != 0 {
			t.Errorf("Expected zero for %s, got %v/%d", e.Name, e.Time, e.Count)
		}
	}
}

func TestLeaveOutOfOrder(t *testing.T) {
	reg := NewRegistry("A", "B")
	stats := reg.NewStats(WithClock(&ManualClock{}))

	var a, b Timer
	stats.Enter(&a, 0)
	stats.Enter(&b, 1)
	expectViolation(t, ErrUnbalanced, func() {
		stats.Leave(&a)
	})
}

func TestCorrectCurrentCounter(t *testing.T) {
	clock := &ManualClock{}
	reg := NewRegistry("Generic", "Specific")
	stats := reg.NewStats(WithClock(clock))

	var tm Timer
	stats.Enter(&tm, reg.MustLookup("Generic"))
	clock.Advance(4)
	stats.CorrectCurrentCounter(reg.MustLookup("Specific"))
	clock.Advance(6)
	stats.Leave(&tm)

	if c := stats.Counter(reg.MustLookup("Generic")); c.Count() != 0 || c.Time() != 0 {
		t.Errorf("Generic should be empty, got %v/%d", c.Time(), c.Count())
	}
	if c := stats.Counter(reg.MustLookup("Specific")); c.Count() != 1 || c.Time() != 10 {
		t.Errorf("Expected Specific=10/1, got %v/%d", c.Time(), c.Count())
	}
}

func TestResetAndMerge(t *testing.T) {
	clock := &ManualClock{}
	reg := NewRegistry("A")
	s1 := reg.NewStats(WithClock(clock))
	s2 := reg.NewStats(WithClock(clock))

	var tm Timer
	s1.Enter(&tm, 0)
	if err := s1.Reset(); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy, got %v", err)
	}
	if err := s2.Merge(s1); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy merging an active stats, got %v", err)
	}
	clock.Advance(8)
	s1.Leave(&tm)

	if err := s2.Merge(s1); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if err := s2.Merge(s1); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if c := s2.Counter(0); c.Time() != 16 || c.Count() != 2 {
		t.Errorf("Expected 16/2 after two merges, got %v/%d", c.Time(), c.Count())
	}

	other := NewRegistry("A").NewStats()
	if err := s2.Merge(other); !errors.Is(err, ErrRegistryMismatch) {
		t.Errorf("Expected ErrRegistryMismatch, got %v", err)
	}

	if err := s1.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if c := s1.Counter(0); c.Time() != 0 || c.Count() != 0 {
		t.Errorf("Expected zero after reset, got %v/%d", c.Time(), c.Count())
	}
}

func TestCounterByName(t *testing.T) {
	stats := NewRegistry("A").NewStats()
	if _, err := stats.CounterByName("A"); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if _, err := stats.CounterByName("B"); !errors.Is(err, ErrUnknownCounter) {
		t.Errorf("Expected ErrUnknownCounter, got %v", err)
	}
}

// runningFrames walks the stack and counts frames in the running state.
func runningFrames(s *Stats) int {
	n := 0
	for tm := s.Current(); tm != nil; tm = tm.Parent() {
		if tm.IsStarted() {
			n++
		}
	}
	return n
}

func TestRandomNestingInvariants(t *testing.T) {
	const names = 4
	rng := rand.New(rand.NewSource(42))
	clock := &ManualClock{}
	reg := NewRegistry("root", "n1", "n2", "n3")
	stats := reg.NewStats(WithClock(clock))

	var root Timer
	stats.Enter(&root, 0)
	begin := clock.Now()

	var stack []*Timer
	activations := make([]int64, names)
	activations[0] = 1
	for step := 0; step < 2000; step++ {
		clock.Advance(time.Duration(rng.Intn(5)))
		if len(stack) == 0 || (len(stack) < 32 && rng.Intn(2) == 0) {
			id := CounterID(1 + rng.Intn(names-1))
			tm := &Timer{}
			stats.Enter(tm, id)
			stack = append(stack, tm)
			activations[id]++
		} else {
			tm := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			stats.Leave(tm)
		}
		if n := runningFrames(stats); n != 1 {
			t.Fatalf("Step %d: expected exactly one running frame, got %d", step, n)
		}
		if !stats.Current().IsStarted() {
			t.Fatalf("Step %d: the innermost frame must be the running one", step)
		}
	}
	for len(stack) > 0 {
		clock.Advance(1)
		stats.Leave(stack[len(stack)-1])
		stack = stack[:len(stack)-1]
	}
	clock.Advance(3)
	stats.Leave(&root)
	wall := clock.Now() - begin

	snap := stats.Snapshot()
	if total := snap.Total(); total.Time != wall {
		t.Errorf("Committed time %v should equal wall time %v", total.Time, wall)
	}
	for i, e := range snap {
		if e.Count != activations[i] {
			t.Errorf("%s: expected %d activations, got %d", e.Name, activations[i], e.Count)
		}
	}
}

func TestRepeatedActivationsSum(t *testing.T) {
	clock := &ManualClock{}
	reg := NewRegistry("Op")
	stats := reg.NewStats(WithClock(clock))

	var want time.Duration
	for i := 1; i <= 10; i++ {
		var tm Timer
		stats.Enter(&tm, 0)
		d := time.Duration(i) * time.Microsecond
		clock.Advance(d)
		want += d
		stats.Leave(&tm)
		clock.Advance(time.Millisecond)
	}
	c := stats.Counter(0)
	if c.Time() != want || c.Count() != 10 {
		t.Errorf("Expected %v/10, got %v/%d", want, c.Time(), c.Count())
	}
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic for duplicate names")
		}
	}()
	NewRegistry("A", "A")
}

func TestSystemClockMonotonic(t *testing.T) {
	c := NewSystemClock()
	prev := c.Now()
	for i := 0; i < 1000; i++ {
		now := c.Now()
		if now < prev {
			t.Fatalf("Clock went backwards: %v < %v", now, prev)
		}
		prev = now
	}
}
