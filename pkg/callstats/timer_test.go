package callstats

import (
	"errors"
	"testing"
	"time"
)

func expectViolation(t *testing.T, target error, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("Expected panic with %v, got none", target)
		}
		err, ok := r.(error)
		if !ok {
			t.Fatalf("Expected error panic, got %v", r)
		}
		var ce *ContractError
		if !errors.As(err, &ce) {
			t.Fatalf("Expected *ContractError, got %T", err)
		}
		if !errors.Is(err, target) {
			t.Fatalf("Expected %v, got %v", target, err)
		}
	}()
	fn()
}

func TestNestedScenario(t *testing.T) {
	clock := NewSequenceClock(0, 10, 15, 40)
	reg := NewRegistry("A", "B")
	stats := reg.NewStats(WithClock(clock))

	var a, b Timer
	stats.Enter(&a, reg.MustLookup("A"))
	stats.Enter(&b, reg.MustLookup("B"))
	if a.IsStarted() {
		t.Error("A should be paused while B runs")
	}
	if a.Elapsed() != 10 {
		t.Errorf("Expected A to have accrued 10, got %v", a.Elapsed())
	}
	stats.Leave(&b)
	if !a.IsStarted() {
		t.Error("A should resume when B stops")
	}
	stats.Leave(&a)

	ca := stats.Counter(reg.MustLookup("A"))
	cb := stats.Counter(reg.MustLookup("B"))
	if ca.Time() != 35 || ca.Count() != 1 {
		t.Errorf("Expected A=35/1, got %v/%d", ca.Time(), ca.Count())
	}
	if cb.Time() != 5 || cb.Count() != 1 {
		t.Errorf("Expected B=5/1, got %v/%d", cb.Time(), cb.Count())
	}
	if clock.Calls() != 4 {
		t.Errorf("Expected 4 clock reads, got %d", clock.Calls())
	}
	if stats.InUse() {
		t.Error("Stack should be idle")
	}
}

func TestTimerZeroReadingIsRunning(t *testing.T) {
	clock := &ManualClock{}
	var tm Timer
	tm.Start(clock, &Counter{name: "x"}, nil, false)
	if !tm.IsStarted() {
		t.Fatal("Timer started at reading 0 should be running")
	}
}

func TestTimerPauseNotRunning(t *testing.T) {
	var tm Timer
	expectViolation(t, ErrNotRunning, func() {
		tm.Pause(5)
	})
}

func TestTimerResumeRunning(t *testing.T) {
	var tm Timer
	tm.Resume(1)
	expectViolation(t, ErrAlreadyRunning, func() {
		tm.Resume(2)
	})
}

func TestTimerStartWhileRunning(t *testing.T) {
	clock := &ManualClock{}
	c := &Counter{name: "x"}
	var tm Timer
	tm.Start(clock, c, nil, false)
	expectViolation(t, ErrAlreadyRunning, func() {
		tm.Start(clock, c, nil, false)
	})
}

func TestTimerStopNeverStarted(t *testing.T) {
	var parent, tm Timer
	if got := tm.Stop(); got != nil {
		t.Errorf("Expected nil parent for unbound timer, got %p", got)
	}

	c := &Counter{name: "x"}
	tm.Start(&ManualClock{}, c, &parent, true)
	if tm.IsStarted() {
		t.Fatal("Sampling start must not take timestamps")
	}
	if got := tm.Stop(); got != &parent {
		t.Errorf("Expected parent %p, got %p", &parent, got)
	}
	if c.Count() != 0 || c.Time() != 0 {
		t.Errorf("Counter should be untouched, got %v/%d", c.Time(), c.Count())
	}
}

func TestTimerParentPausedAtChildStart(t *testing.T) {
	clock := &ManualClock{}
	pc := &Counter{name: "parent"}
	cc := &Counter{name: "child"}

	var parent, child Timer
	parent.Start(clock, pc, nil, false)
	clock.Set(7 * time.Millisecond)
	child.Start(clock, cc, &parent, false)
	if parent.Elapsed() != 7*time.Millisecond {
		t.Errorf("Parent should accrue up to the child's start, got %v", parent.Elapsed())
	}
	if child.start != 7*time.Millisecond {
		t.Errorf("Child should start at the parent's pause, got %v", child.start)
	}

	clock.Set(9 * time.Millisecond)
	if got := child.Stop(); got != &parent {
		t.Fatalf("Stop should return the parent")
	}
	if parent.start != 9*time.Millisecond {
		t.Errorf("Parent should resume at the child's stop, got %v", parent.start)
	}
	if cc.Time() != 2*time.Millisecond {
		t.Errorf("Expected child time 2ms, got %v", cc.Time())
	}
	if child.Elapsed() != 0 {
		t.Errorf("Commit should clear accrued time, got %v", child.Elapsed())
	}
}
