package callstats

import (
	"context"
	"testing"
)

func TestScopeEarlyReturn(t *testing.T) {
	clock := &ManualClock{}
	reg := NewRegistry("Outer", "Inner")
	stats := reg.NewStats(WithClock(clock))

	lookup := func(key int) bool {
		defer NewScope(stats, reg.MustLookup("Inner")).Close()
		clock.Advance(2)
		if key < 0 {
			return false
		}
		clock.Advance(3)
		return true
	}

	func() {
		defer NewScope(stats, reg.MustLookup("Outer")).Close()
		clock.Advance(1)
		lookup(-1)
		lookup(1)
		clock.Advance(1)
	}()

	if stats.InUse() {
		t.Fatal("All scopes should be closed")
	}
	inner := stats.Counter(reg.MustLookup("Inner"))
	if inner.Count() != 2 || inner.Time() != 7 {
		t.Errorf("Expected Inner=7/2, got %v/%d", inner.Time(), inner.Count())
	}
	outer := stats.Counter(reg.MustLookup("Outer"))
	if outer.Count() != 1 || outer.Time() != 2 {
		t.Errorf("Expected Outer=2/1, got %v/%d", outer.Time(), outer.Count())
	}
}

func TestScopeUnwindsOnPanic(t *testing.T) {
	clock := &ManualClock{}
	reg := NewRegistry("Op")
	stats := reg.NewStats(WithClock(clock))

	func() {
		defer func() { recover() }()
		defer NewScope(stats, 0).Close()
		clock.Advance(4)
		panic("boom")
	}()

	if stats.InUse() {
		t.Fatal("Panic should still unwind the scope")
	}
	if c := stats.Counter(0); c.Count() != 1 || c.Time() != 4 {
		t.Errorf("Expected 4/1, got %v/%d", c.Time(), c.Count())
	}
}

func TestScopeInert(t *testing.T) {
	sc := NewScope(nil, 0)
	if sc.Active() {
		t.Error("Scope on nil stats should be inert")
	}
	sc.Close()

	stats := NewRegistry("Op").NewStats(WithSwitch(NewSwitch(Disabled)))
	sc = NewScope(stats, 0)
	if sc.Active() {
		t.Error("Scope on disabled stats should be inert")
	}
	stats.Switch().Set(Enabled)
	sc.Close()
	if stats.InUse() {
		t.Error("Closing an inert scope must not touch the stack")
	}
}

func TestScopeCloseTwice(t *testing.T) {
	stats := NewRegistry("Op").NewStats(WithClock(&ManualClock{}))
	sc := NewScope(stats, 0)
	sc.Close()
	sc.Close()
	if c := stats.Counter(0); c.Count() != 1 {
		t.Errorf("Expected one activation, got %d", c.Count())
	}
}

func TestMeasureAndContext(t *testing.T) {
	clock := &ManualClock{}
	reg := NewRegistry("Request", "Query")
	stats := reg.NewStats(WithClock(clock))
	ctx := WithStats(context.Background(), stats)

	if FromContext(ctx) != stats {
		t.Fatal("FromContext should return the attached stats")
	}
	if FromContext(context.Background()) != nil {
		t.Fatal("FromContext on a bare context should be nil")
	}

	func() {
		defer Start(ctx, reg.MustLookup("Request")).Close()
		clock.Advance(1)
		Measure(stats, reg.MustLookup("Query"), func() {
			clock.Advance(5)
		})
	}()

	if c := stats.Counter(reg.MustLookup("Request")); c.Time() != 1 {
		t.Errorf("Expected Request self time 1, got %v", c.Time())
	}
	if c := stats.Counter(reg.MustLookup("Query")); c.Time() != 5 {
		t.Errorf("Expected Query time 5, got %v", c.Time())
	}

	sc := Start(context.Background(), 0)
	if sc.Active() {
		t.Error("Start without stats should be inert")
	}
}
