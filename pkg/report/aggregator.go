package report

import (
	"sort"
	"sync"

	"github.com/psantana5/callstats/pkg/callstats"
)

// Aggregator collects snapshots from many execution contexts. It is the
// hand-off point between goroutines owning a Stats and readers such as the
// Prometheus collector.
type Aggregator struct {
	mu      sync.RWMutex
	sources map[string]callstats.Snapshot
}

// NewAggregator creates an empty aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{sources: make(map[string]callstats.Snapshot)}
}

// Publish replaces the snapshot of source. Use it for sources that report
// cumulative counters, such as a long-lived worker Stats.
func (a *Aggregator) Publish(source string, snap callstats.Snapshot) {
	cp := make(callstats.Snapshot, len(snap))
	copy(cp, snap)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.sources[source] = cp
}

// Accumulate adds snap to what source has reported so far. Use it for
// short-lived Stats, such as one per request.
func (a *Aggregator) Accumulate(source string, snap callstats.Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sources[source] = a.sources[source].Add(snap)
}

// Source returns the latest snapshot of source.
func (a *Aggregator) Source(source string) (callstats.Snapshot, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	snap, ok := a.sources[source]
	return snap, ok
}

// Sources returns the known source names, sorted.
func (a *Aggregator) Sources() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.sources))
	for name := range a.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Total merges every source into one snapshot, in source name order.
func (a *Aggregator) Total() callstats.Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.sources))
	for name := range a.sources {
		names = append(names, name)
	}
	sort.Strings(names)

	var total callstats.Snapshot
	for _, name := range names {
		total = total.Add(a.sources[name])
	}
	return total
}

// Reset forgets every source.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sources = make(map[string]callstats.Snapshot)
}
