package callstats

import "time"

// Entry is the committed state of one counter.
type Entry struct {
	Name  string        `json:"name" yaml:"name"`
	Time  time.Duration `json:"time_ns" yaml:"time"`
	Count int64         `json:"count" yaml:"count"`
}

// Snapshot is an immutable copy of the counters of a Stats, in registry
// order. Snapshots are safe to hand to other goroutines.
type Snapshot []Entry

// Lookup returns the entry named name.
func (s Snapshot) Lookup(name string) (Entry, bool) {
	for _, e := range s {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Total sums time and count over all entries.
func (s Snapshot) Total() Entry {
	total := Entry{Name: "Total"}
	for _, e := range s {
		total.Time += e.Time
		total.Count += e.Count
	}
	return total
}

// Add returns a new snapshot with the entries of other added by name.
// Names only present in other are appended in their order.
func (s Snapshot) Add(other Snapshot) Snapshot {
	out := make(Snapshot, len(s), len(s)+len(other))
	copy(out, s)
	pos := make(map[string]int, len(out))
	for i, e := range out {
		pos[e.Name] = i
	}
	for _, e := range other {
		if i, ok := pos[e.Name]; ok {
			out[i].Time += e.Time
			out[i].Count += e.Count
			continue
		}
		pos[e.Name] = len(out)
		out = append(out, e)
	}
	return out
}
