package callstats

import "fmt"

// CounterID is the slot of a counter in a Registry.
type CounterID int

// Registry is the fixed, ordered set of operation names. One registry is
// shared by every Stats of a program so their counters line up slot by slot.
type Registry struct {
	names []string
	index map[string]CounterID
}

// NewRegistry builds a registry from names. Empty or duplicate names panic.
func NewRegistry(names ...string) *Registry {
	r := &Registry{
		names: make([]string, 0, len(names)),
		index: make(map[string]CounterID, len(names)),
	}
	for _, name := range names {
		if name == "" {
			panic("callstats: empty counter name")
		}
		if _, dup := r.index[name]; dup {
			panic(fmt.Sprintf("callstats: duplicate counter name %q", name))
		}
		r.index[name] = CounterID(len(r.names))
		r.names = append(r.names, name)
	}
	return r
}

// Len returns the number of counters.
func (r *Registry) Len() int {
	return len(r.names)
}

// Lookup resolves a name to its slot.
func (r *Registry) Lookup(name string) (CounterID, bool) {
	id, ok := r.index[name]
	return id, ok
}

// MustLookup is Lookup for names known at compile time.
func (r *Registry) MustLookup(name string) CounterID {
	id, ok := r.index[name]
	if !ok {
		panic(fmt.Errorf("callstats: %w: %q", ErrUnknownCounter, name))
	}
	return id
}

// Name returns the name stored in slot id.
func (r *Registry) Name(id CounterID) string {
	return r.names[id]
}

// Names returns a copy of all names in slot order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// NewStats creates a fresh Stats with one zeroed counter per name.
func (r *Registry) NewStats(opts ...Option) *Stats {
	s := &Stats{
		registry: r,
		counters: make([]Counter, len(r.names)),
		clock:    defaultClock,
	}
	for i, name := range r.names {
		s.counters[i].name = name
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.mode == nil {
		s.mode = NewSwitch(Enabled)
	}
	return s
}
