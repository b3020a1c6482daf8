package store

import (
	"context"
	"sort"
	"sync"

	"github.com/psantana5/callstats/pkg/callstats"
)

// MemoryStore keeps runs in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]*Run)}
}

func cloneRun(r *Run) *Run {
	cp := *r
	cp.Entries = make(callstats.Snapshot, len(r.Entries))
	copy(cp.Entries, r.Entries)
	return &cp
}

// SaveRun stores or replaces run
func (m *MemoryStore) SaveRun(ctx context.Context, run *Run) error {
	if err := validate(run); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = cloneRun(run)
	return nil
}

// GetRun returns the run with id
func (m *MemoryStore) GetRun(ctx context.Context, id string) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return cloneRun(run), nil
}

// ListRuns returns up to limit runs, newest first
func (m *MemoryStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	m.mu.RLock()
	runs := make([]*Run, 0, len(m.runs))
	for _, run := range m.runs {
		runs = append(runs, cloneRun(run))
	}
	m.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.After(runs[j].StartedAt)
		}
		return runs[i].ID < runs[j].ID
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// DeleteRun removes the run with id
func (m *MemoryStore) DeleteRun(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[id]; !ok {
		return ErrRunNotFound
	}
	delete(m.runs, id)
	return nil
}

// Close is a no-op
func (m *MemoryStore) Close() error {
	return nil
}
