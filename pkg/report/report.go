package report

import (
	"sort"
	"time"

	"github.com/psantana5/callstats/pkg/callstats"
)

// Row is one counter of a report with its share of the totals.
type Row struct {
	Name         string        `json:"name" yaml:"name"`
	Time         time.Duration `json:"time_ns" yaml:"time"`
	TimePercent  float64       `json:"time_percent" yaml:"time_percent"`
	Count        int64         `json:"count" yaml:"count"`
	CountPercent float64       `json:"count_percent" yaml:"count_percent"`
}

// Report is a sorted, render-ready view of a snapshot.
type Report struct {
	Name        string    `json:"name" yaml:"name"`
	Mode        string    `json:"mode,omitempty" yaml:"mode,omitempty"`
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`
	Host        *Host     `json:"host,omitempty" yaml:"host,omitempty"`
	Rows        []Row     `json:"rows" yaml:"rows"`
	Total       Row       `json:"total" yaml:"total"`
}

// FromSnapshot builds a report. Counters that never completed an
// activation are left out; rows are ordered by time, then count, then name.
func FromSnapshot(name string, snap callstats.Snapshot) *Report {
	total := snap.Total()
	r := &Report{
		Name:        name,
		GeneratedAt: time.Now().UTC(),
		Rows:        make([]Row, 0, len(snap)),
		Total:       Row{Name: "Total", Time: total.Time, Count: total.Count},
	}
	if total.Time > 0 {
		r.Total.TimePercent = 100
	}
	if total.Count > 0 {
		r.Total.CountPercent = 100
	}

	for _, e := range snap {
		if e.Count == 0 {
			continue
		}
		r.Rows = append(r.Rows, Row{
			Name:         e.Name,
			Time:         e.Time,
			TimePercent:  percent(int64(e.Time), int64(total.Time)),
			Count:        e.Count,
			CountPercent: percent(e.Count, total.Count),
		})
	}

	sort.SliceStable(r.Rows, func(i, j int) bool {
		a, b := r.Rows[i], r.Rows[j]
		if a.Time != b.Time {
			return a.Time > b.Time
		}
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Name < b.Name
	})
	return r
}

// Top returns the first n rows, or all of them when n <= 0.
func (r *Report) Top(n int) []Row {
	if n <= 0 || n >= len(r.Rows) {
		return r.Rows
	}
	return r.Rows[:n]
}

func percent(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) * 100 / float64(whole)
}
