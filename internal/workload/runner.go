package workload

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/psantana5/callstats/pkg/callstats"
	"github.com/psantana5/callstats/pkg/logging"
	"github.com/psantana5/callstats/pkg/report"
)

// Options configures a Runner
type Options struct {
	Workers int
	// Iterations per worker; 0 runs until the context is cancelled.
	Iterations int
	// Rate is programs per second per worker; 0 is unlimited.
	Rate            float64
	Seed            int64
	Depth           int
	PublishInterval time.Duration
}

// Result summarizes a finished run
type Result struct {
	Stats     *callstats.Stats
	Programs  int64
	Failures  int64
	StartedAt time.Time
	Elapsed   time.Duration
}

// Runner drives the interpreter on several workers. Each worker owns its
// own Stats; snapshots travel to the aggregator, never the Stats itself.
type Runner struct {
	opts   Options
	sw     *callstats.Switch
	agg    *report.Aggregator
	logger *logging.Logger
	clock  callstats.Clock
}

// NewRunner creates a runner. Workers follow sw, picking up mode changes
// between programs so no program sees its stack change mode midway.
func NewRunner(opts Options, sw *callstats.Switch, agg *report.Aggregator, logger *logging.Logger) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Depth < 1 {
		opts.Depth = 1
	}
	if opts.PublishInterval <= 0 {
		opts.PublishInterval = time.Second
	}
	return &Runner{opts: opts, sw: sw, agg: agg, logger: logger}
}

// WithClock overrides the clock handed to worker Stats.
func (r *Runner) WithClock(c callstats.Clock) *Runner {
	r.clock = c
	return r
}

// WorkerSource names the aggregator source of worker i.
func WorkerSource(i int) string {
	return fmt.Sprintf("worker-%d", i)
}

// Run executes the workload and returns the merged counters of all
// workers. Cancellation ends the run early without an error.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	res := &Result{
		Stats:     Registry.NewStats(callstats.WithSwitch(r.sw)),
		StartedAt: time.Now(),
	}

	var (
		wg       sync.WaitGroup
		programs atomic.Int64
		failures atomic.Int64
	)
	workers := make([]*callstats.Stats, r.opts.Workers)

	for i := range workers {
		opts := []callstats.Option{callstats.WithSwitch(callstats.NewSwitch(r.sw.Mode()))}
		if r.clock != nil {
			opts = append(opts, callstats.WithClock(r.clock))
		}
		workers[i] = Registry.NewStats(opts...)

		wg.Add(1)
		go func(id int, stats *callstats.Stats) {
			defer wg.Done()
			p, f := r.work(ctx, id, stats)
			programs.Add(p)
			failures.Add(f)
		}(i, workers[i])
	}
	wg.Wait()

	for _, stats := range workers {
		if err := res.Stats.Merge(stats); err != nil {
			return nil, fmt.Errorf("failed to merge worker stats: %w", err)
		}
	}
	res.Programs = programs.Load()
	res.Failures = failures.Load()
	res.Elapsed = time.Since(res.StartedAt)

	r.logger.Debug("Workload finished", logging.Fields{
		"programs": res.Programs,
		"failures": res.Failures,
		"elapsed":  res.Elapsed.String(),
	})
	return res, nil
}

func (r *Runner) work(ctx context.Context, id int, stats *callstats.Stats) (programs, failures int64) {
	log := r.logger.WithField("worker", id)
	rng := rand.New(rand.NewSource(r.opts.Seed + int64(id)))

	limit := rate.Inf
	if r.opts.Rate > 0 {
		limit = rate.Limit(r.opts.Rate)
	}
	limiter := rate.NewLimiter(limit, 1)

	source := WorkerSource(id)
	lastPublish := time.Now()
	publish := func() {
		if r.agg != nil {
			r.agg.Publish(source, stats.Snapshot())
		}
		lastPublish = time.Now()
	}
	defer publish()

	for i := 0; r.opts.Iterations == 0 || i < r.opts.Iterations; i++ {
		if ctx.Err() != nil {
			return programs, failures
		}
		// Wait fails early when the next token lies past the deadline.
		if err := limiter.Wait(ctx); err != nil {
			log.Debug("Worker stopping", logging.Fields{"reason": err.Error()})
			return programs, failures
		}

		stats.Switch().Set(r.sw.Mode())
		if _, err := r.program(stats, rng); err != nil {
			failures++
			log.Debug("Program failed", logging.Fields{"error": err.Error()})
		}
		programs++

		if time.Since(lastPublish) >= r.opts.PublishInterval {
			publish()
		}
	}
	return programs, failures
}

func (r *Runner) program(stats *callstats.Stats, rng *rand.Rand) (int64, error) {
	defer callstats.NewScope(stats, idProgram).Close()
	src := Generate(stats, rng, r.opts.Depth)
	return Evaluate(stats, src)
}
