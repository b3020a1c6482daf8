package workload

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/psantana5/callstats/pkg/callstats"
	"github.com/psantana5/callstats/pkg/logging"
	"github.com/psantana5/callstats/pkg/report"
)

func quietLogger() *logging.Logger {
	logger := logging.NewLogger(logging.ERROR, false)
	logger.SetOutput(io.Discard)
	return logger
}

func TestRunnerFixedIterations(t *testing.T) {
	agg := report.NewAggregator()
	sw := callstats.NewSwitch(callstats.Enabled)
	r := NewRunner(Options{Workers: 3, Iterations: 25, Seed: 1, Depth: 3}, sw, agg, quietLogger())

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(75), res.Programs)

	program, err := res.Stats.CounterByName("Program")
	require.NoError(t, err)
	require.Equal(t, int64(75), program.Count())

	generate, _ := res.Stats.CounterByName("Generate")
	require.Equal(t, int64(75), generate.Count())

	// Every program that lexed also parsed.
	lex, _ := res.Stats.CounterByName("Lex")
	parse, _ := res.Stats.CounterByName("Parse")
	require.Equal(t, int64(75), lex.Count())
	require.Equal(t, lex.Count(), parse.Count())

	require.Equal(t, []string{"worker-0", "worker-1", "worker-2"}, agg.Sources())
	total := agg.Total()
	e, ok := total.Lookup("Program")
	require.True(t, ok)
	require.Equal(t, int64(75), e.Count)
}

func TestRunnerDeterministicCounts(t *testing.T) {
	run := func() callstats.Snapshot {
		r := NewRunner(Options{Workers: 2, Iterations: 40, Seed: 9, Depth: 4}, callstats.NewSwitch(callstats.Enabled), nil, quietLogger())
		res, err := r.Run(context.Background())
		require.NoError(t, err)
		return res.Stats.Snapshot()
	}

	a, b := run(), run()
	for i := range a {
		require.Equal(t, a[i].Name, b[i].Name)
		require.Equal(t, a[i].Count, b[i].Count, a[i].Name)
	}
}

func TestRunnerDisabled(t *testing.T) {
	r := NewRunner(Options{Workers: 2, Iterations: 10, Seed: 1, Depth: 2}, callstats.NewSwitch(callstats.Disabled), nil, quietLogger())

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(20), res.Programs)
	for _, e := range res.Stats.Snapshot() {
		require.Zero(t, e.Count, e.Name)
		require.Zero(t, e.Time, e.Name)
	}
}

func TestRunnerSamplingCountsNoTime(t *testing.T) {
	r := NewRunner(Options{Workers: 1, Iterations: 10, Seed: 1, Depth: 2}, callstats.NewSwitch(callstats.Sampling), nil, quietLogger())

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	for _, e := range res.Stats.Snapshot() {
		require.Zero(t, e.Time, e.Name)
	}
}

func TestRunnerCancel(t *testing.T) {
	agg := report.NewAggregator()
	r := NewRunner(Options{Workers: 2, Rate: 200, Seed: 1, Depth: 2, PublishInterval: 10 * time.Millisecond},
		callstats.NewSwitch(callstats.Enabled), agg, quietLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	res, err := r.Run(ctx)
	require.NoError(t, err)
	require.Greater(t, res.Programs, int64(0))

	program, _ := res.Stats.CounterByName("Program")
	require.Equal(t, res.Programs, program.Count())
	require.False(t, res.Stats.InUse())

	// The final publish matches the merged result.
	e, ok := agg.Total().Lookup("Program")
	require.True(t, ok)
	require.Equal(t, res.Programs, e.Count)
}

func TestRunnerModeFlipBetweenPrograms(t *testing.T) {
	sw := callstats.NewSwitch(callstats.Enabled)
	r := NewRunner(Options{Workers: 4, Seed: 3, Depth: 3}, sw, nil, quietLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	go func() {
		modes := []callstats.Mode{callstats.Disabled, callstats.Sampling, callstats.Enabled}
		for i := 0; ctx.Err() == nil; i++ {
			sw.Set(modes[i%len(modes)])
			time.Sleep(time.Millisecond)
		}
	}()

	res, err := r.Run(ctx)
	require.NoError(t, err)
	require.False(t, res.Stats.InUse())

	program, _ := res.Stats.CounterByName("Program")
	require.LessOrEqual(t, program.Count(), res.Programs)
}
