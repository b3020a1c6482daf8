package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/psantana5/callstats/internal/workload"
	"github.com/psantana5/callstats/pkg/callstats"
	"github.com/psantana5/callstats/pkg/logging"
	"github.com/psantana5/callstats/pkg/report"
	"github.com/psantana5/callstats/pkg/store"
)

var (
	runName string
	runSave bool
	runTop  int
	runHost bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the instrumented workload and print a report",
	Long: `Run generates and evaluates random expressions on several workers, each
with its own call stack, then merges their counters into one report.
Interrupting the run reports what was measured so far.`,
	RunE: runWorkload,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Int("workers", 4, "number of workers")
	runCmd.Flags().Int("iterations", 200, "programs per worker (0 runs until interrupted)")
	runCmd.Flags().Float64("rate", 0, "programs per second per worker (0 is unlimited)")
	runCmd.Flags().Int64("seed", 1, "seed of the expression generator")
	runCmd.Flags().Int("depth", 4, "maximum expression nesting")
	runCmd.Flags().StringVar(&runName, "name", "run", "name of the report and stored run")
	runCmd.Flags().BoolVar(&runSave, "save", false, "persist the run in the configured store")
	runCmd.Flags().IntVar(&runTop, "top", 0, "show only the n most expensive counters")
	runCmd.Flags().BoolVar(&runHost, "host", true, "include host information in the report")

	for _, name := range []string{"workers", "iterations", "rate", "seed", "depth"} {
		viper.BindPFlag(name, runCmd.Flags().Lookup(name))
	}
}

func runWorkload(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := newTracer(ctx, logger)
	if err != nil {
		return err
	}
	defer provider.Shutdown(context.Background())

	sw := callstats.NewSwitch(cfg.CallMode())
	agg := report.NewAggregator()
	runner := workload.NewRunner(workload.Options{
		Workers:         cfg.Workers,
		Iterations:      cfg.Iterations,
		Rate:            cfg.Rate,
		Seed:            cfg.Seed,
		Depth:           cfg.Depth,
		PublishInterval: cfg.PublishInterval,
	}, sw, agg, logger)

	logger.Info("Starting workload", logging.Fields{
		"workers":    cfg.Workers,
		"iterations": cfg.Iterations,
		"mode":       sw.Mode().String(),
	})
	res, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	logger.Info("Workload complete", logging.Fields{
		"programs": res.Programs,
		"failures": res.Failures,
		"elapsed":  res.Elapsed.String(),
	})

	snap := res.Stats.Snapshot()
	rep := report.FromSnapshot(runName, snap)
	rep.Mode = sw.Mode().String()
	if runHost {
		host, err := report.HostInfo()
		if err != nil {
			logger.Warn("Failed to read host information", logging.Fields{"error": err.Error()})
		} else {
			rep.Host = host
		}
	}
	rep.Rows = rep.Top(runTop)

	report.EmitSpans(ctx, provider.Tracer(), rep)

	if runSave {
		if err := saveRun(context.Background(), res, snap, sw.Mode()); err != nil {
			return err
		}
	}

	if cfg.Output == report.FormatPrometheus {
		return report.WritePrometheus(stdout, agg)
	}
	return report.Write(stdout, rep, cfg.Output)
}

func saveRun(ctx context.Context, res *workload.Result, snap callstats.Snapshot, mode callstats.Mode) error {
	st, err := store.Open(cfg.StoreOptions())
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	run := store.NewRun(runName, mode.String(), cfg.Workers, res.StartedAt, res.Elapsed, snap)
	if err := st.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	fmt.Fprintf(stderr, "Saved run %s\n", run.ID)
	return nil
}
