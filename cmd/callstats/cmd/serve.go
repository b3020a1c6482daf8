package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/psantana5/callstats/internal/server"
	"github.com/psantana5/callstats/internal/workload"
	"github.com/psantana5/callstats/pkg/callstats"
	"github.com/psantana5/callstats/pkg/logging"
	"github.com/psantana5/callstats/pkg/report"
	"github.com/psantana5/callstats/pkg/shutdown"
	"github.com/psantana5/callstats/pkg/store"
)

var (
	serveRate    float64
	serveBurst   int
	serveTimeout time.Duration
	serveProxy   bool
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the workload continuously and expose its counters over HTTP",
	Long: `Serve keeps the workload running and publishes every worker's counters.
GET /metrics is a Prometheus endpoint, GET /report renders the aggregated
report and PUT /mode switches instrumentation while the workload runs.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("listen", ":9464", "address to listen on")
	serveCmd.Flags().Int("workers", 4, "number of workers")
	serveCmd.Flags().Float64("rate", 0, "programs per second per worker (0 is unlimited)")
	serveCmd.Flags().Float64Var(&serveRate, "api-rate", 10, "API requests per second per client (0 disables limiting)")
	serveCmd.Flags().IntVar(&serveBurst, "api-burst", 20, "API request burst per client")
	serveCmd.Flags().BoolVar(&serveProxy, "trust-proxy", false, "rate limit clients by X-Forwarded-For")
	serveCmd.Flags().DurationVar(&serveTimeout, "shutdown-timeout", 10*time.Second, "time allowed for graceful shutdown")
}

func runServe(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("listen") {
		cfg.Listen, _ = cmd.Flags().GetString("listen")
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if cmd.Flags().Changed("rate") {
		cfg.Rate, _ = cmd.Flags().GetFloat64("rate")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	provider, err := newTracer(ctx, logger)
	if err != nil {
		return err
	}

	var st store.Store
	if cfg.Store.Driver != "memory" {
		st, err = store.Open(cfg.StoreOptions())
		if err != nil {
			return err
		}
	}

	sw := callstats.NewSwitch(cfg.CallMode())
	agg := report.NewAggregator()

	srv, err := server.New(server.Config{
		Aggregator: agg,
		Switch:     sw,
		Store:      st,
		Tracing:    provider,
		Logger:     logger,
		RateRPS:    serveRate,
		RateBurst:  serveBurst,
		TrustProxy: serveProxy,
	})
	if err != nil {
		return err
	}

	runner := workload.NewRunner(workload.Options{
		Workers:         cfg.Workers,
		Rate:            cfg.Rate,
		Seed:            cfg.Seed,
		Depth:           cfg.Depth,
		PublishInterval: cfg.PublishInterval,
	}, sw, agg, logger)

	workCtx, stopWork := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		res, err := runner.Run(workCtx)
		if err != nil {
			logger.Error("Workload failed", logging.Fields{"error": err.Error()})
			return
		}
		logger.Info("Workload stopped", logging.Fields{"programs": res.Programs})
		if st != nil {
			run := store.NewRun("serve", sw.Mode().String(), cfg.Workers, res.StartedAt, res.Elapsed, res.Stats.Snapshot())
			if err := st.SaveRun(context.Background(), run); err != nil {
				logger.Error("Failed to save run", logging.Fields{"error": err.Error()})
			}
		}
	}()

	httpServer := srv.ListenAndServe(ctx, cfg.Listen)

	mgr := shutdown.New(serveTimeout, logger)
	mgr.Register("tracing", provider.Shutdown)
	if st != nil {
		mgr.Register("store", shutdown.CloseResource(st))
	}
	mgr.Register("workload", func(ctx context.Context) error {
		stopWork()
		return shutdown.WaitFor(done)(ctx)
	})
	mgr.Register("http", shutdown.StopHTTPServer(httpServer))

	return mgr.Wait(ctx)
}
