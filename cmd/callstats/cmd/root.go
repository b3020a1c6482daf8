package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/psantana5/callstats/internal/config"
	"github.com/psantana5/callstats/pkg/logging"
	"github.com/psantana5/callstats/pkg/tracing"
)

// Version is set at build time
var Version = "dev"

var (
	cfgFile string
	cfg     *config.Config
	stdout  io.Writer = os.Stdout
	stderr  io.Writer = os.Stderr
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "callstats",
	Short: "Hierarchical call timing for an instrumented expression interpreter",
	Long: `callstats runs an instrumented expression interpreter and reports, per
operation, the time spent in the operation itself (excluding the operations
it called) and how often it completed.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Version = Version
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.callstats/config.yaml)")
	rootCmd.PersistentFlags().String("output", "table", "output format: table, json, yaml or prometheus")
	rootCmd.PersistentFlags().String("mode", "enabled", "instrumentation mode: disabled, enabled or sampling")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")

	viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	viper.BindPFlag("mode", rootCmd.PersistentFlags().Lookup("mode"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// loadConfig reads the config file and environment once flags are parsed
func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(viper.GetViper(), cfgFile)
	if err != nil {
		return err
	}
	cfg = c
	return nil
}

// newLogger builds the logger described by the configuration. Logs go to
// stderr so reports on stdout stay machine readable.
func newLogger() (*logging.Logger, error) {
	level := logging.ParseLevel(cfg.LogLevel)
	if cfg.LogFile != "" {
		logger, err := logging.NewFileLogger(cfg.LogFile, level, cfg.LogJSON)
		if err != nil {
			return nil, err
		}
		return logger, nil
	}
	logger := logging.NewLogger(level, cfg.LogJSON)
	logger.SetOutput(stderr)
	return logger, nil
}

func newTracer(ctx context.Context, logger *logging.Logger) (*tracing.Provider, error) {
	provider, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "callstats",
		ServiceVersion: Version,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.Endpoint,
		Enabled:        cfg.Tracing.Enabled,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	return provider, nil
}
