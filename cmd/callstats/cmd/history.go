package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/psantana5/callstats/pkg/report"
	"github.com/psantana5/callstats/pkg/store"
)

var historyLimit int

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect stored runs",
	Long:  `Commands for listing, showing and deleting runs saved with "run --save".`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs, newest first",
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print the report of a stored run",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a stored run",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryDelete,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)

	historyListCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of runs (0 for all)")
}

func openStore() (store.Store, error) {
	if cfg.Store.Driver == "memory" {
		return nil, fmt.Errorf("history needs a persistent store; set store.driver to sqlite or postgres")
	}
	return store.Open(cfg.StoreOptions())
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(cmd.Context(), historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if cfg.Output == report.FormatJSON {
		encoder := json.NewEncoder(stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(stdout, "No runs stored")
		return nil
	}

	table := tablewriter.NewWriter(stdout)
	table.Header("ID", "Name", "Mode", "Workers", "Started", "Duration", "Calls")
	for _, run := range runs {
		if err := table.Append(
			run.ID,
			run.Name,
			run.Mode,
			fmt.Sprintf("%d", run.Workers),
			humanize.Time(run.StartedAt),
			run.Duration.Round(time.Millisecond).String(),
			humanize.Comma(run.Entries.Total().Count),
		); err != nil {
			return err
		}
	}
	return table.Render()
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := st.GetRun(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get run %s: %w", args[0], err)
	}

	rep := report.FromSnapshot(run.Name, run.Entries)
	rep.Mode = run.Mode
	rep.GeneratedAt = run.StartedAt
	if cfg.Output == report.FormatPrometheus {
		agg := report.NewAggregator()
		agg.Publish(run.ID, run.Entries)
		return report.WritePrometheus(stdout, agg)
	}
	return report.Write(stdout, rep, cfg.Output)
}

func runHistoryDelete(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.DeleteRun(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete run %s: %w", args[0], err)
	}
	fmt.Fprintf(stdout, "Deleted run %s\n", args[0])
	return nil
}
