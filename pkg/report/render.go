package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// Supported output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Formats lists the accepted values for Write.
var Formats = []string{FormatTable, FormatJSON, FormatYAML, FormatPrometheus}

// Write renders r in the given format. FormatPrometheus is not accepted
// here since it renders an Aggregator, not a single report.
func Write(w io.Writer, r *Report, format string) error {
	switch format {
	case FormatTable, "":
		return WriteTable(w, r)
	case FormatJSON:
		return WriteJSON(w, r)
	case FormatYAML:
		return WriteYAML(w, r)
	default:
		return fmt.Errorf("unsupported report format %q", format)
	}
}

// WriteTable prints r as a table with a totals footer.
func WriteTable(w io.Writer, r *Report) error {
	if r.Host != nil {
		fmt.Fprintf(w, "Host: %s (%d threads, %s RAM) %s/%s\n",
			r.Host.CPUModel, r.Host.LogicalCores, humanize.IBytes(r.Host.MemoryTotal), r.Host.OS, r.Host.Arch)
	}
	if r.Mode != "" {
		fmt.Fprintf(w, "Report: %s (mode %s)\n", r.Name, r.Mode)
	} else {
		fmt.Fprintf(w, "Report: %s\n", r.Name)
	}

	table := tablewriter.NewWriter(w)
	table.Header("Counter", "Time (ms)", "Time %", "Count", "Count %")
	for _, row := range r.Rows {
		if err := table.Append(
			row.Name,
			formatMillis(row),
			fmt.Sprintf("%.2f%%", row.TimePercent),
			fmt.Sprintf("%d", row.Count),
			fmt.Sprintf("%.2f%%", row.CountPercent),
		); err != nil {
			return fmt.Errorf("failed to append row %s: %w", row.Name, err)
		}
	}
	table.Footer(
		r.Total.Name,
		formatMillis(r.Total),
		fmt.Sprintf("%.2f%%", r.Total.TimePercent),
		fmt.Sprintf("%d", r.Total.Count),
		fmt.Sprintf("%.2f%%", r.Total.CountPercent),
	)
	return table.Render()
}

// WriteJSON prints r as indented JSON.
func WriteJSON(w io.Writer, r *Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// WriteYAML prints r as YAML.
func WriteYAML(w io.Writer, r *Report) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(r); err != nil {
		return err
	}
	return encoder.Close()
}

func formatMillis(row Row) string {
	return fmt.Sprintf("%.3f", float64(row.Time)/1e6)
}
