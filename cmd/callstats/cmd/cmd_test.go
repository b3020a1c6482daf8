package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/psantana5/callstats/pkg/report"
	"github.com/psantana5/callstats/pkg/store"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	stdout, stderr = &out, io.Discard
	t.Cleanup(func() { stdout, stderr = os.Stdout, os.Stderr })

	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestRunJSON(t *testing.T) {
	path := writeConfig(t, "log_level: error\n")
	out := execute(t, "run", "--config", path, "--output", "json", "--workers", "2",
		"--iterations", "5", "--host=false", "--save=false", "--name", "smoke")

	var rep report.Report
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	require.Equal(t, "smoke", rep.Name)
	require.Equal(t, "enabled", rep.Mode)

	var program *report.Row
	for i := range rep.Rows {
		if rep.Rows[i].Name == "Program" {
			program = &rep.Rows[i]
		}
	}
	require.NotNil(t, program)
	require.Equal(t, int64(10), program.Count)
}

func TestRunSaveAndHistory(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, "log_level: error\nstore:\n  driver: sqlite\n  dsn: "+filepath.Join(dir, "runs.db")+"\n")

	execute(t, "run", "--config", path, "--output", "yaml", "--workers", "1",
		"--iterations", "3", "--host=false", "--save", "--name", "saved")

	out := execute(t, "history", "list", "--config", path, "--output", "json")
	var runs []store.Run
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	require.Equal(t, "saved", runs[0].Name)

	out = execute(t, "history", "show", runs[0].ID, "--config", path, "--output", "table")
	require.Contains(t, out, "Report: saved (mode enabled)")
	require.Contains(t, out, "Program")

	out = execute(t, "history", "delete", runs[0].ID, "--config", path, "--output", "table")
	require.True(t, strings.HasPrefix(out, "Deleted run"))
}

func TestConfigShow(t *testing.T) {
	path := writeConfig(t, "log_level: error\ndepth: 6\n")
	out := execute(t, "config", "show", "--config", path, "--output", "table", "--mode", "sampling")
	require.Contains(t, out, "depth: 6")
	require.Contains(t, out, "mode: sampling")
}
