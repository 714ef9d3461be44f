package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tutao/search-core/internal/output"
	"github.com/tutao/search-core/internal/telemetry"
)

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show local search telemetry",
		Long: `Aggregates the page records appended by 'search' and 'more' across every
prior invocation: zero-result rate and p50/p95 latency, useful for spotting
a slow mailbox. Query text is never recorded, only a truncated hash.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the snapshot as JSON")

	return cmd
}

func runStats(cmd *cobra.Command, jsonOutput bool) error {
	path, err := telemetryLogPath()
	if err != nil {
		return err
	}
	records, err := telemetry.LoadRecordsFile(path)
	if err != nil {
		return fmt.Errorf("read telemetry log: %w", err)
	}

	recorder := telemetry.NewPageRecorder(len(records))
	recorder.Restore(records)
	snapshot := recorder.Snapshot()

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(snapshot)
	}

	out := output.New(cmd.OutOrStdout())
	if snapshot.TotalQueries == 0 {
		out.Warning("no telemetry recorded yet, run a search first")
		return nil
	}

	out.Statusf("📊", "%d page(s) recorded since %s", snapshot.TotalQueries, snapshot.Since.Format("2006-01-02T15:04:05Z07:00"))
	out.Statusf("⏱️", "p50=%.1fms p95=%.1fms", snapshot.P50Ms, snapshot.P95Ms)
	out.Statusf("∅", "%d zero-result page(s) (%.1f%%)", snapshot.ZeroResultCount, snapshot.ZeroResultPercentage())
	return nil
}
