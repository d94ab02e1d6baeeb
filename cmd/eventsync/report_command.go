package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"eventsync/internal/ledger"
)

func newReportCommand(ctx *commandContext) *cobra.Command {
	var runID string
	var showAll bool
	var listRuns bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show bucket outcomes recorded for a run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.datasetConfig()
			if err != nil {
				return err
			}
			store, err := ledger.Open(cfg)
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}
			defer store.Close()

			if listRuns {
				runs, err := store.ListRuns(cmd.Context(), cfg.Paths.DatasetDir, 20)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, runs)
				}
				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					rows = append(rows, []string{run.ID, string(run.Status), formatStamp(run.StartedAt), formatStamp(run.FinishedAt)})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Run", "Status", "Started", "Finished"}, rows, nil))
				return nil
			}

			var run *ledger.Run
			if runID != "" {
				run, err = store.GetRun(cmd.Context(), runID)
			} else {
				run, err = store.LatestRun(cmd.Context(), cfg.Paths.DatasetDir)
			}
			if err != nil {
				return err
			}
			if run == nil {
				return errors.New("no recorded runs for this dataset; run `eventsync run` first")
			}

			buckets, err := store.Buckets(cmd.Context(), run.ID)
			if err != nil {
				return err
			}
			if !showAll {
				filtered := buckets[:0]
				for _, b := range buckets {
					if b.Outcome.NeedsAttention() {
						filtered = append(filtered, b)
					}
				}
				buckets = filtered
			}

			if jsonOut {
				return writeJSON(cmd, reportView{Run: run, Buckets: buckets})
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Run "+run.ID, colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, renderStatusLine("Status", runStatusKind(run.Status), string(run.Status), colorize))
			fmt.Fprintln(out, renderStatusLine("Started", statusInfo, formatStamp(run.StartedAt), colorize))
			if run.ErrorMessage != "" {
				fmt.Fprintln(out, renderStatusLine("Error", statusError, run.ErrorMessage, colorize))
			}
			if len(buckets) == 0 {
				fmt.Fprintln(out, renderStatusLine("Buckets", statusOK, "nothing needs attention", colorize))
				return nil
			}
			rows := make([][]string, 0, len(buckets))
			for _, b := range buckets {
				rows = append(rows, bucketRow(b.Subject, b.Session, b.Task, b.Run, b.Outcome, b.Reason, b.Pairs, len(b.Scans), len(b.Logs)))
			}
			fmt.Fprintln(out, renderTable(bucketHeaders, rows, bucketAligns))
			for _, b := range buckets {
				if !b.Outcome.NeedsAttention() || b.Detail == "" {
					continue
				}
				label := fmt.Sprintf("sub-%s ses-%s %s", b.Subject, b.Session, b.Task)
				if b.Run > 0 {
					label += " run-" + strconv.Itoa(b.Run)
				}
				fmt.Fprintf(out, "\n%s\n  %s\n", label, b.Detail)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "Run id (defaults to the latest run)")
	cmd.Flags().BoolVar(&showAll, "all", false, "Include buckets that need no attention")
	cmd.Flags().BoolVar(&listRuns, "runs", false, "List recent runs instead of bucket outcomes")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the report as JSON")
	return cmd
}

type reportView struct {
	Run     *ledger.Run     `json:"run"`
	Buckets []ledger.Bucket `json:"buckets"`
}

func runStatusKind(status ledger.Status) statusKind {
	switch status {
	case ledger.StatusCompleted:
		return statusOK
	case ledger.StatusFailed:
		return statusError
	default:
		return statusWarn
	}
}

func formatStamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
