package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"eventsync/internal/archive"
	"eventsync/internal/dataset"
	"eventsync/internal/reconcile"
)

func newExtractCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Copy behavioral logs out of the session archives",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.datasetConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			lock, err := reconcile.AcquireLock(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = lock.Release() }()

			manager, err := dataset.New(cfg, logger)
			if err != nil {
				return err
			}
			results, err := extractLogs(cmd.Context(), cfg, manager, logger)
			if jsonOut {
				if jerr := writeJSON(cmd, results); jerr != nil {
					return jerr
				}
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), renderExtractResults(results))
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print extraction results as JSON")
	return cmd
}

func renderExtractResults(results []archive.Result) string {
	if len(results) == 0 {
		return "No subject/session has events files"
	}
	rows := make([][]string, 0, len(results))
	for _, res := range results {
		status := "ok"
		if !res.Found() {
			status = "no logs"
		}
		rows = append(rows, []string{
			res.Subject,
			res.Session,
			strconv.Itoa(len(res.Archives)),
			strconv.Itoa(len(res.Extracted)),
			strconv.Itoa(len(res.Existing)),
			status,
		})
	}
	return renderTable(
		[]string{"Subject", "Session", "Archives", "Extracted", "Existing", "Status"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	)
}
