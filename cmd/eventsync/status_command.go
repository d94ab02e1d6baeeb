package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"eventsync/internal/ledger"
	"eventsync/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration, readiness and the last run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			for _, line := range renderSectionHeader("Configuration", colorize) {
				fmt.Fprintln(out, line)
			}
			configLine := ctx.configPath
			if !ctx.configSeen {
				configLine += " (not found, defaults used)"
			}
			fmt.Fprintln(out, renderStatusLine("Config", statusInfo, configLine, colorize))
			fmt.Fprintln(out, renderStatusLine("Dataset manager", statusInfo, cfg.Dataset.Manager, colorize))
			fmt.Fprintln(out, renderStatusLine("Zero-strip sessions", statusInfo, yesNo(cfg.Matching.SessionZeroStrip), colorize))
			if err := cfg.RequireDataset(); err != nil {
				fmt.Fprintln(out, renderStatusLine("Dataset", statusError, "not configured", colorize))
				return nil
			}

			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("Readiness", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, result := range preflight.RunAll(cmd.Context(), cfg) {
				kind := statusOK
				if !result.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}
			contents := preflight.InspectDataset(cfg.Paths.DatasetDir)
			contentsKind := statusInfo
			if contents.Err != nil {
				contentsKind = statusError
			}
			fmt.Fprintln(out, renderStatusLine("Contents", contentsKind, contents.Detail(), colorize))

			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("Last run", colorize) {
				fmt.Fprintln(out, line)
			}
			if _, err := os.Stat(cfg.LedgerPath()); err != nil {
				fmt.Fprintln(out, renderStatusLine("Ledger", statusInfo, "no runs recorded", colorize))
				return nil
			}
			store, err := ledger.Open(cfg)
			if err != nil {
				fmt.Fprintln(out, renderStatusLine("Ledger", statusError, err.Error(), colorize))
				return nil
			}
			defer store.Close()
			run, err := store.LatestRun(cmd.Context(), cfg.Paths.DatasetDir)
			if err != nil {
				return err
			}
			if run == nil {
				fmt.Fprintln(out, renderStatusLine("Ledger", statusInfo, "no runs recorded for this dataset", colorize))
				return nil
			}
			counts, err := store.CountOutcomes(cmd.Context(), run.ID)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, renderStatusLine("Run", runStatusKind(run.Status),
				fmt.Sprintf("%s (%s)", run.ID, formatStamp(run.StartedAt)), colorize))
			attentionKind := statusOK
			if counts.Attention() > 0 {
				attentionKind = statusError
			}
			fmt.Fprintln(out, renderStatusLine("Needs attention", attentionKind,
				fmt.Sprintf("%d bucket(s)", counts.Attention()), colorize))
			fmt.Fprintln(out, renderStatusLine("Matched", statusInfo,
				fmt.Sprintf("%d, degraded %d, gaps %d, overrides %d",
					counts[ledger.OutcomeMatched], counts[ledger.OutcomeDegraded],
					counts[ledger.OutcomeGap], counts[ledger.OutcomeOverride]), colorize))
			return nil
		},
	}
}
