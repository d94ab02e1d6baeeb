package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"eventsync/internal/archive"
	"eventsync/internal/bids"
	"eventsync/internal/config"
	"eventsync/internal/dataset"
	"eventsync/internal/ledger"
	"eventsync/internal/overrides"
	"eventsync/internal/preflight"
	"eventsync/internal/reconcile"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var skipExtract bool
	var noSave bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Extract logs, match them to scans and write events files",
		Long: `Extract behavioral logs from the session archives, match every scan
bucket with its logs, record the mapping in the scans manifests and copy
the transformed log content into the events files. Buckets that cannot be
matched are listed at the end and kept in the run ledger.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.datasetConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			if err := requirePreflight(cmd.Context(), cfg); err != nil {
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

			if !skipExtract {
				if _, err := extractLogs(cmd.Context(), cfg, manager, logger); err != nil {
					return err
				}
			}

			set, err := overrides.Load(cfg.Matching.OverridesFile)
			if err != nil {
				return err
			}
			store, err := ledger.Open(cfg)
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}
			defer store.Close()

			engine := reconcile.New(cfg, manager, logger,
				reconcile.WithLedger(store),
				reconcile.WithOverrides(set),
			)
			summary, runErr := engine.Run(cmd.Context())
			if summary == nil {
				return runErr
			}

			if !noSave && runErr == nil {
				if err := saveDataset(cmd.Context(), cfg, manager, summary.Touched()); err != nil {
					return err
				}
			}

			if jsonOut {
				if err := writeJSON(cmd, summaryView(summary)); err != nil {
					return err
				}
			} else {
				printSummary(cmd.OutOrStdout(), summary, shouldColorize(cmd.OutOrStdout()))
			}
			if runErr != nil {
				return runErr
			}
			if summary.NeedsAttention() {
				return fmt.Errorf("%d bucket(s) need manual resolution; see `eventsync report`", summary.Counts().Attention()+len(summary.Errors))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipExtract, "skip-extract", false, "Do not extract logs from session archives first")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "Do not save the dataset afterwards")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the run summary as JSON")
	return cmd
}

func requirePreflight(ctx context.Context, cfg *config.Config) error {
	failed := preflight.Failed(preflight.RunAll(ctx, cfg))
	if len(failed) == 0 {
		return nil
	}
	parts := make([]string, 0, len(failed))
	for _, r := range failed {
		parts = append(parts, fmt.Sprintf("%s: %s", r.Name, r.Detail))
	}
	return fmt.Errorf("preflight failed: %s", strings.Join(parts, "; "))
}

func extractLogs(ctx context.Context, cfg *config.Config, manager dataset.Manager, logger *slog.Logger) ([]archive.Result, error) {
	files, err := bids.NewFSLayout(cfg.Paths.DatasetDir).EventFiles()
	if err != nil {
		return nil, err
	}
	extractor := archive.NewExtractor(cfg.Paths.DatasetDir, cfg.Archive.MemberPattern, manager, logger)
	return extractor.ExtractAll(ctx, files)
}

// saveDataset records sourcedata first, then the files the command wrote.
// Nothing beyond sourcedata is saved when touched is empty.
func saveDataset(ctx context.Context, cfg *config.Config, manager dataset.Manager, touched []string) error {
	message := cfg.Dataset.SaveMessage
	sourcedata := filepath.Join(cfg.Paths.DatasetDir, "sourcedata")
	if err := manager.Save(ctx, []string{sourcedata}, message); err != nil {
		return err
	}
	if len(touched) == 0 {
		return nil
	}
	return manager.Save(ctx, touched, message)
}

type bucketView struct {
	Subject string   `json:"subject"`
	Session string   `json:"session"`
	Task    string   `json:"task"`
	Run     int      `json:"run"`
	Outcome string   `json:"outcome"`
	Reason  string   `json:"reason,omitempty"`
	Pairs   int      `json:"pairs"`
	Scans   []string `json:"scans,omitempty"`
	Logs    []string `json:"logs,omitempty"`
	Error   string   `json:"error,omitempty"`
}

type runSummaryView struct {
	RunID          string         `json:"run_id"`
	Counts         map[string]int `json:"counts"`
	Buckets        []bucketView   `json:"buckets"`
	Manifests      []string       `json:"manifests"`
	EventsFiles    []string       `json:"events_files"`
	SkippedLogs    []string       `json:"skipped_logs,omitempty"`
	TransformSkips map[string]int `json:"transform_skips,omitempty"`
	Errors         []string       `json:"errors,omitempty"`
}

func summaryView(summary *reconcile.Summary) runSummaryView {
	view := runSummaryView{
		RunID:          summary.RunID,
		Counts:         map[string]int{},
		Manifests:      append([]string{}, summary.Manifests...),
		EventsFiles:    append([]string{}, summary.EventsFiles...),
		TransformSkips: summary.TransformSkips,
	}
	for outcome, n := range summary.Counts() {
		view.Counts[string(outcome)] = n
	}
	for _, b := range summary.Buckets {
		bv := bucketView{
			Subject: b.Address.Subject,
			Session: b.Address.Session,
			Task:    b.Address.Task,
			Run:     b.Address.Run,
			Outcome: string(b.Outcome),
			Reason:  b.Reason,
			Pairs:   b.Pairs,
			Scans:   b.Scans,
			Logs:    b.Logs,
		}
		if b.Err != nil {
			bv.Error = b.Err.Error()
		}
		view.Buckets = append(view.Buckets, bv)
	}
	for _, skipped := range summary.SkippedLogs {
		view.SkippedLogs = append(view.SkippedLogs, skipped.Path)
	}
	for _, err := range summary.Errors {
		view.Errors = append(view.Errors, err.Error())
	}
	return view
}

func printSummary(out io.Writer, summary *reconcile.Summary, colorize bool) {
	counts := summary.Counts()
	for _, line := range renderSectionHeader("Reconciliation", colorize) {
		fmt.Fprintln(out, line)
	}
	if summary.RunID != "" {
		fmt.Fprintln(out, renderStatusLine("Run", statusInfo, summary.RunID, colorize))
	}
	outcomes := []ledger.Outcome{
		ledger.OutcomeMatched, ledger.OutcomeDegraded, ledger.OutcomeOverride,
		ledger.OutcomeGap, ledger.OutcomeManual, ledger.OutcomeFailed,
	}
	for _, outcome := range outcomes {
		kind := outcomeKind(outcome)
		if counts[outcome] == 0 {
			kind = statusInfo
		}
		fmt.Fprintln(out, renderStatusLine(string(outcome), kind, strconv.Itoa(counts[outcome]), colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Manifests written", statusInfo, strconv.Itoa(len(summary.Manifests)), colorize))
	fmt.Fprintln(out, renderStatusLine("Events written", statusInfo, strconv.Itoa(len(summary.EventsFiles)), colorize))
	if len(summary.SkippedLogs) > 0 {
		fmt.Fprintln(out, renderStatusLine("Unparsed logs", statusWarn, strconv.Itoa(len(summary.SkippedLogs)), colorize))
	}

	var rows [][]string
	for _, b := range summary.Buckets {
		if !b.Outcome.NeedsAttention() {
			continue
		}
		rows = append(rows, bucketRow(b.Address.Subject, b.Address.Session, b.Address.Task, b.Address.Run,
			b.Outcome, b.Reason, b.Pairs, len(b.Scans), len(b.Logs)))
	}
	if len(rows) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable(bucketHeaders, rows, bucketAligns))
	}
	for _, err := range summary.Errors {
		fmt.Fprintln(out, renderStatusLine("Error", statusError, errorLine(err), colorize))
	}
}

var (
	bucketHeaders = []string{"Subject", "Session", "Task", "Run", "Outcome", "Reason", "Pairs", "Scans", "Logs"}
	bucketAligns  = []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight}
)

func bucketRow(subject, session, task string, run int, outcome ledger.Outcome, reason string, pairs, scans, logs int) []string {
	runLabel := "-"
	if run > 0 {
		runLabel = strconv.Itoa(run)
	}
	return []string{
		subject, session, task, runLabel, string(outcome), reason,
		strconv.Itoa(pairs), strconv.Itoa(scans), strconv.Itoa(logs),
	}
}

func errorLine(err error) string {
	msg := err.Error()
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		parts := joined.Unwrap()
		msgs := make([]string, 0, len(parts))
		for _, p := range parts {
			msgs = append(msgs, p.Error())
		}
		sort.Strings(msgs)
		msg = strings.Join(msgs, "; ")
	}
	return msg
}
