package reconcile

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"eventsync/internal/behavlog"
	"eventsync/internal/bids"
	"eventsync/internal/config"
	"eventsync/internal/dataset"
	"eventsync/internal/ledger"
	"eventsync/internal/logging"
	"eventsync/internal/lookup"
	"eventsync/internal/manifest"
	"eventsync/internal/matching"
	"eventsync/internal/onsets"
	"eventsync/internal/overrides"
	"eventsync/internal/services"
)

// Engine reconciles the scans and logs of one dataset.
type Engine struct {
	root      string
	zeroStrip bool
	layout    bids.Layout
	manager   dataset.Manager
	store     *ledger.Store
	overrides *overrides.Set
	matcher   *matching.Matcher
	writer    *onsets.Writer
	logger    *slog.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLayout replaces the filesystem layout of the dataset root.
func WithLayout(layout bids.Layout) Option {
	return func(e *Engine) {
		if layout != nil {
			e.layout = layout
		}
	}
}

// WithLedger records every bucket outcome in store.
func WithLedger(store *ledger.Store) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithOverrides applies operator pairings after matching.
func WithOverrides(set *overrides.Set) Option {
	return func(e *Engine) {
		e.overrides = set
	}
}

// New constructs an engine for the configured dataset.
func New(cfg *config.Config, manager dataset.Manager, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	if manager == nil {
		manager = dataset.Plain{}
	}
	e := &Engine{
		root:      cfg.Paths.DatasetDir,
		zeroStrip: cfg.Matching.SessionZeroStrip,
		layout:    bids.NewFSLayout(cfg.Paths.DatasetDir),
		manager:   manager,
		matcher:   matching.NewMatcher(logger),
		writer:    onsets.NewWriter(manager, logger),
		logger:    logging.NewComponentLogger(logger, "reconcile"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run reconciles the whole dataset. Bucket failures are part of the
// returned summary; the error is reserved for failures that stop the run.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	files, err := e.layout.EventFiles()
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "reconcile", "layout", e.root, err)
	}
	logPaths, err := behavlog.Discover(e.root)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "reconcile", "discover logs", e.root, err)
	}
	ix := lookup.Build(files, logPaths, e.zeroStrip)

	summary := &Summary{SkippedLogs: ix.Skipped}
	for _, skipped := range ix.Skipped {
		logging.WarnWithContext(e.logger, "log filename not understood", "log_unparseable",
			logging.String("log_file", skipped.Path),
			logging.Error(skipped.Err),
			logging.String(logging.FieldErrorHint, "rename the log to sub-<label>_ses-<label>_[run-<n>_]<task>_YYYY_MM_DD_HHMM"),
			logging.String(logging.FieldImpact, "log ignored for matching"),
		)
	}

	logger := e.logger
	if e.store != nil {
		run, err := e.store.StartRun(ctx, e.root)
		if err != nil {
			return nil, fmt.Errorf("start ledger run: %w", err)
		}
		summary.RunID = run.ID
		logger = logger.With(logging.String(logging.FieldRunID, run.ID))
	}
	logger.Info("reconciliation started",
		logging.String("dataset", e.root),
		logging.Int("events_files", len(files)),
		logging.Int("log_files", ix.Logs.Len()),
		logging.Int("skipped_logs", len(ix.Skipped)),
	)

	runErr := e.process(ctx, logger, ix, summary)

	if e.store != nil {
		if err := e.store.FinishRun(context.WithoutCancel(ctx), summary.RunID, runErr); err != nil {
			logging.WarnWithContext(logger, "failed to finish ledger run", "ledger_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "report shows the run as still running"),
			)
		}
	}

	counts := summary.Counts()
	logger.Info("reconciliation finished",
		logging.Int("buckets", len(summary.Buckets)),
		logging.Int("matched", counts[ledger.OutcomeMatched]),
		logging.Int("degraded", counts[ledger.OutcomeDegraded]),
		logging.Int("gaps", counts[ledger.OutcomeGap]),
		logging.Int("manual", counts[ledger.OutcomeManual]),
		logging.Int("failed", counts[ledger.OutcomeFailed]),
		logging.Int("events_written", len(summary.EventsFiles)),
	)
	return summary, runErr
}

func (e *Engine) process(ctx context.Context, logger *slog.Logger, ix *lookup.Indexes, summary *Summary) error {
	for _, session := range ix.Events.Sessions() {
		for _, subject := range ix.Events.Subjects(session) {
			if err := ctx.Err(); err != nil {
				return err
			}
			unitLogger := logger.With(
				logging.String(logging.FieldSubject, subject),
				logging.String(logging.FieldSession, session),
			)
			if err := e.processUnit(ctx, unitLogger, ix, session, subject, summary); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) processUnit(ctx context.Context, logger *slog.Logger, ix *lookup.Indexes, session, subject string, summary *Summary) error {
	unit := lookup.Address{Session: session, Subject: subject}
	tasks := ix.Events.Tasks(session, subject)
	manifestPath := bids.ManifestPath(e.root, subject, session)

	table, err := manifest.Load(manifestPath)
	if err != nil {
		logging.ErrorWithContext(logger, "scans manifest unavailable", "manifest_unavailable",
			logging.String("manifest", manifestPath),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "restore the scans.tsv written by the conversion step"),
		)
		for _, task := range tasks {
			addr := unit
			addr.Task = task
			outcome, reason := ledger.OutcomeFor(err)
			e.record(ctx, logger, summary, BucketResult{Address: addr, Outcome: outcome, Reason: reason, Err: err})
		}
		return nil
	}

	for _, task := range tasks {
		addr := unit
		addr.Task = task
		if err := e.processTask(ctx, logger, ix, table, addr, summary); err != nil {
			return err
		}
	}

	e.applyOverrides(ctx, logger, table, session, subject, summary)

	if err := e.writeManifest(ctx, logger, table, summary); err != nil {
		summary.Errors = append(summary.Errors, err)
		return nil
	}
	return e.transformEntries(ctx, logger, table, summary)
}

// processTask walks the runs of one task. A task recorded without run
// numbers is a single run-0 bucket. After a degraded match or a failure
// the remaining runs are skipped, since both already concern every run of
// the task.
func (e *Engine) processTask(ctx context.Context, unitLogger *slog.Logger, ix *lookup.Indexes, table *manifest.Table, addr lookup.Address, summary *Summary) error {
	runs := ix.Events.Runs(addr)
	if slices.Contains(runs, 0) {
		runs = []int{0}
	}
	for _, run := range runs {
		bucket := addr.WithRun(run)
		logger := unitLogger.With(logging.String(logging.FieldTask, bucket.Task), logging.Int(logging.FieldRun, bucket.Run))
		out, err := e.matcher.Resolve(ctx, ix, bucket, table)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			result := BucketResult{Address: bucket, Scans: out.Scans, Logs: out.Logs, Err: err}
			result.Outcome, result.Reason = ledger.OutcomeFor(err)
			if merr, ok := matching.AsError(err); ok {
				result.Scans, result.Logs = merr.Scans, merr.Logs
			}
			logging.ErrorWithContext(logger, "bucket needs manual resolution", "manual_resolution_required",
				logging.String("reason", result.Reason),
				logging.Strings("scans", result.Scans),
				logging.Strings("logs", result.Logs),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "add, remove or rename scans or logs, or pair them in the overrides file"),
			)
			e.record(ctx, logger, summary, result)
			return nil
		}

		for _, pair := range out.Pairs {
			if !table.SetLog(pair.Scan, e.relative(pair.Log)) {
				logging.WarnWithContext(logger, "matched scan has no manifest row", "scan_not_in_manifest",
					logging.String("scan", pair.Scan),
					logging.String("log_file", pair.Log),
					logging.String(logging.FieldImpact, "pair not recorded"),
				)
			}
		}
		e.record(ctx, logger, summary, BucketResult{
			Address: bucket,
			Outcome: ledger.OutcomeOf(out),
			Reason:  out.Attempt,
			Pairs:   len(out.Pairs),
			Scans:   out.Scans,
			Logs:    out.Logs,
		})
		if out.Degraded {
			return nil
		}
	}
	return nil
}

func (e *Engine) applyOverrides(ctx context.Context, logger *slog.Logger, table *manifest.Table, session, subject string, summary *Summary) {
	pairs := e.overrides.For(subject, session)
	if len(pairs) == 0 {
		return
	}
	applied, err := overrides.Apply(table, pairs, logger)
	if err != nil {
		logging.ErrorWithContext(logger, "override could not be applied", "override_invalid",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the scan names in the overrides file against the scans manifest"),
		)
		summary.Errors = append(summary.Errors, err)
	}
	for _, pair := range applied {
		addr := lookup.Address{Session: session, Subject: subject}
		if ent, perr := bids.ParseEntities(filepath.Base(pair.Scan)); perr == nil {
			addr.Task = ent.Task
			addr.Run = ent.NumberedRun()
		}
		summary.Overrides++
		e.record(ctx, logger, summary, BucketResult{
			Address: addr,
			Outcome: ledger.OutcomeOverride,
			Reason:  pair.Note,
			Pairs:   1,
			Scans:   []string{pair.Scan},
			Logs:    []string{pair.Log},
		})
	}
}

// writeManifest persists table when its encoding differs from the file.
func (e *Engine) writeManifest(ctx context.Context, logger *slog.Logger, table *manifest.Table, summary *Summary) error {
	table.EnsureColumn(manifest.ColumnLog)
	encoded, err := table.Encode()
	if err != nil {
		return services.Wrap(services.ErrValidation, "reconcile", "encode manifest", table.Path, err)
	}
	if current, readErr := os.ReadFile(table.Path); readErr == nil && bytes.Equal(current, encoded) {
		logger.Debug("scans manifest unchanged", logging.String("manifest", table.Path))
		return nil
	}
	if err := table.Write(ctx, e.manager); err != nil {
		logging.ErrorWithContext(logger, "failed to write scans manifest", "manifest_write_failed",
			logging.String("manifest", table.Path),
			logging.Error(err),
		)
		return err
	}
	summary.Manifests = append(summary.Manifests, table.Path)
	logger.Info("scans manifest written",
		logging.String("manifest", table.Path),
		logging.Int("mapped", len(table.Entries())),
	)
	return nil
}

// transformEntries copies every mapped log into its events file, including
// mappings kept from earlier runs.
func (e *Engine) transformEntries(ctx context.Context, logger *slog.Logger, table *manifest.Table, summary *Summary) error {
	for _, entry := range table.Entries() {
		if err := ctx.Err(); err != nil {
			return err
		}
		eventsPath := bids.EventsPath(table.Path, entry.Scan)
		logPath := e.absolute(entry.Log)
		taskHint := ""
		if ent, err := bids.ParseEntities(filepath.Base(eventsPath)); err == nil {
			taskHint = ent.Task
		}
		res, err := e.writer.Apply(ctx, eventsPath, logPath, taskHint)
		if err != nil {
			logging.ErrorWithContext(logger, "failed to write events file", "events_write_failed",
				logging.String("events_file", eventsPath),
				logging.Error(err),
			)
			summary.Errors = append(summary.Errors, err)
			continue
		}
		if !res.Written {
			summary.skipTransform(res.Skipped)
			continue
		}
		summary.EventsFiles = append(summary.EventsFiles, eventsPath)
	}
	return nil
}

func (e *Engine) record(ctx context.Context, logger *slog.Logger, summary *Summary, result BucketResult) {
	summary.Buckets = append(summary.Buckets, result)
	if e.store == nil {
		return
	}
	detail := ""
	if result.Err != nil {
		detail = result.Err.Error()
	}
	err := e.store.RecordBucket(context.WithoutCancel(ctx), ledger.Bucket{
		RunID:   summary.RunID,
		Subject: result.Address.Subject,
		Session: result.Address.Session,
		Task:    result.Address.Task,
		Run:     result.Address.Run,
		Outcome: result.Outcome,
		Reason:  result.Reason,
		Pairs:   result.Pairs,
		Scans:   result.Scans,
		Logs:    result.Logs,
		Detail:  detail,
	})
	if err != nil {
		logging.WarnWithContext(logger, "failed to record bucket outcome", "ledger_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "report for this run is incomplete"),
		)
	}
}

// relative expresses path relative to the dataset root with forward
// slashes, the form stored in filename_log.
func (e *Engine) relative(path string) string {
	rel, err := filepath.Rel(e.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (e *Engine) absolute(path string) string {
	path = filepath.FromSlash(path)
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(e.root, path)
}
