package onsets

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"eventsync/internal/fileutil"
	"eventsync/internal/logging"
	"eventsync/internal/services"
)

// Unlocker grants write access to a tracked file.
type Unlocker interface {
	Unlock(ctx context.Context, path string) error
}

// Writer replaces events placeholders with transformed log content.
type Writer struct {
	unlocker Unlocker
	logger   *slog.Logger
}

// NewWriter returns a writer that unlocks files through unlocker.
func NewWriter(unlocker Unlocker, logger *slog.Logger) *Writer {
	return &Writer{unlocker: unlocker, logger: logging.NewComponentLogger(logger, "onsets")}
}

// Result reports what Apply did for one events file.
type Result struct {
	Written bool
	Family  Family
	Rows    int
	// Skipped explains why nothing was written, if so.
	Skipped string
}

// Apply transforms logPath and writes it over eventsPath. A missing log or
// unreadable log content is not an error: the events file is left alone and
// the reason is returned in Result.Skipped. Only unlock and write failures
// are returned as errors.
func (w *Writer) Apply(ctx context.Context, eventsPath, logPath, taskHint string) (Result, error) {
	logger := w.logger.With(logging.String("events_file", eventsPath), logging.String("log_file", logPath))

	if _, err := os.Stat(logPath); err != nil {
		logger.Debug("log file missing; events file left unchanged", logging.Error(err))
		return Result{Skipped: "log_missing"}, nil
	}

	table, family, err := TransformFile(logPath, taskHint)
	if err != nil {
		reason := "log_malformed"
		switch {
		case errors.Is(err, ErrEmptyLog):
			reason = "log_empty"
		case errors.Is(err, ErrUnknownSchema):
			reason = "log_schema_unknown"
		}
		logging.WarnWithContext(logger, "log content could not be transformed", reason,
			logging.Error(err),
			logging.String("family", family.String()),
			logging.String(logging.FieldErrorHint, "inspect the log file; the events file keeps its previous content"),
			logging.String(logging.FieldImpact, "no onsets written for this scan"),
		)
		return Result{Family: family, Skipped: reason}, nil
	}

	data, err := table.Encode()
	if err != nil {
		return Result{Family: family}, services.Wrap(services.ErrValidation, "onsets", "encode", eventsPath, err)
	}
	if w.unlocker != nil {
		if err := w.unlocker.Unlock(ctx, eventsPath); err != nil {
			return Result{Family: family}, err
		}
	}
	if err := fileutil.WriteFileAtomic(eventsPath, data, 0o644); err != nil {
		return Result{Family: family}, services.Wrap(services.ErrExternalTool, "onsets", "write", eventsPath, err)
	}
	logger.Info("events file written",
		logging.String("family", family.String()),
		logging.Int("rows", len(table.Rows)),
	)
	return Result{Written: true, Family: family, Rows: len(table.Rows)}, nil
}
