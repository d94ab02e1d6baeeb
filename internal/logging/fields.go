package logging

import "log/slog"

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID is the standardized key for the reconciliation run identifier.
	FieldRunID = "run_id"
	// FieldSubject is the standardized key for subject labels.
	FieldSubject = "subject"
	// FieldSession is the standardized key for session labels.
	FieldSession = "session"
	// FieldTask is the standardized key for task names.
	FieldTask = "task"
	// FieldRun is the standardized key for run numbers (0 = sentinel).
	FieldRun = "run"
	// FieldEventType classifies warnings and errors for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to look at next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldDecisionType names the decision being logged.
	FieldDecisionType = "decision_type"
)

// BucketAttrs returns the attributes identifying one subject/session/task/run bucket.
func BucketAttrs(subject, session, task string, run int) []Attr {
	return []Attr{
		String(FieldSubject, subject),
		String(FieldSession, session),
		String(FieldTask, task),
		Int(FieldRun, run),
	}
}

// WithBucket returns a logger tagged with the bucket address.
func WithBucket(logger *slog.Logger, subject, session, task string, run int) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(Args(BucketAttrs(subject, session, task, run)...)...)
}

// FormatSubject builds the "sub-01 ses-02 task-rest run-1" prefix used in console output.
// Empty parts are skipped; the run is only shown when set.
func FormatSubject(subject, session, task, run string) string {
	var out []byte
	appendPart := func(prefix, value string) {
		if value == "" {
			return
		}
		if len(out) > 0 {
			out = append(out, ' ')
		}
		out = append(out, prefix...)
		out = append(out, value...)
	}
	appendPart("sub-", subject)
	appendPart("ses-", session)
	appendPart("task-", task)
	if run != "" && run != "0" {
		appendPart("run-", run)
	}
	return string(out)
}
