// Package logging assembles structured slog loggers and formatting helpers used
// across eventsync.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes attribute helpers so matching code tags every line with
// the subject, session, task, and run it is working on. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so new components emit
// data with the same shape as the rest of the tool.
package logging
