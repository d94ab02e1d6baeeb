// Package matching pairs each scan with the behavioral log recorded during
// the same run.
//
// Match performs one strict attempt for a (session, subject, task, run)
// address: a single candidate on each side pairs directly, anything else is
// handed to ResolveDays, which partitions both sides by calendar day and
// pairs by timestamp rank within each day. Matcher.Resolve wraps Match in a
// two-step strategy: the strict attempt, then (for explicitly numbered runs)
// one degraded attempt that ignores run numbers for the whole task.
//
// Failures are reported as *Error values tagged Recoverable or Fatal. A
// Fatal error always needs an operator and carries the full candidate lists
// of both sides. A task with no logs at all is a gap, not an error.
package matching
