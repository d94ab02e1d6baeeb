package matching

import (
	"context"
	"fmt"
	"log/slog"

	"eventsync/internal/logging"
	"eventsync/internal/lookup"
)

type strategyAttempt struct {
	Name    string
	Reason  string
	Address lookup.Address
}

func buildStrategyAttempts(addr lookup.Address) []strategyAttempt {
	attempts := []strategyAttempt{{
		Name:    "strict",
		Reason:  "run_addressing",
		Address: addr,
	}}
	if addr.Run != 0 {
		attempts = append(attempts, strategyAttempt{
			Name:    "degraded",
			Reason:  "run_numbers_untrusted",
			Address: addr.WithRun(0),
		})
	}
	return attempts
}

// Matcher applies the strict-then-degraded strategy and logs its decisions.
type Matcher struct {
	logger *slog.Logger
}

// NewMatcher returns a matcher that logs through logger.
func NewMatcher(logger *slog.Logger) *Matcher {
	return &Matcher{logger: logging.NewComponentLogger(logger, "matching")}
}

// Resolve matches one bucket. A recoverable failure of the strict attempt is
// retried exactly once with the run number dropped; if that retry fails too
// the result is a Fatal error with ReasonUnresolved wrapping the retry's
// failure. Fatal errors of the strict attempt are returned unchanged.
func (m *Matcher) Resolve(ctx context.Context, ix *lookup.Indexes, addr lookup.Address, times AcqTimes) (Outcome, error) {
	logger := logging.WithBucket(m.logger, addr.Subject, addr.Session, addr.Task, addr.Run)
	attempts := buildStrategyAttempts(addr)

	var previous *Error
	for i, attempt := range attempts {
		if err := ctx.Err(); err != nil {
			return Outcome{Address: addr}, err
		}
		out, err := Match(ix, attempt.Address, times)
		out.Attempt = attempt.Name
		out.Degraded = i > 0
		if err == nil {
			out.Address = addr
			m.logOutcome(logger, attempt, out)
			return out, nil
		}

		merr, ok := AsError(err)
		if !ok {
			return out, err
		}
		if previous != nil {
			escalated := newError(Fatal, ReasonUnresolved, addr, merr.Scans, merr.Logs)
			escalated.Day = merr.Day
			escalated.Err = merr
			return out, escalated
		}
		if merr.Kind == Fatal || i == len(attempts)-1 {
			return out, merr
		}

		previous = merr
		next := attempts[i+1]
		attrs := append(logging.DecisionAttrs("match_strategy", next.Name, string(merr.Reason)),
			logging.String("next_attempt", next.Name),
			logging.Strings("scans", merr.Scans),
			logging.Strings("logs", merr.Logs),
			logging.String(logging.FieldErrorHint, "check numbered runs for a discarded or restarted run"),
			logging.String(logging.FieldImpact, "run numbers ignored; pairing by acquisition time for the whole task"),
		)
		logging.WarnWithContext(logger, "strict match failed, retrying without run numbers", "match_degraded", attrs...)
	}
	return Outcome{Address: addr}, fmt.Errorf("no strategy attempts for %+v", addr)
}

func (m *Matcher) logOutcome(logger *slog.Logger, attempt strategyAttempt, out Outcome) {
	if out.Gap {
		attrs := append(logging.DecisionAttrs("log_gap", "skipped", "no logs for task"),
			logging.Strings("scans", out.Scans),
			logging.String(logging.FieldErrorHint, "confirm the task was run without a presentation log"),
			logging.String(logging.FieldImpact, "events files for this task keep their placeholder content"),
		)
		logging.WarnWithContext(logger, "no log files for task", "log_gap", attrs...)
		return
	}
	attrs := append(logging.DecisionAttrs("match_strategy", "matched", attempt.Reason),
		logging.String("attempt", attempt.Name),
		logging.Int("pairs", len(out.Pairs)),
	)
	logger.Info("bucket matched", logging.Args(attrs...)...)
}
