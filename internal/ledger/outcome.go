package ledger

import (
	"errors"

	"eventsync/internal/matching"
	"eventsync/internal/services"
)

// OutcomeFor classifies a bucket failure. Matching errors and errors an
// operator has to fix (services.NeedsOperator) become manual; tool
// failures and timeouts are recorded as failed. The returned reason is the
// matching reason or the service marker name.
func OutcomeFor(err error) (Outcome, string) {
	if err == nil {
		return OutcomeMatched, ""
	}
	if merr, ok := matching.AsError(err); ok {
		if merr.Kind == matching.Fatal || merr.Kind == matching.Recoverable {
			return OutcomeManual, string(merr.Reason)
		}
		return OutcomeFailed, string(merr.Reason)
	}
	outcome := OutcomeFailed
	if services.NeedsOperator(err) {
		outcome = OutcomeManual
	}
	return outcome, markerReason(err)
}

func markerReason(err error) string {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return "not_found"
	case errors.Is(err, services.ErrValidation):
		return "validation"
	case errors.Is(err, services.ErrConfiguration):
		return "configuration"
	case errors.Is(err, services.ErrExternalTool):
		return "external_tool"
	case errors.Is(err, services.ErrTimeout):
		return "timeout"
	}
	return "error"
}

// OutcomeOf classifies a successful match.
func OutcomeOf(out matching.Outcome) Outcome {
	switch {
	case out.Gap:
		return OutcomeGap
	case out.Degraded:
		return OutcomeDegraded
	}
	return OutcomeMatched
}
