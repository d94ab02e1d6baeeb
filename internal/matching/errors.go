package matching

import (
	"errors"
	"fmt"
	"strings"

	"eventsync/internal/lookup"
)

// Kind tags a matching error as retryable or terminal.
type Kind int

const (
	// Recoverable errors are retried once with run numbering ignored.
	Recoverable Kind = iota + 1
	// Fatal errors need manual resolution.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Recoverable:
		return "recoverable"
	case Fatal:
		return "manual resolution required"
	default:
		return "unknown"
	}
}

// Reason names the condition behind an Error.
type Reason string

const (
	ReasonRunMissing    Reason = "run_missing"
	ReasonTaskMissing   Reason = "task_missing"
	ReasonCountMismatch Reason = "count_mismatch"
	ReasonDayMismatch   Reason = "day_mismatch"
	ReasonNoScans       Reason = "no_scans"
	ReasonMissingTime   Reason = "missing_timestamp"
	ReasonUnresolved    Reason = "unresolved_after_retry"
)

// Error describes a bucket that could not be paired. Scans and Logs list
// every candidate on each side so an operator can see what is off.
type Error struct {
	Kind    Kind
	Reason  Reason
	Address lookup.Address
	Day     string
	Scans   []string
	Logs    []string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s): sub-%s ses-%s task-%s run-%d",
		e.Reason, e.Kind, e.Address.Subject, e.Address.Session, e.Address.Task, e.Address.Run)
	if e.Day != "" {
		fmt.Fprintf(&b, " day %s", e.Day)
	}
	fmt.Fprintf(&b, ": %d scan(s) %v, %d log(s) %v", len(e.Scans), e.Scans, len(e.Logs), e.Logs)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError extracts the *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var merr *Error
	if errors.As(err, &merr) {
		return merr, true
	}
	return nil, false
}

// IsRecoverable reports whether err is a matching error worth a degraded retry.
func IsRecoverable(err error) bool {
	merr, ok := AsError(err)
	return ok && merr.Kind == Recoverable
}

// IsManual reports whether err is a matching error that needs an operator.
func IsManual(err error) bool {
	merr, ok := AsError(err)
	return ok && merr.Kind == Fatal
}

func newError(kind Kind, reason Reason, addr lookup.Address, scans, logs []string) *Error {
	return &Error{
		Kind:    kind,
		Reason:  reason,
		Address: addr,
		Scans:   append([]string(nil), scans...),
		Logs:    append([]string(nil), logs...),
	}
}

func errScanNotInManifest(scan string) error {
	return fmt.Errorf("scan %s has no manifest row", scan)
}

func errLogWithoutTime(name string) error {
	return fmt.Errorf("log %s has no creation time in its name", name)
}
