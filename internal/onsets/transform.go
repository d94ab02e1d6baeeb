package onsets

import (
	"bytes"
	"fmt"
	"os"
	"strings"
)

// Family identifies a log layout.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyVerbatim
	FamilyTimed
	FamilyPriming
)

func (f Family) String() string {
	switch f {
	case FamilyVerbatim:
		return "verbatim"
	case FamilyTimed:
		return "timed"
	case FamilyPriming:
		return "priming"
	default:
		return "unknown"
	}
}

// TransformFile reads the log at path and converts it. taskHint is the task
// name of the events file; a task mentioning "priming" selects the priming
// layout even when the header alone would not.
func TransformFile(path, taskHint string) (*Table, Family, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, FamilyUnknown, err
	}
	return Transform(data, Delimiter(path), taskHint)
}

// Transform converts raw log content.
func Transform(data []byte, delim rune, taskHint string) (*Table, Family, error) {
	lt, err := readLog(bytes.NewReader(data), delim)
	if err != nil {
		return nil, FamilyUnknown, err
	}
	family := detectFamily(lt, taskHint)
	var table *Table
	switch family {
	case FamilyPriming:
		table, err = primingEvents(lt)
	case FamilyVerbatim, FamilyTimed:
		table, err = timedEvents(lt)
	default:
		err = fmt.Errorf("%w: have %s", ErrUnknownSchema, strings.Join(lt.names(), ", "))
	}
	if err != nil {
		return nil, family, err
	}
	return table, family, nil
}

func detectFamily(lt *logTable, taskHint string) Family {
	timed := lt.has("t_start", "t_stop")
	switch {
	case lt.has(colTargetStarted, colTargetStopped, colModPrime, colModTarget, colNumPrime, colNumTarget):
		return FamilyPriming
	case strings.Contains(strings.ToLower(taskHint), "priming"):
		return FamilyPriming
	case lt.has("onset", "duration", "trial_type") && !timed:
		return FamilyVerbatim
	case (lt.has("onset") || lt.has("t_start")) && (lt.has("duration") || timed):
		return FamilyTimed
	default:
		return FamilyUnknown
	}
}

func (lt *logTable) names() []string {
	out := make([]string, len(lt.columns))
	for name, idx := range lt.columns {
		if idx < len(out) {
			out[idx] = name
		}
	}
	return out
}

// timedEvents covers both the verbatim and the t_start/t_stop layouts:
// each output column falls back from the explicit column to the derived one.
func timedEvents(lt *logTable) (*Table, error) {
	trialType, err := trialTypeSource(lt)
	if err != nil {
		return nil, err
	}
	table := &Table{Header: []string{"onset", "duration", "trial_type"}}
	for _, row := range lt.rows {
		tt := trialType(row)
		if strings.Contains(tt, "pause") {
			continue
		}
		onset, err := onsetValue(lt, row)
		if err != nil {
			return nil, err
		}
		duration, err := durationValue(lt, row)
		if err != nil {
			return nil, err
		}
		table.Rows = append(table.Rows, []string{onset, duration, tt})
	}
	return table, nil
}

func onsetValue(lt *logTable, row []string) (string, error) {
	if lt.has("onset") {
		return lt.value(row, "onset"), nil
	}
	start, err := lt.float(row, "t_start")
	if err != nil {
		return "", err
	}
	return formatFloat(round2(start)), nil
}

func durationValue(lt *logTable, row []string) (string, error) {
	if lt.has("t_start", "t_stop") {
		start, err := lt.float(row, "t_start")
		if err != nil {
			return "", err
		}
		stop, err := lt.float(row, "t_stop")
		if err != nil {
			return "", err
		}
		return formatFloat(round2(stop - start)), nil
	}
	if lt.has("duration") {
		return lt.value(row, "duration"), nil
	}
	return "", fmt.Errorf("%w: no duration or t_start/t_stop columns", ErrUnknownSchema)
}

func trialTypeSource(lt *logTable) (func([]string) string, error) {
	switch {
	case lt.has("trial_type"):
		return func(row []string) string { return lt.value(row, "trial_type") }, nil
	case lt.has("num", "mod"):
		return func(row []string) string {
			return lt.value(row, "num") + "_" + stripModality(lt.value(row, "mod"))
		}, nil
	case lt.has("condition", "truth"):
		return func(row []string) string {
			return lt.value(row, "condition") + "_" + lt.value(row, "truth")
		}, nil
	default:
		return nil, fmt.Errorf("%w: no trial_type, num/mod or condition/truth columns", ErrUnknownSchema)
	}
}

var modalityStripper = strings.NewReplacer(" ", "", "'", "")

func stripModality(mod string) string {
	return modalityStripper.Replace(mod)
}
