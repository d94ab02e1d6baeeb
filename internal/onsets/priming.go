package onsets

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	colTargetStarted = "target.started"
	colTargetStopped = "target.stopped"
	colModPrime      = "mod_prime"
	colModTarget     = "mod_target"
	colNumPrime      = "num_prime"
	colNumTarget     = "num_target"
	colTrial         = "trial"
)

type primingTrial struct {
	start     float64
	stop      float64
	prime     bool
	modality  string
	hasValues bool
}

// primingEvents drops pause rows, folds rows that share a trial id into one
// trial and emits onset = earliest target start, duration = earliest target
// stop minus that onset. Durations are not rounded.
func primingEvents(lt *logTable) (*Table, error) {
	if !lt.has(colTargetStarted, colTargetStopped, colModPrime, colModTarget, colNumPrime, colNumTarget) {
		return nil, fmt.Errorf("%w: priming log needs %s, %s, %s, %s, %s and %s", ErrUnknownSchema,
			colTargetStarted, colTargetStopped, colModPrime, colModTarget, colNumPrime, colNumTarget)
	}
	grouped := lt.has(colTrial)

	var order []string
	trials := make(map[string]*primingTrial)
	for i, row := range lt.rows {
		if lt.value(row, colModPrime) == "pause" {
			continue
		}
		key := strconv.Itoa(i)
		if grouped {
			key = lt.value(row, colTrial)
		}
		starts, err := parseTimes(lt.value(row, colTargetStarted))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, colTargetStarted, err)
		}
		stops, err := parseTimes(lt.value(row, colTargetStopped))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, colTargetStopped, err)
		}

		trial, ok := trials[key]
		if !ok {
			trial = &primingTrial{
				start:    math.Inf(1),
				stop:     math.Inf(1),
				prime:    sameNumerosity(lt.value(row, colNumPrime), lt.value(row, colNumTarget)),
				modality: lt.value(row, colModPrime) + "_" + lt.value(row, colModTarget),
			}
			trials[key] = trial
			order = append(order, key)
		}
		for _, v := range starts {
			trial.start = math.Min(trial.start, v)
			trial.hasValues = true
		}
		for _, v := range stops {
			trial.stop = math.Min(trial.stop, v)
		}
	}

	table := &Table{Header: []string{"onset", "duration", "trial_type", "modality"}}
	for _, key := range order {
		trial := trials[key]
		if !trial.hasValues || math.IsInf(trial.stop, 1) {
			return nil, fmt.Errorf("%w: trial %s has no target times", ErrMalformed, key)
		}
		trialType := "nonprime"
		if trial.prime {
			trialType = "prime"
		}
		table.Rows = append(table.Rows, []string{
			formatFloat(trial.start),
			formatFloat(trial.stop - trial.start),
			trialType,
			trial.modality,
		})
	}
	return table, nil
}

// parseTimes reads a number or a bracketed list such as "[1.2, 1.5]".
func parseTimes(raw string) ([]float64, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "[") {
		raw = strings.TrimSuffix(strings.TrimPrefix(raw, "["), "]")
	}
	var out []float64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("value %q", part)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty time cell")
	}
	return out, nil
}

func sameNumerosity(a, b string) bool {
	if a == b {
		return true
	}
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	return errA == nil && errB == nil && fa == fb
}
