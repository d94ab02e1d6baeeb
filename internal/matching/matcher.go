package matching

import (
	"eventsync/internal/behavlog"
	"eventsync/internal/bids"
	"eventsync/internal/lookup"
)

// AcqTimes supplies the acq_time manifest value of a scan, keyed by the
// manifest filename (func/..._bold.nii.gz).
type AcqTimes interface {
	AcqTime(scan string) (string, bool)
}

// Pair is one resolved scan/log mapping.
type Pair struct {
	// Scan is the manifest filename of the scan.
	Scan string
	// Events is the events file that receives the transformed log.
	Events string
	// Log is the path of the behavioral log.
	Log string
}

// Outcome is the result of matching one bucket.
type Outcome struct {
	Address lookup.Address
	Pairs   []Pair
	// Gap is set when the log side has nothing for the task. It is not an
	// error; some tasks legitimately have no companion log.
	Gap bool
	// Degraded is set when the pairs came from the run-0 retry.
	Degraded bool
	// Attempt names the strategy attempt that produced the outcome.
	Attempt string
	Scans   []string
	Logs    []string
}

// Match performs one strict attempt for addr. Run 0 pulls every run of the
// task from both indexes; any other run must exist on both sides.
func Match(ix *lookup.Indexes, addr lookup.Address, times AcqTimes) (Outcome, error) {
	out := Outcome{Address: addr}
	logAddr := ix.LogAddress(addr)

	var scans []bids.EventFile
	var logs []behavlog.Record
	if addr.Run == 0 {
		scans = ix.Events.Flatten(addr)
		out.Scans = scanNames(scans)
		if !ix.Logs.HasTask(logAddr) {
			out.Gap = true
			return out, nil
		}
		logs = ix.Logs.Flatten(logAddr)
		out.Logs = logPaths(logs)
	} else {
		scans, _ = ix.Events.Get(addr)
		out.Scans = scanNames(scans)
		if !ix.Logs.HasTask(logAddr) {
			return out, newError(Fatal, ReasonTaskMissing, addr, out.Scans, nil)
		}
		var ok bool
		logs, ok = ix.Logs.Get(logAddr)
		if !ok {
			out.Logs = logPaths(ix.Logs.Flatten(logAddr))
			return out, newError(Recoverable, ReasonRunMissing, addr, out.Scans, out.Logs)
		}
		out.Logs = logPaths(logs)
	}

	if len(scans) == 0 {
		return out, newError(Fatal, ReasonNoScans, addr, nil, out.Logs)
	}

	if len(scans) == 1 && len(logs) == 1 {
		out.Pairs = []Pair{newPair(scans[0], logs[0])}
		return out, nil
	}

	pairs, err := pairByDay(addr, scans, logs, times)
	if err != nil {
		return out, err
	}
	out.Pairs = pairs
	return out, nil
}

func pairByDay(addr lookup.Address, scans []bids.EventFile, logs []behavlog.Record, times AcqTimes) ([]Pair, error) {
	scanNamesList := scanNames(scans)
	logPathsList := logPaths(logs)

	if len(scans) != len(logs) {
		kind := Recoverable
		if addr.Run == 0 {
			kind = Fatal
		}
		return nil, newError(kind, ReasonCountMismatch, addr, scanNamesList, logPathsList)
	}

	byScan := make(map[string]bids.EventFile, len(scans))
	scanCandidates := make([]Candidate, 0, len(scans))
	for _, file := range scans {
		name := file.ScanName()
		raw, ok := times.AcqTime(name)
		if !ok {
			merr := newError(Fatal, ReasonMissingTime, addr, scanNamesList, logPathsList)
			merr.Err = errScanNotInManifest(name)
			return nil, merr
		}
		acq, err := bids.ParseAcqTime(raw)
		if err != nil {
			merr := newError(Fatal, ReasonMissingTime, addr, scanNamesList, logPathsList)
			merr.Err = err
			return nil, merr
		}
		byScan[name] = file
		scanCandidates = append(scanCandidates, Candidate{Key: name, Time: acq})
	}

	byLog := make(map[string]behavlog.Record, len(logs))
	logCandidates := make([]Candidate, 0, len(logs))
	for _, rec := range logs {
		if !rec.HasTime {
			merr := newError(Fatal, ReasonMissingTime, addr, scanNamesList, logPathsList)
			merr.Err = errLogWithoutTime(rec.Name)
			return nil, merr
		}
		byLog[rec.Path] = rec
		logCandidates = append(logCandidates, Candidate{Key: rec.Path, Time: rec.Created})
	}

	dayPairs, err := ResolveDays(scanCandidates, logCandidates)
	if err != nil {
		merr, _ := AsError(err)
		merr.Address = addr
		if merr.Kind == 0 {
			merr.Kind = Fatal
		}
		return nil, merr
	}

	pairs := make([]Pair, 0, len(dayPairs))
	for _, dp := range dayPairs {
		pairs = append(pairs, newPair(byScan[dp.Scan.Key], byLog[dp.Log.Key]))
	}
	return pairs, nil
}

func newPair(file bids.EventFile, rec behavlog.Record) Pair {
	return Pair{Scan: file.ScanName(), Events: file.Path, Log: rec.Path}
}

func scanNames(files []bids.EventFile) []string {
	out := make([]string, len(files))
	for i, file := range files {
		out[i] = file.ScanName()
	}
	return out
}

func logPaths(records []behavlog.Record) []string {
	out := make([]string, len(records))
	for i, rec := range records {
		out[i] = rec.Path
	}
	return out
}
