package matching

import (
	"sort"
	"time"
)

const dayLayout = "2006-01-02"

// Candidate is one timestamped record on either side of a bucket.
type Candidate struct {
	Key  string
	Time time.Time
}

// DayPair is one scan/log pairing produced by ResolveDays.
type DayPair struct {
	Day  string
	Scan Candidate
	Log  Candidate
}

// ResolveDays pairs scans with logs by timestamp rank within each calendar
// day. Both sides must hold the same number of candidates overall
// (ReasonCountMismatch) and on every day present on either side
// (ReasonDayMismatch). The returned error has no Address or Kind for count
// mismatches; the caller decides whether that is retryable. Day mismatches
// are always Fatal.
func ResolveDays(scans, logs []Candidate) ([]DayPair, error) {
	if len(scans) != len(logs) {
		return nil, &Error{Reason: ReasonCountMismatch, Scans: keys(scans), Logs: keys(logs)}
	}

	scanDays := byDay(scans)
	logDays := byDay(logs)
	days := unionDays(scanDays, logDays)

	pairs := make([]DayPair, 0, len(scans))
	for _, day := range days {
		dayScans := scanDays[day]
		dayLogs := logDays[day]
		if len(dayScans) != len(dayLogs) {
			return nil, &Error{
				Kind:   Fatal,
				Reason: ReasonDayMismatch,
				Day:    day,
				Scans:  keys(scans),
				Logs:   keys(logs),
			}
		}
		sortCandidates(dayScans)
		sortCandidates(dayLogs)
		for i := range dayScans {
			pairs = append(pairs, DayPair{Day: day, Scan: dayScans[i], Log: dayLogs[i]})
		}
	}
	return pairs, nil
}

// Day returns the calendar day of t as used for bucketing.
func Day(t time.Time) string {
	return t.Format(dayLayout)
}

func byDay(candidates []Candidate) map[string][]Candidate {
	out := make(map[string][]Candidate)
	for _, c := range candidates {
		day := Day(c.Time)
		out[day] = append(out[day], c)
	}
	return out
}

func unionDays(a, b map[string][]Candidate) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var days []string
	for _, m := range []map[string][]Candidate{a, b} {
		for day := range m {
			if _, ok := seen[day]; ok {
				continue
			}
			seen[day] = struct{}{}
			days = append(days, day)
		}
	}
	sort.Strings(days)
	return days
}

func sortCandidates(list []Candidate) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].Time.Equal(list[j].Time) {
			return list[i].Time.Before(list[j].Time)
		}
		return list[i].Key < list[j].Key
	})
}

func keys(candidates []Candidate) []string {
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.Key
	}
	return out
}
