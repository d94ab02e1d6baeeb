package lookup

import (
	"strings"

	"eventsync/internal/behavlog"
	"eventsync/internal/bids"
)

// Skipped is a log whose filename could not be addressed.
type Skipped struct {
	Path string
	Err  error
}

// Indexes holds the events-side and log-side indexes of one dataset.
type Indexes struct {
	Events *Index[bids.EventFile]
	Logs   *Index[behavlog.Record]
	// ZeroStrip stores and looks up log sessions without leading zeros,
	// since the presentation software writes ses-2 where the scans say ses-02.
	ZeroStrip bool
	Skipped   []Skipped
}

// LogSession converts an events-side session label into the log-side key.
func (ix *Indexes) LogSession(session string) string {
	return NormalizeSession(session, ix.ZeroStrip)
}

// LogAddress converts an events-side address into the log-side address.
func (ix *Indexes) LogAddress(addr Address) Address {
	addr.Session = ix.LogSession(addr.Session)
	return addr
}

// NormalizeSession strips leading zeros from a session label when enabled.
// An all-zero label becomes "0".
func NormalizeSession(session string, zeroStrip bool) string {
	if !zeroStrip {
		return session
	}
	trimmed := strings.TrimLeft(session, "0")
	if trimmed == "" && session != "" {
		return "0"
	}
	return trimmed
}

// Build indexes events files and log paths. Events files use their trusted
// run number (bids.Entities.NumberedRun); logs use the run token of their
// name. Log subjects are rewritten to the events-side spelling when they
// differ only by case. Logs whose names cannot be parsed are collected in
// Skipped rather than failing the build.
func Build(events []bids.EventFile, logPaths []string, zeroStrip bool) *Indexes {
	ix := &Indexes{
		Events:    NewIndex[bids.EventFile](),
		Logs:      NewIndex[behavlog.Record](),
		ZeroStrip: zeroStrip,
	}

	type subjectKey struct{ session, folded string }
	spelling := make(map[subjectKey]string)
	for _, file := range events {
		addr := Address{
			Session: file.Session,
			Subject: file.Subject,
			Task:    file.Task,
			Run:     file.NumberedRun(),
		}
		ix.Events.Add(addr, file)
		key := subjectKey{session: ix.LogSession(file.Session), folded: bids.FoldLabel(file.Subject)}
		if _, ok := spelling[key]; !ok {
			spelling[key] = file.Subject
		}
	}

	for _, path := range logPaths {
		rec, err := behavlog.Parse(path)
		if err != nil {
			ix.Skipped = append(ix.Skipped, Skipped{Path: path, Err: err})
			continue
		}
		session := ix.LogSession(rec.Session)
		if subject, ok := spelling[subjectKey{session: session, folded: bids.FoldLabel(rec.Subject)}]; ok {
			rec.Subject = subject
		}
		ix.Logs.Add(Address{Session: session, Subject: rec.Subject, Task: rec.Task, Run: rec.Run}, rec)
	}
	return ix
}
