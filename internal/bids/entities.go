package bids

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Entities are the key-value pairs encoded in a BIDS filename.
type Entities struct {
	Subject     string
	Session     string
	Task        string
	Acquisition string
	Run         int
	Suffix      string
}

// ParseEntities splits a BIDS filename such as
// sub-01_ses-02_task-rest_acq-dup1_run-2_events.tsv into its entities.
func ParseEntities(name string) (Entities, error) {
	base := filepath.Base(name)
	stem := base
	if idx := strings.Index(stem, "."); idx >= 0 {
		stem = stem[:idx]
	}
	tokens := strings.Split(stem, "_")
	if len(tokens) < 2 {
		return Entities{}, fmt.Errorf("bids name %q: too few entities", base)
	}
	var ent Entities
	ent.Suffix = tokens[len(tokens)-1]
	for _, token := range tokens[:len(tokens)-1] {
		key, value, ok := strings.Cut(token, "-")
		if !ok {
			return Entities{}, fmt.Errorf("bids name %q: malformed entity %q", base, token)
		}
		switch key {
		case "sub":
			ent.Subject = value
		case "ses":
			ent.Session = value
		case "task":
			ent.Task = value
		case "acq":
			ent.Acquisition = value
		case "run":
			run, err := strconv.Atoi(value)
			if err != nil {
				return Entities{}, fmt.Errorf("bids name %q: run %q is not a number", base, value)
			}
			ent.Run = run
		}
	}
	if ent.Subject == "" {
		return Entities{}, fmt.Errorf("bids name %q: missing sub entity", base)
	}
	return ent, nil
}

// NumberedRun reports the run number to trust for matching. Only scans whose
// acquisition label carries the "dup" marker were numbered at acquisition
// time; every other run number is an artifact of conversion and maps to 0.
func (e Entities) NumberedRun() int {
	if e.Run > 0 && strings.Contains(e.Acquisition, "dup") {
		return e.Run
	}
	return 0
}

// ScanName converts an events filename into the manifest filename of its
// scan, relative to the subject/session directory:
// sub-01_ses-02_task-rest_events.tsv -> func/sub-01_ses-02_task-rest_bold.nii.gz.
func ScanName(eventsName string) string {
	name := filepath.ToSlash(eventsName)
	if !strings.Contains(name, "_events") {
		return name
	}
	name = filepath.Base(name)
	idx := strings.LastIndex(name, "_")
	return "func/" + name[:idx] + "_bold.nii.gz"
}

// EventsPath resolves the events file belonging to a manifest scan entry.
func EventsPath(manifestPath, scan string) string {
	full := filepath.Join(filepath.Dir(manifestPath), filepath.FromSlash(scan))
	idx := strings.LastIndex(full, "_")
	if idx < 0 || idx < len(filepath.Dir(full)) {
		return full
	}
	return full[:idx] + "_events.tsv"
}

// ManifestPath returns sub-<s>/ses-<t>/sub-<s>_ses-<t>_scans.tsv under root.
func ManifestPath(root, subject, session string) string {
	return filepath.Join(root, "sub-"+subject, "ses-"+session,
		fmt.Sprintf("sub-%s_ses-%s_scans.tsv", subject, session))
}

// FoldLabel case-folds a subject or session label for comparison. Casers
// carry state, so each call builds its own.
func FoldLabel(label string) string {
	return cases.Fold().String(label)
}

var acqTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// ParseAcqTime parses the acq_time column of a scans manifest
// (2022-04-30T10:17:15.0 and friends). Values without an offset are read as UTC.
func ParseAcqTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "n/a") {
		return time.Time{}, fmt.Errorf("acq_time missing")
	}
	for _, layout := range acqTimeLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("acq_time %q: unrecognized format", value)
}
