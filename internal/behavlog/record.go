package behavlog

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Record is one behavioral log addressed by its filename.
type Record struct {
	Path    string
	Name    string
	Subject string
	Session string
	Task    string
	Run     int
	// Created is the minute-resolution time encoded in the filename. It is
	// the zero time when HasTime is false.
	Created time.Time
	HasTime bool
}

// Parse decodes the address tokens of a log filename. A name whose trailing
// date/time tokens cannot be read still parses, with HasTime false; the
// matcher decides whether the missing time matters.
func Parse(path string) (Record, error) {
	name := filepath.Base(path)
	stem := name
	if idx := strings.Index(stem, "."); idx >= 0 {
		stem = stem[:idx]
	}
	tokens := strings.Split(stem, "_")
	if len(tokens) < 3 {
		return Record{}, fmt.Errorf("log name %q: expected sub, ses and task tokens", name)
	}
	subject, ok := entityValue(tokens[0], "sub")
	if !ok {
		return Record{}, fmt.Errorf("log name %q: first token %q is not sub-<label>", name, tokens[0])
	}
	session, ok := entityValue(tokens[1], "ses")
	if !ok {
		return Record{}, fmt.Errorf("log name %q: second token %q is not ses-<label>", name, tokens[1])
	}

	rec := Record{Path: path, Name: name, Subject: subject, Session: session}
	taskToken := tokens[2]
	if strings.Contains(tokens[2], "run-") {
		run, err := strconv.Atoi(strings.ReplaceAll(tokens[2], "run-", ""))
		if err != nil {
			return Record{}, fmt.Errorf("log name %q: run token %q is not a number", name, tokens[2])
		}
		if len(tokens) < 4 {
			return Record{}, fmt.Errorf("log name %q: missing task after run token", name)
		}
		rec.Run = run
		taskToken = tokens[3]
	}
	rec.Task = TaskName(taskToken)
	if rec.Task == "" {
		return Record{}, fmt.Errorf("log name %q: empty task", name)
	}

	if created, err := CreationTime(tokens); err == nil {
		rec.Created = created
		rec.HasTime = true
	}
	return rec, nil
}

// TaskName normalizes a task token the way the events side spells tasks:
// an optional task- prefix is dropped and hyphens are removed.
func TaskName(token string) string {
	token = strings.TrimPrefix(token, "task-")
	return strings.ReplaceAll(token, "-", "")
}

// CreationTime reads YYYY, MM, DD and HHMM from the last four stem tokens,
// skipping a trailing "events" token. The result is in UTC with zero seconds.
func CreationTime(tokens []string) (time.Time, error) {
	offset := 0
	if len(tokens) > 0 && tokens[len(tokens)-1] == "events" {
		offset = 1
	}
	if len(tokens) < 4+offset {
		return time.Time{}, fmt.Errorf("too few tokens for a creation time")
	}
	end := len(tokens) - offset
	year, month, day, clock := tokens[end-4], tokens[end-3], tokens[end-2], tokens[end-1]
	if len(clock) < 4 {
		return time.Time{}, fmt.Errorf("clock token %q is not HHMM", clock)
	}
	value := fmt.Sprintf("%s-%s-%sT%s:%s", year, month, day, clock[0:2], clock[2:4])
	ts, err := time.Parse("2006-01-02T15:04", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("creation time %q: %w", value, err)
	}
	return ts, nil
}

func entityValue(token, key string) (string, bool) {
	k, v, ok := strings.Cut(token, "-")
	if !ok || k != key || v == "" {
		return "", false
	}
	return v, true
}
