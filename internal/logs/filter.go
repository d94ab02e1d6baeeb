package logs

import (
	"encoding/json"
	"strings"

	"eventsync/internal/logging"
)

// Filter keeps lines of one run, subject or level. Zero fields match
// everything.
type Filter struct {
	RunID   string
	Subject string
	Level   string
}

func (f Filter) empty() bool {
	return f.RunID == "" && f.Subject == "" && f.Level == ""
}

// Match reports whether line passes the filter. JSON lines are decoded;
// console lines are matched on their rendered prefix and key=value pairs.
func (f Filter) Match(line string) bool {
	if f.empty() {
		return true
	}
	if strings.HasPrefix(strings.TrimSpace(line), "{") {
		var fields map[string]any
		if err := json.Unmarshal([]byte(line), &fields); err == nil {
			return f.matchJSON(fields)
		}
	}
	return f.matchConsole(line)
}

func (f Filter) matchJSON(fields map[string]any) bool {
	value := func(key string) string {
		s, _ := fields[key].(string)
		return s
	}
	if f.RunID != "" && value(logging.FieldRunID) != f.RunID {
		return false
	}
	if f.Subject != "" && !strings.EqualFold(value(logging.FieldSubject), f.Subject) {
		return false
	}
	if f.Level != "" && !strings.EqualFold(value("level"), f.Level) {
		return false
	}
	return true
}

func (f Filter) matchConsole(line string) bool {
	if f.RunID != "" && !strings.Contains(line, logging.FieldRunID+"="+f.RunID) {
		return false
	}
	if f.Subject != "" {
		prefix := "[sub-" + f.Subject
		idx := strings.Index(line, prefix)
		if idx < 0 {
			return false
		}
		rest := line[idx+len(prefix):]
		if rest == "" || (rest[0] != ' ' && rest[0] != ']') {
			return false
		}
	}
	if f.Level != "" {
		fields := strings.Fields(line)
		if len(fields) < 2 || !strings.EqualFold(fields[1], f.Level) {
			return false
		}
	}
	return true
}
