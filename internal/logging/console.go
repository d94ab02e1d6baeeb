package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleHandler renders
//
//	2026-03-01T10:00:00Z INFO matching: [sub-01 ses-02 task-rest run-1] msg key=value
//
// pulling component and bucket keys out of the attribute list.
type consoleHandler struct {
	mu         *sync.Mutex
	w          io.Writer
	level      slog.Level
	withSource bool
	attrs      []slog.Attr
	groups     []string
}

func newConsoleHandler(w io.Writer, level slog.Level, withSource bool) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, w: w, level: level, withSource: withSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

type field struct {
	key   string
	value slog.Value
}

// bucket holds the attributes rendered as the line prefix.
type bucket struct {
	component, subject, session, task, run string
}

func (b *bucket) take(f field) bool {
	switch f.key {
	case FieldComponent:
		if b.component == "" {
			b.component = plainString(f.value)
		}
	case FieldSubject:
		b.subject = plainString(f.value)
	case FieldSession:
		b.session = plainString(f.value)
	case FieldTask:
		b.task = plainString(f.value)
	case FieldRun:
		b.run = plainString(f.value)
	default:
		return false
	}
	return true
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	var fields []field
	collect(&fields, h.groups, h.attrs...)
	record.Attrs(func(attr slog.Attr) bool {
		collect(&fields, h.groups, attr)
		return true
	})

	var b bucket
	rest := fields[:0]
	for _, f := range fields {
		if !b.take(f) {
			rest = append(rest, f)
		}
	}

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	var buf bytes.Buffer
	buf.WriteString(ts.UTC().Format(time.RFC3339))
	buf.WriteByte(' ')
	buf.WriteString(levelLabel(record.Level))
	buf.WriteByte(' ')
	if b.component != "" {
		buf.WriteString(b.component)
		buf.WriteString(": ")
	}
	if prefix := FormatSubject(b.subject, b.session, b.task, b.run); prefix != "" {
		fmt.Fprintf(&buf, "[%s] ", prefix)
	}
	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	buf.WriteString(msg)
	if h.withSource {
		if src := record.Source(); src != nil {
			fmt.Fprintf(&buf, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	for _, f := range rest {
		buf.WriteByte(' ')
		buf.WriteString(f.key)
		buf.WriteByte('=')
		buf.WriteString(quotedValue(f.value))
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

// collect flattens attrs, joining group names with dots.
func collect(dst *[]field, groups []string, attrs ...slog.Attr) {
	for _, attr := range attrs {
		if attr.Equal(slog.Attr{}) {
			continue
		}
		value := attr.Value.Resolve()
		if value.Kind() == slog.KindGroup {
			inner := groups
			if attr.Key != "" {
				inner = append(append([]string(nil), groups...), attr.Key)
			}
			collect(dst, inner, value.Group()...)
			continue
		}
		key := attr.Key
		if len(groups) > 0 {
			key = strings.Join(append(append([]string(nil), groups...), attr.Key), ".")
		}
		*dst = append(*dst, field{key: key, value: value})
	}
}

func plainString(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	default:
		return v.String()
	}
}

func quotedValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindFloat64:
		s = strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindTime:
		s = v.Time().UTC().Format(time.RFC3339)
	default:
		s = plainString(v)
	}
	if needsQuotes(s) {
		return strconv.Quote(s)
	}
	return s
}

func needsQuotes(s string) bool {
	if s == "" {
		return true
	}
	return strings.IndexFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) >= 0
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
