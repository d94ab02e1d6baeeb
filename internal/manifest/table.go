package manifest

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"eventsync/internal/fileutil"
	"eventsync/internal/services"
)

const (
	ColumnFilename = "filename"
	ColumnAcqTime  = "acq_time"
	ColumnLog      = "filename_log"
)

// Unlocker grants write access to a tracked file before it is modified.
type Unlocker interface {
	Unlock(ctx context.Context, path string) error
}

// Entry is one scan row and the log mapped onto it.
type Entry struct {
	Scan string
	Log  string
}

// Table is an in-memory scans manifest. Rows keep their on-disk order.
type Table struct {
	Path   string
	Header []string
	Rows   [][]string
}

// Load reads a tab-separated manifest. It must have a filename column.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "manifest", "load", path, err)
		}
		return nil, services.Wrap(services.ErrValidation, "manifest", "load", path, err)
	}
	table, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "manifest", "parse", path, err)
	}
	table.Path = path
	return table, nil
}

// Parse decodes manifest content.
func Parse(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty manifest")
	}
	table := &Table{Header: records[0], Rows: records[1:]}
	for i := range table.Header {
		table.Header[i] = strings.TrimSpace(table.Header[i])
	}
	if table.Column(ColumnFilename) < 0 {
		return nil, fmt.Errorf("manifest has no %s column", ColumnFilename)
	}
	return table, nil
}

// Column returns the index of name in the header, or -1.
func (t *Table) Column(name string) int {
	for i, col := range t.Header {
		if col == name {
			return i
		}
	}
	return -1
}

// EnsureColumn appends an empty column when name is absent and returns its index.
func (t *Table) EnsureColumn(name string) int {
	if idx := t.Column(name); idx >= 0 {
		return idx
	}
	t.Header = append(t.Header, name)
	return len(t.Header) - 1
}

func (t *Table) cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// AcqTime returns the acq_time value of the row whose filename is scan.
func (t *Table) AcqTime(scan string) (string, bool) {
	fileIdx := t.Column(ColumnFilename)
	acqIdx := t.Column(ColumnAcqTime)
	if acqIdx < 0 {
		return "", false
	}
	for _, row := range t.Rows {
		if t.cell(row, fileIdx) == scan {
			return t.cell(row, acqIdx), true
		}
	}
	return "", false
}

// SetLog writes log into the filename_log cell of every row whose filename
// is scan. It reports whether any row matched.
func (t *Table) SetLog(scan, log string) bool {
	fileIdx := t.Column(ColumnFilename)
	logIdx := t.EnsureColumn(ColumnLog)
	found := false
	for i, row := range t.Rows {
		if t.cell(row, fileIdx) != scan {
			continue
		}
		for len(row) <= logIdx {
			row = append(row, "")
		}
		row[logIdx] = log
		t.Rows[i] = row
		found = true
	}
	return found
}

// Entries lists the rows that carry a log, in row order.
func (t *Table) Entries() []Entry {
	logIdx := t.Column(ColumnLog)
	if logIdx < 0 {
		return nil
	}
	fileIdx := t.Column(ColumnFilename)
	var out []Entry
	for _, row := range t.Rows {
		log := strings.TrimSpace(t.cell(row, logIdx))
		if log == "" {
			continue
		}
		out = append(out, Entry{Scan: t.cell(row, fileIdx), Log: log})
	}
	return out
}

// Encode renders the table as tab-separated text. Short rows are padded to
// the header width.
func (t *Table) Encode() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = '\t'
	if err := w.Write(t.Header); err != nil {
		return nil, err
	}
	for _, row := range t.Rows {
		padded := row
		if len(padded) < len(t.Header) {
			padded = make([]string, len(t.Header))
			copy(padded, row)
		}
		if err := w.Write(padded); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write unlocks the manifest through unlocker and replaces it atomically.
func (t *Table) Write(ctx context.Context, unlocker Unlocker) error {
	data, err := t.Encode()
	if err != nil {
		return services.Wrap(services.ErrValidation, "manifest", "encode", t.Path, err)
	}
	if unlocker != nil {
		if err := unlocker.Unlock(ctx, t.Path); err != nil {
			return err
		}
	}
	if err := fileutil.WriteFileAtomic(t.Path, data, 0o644); err != nil {
		return services.Wrap(services.ErrExternalTool, "manifest", "write", t.Path, err)
	}
	return nil
}
