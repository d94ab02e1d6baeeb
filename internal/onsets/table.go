package onsets

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	// ErrEmptyLog means the log has a header but no rows, or no content at all.
	ErrEmptyLog = errors.New("log has no rows")
	// ErrUnknownSchema means no supported column layout was found.
	ErrUnknownSchema = errors.New("unrecognized log columns")
	// ErrMalformed means a cell could not be read as the value its column needs.
	ErrMalformed = errors.New("malformed log content")
)

// Table is a canonical events table. Values are kept as text so columns
// copied from the log keep their original spelling.
type Table struct {
	Header []string
	Rows   [][]string
}

// Encode renders the table as tab-separated text.
func (t *Table) Encode() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = '\t'
	if err := w.Write(t.Header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Delimiter returns ',' for .csv logs and tab for everything else.
func Delimiter(path string) rune {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return ','
	}
	return '\t'
}

type logTable struct {
	columns map[string]int
	rows    [][]string
}

func readLog(r io.Reader, delim rune) (*logTable, error) {
	reader := csv.NewReader(r)
	reader.Comma = delim
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(records) == 0 {
		return nil, ErrEmptyLog
	}
	lt := &logTable{columns: make(map[string]int, len(records[0]))}
	for i, name := range records[0] {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := lt.columns[name]; !dup {
			lt.columns[name] = i
		}
	}
	for _, row := range records[1:] {
		if isBlank(row) {
			continue
		}
		lt.rows = append(lt.rows, row)
	}
	if len(lt.rows) == 0 {
		return nil, ErrEmptyLog
	}
	return lt, nil
}

func (lt *logTable) has(names ...string) bool {
	for _, name := range names {
		if _, ok := lt.columns[name]; !ok {
			return false
		}
	}
	return true
}

func (lt *logTable) value(row []string, name string) string {
	idx, ok := lt.columns[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func (lt *logTable) float(row []string, name string) (float64, error) {
	raw := lt.value(row, name)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: column %s value %q", ErrMalformed, name, raw)
	}
	return v, nil
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// round2 rounds half to even at two decimals.
func round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}

// formatFloat prints the shortest representation, keeping a ".0" on whole
// numbers so onset columns stay visibly floating point.
func formatFloat(v float64) string {
	if v == 0 {
		v = 0 // drops the sign of -0
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}
