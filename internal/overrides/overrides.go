package overrides

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"eventsync/internal/bids"
	"eventsync/internal/logging"
	"eventsync/internal/lookup"
	"eventsync/internal/manifest"
	"eventsync/internal/services"
)

// Pair maps one scan row of a subject/session manifest onto a log.
type Pair struct {
	Subject string `yaml:"subject"`
	Session string `yaml:"session"`
	// Scan is the manifest filename, e.g. func/sub-01_ses-02_task-rest_bold.nii.gz.
	Scan string `yaml:"scan"`
	// Log is the log path relative to the dataset root.
	Log  string `yaml:"log"`
	Note string `yaml:"note,omitempty"`
}

type document struct {
	Pairs []Pair `yaml:"pairs"`
}

// Set is a validated collection of overrides.
type Set struct {
	Path  string
	pairs []Pair
}

// Load reads an overrides file. An empty path yields an empty set.
func Load(path string) (*Set, error) {
	if strings.TrimSpace(path) == "" {
		return &Set{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "overrides", "load", path, err)
		}
		return nil, services.Wrap(services.ErrConfiguration, "overrides", "load", path, err)
	}
	set, err := Parse(data)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "overrides", "parse", path, err)
	}
	set.Path = path
	return set, nil
}

// Parse decodes and validates overrides content.
func Parse(data []byte) (*Set, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	seen := make(map[string]int, len(doc.Pairs))
	var problems []error
	for i, pair := range doc.Pairs {
		pair.Subject = strings.TrimPrefix(strings.TrimSpace(pair.Subject), "sub-")
		pair.Session = strings.TrimPrefix(strings.TrimSpace(pair.Session), "ses-")
		pair.Scan = strings.TrimSpace(pair.Scan)
		pair.Log = filepath.ToSlash(strings.TrimSpace(pair.Log))
		doc.Pairs[i] = pair

		switch {
		case pair.Subject == "" || pair.Session == "":
			problems = append(problems, fmt.Errorf("pairs[%d]: subject and session are required", i))
			continue
		case pair.Scan == "" || pair.Log == "":
			problems = append(problems, fmt.Errorf("pairs[%d]: scan and log are required", i))
			continue
		case filepath.IsAbs(pair.Log):
			problems = append(problems, fmt.Errorf("pairs[%d]: log must be relative to the dataset root", i))
			continue
		}
		key := pair.key()
		if first, ok := seen[key]; ok {
			problems = append(problems, fmt.Errorf("pairs[%d]: duplicate of pairs[%d] for %s", i, first, pair.Scan))
			continue
		}
		seen[key] = i
	}
	if len(problems) > 0 {
		return nil, errors.Join(problems...)
	}
	return &Set{pairs: doc.Pairs}, nil
}

func (p Pair) key() string {
	return bids.FoldLabel(p.Subject) + "/" + lookup.NormalizeSession(p.Session, true) + "/" + p.Scan
}

// Len returns the number of overrides.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.pairs)
}

// For returns the overrides of one subject/session. Subjects compare
// case-insensitively and sessions with leading zeros ignored.
func (s *Set) For(subject, session string) []Pair {
	if s == nil {
		return nil
	}
	sub := bids.FoldLabel(subject)
	ses := lookup.NormalizeSession(session, true)
	var out []Pair
	for _, pair := range s.pairs {
		if bids.FoldLabel(pair.Subject) == sub && lookup.NormalizeSession(pair.Session, true) == ses {
			out = append(out, pair)
		}
	}
	return out
}

// Apply writes every override of the table's subject/session into table
// and returns the pairs that were applied. A scan without a manifest row
// is an error; the remaining overrides are still applied.
func Apply(table *manifest.Table, pairs []Pair, logger *slog.Logger) ([]Pair, error) {
	logger = logging.NewComponentLogger(logger, "overrides")
	var (
		applied  []Pair
		problems []error
	)
	for _, pair := range pairs {
		previous := currentLog(table, pair.Scan)
		if !table.SetLog(pair.Scan, pair.Log) {
			problems = append(problems, services.Wrap(services.ErrValidation, "overrides", "apply",
				fmt.Sprintf("scan %s not in %s", pair.Scan, table.Path), nil))
			continue
		}
		applied = append(applied, pair)
		reason := "operator pairing"
		if pair.Note != "" {
			reason = pair.Note
		}
		attrs := append(logging.DecisionAttrs("manual_override", "applied", reason),
			logging.String("scan", pair.Scan),
			logging.String("log", pair.Log),
			logging.String("previous_log", previous),
		)
		logger.Info("override applied", logging.Args(attrs...)...)
	}
	return applied, errors.Join(problems...)
}

func currentLog(table *manifest.Table, scan string) string {
	for _, entry := range table.Entries() {
		if entry.Scan == scan {
			return entry.Log
		}
	}
	return ""
}
