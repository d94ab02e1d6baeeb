package bids

import (
	"fmt"
	"path/filepath"
	"sort"

	"eventsync/internal/services"
)

// EventFile is one events.tsv placeholder discovered in the dataset.
type EventFile struct {
	Path     string
	Dir      string
	Filename string
	Entities
}

// ScanName returns the manifest entry of the scan this events file belongs to.
func (e EventFile) ScanName() string {
	return ScanName(e.Filename)
}

// Layout supplies the events files and labels of a dataset.
type Layout interface {
	EventFiles() ([]EventFile, error)
	Subjects() ([]string, error)
	Sessions() ([]string, error)
	Tasks() ([]string, error)
}

// FSLayout discovers events files on disk.
type FSLayout struct {
	Root string
}

// NewFSLayout returns a layout rooted at the dataset directory.
func NewFSLayout(root string) *FSLayout {
	return &FSLayout{Root: root}
}

// EventFiles returns every sub-*/ses-*/func/*_events.tsv file, sorted by path.
func (l *FSLayout) EventFiles() ([]EventFile, error) {
	pattern := filepath.Join(l.Root, "sub-*", "ses-*", "func", "*_events.tsv")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "layout", "glob", pattern, err)
	}
	sort.Strings(matches)
	files := make([]EventFile, 0, len(matches))
	for _, path := range matches {
		ent, err := ParseEntities(path)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "layout", "parse", path, err)
		}
		if ent.Session == "" || ent.Task == "" {
			return nil, services.Wrap(services.ErrValidation, "layout", "parse", fmt.Sprintf("%s lacks ses or task", path), nil)
		}
		files = append(files, EventFile{
			Path:     path,
			Dir:      filepath.Dir(path),
			Filename: filepath.Base(path),
			Entities: ent,
		})
	}
	return files, nil
}

// Subjects lists the distinct subject labels that own events files.
func (l *FSLayout) Subjects() ([]string, error) {
	return l.distinct(func(e EventFile) string { return e.Subject })
}

// Sessions lists the distinct session labels that own events files.
func (l *FSLayout) Sessions() ([]string, error) {
	return l.distinct(func(e EventFile) string { return e.Session })
}

// Tasks lists the distinct task names.
func (l *FSLayout) Tasks() ([]string, error) {
	return l.distinct(func(e EventFile) string { return e.Task })
}

func (l *FSLayout) distinct(key func(EventFile) string) ([]string, error) {
	files, err := l.EventFiles()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var out []string
	for _, file := range files {
		value := key(file)
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	sort.Strings(out)
	return out, nil
}
