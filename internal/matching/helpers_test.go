package matching

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"

	"eventsync/internal/bids"
	"eventsync/internal/lookup"
)

type acqTable map[string]string

func (a acqTable) AcqTime(scan string) (string, bool) {
	value, ok := a[scan]
	return value, ok
}

const datasetRoot = "/ds"

func eventFiles(t *testing.T, names ...string) []bids.EventFile {
	t.Helper()
	files := make([]bids.EventFile, 0, len(names))
	for _, name := range names {
		ent, err := bids.ParseEntities(name)
		if err != nil {
			t.Fatalf("ParseEntities(%q): %v", name, err)
		}
		dir := filepath.Join(datasetRoot, "sub-"+ent.Subject, "ses-"+ent.Session, "func")
		files = append(files, bids.EventFile{
			Path:     filepath.Join(dir, name),
			Dir:      dir,
			Filename: name,
			Entities: ent,
		})
	}
	return files
}

func logPathsFor(names ...string) []string {
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = filepath.Join(datasetRoot, "sourcedata", "02", "logs", "01", name)
	}
	return out
}

func buildIndexes(t *testing.T, events []string, logs []string) *lookup.Indexes {
	t.Helper()
	return lookup.Build(eventFiles(t, events...), logPathsFor(logs...), true)
}

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}
