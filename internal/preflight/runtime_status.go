package preflight

import (
	"fmt"
	"os"
	"path/filepath"

	"eventsync/internal/behavlog"
	"eventsync/internal/bids"
)

// DatasetContents is a snapshot of what the dataset currently holds.
type DatasetContents struct {
	Root        string
	Subjects    int
	Sessions    int
	EventsFiles int
	Manifests   int
	Logs        int
	Archives    int
	Err         error
}

// InspectDataset counts the scan side, the staged logs and the session
// archives under root.
func InspectDataset(root string) DatasetContents {
	contents := DatasetContents{Root: root}

	layout := bids.NewFSLayout(root)
	files, err := layout.EventFiles()
	if err != nil {
		contents.Err = err
		return contents
	}
	contents.EventsFiles = len(files)

	units := map[[2]string]struct{}{}
	subjects := map[string]struct{}{}
	for _, file := range files {
		subjects[file.Subject] = struct{}{}
		key := [2]string{file.Subject, file.Session}
		if _, seen := units[key]; seen {
			continue
		}
		units[key] = struct{}{}
		if _, statErr := os.Stat(bids.ManifestPath(root, file.Subject, file.Session)); statErr == nil {
			contents.Manifests++
		}
	}
	contents.Subjects = len(subjects)
	contents.Sessions = len(units)

	logs, err := behavlog.Discover(root)
	if err != nil {
		contents.Err = err
		return contents
	}
	contents.Logs = len(logs)

	archives, err := filepath.Glob(filepath.Join(root, "sourcedata", "*", "*.zip"))
	if err != nil {
		contents.Err = err
		return contents
	}
	contents.Archives = len(archives)
	return contents
}

// Detail renders a display-friendly summary for status output.
func (p DatasetContents) Detail() string {
	if p.Err != nil {
		return fmt.Sprintf("unreadable (%v)", p.Err)
	}
	if p.EventsFiles == 0 {
		return "no events files"
	}
	return fmt.Sprintf("%d subject(s), %d subject/session(s), %d events file(s), %d manifest(s), %d log(s), %d archive(s)",
		p.Subjects, p.Sessions, p.EventsFiles, p.Manifests, p.Logs, p.Archives)
}
