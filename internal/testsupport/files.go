package testsupport

import (
	"archive/zip"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// WriteText writes content to path, creating parent directories.
func WriteText(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// ReadText returns the content of path.
func ReadText(t testing.TB, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

// WriteZip creates a zip archive at path holding members (name -> content).
// Members are written in name order.
func WriteZip(t testing.TB, path string, members map[string]string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	names := make([]string, 0, len(members))
	for name := range members {
		names = append(names, name)
	}
	sort.Strings(names)

	zw := zip.NewWriter(f)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(members[name])); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close %s: %v", path, err)
	}
}

// Placeholder is the content of events files before logs are copied in.
const Placeholder = "onset\tduration\n"

// AddEventsFile creates sub-<s>/ses-<t>/func/<name> under root with
// placeholder content and returns its path. Subject and session are read
// from name.
func AddEventsFile(t testing.TB, root, name string) string {
	t.Helper()

	subject, session := labelsFromName(t, name)
	path := filepath.Join(root, "sub-"+subject, "ses-"+session, "func", name)
	WriteText(t, path, Placeholder)
	return path
}

// WriteScansManifest writes sub-<s>/ses-<t>/sub-<s>_ses-<t>_scans.tsv with
// filename and acq_time columns. rows holds filename/acq_time pairs.
func WriteScansManifest(t testing.TB, root, subject, session string, rows [][2]string) string {
	t.Helper()

	var b strings.Builder
	b.WriteString("filename\tacq_time\n")
	for _, row := range rows {
		b.WriteString(row[0])
		b.WriteByte('\t')
		b.WriteString(row[1])
		b.WriteByte('\n')
	}
	path := filepath.Join(root, "sub-"+subject, "ses-"+session,
		"sub-"+subject+"_ses-"+session+"_scans.tsv")
	WriteText(t, path, b.String())
	return path
}

func labelsFromName(t testing.TB, name string) (string, string) {
	t.Helper()

	var subject, session string
	for _, token := range strings.Split(name, "_") {
		switch {
		case strings.HasPrefix(token, "sub-"):
			subject = strings.TrimPrefix(token, "sub-")
		case strings.HasPrefix(token, "ses-"):
			session = strings.TrimPrefix(token, "ses-")
		}
	}
	if subject == "" || session == "" {
		t.Fatalf("events name %q lacks sub or ses", name)
	}
	return subject, session
}
