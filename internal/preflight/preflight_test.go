package preflight

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"eventsync/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDatasetLayout(t *testing.T) {
	root := t.TempDir()
	if result := CheckDatasetLayout(root); result.Passed {
		t.Fatal("expected failure for empty dataset")
	}
	testsupport.AddEventsFile(t, root, "sub-01_ses-01_task-rest_events.tsv")
	result := CheckDatasetLayout(root)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if result.Detail != "1 subject(s)" {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestCheckOverrides(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithOverridesFile("pairs:\n  - {subject: \"01\", session: \"01\", scan: func/a_bold.nii.gz, log: a.tsv}\n"))
	result := CheckOverrides(cfg.Matching.OverridesFile)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}

	bad := testsupport.NewConfig(t, testsupport.WithOverridesFile("pairs: [{subject: \"01\"}]\n"))
	if result := CheckOverrides(bad.Matching.OverridesFile); result.Passed {
		t.Fatal("expected failure for incomplete pairing")
	}
}

func TestRunAllPlainDataset(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.AddEventsFile(t, cfg.Paths.DatasetDir, "sub-01_ses-01_task-rest_events.tsv")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}

	results := RunAll(context.Background(), cfg)
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %#v", failed)
	}
	for _, r := range results {
		if r.Name == "datalad" {
			t.Fatal("datalad should not be checked for a plain dataset")
		}
	}
}

func TestRunAllDataladChecksTools(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithDataladManager(),
		testsupport.WithStubbedBinaries("datalad", "git", "git-annex"),
	)
	testsupport.AddEventsFile(t, cfg.Paths.DatasetDir, "sub-01_ses-01_task-rest_events.tsv")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}

	results := RunAll(context.Background(), cfg)
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %#v", failed)
	}
	seen := map[string]bool{}
	for _, r := range results {
		seen[r.Name] = true
	}
	for _, name := range []string{"datalad", "git", "git-annex"} {
		if !seen[name] {
			t.Fatalf("expected %s check in %#v", name, results)
		}
	}
}

func TestRunAllDataladReportsMissingTools(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithDataladManager(),
		testsupport.WithStubbedBinaries("git", "git-annex"),
	)
	cfg.Dataset.DataladBinary = "eventsync-absent-datalad"
	testsupport.AddEventsFile(t, cfg.Paths.DatasetDir, "sub-01_ses-01_task-rest_events.tsv")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}

	failed := Failed(RunAll(context.Background(), cfg))
	if len(failed) != 1 || failed[0].Name != "datalad" {
		t.Fatalf("expected only datalad to fail, got %#v", failed)
	}
	if !strings.Contains(failed[0].Detail, "not found") || !strings.Contains(failed[0].Detail, "unlock and save") {
		t.Fatalf("unexpected detail: %q", failed[0].Detail)
	}
}

func TestInspectDataset(t *testing.T) {
	root := t.TempDir()
	testsupport.AddEventsFile(t, root, "sub-01_ses-01_task-rest_events.tsv")
	testsupport.AddEventsFile(t, root, "sub-01_ses-02_task-rest_events.tsv")
	testsupport.WriteScansManifest(t, root, "01", "01", [][2]string{{"func/sub-01_ses-01_task-rest_bold.nii.gz", "n/a"}})
	testsupport.WriteText(t, filepath.Join(root, "sourcedata", "01", "logs", "01", "sub-01_ses-1_rest_2024_01_01_0900.tsv"), "onset\n")
	testsupport.WriteZip(t, filepath.Join(root, "sourcedata", "01", "01_logs.zip"), map[string]string{"a.tsv": "x"})

	contents := InspectDataset(root)
	if contents.Err != nil {
		t.Fatalf("contents error: %v", contents.Err)
	}
	if contents.Subjects != 1 || contents.Sessions != 2 || contents.EventsFiles != 2 {
		t.Fatalf("unexpected counts: %#v", contents)
	}
	if contents.Manifests != 1 || contents.Logs != 1 || contents.Archives != 1 {
		t.Fatalf("unexpected counts: %#v", contents)
	}
	if contents.Detail() == "" {
		t.Fatal("expected detail")
	}
}
