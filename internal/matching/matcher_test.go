package matching

import (
	"path/filepath"
	"testing"

	"eventsync/internal/lookup"
)

func TestMatchSingleCandidatesPairWithoutTimestamps(t *testing.T) {
	ix := buildIndexes(t,
		[]string{"sub-01_ses-02_task-rest_events.tsv"},
		[]string{"sub-01_ses-2_rest_final.csv"},
	)
	out, err := Match(ix, lookup.Address{Session: "02", Subject: "01", Task: "rest"}, acqTable{})
	if err != nil {
		t.Fatalf("Match returned error: %v", err)
	}
	if len(out.Pairs) != 1 {
		t.Fatalf("expected one pair, got %d", len(out.Pairs))
	}
	pair := out.Pairs[0]
	if pair.Scan != "func/sub-01_ses-02_task-rest_bold.nii.gz" {
		t.Fatalf("unexpected scan %q", pair.Scan)
	}
	if filepath.Base(pair.Log) != "sub-01_ses-2_rest_final.csv" {
		t.Fatalf("unexpected log %q", pair.Log)
	}
	if filepath.Base(pair.Events) != "sub-01_ses-02_task-rest_events.tsv" {
		t.Fatalf("unexpected events path %q", pair.Events)
	}
}

func TestMatchRestScenarioPairsByTime(t *testing.T) {
	ix := buildIndexes(t,
		[]string{
			"sub-01_ses-02_task-rest_run-1_events.tsv",
			"sub-01_ses-02_task-rest_run-2_events.tsv",
		},
		[]string{
			"sub-01_ses-2_rest_2022_04_30_1040.csv",
			"sub-01_ses-2_rest_2022_04_30_1017.csv",
		},
	)
	times := acqTable{
		"func/sub-01_ses-02_task-rest_run-1_bold.nii.gz": "2022-04-30T10:17:15",
		"func/sub-01_ses-02_task-rest_run-2_bold.nii.gz": "2022-04-30T10:40:02",
	}
	out, err := Match(ix, lookup.Address{Session: "02", Subject: "01", Task: "rest"}, times)
	if err != nil {
		t.Fatalf("Match returned error: %v", err)
	}
	if len(out.Pairs) != 2 {
		t.Fatalf("expected two pairs, got %d", len(out.Pairs))
	}
	want := map[string]string{
		"func/sub-01_ses-02_task-rest_run-1_bold.nii.gz": "sub-01_ses-2_rest_2022_04_30_1017.csv",
		"func/sub-01_ses-02_task-rest_run-2_bold.nii.gz": "sub-01_ses-2_rest_2022_04_30_1040.csv",
	}
	for _, pair := range out.Pairs {
		if filepath.Base(pair.Log) != want[pair.Scan] {
			t.Fatalf("scan %s paired with %s, want %s", pair.Scan, filepath.Base(pair.Log), want[pair.Scan])
		}
	}
}

func TestMatchMissingLogsIsGap(t *testing.T) {
	ix := buildIndexes(t, []string{"sub-01_ses-02_task-rest_events.tsv"}, nil)
	out, err := Match(ix, lookup.Address{Session: "02", Subject: "01", Task: "rest"}, acqTable{})
	if err != nil {
		t.Fatalf("expected gap without error, got %v", err)
	}
	if !out.Gap || len(out.Pairs) != 0 {
		t.Fatalf("expected gap with no pairs, got %+v", out)
	}
}

func TestMatchMissingScansIsManual(t *testing.T) {
	ix := buildIndexes(t, nil, []string{"sub-01_ses-2_rest_2022_04_30_1017.csv"})
	_, err := Match(ix, lookup.Address{Session: "02", Subject: "01", Task: "rest"}, acqTable{})
	merr, ok := AsError(err)
	if !ok || merr.Kind != Fatal || merr.Reason != ReasonNoScans {
		t.Fatalf("expected fatal no_scans error, got %v", err)
	}
	if len(merr.Logs) != 1 {
		t.Fatalf("expected log candidates in payload, got %v", merr.Logs)
	}
}

func TestMatchNumberedRunWithoutLogTaskIsFatal(t *testing.T) {
	ix := buildIndexes(t,
		[]string{"sub-01_ses-02_task-motor_acq-dup_run-1_events.tsv"},
		[]string{"sub-01_ses-2_rest_2022_04_30_1017.csv"},
	)
	_, err := Match(ix, lookup.Address{Session: "02", Subject: "01", Task: "motor", Run: 1}, acqTable{})
	merr, ok := AsError(err)
	if !ok || merr.Kind != Fatal || merr.Reason != ReasonTaskMissing {
		t.Fatalf("expected fatal task_missing, got %v", err)
	}
}

func TestMatchNumberedRunMissingOnLogSideIsRecoverable(t *testing.T) {
	ix := buildIndexes(t,
		[]string{
			"sub-01_ses-02_task-motor_acq-dup_run-1_events.tsv",
			"sub-01_ses-02_task-motor_acq-dup_run-2_events.tsv",
		},
		[]string{"sub-01_ses-2_run-1_motor_2022_04_30_1017.csv"},
	)
	_, err := Match(ix, lookup.Address{Session: "02", Subject: "01", Task: "motor", Run: 2}, acqTable{})
	if !IsRecoverable(err) {
		t.Fatalf("expected recoverable error, got %v", err)
	}
	merr, _ := AsError(err)
	if merr.Reason != ReasonRunMissing {
		t.Fatalf("expected run_missing, got %s", merr.Reason)
	}
}

func TestMatchCountMismatchKindDependsOnRun(t *testing.T) {
	ix := buildIndexes(t,
		[]string{
			"sub-01_ses-02_task-rest_run-1_events.tsv",
			"sub-01_ses-02_task-rest_run-2_events.tsv",
		},
		[]string{
			"sub-01_ses-2_rest_2022_04_30_1017.csv",
			"sub-01_ses-2_rest_2022_04_30_1030.csv",
			"sub-01_ses-2_rest_2022_04_30_1040.csv",
		},
	)
	_, err := Match(ix, lookup.Address{Session: "02", Subject: "01", Task: "rest"}, acqTable{})
	merr, ok := AsError(err)
	if !ok || merr.Kind != Fatal || merr.Reason != ReasonCountMismatch {
		t.Fatalf("expected fatal count mismatch at run 0, got %v", err)
	}
	if len(merr.Scans) != 2 || len(merr.Logs) != 3 {
		t.Fatalf("expected full candidate lists, got %v / %v", merr.Scans, merr.Logs)
	}

	ix = buildIndexes(t,
		[]string{"sub-01_ses-02_task-rest_acq-dup_run-1_events.tsv"},
		[]string{
			"sub-01_ses-2_run-1_rest_2022_04_30_1017.csv",
			"sub-01_ses-2_run-1_rest_2022_04_30_1030.csv",
		},
	)
	_, err = Match(ix, lookup.Address{Session: "02", Subject: "01", Task: "rest", Run: 1}, acqTable{})
	if !IsRecoverable(err) {
		t.Fatalf("expected recoverable count mismatch for numbered run, got %v", err)
	}
}

func TestMatchMissingAcqTimeIsFatal(t *testing.T) {
	ix := buildIndexes(t,
		[]string{
			"sub-01_ses-02_task-rest_run-1_events.tsv",
			"sub-01_ses-02_task-rest_run-2_events.tsv",
		},
		[]string{
			"sub-01_ses-2_rest_2022_04_30_1017.csv",
			"sub-01_ses-2_rest_2022_04_30_1040.csv",
		},
	)
	times := acqTable{"func/sub-01_ses-02_task-rest_run-1_bold.nii.gz": "n/a"}
	_, err := Match(ix, lookup.Address{Session: "02", Subject: "01", Task: "rest"}, times)
	merr, ok := AsError(err)
	if !ok || merr.Kind != Fatal || merr.Reason != ReasonMissingTime {
		t.Fatalf("expected fatal missing_timestamp, got %v", err)
	}
}

func TestMatchUnequalDaysIsManual(t *testing.T) {
	ix := buildIndexes(t,
		[]string{
			"sub-01_ses-02_task-rest_run-1_events.tsv",
			"sub-01_ses-02_task-rest_run-2_events.tsv",
			"sub-01_ses-02_task-rest_run-3_events.tsv",
		},
		[]string{
			"sub-01_ses-2_rest_2022_04_30_1017.csv",
			"sub-01_ses-2_rest_2022_05_01_0900.csv",
			"sub-01_ses-2_rest_2022_05_01_0930.csv",
		},
	)
	times := acqTable{
		"func/sub-01_ses-02_task-rest_run-1_bold.nii.gz": "2022-04-30T10:17:15",
		"func/sub-01_ses-02_task-rest_run-2_bold.nii.gz": "2022-04-30T10:40:02",
		"func/sub-01_ses-02_task-rest_run-3_bold.nii.gz": "2022-05-01T09:00:40",
	}
	_, err := Match(ix, lookup.Address{Session: "02", Subject: "01", Task: "rest"}, times)
	merr, ok := AsError(err)
	if !ok || merr.Kind != Fatal || merr.Reason != ReasonDayMismatch {
		t.Fatalf("expected fatal day mismatch, got %v", err)
	}
	if merr.Day != "2022-04-30" {
		t.Fatalf("expected first mismatching day, got %q", merr.Day)
	}
	if merr.Address.Task != "rest" {
		t.Fatalf("expected address on error, got %+v", merr.Address)
	}
}
