package lookup

import (
	"testing"

	"eventsync/internal/bids"
)

func eventFile(t *testing.T, name string) bids.EventFile {
	t.Helper()
	ent, err := bids.ParseEntities(name)
	if err != nil {
		t.Fatalf("ParseEntities(%q): %v", name, err)
	}
	return bids.EventFile{Path: "/ds/" + name, Dir: "/ds", Filename: name, Entities: ent}
}

func TestBuildUsesTrustedRunsOnly(t *testing.T) {
	events := []bids.EventFile{
		eventFile(t, "sub-01_ses-02_task-rest_run-1_events.tsv"),
		eventFile(t, "sub-01_ses-02_task-rest_run-2_events.tsv"),
		eventFile(t, "sub-01_ses-02_task-motor_acq-dup_run-2_events.tsv"),
	}
	ix := Build(events, nil, true)

	rest := Address{Session: "02", Subject: "01", Task: "rest"}
	if runs := ix.Events.Runs(rest); len(runs) != 1 || runs[0] != 0 {
		t.Fatalf("expected conversion-numbered runs under sentinel 0, got %v", runs)
	}
	if items, _ := ix.Events.Get(rest); len(items) != 2 {
		t.Fatalf("expected two records in the sentinel bucket, got %d", len(items))
	}
	motor := Address{Session: "02", Subject: "01", Task: "motor", Run: 2}
	if _, ok := ix.Events.Get(motor); !ok {
		t.Fatal("expected dup-marked run to keep its number")
	}
}

func TestBuildNormalizesLogSessionAndSubjectCase(t *testing.T) {
	events := []bids.EventFile{eventFile(t, "sub-SA27_ses-02_task-rest_events.tsv")}
	logs := []string{
		"/ds/sourcedata/02/logs/SA27/sub-sa27_ses-2_rest_2022_04_30_1017.csv",
		"/ds/sourcedata/02/logs/SA27/sub-sa27_ses-2_run-2_rest_2022_04_30_1040.csv",
		"/ds/sourcedata/02/logs/SA27/garbage.csv",
	}
	ix := Build(events, logs, true)

	addr := ix.LogAddress(Address{Session: "02", Subject: "SA27", Task: "rest"})
	if addr.Session != "2" {
		t.Fatalf("expected zero-stripped log session, got %q", addr.Session)
	}
	if got := ix.Logs.Flatten(addr); len(got) != 2 {
		t.Fatalf("expected two logs under the events-side subject spelling, got %d", len(got))
	}
	if _, ok := ix.Logs.Get(addr.WithRun(2)); !ok {
		t.Fatal("expected explicit log run 2")
	}
	if len(ix.Skipped) != 1 || ix.Skipped[0].Path != logs[2] {
		t.Fatalf("expected malformed log to be skipped, got %+v", ix.Skipped)
	}
}

func TestBuildWithoutZeroStrip(t *testing.T) {
	ix := Build(nil, []string{"sub-01_ses-02_rest_2022_04_30_1017.csv"}, false)
	addr := ix.LogAddress(Address{Session: "02", Subject: "01", Task: "rest"})
	if !ix.Logs.HasTask(addr) {
		t.Fatal("expected padded session key when zero stripping is disabled")
	}
}
