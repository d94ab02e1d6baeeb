package matching

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"eventsync/internal/lookup"
)

func TestResolveEscalatesAfterOneRetry(t *testing.T) {
	ix := buildIndexes(t,
		[]string{
			"sub-01_ses-02_task-motor_acq-dup_run-1_events.tsv",
			"sub-01_ses-02_task-motor_acq-dup_run-2_events.tsv",
		},
		[]string{"sub-01_ses-2_run-1_motor_2022_04_30_1017.csv"},
	)
	logger, buf := bufferLogger()
	m := NewMatcher(logger)

	out, err := m.Resolve(context.Background(), ix, lookup.Address{Session: "02", Subject: "01", Task: "motor", Run: 2}, acqTable{})
	if !IsManual(err) {
		t.Fatalf("expected manual resolution error, got %v", err)
	}
	merr, _ := AsError(err)
	if merr.Reason != ReasonUnresolved {
		t.Fatalf("expected unresolved_after_retry, got %s", merr.Reason)
	}
	var inner *Error
	if !errors.As(merr.Err, &inner) || inner.Reason != ReasonCountMismatch {
		t.Fatalf("expected wrapped count mismatch from retry, got %v", merr.Err)
	}
	if len(merr.Scans) != 2 || len(merr.Logs) != 1 {
		t.Fatalf("expected candidate lists from the whole task, got %v / %v", merr.Scans, merr.Logs)
	}
	if !out.Degraded {
		t.Fatal("expected the failing outcome to come from the degraded attempt")
	}
	if got := strings.Count(buf.String(), `"event_type":"match_degraded"`); got != 1 {
		t.Fatalf("expected exactly one logged retry, got %d\n%s", got, buf.String())
	}
}

func TestResolveDegradedRetrySucceeds(t *testing.T) {
	ix := buildIndexes(t,
		[]string{
			"sub-01_ses-02_task-motor_acq-dup_run-1_events.tsv",
			"sub-01_ses-02_task-motor_acq-dup_run-2_events.tsv",
		},
		[]string{
			"sub-01_ses-2_run-1_motor_2022_04_30_1017.csv",
			"sub-01_ses-2_run-3_motor_2022_04_30_1040.csv",
		},
	)
	times := acqTable{
		"func/sub-01_ses-02_task-motor_acq-dup_run-1_bold.nii.gz": "2022-04-30T10:17:15",
		"func/sub-01_ses-02_task-motor_acq-dup_run-2_bold.nii.gz": "2022-04-30T10:40:02",
	}
	logger, buf := bufferLogger()
	out, err := NewMatcher(logger).Resolve(context.Background(), ix, lookup.Address{Session: "02", Subject: "01", Task: "motor", Run: 2}, times)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if !out.Degraded || out.Attempt != "degraded" {
		t.Fatalf("expected degraded outcome, got %+v", out)
	}
	if out.Address.Run != 2 {
		t.Fatalf("expected outcome to keep the requested address, got %+v", out.Address)
	}
	if len(out.Pairs) != 2 {
		t.Fatalf("expected both runs paired, got %d", len(out.Pairs))
	}
	for _, pair := range out.Pairs {
		if strings.Contains(pair.Scan, "run-2") && filepath.Base(pair.Log) != "sub-01_ses-2_run-3_motor_2022_04_30_1040.csv" {
			t.Fatalf("run-2 scan paired with %s", pair.Log)
		}
	}
	if !strings.Contains(buf.String(), "match_degraded") {
		t.Fatal("expected retry to be logged")
	}
}

func TestResolveFatalStrictErrorIsNotRetried(t *testing.T) {
	ix := buildIndexes(t,
		[]string{"sub-01_ses-02_task-motor_acq-dup_run-1_events.tsv"},
		nil,
	)
	logger, buf := bufferLogger()
	_, err := NewMatcher(logger).Resolve(context.Background(), ix, lookup.Address{Session: "02", Subject: "01", Task: "motor", Run: 1}, acqTable{})
	merr, ok := AsError(err)
	if !ok || merr.Reason != ReasonTaskMissing {
		t.Fatalf("expected task_missing, got %v", err)
	}
	if strings.Contains(buf.String(), "match_degraded") {
		t.Fatal("fatal strict error must not trigger a retry")
	}
}

func TestResolveGapIsLoggedNotFailed(t *testing.T) {
	ix := buildIndexes(t, []string{"sub-01_ses-02_task-rest_events.tsv"}, nil)
	logger, buf := bufferLogger()
	out, err := NewMatcher(logger).Resolve(context.Background(), ix, lookup.Address{Session: "02", Subject: "01", Task: "rest"}, acqTable{})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if !out.Gap {
		t.Fatal("expected gap outcome")
	}
	if !strings.Contains(buf.String(), `"event_type":"log_gap"`) {
		t.Fatalf("expected gap to be logged, got %s", buf.String())
	}
}

func TestResolveHonoursCancelledContext(t *testing.T) {
	ix := buildIndexes(t, []string{"sub-01_ses-02_task-rest_events.tsv"}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMatcher(nil).Resolve(ctx, ix, lookup.Address{Session: "02", Subject: "01", Task: "rest"}, acqTable{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBuildStrategyAttempts(t *testing.T) {
	if got := buildStrategyAttempts(lookup.Address{Run: 0}); len(got) != 1 || got[0].Name != "strict" {
		t.Fatalf("unexpected attempts for sentinel run: %+v", got)
	}
	got := buildStrategyAttempts(lookup.Address{Run: 3})
	if len(got) != 2 || got[1].Name != "degraded" || got[1].Address.Run != 0 {
		t.Fatalf("unexpected attempts for numbered run: %+v", got)
	}
}
