package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventsync/internal/ledger"
	"eventsync/internal/matching"
	"eventsync/internal/services"
	"eventsync/internal/testsupport"
)

func openStore(t *testing.T) *ledger.Store {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store, err := ledger.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	run, err := store.StartRun(ctx, "/data/ds")
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)
	assert.Equal(t, ledger.StatusRunning, run.Status)

	require.NoError(t, store.FinishRun(ctx, run.ID, nil))
	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ledger.StatusCompleted, got.Status)
	assert.False(t, got.FinishedAt.IsZero())

	failed, err := store.StartRun(ctx, "/data/ds")
	require.NoError(t, err)
	require.NoError(t, store.FinishRun(ctx, failed.ID, errors.New("layout unreadable")))

	latest, err := store.LatestRun(ctx, "/data/ds")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, failed.ID, latest.ID)
	assert.Equal(t, ledger.StatusFailed, latest.Status)
	assert.Equal(t, "layout unreadable", latest.ErrorMessage)

	runs, err := store.ListRuns(ctx, "/data/ds", 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	none, err := store.LatestRun(ctx, "/other")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestBucketsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	run, err := store.StartRun(ctx, "/data/ds")
	require.NoError(t, err)

	require.NoError(t, store.RecordBucket(ctx, ledger.Bucket{
		RunID:   run.ID,
		Subject: "01",
		Session: "02",
		Task:    "rest",
		Outcome: ledger.OutcomeMatched,
		Pairs:   2,
	}))
	require.NoError(t, store.RecordBucket(ctx, ledger.Bucket{
		RunID:   run.ID,
		Subject: "01",
		Session: "02",
		Task:    "motor",
		Run:     2,
		Outcome: ledger.OutcomeManual,
		Reason:  "unresolved_after_retry",
		Scans:   []string{"func/a_bold.nii.gz", "func/b_bold.nii.gz"},
		Logs:    []string{"/ds/sourcedata/02/logs/01/a.csv"},
		Detail:  "count mismatch",
	}))

	buckets, err := store.Buckets(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	assert.Equal(t, "rest", buckets[0].Task)
	assert.Nil(t, buckets[0].Scans)
	assert.Equal(t, ledger.OutcomeManual, buckets[1].Outcome)
	assert.Equal(t, []string{"func/a_bold.nii.gz", "func/b_bold.nii.gz"}, buckets[1].Scans)
	assert.Equal(t, 2, buckets[1].Run)
	assert.False(t, buckets[1].RecordedAt.IsZero())

	counts, err := store.CountOutcomes(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[ledger.OutcomeMatched])
	assert.Equal(t, 1, counts.Attention())
}

func TestReopenKeepsHistory(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)

	store, err := ledger.Open(cfg)
	require.NoError(t, err)
	run, err := store.StartRun(ctx, cfg.Paths.DatasetDir)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := ledger.Open(cfg)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, cfg.Paths.DatasetDir, got.Dataset)
}

func TestOutcomeNeedsAttention(t *testing.T) {
	assert.True(t, ledger.OutcomeManual.NeedsAttention())
	assert.True(t, ledger.OutcomeFailed.NeedsAttention())
	assert.False(t, ledger.OutcomeGap.NeedsAttention())
	assert.False(t, ledger.OutcomeDegraded.NeedsAttention())
}

func TestOutcomeFor(t *testing.T) {
	manual := &matching.Error{Kind: matching.Fatal, Reason: matching.ReasonDayMismatch}
	outcome, reason := ledger.OutcomeFor(fmt.Errorf("bucket: %w", manual))
	assert.Equal(t, ledger.OutcomeManual, outcome)
	assert.Equal(t, "day_mismatch", reason)

	wrapped := services.Wrap(services.ErrExternalTool, "dataset", "unlock", "datalad unlock failed", errors.New("exit 1"))
	outcome, reason = ledger.OutcomeFor(wrapped)
	assert.Equal(t, ledger.OutcomeFailed, outcome)
	assert.Equal(t, "external_tool", reason)

	missing := services.Wrap(services.ErrNotFound, "manifest", "load", "sub-01_ses-02_scans.tsv", os.ErrNotExist)
	outcome, reason = ledger.OutcomeFor(missing)
	assert.Equal(t, ledger.OutcomeManual, outcome)
	assert.Equal(t, "not_found", reason)

	outcome, reason = ledger.OutcomeFor(errors.New("disk full"))
	assert.Equal(t, ledger.OutcomeFailed, outcome)
	assert.Equal(t, "error", reason)

	outcome, _ = ledger.OutcomeFor(nil)
	assert.Equal(t, ledger.OutcomeMatched, outcome)

	assert.Equal(t, ledger.OutcomeGap, ledger.OutcomeOf(matching.Outcome{Gap: true}))
	assert.Equal(t, ledger.OutcomeDegraded, ledger.OutcomeOf(matching.Outcome{Degraded: true}))
}
