package reconcile_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"eventsync/internal/bids"
	"eventsync/internal/config"
	"eventsync/internal/ledger"
	"eventsync/internal/logging"
	"eventsync/internal/manifest"
	"eventsync/internal/overrides"
	"eventsync/internal/reconcile"
	"eventsync/internal/testsupport"
)

const (
	restRun1 = "sub-01_ses-02_task-rest_run-1_events.tsv"
	restRun2 = "sub-01_ses-02_task-rest_run-2_events.tsv"
	motor    = "sub-01_ses-02_task-motor_events.tsv"
	nbackA   = "sub-01_ses-02_task-nback_acq-a_events.tsv"
	nbackB   = "sub-01_ses-02_task-nback_acq-b_events.tsv"

	restLogEarly = "sub-01_ses-2_rest_2024_03_01_1017.tsv"
	restLogLate  = "sub-01_ses-2_rest_2024_03_01_1040.tsv"
	nbackLog     = "sub-01_ses-2_nback_2024_03_01_1100.tsv"
)

func scan(events string) string {
	return "func/" + strings.TrimSuffix(events, "_events.tsv") + "_bold.nii.gz"
}

func logPath(root, name string) string {
	return filepath.Join(root, "sourcedata", "02", "logs", "01", name)
}

func eventsPath(root, name string) string {
	return filepath.Join(root, "sub-01", "ses-02", "func", name)
}

// seedDataset lays out one subject/session with a two-run rest task that
// pairs by time, a motor task without logs and an nback task with one log
// too few.
func seedDataset(t *testing.T, cfg *config.Config) string {
	t.Helper()
	root := cfg.Paths.DatasetDir
	for _, name := range []string{restRun1, restRun2, motor, nbackA, nbackB} {
		testsupport.AddEventsFile(t, root, name)
	}
	testsupport.WriteScansManifest(t, root, "01", "02", [][2]string{
		{scan(restRun1), "2024-03-01T10:17:15"},
		{scan(restRun2), "2024-03-01T10:40:02"},
		{scan(motor), "2024-03-01T10:50:00"},
		{scan(nbackA), "2024-03-01T11:00:30"},
		{scan(nbackB), "2024-03-01T11:20:30"},
	})
	testsupport.WriteText(t, logPath(root, restLogLate), "t_start\tt_stop\ttrial_type\n2.0\t3.25\tlate\n")
	testsupport.WriteText(t, logPath(root, restLogEarly), "t_start\tt_stop\ttrial_type\n1.0\t2.5\tearly\n")
	testsupport.WriteText(t, logPath(root, nbackLog), "onset\tduration\ttrial_type\n0.5\t1.0\ttarget\n")
	return root
}

func bucketsByTask(t *testing.T, summary *reconcile.Summary) map[string]reconcile.BucketResult {
	t.Helper()
	out := make(map[string]reconcile.BucketResult, len(summary.Buckets))
	for _, b := range summary.Buckets {
		out[b.Address.Task+"/"+string(b.Outcome)] = b
	}
	return out
}

func TestEngineRunPairsByTimeAndTransforms(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	root := seedDataset(t, cfg)
	store := testsupport.MustOpenLedger(t, cfg)

	engine := reconcile.New(cfg, nil, logging.NewNop(), reconcile.WithLedger(store))
	summary, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	buckets := bucketsByTask(t, summary)
	rest, ok := buckets["rest/matched"]
	if !ok {
		t.Fatalf("rest not matched: %+v", summary.Buckets)
	}
	if rest.Pairs != 2 || rest.Address.Run != 0 {
		t.Fatalf("rest bucket = %+v, want 2 pairs at run 0", rest)
	}
	if _, ok := buckets["motor/gap"]; !ok {
		t.Fatalf("motor should be a gap: %+v", summary.Buckets)
	}
	nback, ok := buckets["nback/manual"]
	if !ok {
		t.Fatalf("nback should need manual work: %+v", summary.Buckets)
	}
	if nback.Reason != "count_mismatch" || len(nback.Scans) != 2 || len(nback.Logs) != 1 {
		t.Fatalf("nback bucket = %+v", nback)
	}
	if !summary.NeedsAttention() {
		t.Fatal("expected summary to need attention")
	}

	table, err := manifest.Load(filepath.Join(root, "sub-01", "ses-02", "sub-01_ses-02_scans.tsv"))
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	mapped := map[string]string{}
	for _, entry := range table.Entries() {
		mapped[entry.Scan] = entry.Log
	}
	wantMapped := map[string]string{
		scan(restRun1): "sourcedata/02/logs/01/" + restLogEarly,
		scan(restRun2): "sourcedata/02/logs/01/" + restLogLate,
	}
	if len(mapped) != len(wantMapped) {
		t.Fatalf("mapped = %v, want %v", mapped, wantMapped)
	}
	for scanName, log := range wantMapped {
		if mapped[scanName] != log {
			t.Fatalf("mapping for %s = %q, want %q", scanName, mapped[scanName], log)
		}
	}

	if got := testsupport.ReadText(t, eventsPath(root, restRun1)); got != "onset\tduration\ttrial_type\n1.0\t1.5\tearly\n" {
		t.Fatalf("run-1 events = %q", got)
	}
	if got := testsupport.ReadText(t, eventsPath(root, restRun2)); got != "onset\tduration\ttrial_type\n2.0\t1.25\tlate\n" {
		t.Fatalf("run-2 events = %q", got)
	}
	for _, untouched := range []string{motor, nbackA, nbackB} {
		if got := testsupport.ReadText(t, eventsPath(root, untouched)); got != testsupport.Placeholder {
			t.Fatalf("%s changed: %q", untouched, got)
		}
	}

	recorded, err := store.Buckets(context.Background(), summary.RunID)
	if err != nil {
		t.Fatalf("ledger buckets: %v", err)
	}
	if len(recorded) != len(summary.Buckets) {
		t.Fatalf("ledger has %d buckets, summary %d", len(recorded), len(summary.Buckets))
	}
	run, err := store.GetRun(context.Background(), summary.RunID)
	if err != nil || run == nil {
		t.Fatalf("GetRun: %v %v", run, err)
	}
	if run.Status != ledger.StatusCompleted {
		t.Fatalf("run status = %s", run.Status)
	}
}

func TestEngineRunIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	root := seedDataset(t, cfg)
	manifestPath := filepath.Join(root, "sub-01", "ses-02", "sub-01_ses-02_scans.tsv")

	engine := reconcile.New(cfg, nil, logging.NewNop())
	first, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if len(first.Manifests) != 1 {
		t.Fatalf("first run manifests = %v", first.Manifests)
	}
	before := testsupport.ReadText(t, manifestPath)
	eventsBefore := testsupport.ReadText(t, eventsPath(root, restRun2))

	second, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if len(second.Manifests) != 0 {
		t.Fatalf("second run rewrote manifests: %v", second.Manifests)
	}
	if got := testsupport.ReadText(t, manifestPath); got != before {
		t.Fatalf("manifest changed:\n%s\nwant\n%s", got, before)
	}
	if got := testsupport.ReadText(t, eventsPath(root, restRun2)); got != eventsBefore {
		t.Fatalf("events changed: %q", got)
	}
}

func TestEngineAppliesOverrides(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	root := seedDataset(t, cfg)
	set, err := overrides.Parse([]byte(`
pairs:
  - subject: "01"
    session: "02"
    scan: ` + scan(nbackA) + `
    log: sourcedata/02/logs/01/` + nbackLog + `
    note: acq-b aborted after two minutes
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	engine := reconcile.New(cfg, nil, logging.NewNop(), reconcile.WithOverrides(set))
	summary, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Overrides != 1 {
		t.Fatalf("overrides = %d, want 1", summary.Overrides)
	}
	override, ok := bucketsByTask(t, summary)["nback/override"]
	if !ok {
		t.Fatalf("override not recorded: %+v", summary.Buckets)
	}
	if override.Reason != "acq-b aborted after two minutes" {
		t.Fatalf("override reason = %q", override.Reason)
	}
	if got := testsupport.ReadText(t, eventsPath(root, nbackA)); got != "onset\tduration\ttrial_type\n0.5\t1.0\ttarget\n" {
		t.Fatalf("nback acq-a events = %q", got)
	}
	if got := testsupport.ReadText(t, eventsPath(root, nbackB)); got != testsupport.Placeholder {
		t.Fatalf("nback acq-b events changed: %q", got)
	}
}

func TestEngineRecordsMissingManifest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	root := cfg.Paths.DatasetDir
	testsupport.AddEventsFile(t, root, "sub-03_ses-01_task-rest_events.tsv")

	summary, err := reconcile.New(cfg, nil, logging.NewNop()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(summary.Buckets) != 1 {
		t.Fatalf("buckets = %+v", summary.Buckets)
	}
	b := summary.Buckets[0]
	if b.Outcome != ledger.OutcomeManual || b.Reason != "not_found" {
		t.Fatalf("bucket = %+v, want manual/not_found", b)
	}
}

func TestEngineStopsOnCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	seedDataset(t, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := reconcile.New(cfg, nil, logging.NewNop()).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
}

func TestAcquireLockIsExclusive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, err := reconcile.AcquireLock(cfg)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}

	if _, err := reconcile.AcquireLock(cfg); !errors.Is(err, reconcile.ErrLocked) {
		t.Fatalf("second AcquireLock error = %v, want ErrLocked", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	again, err := reconcile.AcquireLock(cfg)
	if err != nil {
		t.Fatalf("AcquireLock after release: %v", err)
	}
	_ = again.Release()
}

// taskLayout limits the filesystem layout to the events files of one task.
type taskLayout struct {
	*bids.FSLayout
	task string
}

func (l taskLayout) EventFiles() ([]bids.EventFile, error) {
	files, err := l.FSLayout.EventFiles()
	if err != nil {
		return nil, err
	}
	var out []bids.EventFile
	for _, file := range files {
		if file.Task == l.task {
			out = append(out, file)
		}
	}
	return out, nil
}

func TestEngineUsesInjectedLayout(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	root := seedDataset(t, cfg)

	layout := taskLayout{FSLayout: bids.NewFSLayout(root), task: "rest"}
	summary, err := reconcile.New(cfg, nil, logging.NewNop(), reconcile.WithLayout(layout)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(summary.Buckets) != 1 {
		t.Fatalf("buckets = %+v, want only the rest bucket", summary.Buckets)
	}
	if b := summary.Buckets[0]; b.Address.Task != "rest" || b.Outcome != ledger.OutcomeMatched {
		t.Fatalf("bucket = %+v", b)
	}
	if summary.NeedsAttention() {
		t.Fatalf("nback outside the layout should not need attention: %+v", summary.Buckets)
	}
}

func TestEngineDegradedMatchSkipsRemainingRuns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	root := cfg.Paths.DatasetDir
	store := testsupport.MustOpenLedger(t, cfg)

	runs := []string{
		"sub-01_ses-02_task-rest_acq-dup_run-1_events.tsv",
		"sub-01_ses-02_task-rest_acq-dup_run-2_events.tsv",
		"sub-01_ses-02_task-rest_acq-dup_run-3_events.tsv",
	}
	for _, name := range runs {
		testsupport.AddEventsFile(t, root, name)
	}
	testsupport.WriteScansManifest(t, root, "01", "02", [][2]string{
		{scan(runs[0]), "2024-03-01T10:17:15"},
		{scan(runs[1]), "2024-03-01T10:40:02"},
		{scan(runs[2]), "2024-03-02T09:05:40"},
	})
	logs := []string{
		"sub-01_ses-2_run-1_rest_2024_03_01_1017.tsv",
		"sub-01_ses-2_run-3_rest_2024_03_01_1040.tsv",
		"sub-01_ses-2_run-4_rest_2024_03_02_0905.tsv",
	}
	for i, name := range logs {
		testsupport.WriteText(t, logPath(root, name), "onset\tduration\ttrial_type\n1.0\t2.0\tblock"+string(rune('a'+i))+"\n")
	}

	summary, err := reconcile.New(cfg, nil, logging.NewNop(), reconcile.WithLedger(store)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(summary.Buckets) != 2 {
		t.Fatalf("buckets = %+v, want strict run 1 and degraded run 2 only", summary.Buckets)
	}
	strict, degraded := summary.Buckets[0], summary.Buckets[1]
	if strict.Address.Run != 1 || strict.Outcome != ledger.OutcomeMatched || strict.Reason != "strict" || strict.Pairs != 1 {
		t.Fatalf("run 1 bucket = %+v, want strict match with one pair", strict)
	}
	if degraded.Address.Run != 2 || degraded.Outcome != ledger.OutcomeDegraded || degraded.Reason != "degraded" || degraded.Pairs != 3 {
		t.Fatalf("run 2 bucket = %+v, want degraded match with three pairs", degraded)
	}

	table, err := manifest.Load(filepath.Join(root, "sub-01", "ses-02", "sub-01_ses-02_scans.tsv"))
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	mapped := map[string]string{}
	for _, entry := range table.Entries() {
		mapped[entry.Scan] = entry.Log
	}
	for i, name := range runs {
		want := "sourcedata/02/logs/01/" + logs[i]
		if mapped[scan(name)] != want {
			t.Fatalf("mapping for %s = %q, want %q (all: %v)", scan(name), mapped[scan(name)], want, mapped)
		}
	}
	for i, name := range runs {
		want := "onset\tduration\ttrial_type\n1.0\t2.0\tblock" + string(rune('a'+i)) + "\n"
		if got := testsupport.ReadText(t, eventsPath(root, name)); got != want {
			t.Fatalf("%s events = %q, want %q", name, got, want)
		}
	}

	recorded, err := store.Buckets(context.Background(), summary.RunID)
	if err != nil {
		t.Fatalf("ledger buckets: %v", err)
	}
	if len(recorded) != 2 {
		t.Fatalf("ledger buckets = %+v, want 2", recorded)
	}
	if recorded[0].Run != 1 || recorded[0].Outcome != ledger.OutcomeMatched {
		t.Fatalf("ledger run 1 = %+v", recorded[0])
	}
	if recorded[1].Run != 2 || recorded[1].Outcome != ledger.OutcomeDegraded || recorded[1].Pairs != 3 {
		t.Fatalf("ledger run 2 = %+v", recorded[1])
	}
}
