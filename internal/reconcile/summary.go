package reconcile

import (
	"sort"

	"eventsync/internal/ledger"
	"eventsync/internal/lookup"
)

// BucketResult is what happened to one bucket.
type BucketResult struct {
	Address lookup.Address
	Outcome ledger.Outcome
	Reason  string
	Pairs   int
	Scans   []string
	Logs    []string
	Err     error
}

// Summary collects the results of one engine run.
type Summary struct {
	RunID       string
	Buckets     []BucketResult
	Manifests   []string
	EventsFiles []string
	SkippedLogs []lookup.Skipped
	Overrides   int
	// TransformSkips counts mapped events files left unchanged, keyed by reason.
	TransformSkips map[string]int
	Errors         []error
}

// Counts tallies bucket outcomes.
func (s *Summary) Counts() ledger.Counts {
	counts := ledger.Counts{}
	for _, b := range s.Buckets {
		counts[b.Outcome]++
	}
	return counts
}

// NeedsAttention reports whether any bucket needs an operator.
func (s *Summary) NeedsAttention() bool {
	return s.Counts().Attention() > 0 || len(s.Errors) > 0
}

// Touched returns every file the run wrote, sorted.
func (s *Summary) Touched() []string {
	out := make([]string, 0, len(s.Manifests)+len(s.EventsFiles))
	out = append(out, s.Manifests...)
	out = append(out, s.EventsFiles...)
	sort.Strings(out)
	return out
}

func (s *Summary) skipTransform(reason string) {
	if s.TransformSkips == nil {
		s.TransformSkips = map[string]int{}
	}
	s.TransformSkips[reason]++
}
