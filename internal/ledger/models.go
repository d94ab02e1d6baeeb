package ledger

import "time"

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Outcome classifies what happened to one bucket.
type Outcome string

const (
	OutcomeMatched  Outcome = "matched"
	OutcomeGap      Outcome = "gap"
	OutcomeDegraded Outcome = "degraded"
	OutcomeManual   Outcome = "manual"
	OutcomeFailed   Outcome = "failed"
	OutcomeOverride Outcome = "override"
)

// NeedsAttention reports whether an operator has to act on the outcome.
func (o Outcome) NeedsAttention() bool {
	return o == OutcomeManual || o == OutcomeFailed
}

// Run is one invocation of the reconciliation engine.
type Run struct {
	ID           string
	Dataset      string
	Status       Status
	StartedAt    time.Time
	FinishedAt   time.Time
	ErrorMessage string
}

// Bucket is the recorded result of one (subject, session, task, run) address.
type Bucket struct {
	RunID      string
	Subject    string
	Session    string
	Task       string
	Run        int
	Outcome    Outcome
	Reason     string
	Pairs      int
	Scans      []string
	Logs       []string
	Detail     string
	RecordedAt time.Time
}

// Counts tallies bucket outcomes of a run.
type Counts map[Outcome]int

// Attention returns the number of buckets needing an operator.
func (c Counts) Attention() int {
	return c[OutcomeManual] + c[OutcomeFailed]
}
