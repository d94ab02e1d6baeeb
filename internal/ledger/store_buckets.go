package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// RecordBucket stores the outcome of one bucket for a run.
func (s *Store) RecordBucket(ctx context.Context, b Bucket) error {
	scans, err := encodeList(b.Scans)
	if err != nil {
		return fmt.Errorf("encode scans: %w", err)
	}
	logs, err := encodeList(b.Logs)
	if err != nil {
		return fmt.Errorf("encode logs: %w", err)
	}
	if b.RecordedAt.IsZero() {
		b.RecordedAt = time.Now()
	}
	err = s.exec(ctx,
		`INSERT INTO buckets (
            run_id, subject, session, task, run, outcome, reason,
            pairs, scans_json, logs_json, detail, recorded_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.RunID, b.Subject, b.Session, b.Task, b.Run, b.Outcome, nullableString(b.Reason),
		b.Pairs, scans, logs, nullableString(b.Detail), formatTime(b.RecordedAt),
	)
	if err != nil {
		return fmt.Errorf("insert bucket: %w", err)
	}
	return nil
}

// Buckets returns the buckets of a run in the order they were recorded.
func (s *Store) Buckets(ctx context.Context, runID string) ([]Bucket, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, subject, session, task, run, outcome, reason, pairs,
                scans_json, logs_json, detail, recorded_at
           FROM buckets WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	defer rows.Close()

	var out []Bucket
	for rows.Next() {
		var (
			b        Bucket
			outcome  string
			reason   sql.NullString
			scans    sql.NullString
			logs     sql.NullString
			detail   sql.NullString
			recorded sql.NullString
		)
		if err := rows.Scan(&b.RunID, &b.Subject, &b.Session, &b.Task, &b.Run, &outcome, &reason, &b.Pairs,
			&scans, &logs, &detail, &recorded); err != nil {
			return nil, fmt.Errorf("scan bucket: %w", err)
		}
		b.Outcome = Outcome(outcome)
		b.Reason = reason.String
		b.Detail = detail.String
		b.RecordedAt = parseTime(recorded)
		if b.Scans, err = decodeList(scans); err != nil {
			return nil, fmt.Errorf("decode scans: %w", err)
		}
		if b.Logs, err = decodeList(logs); err != nil {
			return nil, fmt.Errorf("decode logs: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// CountOutcomes tallies the bucket outcomes of a run.
func (s *Store) CountOutcomes(ctx context.Context, runID string) (Counts, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT outcome, COUNT(1) FROM buckets WHERE run_id = ? GROUP BY outcome`, runID)
	if err != nil {
		return nil, fmt.Errorf("count outcomes: %w", err)
	}
	defer rows.Close()

	counts := Counts{}
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scan outcome count: %w", err)
		}
		counts[Outcome(outcome)] = n
	}
	return counts, rows.Err()
}

func encodeList(values []string) (any, error) {
	if len(values) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func decodeList(raw sql.NullString) ([]string, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw.String), &out); err != nil {
		return nil, err
	}
	return out, nil
}
