package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const runColumns = "id, dataset, status, started_at, finished_at, error_message"

// StartRun records a new running run for dataset and returns it.
func (s *Store) StartRun(ctx context.Context, dataset string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Dataset:   dataset,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
	err := s.exec(ctx,
		`INSERT INTO runs (id, dataset, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Dataset, run.Status, formatTime(run.StartedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// FinishRun marks a run completed, or failed when runErr is non-nil.
func (s *Store) FinishRun(ctx context.Context, id string, runErr error) error {
	status := StatusCompleted
	message := ""
	if runErr != nil {
		status = StatusFailed
		message = runErr.Error()
	}
	err := s.exec(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, error_message = ? WHERE id = ?`,
		status, formatTime(time.Now()), nullableString(message), id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// GetRun fetches a run by id. It returns nil when the run does not exist.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// LatestRun returns the most recent run for dataset, or nil when none exists.
func (s *Store) LatestRun(ctx context.Context, dataset string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE dataset = ? ORDER BY started_at DESC, rowid DESC LIMIT 1`, dataset)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	return run, nil
}

// ListRuns returns up to limit runs for dataset, newest first.
func (s *Store) ListRuns(ctx context.Context, dataset string, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE dataset = ? ORDER BY started_at DESC, rowid DESC LIMIT ?`, dataset, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		id         string
		dataset    string
		status     string
		startedRaw sql.NullString
		finished   sql.NullString
		errMessage sql.NullString
	)
	if err := scanner.Scan(&id, &dataset, &status, &startedRaw, &finished, &errMessage); err != nil {
		return nil, err
	}
	return &Run{
		ID:           id,
		Dataset:      dataset,
		Status:       Status(status),
		StartedAt:    parseTime(startedRaw),
		FinishedAt:   parseTime(finished),
		ErrorMessage: errMessage.String,
	}, nil
}
