package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"baton/pkg/models"
)

// RunActive is the status stored while a run is still in flight.
const RunActive models.RunStatus = "active"

// CreateRun records the start of an orchestration run.
func (db *DB) CreateRun(runID string, taskCount int, startedAt time.Time) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		INSERT INTO runs (id, status, task_count, started_at)
		VALUES (?, ?, ?, ?)
	`, runID, string(RunActive), taskCount, startedAt.UTC())
	if err != nil {
		return fmt.Errorf("create run %s: %w", runID, err)
	}
	return nil
}

// FinishRun records the terminal status of a run.
func (db *DB) FinishRun(runID string, status models.RunStatus, finishedAt time.Time) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		UPDATE runs SET status = ?, finished_at = ? WHERE id = ?
	`, string(status), finishedAt.UTC(), runID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	return nil
}

// RecordOutcome persists one task's final record for a run.
// The output payload is stored as JSON.
func (db *DB) RecordOutcome(runID string, outcome models.TaskOutcome) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	var outputJSON []byte
	if outcome.Output != nil {
		var err error
		outputJSON, err = json.Marshal(outcome.Output)
		if err != nil {
			return fmt.Errorf("marshal output for task %s: %w", outcome.ID, err)
		}
	}

	_, err := db.conn.Exec(`
		INSERT INTO task_outcomes
			(run_id, task_id, capability, state, output, error, skip_reason, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, outcome.ID, outcome.Capability, string(outcome.State),
		nullableString(string(outputJSON)), nullableString(outcome.Error),
		nullableString(outcome.SkipReason), nullableTime(outcome.StartedAt), nullableTime(outcome.FinishedAt))
	if err != nil {
		return fmt.Errorf("record outcome for task %s: %w", outcome.ID, err)
	}
	return nil
}

// GetRun returns a persisted run by id.
func (db *DB) GetRun(runID string) (*Run, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	row := db.conn.QueryRow(`
		SELECT id, status, task_count, started_at, finished_at
		FROM runs WHERE id = ?
	`, runID)
	return scanRun(row)
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]*Run, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.Query(`
		SELECT id, status, task_count, started_at, finished_at
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetOutcomes returns the task outcomes of a run, ascending by task id.
func (db *DB) GetOutcomes(runID string) ([]models.TaskOutcome, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.Query(`
		SELECT task_id, capability, state, output, error, skip_reason, started_at, finished_at
		FROM task_outcomes WHERE run_id = ? ORDER BY task_id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("get outcomes for run %s: %w", runID, err)
	}
	defer rows.Close()

	var outcomes []models.TaskOutcome
	for rows.Next() {
		var o models.TaskOutcome
		var stateStr string
		var output, errMsg, skipReason sql.NullString
		var startedAt, finishedAt sql.NullTime

		if err := rows.Scan(&o.ID, &o.Capability, &stateStr, &output, &errMsg, &skipReason, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.State = models.TaskState(stateStr)
		if output.Valid && output.String != "" {
			if err := json.Unmarshal([]byte(output.String), &o.Output); err != nil {
				return nil, fmt.Errorf("unmarshal output for task %s: %w", o.ID, err)
			}
		}
		o.Error = errMsg.String
		o.SkipReason = skipReason.String
		if startedAt.Valid {
			t := startedAt.Time
			o.StartedAt = &t
		}
		if finishedAt.Valid {
			t := finishedAt.Time
			o.FinishedAt = &t
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// scanner abstracts sql.Row and sql.Rows for scanRun.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var run Run
	var statusStr string
	var finishedAt sql.NullTime

	if err := s.Scan(&run.ID, &statusStr, &run.TaskCount, &run.StartedAt, &finishedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run not found")
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	run.Status = models.RunStatus(statusStr)
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// Verify DB implements Store at compile time.
var _ Store = (*DB)(nil)
