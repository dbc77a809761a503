package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"autotask/internal/core"
)

var ErrRunNotFound = errors.New("run not found")

// Append journals a completed run and prunes records beyond the
// per-task retention limit.
func (s *Store) Append(ctx context.Context, rec *core.RunRecord) error {
	rec.CreatedAt = time.Now().UTC()
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO runs (id, task_name, trigger_kind, status, output, error, started_at, ended_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.TaskName, rec.Trigger, rec.Status, rec.Output, nullableString(rec.Error),
		rec.StartedAt.UTC().Format(time.RFC3339Nano), rec.EndedAt.UTC().Format(time.RFC3339Nano),
		rec.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if err := s.pruneRuns(ctx, rec.TaskName); err != nil {
		return fmt.Errorf("prune runs: %w", err)
	}
	return nil
}

// GetRun fetches a single run record by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*core.RunRecord, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, task_name, trigger_kind, status, output, error, started_at, ended_at, created_at
		FROM runs WHERE id = ?
	`, id)
	rec, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return rec, nil
}

// ListRuns returns recent runs for a task, newest first.
func (s *Store) ListRuns(ctx context.Context, taskName string, limit, offset int) ([]*core.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, task_name, trigger_kind, status, output, error, started_at, ended_at, created_at
		FROM runs
		WHERE task_name = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, taskName, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var recs []*core.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

// pruneRuns deletes run records beyond the retention limit for a task.
func (s *Store) pruneRuns(ctx context.Context, taskName string) error {
	if s.Retention < 1 {
		return nil
	}
	_, err := s.DB.ExecContext(ctx, `
		DELETE FROM runs
		WHERE task_name = ? AND id IN (
			SELECT id FROM runs
			WHERE task_name = ?
			ORDER BY created_at DESC
			LIMIT -1 OFFSET ?
		)
	`, taskName, taskName, s.Retention)
	if err != nil {
		return fmt.Errorf("delete old runs: %w", err)
	}
	return nil
}

func scanRun(scanner interface {
	Scan(dest ...any) error
}) (*core.RunRecord, error) {
	var (
		id        string
		taskName  string
		trigger   string
		status    string
		output    string
		errMsg    sql.NullString
		startedAt string
		endedAt   string
		createdAt string
	)
	if err := scanner.Scan(&id, &taskName, &trigger, &status, &output, &errMsg, &startedAt, &endedAt, &createdAt); err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	rec := &core.RunRecord{
		ID:        id,
		TaskName:  taskName,
		Trigger:   core.RunTrigger(trigger),
		Status:    core.TaskStatus(status),
		Output:    output,
		StartedAt: mustParseTime(startedAt),
		EndedAt:   mustParseTime(endedAt),
		CreatedAt: mustParseTime(createdAt),
	}
	if errMsg.Valid {
		rec.Error = &errMsg.String
	}
	return rec, nil
}

func nullableString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

func mustParseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		panic(fmt.Sprintf("invalid stored time %q: %v", value, err))
	}
	return t
}
