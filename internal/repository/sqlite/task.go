package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/task-tracker/internal/apperror"
	"github.com/sakif/task-tracker/internal/model"
	"github.com/sakif/task-tracker/internal/repository"
)

const taskColumns = `id, title, done, created_at, user_id`

// CreateTask inserts a new task. ID and CreatedAt are assigned here and
// written back into *task.
//
// xid IDs are 20 URL-safe characters and sort by creation time, which we use
// as the tie-breaker when two tasks share a created_at value.
func (db *DB) CreateTask(ctx context.Context, task *model.Task) error {
	task.ID = xid.New().String()
	task.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO tasks (id, title, title_folded, done, created_at, user_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		task.ID,
		task.Title,
		strings.ToLower(task.Title),
		task.Done,
		task.CreatedAt,
		task.UserID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating task: %w", err)
	}

	return nil
}

// GetTaskByID returns apperror.ErrNotFound if no task has that ID.
func (db *DB) GetTaskByID(ctx context.Context, id string) (*model.Task, error) {
	task, err := scanTask(db.conn.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("task", id)
		}
		return nil, fmt.Errorf("sqlite: getting task %s: %w", id, err)
	}
	return task, nil
}

// where builds the WHERE clause for a filter. User input only ever travels as
// a bound parameter; the SQL text itself is fixed.
func where(filter repository.TaskFilter) (string, []any) {
	clause := `WHERE user_id = ?`
	args := []any{filter.UserID}
	if filter.TitleContains != "" {
		clause += ` AND instr(title_folded, ?) > 0`
		args = append(args, strings.ToLower(filter.TitleContains))
	}
	return clause, args
}

func (db *DB) ListTasks(ctx context.Context, filter repository.TaskFilter, opts repository.ListOptions) ([]model.Task, error) {
	// LIMIT -1 is SQLite for "no limit".
	limit := opts.Limit
	if limit <= 0 {
		limit = -1
	}
	clause, args := where(filter)
	args = append(args, limit, max(opts.Offset, 0))

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks `+clause+`
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]model.Task, 0, max(limit, 0))
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning task row: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating tasks: %w", err)
	}

	return tasks, nil
}

func (db *DB) CountTasks(ctx context.Context, filter repository.TaskFilter) (int, error) {
	clause, args := where(filter)

	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks `+clause, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting tasks: %w", err)
	}
	return n, nil
}

// ToggleTask flips done with a single UPDATE, so concurrent toggles can't
// both read the same old value. The follow-up SELECT runs in the same
// transaction to return exactly the row we wrote.
func (db *DB) ToggleTask(ctx context.Context, id, userID string) (*model.Task, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: beginning toggle: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE tasks SET done = NOT done WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: toggling task %s: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, apperror.NotFound("task", id)
	}

	task, err := scanTask(tx.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading toggled task %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: committing toggle: %w", err)
	}
	return task, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*model.Task, error) {
	var t model.Task
	if err := s.Scan(&t.ID, &t.Title, &t.Done, &t.CreatedAt, &t.UserID); err != nil {
		return nil, err
	}
	return &t, nil
}
