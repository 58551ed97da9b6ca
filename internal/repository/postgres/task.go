package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/task-tracker/internal/apperror"
	"github.com/sakif/task-tracker/internal/model"
	"github.com/sakif/task-tracker/internal/repository"
)

const taskColumns = `id, title, done, created_at, user_id`

func (db *DB) CreateTask(ctx context.Context, task *model.Task) error {
	task.ID = xid.New().String()
	task.CreatedAt = time.Now().UTC()

	const q = `
INSERT INTO tasks (id, title, done, created_at, user_id)
VALUES ($1, $2, $3, $4, $5);
`
	if _, err := db.conn.ExecContext(ctx, q, task.ID, task.Title, task.Done, task.CreatedAt, task.UserID); err != nil {
		return fmt.Errorf("postgres: creating task: %w", err)
	}
	return nil
}

func (db *DB) GetTaskByID(ctx context.Context, id string) (*model.Task, error) {
	t, err := scanTask(db.conn.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("task", id)
		}
		return nil, fmt.Errorf("postgres: getting task %s: %w", id, err)
	}
	return t, nil
}

// where returns the fixed WHERE clause for filter and its arguments.
func where(filter repository.TaskFilter) (string, []any) {
	clause := `WHERE user_id = $1`
	args := []any{filter.UserID}
	if filter.TitleContains != "" {
		clause += ` AND strpos(lower(title), lower($2::text)) > 0`
		args = append(args, filter.TitleContains)
	}
	return clause, args
}

func (db *DB) ListTasks(ctx context.Context, filter repository.TaskFilter, opts repository.ListOptions) ([]model.Task, error) {
	clause, args := where(filter)

	// LIMIT NULL is PostgreSQL for "no limit".
	var limit any
	if opts.Limit > 0 {
		limit = opts.Limit
	}
	n := len(args)
	args = append(args, limit, max(opts.Offset, 0))

	q := fmt.Sprintf(`SELECT %s FROM tasks %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		taskColumns, clause, n+1, n+2)

	rows, err := db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]model.Task, 0, max(opts.Limit, 0))
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scanning task row: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating tasks: %w", err)
	}
	return tasks, nil
}

func (db *DB) CountTasks(ctx context.Context, filter repository.TaskFilter) (int, error) {
	clause, args := where(filter)

	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks `+clause, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: counting tasks: %w", err)
	}
	return n, nil
}

// ToggleTask flips done in one statement; the row lock taken by UPDATE
// serializes concurrent toggles of the same task.
func (db *DB) ToggleTask(ctx context.Context, id, userID string) (*model.Task, error) {
	t, err := scanTask(db.conn.QueryRowContext(ctx,
		`UPDATE tasks SET done = NOT done WHERE id = $1 AND user_id = $2 RETURNING `+taskColumns,
		id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("task", id)
		}
		return nil, fmt.Errorf("postgres: toggling task %s: %w", id, err)
	}
	return t, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*model.Task, error) {
	var t model.Task
	if err := s.Scan(&t.ID, &t.Title, &t.Done, &t.CreatedAt, &t.UserID); err != nil {
		return nil, err
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return &t, nil
}
