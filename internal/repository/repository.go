// Package repository declares the storage contract the service layer depends on.
//
// Three packages implement it: repository/memory (in-process maps), and
// repository/sqlite and repository/postgres (database/sql). The service
// layer only ever sees these interfaces.
package repository

import (
	"context"

	"github.com/sakif/task-tracker/internal/model"
)

// TaskFilter selects a user's tasks.
//
// UserID is mandatory and always applied; implementations must never return
// a task whose owner differs from it. TitleContains, when non-empty, keeps
// only tasks whose title contains it as a case-insensitive LITERAL substring:
// characters such as %, _, quotes or SQL fragments carry no meaning.
type TaskFilter struct {
	UserID        string
	TitleContains string
}

type ListOptions struct {
	Limit  int
	Offset int
}

type TaskRepository interface {
	CreateTask(ctx context.Context, task *model.Task) error
	GetTaskByID(ctx context.Context, id string) (*model.Task, error)
	// ListTasks returns matching tasks, newest first.
	ListTasks(ctx context.Context, filter TaskFilter, opts ListOptions) ([]model.Task, error)
	CountTasks(ctx context.Context, filter TaskFilter) (int, error)
	// ToggleTask atomically flips done on the task with the given id owned by
	// userID and returns the updated row. Returns apperror.ErrNotFound when no
	// such row exists.
	ToggleTask(ctx context.Context, id, userID string) (*model.Task, error)
}

type UserRepository interface {
	// FindOrCreateUserByEmail returns the user with user.Email, inserting
	// user first if none exists. On return *user holds the persisted record.
	// Concurrent calls with the same email resolve to a single row.
	FindOrCreateUserByEmail(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// Store is everything the application needs from storage, plus lifecycle.
type Store interface {
	TaskRepository
	UserRepository
	Close() error
}
