// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → validates, enforces ownership, paginates
//	Repository (data layer)  → reads/writes storage
//
// Services never see an *http.Request. The caller's identity arrives as an
// explicit userID argument taken from the session by the handler, so every
// rule here can be tested with plain function calls against the memory store.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/sakif/task-tracker/internal/apperror"
	"github.com/sakif/task-tracker/internal/model"
	"github.com/sakif/task-tracker/internal/repository"
)

const (
	MaxTitleLength  = 200
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// TaskService handles business logic for tasks.
type TaskService struct {
	repo   repository.TaskRepository
	logger *slog.Logger
}

// NewTaskService creates a TaskService over any TaskRepository.
func NewTaskService(repo repository.TaskRepository, logger *slog.Logger) *TaskService {
	return &TaskService{
		repo:   repo,
		logger: logger,
	}
}

// maxPage keeps (page-1)*pageSize from overflowing.
const maxPage = math.MaxInt32

// ListParams are the caller-supplied list controls. Defaults for absent
// values are the caller's job (see DefaultListParams); List only clamps.
type ListParams struct {
	Query    string
	Page     int
	PageSize int
}

// DefaultListParams is page 1 of 10 with no title filter.
func DefaultListParams() ListParams {
	return ListParams{Page: DefaultPage, PageSize: DefaultPageSize}
}

// normalize clamps the pagination window: page to [1, maxPage] and
// pageSize to [1, MaxPageSize].
func (p ListParams) normalize() ListParams {
	p.Page = min(max(p.Page, 1), maxPage)
	p.PageSize = min(max(p.PageSize, 1), MaxPageSize)
	return p
}

// List returns one page of the caller's tasks, newest first, plus the
// totals needed to render pagination.
//
// The query is matched as a literal case-insensitive substring of the title
// and is used exactly as given. Items is never nil so it always encodes as a
// JSON array.
func (s *TaskService) List(ctx context.Context, userID string, params ListParams) (*model.TaskPage, error) {
	if userID == "" {
		return nil, apperror.Unauthorized("authentication required")
	}
	params = params.normalize()

	filter := repository.TaskFilter{UserID: userID, TitleContains: params.Query}

	total, err := s.repo.CountTasks(ctx, filter)
	if err != nil {
		s.logger.Error("failed to count tasks",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("counting tasks: %w", err)
	}

	items, err := s.repo.ListTasks(ctx, filter, repository.ListOptions{
		Limit:  params.PageSize,
		Offset: (params.Page - 1) * params.PageSize,
	})
	if err != nil {
		s.logger.Error("failed to list tasks",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	if items == nil {
		items = []model.Task{}
	}

	return &model.TaskPage{
		Items:      items,
		Page:       params.Page,
		PageSize:   params.PageSize,
		Total:      total,
		TotalPages: (total + params.PageSize - 1) / params.PageSize,
	}, nil
}

// ValidateTitle trims a title and checks its length in characters (runes,
// not bytes, so "café" is 4).
func ValidateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", apperror.ValidationFailed("title", "title cannot be empty")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", apperror.ValidationFailed("title",
			fmt.Sprintf("title must be between 1 and %d characters", MaxTitleLength))
	}
	return title, nil
}

// Create validates and saves a new task owned by userID. The repository
// assigns ID and CreatedAt; new tasks always start not done.
func (s *TaskService) Create(ctx context.Context, userID, title string) (*model.Task, error) {
	if userID == "" {
		return nil, apperror.Unauthorized("authentication required")
	}

	title, err := ValidateTitle(title)
	if err != nil {
		return nil, err
	}

	task := &model.Task{
		Title:  title,
		Done:   false,
		UserID: userID,
	}
	if err := s.repo.CreateTask(ctx, task); err != nil {
		s.logger.Error("failed to create task",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating task: %w", err)
	}

	s.logger.Info("task created",
		slog.String("id", task.ID),
		slog.String("userID", userID),
	)
	return task, nil
}

// Toggle flips a task's done flag.
//
// ERROR ORDER:
// Existence is checked before ownership, so an unknown ID is always 404 and
// a foreign task is always 403, whoever asks.
//
// The flip itself is a single atomic update scoped to the owner, so two
// concurrent toggles always yield two flips. If the task disappears between
// the check and the update, the repository's NotFound is returned.
func (s *TaskService) Toggle(ctx context.Context, userID, id string) (*model.Task, error) {
	if userID == "" {
		return nil, apperror.Unauthorized("authentication required")
	}

	existing, err := s.repo.GetTaskByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.UserID != userID {
		s.logger.Warn("toggle refused: not the owner",
			slog.String("id", id),
			slog.String("userID", userID),
		)
		return nil, apperror.Forbidden("you can only modify your own tasks")
	}

	task, err := s.repo.ToggleTask(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("task toggled",
		slog.String("id", task.ID),
		slog.Bool("done", task.Done),
	)
	return task, nil
}
