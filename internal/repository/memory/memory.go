// Package memory implements the repository interfaces with in-process maps.
//
// It follows exactly the same query contract as the SQL stores (owner
// filter, literal case-insensitive title match, newest-first order, atomic
// toggle) so it doubles as the fake for service and handler tests, and as a
// zero-setup backend with DB_DRIVER=memory. Data is lost on restart.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/task-tracker/internal/apperror"
	"github.com/sakif/task-tracker/internal/model"
	"github.com/sakif/task-tracker/internal/repository"
)

var _ repository.Store = (*Store)(nil)

// Store is safe for concurrent use. Values are copied in and out so callers
// can never mutate stored records through a returned pointer.
type Store struct {
	mu      sync.RWMutex
	tasks   map[string]model.Task
	users   map[string]model.User
	byEmail map[string]string // email → user ID

	// now is swappable so tests can pin creation order.
	now func() time.Time
}

func New() *Store {
	return &Store{
		tasks:   make(map[string]model.Task),
		users:   make(map[string]model.User),
		byEmail: make(map[string]string),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) CreateTask(_ context.Context, task *model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task.ID = xid.New().String()
	task.CreatedAt = s.now()
	s.tasks[task.ID] = *task
	return nil
}

func (s *Store) GetTaskByID(_ context.Context, id string) (*model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, apperror.NotFound("task", id)
	}
	return &t, nil
}

func (s *Store) ListTasks(_ context.Context, filter repository.TaskFilter, opts repository.ListOptions) ([]model.Task, error) {
	s.mu.RLock()
	matched := s.match(filter)
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	offset := max(opts.Offset, 0)
	if offset >= len(matched) {
		return []model.Task{}, nil
	}
	matched = matched[offset:]
	if opts.Limit > 0 && opts.Limit < len(matched) {
		matched = matched[:opts.Limit]
	}
	return matched, nil
}

func (s *Store) CountTasks(_ context.Context, filter repository.TaskFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.match(filter)), nil
}

// match must be called with s.mu held.
func (s *Store) match(filter repository.TaskFilter) []model.Task {
	needle := strings.ToLower(filter.TitleContains)
	out := make([]model.Task, 0)
	for _, t := range s.tasks {
		if t.UserID != filter.UserID {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(t.Title), needle) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (s *Store) ToggleTask(_ context.Context, id, userID string) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return nil, apperror.NotFound("task", id)
	}
	t.Done = !t.Done
	s.tasks[id] = t
	return &t, nil
}

func (s *Store) FindOrCreateUserByEmail(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byEmail[user.Email]; ok {
		*user = s.users[id]
		return nil
	}

	user.ID = xid.New().String()
	user.CreatedAt = s.now()
	s.users[user.ID] = *user
	s.byEmail[user.Email] = user.ID
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, apperror.NotFound("user", email)
	}
	u := s.users[id]
	return &u, nil
}
