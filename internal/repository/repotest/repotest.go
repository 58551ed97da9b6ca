// Package repotest holds the behavioral tests every repository.Store
// implementation must pass. Each backend's _test.go calls Run with a
// constructor for a fresh, empty store.
package repotest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/task-tracker/internal/apperror"
	"github.com/sakif/task-tracker/internal/model"
	"github.com/sakif/task-tracker/internal/repository"
)

// NewStoreFunc returns an empty store. It should register its own cleanup.
type NewStoreFunc func(t *testing.T) repository.Store

// Run executes the whole contract suite against stores built by newStore.
func Run(t *testing.T, newStore NewStoreFunc) {
	t.Run("CreateTask sets ID and CreatedAt", func(t *testing.T) { testCreateTask(t, newStore(t)) })
	t.Run("GetTaskByID not found", func(t *testing.T) { testGetTaskNotFound(t, newStore(t)) })
	t.Run("ListTasks newest first", func(t *testing.T) { testListOrder(t, newStore(t)) })
	t.Run("ListTasks owner isolation", func(t *testing.T) { testOwnerIsolation(t, newStore(t)) })
	t.Run("ListTasks case-insensitive substring", func(t *testing.T) { testTitleFilter(t, newStore(t)) })
	t.Run("ListTasks literal metacharacters", func(t *testing.T) { testLiteralMetacharacters(t, newStore(t)) })
	t.Run("ListTasks pagination window", func(t *testing.T) { testPagination(t, newStore(t)) })
	t.Run("ToggleTask flips", func(t *testing.T) { testToggle(t, newStore(t)) })
	t.Run("ToggleTask wrong owner", func(t *testing.T) { testToggleWrongOwner(t, newStore(t)) })
	t.Run("ToggleTask concurrent flips", func(t *testing.T) { testToggleConcurrent(t, newStore(t)) })
	t.Run("FindOrCreateUserByEmail", func(t *testing.T) { testFindOrCreateUser(t, newStore(t)) })
	t.Run("GetUser not found", func(t *testing.T) { testGetUserNotFound(t, newStore(t)) })
}

// CreateUser is a helper that links a user by email and fails the test on error.
func CreateUser(t *testing.T, s repository.Store, email string) *model.User {
	t.Helper()
	u := &model.User{Email: email, Name: email}
	require.NoError(t, s.FindOrCreateUserByEmail(context.Background(), u))
	return u
}

// CreateTask is a helper that stores a task for userID and fails the test on error.
func CreateTask(t *testing.T, s repository.Store, userID, title string) *model.Task {
	t.Helper()
	task := &model.Task{Title: title, UserID: userID}
	require.NoError(t, s.CreateTask(context.Background(), task))
	return task
}

func titles(tasks []model.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.Title
	}
	return out
}

func testCreateTask(t *testing.T, s repository.Store) {
	ctx := context.Background()
	u := CreateUser(t, s, "a@example.com")

	task := &model.Task{Title: "write tests", UserID: u.ID}
	require.NoError(t, s.CreateTask(ctx, task))

	assert.NotEmpty(t, task.ID)
	assert.False(t, task.CreatedAt.IsZero())

	found, err := s.GetTaskByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "write tests", found.Title)
	assert.Equal(t, u.ID, found.UserID)
	assert.False(t, found.Done)
}

func testGetTaskNotFound(t *testing.T, s repository.Store) {
	_, err := s.GetTaskByID(context.Background(), "does-not-exist")
	assert.True(t, errors.Is(err, apperror.ErrNotFound), "err = %v, want ErrNotFound", err)
}

func testListOrder(t *testing.T, s repository.Store) {
	u := CreateUser(t, s, "a@example.com")
	CreateTask(t, s, u.ID, "first")
	CreateTask(t, s, u.ID, "second")
	CreateTask(t, s, u.ID, "third")

	got, err := s.ListTasks(context.Background(), repository.TaskFilter{UserID: u.ID}, repository.ListOptions{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"third", "second", "first"}, titles(got))
}

func testOwnerIsolation(t *testing.T, s repository.Store) {
	ctx := context.Background()
	a := CreateUser(t, s, "a@example.com")
	b := CreateUser(t, s, "b@example.com")
	CreateTask(t, s, a.ID, "a's task")
	CreateTask(t, s, b.ID, "b's task")

	got, err := s.ListTasks(ctx, repository.TaskFilter{UserID: b.ID}, repository.ListOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, b.ID, got[0].UserID)

	n, err := s.CountTasks(ctx, repository.TaskFilter{UserID: b.ID, TitleContains: "task"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func testTitleFilter(t *testing.T, s repository.Store) {
	ctx := context.Background()
	u := CreateUser(t, s, "a@example.com")
	CreateTask(t, s, u.ID, "Buy Milk")
	CreateTask(t, s, u.ID, "buy eggs")
	CreateTask(t, s, u.ID, "DINNER")

	filter := repository.TaskFilter{UserID: u.ID, TitleContains: "buy"}
	got, err := s.ListTasks(ctx, filter, repository.ListOptions{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"buy eggs", "Buy Milk"}, titles(got))

	n, err := s.CountTasks(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err = s.ListTasks(ctx, repository.TaskFilter{UserID: u.ID, TitleContains: "NNE"}, repository.ListOptions{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"DINNER"}, titles(got))
}

func testLiteralMetacharacters(t *testing.T, s repository.Store) {
	ctx := context.Background()
	a := CreateUser(t, s, "a@example.com")
	b := CreateUser(t, s, "b@example.com")
	CreateTask(t, s, a.ID, "100% done")
	CreateTask(t, s, a.ID, "snake_case rename")
	CreateTask(t, s, a.ID, "plain")
	CreateTask(t, s, b.ID, "other user's secret")

	tests := []struct {
		q    string
		want []string
	}{
		{q: "%", want: []string{"100% done"}},
		{q: "_", want: []string{"snake_case rename"}},
		{q: `\`, want: []string{}},
		{q: "'; DROP TABLE tasks; --", want: []string{}},
		{q: "' OR '1'='1", want: []string{}},
		{q: "secret", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("q=%q", tt.q), func(t *testing.T) {
			got, err := s.ListTasks(ctx, repository.TaskFilter{UserID: a.ID, TitleContains: tt.q}, repository.ListOptions{Limit: 10})
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(got))
		})
	}

	// The table must still be there and intact.
	n, err := s.CountTasks(ctx, repository.TaskFilter{UserID: a.ID})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func testPagination(t *testing.T, s repository.Store) {
	ctx := context.Background()
	u := CreateUser(t, s, "a@example.com")
	for i := 1; i <= 25; i++ {
		CreateTask(t, s, u.ID, fmt.Sprintf("task %02d", i))
	}
	filter := repository.TaskFilter{UserID: u.ID}

	page2, err := s.ListTasks(ctx, filter, repository.ListOptions{Limit: 10, Offset: 10})
	require.NoError(t, err)
	require.Len(t, page2, 10)
	assert.Equal(t, "task 15", page2[0].Title)
	assert.Equal(t, "task 06", page2[9].Title)

	page3, err := s.ListTasks(ctx, filter, repository.ListOptions{Limit: 10, Offset: 20})
	require.NoError(t, err)
	assert.Len(t, page3, 5)

	beyond, err := s.ListTasks(ctx, filter, repository.ListOptions{Limit: 10, Offset: 30})
	require.NoError(t, err)
	assert.NotNil(t, beyond)
	assert.Empty(t, beyond)

	n, err := s.CountTasks(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, 25, n)
}

func testToggle(t *testing.T, s repository.Store) {
	ctx := context.Background()
	u := CreateUser(t, s, "a@example.com")
	task := CreateTask(t, s, u.ID, "flip me")

	first, err := s.ToggleTask(ctx, task.ID, u.ID)
	require.NoError(t, err)
	assert.True(t, first.Done)
	assert.Equal(t, task.ID, first.ID)
	assert.Equal(t, "flip me", first.Title)

	second, err := s.ToggleTask(ctx, task.ID, u.ID)
	require.NoError(t, err)
	assert.False(t, second.Done)

	stored, err := s.GetTaskByID(ctx, task.ID)
	require.NoError(t, err)
	assert.False(t, stored.Done)
}

func testToggleWrongOwner(t *testing.T, s repository.Store) {
	ctx := context.Background()
	a := CreateUser(t, s, "a@example.com")
	b := CreateUser(t, s, "b@example.com")
	task := CreateTask(t, s, a.ID, "a's task")

	_, err := s.ToggleTask(ctx, task.ID, b.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound), "err = %v, want ErrNotFound", err)

	stored, err := s.GetTaskByID(ctx, task.ID)
	require.NoError(t, err)
	assert.False(t, stored.Done, "toggle by another user must not change the task")
}

func testToggleConcurrent(t *testing.T, s repository.Store) {
	ctx := context.Background()
	u := CreateUser(t, s, "a@example.com")
	task := CreateTask(t, s, u.ID, "race")

	const flips = 10
	var wg sync.WaitGroup
	errs := make(chan error, flips)
	for range flips {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.ToggleTask(ctx, task.ID, u.ID); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// An even number of flips must land back on false.
	stored, err := s.GetTaskByID(ctx, task.ID)
	require.NoError(t, err)
	assert.False(t, stored.Done)
}

func testFindOrCreateUser(t *testing.T, s repository.Store) {
	ctx := context.Background()

	first := &model.User{Email: "new@example.com", Name: "New User", Image: "https://example.com/a.png"}
	require.NoError(t, s.FindOrCreateUserByEmail(ctx, first))
	assert.NotEmpty(t, first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	// A second sign-in with the same email resolves to the same row and does
	// not overwrite the stored profile.
	second := &model.User{Email: "new@example.com", Name: "Someone Else"}
	require.NoError(t, s.FindOrCreateUserByEmail(ctx, second))
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "New User", second.Name)
	assert.Equal(t, "https://example.com/a.png", second.Image)

	byID, err := s.GetUserByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", byID.Email)

	byEmail, err := s.GetUserByEmail(ctx, "new@example.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID, byEmail.ID)
}

func testGetUserNotFound(t *testing.T, s repository.Store) {
	ctx := context.Background()

	_, err := s.GetUserByID(ctx, "nobody")
	assert.True(t, errors.Is(err, apperror.ErrNotFound), "err = %v, want ErrNotFound", err)

	_, err = s.GetUserByEmail(ctx, "nobody@example.com")
	assert.True(t, errors.Is(err, apperror.ErrNotFound), "err = %v, want ErrNotFound", err)
}
