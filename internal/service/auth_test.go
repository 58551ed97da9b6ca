package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/task-tracker/internal/apperror"
	"github.com/sakif/task-tracker/internal/auth"
	"github.com/sakif/task-tracker/internal/model"
	"github.com/sakif/task-tracker/internal/repository/memory"
)

// failingUserRepo wraps the memory store and fails user linking on demand,
// standing in for a database outage.
type failingUserRepo struct {
	*memory.Store
	linkErr error
}

func (f *failingUserRepo) FindOrCreateUserByEmail(ctx context.Context, u *model.User) error {
	if f.linkErr != nil {
		return f.linkErr
	}
	return f.Store.FindOrCreateUserByEmail(ctx, u)
}

func newTestAuthService(t *testing.T, repo *failingUserRepo) *AuthService {
	t.Helper()
	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	require.NoError(t, err)
	return NewAuthService(repo, ts, quietLogger())
}

func TestSignIn_NewUser(t *testing.T) {
	repo := &failingUserRepo{Store: memory.New()}
	svc := newTestAuthService(t, repo)

	result, err := svc.SignIn(context.Background(), &auth.Identity{
		Provider: "github", Email: "Octo@GitHub.com", Name: "Octocat", Image: "https://a/42",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.User.ID)
	assert.Equal(t, "octo@github.com", result.User.Email)
	assert.Equal(t, "Octocat", result.User.Name)
	assert.Equal(t, result.User.ID, result.Session.UserID)
	assert.False(t, result.Session.ExpiresAt.IsZero())
	assert.NotEmpty(t, result.Token)
}

func TestSignIn_TokenEncodesInternalUserID(t *testing.T) {
	repo := &failingUserRepo{Store: memory.New()}
	svc := newTestAuthService(t, repo)

	result, err := svc.SignIn(context.Background(), &auth.Identity{Provider: "google", Email: "a@example.com"})
	require.NoError(t, err)

	sess, err := svc.tokens.Validate(result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, sess.UserID)
	assert.Equal(t, "a@example.com", sess.Email)
}

func TestSignIn_SameEmailAcrossProvidersLinksOneUser(t *testing.T) {
	repo := &failingUserRepo{Store: memory.New()}
	svc := newTestAuthService(t, repo)
	ctx := context.Background()

	first, err := svc.SignIn(ctx, &auth.Identity{Provider: "google", Email: "ada@example.com", Name: "Ada"})
	require.NoError(t, err)
	second, err := svc.SignIn(ctx, &auth.Identity{Provider: "github", Email: " ADA@example.com ", Name: "ada-gh"})
	require.NoError(t, err)

	assert.Equal(t, first.User.ID, second.User.ID)
	assert.Equal(t, "Ada", second.Session.Name, "existing profile is not overwritten")
}

func TestSignIn_ConcurrentFirstSignInsLinkOneUser(t *testing.T) {
	repo := &failingUserRepo{Store: memory.New()}
	svc := newTestAuthService(t, repo)

	const n = 10
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := svc.SignIn(context.Background(), &auth.Identity{Provider: "credentials", Email: "race@example.com"})
			if assert.NoError(t, err) {
				ids[i] = result.User.ID
			}
		}()
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestSignIn_Rejects(t *testing.T) {
	repo := &failingUserRepo{Store: memory.New()}
	svc := newTestAuthService(t, repo)

	_, err := svc.SignIn(context.Background(), nil)
	assert.Error(t, err)

	_, err = svc.SignIn(context.Background(), &auth.Identity{Provider: "github", Email: "  "})
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestSignIn_RepositoryError(t *testing.T) {
	dbErr := errors.New("database is on fire")
	repo := &failingUserRepo{Store: memory.New(), linkErr: dbErr}
	svc := newTestAuthService(t, repo)

	_, err := svc.SignIn(context.Background(), &auth.Identity{Provider: "github", Email: "a@example.com"})
	assert.ErrorIs(t, err, dbErr)
}

func TestGetUserByID(t *testing.T) {
	repo := &failingUserRepo{Store: memory.New()}
	svc := newTestAuthService(t, repo)
	ctx := context.Background()

	result, err := svc.SignIn(ctx, &auth.Identity{Provider: "google", Email: "findme@example.com", Name: "Find Me"})
	require.NoError(t, err)

	user, err := svc.GetUserByID(ctx, result.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "Find Me", user.Name)

	_, err = svc.GetUserByID(ctx, "")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	_, err = svc.GetUserByID(ctx, "non-existent-id")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
