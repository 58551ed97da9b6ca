package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureSession records what LoadSession put in the context.
func captureSession(got **Session) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sess, ok := SessionFromContext(r.Context()); ok {
			*got = sess
		}
	})
}

func TestLoadSession_ValidCookie(t *testing.T) {
	ts := newTestTokenService(t)
	token, err := ts.Generate(testSession)
	require.NoError(t, err)

	var got *Session
	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})

	LoadSession(ts)(captureSession(&got)).ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, got)
	assert.Equal(t, testSession.UserID, got.UserID)
	assert.Equal(t, testSession.Email, got.Email)
}

func TestLoadSession_MissingOrInvalidCookieIsAnonymous(t *testing.T) {
	ts := newTestTokenService(t)
	expired, err := ts.GenerateWithDuration(testSession, -time.Minute)
	require.NoError(t, err)

	for name, cookie := range map[string]*http.Cookie{
		"no cookie": nil,
		"garbage":   {Name: SessionCookie, Value: "garbage"},
		"expired":   {Name: SessionCookie, Value: expired},
	} {
		t.Run(name, func(t *testing.T) {
			var got *Session
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				captureSession(&got).ServeHTTP(w, r)
			})
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if cookie != nil {
				req.AddCookie(cookie)
			}

			LoadSession(ts)(next).ServeHTTP(httptest.NewRecorder(), req)

			assert.True(t, called, "LoadSession must never block the request")
			assert.Nil(t, got)
		})
	}
}

func TestSessionFromContext_EmptyUserIDIsAnonymous(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := WithSession(req.Context(), &Session{UserID: ""})

	_, ok := SessionFromContext(ctx)
	assert.False(t, ok)
}

func TestSessionCookies(t *testing.T) {
	rr := httptest.NewRecorder()
	SetSessionCookie(rr, "tok", time.Hour, true)
	ClearSessionCookie(rr, true)

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 2)

	set := cookies[0]
	assert.Equal(t, SessionCookie, set.Name)
	assert.Equal(t, "tok", set.Value)
	assert.Equal(t, 3600, set.MaxAge)
	assert.True(t, set.HttpOnly)
	assert.True(t, set.Secure)

	cleared := cookies[1]
	assert.Equal(t, SessionCookie, cleared.Name)
	assert.Equal(t, "", cleared.Value)
	assert.Negative(t, cleared.MaxAge)
}
