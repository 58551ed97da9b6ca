package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/task-tracker/internal/auth"
	"github.com/sakif/task-tracker/internal/handler"
	"github.com/sakif/task-tracker/internal/repository"
	"github.com/sakif/task-tracker/internal/repository/memory"
	"github.com/sakif/task-tracker/internal/service"
)

const (
	credEmail    = "test@example.com"
	credPassword = "123"
)

// fakeOAuth is an OAuthProvider whose Exchange accepts only "good-code".
type fakeOAuth struct {
	name     string
	identity *auth.Identity
	err      error
}

func (f *fakeOAuth) Name() string { return f.name }

func (f *fakeOAuth) AuthURL(state string) string {
	return "https://provider.example/authorize?state=" + state
}

func (f *fakeOAuth) Exchange(_ context.Context, code string) (*auth.Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	if code != "good-code" {
		return nil, io.ErrUnexpectedEOF
	}
	return f.identity, nil
}

// testEnv is the full HTTP stack over a memory store, routed the way the
// server routes it.
type testEnv struct {
	store  repository.Store
	tokens *auth.TokenService
	auth   *service.AuthService
	oauth  *fakeOAuth
	router http.Handler
}

type envOption func(*envConfig)

type envConfig struct {
	store       repository.Store
	credentials bool
}

func withStore(s repository.Store) envOption { return func(c *envConfig) { c.store = s } }
func withoutCredentials() envOption        { return func(c *envConfig) { c.credentials = false } }

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	cfg := envConfig{store: memory.New(), credentials: true}
	for _, o := range opts {
		o(&cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	require.NoError(t, err)

	var creds *auth.CredentialsProvider
	if cfg.credentials {
		passwords := auth.NewPasswordServiceForTest(bcrypt.MinCost)
		hash, err := passwords.Hash(credPassword)
		require.NoError(t, err)
		creds = auth.NewCredentialsProvider(credEmail, hash, "", passwords)
	}
	oauth := &fakeOAuth{
		name:     "github",
		identity: &auth.Identity{Provider: "github", Email: "octo@example.com", Name: "Octocat"},
	}
	providers := auth.NewProviders(creds, oauth)

	authSvc := service.NewAuthService(cfg.store, tokens, logger)
	taskSvc := service.NewTaskService(cfg.store, logger)

	taskHandler := handler.NewTaskHandler(taskSvc, logger)
	authHandler := handler.NewAuthHandler(authSvc, providers, false, logger)
	pageHandler, err := handler.NewPageHandler(taskSvc, authSvc, providers, false, logger)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(auth.LoadSession(tokens))
	r.Use(auth.Guard)
	r.Get("/", pageHandler.HandleHome)
	r.Get("/auth/signin", pageHandler.HandleSignIn)
	r.Get("/robots.txt", pageHandler.HandleRobots)
	r.Route("/api/auth", func(r chi.Router) {
		r.Get("/providers", authHandler.HandleProviders)
		r.Get("/session", authHandler.HandleSession)
		r.Post("/signout", authHandler.HandleSignOut)
		r.Get("/signin/{provider}", authHandler.HandleSignIn)
		r.Get("/callback/{provider}", authHandler.HandleCallback)
		r.Post("/callback/credentials", authHandler.HandleCredentials)
	})
	r.Route("/api/tasks", func(r chi.Router) {
		r.Get("/", taskHandler.HandleList)
		r.Post("/", taskHandler.HandleCreate)
		r.Patch("/{id}/toggle", taskHandler.HandleToggle)
	})

	return &testEnv{store: cfg.store, tokens: tokens, auth: authSvc, oauth: oauth, router: r}
}

// signIn links a user for email and returns a cookie carrying its session.
func (e *testEnv) signIn(t *testing.T, email string) (*http.Cookie, string) {
	t.Helper()
	result, err := e.auth.SignIn(context.Background(), &auth.Identity{Provider: "google", Email: email, Name: email})
	require.NoError(t, err)
	return &http.Cookie{Name: auth.SessionCookie, Value: result.Token}, result.User.ID
}

// do sends a request through the router. body is sent as JSON when non-empty.
func (e *testEnv) do(t *testing.T, method, target, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), "body: %s", rr.Body.String())
	return v
}

func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
