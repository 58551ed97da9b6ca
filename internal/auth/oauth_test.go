package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// fakeProvider stands in for an OAuth server: /token issues a fixed access
// token for code "good-code", and every other route is served by routes but
// only for requests presenting that token.
func fakeProvider(t *testing.T, routes map[string]any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("code") != "good-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-123", "token_type": "bearer"})
	})
	for path, body := range routes {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer tok-123" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(body)
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testEndpoint(srv *httptest.Server) oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:   srv.URL + "/authorize",
		TokenURL:  srv.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

func TestGoogleProvider_AuthURL(t *testing.T) {
	p := NewGoogleProvider("client-id", "secret", "http://localhost:8080/api/auth/callback/google")

	u, err := url.Parse(p.AuthURL("state-xyz"))
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "state-xyz", q.Get("state"))
	assert.Equal(t, "http://localhost:8080/api/auth/callback/google", q.Get("redirect_uri"))
	assert.Contains(t, q.Get("scope"), "email")
}

func TestGoogleProvider_Exchange(t *testing.T) {
	srv := fakeProvider(t, map[string]any{
		"/userinfo": map[string]any{
			"email": "Ada@Example.com", "email_verified": true,
			"name": "Ada Lovelace", "picture": "https://example.com/ada.png",
		},
	})
	p := NewGoogleProvider("id", "secret", "http://localhost/cb")
	p.config.Endpoint = testEndpoint(srv)
	p.userInfoURL = srv.URL + "/userinfo"

	id, err := p.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, &Identity{
		Provider: "google",
		Email:    "ada@example.com",
		Name:     "Ada Lovelace",
		Image:    "https://example.com/ada.png",
	}, id)
}

func TestGoogleProvider_Exchange_UnverifiedEmail(t *testing.T) {
	srv := fakeProvider(t, map[string]any{
		"/userinfo": map[string]any{"email": "ada@example.com", "email_verified": false},
	})
	p := NewGoogleProvider("id", "secret", "http://localhost/cb")
	p.config.Endpoint = testEndpoint(srv)
	p.userInfoURL = srv.URL + "/userinfo"

	_, err := p.Exchange(context.Background(), "good-code")
	assert.Error(t, err)
}

func TestGoogleProvider_Exchange_BadCode(t *testing.T) {
	srv := fakeProvider(t, nil)
	p := NewGoogleProvider("id", "secret", "http://localhost/cb")
	p.config.Endpoint = testEndpoint(srv)

	_, err := p.Exchange(context.Background(), "bad-code")
	assert.Error(t, err)
}

func TestGitHubProvider_Exchange_PublicEmail(t *testing.T) {
	srv := fakeProvider(t, map[string]any{
		"/user": map[string]any{"id": 42, "login": "octocat", "email": "octo@github.com", "avatar_url": "https://a/42"},
	})
	p := NewGitHubProvider("id", "secret", "http://localhost/cb")
	p.config.Endpoint = testEndpoint(srv)
	p.userURL = srv.URL + "/user"

	id, err := p.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "github", id.Provider)
	assert.Equal(t, "octo@github.com", id.Email)
	assert.Equal(t, "octocat", id.Name, "login is the fallback display name")
	assert.Equal(t, "https://a/42", id.Image)
}

func TestGitHubProvider_Exchange_HiddenEmailUsesPrimary(t *testing.T) {
	srv := fakeProvider(t, map[string]any{
		"/user": map[string]any{"id": 42, "login": "octocat", "name": "The Octocat"},
		"/user/emails": []map[string]any{
			{"email": "old@example.com", "primary": false, "verified": true},
			{"email": "Primary@Example.com", "primary": true, "verified": true},
		},
	})
	p := NewGitHubProvider("id", "secret", "http://localhost/cb")
	p.config.Endpoint = testEndpoint(srv)
	p.userURL = srv.URL + "/user"
	p.emailsURL = srv.URL + "/user/emails"

	id, err := p.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "primary@example.com", id.Email)
	assert.Equal(t, "The Octocat", id.Name)
}

func TestGitHubProvider_Exchange_InvalidUser(t *testing.T) {
	srv := fakeProvider(t, map[string]any{
		"/user": map[string]any{"id": 0, "login": ""},
	})
	p := NewGitHubProvider("id", "secret", "http://localhost/cb")
	p.config.Endpoint = testEndpoint(srv)
	p.userURL = srv.URL + "/user"

	_, err := p.Exchange(context.Background(), "good-code")
	assert.Error(t, err)
}
