package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		path string
		want PathClass
	}{
		{"/api/auth/signin/google", PathPublic},
		{"/api/auth/callback/credentials", PathPublic},
		{"/api/auth/session", PathPublic},
		{"/auth/signin", PathPublic},
		{"/static/css/app.css", PathPublic},
		{"/favicon.ico", PathPublic},
		{"/robots.txt", PathPublic},
		{"/api/tasks", PathAPI},
		{"/api/tasks/abc/toggle", PathAPI},
		{"/api/authority", PathAPI},
		{"/", PathPage},
		{"/auth/signin/extra", PathPage},
		{"/settings", PathPage},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.path))
		})
	}
}

func TestGuard(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := Guard(ok)

	tests := []struct {
		name         string
		path         string
		signedIn     bool
		wantStatus   int
		wantLocation string
	}{
		{name: "page without session redirects", path: "/", wantStatus: http.StatusTemporaryRedirect, wantLocation: SignInPath},
		{name: "page with session passes", path: "/", signedIn: true, wantStatus: http.StatusNoContent},
		{name: "sign-in page passes anonymously", path: "/auth/signin", wantStatus: http.StatusNoContent},
		{name: "auth callback passes anonymously", path: "/api/auth/callback/google", wantStatus: http.StatusNoContent},
		{name: "static asset passes anonymously", path: "/static/app.js", wantStatus: http.StatusNoContent},
		{name: "api passes anonymously", path: "/api/tasks", wantStatus: http.StatusNoContent},
		{name: "public path passes with session", path: "/robots.txt", signedIn: true, wantStatus: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.signedIn {
				req = req.WithContext(WithSession(req.Context(), &Session{UserID: "u1"}))
			}
			rr := httptest.NewRecorder()

			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantLocation, rr.Header().Get("Location"))
		})
	}
}
