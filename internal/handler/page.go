// Package handler contains the HTTP handlers.
//
// HANDLER RESPONSIBILITIES:
//  1. Parse the incoming request (session, query params, body)
//  2. Call the service layer with plain Go values
//  3. Write the response (status code, headers, JSON or HTML)
//
// Handlers hold no business rules. Validation, ownership and pagination all
// live in internal/service.
package handler

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/task-tracker/internal/apperror"
	"github.com/sakif/task-tracker/internal/auth"
	"github.com/sakif/task-tracker/internal/model"
	"github.com/sakif/task-tracker/internal/service"
)

//go:embed templates/*.html
var templateFS embed.FS

var providerLabels = map[string]string{
	"google":      "Google",
	"github":      "GitHub",
	"credentials": "email",
}

var templateFuncs = template.FuncMap{
	"providerLabel": func(name string) string {
		if label, ok := providerLabels[name]; ok {
			return label
		}
		return name
	},
}

// signInErrors maps the ?error= codes the auth handlers redirect with to
// what the sign-in page shows.
var signInErrors = map[string]string{
	"CredentialsSignin": "Sign in failed. Check that the email and password are correct.",
	"OAuthCallback":     "Sign in with that provider failed. Please try again.",
	"AccessDenied":      "Sign in was cancelled.",
}

// PageHandler renders the two server-side pages: home and sign-in.
//
// Templates are parsed once at startup. Each page is its own set of base.html
// plus the page file, since every page defines the same "content" block.
type PageHandler struct {
	home      *template.Template
	signIn    *template.Template
	tasks     *service.TaskService
	users     *service.AuthService
	providers *auth.Providers
	secure    bool
	logger    *slog.Logger
}

// NewPageHandler parses the embedded templates.
func NewPageHandler(
	tasks *service.TaskService,
	users *service.AuthService,
	providers *auth.Providers,
	cookieSecure bool,
	logger *slog.Logger,
) (*PageHandler, error) {
	parse := func(page string) (*template.Template, error) {
		return template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/base.html", "templates/"+page)
	}

	home, err := parse("home.html")
	if err != nil {
		return nil, fmt.Errorf("parsing home template: %w", err)
	}
	signIn, err := parse("signin.html")
	if err != nil {
		return nil, fmt.Errorf("parsing sign-in template: %w", err)
	}

	return &PageHandler{
		home:      home,
		signIn:    signIn,
		tasks:     tasks,
		users:     users,
		providers: providers,
		secure:    cookieSecure,
		logger:    logger,
	}, nil
}

func (h *PageHandler) render(w http.ResponseWriter, tmpl *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		h.logger.Error("failed to render template", slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

type homeData struct {
	Title    string
	User     *model.User
	Query    string
	Page     *model.TaskPage
	PrevPage int
	NextPage int
}

// HandleHome renders the signed-in user's task list.
//
// HTTP: GET /?q=&page=
//
// The route guard has already redirected anonymous browsers, so a session is
// present. If its user no longer exists (the memory store restarted, say)
// the stale cookie is cleared and the browser is sent to sign in again.
func (h *PageHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, auth.SignInPath, http.StatusTemporaryRedirect)
		return
	}

	user, err := h.users.GetUserByID(r.Context(), sess.UserID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			auth.ClearSessionCookie(w, h.secure)
			http.Redirect(w, r, auth.SignInPath, http.StatusTemporaryRedirect)
			return
		}
		h.logger.Error("home: loading user", slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	params := service.DefaultListParams()
	params.Query = r.URL.Query().Get("q")
	if n, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
		params.Page = n
	}

	page, err := h.tasks.List(r.Context(), sess.UserID, params)
	if err != nil {
		h.logger.Error("home: listing tasks", slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	h.render(w, h.home, homeData{
		Title:    "Tasks",
		User:     user,
		Query:    params.Query,
		Page:     page,
		PrevPage: page.Page - 1,
		NextPage: page.Page + 1,
	})
}

type signInData struct {
	Title       string
	Error       string
	OAuth       []string
	Credentials bool
}

// HandleSignIn renders the provider picker.
//
// HTTP: GET /auth/signin?error=CredentialsSignin
//
// Browsers that already hold a session go straight home.
func (h *PageHandler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.SessionFromContext(r.Context()); ok {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	data := signInData{
		Title:       "Sign in",
		Credentials: h.providers.Credentials != nil,
	}
	for _, name := range h.providers.Names() {
		if _, isOAuth := h.providers.Lookup(name); isOAuth {
			data.OAuth = append(data.OAuth, name)
		}
	}
	if code := r.URL.Query().Get("error"); code != "" {
		msg, known := signInErrors[code]
		if !known {
			msg = "Sign in failed."
		}
		data.Error = msg
	}

	h.render(w, h.signIn, data)
}

// HandleRobots keeps crawlers out of the API.
//
// HTTP: GET /robots.txt
func (h *PageHandler) HandleRobots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, "User-agent: *\nDisallow: /api/\n")
}
