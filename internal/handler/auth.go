package handler

import (
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/xid"

	"github.com/sakif/task-tracker/internal/auth"
	"github.com/sakif/task-tracker/internal/service"
)

const (
	stateCookie    = "oauth_state"
	stateCookieTTL = 10 * time.Minute
)

// AuthHandler serves /api/auth/*: OAuth redirects and callbacks, credential
// sign-in, the current session, sign-out, and the provider list.
//
// Every sign-in path ends in AuthService.SignIn, which links the identity
// to a user and returns the token this handler stores in the session
// cookie.
type AuthHandler struct {
	auth         *service.AuthService
	providers    *auth.Providers
	cookieSecure bool
	logger       *slog.Logger
}

// NewAuthHandler creates an AuthHandler. cookieSecure sets the Secure flag
// on every cookie it writes and should be true behind HTTPS.
func NewAuthHandler(authSvc *service.AuthService, providers *auth.Providers, cookieSecure bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:         authSvc,
		providers:    providers,
		cookieSecure: cookieSecure,
		logger:       logger,
	}
}

// signInError sends the browser back to the sign-in page with an error
// code the page knows how to display.
func signInError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, auth.SignInPath+"?error="+url.QueryEscape(code), http.StatusSeeOther)
}

// HandleSignIn redirects the browser to an OAuth provider's consent page.
//
// HTTP: GET /api/auth/signin/{provider}
//
// CSRF PROTECTION VIA STATE:
// A random state goes both into a short-lived HttpOnly cookie and into the
// authorization URL. HandleCallback only proceeds when the two match, which
// proves the flow was started by this browser on this site.
func (h *AuthHandler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	provider, ok := h.providers.Lookup(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "unknown sign-in provider " + name,
		})
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, provider.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleCallback completes an OAuth sign-in.
//
// HTTP: GET /api/auth/callback/{provider}?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter against the cookie (CSRF check)
//  2. Exchange the code for the provider's Identity
//  3. Link the Identity to a user and issue a session token
//  4. Store the token in the session cookie and redirect home
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	provider, ok := h.providers.Lookup(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "unknown sign-in provider " + name,
		})
		return
	}

	query := r.URL.Query()
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || query.Get("state") != cookie.Value {
		h.logger.Warn("auth callback: state mismatch", slog.String("provider", name))
		writeBadRequest(w, "invalid OAuth state")
		return
	}

	// The state is single-use.
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	if errParam := query.Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization",
			slog.String("provider", name),
			slog.String("error", errParam),
		)
		signInError(w, r, "AccessDenied")
		return
	}

	code := query.Get("code")
	if code == "" {
		writeBadRequest(w, "missing OAuth code")
		return
	}

	identity, err := provider.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: exchange failed",
			slog.String("provider", name),
			slog.String("error", err.Error()),
		)
		signInError(w, r, "OAuthCallback")
		return
	}

	result, err := h.auth.SignIn(r.Context(), identity)
	if err != nil {
		h.logger.Error("auth callback: sign-in failed",
			slog.String("provider", name),
			slog.String("error", err.Error()),
		)
		signInError(w, r, "OAuthCallback")
		return
	}

	h.setSession(w, result)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleCredentials signs in the configured email/password account.
//
// HTTP: POST /api/auth/callback/credentials
//
// Two callers are supported:
//   - the sign-in page's HTML form (application/x-www-form-urlencoded):
//     answered with a 303 to / or back to the sign-in page with an error
//   - API clients sending JSON: answered with 200 and the session, or 401
func (h *AuthHandler) HandleCredentials(w http.ResponseWriter, r *http.Request) {
	wantsJSON := isJSON(r)

	if h.providers.Credentials == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "credential sign-in is not enabled",
		})
		return
	}

	var req credentialsRequest
	if wantsJSON {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON body")
			return
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			writeBadRequest(w, "invalid form body")
			return
		}
		req.Email = r.PostForm.Get("email")
		req.Password = r.PostForm.Get("password")
	}

	identity, err := h.providers.Credentials.Authenticate(req.Email, req.Password)
	if err != nil {
		h.logger.Warn("credentials sign-in rejected", slog.String("error", err.Error()))
		if wantsJSON {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{
				Error:   "unauthorized",
				Message: "invalid email or password",
			})
			return
		}
		signInError(w, r, "CredentialsSignin")
		return
	}

	result, err := h.auth.SignIn(r.Context(), identity)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.setSession(w, result)
	if wantsJSON {
		writeJSON(w, http.StatusOK, newSessionResponse(result.Session))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// sessionResponse encodes as {} for an anonymous request.
type sessionResponse struct {
	User    *auth.Session `json:"user,omitempty"`
	Expires *time.Time    `json:"expires,omitempty"`
}

func newSessionResponse(sess *auth.Session) sessionResponse {
	if sess == nil {
		return sessionResponse{}
	}
	expires := sess.ExpiresAt.UTC()
	return sessionResponse{User: sess, Expires: &expires}
}

// HandleSession returns the current session.
//
// HTTP: GET /api/auth/session
// RESPONSE: {"user":{"id":"...","name":"...","email":"..."},"expires":"..."}
// or {} when there is no valid session cookie.
func (h *AuthHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

// HandleSignOut clears the session cookie.
//
// HTTP: POST /api/auth/signout
//
// Sessions are stateless, so the token stays valid until it expires; without
// the cookie the browser just can't present it any more. Form posts from the
// home page are redirected to the sign-in page.
func (h *AuthHandler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, h.cookieSecure)
	if isForm(r) {
		http.Redirect(w, r, auth.SignInPath, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "signed out"})
}

// HandleProviders lists the enabled sign-in providers.
//
// HTTP: GET /api/auth/providers
// RESPONSE: {"providers":["github","google","credentials"]}
func (h *AuthHandler) HandleProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"providers": h.providers.Names()})
}

func (h *AuthHandler) setSession(w http.ResponseWriter, result *service.AuthResult) {
	auth.SetSessionCookie(w, result.Token, time.Until(result.Session.ExpiresAt), h.cookieSecure)
}

func mediaType(r *http.Request) string {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt
}

func isJSON(r *http.Request) bool {
	return mediaType(r) == "application/json"
}

func isForm(r *http.Request) bool {
	mt := mediaType(r)
	return mt == "application/x-www-form-urlencoded" || mt == "multipart/form-data"
}
