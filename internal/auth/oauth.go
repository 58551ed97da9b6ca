package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

// Identity is what every provider resolves a successful sign-in to. Linking
// it to an internal User is the service layer's job and is the same for all
// providers.
type Identity struct {
	Provider string
	Email    string
	Name     string
	Image    string
}

// OAuthProvider is an OAuth 2.0 Authorization Code flow:
//  1. AuthURL: where to send the browser (with our client ID, scopes, state)
//  2. The user approves on the provider's site
//  3. The provider redirects to our callback with a short-lived code
//  4. Exchange: trade the code for a token server-to-server (the client
//     secret never reaches the browser) and fetch the profile
type OAuthProvider interface {
	Name() string
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*Identity, error)
}

// getJSON GETs url with an authorized client and decodes the body into v.
func getJSON(client *http.Client, url string, v any) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s returned status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// =========================================================================
// GOOGLE
// =========================================================================

var _ OAuthProvider = (*GoogleProvider)(nil)

type GoogleProvider struct {
	config      *oauth2.Config
	userInfoURL string
}

// NewGoogleProvider is configured from an OAuth client created in the Google
// Cloud console. callbackURL must match an "Authorized redirect URI" exactly,
// e.g. "http://localhost:8080/api/auth/callback/google".
func NewGoogleProvider(clientID, clientSecret, callbackURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userInfoURL: "https://openidconnect.googleapis.com/v1/userinfo",
	}
}

func (p *GoogleProvider) Name() string { return "google" }

func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

type googleUserInfo struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*Identity, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging google code: %w", err)
	}

	var info googleUserInfo
	if err := getJSON(p.config.Client(ctx, token), p.userInfoURL, &info); err != nil {
		return nil, fmt.Errorf("auth: fetching google profile: %w", err)
	}
	if info.Email == "" || !info.EmailVerified {
		return nil, errors.New("auth: google account has no verified email")
	}

	return &Identity{
		Provider: p.Name(),
		Email:    NormalizeEmail(info.Email),
		Name:     info.Name,
		Image:    info.Picture,
	}, nil
}

// =========================================================================
// GITHUB
// =========================================================================

var _ OAuthProvider = (*GitHubProvider)(nil)

type GitHubProvider struct {
	config    *oauth2.Config
	userURL   string
	emailsURL string
}

// NewGitHubProvider is configured from an OAuth App registered at
// https://github.com/settings/developers. Scopes:
//   - "read:user"  → public profile (name, avatar)
//   - "user:email" → email addresses, including hidden ones
func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		userURL:   "https://api.github.com/user",
		emailsURL: "https://api.github.com/user/emails",
	}
}

func (p *GitHubProvider) Name() string { return "github" }

func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

type gitHubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"` // empty if hidden in GitHub settings
	AvatarURL string `json:"avatar_url"`
}

type gitHubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*Identity, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging github code: %w", err)
	}
	client := p.config.Client(ctx, token)

	var u gitHubUser
	if err := getJSON(client, p.userURL, &u); err != nil {
		return nil, fmt.Errorf("auth: calling GitHub /user API: %w", err)
	}
	if u.ID == 0 {
		return nil, errors.New("auth: GitHub returned an invalid user (ID = 0)")
	}

	// Users who hide their email still expose it, with the primary flag, on
	// /user/emails thanks to the user:email scope.
	email := u.Email
	if email == "" {
		var emails []gitHubEmail
		if err := getJSON(client, p.emailsURL, &emails); err != nil {
			return nil, fmt.Errorf("auth: calling GitHub /user/emails API: %w", err)
		}
		for _, e := range emails {
			if e.Primary && e.Verified {
				email = e.Email
				break
			}
		}
	}
	if email == "" {
		return nil, errors.New("auth: GitHub account has no verified primary email")
	}

	name := u.Name
	if name == "" {
		name = u.Login
	}

	return &Identity{
		Provider: p.Name(),
		Email:    NormalizeEmail(email),
		Name:     name,
		Image:    u.AvatarURL,
	}, nil
}
