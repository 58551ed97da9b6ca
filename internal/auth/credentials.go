package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
)

// ErrInvalidCredentials is returned for any credential sign-in failure. We
// deliberately don't say whether the email or the password was wrong.
var ErrInvalidCredentials = errors.New("auth: invalid email or password")

// CredentialsProvider signs in a single configured account with an email and
// password, for demos and local development where no OAuth app is set up.
type CredentialsProvider struct {
	email        string
	passwordHash string
	name         string
	passwords    *PasswordService
}

// NewCredentialsProvider takes the account's email, its bcrypt password hash
// and the display name reported on sign-in.
func NewCredentialsProvider(email, passwordHash, name string, passwords *PasswordService) *CredentialsProvider {
	if name == "" {
		name = "Test User"
	}
	return &CredentialsProvider{
		email:        NormalizeEmail(email),
		passwordHash: passwordHash,
		name:         name,
		passwords:    passwords,
	}
}

// Name is the provider key used in URLs.
func (p *CredentialsProvider) Name() string { return "credentials" }

// Authenticate returns the account's Identity if email and password match.
func (p *CredentialsProvider) Authenticate(email, password string) (*Identity, error) {
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	emailOK := subtle.ConstantTimeCompare([]byte(NormalizeEmail(email)), []byte(p.email)) == 1
	// Always run bcrypt so a wrong email costs the same as a wrong password.
	passwordErr := p.passwords.Verify(p.passwordHash, password)
	if !emailOK || passwordErr != nil {
		return nil, ErrInvalidCredentials
	}
	return &Identity{Provider: p.Name(), Email: p.email, Name: p.name}, nil
}

// NormalizeEmail trims and lower-cases an address so that the same mailbox
// reached through different providers links to one user.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
