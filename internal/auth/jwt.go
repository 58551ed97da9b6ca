// Package auth resolves who is making a request.
//
// SIGN-IN FLOW OVERVIEW:
//  1. The user picks a provider on /auth/signin (Google, GitHub, or the
//     configured credential account)
//  2. The provider yields an external Identity (email, name, image)
//  3. The service layer links that Identity to an internal User by email
//  4. We issue a signed session token and store it in an HttpOnly cookie
//  5. On every request LoadSession validates the cookie and puts the Session
//     in the request context; handlers pass Session.UserID explicitly to the
//     service layer
//
// WHY JWT?
// The session is stateless: user ID, display name, email and expiry are all
// inside the signed token, so validating a request needs only the secret and
// never a storage round trip.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "task-tracker"

// Session is the authenticated identity attached to a request.
// UserID is always the internal User ID, never a provider's ID.
type Session struct {
	UserID    string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email,omitempty"`
	ExpiresAt time.Time `json:"-"`
}

// TokenService signs and verifies session tokens with an HMAC secret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService. The secret should be at least 32
// bytes of random data in production (SESSION_SECRET=$(openssl rand -hex 32)).
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 characters")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: session TTL must be positive")
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// TTL is how long a freshly issued token stays valid.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// claims is the JWT payload. "sub" carries the internal user ID.
type claims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Generate signs a token for the session using the service's TTL.
func (s *TokenService) Generate(sess Session) (string, error) {
	return s.GenerateWithDuration(sess, s.ttl)
}

// GenerateWithDuration signs a token with a custom lifetime. Tests use a
// negative duration to produce an already-expired token.
func (s *TokenService) GenerateWithDuration(sess Session, d time.Duration) (string, error) {
	if sess.UserID == "" {
		return "", errors.New("auth: session has no user ID")
	}
	now := time.Now()

	c := claims{
		Name:  sess.Name,
		Email: sess.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sess.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a token and returns the session it encodes.
//
// Rejected: bad signature, expired or missing exp, a different issuer, and
// any algorithm but HS256 (guards against "alg: none" confusion attacks).
func (s *TokenService) Validate(tokenStr string) (*Session, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.New("auth: token expired")
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, errors.New("auth: invalid token claims")
	}
	if c.Subject == "" {
		return nil, errors.New("auth: token has no subject")
	}

	return &Session{
		UserID:    c.Subject,
		Name:      c.Name,
		Email:     c.Email,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}
