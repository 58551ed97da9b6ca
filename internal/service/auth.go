package service

// AuthService is the business logic layer for sign-in:
//
//	AuthHandler (HTTP) → AuthService (linking rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT)
//
// Every provider (Google, GitHub, credentials) ends in the same place: an
// auth.Identity handed to SignIn. Linking that identity to a User is one
// routine for all of them, keyed by normalized email, so the same mailbox
// always lands on the same internal user ID.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/task-tracker/internal/apperror"
	"github.com/sakif/task-tracker/internal/auth"
	"github.com/sakif/task-tracker/internal/model"
	"github.com/sakif/task-tracker/internal/repository"
)

// AuthService links identities to users and issues session tokens.
type AuthService struct {
	users  repository.UserRepository
	tokens *auth.TokenService
	logger *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(users repository.UserRepository, tokens *auth.TokenService, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		logger: logger,
	}
}

// AuthResult bundles what a handler needs to finish a sign-in: the linked
// user, the session it encodes, and the signed token for the cookie.
type AuthResult struct {
	User    *model.User
	Session *auth.Session
	Token   string
}

// SignIn finds the user with the identity's email, creating it on first
// sign-in, and issues a session for that user.
//
// An existing user's name and image are left as they were first recorded;
// the session carries the stored profile, not the provider's latest one.
func (s *AuthService) SignIn(ctx context.Context, id *auth.Identity) (*AuthResult, error) {
	if id == nil {
		return nil, errors.New("service/auth: identity must not be nil")
	}
	email := auth.NormalizeEmail(id.Email)
	if email == "" {
		return nil, apperror.Unauthorized("sign-in provider returned no email")
	}

	user := &model.User{
		Email: email,
		Name:  id.Name,
		Image: id.Image,
	}
	if err := s.users.FindOrCreateUserByEmail(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: linking user %s: %w", email, err)
	}

	sess := &auth.Session{
		UserID:    user.ID,
		Name:      user.Name,
		Email:     user.Email,
		ExpiresAt: time.Now().Add(s.tokens.TTL()),
	}
	token, err := s.tokens.Generate(*sess)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	s.logger.Info("user signed in",
		slog.String("userID", user.ID),
		slog.String("provider", id.Provider),
	)

	return &AuthResult{User: user, Session: sess, Token: token}, nil
}

// GetUserByID returns the user for the given internal ID.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.Unauthorized("authentication required")
	}
	return s.users.GetUserByID(ctx, id)
}
