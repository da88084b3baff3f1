// Package service: authentication business logic.
//
// AuthService turns credentials into bearer tokens:
//
//	UserHandler (HTTP) → AuthService → UserRepository (DB)
//	                               ↘ PasswordService (bcrypt)
//	                               ↘ TokenService (JWT)
//
// Two ways in: email + password (POST /api/user/token/) and, when
// configured, GitHub sign-in. Both end with the same kind of token.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/recipe-api/internal/apperror"
	"github.com/sakif/recipe-api/internal/auth"
	"github.com/sakif/recipe-api/internal/model"
	"github.com/sakif/recipe-api/internal/repository"
	"github.com/sakif/recipe-api/internal/validation"
)

// MsgInvalidCredentials is the single answer for every failed login, so a
// caller cannot tell an unknown email from a wrong password.
const MsgInvalidCredentials = "Invalid credentials, try again"

// CredentialsInput is the body of POST /api/user/token/.
type CredentialsInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResult bundles the user with the token issued for them.
type AuthResult struct {
	User  *model.User
	Token string
}

type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	validator *validation.Validator
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	validator *validation.Validator,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		validator: validator,
		logger:    logger,
	}
}

// IssueToken checks email and password and returns a token.
//
// Missing fields are field errors. Every other failure (unknown email,
// wrong password, inactive account, account without a usable password)
// is the same non-field validation error.
func (s *AuthService) IssueToken(ctx context.Context, in CredentialsInput) (*AuthResult, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := s.validator.Validate(in); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.logger.Info("login failed", slog.String("reason", "unknown email"))
			return nil, apperror.ValidationFailed("", MsgInvalidCredentials)
		}
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, in.Password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			s.logger.Info("login failed",
				slog.String("userID", user.ID),
				slog.String("reason", "bad password"),
			)
			return nil, apperror.ValidationFailed("", MsgInvalidCredentials)
		}
		return nil, fmt.Errorf("service/auth: verifying password for %s: %w", user.ID, err)
	}

	if !user.IsActive {
		s.logger.Info("login failed",
			slog.String("userID", user.ID),
			slog.String("reason", "inactive"),
		)
		return nil, apperror.ValidationFailed("", MsgInvalidCredentials)
	}

	return s.issue(user)
}

// SignInWithGitHub matches the GitHub profile to an account by email and
// creates one when none exists. New accounts get an unusable password, so
// they can only sign in through GitHub until they set one via PUT /me.
func (s *AuthService) SignInWithGitHub(ctx context.Context, gh *auth.GitHubUser) (*AuthResult, error) {
	if gh == nil || gh.Email == "" {
		return nil, fmt.Errorf("service/auth: GitHub profile has no email")
	}

	email := model.NormalizeEmail(gh.Email)
	user, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if !user.IsActive {
			return nil, apperror.Forbidden("user inactive or deleted")
		}

	case errors.Is(err, apperror.ErrNotFound):
		name := strings.TrimSpace(gh.Name)
		if name == "" {
			name = gh.Login
		}
		user = &model.User{
			Email:        email,
			Name:         name,
			PasswordHash: auth.UnusableHash(),
			IsActive:     true,
		}
		if err := s.users.CreateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("service/auth: creating user for GitHub login %s: %w", gh.Login, err)
		}
		s.logger.Info("user created",
			slog.String("userID", user.ID),
			slog.String("via", "github"),
		)

	default:
		return nil, fmt.Errorf("service/auth: looking up GitHub user %s: %w", gh.Login, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("login", gh.Login),
	)
	return s.issue(user)
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}
