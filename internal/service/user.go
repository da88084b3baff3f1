// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → decodes requests, writes responses
//	Service (business layer) → validates, stamps the owner, enforces rules
//	Repository (data layer)  → reads/writes the database
//
// Services accept plain Go values and return domain errors from
// internal/apperror. They know nothing about HTTP, so the same code serves
// the API handlers and the cmd/manage operator commands.
//
// OWNERSHIP:
// Every tag, ingredient and recipe method takes the caller's user ID and
// passes it down to the repository, which filters on it. A row owned by
// someone else is indistinguishable from a missing row (404).
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

// Paging limits shared by every list that supports them.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

const msgEmailTaken = "user with this email already exists."

// Role picks the privilege flags given to a new account.
type Role int

const (
	RoleUser Role = iota
	RoleStaff
	RoleSuperuser
)

func (r Role) String() string {
	switch r {
	case RoleStaff:
		return "staff"
	case RoleSuperuser:
		return "superuser"
	default:
		return "user"
	}
}

// RegisterInput is the body of POST /api/user/create/ and the flags of the
// createsuperuser / createstaffuser commands.
type RegisterInput struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Name     string `json:"name" validate:"required,max=255"`
	Password string `json:"password" validate:"required,min=5,max=72"`
}

// ProfileInput updates the caller's own account. A nil field is left alone
// by a partial update; a full update requires email and name.
type ProfileInput struct {
	Email    *string `json:"email" validate:"omitnil,email,max=255"`
	Name     *string `json:"name" validate:"omitnil,min=1,max=255"`
	Password *string `json:"password" validate:"omitnil,min=5,max=72"`
}

// UserService handles registration and profile management.
type UserService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	validator *validation.Validator
	logger    *slog.Logger
}

func NewUserService(
	users repository.UserRepository,
	passwords *auth.PasswordService,
	validator *validation.Validator,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:     users,
		passwords: passwords,
		validator: validator,
		logger:    logger,
	}
}

// Register creates an ordinary active account.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	return s.CreateUser(ctx, in, RoleUser)
}

// CreateUser creates an active account with the privileges of role.
// A superuser is always staff too.
func (s *UserService) CreateUser(ctx context.Context, in RegisterInput, role Role) (*model.User, error) {
	in.Email = model.NormalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validator.Validate(in); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, passwordError(err)
	}

	user := &model.User{
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: hash,
		IsActive:     true,
		IsStaff:      role >= RoleStaff,
		IsSuperuser:  role == RoleSuperuser,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperror.ValidationFailed("email", msgEmailTaken)
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info("user created",
		slog.String("userID", user.ID),
		slog.String("role", role.String()),
	)
	return user, nil
}

// Me returns the caller's profile. A deactivated account is treated as
// unauthenticated.
func (s *UserService) Me(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("user not found")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, apperror.Unauthorized("user inactive or deleted")
	}
	return user, nil
}

// UpdateProfile applies in to the caller's account. With partial=false
// (PUT) email and name must both be present; the password is optional
// either way and is re-hashed when given.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, in ProfileInput, partial bool) (*model.User, error) {
	if in.Email != nil {
		normalized := model.NormalizeEmail(*in.Email)
		in.Email = &normalized
	}
	if in.Name != nil {
		trimmed := strings.TrimSpace(*in.Name)
		in.Name = &trimmed
	}

	if !partial {
		missing := map[string]string{}
		if in.Email == nil {
			missing["email"] = "This field is required."
		}
		if in.Name == nil {
			missing["name"] = "This field is required."
		}
		if len(missing) > 0 {
			return nil, apperror.ValidationFields(missing)
		}
	}
	if err := s.validator.Validate(in); err != nil {
		return nil, err
	}

	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.Email != nil {
		user.Email = *in.Email
	}
	if in.Name != nil {
		user.Name = *in.Name
	}
	if in.Password != nil {
		hash, err := s.passwords.Hash(*in.Password)
		if err != nil {
			return nil, passwordError(err)
		}
		user.PasswordHash = hash
	}

	if err := s.users.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperror.ValidationFailed("email", msgEmailTaken)
		}
		return nil, fmt.Errorf("updating user %s: %w", userID, err)
	}

	s.logger.Info("user updated", slog.String("userID", user.ID))
	return user, nil
}

// ListUsers pages through every account. Only staff may call it.
func (s *UserService) ListUsers(ctx context.Context, callerID string, limit, offset int) ([]model.User, error) {
	caller, err := s.Me(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if !caller.IsStaff {
		return nil, apperror.Forbidden("You do not have permission to perform this action.")
	}

	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	users, err := s.users.ListUsers(ctx, repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// passwordError reports a Hash failure. max=72 above counts characters, so
// multi-byte passwords can still exceed bcrypt's byte limit here.
func passwordError(err error) error {
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("Ensure this field has no more than %d bytes.", auth.MaxPasswordBytes))
	}
	return fmt.Errorf("hashing password: %w", err)
}
